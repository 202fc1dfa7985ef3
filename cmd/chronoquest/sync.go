package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

var (
	syncWatch    bool
	queueJournal int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay operations saved while offline",
	Long: `Replay completions and counter changes saved while offline, oldest
first. Operations the backend rejects are dropped and recorded in the
journal; a network failure stops the sync and keeps the rest queued.

With --watch, keep running and sync whenever another chronoquest process
queues work in the same profile.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClientSession(cmd, func(ctx context.Context, client *chronoquest.Client, sess *chronoquest.Session) error {
			return runSync(ctx, cmd, client, sess)
		})
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List operations waiting to sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClientSession(cmd, func(ctx context.Context, client *chronoquest.Client, sess *chronoquest.Session) error {
			return runQueue(cmd, client, sess)
		})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Keep syncing as other processes queue work")
	queueCmd.Flags().IntVar(&queueJournal, "journal", 0, "Also show the last N sync journal entries")
	rootCmd.AddCommand(syncCmd, queueCmd)
}

func runSync(ctx context.Context, cmd *cobra.Command, client *chronoquest.Client, sess *chronoquest.Session) error {
	var res chronoquest.DrainResult
	_ = runWithSpinner(cmd.ErrOrStderr(), "Syncing", func() error {
		res = sess.Drain(ctx)
		return nil
	})
	if err := outputDrain(cmd, res); err != nil {
		return err
	}
	if !syncWatch {
		return nil
	}

	if !outputJSON {
		printMuted(cmd.ErrOrStderr(), "Watching %s for queued work (Ctrl-C to stop)", client.StorePath())
	}
	err := client.Watch(ctx, sess.HandleStoreChange)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type queueOutput struct {
	Pending []chronoquest.PendingOperation `json:"pending"`
	Journal []chronoquest.JournalEntry     `json:"journal,omitempty"`
}

func runQueue(cmd *cobra.Command, client *chronoquest.Client, sess *chronoquest.Session) error {
	out := queueOutput{Pending: sess.PendingOps()}
	if queueJournal > 0 {
		entries, err := client.Journal(queueJournal)
		if err != nil {
			return err
		}
		out.Journal = entries
	}

	if outputJSON {
		return outputAsJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	if len(out.Pending) == 0 {
		printSuccess(w, "Nothing waiting to sync.")
	}
	for _, op := range out.Pending {
		title := op.TaskID
		if t, err := sess.Task(op.TaskID); err == nil {
			title = t.Title
		}
		switch op.Type {
		case chronoquest.OpSetCounter:
			printQueued(w, "%s  set counter to %d on %s", title, op.Count, op.CountedOn)
		default:
			printQueued(w, "%s  complete", title)
		}
		printMuted(w, "    queued %s", op.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if len(out.Journal) > 0 {
		fmt.Fprintln(w)
		printField(w, "Journal", "last %d", len(out.Journal))
		for _, e := range out.Journal {
			line := fmt.Sprintf("%s %s %s %s", e.RecordedAt.Local().Format("01-02 15:04"), e.OpType, e.TaskID, e.Outcome)
			if e.Detail != "" {
				line += ": " + e.Detail
			}
			printMuted(w, "    %s", line)
		}
	}
	return nil
}
