package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputText prints text to the command's stdout.
func outputText(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

// outputError prints an error to stderr with credentials scrubbed.
func outputError(w io.Writer, err error) {
	printError(w, "%s", scrubSensitiveData(err.Error()))
}

// scrubSensitiveData removes the access token and API key from messages.
func scrubSensitiveData(msg string) string {
	for _, secret := range []string{cfgToken, cfgAnonKey} {
		if secret != "" && strings.Contains(msg, secret) {
			msg = strings.ReplaceAll(msg, secret, "[REDACTED]")
		}
	}
	return msg
}

// eventPrinter turns library events into styled lines. It is installed as
// the Notifier for background drains and used for direct results.
type eventPrinter struct {
	w io.Writer
}

func (p eventPrinter) Notify(e chronoquest.Event) {
	switch e.Kind {
	case chronoquest.EventXPGranted, chronoquest.EventCoinsGranted, chronoquest.EventItemConsumed,
		chronoquest.EventSynced:
		printSuccess(p.w, "%s", e)
	case chronoquest.EventLevelUp, chronoquest.EventAchievementUnlocked:
		printInfo(p.w, "%s", e)
	case chronoquest.EventQueued:
		printQueued(p.w, "%s", e)
	case chronoquest.EventOpDropped, chronoquest.EventFailed:
		printWarning(p.w, "%s", e)
	default:
		printMuted(p.w, "%s", e)
	}
}

func (p eventPrinter) printAll(events []chronoquest.Event) {
	for _, e := range events {
		p.Notify(e)
	}
}

// outputTaskLine prints a task with its counter progress and XP preview.
func outputTaskLine(w io.Writer, t chronoquest.Task, counter int, preview *chronoquest.Preview) {
	line := fmt.Sprintf("%s  [%s, %s]", t.Title, t.Category, t.Repeat())
	if preview != nil {
		line += "  " + styleXP(preview.Total)
	}
	fmt.Fprintln(w, line)
	if t.RequiresCount {
		fmt.Fprintf(w, "    %s %d/%d %s\n", progressBar(counter, t.Target(), 10), counter, t.Target(), t.Unit)
	}
	if t.DueDate != "" {
		printMuted(w, "    due %s", t.DueDate)
	}
	printMuted(w, "    id %s", t.ID)
}

// outputDrain prints a drain summary.
func outputDrain(cmd *cobra.Command, res chronoquest.DrainResult) error {
	if outputJSON {
		return outputAsJSON(cmd, res)
	}
	out := cmd.OutOrStdout()
	if res.Skipped {
		printMuted(out, "Sync skipped: offline, nothing configured, or already running.")
		return nil
	}
	eventPrinter{w: out}.printAll(res.Events)
	if res.Applied == 0 && res.Dropped == 0 {
		printMuted(out, "Nothing to sync.")
	}
	if res.Remaining > 0 {
		printQueued(out, "%d operation(s) still pending", res.Remaining)
	}
	if res.Interrupted {
		printWarning(out, "connection lost during sync")
	}
	return nil
}
