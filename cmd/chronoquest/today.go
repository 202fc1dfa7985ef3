package main

import (
	"context"
	"fmt"
	"io"

	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

var todayShowDone bool

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "List today's quests",
	Long: `List the quests still open today with the XP each would grant.

Dated quests come first, soonest due date first. Quests completed offline
are shown as done until they sync.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			return runToday(cmd, sess)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show level, stats, streak and sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			return runStatus(ctx, cmd, sess)
		})
	},
}

func init() {
	todayCmd.Flags().BoolVar(&todayShowDone, "done", false, "Also list quests completed today")
	rootCmd.AddCommand(todayCmd, statusCmd)
}

type todayEntry struct {
	Task    chronoquest.Task    `json:"task"`
	Counter int                 `json:"counter,omitempty"`
	Preview chronoquest.Preview `json:"preview"`
}

type todayOutput struct {
	Remaining []todayEntry            `json:"remaining"`
	Done      *chronoquest.DoneGroups `json:"done,omitempty"`
	Pending   int                     `json:"pending"`
}

func runToday(cmd *cobra.Command, sess *chronoquest.Session) error {
	now := sess.Now()
	remaining := sess.RemainingToday(now)

	out := todayOutput{Remaining: []todayEntry{}, Pending: len(sess.PendingOps())}
	for i, t := range remaining {
		preview, _ := sess.Preview(t.ID, i)
		out.Remaining = append(out.Remaining, todayEntry{Task: t, Counter: sess.Counter(t.ID), Preview: preview})
	}
	if todayShowDone {
		done := sess.DoneTodayTasks(now)
		out.Done = &done
	}

	if outputJSON {
		return outputAsJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	if len(out.Remaining) == 0 {
		printSuccess(w, "All quests for today are done.")
	}
	for _, e := range out.Remaining {
		outputTaskLine(w, e.Task, e.Counter, &e.Preview)
	}
	if out.Done != nil {
		printDoneGroup(w, "daily", out.Done.Daily)
		printDoneGroup(w, "weekly", out.Done.Weekly)
		printDoneGroup(w, "once", out.Done.Once)
	}
	if out.Pending > 0 {
		fmt.Fprintln(w)
		printQueued(w, "%d operation(s) waiting to sync", out.Pending)
	}
	return nil
}

func printDoneGroup(w io.Writer, label string, tasks []chronoquest.Task) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintln(w)
	printField(w, "Done today, "+label, "%d", len(tasks))
	for _, t := range tasks {
		printSuccess(w, "%s", t.Title)
	}
}

type statusOutput struct {
	UserID      string                        `json:"user_id"`
	Profile     *chronoquest.Profile          `json:"profile,omitempty"`
	Progress    chronoquest.Progress          `json:"progress"`
	Streak      chronoquest.Streak            `json:"streak"`
	DailyReward *chronoquest.DailyRewardState `json:"daily_reward,omitempty"`
	CanClaim    bool                          `json:"can_claim_daily_reward"`
	Pending     int                           `json:"pending"`
}

func runStatus(ctx context.Context, cmd *cobra.Command, sess *chronoquest.Session) error {
	out := statusOutput{
		UserID:   sess.UserID(),
		Profile:  sess.Profile(),
		Progress: sess.Progress(),
		Streak:   sess.CachedStreak(),
		Pending:  len(sess.PendingOps()),
	}
	state, err := sess.DailyReward(ctx)
	if err != nil && !chronoquest.IsNetworkError(err) {
		return err
	}
	if err == nil {
		out.DailyReward = state
		out.CanClaim = chronoquest.CanClaimDailyReward(state, sess.Now())
	}

	if outputJSON {
		return outputAsJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	if isTTY() {
		fmt.Fprintln(w, renderBanner(out.Progress.Level))
		fmt.Fprintln(w)
	}
	if p := out.Profile; p != nil {
		printField(w, "Name", "%s", p.DisplayName)
		printField(w, "Level", "%d", p.Level)
		printField(w, "XP", "%s %d/%d (%d to next level)",
			progressBar(out.Progress.InLevel, out.Progress.Span, 20),
			out.Progress.InLevel, out.Progress.Span, out.Progress.Remaining)
		printField(w, "Coins", "%d", p.Coins)
		printField(w, "Stats", "STR %d  INT %d  WILL %d  CHA %d", p.Stats.Str, p.Stats.Int, p.Stats.Will, p.Stats.Cha)
		if p.UnspentPoints > 0 {
			printInfo(w, "%d unspent stat point(s): run `chronoquest stat allocate <stat>`", p.UnspentPoints)
		}
	} else {
		printWarning(w, "Profile not loaded yet; connect once to create it.")
	}
	printField(w, "Streak", "%d day(s), longest %d", out.Streak.Current, out.Streak.Longest)
	if out.CanClaim {
		printInfo(w, "Daily reward ready: run `chronoquest reward claim`")
	}
	if out.Pending > 0 {
		printQueued(w, "%d operation(s) waiting to sync", out.Pending)
	}
	return nil
}
