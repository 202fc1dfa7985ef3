package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/chronoquest/chronoquest"
	"github.com/chronoquest/chronoquest/internal/game"
	"github.com/spf13/cobra"
)

var (
	completeFatigueItem string
	completeXPItem      string
	completeNoItems     bool

	countSet int
)

var completeCmd = &cobra.Command{
	Use:   "complete <quest>",
	Short: "Complete a quest and collect its reward",
	Long: `Complete a quest by id, id prefix or title.

Held consumables can be spent on the completion. On a terminal you are
asked which to use unless --no-items or an item flag is given. Offline,
the completion is saved and synced later with base XP only.`,
	Example: `  chronoquest complete "Morning run"
  chronoquest complete 3f2a --xp-item focus_tonic`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			return runComplete(ctx, cmd, sess, args[0])
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count <quest> [delta]",
	Short: "Adjust today's counter of a count quest",
	Long: `Add delta (default 1, negative subtracts) to today's counter of a count
quest, or set it outright with --set. The counter never goes below zero.`,
	Example: `  chronoquest count "Drink water"
  chronoquest count water -- -1
  chronoquest count water --set 8`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("delta must be a whole number: %q", args[1])
			}
			delta = n
		}
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			return runCount(ctx, cmd, sess, args[0], delta)
		})
	},
}

func init() {
	completeCmd.Flags().StringVar(&completeFatigueItem, "fatigue-item", "", "Fatigue-reducing item to use (id or code)")
	completeCmd.Flags().StringVar(&completeXPItem, "xp-item", "", "XP boost item to use (id or code)")
	completeCmd.Flags().BoolVar(&completeNoItems, "no-items", false, "Do not ask about items")
	countCmd.Flags().IntVar(&countSet, "set", -1, "Set the counter to this value")
	rootCmd.AddCommand(completeCmd, countCmd)
}

// resolveTask matches an id, a unique id prefix, or a case-insensitive title.
func resolveTask(sess *chronoquest.Session, arg string) (chronoquest.Task, error) {
	arg = strings.TrimSpace(arg)
	if t, err := sess.Task(arg); err == nil {
		return t, nil
	}
	var matches []chronoquest.Task
	for _, t := range sess.Tasks() {
		if strings.HasPrefix(t.ID, arg) || strings.EqualFold(t.Title, arg) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return chronoquest.Task{}, fmt.Errorf("%w: %q", chronoquest.ErrTaskNotFound, arg)
	case 1:
		return matches[0], nil
	default:
		return chronoquest.Task{}, fmt.Errorf("%q matches %d quests; use the id", arg, len(matches))
	}
}

func runComplete(ctx context.Context, cmd *cobra.Command, sess *chronoquest.Session, arg string) error {
	task, err := resolveTask(sess, arg)
	if err != nil {
		return err
	}

	opts, err := completeOptions(ctx, sess)
	if err != nil {
		return err
	}

	result, err := sess.CompleteTask(ctx, task.ID, opts)
	if errors.Is(err, chronoquest.ErrCountNotReached) {
		return fmt.Errorf("%w; use `chronoquest count` first", err)
	}
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, result)
	}
	w := cmd.OutOrStdout()
	if result.Outcome == chronoquest.OutcomeQueued {
		printQueued(w, "Completed %s offline (%s once synced)", task.Title, styleXP(result.Reward.BaseGain))
	} else {
		printSuccess(w, "Completed %s: %s, %d coins", task.Title, styleXP(result.Reward.FinalXP), result.Reward.Coins)
	}
	for _, e := range result.Events {
		if e.Kind == chronoquest.EventQueued {
			continue
		}
		eventPrinter{w: w}.Notify(e)
	}
	return nil
}

// completeOptions resolves item flags, prompting on a terminal when none
// were given.
func completeOptions(ctx context.Context, sess *chronoquest.Session) (chronoquest.CompleteOptions, error) {
	var opts chronoquest.CompleteOptions
	if completeFatigueItem != "" || completeXPItem != "" {
		if _, err := sess.Inventory(ctx); err != nil {
			return opts, fmt.Errorf("load inventory: %w", err)
		}
	}
	if completeFatigueItem != "" {
		item, err := sess.HeldItem(completeFatigueItem)
		if err != nil {
			return opts, err
		}
		opts.FatigueItemID = item.ID
	}
	if completeXPItem != "" {
		item, err := sess.HeldItem(completeXPItem)
		if err != nil {
			return opts, err
		}
		opts.XPItemID = item.ID
	}
	if opts != (chronoquest.CompleteOptions{}) || completeNoItems || outputJSON || !isTTY() {
		return opts, nil
	}

	inv, err := sess.Inventory(ctx)
	if err != nil {
		// Offline completions cannot spend items anyway.
		return opts, nil
	}
	fatigue := itemOptions(inv, game.EffectFatigueReduce)
	xp := itemOptions(inv, game.EffectXPBoost)
	if len(fatigue) == 1 && len(xp) == 1 {
		return opts, nil
	}

	var fields []huh.Field
	if len(fatigue) > 1 {
		fields = append(fields, huh.NewSelect[string]().Title("Reduce fatigue with").Options(fatigue...).Value(&opts.FatigueItemID))
	}
	if len(xp) > 1 {
		fields = append(fields, huh.NewSelect[string]().Title("Boost XP with").Options(xp...).Value(&opts.XPItemID))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return chronoquest.CompleteOptions{}, err
	}
	return opts, nil
}

// itemOptions lists held items with the given effect, after a "none" entry.
func itemOptions(inv []chronoquest.InventoryItem, effect string) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Nothing", "")}
	for _, it := range inv {
		if it.EffectType == effect && it.Quantity > 0 {
			opts = append(opts, huh.NewOption(fmt.Sprintf("%s (x%d)", it.Name, it.Quantity), it.ID))
		}
	}
	return opts
}

func runCount(ctx context.Context, cmd *cobra.Command, sess *chronoquest.Session, arg string, delta int) error {
	task, err := resolveTask(sess, arg)
	if err != nil {
		return err
	}
	if !task.RequiresCount {
		return fmt.Errorf("%s is not a count quest", task.Title)
	}

	var (
		count   int
		outcome chronoquest.Outcome
	)
	if countSet >= 0 {
		count = countSet
		outcome, err = sess.SetCounter(ctx, task.ID, count)
	} else {
		count, outcome, err = sess.AdjustCounter(ctx, task.ID, delta)
	}
	if err != nil {
		return err
	}

	ready := sess.CounterReady(task)
	if outputJSON {
		return outputAsJSON(cmd, map[string]any{
			"task_id": task.ID,
			"count":   count,
			"target":  task.Target(),
			"ready":   ready,
			"outcome": outcome,
		})
	}
	w := cmd.OutOrStdout()
	line := fmt.Sprintf("%s %s %d/%d %s", task.Title, progressBar(count, task.Target(), 10), count, task.Target(), task.Unit)
	if outcome == chronoquest.OutcomeQueued {
		printQueued(w, "%s (saved offline)", line)
	} else {
		printSuccess(w, "%s", line)
	}
	if ready {
		printInfo(w, "Target reached: run `chronoquest complete %s`", task.ID)
	}
	return nil
}
