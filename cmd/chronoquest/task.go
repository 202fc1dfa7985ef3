package main

import (
	"context"
	"strings"

	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

var (
	taskCategory string
	taskEffort   string
	taskBaseXP   int
	taskRepeat   string
	taskDays     []string
	taskDue      string
	taskTarget   int
	taskUnit     string
	taskNotes    string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage your quests",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a quest",
	Long: `Create a quest. A --target above zero makes it a count quest that can only
be completed once its daily counter reaches the target.`,
	Example: `  chronoquest task add "Morning run" --category exercise --effort hard --repeat daily
  chronoquest task add "Drink water" --category life --repeat daily --target 8 --unit glasses
  chronoquest task add "Spanish lesson" --category study --repeat weekly --days mon,wed,fri`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := chronoquest.NewTask{
			Title:         strings.Join(args, " "),
			Category:      chronoquest.Category(taskCategory),
			BaseXP:        taskBaseXP,
			Effort:        chronoquest.EffortLevel(taskEffort),
			Repeat:        chronoquest.RepeatType(taskRepeat),
			WeeklyDays:    taskDays,
			DueDate:       taskDue,
			RequiresCount: taskTarget > 0,
			TargetCount:   taskTarget,
			Unit:          taskUnit,
			Notes:         taskNotes,
		}
		if in.BaseXP == 0 && in.Effort != "" {
			in.BaseXP = chronoquest.BaseXPForEffort(in.Effort)
		}
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			task, err := sess.AddTask(ctx, in)
			if err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, task)
			}
			printSuccess(cmd.OutOrStdout(), "Added %s", task.Title)
			printMuted(cmd.OutOrStdout(), "    id %s", task.ID)
			return nil
		})
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <quest>",
	Aliases: []string{"remove"},
	Short:   "Delete a quest",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			task, err := resolveTask(sess, args[0])
			if err != nil {
				return err
			}
			if err := sess.RemoveTask(ctx, task.ID); err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, map[string]string{"removed": task.ID})
			}
			printSuccess(cmd.OutOrStdout(), "Removed %s", task.Title)
			return nil
		})
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List every quest",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			tasks := sess.Tasks()
			if outputJSON {
				if tasks == nil {
					tasks = []chronoquest.Task{}
				}
				return outputAsJSON(cmd, tasks)
			}
			w := cmd.OutOrStdout()
			if len(tasks) == 0 {
				printMuted(w, "No quests yet. Add one with `chronoquest task add`.")
				return nil
			}
			for _, t := range tasks {
				outputTaskLine(w, t, sess.Counter(t.ID), nil)
			}
			return nil
		})
	},
}

func init() {
	f := taskAddCmd.Flags()
	f.StringVarP(&taskCategory, "category", "c", string(chronoquest.CategoryLife), "exercise, study or life")
	f.StringVarP(&taskEffort, "effort", "e", "", "light, standard or hard")
	f.IntVar(&taskBaseXP, "xp", 0, "Base XP (default: from effort)")
	f.StringVarP(&taskRepeat, "repeat", "r", string(chronoquest.RepeatOnce), "once, daily or weekly")
	f.StringSliceVar(&taskDays, "days", nil, "Weekdays for weekly quests (sun,mon,...)")
	f.StringVar(&taskDue, "due", "", "Due date, YYYY-MM-DD")
	f.IntVar(&taskTarget, "target", 0, "Daily count target; makes this a count quest")
	f.StringVar(&taskUnit, "unit", "", "Counter unit (default: times)")
	f.StringVar(&taskNotes, "notes", "", "Free-form notes")

	taskCmd.AddCommand(taskAddCmd, taskRmCmd, taskListCmd)
	rootCmd.AddCommand(taskCmd)
}
