package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

var rewardCmd = &cobra.Command{
	Use:   "reward",
	Short: "Daily login reward",
}

var rewardClaimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim today's reward",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			state, err := sess.DailyReward(ctx)
			if err != nil {
				return err
			}
			if !chronoquest.CanClaimDailyReward(state, sess.Now()) {
				return errors.New("today's reward was already claimed")
			}
			claim, _, err := sess.ClaimDailyReward(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, claim)
			}
			printSuccess(cmd.OutOrStdout(), "Claimed %d coins", claim.Coins)
			if claim.StreakAward > 0 {
				printInfo(cmd.OutOrStdout(), "Streak bonus: %d", claim.StreakAward)
			}
			return nil
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Spend stat points",
}

var statAllocateCmd = &cobra.Command{
	Use:       "allocate <str|int|will|cha>",
	Short:     "Spend one unspent point on a stat",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"str", "int", "will", "cha"},
	RunE: func(cmd *cobra.Command, args []string) error {
		key := chronoquest.StatKey(strings.ToLower(args[0]))
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			p, err := sess.AllocateStat(ctx, key)
			if err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, p)
			}
			printSuccess(cmd.OutOrStdout(), "%s is now %d (%d point(s) left)", strings.ToUpper(string(key)), p.Stats.Get(key), p.UnspentPoints)
			return nil
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your character",
}

var profileRenameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Change your display name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			p, err := sess.UpdateDisplayName(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, p)
			}
			printSuccess(cmd.OutOrStdout(), "You are now %s", p.DisplayName)
			return nil
		})
	},
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "List achievements and which you have unlocked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			list, err := sess.Achievements(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, list)
			}
			w := cmd.OutOrStdout()
			for _, a := range list {
				if a.Unlocked {
					printSuccess(w, "%s %s", a.Icon, a.Name)
				} else {
					printMuted(w, "  %s %s: %s", a.Icon, a.Name, a.Description)
				}
			}
			return nil
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Quest suggestions for the current chapter",
}

var suggestListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List open suggestions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			list, err := loadSuggestions(ctx, sess)
			if err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, list)
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				printMuted(w, "No open suggestions.")
			}
			for i, sg := range list {
				fmt.Fprintf(w, "%d. %s  [%s, %s]\n", i+1, sg.Title, sg.TaskCategory, sg.EffortLevel)
				if sg.Description != "" {
					printMuted(w, "    %s", sg.Description)
				}
			}
			return nil
		})
	},
}

var suggestAcceptCmd = &cobra.Command{
	Use:   "accept <number|id>",
	Short: "Turn a suggestion into a quest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			sg, err := pickSuggestion(ctx, sess, args[0])
			if err != nil {
				return err
			}
			task, err := sess.AcceptSuggestion(ctx, sg)
			if err != nil && task == nil {
				return err
			}
			if err != nil {
				printWarning(cmd.ErrOrStderr(), "quest added but suggestion not marked: %v", err)
			}
			if outputJSON {
				return outputAsJSON(cmd, task)
			}
			printSuccess(cmd.OutOrStdout(), "Added %s", task.Title)
			return nil
		})
	},
}

var suggestDismissCmd = &cobra.Command{
	Use:   "dismiss <number|id>",
	Short: "Hide a suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			sg, err := pickSuggestion(ctx, sess, args[0])
			if err != nil {
				return err
			}
			if err := sess.DismissSuggestion(ctx, sg.ID); err != nil {
				return err
			}
			if !outputJSON {
				printSuccess(cmd.OutOrStdout(), "Dismissed %s", sg.Title)
			}
			return nil
		})
	},
}

// loadSuggestions lists suggestions for the current chapter. Without the
// story loaded it falls back to chapter-less suggestions.
func loadSuggestions(ctx context.Context, sess *chronoquest.Session) ([]chronoquest.Suggestion, error) {
	var chapter *chronoquest.Chapter
	if st, err := sess.Story(ctx); err == nil {
		chapter = st.CurrentChapter()
	}
	return sess.Suggestions(ctx, chapter)
}

// pickSuggestion accepts a 1-based list number or a suggestion id.
func pickSuggestion(ctx context.Context, sess *chronoquest.Session, arg string) (chronoquest.Suggestion, error) {
	list, err := loadSuggestions(ctx, sess)
	if err != nil {
		return chronoquest.Suggestion{}, err
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(list) {
			return chronoquest.Suggestion{}, fmt.Errorf("no suggestion %d (have %d)", n, len(list))
		}
		return list[n-1], nil
	}
	for _, sg := range list {
		if sg.ID == arg {
			return sg, nil
		}
	}
	return chronoquest.Suggestion{}, fmt.Errorf("no suggestion %q", arg)
}

func init() {
	rewardCmd.AddCommand(rewardClaimCmd)
	statCmd.AddCommand(statAllocateCmd)
	profileCmd.AddCommand(profileRenameCmd)
	suggestCmd.AddCommand(suggestListCmd, suggestAcceptCmd, suggestDismissCmd)
	rootCmd.AddCommand(rewardCmd, statCmd, profileCmd, achievementsCmd, suggestCmd)
}
