package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

var (
	storyUnlock   string
	storyAddQuest string
)

var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Follow the story and unlock chapters",
	Long: `Show the current chapter, its quests, and what the next chapter needs.

--unlock unlocks a chapter once its requirements are met. --add-quest turns
a story quest into one of your quests.`,
	Example: `  chronoquest story
  chronoquest story --unlock ch2
  chronoquest story --add-quest ch1_q1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			return runStory(ctx, cmd, sess)
		})
	},
}

func init() {
	storyCmd.Flags().StringVar(&storyUnlock, "unlock", "", "Unlock a chapter by id or code")
	storyCmd.Flags().StringVar(&storyAddQuest, "add-quest", "", "Add a story quest by code")
	rootCmd.AddCommand(storyCmd)
}

func runStory(ctx context.Context, cmd *cobra.Command, sess *chronoquest.Session) error {
	w := cmd.OutOrStdout()

	if storyAddQuest != "" {
		task, err := sess.AddStoryQuest(ctx, storyAddQuest)
		if err != nil {
			return err
		}
		if outputJSON {
			return outputAsJSON(cmd, task)
		}
		printSuccess(w, "Added story quest %s", task.Title)
		return nil
	}

	var (
		st  *chronoquest.StoryState
		err error
	)
	if storyUnlock != "" {
		st, err = sess.UnlockChapter(ctx, storyUnlock)
		if err != nil {
			return err
		}
		if !outputJSON {
			if ch := st.Chapter(storyUnlock); ch != nil {
				printSuccess(w, "Unlocked %s", ch.Title)
			}
		}
	} else {
		st, err = sess.Story(ctx)
		if err != nil {
			return err
		}
	}

	current, next := st.CurrentChapter(), st.NextChapter()
	var reqs []chronoquest.Requirement
	if next != nil {
		reqs = sess.ChapterRequirements(st, *next)
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]any{
			"current":      current,
			"next":         next,
			"requirements": reqs,
			"quests":       chapterQuests(st, current),
		})
	}
	fmt.Fprintln(w, renderMarkdown(storyMarkdown(st, current, next, reqs, sess.CompletedEver(), sess.Tasks())))
	return nil
}

func chapterQuests(st *chronoquest.StoryState, ch *chronoquest.Chapter) []chronoquest.StoryQuest {
	if ch == nil {
		return nil
	}
	return st.ChapterQuests(ch.ID)
}

// storyMarkdown lays out the chapter view as markdown for glamour.
func storyMarkdown(st *chronoquest.StoryState, current, next *chronoquest.Chapter, reqs []chronoquest.Requirement, completedEver map[string]bool, tasks []chronoquest.Task) string {
	var sb strings.Builder
	if current == nil {
		sb.WriteString("No story chapters yet.\n")
		return sb.String()
	}

	byQuestCode := map[string]chronoquest.Task{}
	for _, t := range tasks {
		if t.StoryQuestCode != "" {
			byQuestCode[t.StoryQuestCode] = t
		}
	}

	fmt.Fprintf(&sb, "# %s\n\n", current.Title)
	if current.Logline != "" {
		fmt.Fprintf(&sb, "*%s*\n\n", current.Logline)
	}
	if current.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", current.Summary)
	}

	if quests := st.ChapterQuests(current.ID); len(quests) > 0 {
		sb.WriteString("## Quests\n\n")
		for _, q := range quests {
			mark := " "
			state := "not added"
			if t, ok := byQuestCode[q.Code]; ok {
				state = "added"
				if completedEver[t.ID] {
					mark, state = "x", "done"
				}
			}
			fmt.Fprintf(&sb, "- [%s] **%s** (`%s`, %s, %d coins)\n", mark, q.Title, q.Code, state, q.RewardCoins)
		}
		sb.WriteString("\n")
	}

	if next == nil {
		sb.WriteString("You have reached the end of the story so far.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "## Next: %s\n\n", next.Title)
	if len(reqs) == 0 {
		fmt.Fprintf(&sb, "Ready to unlock with `chronoquest story --unlock %s`.\n", next.Code)
		return sb.String()
	}
	for _, r := range reqs {
		mark := " "
		if r.Satisfied {
			mark = "x"
		}
		fmt.Fprintf(&sb, "- [%s] %s", mark, r.Label)
		if r.Info != "" {
			fmt.Fprintf(&sb, " (%s)", r.Info)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
