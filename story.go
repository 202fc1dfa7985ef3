package chronoquest

import (
	"context"
	"fmt"
	"strings"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/chronoquest/chronoquest/internal/game"
	"golang.org/x/sync/errgroup"
)

const chapterColumns = "id,code,order_index,title,summary,logline,image_url,required_stat_key," +
	"required_stat_value,required_streak,required_quest_code,reward_equipment_id"

const storyQuestColumns = "id,code,chapter_id,order_index,title,description,notes,task_category,effort_level," +
	"reward_coins,task_title,task_requires_count,task_target_count,task_unit,suggested_by_ai"

// StoryState is the story catalogue and the user's place in it.
type StoryState struct {
	Chapters []Chapter         `json:"chapters"`
	Quests   []StoryQuest      `json:"quests"`
	Progress []ChapterProgress `json:"progress"`
	Unlocked map[string]bool   `json:"unlocked"`
}

// Position returns the indexes of the current and next chapter. Either is
// -1 when there is none.
func (st *StoryState) Position() (current, next int) {
	ids := make([]string, len(st.Chapters))
	for i, c := range st.Chapters {
		ids[i] = c.ID
	}
	return game.ChapterPosition(ids, st.Unlocked)
}

// CurrentChapter is the last chapter of the unlocked run from the start, or
// the first chapter when none is unlocked.
func (st *StoryState) CurrentChapter() *Chapter {
	current, _ := st.Position()
	if current < 0 {
		return nil
	}
	return &st.Chapters[current]
}

// NextChapter is the first locked chapter.
func (st *StoryState) NextChapter() *Chapter {
	_, next := st.Position()
	if next < 0 {
		return nil
	}
	return &st.Chapters[next]
}

// Chapter finds a chapter by id or code.
func (st *StoryState) Chapter(idOrCode string) *Chapter {
	for i := range st.Chapters {
		if st.Chapters[i].ID == idOrCode || st.Chapters[i].Code == idOrCode {
			return &st.Chapters[i]
		}
	}
	return nil
}

// Quest finds a story quest by code.
func (st *StoryState) Quest(code string) *StoryQuest {
	for i := range st.Quests {
		if st.Quests[i].Code == code {
			return &st.Quests[i]
		}
	}
	return nil
}

// ChapterQuests returns the quests attached to a chapter, in order.
func (st *StoryState) ChapterQuests(chapterID string) []StoryQuest {
	var out []StoryQuest
	for _, q := range st.Quests {
		if q.ChapterID == chapterID {
			out = append(out, q)
		}
	}
	return out
}

// Story loads chapters, quests and the user's unlocks.
func (s *Session) Story(ctx context.Context) (*StoryState, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}

	st := &StoryState{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := backend.Q().Select(chapterColumns).Order("order_index", true)
		return remoteError("select story_chapters", api.Select(gctx, "story_chapters", q, &st.Chapters))
	})
	g.Go(func() error {
		q := backend.Q().Select(storyQuestColumns).Order("order_index", true)
		return remoteError("select story_quests", api.Select(gctx, "story_quests", q, &st.Quests))
	})
	g.Go(func() error {
		q := backend.Q().Select("chapter_id,unlocked_at").Eq("user_id", s.userID)
		return remoteError("select user_story_progress", api.Select(gctx, "user_story_progress", q, &st.Progress))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st.Unlocked = make(map[string]bool, len(st.Progress))
	for _, p := range st.Progress {
		st.Unlocked[p.ChapterID] = true
	}
	s.mu.Lock()
	s.story = st
	s.mu.Unlock()
	return st, nil
}

// QuestStates reports, per story quest code, whether the user has a task
// for it and whether such a task was ever completed.
func (s *Session) QuestStates() map[string]game.QuestState {
	ever := s.CompletedEver()
	out := map[string]game.QuestState{}
	for _, t := range s.Tasks() {
		if t.StoryQuestCode == "" {
			continue
		}
		st := out[t.StoryQuestCode]
		st.HasTask = true
		if ever[t.ID] {
			st.Completed = true
		}
		out[t.StoryQuestCode] = st
	}
	return out
}

// Requirements evaluates a chapter's unlock conditions.
func Requirements(ch Chapter, quests []StoryQuest, stats Stats, streak int, questStates map[string]game.QuestState) []Requirement {
	gate := game.ChapterGate{
		StatKey:   ch.RequiredStatKey,
		StatValue: ch.RequiredStatValue,
		Streak:    ch.RequiredStreak,
		QuestCode: ch.RequiredQuestCode,
	}
	for _, q := range quests {
		if q.Code == ch.RequiredQuestCode {
			gate.QuestName = q.Title
			break
		}
	}
	return game.EvaluateGate(gate, stats, streak, questStates)
}

// ChapterRequirements evaluates ch against the session's loaded state.
func (s *Session) ChapterRequirements(st *StoryState, ch Chapter) []Requirement {
	var stats Stats
	if p := s.Profile(); p != nil {
		stats = p.Stats
	}
	return Requirements(ch, st.Quests, stats, s.CachedStreak().Current, s.QuestStates())
}

// UnlockChapter unlocks a chapter. Unlocking the next chapter requires its
// conditions to be met.
func (s *Session) UnlockChapter(ctx context.Context, chapterID string) (*StoryState, error) {
	st, err := s.Story(ctx)
	if err != nil {
		return nil, err
	}
	ch := st.Chapter(chapterID)
	if ch == nil {
		return nil, fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
	}
	if next := st.NextChapter(); next != nil && next.ID == ch.ID {
		reqs := s.ChapterRequirements(st, *ch)
		if !game.AllSatisfied(reqs) {
			var missing []string
			for _, r := range reqs {
				if !r.Satisfied {
					missing = append(missing, r.Label)
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrRequirementsNotMet, strings.Join(missing, ", "))
		}
	}

	api, err := s.api()
	if err != nil {
		return nil, err
	}
	args := map[string]any{"p_user_id": s.userID, "p_chapter_id": ch.ID}
	if err := api.RPC(ctx, "unlock_story_chapter", args, nil); err != nil {
		return nil, remoteError("unlock_story_chapter", err)
	}
	s.c.logger.Info("chapter unlocked", "user_id", s.userID, "chapter", ch.Code)
	return s.Story(ctx)
}

// AddStoryQuest turns a story quest into a task.
func (s *Session) AddStoryQuest(ctx context.Context, questCode string) (*Task, error) {
	st, err := s.Story(ctx)
	if err != nil {
		return nil, err
	}
	q := st.Quest(questCode)
	if q == nil {
		return nil, fmt.Errorf("%w: story quest %s", ErrTaskNotFound, questCode)
	}
	return s.AddTask(ctx, newTaskFromQuest(*q))
}

func newTaskFromQuest(q StoryQuest) NewTask {
	title := q.TaskTitle
	if title == "" {
		title = q.Title
	}
	category := q.TaskCategory
	if category == "" {
		category = CategoryStudy
	}
	effort := q.EffortLevel
	if effort == "" {
		effort = EffortStandard
	}
	notes := q.Notes
	if notes == "" {
		notes = q.Description
	}
	return NewTask{
		Title:          title,
		Category:       category,
		BaseXP:         BaseXPForEffort(effort),
		Effort:         effort,
		RequiresCount:  q.TaskRequiresCount,
		TargetCount:    q.TaskTargetCount,
		Unit:           q.TaskUnit,
		StoryQuestCode: q.Code,
		Notes:          notes,
	}
}
