package chronoquest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/chronoquest/chronoquest/internal/game"
)

const taskColumns = "id,user_id,title,category,base_xp,effort_level,repeat_type,weekly_days,due_date," +
	"requires_count,target_count,unit,story_quest_code,notes,created_at"

// DefaultUnit labels count tasks created without one.
const DefaultUnit = "times"

// ListTasks loads the user's tasks, oldest first. On a network error the
// cached list is served instead.
func (s *Session) ListTasks(ctx context.Context) ([]Task, error) {
	api, err := s.api()
	if err == nil {
		var tasks []Task
		q := backend.Q().Select(taskColumns).Eq("user_id", s.userID).Order("created_at", true)
		err = remoteError("select tasks", api.Select(ctx, "tasks", q, &tasks))
		if err == nil {
			s.mu.Lock()
			s.tasks = tasks
			s.mu.Unlock()
			s.cachePut(s.tasksKey(), tasks)
			return tasks, nil
		}
	}
	if !IsNetworkError(err) {
		return nil, err
	}

	var cached []Task
	if s.cacheGet(s.tasksKey(), &cached) {
		s.mu.Lock()
		s.tasks = cached
		s.mu.Unlock()
		return cached, nil
	}
	return s.Tasks(), err
}

// Tasks returns the last loaded task list.
func (s *Session) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

// Task looks up a loaded task by id.
func (s *Session) Task(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// AddTask creates a task, applying defaults, and reloads the list.
func (s *Session) AddTask(ctx context.Context, in NewTask) (*Task, error) {
	row, err := s.newTaskRow(in)
	if err != nil {
		return nil, err
	}
	api, err := s.api()
	if err != nil {
		return nil, err
	}

	var created []Task
	if err := api.Insert(ctx, "tasks", []Task{row}, &created); err != nil {
		return nil, remoteError("insert tasks", err)
	}
	if _, err := s.ListTasks(ctx); err != nil {
		s.c.logger.Warn("tasks: reload after insert failed", "user_id", s.userID, "err", err)
	}
	s.drainIfPending()

	if len(created) > 0 {
		return &created[0], nil
	}
	return &row, nil
}

func (s *Session) newTaskRow(in NewTask) (Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Task{}, &ValidationError{Field: "Title", Message: "required"}
	}
	if !in.Category.IsValid() {
		return Task{}, &ValidationError{Field: "Category", Message: fmt.Sprintf("unknown category %q", in.Category)}
	}

	row := Task{
		UserID:         s.userID,
		Title:          title,
		Category:       in.Category,
		BaseXP:         in.BaseXP,
		EffortLevel:    in.Effort,
		RepeatType:     in.Repeat,
		DueDate:        in.DueDate,
		RequiresCount:  in.RequiresCount,
		StoryQuestCode: in.StoryQuestCode,
		Notes:          in.Notes,
	}
	if row.BaseXP <= 0 {
		row.BaseXP = game.DefaultTaskBaseXP
	}
	if row.EffortLevel == "" {
		row.EffortLevel = EffortStandard
	}
	if !row.EffortLevel.IsValid() {
		return Task{}, &ValidationError{Field: "Effort", Message: fmt.Sprintf("unknown effort %q", in.Effort)}
	}
	if row.RepeatType == "" {
		row.RepeatType = RepeatOnce
	}
	if !row.RepeatType.IsValid() {
		return Task{}, &ValidationError{Field: "Repeat", Message: fmt.Sprintf("unknown repeat type %q", in.Repeat)}
	}
	if row.RepeatType == RepeatWeekly {
		for _, d := range in.WeeklyDays {
			if !slices.Contains(WeekdayKeys[:], d) {
				return Task{}, &ValidationError{Field: "WeeklyDays", Message: fmt.Sprintf("unknown day %q", d)}
			}
		}
		row.WeeklyDays = slices.Clone(in.WeeklyDays)
	}
	if row.RequiresCount {
		row.TargetCount = in.TargetCount
		if row.TargetCount <= 0 {
			row.TargetCount = 1
		}
		row.Unit = in.Unit
		if row.Unit == "" {
			row.Unit = DefaultUnit
		}
	}
	return row, nil
}

// RemoveTask deletes one of the user's tasks.
func (s *Session) RemoveTask(ctx context.Context, id string) error {
	api, err := s.api()
	if err != nil {
		return err
	}
	q := backend.Q().Eq("id", id).Eq("user_id", s.userID)
	if err := api.Delete(ctx, "tasks", q); err != nil {
		return remoteError("delete tasks", err)
	}
	if _, err := s.ListTasks(ctx); err != nil {
		s.c.logger.Warn("tasks: reload after delete failed", "user_id", s.userID, "err", err)
	}
	return nil
}

// TodayTasks returns the tasks scheduled for now's local day: daily and
// once tasks, plus weekly tasks that include today's weekday.
func (s *Session) TodayTasks(now time.Time) []Task {
	return filterToday(s.Tasks(), now)
}

func filterToday(tasks []Task, now time.Time) []Task {
	key := WeekdayKey(now)
	var out []Task
	for _, t := range tasks {
		switch t.Repeat() {
		case RepeatDaily, RepeatOnce:
			out = append(out, t)
		case RepeatWeekly:
			if slices.Contains(t.WeeklyDays, key) {
				out = append(out, t)
			}
		}
	}
	return out
}

// RemainingToday returns today's tasks that are still open, ordered by due
// date (dated tasks first) and then by creation time. Once tasks completed
// on any day are excluded.
func (s *Session) RemainingToday(now time.Time) []Task {
	done := s.DoneToday()
	ever := s.CompletedEver()

	var out []Task
	for _, t := range s.TodayTasks(now) {
		if done[t.ID] {
			continue
		}
		if t.Repeat() == RepeatOnce && ever[t.ID] {
			continue
		}
		out = append(out, t)
	}
	sortRemaining(out)
	return out
}

func sortRemaining(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		switch {
		case a.DueDate != "" && b.DueDate == "":
			return -1
		case a.DueDate == "" && b.DueDate != "":
			return 1
		}
		if c := strings.Compare(a.DueDate, b.DueDate); c != 0 {
			return c
		}
		return strings.Compare(a.CreatedAt, b.CreatedAt)
	})
}

// DoneGroups splits today's completed tasks by repeat type.
type DoneGroups struct {
	Daily  []Task `json:"daily"`
	Weekly []Task `json:"weekly"`
	Once   []Task `json:"once"`
}

// DoneTodayTasks groups the tasks completed today.
func (s *Session) DoneTodayTasks(now time.Time) DoneGroups {
	done := s.DoneToday()
	var g DoneGroups
	for _, t := range s.TodayTasks(now) {
		if !done[t.ID] {
			continue
		}
		switch t.Repeat() {
		case RepeatDaily:
			g.Daily = append(g.Daily, t)
		case RepeatWeekly:
			g.Weekly = append(g.Weekly, t)
		default:
			g.Once = append(g.Once, t)
		}
	}
	return g
}
