package chronoquest

import (
	"context"
	"time"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/chronoquest/chronoquest/internal/game"
	"github.com/google/uuid"
)

// SourceLocal marks suggestions generated on the device.
const SourceLocal = "local"

const suggestionColumns = "id,user_id,chapter_id,title,description,notes,task_category,effort_level," +
	"created_at,accepted_at,dismissed_at,source"

// Suggestions returns the open quest suggestions, newest first. When there
// are none, a pair is generated from the built-in pool, seeded by the
// chapter code, and stored best-effort.
func (s *Session) Suggestions(ctx context.Context, chapter *Chapter) ([]Suggestion, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	var open []Suggestion
	q := backend.Q().
		Select(suggestionColumns).
		Eq("user_id", s.userID).
		IsNull("accepted_at").
		IsNull("dismissed_at").
		Order("created_at", false)
	if err := api.Select(ctx, "ai_quest_suggestions", q, &open); err != nil {
		return nil, remoteError("select ai_quest_suggestions", err)
	}
	if len(open) > 0 {
		return open, nil
	}

	local := s.localSuggestions(chapter)
	if err := api.Insert(ctx, "ai_quest_suggestions", local, nil); err != nil {
		s.c.logger.Warn("suggestions: store failed", "user_id", s.userID, "err", err)
	}
	return local, nil
}

func (s *Session) localSuggestions(chapter *Chapter) []Suggestion {
	seed, chapterID := "", ""
	if chapter != nil {
		seed, chapterID = chapter.Code, chapter.ID
	}
	now := s.now().UTC().Format(time.RFC3339)
	templates := game.LocalSuggestions(seed)
	out := make([]Suggestion, len(templates))
	for i, t := range templates {
		out[i] = Suggestion{
			ID:           uuid.NewString(),
			UserID:       s.userID,
			ChapterID:    chapterID,
			Title:        t.Title,
			Description:  t.Description,
			Notes:        t.Notes,
			TaskCategory: t.Category,
			EffortLevel:  t.Effort,
			CreatedAt:    now,
			Source:       SourceLocal,
		}
	}
	return out
}

// AcceptSuggestion turns a suggestion into a task and marks it accepted.
func (s *Session) AcceptSuggestion(ctx context.Context, sg Suggestion) (*Task, error) {
	effort := sg.EffortLevel
	if effort == "" {
		effort = EffortStandard
	}
	category := sg.TaskCategory
	if category == "" {
		category = CategoryStudy
	}
	notes := sg.Notes
	if notes == "" {
		notes = sg.Description
	}
	task, err := s.AddTask(ctx, NewTask{
		Title:    sg.Title,
		Category: category,
		BaseXP:   BaseXPForEffort(effort),
		Effort:   effort,
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}
	if err := s.markSuggestion(ctx, sg.ID, "accepted_at"); err != nil {
		return task, err
	}
	return task, nil
}

// DismissSuggestion hides a suggestion.
func (s *Session) DismissSuggestion(ctx context.Context, id string) error {
	return s.markSuggestion(ctx, id, "dismissed_at")
}

func (s *Session) markSuggestion(ctx context.Context, id, column string) error {
	api, err := s.api()
	if err != nil {
		return err
	}
	patch := map[string]any{column: s.now().UTC().Format(time.RFC3339)}
	q := backend.Q().Eq("id", id).Eq("user_id", s.userID)
	if err := api.Update(ctx, "ai_quest_suggestions", q, patch, nil); err != nil {
		return remoteError("update ai_quest_suggestions", err)
	}
	return nil
}
