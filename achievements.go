package chronoquest

import (
	"context"
	"slices"

	"github.com/chronoquest/chronoquest/internal/backend"
	"golang.org/x/sync/errgroup"
)

type unlockRow struct {
	AchievementID string `json:"achievement_id"`
	UnlockedAt    string `json:"unlocked_at"`
}

// Achievements loads the active achievements, oldest first, marked with
// the user's unlocks.
func (s *Session) Achievements(ctx context.Context) ([]AchievementState, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}

	var (
		all     []Achievement
		unlocks []unlockRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := backend.Q().Select("*").Eq("active", true).Order("created_at", true)
		return remoteError("select achievements", api.Select(gctx, "achievements", q, &all))
	})
	g.Go(func() error {
		q := backend.Q().Select("achievement_id,unlocked_at").Eq("user_id", s.userID)
		return remoteError("select user_achievements", api.Select(gctx, "user_achievements", q, &unlocks))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unlockedAt := make(map[string]string, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.AchievementID] = u.UnlockedAt
	}
	out := make([]AchievementState, len(all))
	for i, a := range all {
		at, ok := unlockedAt[a.ID]
		out[i] = AchievementState{Achievement: a, Unlocked: ok, UnlockedAt: at}
	}

	s.mu.Lock()
	s.achievements = out
	s.mu.Unlock()
	return slices.Clone(out), nil
}

// NewlyUnlocked returns the achievements unlocked in after but not in
// before.
func NewlyUnlocked(before, after []AchievementState) []AchievementState {
	was := make(map[string]bool, len(before))
	for _, a := range before {
		if a.Unlocked {
			was[a.ID] = true
		}
	}
	var out []AchievementState
	for _, a := range after {
		if a.Unlocked && !was[a.ID] {
			out = append(out, a)
		}
	}
	return out
}
