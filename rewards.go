package chronoquest

import (
	"context"
	"strings"
	"time"

	"github.com/chronoquest/chronoquest/internal/backend"
)

// Streak loads the user's streak. A user with no streak row has zeros.
func (s *Session) Streak(ctx context.Context) (Streak, error) {
	api, err := s.api()
	if err != nil {
		return s.CachedStreak(), err
	}
	var rows []Streak
	q := backend.Q().
		Select("current_streak,longest_streak,last_completed_date,logged_today,last_login_at").
		Eq("user_id", s.userID).
		Limit(1)
	if err := api.Select(ctx, "user_streaks", q, &rows); err != nil {
		return s.CachedStreak(), remoteError("select user_streaks", err)
	}
	var st Streak
	if len(rows) > 0 {
		st = rows[0]
	}
	s.mu.Lock()
	s.streak = st
	s.mu.Unlock()
	return st, nil
}

// CachedStreak returns the streak from the last load.
func (s *Session) CachedStreak() Streak {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streak
}

// DailyReward loads the last daily reward claim, or nil if none was ever
// made.
func (s *Session) DailyReward(ctx context.Context) (*DailyRewardState, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	var rows []DailyRewardState
	q := backend.Q().Select("last_claimed_at,coins_awarded,streak_awarded").Eq("user_id", s.userID).Limit(1)
	if err := api.Select(ctx, "user_daily_rewards", q, &rows); err != nil {
		return nil, remoteError("select user_daily_rewards", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CanClaimDailyReward reports whether state allows a claim on now's UTC
// date.
func CanClaimDailyReward(state *DailyRewardState, now time.Time) bool {
	if state == nil || state.LastClaimedAt == "" {
		return true
	}
	return !strings.HasPrefix(state.LastClaimedAt, now.UTC().Format(time.DateOnly))
}

// ClaimDailyReward claims today's reward and returns the grant together
// with the updated state.
func (s *Session) ClaimDailyReward(ctx context.Context) (*DailyRewardClaim, *DailyRewardState, error) {
	api, err := s.api()
	if err != nil {
		return nil, nil, err
	}
	var claim DailyRewardClaim
	if err := api.RPC(ctx, "claim_daily_reward", map[string]any{}, &claim); err != nil {
		return nil, nil, remoteError("claim_daily_reward", err)
	}
	s.c.logger.Info("daily reward claimed", "user_id", s.userID, "coins", claim.Coins, "streak_award", claim.StreakAward)

	state, err := s.DailyReward(ctx)
	if err != nil {
		s.c.logger.Warn("rewards: reload after claim failed", "user_id", s.userID, "err", err)
	}
	return &claim, state, nil
}
