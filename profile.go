package chronoquest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/chronoquest/chronoquest/internal/game"
)

const profileColumns = "id,level,xp,unspent_points,stats_json,coins,display_name,created_at"

// DefaultDisplayName derives a name for a new profile from the last four
// alphanumeric characters of the user id.
func DefaultDisplayName(userID string) string {
	var tail []rune
	runes := []rune(userID)
	for i := len(runes) - 1; i >= 0 && len(tail) < 4; i-- {
		if r := runes[i]; r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			tail = append([]rune{r}, tail...)
		}
	}
	if len(tail) == 0 {
		return fmt.Sprintf("Adventurer%04d", rand.IntN(10000))
	}
	return "Adventurer" + string(tail)
}

// Profile returns the last loaded profile, or nil.
func (s *Session) Profile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

func (s *Session) setProfile(p *Profile) {
	cp := *p
	s.mu.Lock()
	s.profile = &cp
	s.mu.Unlock()
}

func (s *Session) fetchProfile(ctx context.Context, api *backend.Client) (*Profile, error) {
	var rows []Profile
	q := backend.Q().Select(profileColumns).Eq("id", s.userID).Limit(1)
	if err := api.Select(ctx, "profiles", q, &rows); err != nil {
		return nil, remoteError("select profiles", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

type newProfileRow struct {
	ID            string `json:"id"`
	Level         int    `json:"level"`
	XP            int    `json:"xp"`
	UnspentPoints int    `json:"unspent_points"`
	Stats         Stats  `json:"stats_json"`
	Coins         int    `json:"coins"`
	DisplayName   string `json:"display_name"`
}

// EnsureProfile loads the user's profile, creating a level 1 profile on
// first use, and brings its level in line with its XP. A level gained that
// way is reported to the configured Notifier.
func (s *Session) EnsureProfile(ctx context.Context) (*Profile, error) {
	p, events, err := s.ensureProfile(ctx)
	notifyAll(s.c.config.Notifier, events)
	return p, err
}

func (s *Session) ensureProfile(ctx context.Context) (*Profile, []Event, error) {
	api, err := s.api()
	if err != nil {
		return nil, nil, err
	}

	p, err := s.fetchProfile(ctx, api)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		row := newProfileRow{ID: s.userID, Level: 1, DisplayName: DefaultDisplayName(s.userID)}
		err := api.Insert(ctx, "profiles", []newProfileRow{row}, nil)
		if err != nil && !IsDuplicate(err) {
			return nil, nil, remoteError("insert profiles", err)
		}
		if p, err = s.fetchProfile(ctx, api); err != nil {
			return nil, nil, err
		}
		if p == nil {
			return nil, nil, &RemoteError{Operation: "select profiles", Code: "not_found", Message: "profile missing after insert"}
		}
		s.c.logger.Info("profile created", "user_id", s.userID, "display_name", p.DisplayName)
	}

	p, events := s.syncLevel(ctx, api, p)
	s.setProfile(p)
	return p, events, nil
}

// syncLevel raises the stored level to what the XP pays for, granting one
// unspent point per level gained. The level never goes down. A failed update
// keeps the old row.
func (s *Session) syncLevel(ctx context.Context, api *backend.Client, p *Profile) (*Profile, []Event) {
	target := game.LevelFromXP(p.XP)
	if target <= p.Level {
		return p, nil
	}
	delta := target - p.Level

	patch := map[string]any{"level": target, "unspent_points": p.UnspentPoints + delta}
	var rows []Profile
	if err := api.Update(ctx, "profiles", backend.Q().Eq("id", s.userID), patch, &rows); err != nil {
		s.c.logger.Warn("profile: level sync failed", "user_id", s.userID, "level", p.Level, "target", target, "err", err)
		return p, nil
	}

	next := *p
	if len(rows) > 0 {
		next = rows[0]
	} else {
		next.Level = target
		next.UnspentPoints += delta
	}
	s.c.logger.Info("level up", "user_id", s.userID, "level", next.Level, "unspent_points", next.UnspentPoints)
	return &next, []Event{{Kind: EventLevelUp, Amount: next.Level}}
}

// AllocateStat spends one unspent point on key. The write only succeeds if
// the point count is unchanged since it was read.
func (s *Session) AllocateStat(ctx context.Context, key StatKey) (*Profile, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStat, key)
	}
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	p, err := s.fetchProfile(ctx, api)
	if err != nil {
		return nil, err
	}
	if p == nil || p.UnspentPoints <= 0 {
		return nil, ErrNoUnspentPoints
	}

	stats := p.Stats.With(key, p.Stats.Get(key)+1)
	patch := map[string]any{"stats_json": stats, "unspent_points": p.UnspentPoints - 1}
	q := backend.Q().Eq("id", s.userID).Eq("unspent_points", p.UnspentPoints)

	var rows []Profile
	if err := api.Update(ctx, "profiles", q, patch, &rows); err != nil {
		return nil, remoteError("allocate stat", err)
	}
	if len(rows) == 0 {
		return nil, &RemoteError{Operation: "allocate stat", Code: "conflict", Message: "profile changed concurrently"}
	}
	s.setProfile(&rows[0])
	return &rows[0], nil
}

// AddXP adds n XP and syncs the level, returning a level_up event when the
// level rises. n <= 0 is a no-op.
func (s *Session) AddXP(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		return nil, nil
	}
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	p, err := s.fetchProfile(ctx, api)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &RemoteError{Operation: "add xp", Code: "not_found", Message: "no profile"}
	}

	var rows []Profile
	patch := map[string]any{"xp": p.XP + n}
	if err := api.Update(ctx, "profiles", backend.Q().Eq("id", s.userID), patch, &rows); err != nil {
		return nil, remoteError("add xp", err)
	}
	next := *p
	if len(rows) > 0 {
		next = rows[0]
	} else {
		next.XP += n
	}

	updated, events := s.syncLevel(ctx, api, &next)
	s.setProfile(updated)
	return events, nil
}

// AddCoins adds n coins. n <= 0 is a no-op.
func (s *Session) AddCoins(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	api, err := s.api()
	if err != nil {
		return err
	}
	p, err := s.fetchProfile(ctx, api)
	if err != nil {
		return err
	}
	if p == nil {
		return &RemoteError{Operation: "add coins", Code: "not_found", Message: "no profile"}
	}

	var rows []Profile
	patch := map[string]any{"coins": p.Coins + n}
	if err := api.Update(ctx, "profiles", backend.Q().Eq("id", s.userID), patch, &rows); err != nil {
		return remoteError("add coins", err)
	}
	next := *p
	if len(rows) > 0 {
		next = rows[0]
	} else {
		next.Coins += n
	}
	s.setProfile(&next)
	return nil
}

// UpdateDisplayName renames the player.
func (s *Session) UpdateDisplayName(ctx context.Context, name string) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyDisplayName
	}
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	var rows []Profile
	patch := map[string]any{"display_name": name}
	if err := api.Update(ctx, "profiles", backend.Q().Eq("id", s.userID), patch, &rows); err != nil {
		return nil, remoteError("update display name", err)
	}
	if len(rows) == 0 {
		return s.EnsureProfile(ctx)
	}
	s.setProfile(&rows[0])
	return &rows[0], nil
}

// Progress returns the loaded profile's level progress.
func (s *Session) Progress() Progress {
	var xp int
	if p := s.Profile(); p != nil {
		xp = p.XP
	}
	return game.XPProgress(xp)
}

// StatBonusSummary returns the XP bonus percent each stat grants.
func StatBonusSummary(stats Stats) map[StatKey]float64 {
	return game.BonusSummary(stats)
}
