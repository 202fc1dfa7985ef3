package chronoquest

import (
	"context"
	"fmt"

	"github.com/chronoquest/chronoquest/internal/game"
)

// Outcome says whether a write reached the backend or was queued.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeQueued    Outcome = "queued"
)

// CompleteOptions selects consumables to spend on a completion. Empty ids
// use nothing.
type CompleteOptions struct {
	FatigueItemID string
	XPItemID      string
}

// CompletionResult is the outcome of CompleteTask.
type CompletionResult struct {
	TaskID  string  `json:"task_id"`
	Reward  Reward  `json:"reward"`
	Outcome Outcome `json:"outcome"`
	Events  []Event `json:"events,omitempty"`
}

// CompleteTask marks a task done for today and grants its reward.
//
// When the backend is unreachable the completion is queued instead; the
// backend credits the base XP on replay, but no bonus XP, coins or item use
// are granted. Failures of individual reward steps after a committed
// completion are reported as EventFailed and do not fail the call.
func (s *Session) CompleteTask(ctx context.Context, taskID string, opts CompleteOptions) (*CompletionResult, error) {
	task, err := s.Task(taskID)
	if err != nil {
		return nil, err
	}
	if err := validTaskID(task.ID); err != nil {
		return nil, err
	}
	if s.DoneToday()[task.ID] {
		return nil, fmt.Errorf("%w: done today", ErrAlreadyCompleted)
	}
	if task.Repeat() == RepeatOnce && s.CompletedEver()[task.ID] {
		return nil, fmt.Errorf("%w: one-time quest", ErrAlreadyCompleted)
	}
	if !s.CounterReady(task) {
		return nil, fmt.Errorf("%w: %d/%d %s", ErrCountNotReached, s.Counter(task.ID), task.Target(), task.Unit)
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	online := s.c.network.Online() && s.c.api != nil
	var (
		before      []AchievementState
		fatigueItem *InventoryItem
		xpItem      *InventoryItem
	)
	if online {
		before = s.achievementsBefore(ctx)
		fatigueItem, xpItem = s.selectedItems(ctx, opts)
	}

	in := s.rewardInput(ctx, task, online)
	if fatigueItem != nil {
		in.ItemFatigueSteps = game.ItemFatigueSteps(fatigueItem.EffectValue)
	}
	if xpItem != nil {
		in.ItemFlatXP = game.ItemFlatXP(xpItem.EffectValue)
	}

	err = backendRemote{c: s.c}.InsertCompletion(ctx, s.userID, task.ID)
	if IsNetworkError(err) {
		return s.queueCompletion(task, in)
	}
	if err != nil {
		return nil, err
	}

	reward := game.ComputeReward(in)
	res := &CompletionResult{TaskID: task.ID, Reward: reward, Outcome: OutcomeCommitted}
	s.c.logger.Info("task completed",
		"user_id", s.userID, "task_id", task.ID,
		"final_xp", reward.FinalXP, "bonus_xp", reward.BonusXP, "coins", reward.Coins)

	fail := func(step string, err error) {
		s.c.logger.Warn("complete: reward step failed", "step", step, "task_id", task.ID, "err", err)
		res.Events = append(res.Events, Event{Kind: EventFailed, TaskID: task.ID, Name: step, Message: err.Error()})
	}

	if err := s.loadCompletions(ctx); err != nil {
		fail("reload completions", err)
	}
	if reward.BonusXP > 0 {
		events, err := s.AddXP(ctx, reward.BonusXP)
		if err != nil {
			fail("bonus xp", err)
		} else {
			res.Events = append(res.Events, Event{Kind: EventXPGranted, TaskID: task.ID, Amount: reward.BonusXP})
			res.Events = append(res.Events, events...)
		}
	}
	if reward.Coins > 0 {
		if err := s.AddCoins(ctx, reward.Coins); err != nil {
			fail("coins", err)
		} else {
			res.Events = append(res.Events, Event{Kind: EventCoinsGranted, TaskID: task.ID, Amount: reward.Coins})
		}
	}
	for _, item := range []*InventoryItem{fatigueItem, xpItem} {
		if item == nil {
			continue
		}
		if err := s.ConsumeItem(ctx, item.ID, 1); err != nil {
			fail("use "+item.Name, err)
			continue
		}
		res.Events = append(res.Events, Event{Kind: EventItemConsumed, TaskID: task.ID, Name: item.Name})
	}

	events, err := s.refreshAfterReward(ctx)
	if err != nil {
		fail("refresh profile", err)
	}
	res.Events = append(res.Events, events...)

	if before != nil {
		after, err := s.Achievements(ctx)
		if err != nil {
			fail("achievements", err)
		}
		for _, a := range NewlyUnlocked(before, after) {
			res.Events = append(res.Events, Event{Kind: EventAchievementUnlocked, TaskID: task.ID, Name: a.Name})
		}
	}

	s.drainIfPending()
	return res, nil
}

// queueCompletion records the completion for later replay. Consumables are
// left untouched, so the reported reward excludes them.
func (s *Session) queueCompletion(task Task, in game.RewardInput) (*CompletionResult, error) {
	op := CompleteTaskOp(s.userID, task.ID, s.now())
	if err := s.c.queue.Enqueue(op); err != nil {
		return nil, err
	}
	s.c.debug.LogSync("enqueue", "complete-task "+task.ID)

	in.ItemFatigueSteps = 0
	in.ItemFlatXP = 0
	return &CompletionResult{
		TaskID:  task.ID,
		Reward:  game.ComputeReward(in),
		Outcome: OutcomeQueued,
		Events:  []Event{{Kind: EventQueued, TaskID: task.ID, Name: task.Title}},
	}, nil
}

// rewardInput gathers the modifiers for task as of now. The fatigue index
// counts every completion today, queued ones included. On the online path
// a missing equipment state is loaded first.
func (s *Session) rewardInput(ctx context.Context, task Task, online bool) game.RewardInput {
	done := len(s.DoneToday())

	s.mu.RLock()
	var stats Stats
	if s.profile != nil {
		stats = s.profile.Stats
	}
	equipment := s.equipment
	s.mu.RUnlock()

	if equipment == nil && online {
		if st, err := s.Equipment(ctx); err == nil {
			equipment = st
		} else {
			s.c.logger.Debug("complete: equipment unavailable", "err", err)
		}
	}
	var bonus game.EquipmentBonus
	if equipment != nil {
		bonus = EquipmentBonuses(equipment.Equipped)
	}

	return game.RewardInput{
		BaseXP:         float64(task.BaseXP),
		CompletedToday: done,
		Category:       task.Category,
		Stats:          stats,
		Equipment:      bonus,
	}
}

// selectedItems resolves the consumables named in opts against the held
// inventory. Items with the wrong effect or no quantity are ignored.
func (s *Session) selectedItems(ctx context.Context, opts CompleteOptions) (fatigue, xp *InventoryItem) {
	if opts.FatigueItemID == "" && opts.XPItemID == "" {
		return nil, nil
	}
	inv, err := s.Inventory(ctx)
	if err != nil {
		s.c.logger.Warn("complete: inventory unavailable", "err", err)
		return nil, nil
	}
	pick := func(id, effect string) *InventoryItem {
		if id == "" {
			return nil
		}
		for i := range inv {
			if inv[i].ID == id && inv[i].EffectType == effect && inv[i].Quantity > 0 {
				item := inv[i]
				return &item
			}
		}
		return nil
	}
	return pick(opts.FatigueItemID, game.EffectFatigueReduce), pick(opts.XPItemID, game.EffectXPBoost)
}

func (s *Session) achievementsBefore(ctx context.Context) []AchievementState {
	s.mu.RLock()
	before := s.achievements
	s.mu.RUnlock()
	if before != nil {
		return before
	}
	before, err := s.Achievements(ctx)
	if err != nil {
		s.c.logger.Debug("complete: achievements unavailable", "err", err)
		return nil
	}
	return before
}

// refreshAfterReward reloads the profile and streak once the backend has
// credited the completion.
func (s *Session) refreshAfterReward(ctx context.Context) ([]Event, error) {
	before := s.Profile()
	p, events, err := s.ensureProfile(ctx)
	if err != nil {
		return nil, err
	}
	if before != nil && p.Level > before.Level && !hasLevelUp(events) {
		events = append(events, Event{Kind: EventLevelUp, Amount: p.Level})
	}
	if _, err := s.Streak(ctx); err != nil {
		return events, err
	}
	return events, nil
}

// Preview returns the XP a task would earn as the position-th completion
// after those already done today. Consumables are never included.
func (s *Session) Preview(taskID string, position int) (Preview, error) {
	task, err := s.Task(taskID)
	if err != nil {
		return Preview{}, err
	}
	in := s.rewardInput(context.Background(), task, false)
	return game.PreviewReward(in, position), nil
}

func hasLevelUp(events []Event) bool {
	for _, e := range events {
		if e.Kind == EventLevelUp {
			return true
		}
	}
	return false
}
