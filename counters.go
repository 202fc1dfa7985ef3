package chronoquest

import (
	"context"
	"fmt"
	"maps"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/google/uuid"
)

type counterCountRow struct {
	TaskID string `json:"task_id"`
	Count  int    `json:"count"`
}

// LoadCounters loads today's (UTC) counters. On a network error the cached
// counters are served instead.
func (s *Session) LoadCounters(ctx context.Context) (map[string]int, error) {
	api, err := s.api()
	if err == nil {
		var rows []counterCountRow
		q := backend.Q().Select("task_id,count").Eq("user_id", s.userID).Eq("counted_on", s.todayUTC())
		err = remoteError("select task_daily_counters", api.Select(ctx, "task_daily_counters", q, &rows))
		if err == nil {
			counts := make(map[string]int, len(rows))
			for _, r := range rows {
				counts[r.TaskID] = r.Count
			}
			s.mu.Lock()
			s.counters = counts
			s.mu.Unlock()
			s.cachePut(s.countsKey(), counts)
			return maps.Clone(counts), nil
		}
	}
	if !IsNetworkError(err) {
		return nil, err
	}

	var cached map[string]int
	if s.cacheGet(s.countsKey(), &cached) {
		s.mu.Lock()
		s.counters = cached
		s.mu.Unlock()
		return maps.Clone(cached), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.counters), err
}

// SetCounter records today's count for a task. While offline, or when the
// write fails on the network, the value is queued and shows up through
// Counter right away. The returned Outcome tells which happened.
func (s *Session) SetCounter(ctx context.Context, taskID string, count int) (Outcome, error) {
	if err := validTaskID(taskID); err != nil {
		return "", err
	}
	if count < 0 {
		return "", &ValidationError{Field: "count", Message: "must not be negative"}
	}
	if s.isClosed() {
		return "", ErrSessionClosed
	}

	countedOn := s.todayUTC()
	if len(s.PendingOps()) > 0 {
		return s.setCounterBehindBacklog(ctx, taskID, countedOn, count)
	}
	err := backendRemote{c: s.c}.UpsertCounter(ctx, s.userID, taskID, countedOn, count)
	switch {
	case err == nil:
		s.mu.Lock()
		s.counters[taskID] = count
		counts := maps.Clone(s.counters)
		s.mu.Unlock()
		s.cachePut(s.countsKey(), counts)
		s.drainIfPending()
		return OutcomeCommitted, nil

	case IsNetworkError(err):
		op := SetCounterOp(s.userID, taskID, countedOn, count, s.now())
		if err := s.c.queue.Enqueue(op); err != nil {
			return "", err
		}
		s.c.debug.LogSync("enqueue", fmt.Sprintf("set-counter %s=%d", taskID, count))
		return OutcomeQueued, nil

	default:
		return "", err
	}
}

// setCounterBehindBacklog queues the write after the user's pending
// operations and drains, so an older queued count never lands after it.
func (s *Session) setCounterBehindBacklog(ctx context.Context, taskID, countedOn string, count int) (Outcome, error) {
	op := SetCounterOp(s.userID, taskID, countedOn, count, s.now())
	if err := s.c.queue.Enqueue(op); err != nil {
		return "", err
	}
	s.c.debug.LogSync("enqueue", fmt.Sprintf("set-counter %s=%d behind backlog", taskID, count))

	res := s.Drain(ctx)
	notifyAll(s.c.config.Notifier, res.Events)
	for _, p := range s.PendingOps() {
		if sameOp(p, op) {
			if res.Skipped && !res.Interrupted {
				// A drain already running may have missed op.
				s.triggerDrain()
			}
			return OutcomeQueued, nil
		}
	}
	s.mu.Lock()
	s.counters[taskID] = count
	counts := maps.Clone(s.counters)
	s.mu.Unlock()
	s.cachePut(s.countsKey(), counts)
	return OutcomeCommitted, nil
}

// AdjustCounter moves today's count by delta, never below zero, and returns
// the new value.
func (s *Session) AdjustCounter(ctx context.Context, taskID string, delta int) (int, Outcome, error) {
	next := max(0, s.Counter(taskID)+delta)
	outcome, err := s.SetCounter(ctx, taskID, next)
	if err != nil {
		return 0, "", err
	}
	return next, outcome, nil
}

// CounterReady reports whether a count task has reached its target. Tasks
// without a counter are always ready.
func (s *Session) CounterReady(t Task) bool {
	if !t.RequiresCount {
		return true
	}
	return s.Counter(t.ID) >= t.Target()
}

// validTaskID rejects ids the backend could never accept, so they are not
// queued for replay.
func validTaskID(id string) error {
	if err := uuid.Validate(id); err != nil {
		return &ValidationError{Field: "task_id", Message: err.Error()}
	}
	return nil
}
