package chronoquest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/chronoquest/chronoquest/internal/localstore"
	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

// Session is one signed-in user's view of the game. It holds the state
// confirmed by the last refresh; pending queue entries are merged on top by
// the view methods. A Session is torn down by Client.Logout or Close and is
// never shared between users.
type Session struct {
	id     string
	userID string
	c      *Client

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup

	mu            sync.RWMutex
	closed        bool
	unsubscribe   func()
	profile       *Profile
	tasks         []Task
	doneToday     map[string]bool
	completedEver map[string]bool
	counters      map[string]int
	streak        Streak
	equipment     *EquipmentState
	inventory     []InventoryItem
	achievements  []AchievementState
	story         *StoryState
}

func newSession(c *Client, userID string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:            ulid.Make().String(),
		userID:        userID,
		c:             c,
		bgCtx:         ctx,
		bgCancel:      cancel,
		doneToday:     map[string]bool{},
		completedEver: map[string]bool{},
		counters:      map[string]int{},
	}
}

// start loads cached state, subscribes to online transitions and kicks
// off the initial drain.
func (s *Session) start() {
	var tasks []Task
	if s.cacheGet(s.tasksKey(), &tasks) {
		s.mu.Lock()
		s.tasks = tasks
		s.mu.Unlock()
	}
	var counts map[string]int
	if s.cacheGet(s.countsKey(), &counts) {
		s.mu.Lock()
		s.counters = counts
		s.mu.Unlock()
	}

	unsubscribe := s.c.network.Subscribe(s.triggerDrain)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.triggerDrain()
}

// ID identifies this session instance.
func (s *Session) ID() string { return s.id }

// UserID returns the signed-in user's id.
func (s *Session) UserID() string { return s.userID }

// Close stops background work and waits for in-flight drains. Operations
// interrupted by the close stay queued.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.bgCancel()
	s.wg.Wait()
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) now() time.Time { return s.c.now() }

// Now reads the configured clock.
func (s *Session) Now() time.Time { return s.c.now() }

// todayUTC is the counter date, YYYY-MM-DD in UTC.
func (s *Session) todayUTC() string {
	return s.now().UTC().Format(time.DateOnly)
}

// api returns the backend, or ErrOffline.
func (s *Session) api() (*backend.Client, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.c.remote()
}

// ============================================================================
// Drain
// ============================================================================

// Drain replays this user's queued operations now. A drain that applied
// anything refreshes the confirmed state before returning.
func (s *Session) Drain(ctx context.Context) DrainResult {
	if s.isClosed() {
		return DrainResult{Skipped: true}
	}
	if s.c.api == nil {
		return DrainResult{Skipped: true}
	}
	return s.c.queue.Drain(ctx, DrainParams{
		UserID:       s.userID,
		Remote:       backendRemote{c: s.c},
		Connectivity: s.c.network,
		OnSynced: func() {
			if err := s.Refresh(ctx); err != nil {
				s.c.logger.Warn("session: refresh after sync failed", "user_id", s.userID, "err", err)
			}
		},
	})
}

// triggerDrain runs a drain in the background, reporting its events to the
// configured Notifier.
func (s *Session) triggerDrain() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for {
			res := s.Drain(s.bgCtx)
			if res.Skipped {
				return
			}
			if res.Interrupted {
				s.c.debug.LogSync("drain", "interrupted by network failure")
			}
			notifyAll(s.c.config.Notifier, res.Events)
			// Go again for work queued while this pass ran. Each pass that
			// continues has removed at least one operation.
			if res.Interrupted || res.Remaining == 0 || res.Applied+res.Dropped == 0 {
				return
			}
		}
	}()
}

// HandleStoreChange is called when the local store was written, possibly by
// this process. It reloads the queue and drains if this user has work
// pending; both are no-ops when nothing changed.
func (s *Session) HandleStoreChange() {
	s.c.queue.Reload()
	if len(s.c.queue.Pending(s.userID)) > 0 {
		s.triggerDrain()
	}
}

// drainIfPending follows a successful direct write, which may mean a
// backlog can now go through.
func (s *Session) drainIfPending() {
	if len(s.c.queue.Pending(s.userID)) > 0 {
		s.triggerDrain()
	}
}

// ============================================================================
// Refresh
// ============================================================================

// Refresh reloads the confirmed state. Loaders fall back to cached data on
// network errors; other failures are returned.
func (s *Session) Refresh(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.EnsureProfile(gctx)
		return tolerateNetwork(err)
	})
	g.Go(func() error {
		_, err := s.ListTasks(gctx)
		return tolerateNetwork(err)
	})
	g.Go(func() error {
		return tolerateNetwork(s.loadCompletions(gctx))
	})
	g.Go(func() error {
		_, err := s.LoadCounters(gctx)
		return tolerateNetwork(err)
	})
	g.Go(func() error {
		_, err := s.Streak(gctx)
		return tolerateNetwork(err)
	})
	return g.Wait()
}

func tolerateNetwork(err error) error {
	if IsNetworkError(err) {
		return nil
	}
	return err
}

type completionTaskRow struct {
	TaskID string `json:"task_id"`
}

// loadCompletions reloads the confirmed done-today and completed-ever sets.
// Today starts at local midnight.
func (s *Session) loadCompletions(ctx context.Context) error {
	api, err := s.api()
	if err != nil {
		return err
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var today, ever []completionTaskRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := backend.Q().Select("task_id").Eq("user_id", s.userID).Gte("completed_at", midnight.UTC().Format(time.RFC3339))
		return remoteError("select task_completions", api.Select(gctx, "task_completions", q, &today))
	})
	g.Go(func() error {
		q := backend.Q().Select("task_id").Eq("user_id", s.userID)
		return remoteError("select task_completions", api.Select(gctx, "task_completions", q, &ever))
	})
	if err := g.Wait(); err != nil {
		return err
	}

	doneToday := make(map[string]bool, len(today))
	for _, r := range today {
		doneToday[r.TaskID] = true
	}
	completedEver := make(map[string]bool, len(ever))
	for _, r := range ever {
		completedEver[r.TaskID] = true
	}

	s.mu.Lock()
	s.doneToday = doneToday
	s.completedEver = completedEver
	s.mu.Unlock()
	return nil
}

// ============================================================================
// Views: confirmed state merged with the pending overlay
// ============================================================================

// PendingOps returns this user's queued operations, in order.
func (s *Session) PendingOps() []PendingOperation {
	return s.c.queue.Pending(s.userID)
}

// DoneToday returns the ids of tasks completed today, including queued
// completions created today (UTC).
func (s *Session) DoneToday() map[string]bool {
	today := s.todayUTC()
	s.mu.RLock()
	out := make(map[string]bool, len(s.doneToday))
	for id := range s.doneToday {
		out[id] = true
	}
	s.mu.RUnlock()

	for _, op := range s.PendingOps() {
		if op.Type == OpCompleteTask && op.CreatedAt.UTC().Format(time.DateOnly) == today {
			out[op.TaskID] = true
		}
	}
	return out
}

// CompletedEver returns the ids of every task ever completed, including
// queued completions.
func (s *Session) CompletedEver() map[string]bool {
	s.mu.RLock()
	out := make(map[string]bool, len(s.completedEver))
	for id := range s.completedEver {
		out[id] = true
	}
	s.mu.RUnlock()

	for _, op := range s.PendingOps() {
		if op.Type == OpCompleteTask {
			out[op.TaskID] = true
		}
	}
	return out
}

// Counter returns today's count for a task: the last queued value if any,
// otherwise the confirmed one.
func (s *Session) Counter(taskID string) int {
	today := s.todayUTC()
	pending := s.PendingOps()
	for i := len(pending) - 1; i >= 0; i-- {
		op := pending[i]
		if op.Type == OpSetCounter && op.TaskID == taskID && op.CountedOn == today {
			return op.Count
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[taskID]
}

// ============================================================================
// Local cache
// ============================================================================

func (s *Session) tasksKey() string  { return "cq_tasks_" + s.userID }
func (s *Session) countsKey() string { return "cq_counts_" + s.userID }

func (s *Session) cacheGet(key string, out any) bool {
	raw, err := s.c.store.Get(key)
	if err != nil {
		if !errors.Is(err, localstore.ErrKeyNotFound) {
			s.c.logger.Warn("session: cache read failed", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.c.logger.Warn("session: cache decode failed", "key", key, "err", err)
		return false
	}
	return true
}

func (s *Session) cachePut(key string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = s.c.store.Set(key, data)
	}
	if err != nil {
		s.c.logger.Warn("session: cache write failed", "key", key, "err", err)
	}
}
