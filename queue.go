package chronoquest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chronoquest/chronoquest/internal/localstore"
	"github.com/goccy/go-json"
)

// QueueKey is the local storage key holding the pending operations. It is
// shared by every user of the device; entries carry their own user id.
const QueueKey = "cq_offline_queue_v1"

// OpType tags a PendingOperation.
type OpType string

const (
	OpCompleteTask OpType = "complete-task"
	OpSetCounter   OpType = "set-counter"
)

// PendingOperation is a write captured while the remote store was
// unreachable. Identity is structural; order is insertion order.
type PendingOperation struct {
	Type      OpType
	UserID    string
	TaskID    string
	Count     int    // set-counter only
	CountedOn string // set-counter only, YYYY-MM-DD (UTC)
	CreatedAt time.Time
}

// CompleteTaskOp builds a task-completion operation.
func CompleteTaskOp(userID, taskID string, at time.Time) PendingOperation {
	return PendingOperation{Type: OpCompleteTask, UserID: userID, TaskID: taskID, CreatedAt: at.UTC()}
}

// SetCounterOp builds a counter-set operation.
func SetCounterOp(userID, taskID, countedOn string, count int, at time.Time) PendingOperation {
	return PendingOperation{
		Type:      OpSetCounter,
		UserID:    userID,
		TaskID:    taskID,
		Count:     count,
		CountedOn: countedOn,
		CreatedAt: at.UTC(),
	}
}

// Validate checks that op is well formed.
func (op PendingOperation) Validate() error {
	if op.UserID == "" || op.TaskID == "" {
		return fmt.Errorf("%w: user and task are required", ErrInvalidOperation)
	}
	switch op.Type {
	case OpCompleteTask:
		return nil
	case OpSetCounter:
		if op.CountedOn == "" {
			return fmt.Errorf("%w: counter date is required", ErrInvalidOperation)
		}
		if op.Count < 0 {
			return fmt.Errorf("%w: negative count", ErrInvalidOperation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Type)
	}
}

type pendingOperationJSON struct {
	Type      OpType `json:"type"`
	UserID    string `json:"userId"`
	TaskID    string `json:"taskId"`
	Count     *int   `json:"count,omitempty"`
	CountedOn string `json:"countedOn,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func (op PendingOperation) MarshalJSON() ([]byte, error) {
	v := pendingOperationJSON{
		Type:      op.Type,
		UserID:    op.UserID,
		TaskID:    op.TaskID,
		CreatedAt: op.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if op.Type == OpSetCounter {
		count := op.Count
		v.Count = &count
		v.CountedOn = op.CountedOn
	}
	return json.Marshal(v)
}

func (op *PendingOperation) UnmarshalJSON(data []byte) error {
	var v pendingOperationJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*op = PendingOperation{
		Type:      v.Type,
		UserID:    v.UserID,
		TaskID:    v.TaskID,
		CountedOn: v.CountedOn,
	}
	if v.Count != nil {
		op.Count = *v.Count
	}
	if t, err := time.Parse(time.RFC3339Nano, v.CreatedAt); err == nil {
		op.CreatedAt = t.UTC()
	}
	return nil
}

// KV is the durable local storage the queue persists into.
// *localstore.Store implements it.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// Journal records the fate of drained operations. Optional.
type Journal interface {
	AppendJournal(localstore.JournalEntry) error
}

// Remote is the subset of the remote store a drain writes to.
type Remote interface {
	InsertCompletion(ctx context.Context, userID, taskID string) error
	UpsertCounter(ctx context.Context, userID, taskID, countedOn string, count int) error
}

// DrainParams are the inputs of one drain.
type DrainParams struct {
	// UserID selects whose operations are replayed. Empty skips the drain.
	UserID string

	Remote Remote

	// Connectivity gates the drain. Nil means online.
	Connectivity Connectivity

	// OnSynced runs after a drain that applied at least one operation.
	OnSynced func()
}

// DrainResult summarises one drain.
type DrainResult struct {
	// Skipped is set when a precondition failed or another drain was running.
	Skipped bool `json:"skipped"`

	Applied int `json:"applied"`
	Dropped int `json:"dropped"`

	// Remaining counts the user's operations still pending.
	Remaining int `json:"remaining"`

	// Interrupted is set when a network failure stopped the drain.
	Interrupted bool `json:"interrupted"`

	Events []Event `json:"events,omitempty"`
}

// Queue is the durable offline operation queue. Every mutation rewrites the
// whole persisted sequence. It is safe for concurrent use.
type Queue struct {
	store   KV
	journal Journal
	logger  *slog.Logger

	mu  sync.Mutex
	ops []PendingOperation
	// unsaved is set while the last persist failed, so q.ops holds entries
	// storage does not.
	unsaved bool

	draining atomic.Bool
}

// NewQueue creates a queue over store, loading whatever is persisted.
// journal and logger may be nil.
func NewQueue(store KV, journal Journal, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	q := &Queue{store: store, journal: journal, logger: logger}
	if ops, ok := q.load(); ok {
		q.ops = ops
	}
	return q
}

// load reads the persisted sequence. ok is false when storage could not be
// read, in which case the in-memory copy stays authoritative. A missing key
// or a value that is not an array loads as empty.
func (q *Queue) load() (ops []PendingOperation, ok bool) {
	raw, err := q.store.Get(QueueKey)
	if errors.Is(err, localstore.ErrKeyNotFound) {
		return nil, true
	}
	if err != nil {
		q.logger.Warn("queue: read failed", "err", err)
		return nil, false
	}
	if err := json.Unmarshal(raw, &ops); err != nil {
		q.logger.Warn("queue: discarding unreadable queue", "err", err)
		return nil, true
	}
	return ops, true
}

// persist rewrites the stored sequence. Failures are logged, not returned.
// Callers hold q.mu.
func (q *Queue) persist(ops []PendingOperation) {
	if ops == nil {
		ops = []PendingOperation{}
	}
	data, err := json.Marshal(ops)
	if err == nil {
		err = q.store.Set(QueueKey, data)
	}
	q.unsaved = err != nil
	if err != nil {
		q.logger.Error("queue: persist failed", "err", err, "pending", len(ops))
	}
}

// current is the best view of the sequence: storage, plus whatever only
// reached memory when the last persist failed. Callers hold q.mu.
func (q *Queue) current() []PendingOperation {
	stored, ok := q.load()
	if !ok {
		return append([]PendingOperation(nil), q.ops...)
	}
	if !q.unsaved {
		return stored
	}
	return append(stored, without(q.ops, stored)...)
}

func sameOp(a, b PendingOperation) bool {
	return a.Type == b.Type && a.UserID == b.UserID && a.TaskID == b.TaskID &&
		a.Count == b.Count && a.CountedOn == b.CountedOn && a.CreatedAt.Equal(b.CreatedAt)
}

// without returns ops minus one occurrence of each entry in remove, keeping
// the order of ops.
func without(ops, remove []PendingOperation) []PendingOperation {
	used := make([]bool, len(remove))
	out := make([]PendingOperation, 0, len(ops))
next:
	for _, op := range ops {
		for i, r := range remove {
			if !used[i] && sameOp(op, r) {
				used[i] = true
				continue next
			}
		}
		out = append(out, op)
	}
	return out
}

// Enqueue appends op and persists the full sequence. Only a malformed op is
// an error; storage failures degrade to in-memory only.
func (q *Queue) Enqueue(op PendingOperation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = append(q.current(), op)
	q.persist(q.ops)
	return nil
}

// Reload refreshes the in-memory copy from storage, picking up writes made
// by another process. Entries that never reached storage are kept.
func (q *Queue) Reload() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = q.current()
}

// All returns a copy of every pending operation, in order.
func (q *Queue) All() []PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingOperation, len(q.ops))
	copy(out, q.ops)
	return out
}

// Pending returns the operations belonging to userID, in order.
func (q *Queue) Pending(userID string) []PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []PendingOperation
	for _, op := range q.ops {
		if op.UserID == userID {
			out = append(out, op)
		}
	}
	return out
}

// Draining reports whether a drain is in progress.
func (q *Queue) Draining() bool {
	return q.draining.Load()
}

// Drain replays the user's pending operations in order.
//
// A network failure keeps that operation and everything after it and stops.
// Any other failure drops the operation and continues. Other users'
// operations pass through untouched. Drain never returns an error.
func (q *Queue) Drain(ctx context.Context, p DrainParams) DrainResult {
	if p.UserID == "" || p.Remote == nil {
		return DrainResult{Skipped: true}
	}
	if p.Connectivity != nil && !p.Connectivity.Online() {
		return DrainResult{Skipped: true}
	}
	if !q.draining.CompareAndSwap(false, true) {
		return DrainResult{Skipped: true}
	}
	defer q.draining.Store(false)

	q.mu.Lock()
	snapshot := q.current()
	q.mu.Unlock()

	var (
		res     DrainResult
		handled []PendingOperation
	)
	for _, op := range snapshot {
		if op.UserID != p.UserID {
			continue
		}
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		err := applyOperation(ctx, p.Remote, op)
		switch {
		case err == nil:
			res.Applied++
			handled = append(handled, op)
			q.record(op, localstore.OutcomeApplied, "")

		case IsNetworkError(err):
			res.Interrupted = true

		default:
			res.Dropped++
			handled = append(handled, op)
			outcome := localstore.OutcomeDropped
			if IsDuplicate(err) {
				outcome = localstore.OutcomeDuplicate
			}
			q.logger.Warn("queue: dropping operation",
				"op", string(op.Type), "user_id", op.UserID, "task_id", op.TaskID,
				"outcome", outcome, "err", err)
			q.record(op, outcome, err.Error())
			res.Events = append(res.Events, Event{
				Kind:    EventOpDropped,
				TaskID:  op.TaskID,
				Name:    string(op.Type),
				Message: err.Error(),
			})
		}
		if res.Interrupted {
			break
		}
	}

	// Storage may have changed while the remote calls ran, in this process
	// or another. Remove only what this drain handled and keep the rest in
	// the order storage now has it.
	q.mu.Lock()
	current := q.current()
	if len(handled) > 0 {
		q.ops = without(current, handled)
		q.persist(q.ops)
	} else {
		q.ops = current
	}
	for _, op := range q.ops {
		if op.UserID == p.UserID {
			res.Remaining++
		}
	}
	q.mu.Unlock()

	if res.Applied > 0 {
		res.Events = append(res.Events, Event{Kind: EventSynced, Amount: res.Applied})
		if p.OnSynced != nil {
			p.OnSynced()
		}
	}
	return res
}

func applyOperation(ctx context.Context, r Remote, op PendingOperation) error {
	switch op.Type {
	case OpCompleteTask:
		return r.InsertCompletion(ctx, op.UserID, op.TaskID)
	case OpSetCounter:
		return r.UpsertCounter(ctx, op.UserID, op.TaskID, op.CountedOn, op.Count)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Type)
	}
}

func (q *Queue) record(op PendingOperation, outcome, detail string) {
	if q.journal == nil {
		return
	}
	err := q.journal.AppendJournal(localstore.JournalEntry{
		UserID:  op.UserID,
		OpType:  string(op.Type),
		TaskID:  op.TaskID,
		Outcome: outcome,
		Detail:  detail,
	})
	if err != nil {
		q.logger.Warn("queue: journal write failed", "op", string(op.Type), "task_id", op.TaskID, "err", err)
	}
}
