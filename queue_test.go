package chronoquest_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chronoquest/chronoquest"
	"github.com/chronoquest/chronoquest/internal/localstore"
	"github.com/goccy/go-json"
)

// ============================================================================
// Helpers
// ============================================================================

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(filepath.Join(t.TempDir(), "chronoquest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type remoteCall struct {
	Kind      string
	UserID    string
	TaskID    string
	CountedOn string
	Count     int
}

// stubRemote records every call and answers with the configured funcs.
type stubRemote struct {
	mu       sync.Mutex
	calls    []remoteCall
	complete func(call int, userID, taskID string) error
	counter  func(call int, userID, taskID, countedOn string, count int) error
}

func (r *stubRemote) InsertCompletion(ctx context.Context, userID, taskID string) error {
	r.mu.Lock()
	r.calls = append(r.calls, remoteCall{Kind: "insert", UserID: userID, TaskID: taskID})
	n := len(r.calls)
	r.mu.Unlock()
	if r.complete != nil {
		return r.complete(n, userID, taskID)
	}
	return nil
}

func (r *stubRemote) UpsertCounter(ctx context.Context, userID, taskID, countedOn string, count int) error {
	r.mu.Lock()
	r.calls = append(r.calls, remoteCall{Kind: "upsert", UserID: userID, TaskID: taskID, CountedOn: countedOn, Count: count})
	n := len(r.calls)
	r.mu.Unlock()
	if r.counter != nil {
		return r.counter(n, userID, taskID, countedOn, count)
	}
	return nil
}

func (r *stubRemote) Calls() []remoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]remoteCall(nil), r.calls...)
}

func persisted(t *testing.T, s *localstore.Store) []chronoquest.PendingOperation {
	t.Helper()
	raw, err := s.Get(chronoquest.QueueKey)
	if errors.Is(err, localstore.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	var ops []chronoquest.PendingOperation
	if err := json.Unmarshal(raw, &ops); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	return ops
}

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func sameOps(a, b []chronoquest.PendingOperation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Type != y.Type || x.UserID != y.UserID || x.TaskID != y.TaskID ||
			x.Count != y.Count || x.CountedOn != y.CountedOn || !x.CreatedAt.Equal(y.CreatedAt) {
			return false
		}
	}
	return true
}

// ============================================================================
// Enqueue and persistence
// ============================================================================

func TestQueue_EnqueuePersistsImmediately(t *testing.T) {
	s := openStore(t)
	q := chronoquest.NewQueue(s, s, nil)

	op := chronoquest.CompleteTaskOp("u1", "t1", t0)
	if err := q.Enqueue(op); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got := persisted(t, s)
	if !sameOps(got, []chronoquest.PendingOperation{op}) {
		t.Errorf("persisted = %+v, want [%+v]", got, op)
	}
}

func TestQueue_PersistThenLoadIsStructurallyEqual(t *testing.T) {
	s := openStore(t)
	q := chronoquest.NewQueue(s, s, nil)

	ops := []chronoquest.PendingOperation{
		chronoquest.CompleteTaskOp("u1", "t1", t0),
		chronoquest.SetCounterOp("u1", "t2", "2024-05-01", 0, t0.Add(time.Second)),
		chronoquest.SetCounterOp("u2", "t3", "2024-05-01", 7, t0.Add(2*time.Second)),
	}
	for _, op := range ops {
		if err := q.Enqueue(op); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	reloaded := chronoquest.NewQueue(s, s, nil)
	if got := reloaded.All(); !sameOps(got, ops) {
		t.Errorf("reloaded = %+v\nwant %+v", got, ops)
	}
}

func TestQueue_WireShape(t *testing.T) {
	data, err := json.Marshal([]chronoquest.PendingOperation{
		chronoquest.CompleteTaskOp("u1", "t1", t0),
		chronoquest.SetCounterOp("u1", "t2", "2024-05-01", 0, t0),
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"type":"complete-task"`, `"userId":"u1"`, `"type":"set-counter"`, `"count":0`, `"countedOn":"2024-05-01"`} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded queue missing %s: %s", want, s)
		}
	}
	if strings.Count(s, `"count"`) != 1 {
		t.Errorf("count should only appear on set-counter: %s", s)
	}
}

func TestQueue_NonArrayLoadsEmpty(t *testing.T) {
	s := openStore(t)
	if err := s.Set(chronoquest.QueueKey, []byte(`{"not":"an array"}`)); err != nil {
		t.Fatal(err)
	}
	q := chronoquest.NewQueue(s, s, nil)
	if n := len(q.All()); n != 0 {
		t.Errorf("len(All) = %d, want 0", n)
	}
}

func TestQueue_EnqueueRejectsMalformed(t *testing.T) {
	q := chronoquest.NewQueue(openStore(t), nil, nil)
	err := q.Enqueue(chronoquest.PendingOperation{Type: "delete-task", UserID: "u1", TaskID: "t1"})
	if !errors.Is(err, chronoquest.ErrInvalidOperation) {
		t.Errorf("Enqueue = %v, want ErrInvalidOperation", err)
	}
}

func TestQueue_DuplicateIntentsAreBothRecorded(t *testing.T) {
	q := chronoquest.NewQueue(openStore(t), nil, nil)
	op := chronoquest.CompleteTaskOp("u1", "t1", t0)
	_ = q.Enqueue(op)
	_ = q.Enqueue(op)
	if n := len(q.Pending("u1")); n != 2 {
		t.Errorf("pending = %d, want 2", n)
	}
}

// failingKV reads nothing and fails every write.
type failingKV struct{}

func (failingKV) Get(string) ([]byte, error) { return nil, errors.New("disk unavailable") }
func (failingKV) Set(string, []byte) error   { return errors.New("quota exceeded") }

func TestQueue_StorageFailureKeepsMemoryAuthoritative(t *testing.T) {
	q := chronoquest.NewQueue(failingKV{}, nil, nil)

	if err := q.Enqueue(chronoquest.CompleteTaskOp("u1", "t1", t0)); err != nil {
		t.Fatalf("Enqueue should swallow storage errors, got %v", err)
	}
	if n := len(q.All()); n != 1 {
		t.Fatalf("len(All) = %d, want 1", n)
	}

	remote := &stubRemote{}
	res := q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})
	if res.Applied != 1 {
		t.Errorf("Applied = %d, want 1", res.Applied)
	}
	if n := len(q.All()); n != 0 {
		t.Errorf("len(All) after drain = %d, want 0", n)
	}
}

// flakyKV is an in-memory KV whose writes fail while failSet is on.
type flakyKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
}

func (kv *flakyKV) Get(key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	if !ok {
		return nil, localstore.ErrKeyNotFound
	}
	return v, nil
}

func (kv *flakyKV) Set(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.failSet {
		return errors.New("quota exceeded")
	}
	if kv.data == nil {
		kv.data = make(map[string][]byte)
	}
	kv.data[key] = value
	return nil
}

func (kv *flakyKV) setFailing(v bool) {
	kv.mu.Lock()
	kv.failSet = v
	kv.mu.Unlock()
}

func TestQueue_ReadableStoreDoesNotOverwriteUnsavedOps(t *testing.T) {
	kv := &flakyKV{failSet: true}
	q := chronoquest.NewQueue(kv, nil, nil)

	op1 := chronoquest.CompleteTaskOp("u1", "t1", t0)
	op2 := chronoquest.CompleteTaskOp("u1", "t2", t0)
	_ = q.Enqueue(op1)
	_ = q.Enqueue(op2)
	if got := q.All(); !sameOps(got, []chronoquest.PendingOperation{op1, op2}) {
		t.Fatalf("All = %+v, want [t1 t2]", got)
	}

	q.Reload()
	if n := len(q.All()); n != 2 {
		t.Fatalf("len(All) after Reload = %d, want 2", n)
	}

	// Once writes work again the whole sequence reaches storage.
	kv.setFailing(false)
	op3 := chronoquest.CompleteTaskOp("u1", "t3", t0)
	_ = q.Enqueue(op3)

	raw, err := kv.Get(chronoquest.QueueKey)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	var stored []chronoquest.PendingOperation
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if !sameOps(stored, []chronoquest.PendingOperation{op1, op2, op3}) {
		t.Errorf("stored = %+v, want [t1 t2 t3]", stored)
	}
}

// ============================================================================
// Drain
// ============================================================================

func TestDrain_AppliesInEnqueueOrder(t *testing.T) {
	s := openStore(t)
	q := chronoquest.NewQueue(s, s, nil)
	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "A", t0))
	_ = q.Enqueue(chronoquest.SetCounterOp("u1", "A", "2024-05-01", 3, t0))
	_ = q.Enqueue(chronoquest.SetCounterOp("u1", "A", "2024-05-01", 5, t0))

	remote := &stubRemote{}
	res := q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})

	want := []remoteCall{
		{Kind: "insert", UserID: "u1", TaskID: "A"},
		{Kind: "upsert", UserID: "u1", TaskID: "A", CountedOn: "2024-05-01", Count: 3},
		{Kind: "upsert", UserID: "u1", TaskID: "A", CountedOn: "2024-05-01", Count: 5},
	}
	if got := remote.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %+v\nwant %+v", got, want)
	}
	if res.Applied != 3 || res.Remaining != 0 {
		t.Errorf("result = %+v", res)
	}
	if got := persisted(t, s); len(got) != 0 {
		t.Errorf("persisted = %+v, want empty", got)
	}
}

func TestDrain_NetworkFailureKeepsRestInOrder(t *testing.T) {
	s := openStore(t)
	q := chronoquest.NewQueue(s, s, nil)
	op1 := chronoquest.CompleteTaskOp("u1", "t1", t0)
	op2 := chronoquest.CompleteTaskOp("u1", "t2", t0)
	op3 := chronoquest.CompleteTaskOp("u1", "t3", t0)
	for _, op := range []chronoquest.PendingOperation{op1, op2, op3} {
		_ = q.Enqueue(op)
	}

	remote := &stubRemote{complete: func(call int, _, _ string) error {
		if call == 2 {
			return errors.New("TypeError: Failed to fetch")
		}
		return nil
	}}
	res := q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})

	if !res.Interrupted {
		t.Error("Interrupted = false, want true")
	}
	if len(remote.Calls()) != 2 {
		t.Errorf("calls = %d, want 2 (op3 must not be attempted)", len(remote.Calls()))
	}
	want := []chronoquest.PendingOperation{op2, op3}
	if got := persisted(t, s); !sameOps(got, want) {
		t.Errorf("persisted = %+v\nwant %+v", got, want)
	}
	if res.Remaining != 2 {
		t.Errorf("Remaining = %d, want 2", res.Remaining)
	}
}

func TestDrain_PermanentFailureDropsAndContinues(t *testing.T) {
	s := openStore(t)
	q := chronoquest.NewQueue(s, s, nil)
	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "t1", t0))
	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "t2", t0))

	remote := &stubRemote{complete: func(call int, _, _ string) error {
		if call == 1 {
			return errors.New(`duplicate key value violates unique constraint "task_completions_pkey"`)
		}
		return nil
	}}
	res := q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})

	if res.Dropped != 1 || res.Applied != 1 {
		t.Errorf("result = %+v, want 1 dropped 1 applied", res)
	}
	if got := persisted(t, s); len(got) != 0 {
		t.Errorf("persisted = %+v, want empty", got)
	}

	entries, err := s.Journal(10)
	if err != nil {
		t.Fatalf("Journal: %v", err)
	}
	outcomes := map[string]string{}
	for _, e := range entries {
		outcomes[e.TaskID] = e.Outcome
	}
	if outcomes["t1"] != localstore.OutcomeDuplicate {
		t.Errorf("t1 outcome = %q, want duplicate", outcomes["t1"])
	}
	if outcomes["t2"] != localstore.OutcomeApplied {
		t.Errorf("t2 outcome = %q, want applied", outcomes["t2"])
	}

	var dropped bool
	for _, e := range res.Events {
		if e.Kind == chronoquest.EventOpDropped && e.TaskID == "t1" {
			dropped = true
		}
	}
	if !dropped {
		t.Errorf("events = %+v, want op_dropped for t1", res.Events)
	}
}

func TestDrain_OtherUsersPassThrough(t *testing.T) {
	s := openStore(t)
	q := chronoquest.NewQueue(s, s, nil)
	other := chronoquest.CompleteTaskOp("u2", "t9", t0)
	_ = q.Enqueue(other)
	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "t1", t0))

	remote := &stubRemote{}
	q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})

	if got := persisted(t, s); !sameOps(got, []chronoquest.PendingOperation{other}) {
		t.Errorf("persisted = %+v, want only the u2 op", got)
	}
	for _, c := range remote.Calls() {
		if c.UserID != "u1" {
			t.Errorf("replayed another user's op: %+v", c)
		}
	}
}

func TestDrain_Preconditions(t *testing.T) {
	q := chronoquest.NewQueue(openStore(t), nil, nil)
	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "t1", t0))
	remote := &stubRemote{}

	if res := q.Drain(context.Background(), chronoquest.DrainParams{Remote: remote}); !res.Skipped {
		t.Error("drain without user should be skipped")
	}
	offline := chronoquest.NewNetwork(false)
	res := q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote, Connectivity: offline})
	if !res.Skipped {
		t.Error("drain while offline should be skipped")
	}
	if len(remote.Calls()) != 0 {
		t.Errorf("calls = %d, want 0", len(remote.Calls()))
	}
}

func TestDrain_ReentrantCallIsSkipped(t *testing.T) {
	q := chronoquest.NewQueue(openStore(t), nil, nil)
	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "t1", t0))

	entered := make(chan struct{})
	release := make(chan struct{})
	remote := &stubRemote{complete: func(int, string, string) error {
		close(entered)
		<-release
		return nil
	}}

	done := make(chan chronoquest.DrainResult)
	go func() {
		done <- q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})
	}()

	<-entered
	second := q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})
	if !second.Skipped {
		t.Errorf("second drain = %+v, want skipped", second)
	}
	close(release)

	first := <-done
	if first.Applied != 1 {
		t.Errorf("first drain Applied = %d, want 1", first.Applied)
	}
	if len(remote.Calls()) != 1 {
		t.Errorf("calls = %d, want 1", len(remote.Calls()))
	}
}

func TestDrain_EnqueueDuringDrainIsKept(t *testing.T) {
	s := openStore(t)
	q := chronoquest.NewQueue(s, s, nil)
	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "t1", t0))

	late := chronoquest.SetCounterOp("u1", "t2", "2024-05-01", 4, t0)
	remote := &stubRemote{complete: func(int, string, string) error {
		if err := q.Enqueue(late); err != nil {
			t.Errorf("Enqueue during drain: %v", err)
		}
		return nil
	}}

	res := q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})
	if res.Applied != 1 {
		t.Errorf("Applied = %d, want 1", res.Applied)
	}
	if got := persisted(t, s); !sameOps(got, []chronoquest.PendingOperation{late}) {
		t.Errorf("persisted = %+v, want [late]", got)
	}
	if res.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", res.Remaining)
	}
}

func TestDrain_SharedStoreKeepsOtherQueuesWork(t *testing.T) {
	s := openStore(t)
	a := chronoquest.NewQueue(s, s, nil)
	b := chronoquest.NewQueue(s, s, nil)

	x := chronoquest.CompleteTaskOp("u1", "x", t0)
	_ = a.Enqueue(x)
	b.Reload()

	// While a waits on the network, b drains x and queues y: storage goes
	// from [x] to [y] without changing length.
	y := chronoquest.SetCounterOp("u1", "y", "2024-05-01", 2, t0)
	remote := &stubRemote{complete: func(call int, userID, taskID string) error {
		if call == 1 {
			b.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: &stubRemote{}})
			if err := b.Enqueue(y); err != nil {
				t.Errorf("Enqueue on second queue: %v", err)
			}
		}
		return nil
	}}

	res := a.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote})
	if res.Applied != 1 {
		t.Errorf("Applied = %d, want 1", res.Applied)
	}
	if got := persisted(t, s); !sameOps(got, []chronoquest.PendingOperation{y}) {
		t.Errorf("persisted = %+v, want [y]", got)
	}
	if res.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", res.Remaining)
	}
}

func TestDrain_OnSyncedOnlyAfterProgress(t *testing.T) {
	q := chronoquest.NewQueue(openStore(t), nil, nil)
	var synced int
	params := chronoquest.DrainParams{UserID: "u1", Remote: &stubRemote{}, OnSynced: func() { synced++ }}

	q.Drain(context.Background(), params)
	if synced != 0 {
		t.Errorf("OnSynced called %d times on an empty queue", synced)
	}

	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "t1", t0))
	res := q.Drain(context.Background(), params)
	if synced != 1 {
		t.Errorf("OnSynced called %d times, want 1", synced)
	}
	if len(res.Events) != 1 || res.Events[0].Kind != chronoquest.EventSynced {
		t.Errorf("events = %+v, want one synced event", res.Events)
	}
}

func TestDrain_OnlineTransitionReplaysOfflineCompletion(t *testing.T) {
	s := openStore(t)
	q := chronoquest.NewQueue(s, s, nil)
	network := chronoquest.NewNetwork(false)
	remote := &stubRemote{}

	_ = q.Enqueue(chronoquest.CompleteTaskOp("u1", "t1", t0))

	unsubscribe := network.Subscribe(func() {
		q.Drain(context.Background(), chronoquest.DrainParams{UserID: "u1", Remote: remote, Connectivity: network})
	})
	defer unsubscribe()

	network.SetOnline(true)

	want := []remoteCall{{Kind: "insert", UserID: "u1", TaskID: "t1"}}
	if got := remote.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %+v, want %+v", got, want)
	}
	if got := persisted(t, s); len(got) != 0 {
		t.Errorf("persisted = %+v, want empty", got)
	}
}
