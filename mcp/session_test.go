package mcp_test

import (
	"sync"
	"testing"

	"github.com/chronoquest/chronoquest/mcp"
)

// =============================================================================
// QuestRefs Unit Tests
// =============================================================================

func TestQuestRefs_Track_AssignsSequentialRefs(t *testing.T) {
	refs := mcp.NewQuestRefs()

	got := []string{
		refs.Track("u1", "task-a"),
		refs.Track("u1", "task-b"),
		refs.Track("u1", "task-c"),
	}
	want := []string{"Q1", "Q2", "Q3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Track #%d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestQuestRefs_Track_SameTaskSameRef(t *testing.T) {
	refs := mcp.NewQuestRefs()

	first := refs.Track("u1", "task-a")
	again := refs.Track("u1", "task-a")
	if first != again {
		t.Errorf("Track twice = %q then %q, want the same ref", first, again)
	}
}

func TestQuestRefs_Track_CounterIsGlobalAcrossUsers(t *testing.T) {
	refs := mcp.NewQuestRefs()

	refs.Track("u1", "task-a")
	ref := refs.Track("u2", "task-a")
	if ref != "Q2" {
		t.Errorf("Track for second user = %q, want Q2", ref)
	}

	got, ok := refs.Resolve("Q2")
	if !ok || got.UserID != "u2" || got.TaskID != "task-a" {
		t.Errorf("Resolve(Q2) = %+v, %v; want u2/task-a", got, ok)
	}
}

func TestQuestRefs_Resolve(t *testing.T) {
	refs := mcp.NewQuestRefs()
	refs.Track("u1", "task-a")

	if got, ok := refs.Resolve(" q1 "); !ok || got.TaskID != "task-a" {
		t.Errorf("Resolve(q1) = %+v, %v; want task-a", got, ok)
	}
	if _, ok := refs.Resolve("Q9"); ok {
		t.Error("Resolve(Q9) found a ref that was never issued")
	}
}

func TestQuestRefs_Clear(t *testing.T) {
	refs := mcp.NewQuestRefs()
	refs.Track("u1", "task-a")
	refs.Clear()

	if _, ok := refs.Resolve("Q1"); ok {
		t.Error("Resolve after Clear still found Q1")
	}
	if ref := refs.Track("u1", "task-b"); ref != "Q1" {
		t.Errorf("Track after Clear = %q, want Q1", ref)
	}
}

func TestQuestRefs_ConcurrentTrack(t *testing.T) {
	refs := mcp.NewQuestRefs()

	var wg sync.WaitGroup
	seen := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen <- refs.Track("u1", string(rune('a'+i%26))+string(rune('a'+i/26)))
		}(i)
	}
	wg.Wait()
	close(seen)

	unique := map[string]bool{}
	for ref := range seen {
		unique[ref] = true
	}
	if len(unique) != 50 {
		t.Errorf("concurrent Track produced %d unique refs, want 50", len(unique))
	}
}
