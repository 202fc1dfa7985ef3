package mcp

import (
	"fmt"
	"strings"
	"sync"
)

// QuestRef identifies a task belonging to a user.
type QuestRef struct {
	UserID string
	TaskID string
}

// QuestRefs hands out short session references (Q1, Q2, ...) for tasks so
// agents can name a quest without copying its id. The counter is global
// across users; a ref always resolves to the user it was issued for.
type QuestRefs struct {
	mu      sync.Mutex
	refs    map[string]QuestRef // Q1 -> task
	reverse map[QuestRef]string
	counter int
}

// NewQuestRefs creates an empty tracker.
func NewQuestRefs() *QuestRefs {
	return &QuestRefs{
		refs:    make(map[string]QuestRef),
		reverse: make(map[QuestRef]string),
	}
}

// Track returns the ref for a task, assigning the next one on first sight.
func (q *QuestRefs) Track(userID, taskID string) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := QuestRef{UserID: userID, TaskID: taskID}
	if ref, ok := q.reverse[key]; ok {
		return ref
	}
	q.counter++
	ref := fmt.Sprintf("Q%d", q.counter)
	q.refs[ref] = key
	q.reverse[key] = ref
	return ref
}

// Resolve looks a ref up. Refs are case-insensitive.
func (q *QuestRefs) Resolve(ref string) (QuestRef, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.refs[strings.ToUpper(strings.TrimSpace(ref))]
	return r, ok
}

// Clear forgets every ref and restarts the counter.
func (q *QuestRefs) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refs = make(map[string]QuestRef)
	q.reverse = make(map[QuestRef]string)
	q.counter = 0
}
