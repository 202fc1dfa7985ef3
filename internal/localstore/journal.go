package localstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Journal outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeDropped   = "dropped"
	OutcomeDuplicate = "duplicate"
)

// JournalEntry records what a drain did with one offline operation.
type JournalEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	OpType     string    `json:"op_type"`
	TaskID     string    `json:"task_id"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AppendJournal stores e, assigning an ID and timestamp when missing.
func (s *Store) AppendJournal(e JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO drain_journal (id, user_id, op_type, task_id, outcome, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.OpType, e.TaskID, e.Outcome, nullString(e.Detail), e.RecordedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("localstore: append journal: %w", err)
	}
	return nil
}

// Journal returns up to limit entries, newest first. limit <= 0 means 50.
func (s *Store) Journal(limit int) ([]JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, op_type, task_id, outcome, detail, recorded_at
		FROM drain_journal
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("localstore: query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e          JournalEntry
			detail     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.OpType, &e.TaskID, &e.Outcome, &detail, &recordedAt); err != nil {
			return nil, fmt.Errorf("localstore: scan journal: %w", err)
		}
		e.Detail = detail.String
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
