// Package audit records authentication and user-administration events.
// Entries are append-only; nothing in this package updates or deletes them.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"
)

type EventType string

const (
	LoginSuccess EventType = "login_success"
	LoginFail    EventType = "login_fail"
	UserCreate   EventType = "user_create"
	UserUpdate   EventType = "user_update"
	UserDelete   EventType = "user_delete"
)

type Entry struct {
	ID        int64          `json:"id"`
	ActorID   *int64         `json:"actor,omitempty"`
	Event     EventType      `json:"event"`
	Success   bool           `json:"success"`
	IP        string         `json:"ip"`
	UserAgent string         `json:"userAgent"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"timestamp"`
}

// Sink accepts audit entries.
type Sink interface {
	Append(ctx context.Context, e *Entry) error
}

type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Append(ctx context.Context, e *Entry) error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO auth_logs (actor_id, event, success, ip, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	var actor sql.NullInt64
	if e.ActorID != nil {
		actor = sql.NullInt64{Int64: *e.ActorID, Valid: true}
	}
	return s.db.QueryRowContext(ctx, q, actor, e.Event, e.Success, e.IP, e.UserAgent,
		string(details), time.Now().UTC()).Scan(&e.ID, &e.CreatedAt)
}

// MemorySink keeps entries in process memory.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Append(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	e.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, *e)
	return nil
}

// Entries returns a copy of everything appended so far, oldest first.
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
