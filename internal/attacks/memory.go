package attacks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store and Allocator. It backs the "memory"
// storage driver and the package tests.
type MemoryStore struct {
	mu       sync.RWMutex
	events   map[int64]*AttackEvent
	actions  map[int64][]ActionLog
	nextID   int64
	nextAct  int64
	sequence int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:  make(map[int64]*AttackEvent),
		actions: make(map[int64][]ActionLog),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func cloneEvent(e *AttackEvent) *AttackEvent {
	c := *e
	if e.AssignedToID != nil {
		id := *e.AssignedToID
		c.AssignedToID = &id
	}
	c.Flow = make(map[string]float64, len(e.Flow))
	for k, v := range e.Flow {
		c.Flow[k] = v
	}
	c.Actions = nil
	c.AssignedTo = nil
	c.decorate()
	return &c
}

func (m *MemoryStore) maxEventID() int64 {
	var max int64
	for _, e := range m.events {
		if e.EventID > max {
			max = e.EventID
		}
	}
	return max
}

func (m *MemoryStore) Allocate(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max := m.maxEventID(); max > m.sequence {
		m.sequence = max
	}
	m.sequence++
	return m.sequence, nil
}

func (m *MemoryStore) Insert(_ context.Context, e *AttackEvent) error {
	if e.EventID <= 0 {
		return invalid("eventId", "must be allocated before insert")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.events {
		if other.EventID == e.EventID {
			return fmt.Errorf("insert attack: %w", ErrSequenceConflict)
		}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = m.now()
	}
	if e.Status == "" {
		e.Status = StatusNew
	}
	m.nextID++
	e.ID = m.nextID
	e.UpdatedAt = m.now()
	e.decorate()
	m.events[e.ID] = cloneEvent(e)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*AttackEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("get attack %d: %w", id, ErrNotFound)
	}
	e := cloneEvent(stored)
	e.Actions = append([]ActionLog{}, m.actions[id]...)
	return e, nil
}

func matches(e *AttackEvent, f Filter) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Risk != "" && e.RiskLevel != f.Risk {
		return false
	}
	term := strings.TrimSpace(f.Search)
	if term == "" {
		return true
	}
	lower := strings.ToLower(term)
	for _, field := range []string{e.SrcIP, e.DstIP, e.AnalystNotes} {
		if strings.Contains(strings.ToLower(field), lower) {
			return true
		}
	}
	if n, ok := searchNumber(term); ok {
		return int64(e.DstPort) == n || e.EventID == n
	}
	return false
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]AttackEvent, int, error) {
	f = f.Normalize()
	// Stored events are mutated in place by Update and Resequence, so copy
	// them before the lock is released.
	m.mu.RLock()
	var hits []*AttackEvent
	for _, e := range m.events {
		if matches(e, f) {
			hits = append(hits, cloneEvent(e))
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].Timestamp.Equal(hits[j].Timestamp) {
			return hits[i].Timestamp.After(hits[j].Timestamp)
		}
		return hits[i].EventID > hits[j].EventID
	})

	items := []AttackEvent{}
	for i := f.Offset(); i < len(hits) && len(items) < f.PageSize; i++ {
		items = append(items, *hits[i])
	}
	return items, len(hits), nil
}

func (m *MemoryStore) Update(_ context.Context, id int64, c Changes, a *ActionLog) (*AttackEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("update attack %d: %w", id, ErrNotFound)
	}
	a.AttackID = id
	if err := checkAction(a); err != nil {
		return nil, err
	}
	if c.Status != nil {
		e.Status = *c.Status
	}
	if c.AssignedTo != nil {
		assignee := *c.AssignedTo
		e.AssignedToID = &assignee
	}
	if c.AnalystNotes != nil {
		e.AnalystNotes = *c.AnalystNotes
	}
	e.UpdatedAt = m.now()
	m.appendAction(a)
	return cloneEvent(e), nil
}

func (m *MemoryStore) AppendAction(_ context.Context, a *ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[a.AttackID]; !ok {
		return fmt.Errorf("append action: attack %d: %w", a.AttackID, ErrNotFound)
	}
	if err := checkAction(a); err != nil {
		return err
	}
	m.appendAction(a)
	return nil
}

// checkAction mirrors the NOT NULL and foreign key constraints on action_logs.
func checkAction(a *ActionLog) error {
	if a.UserID <= 0 {
		return invalid("userId", "required")
	}
	if !a.ActionType.Valid() {
		return invalid("actionType", fmt.Sprintf("unknown action %q", a.ActionType))
	}
	return nil
}

// appendAction must be called with mu held.
func (m *MemoryStore) appendAction(a *ActionLog) {
	if a.Details == nil {
		a.Details = map[string]any{}
	}
	m.nextAct++
	a.ID = m.nextAct
	a.CreatedAt = m.now()
	m.actions[a.AttackID] = append(m.actions[a.AttackID], *a)
}

func (m *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := newStats()
	for _, e := range m.events {
		st.Total++
		st.ByStatus[e.Status]++
		st.ByRisk[e.RiskLevel]++
	}
	return st, nil
}

func (m *MemoryStore) Resequence(_ context.Context, dryRun bool) (*ResequenceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ordered := make([]*AttackEvent, 0, len(m.events))
	for _, e := range m.events {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})
	res := &ResequenceResult{Total: len(ordered), DryRun: dryRun, Changes: []Renumber{}}
	for i, e := range ordered {
		if want := int64(i + 1); e.EventID != want {
			res.Changes = append(res.Changes, Renumber{ID: e.ID, From: e.EventID, To: want})
			if !dryRun {
				e.EventID = want
			}
		}
	}
	if !dryRun {
		m.sequence = int64(len(ordered))
	}
	return res, nil
}
