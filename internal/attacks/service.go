package attacks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"attackwatch/internal/auth"
)

// Publisher pushes a named payload to live subscribers. Implementations must
// not block on slow subscribers.
type Publisher interface {
	Broadcast(name string, payload any)
}

// UserDirectory resolves user ids for assignment and action attribution.
type UserDirectory interface {
	Resolve(ctx context.Context, id int64) (*auth.User, error)
}

// Service answers analyst queries and applies workflow changes.
type Service struct {
	store     Store
	users     UserDirectory
	publisher Publisher
	logger    *zap.Logger
}

func NewService(store Store, users UserDirectory, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{store: store, users: users, publisher: publisher, logger: logger}
}

// List returns one page of events, newest first. A page past the end yields
// no items rather than an error.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	f = f.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	if f.Risk != "" && !f.Risk.Valid() {
		return nil, invalid("severity", fmt.Sprintf("unknown risk level %q", f.Risk))
	}
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	cache := map[int64]*auth.Ref{}
	for i := range items {
		items[i].AssignedTo = s.resolveRef(ctx, items[i].AssignedToID, cache)
	}
	return &Page{
		Items:      items,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: (total + f.PageSize - 1) / f.PageSize,
		Total:      total,
	}, nil
}

// Get returns one event with its assignee and action history resolved.
func (s *Service) Get(ctx context.Context, id int64) (*AttackEvent, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cache := map[int64]*auth.Ref{}
	e.AssignedTo = s.resolveRef(ctx, e.AssignedToID, cache)
	for i := range e.Actions {
		uid := e.Actions[i].UserID
		e.Actions[i].User = s.resolveRef(ctx, &uid, cache)
	}
	return e, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

// resolveRef looks up a user for display. Unresolvable ids render as nil;
// the record itself is still returned.
func (s *Service) resolveRef(ctx context.Context, id *int64, cache map[int64]*auth.Ref) *auth.Ref {
	if id == nil || s.users == nil {
		return nil
	}
	if ref, ok := cache[*id]; ok {
		return ref
	}
	var ref *auth.Ref
	u, err := s.users.Resolve(ctx, *id)
	switch {
	case err == nil:
		ref = u.Ref()
	case errors.Is(err, auth.ErrUserNotFound):
	default:
		s.logger.Warn("resolve user", zap.Int64("user_id", *id), zap.Error(err))
	}
	cache[*id] = ref
	return ref
}

// UpdateRequest carries an analyst's workflow change. Only fields that are
// present and non-empty are applied, so an update cannot clear a field: an
// empty analystNotes leaves the existing note in place.
type UpdateRequest struct {
	Status       *Status        `json:"status"`
	AssignedTo   *int64         `json:"assignedTo"`
	AnalystNotes *string        `json:"analystNotes"`
	ActionType   ActionType     `json:"actionType"`
	Details      map[string]any `json:"details"`
}

func (r UpdateRequest) changes() Changes {
	var c Changes
	if r.Status != nil && *r.Status != "" {
		c.Status = r.Status
	}
	if r.AssignedTo != nil && *r.AssignedTo != 0 {
		c.AssignedTo = r.AssignedTo
	}
	if r.AnalystNotes != nil && *r.AnalystNotes != "" {
		c.AnalystNotes = r.AnalystNotes
	}
	return c
}

// Update applies req to event id, appends one action log entry and
// broadcasts the updated record.
func (s *Service) Update(ctx context.Context, actor *auth.User, id int64, req UpdateRequest) (*AttackEvent, error) {
	if actor == nil {
		return nil, invalid("actor", "required")
	}
	c := req.changes()
	if c.Status != nil && !c.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", *c.Status))
	}
	action := req.ActionType
	if action == "" {
		action = ActionStatusChange
	}
	if !action.Valid() {
		return nil, invalid("actionType", fmt.Sprintf("unknown action %q", action))
	}
	if c.AssignedTo != nil && s.users != nil {
		if _, err := s.users.Resolve(ctx, *c.AssignedTo); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				return nil, fmt.Errorf("assignee %d: %w", *c.AssignedTo, ErrNotFound)
			}
			return nil, err
		}
	}

	details := map[string]any{}
	if c.Status != nil {
		details["status"] = *c.Status
	}
	if c.AssignedTo != nil {
		details["assignedTo"] = *c.AssignedTo
	}
	if c.AnalystNotes != nil {
		details["analystNotes"] = *c.AnalystNotes
	}
	for k, v := range req.Details {
		details[k] = v
	}
	entry := &ActionLog{AttackID: id, UserID: actor.ID, ActionType: action, Details: details}
	if _, err := s.store.Update(ctx, id, c, entry); err != nil {
		return nil, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(EventAttackUpdated, updated)
	s.logger.Info("attack updated",
		zap.Int64("id", id),
		zap.Int64("event_id", updated.EventID),
		zap.String("action", string(action)),
		zap.Int64("actor", actor.ID),
	)
	return updated, nil
}

// containmentAliases maps the short names dashboards send to action types.
var containmentAliases = map[string]ActionType{
	"block": ActionBlockIP,
}

// ParseAction resolves an action name, accepting short aliases.
func ParseAction(name string) (ActionType, error) {
	if a, ok := containmentAliases[name]; ok {
		return a, nil
	}
	a := ActionType(name)
	if !a.Valid() {
		return "", invalid("action", fmt.Sprintf("unknown action %q", name))
	}
	return a, nil
}

// RecordAction appends an audit-only action (block, quarantine, throttle)
// against event id. The event itself is not modified and nothing is
// broadcast.
func (s *Service) RecordAction(ctx context.Context, actor *auth.User, id int64, action ActionType, payload map[string]any) (*ActionLog, error) {
	if actor == nil {
		return nil, invalid("actor", "required")
	}
	if !action.Valid() {
		return nil, invalid("action", fmt.Sprintf("unknown action %q", action))
	}
	entry := &ActionLog{AttackID: id, UserID: actor.ID, ActionType: action, Details: payload}
	if err := s.store.AppendAction(ctx, entry); err != nil {
		return nil, err
	}
	entry.User = actor.Ref()
	s.logger.Info("containment action recorded",
		zap.Int64("attack_id", id),
		zap.String("action", string(action)),
		zap.Int64("actor", actor.ID),
	)
	return entry, nil
}

func (s *Service) publish(name string, payload any) {
	if s.publisher != nil {
		s.publisher.Broadcast(name, payload)
	}
}
