package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"attackwatch/internal/audit"
)

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// CreateUser creates an account on behalf of an administrator.
func (s *Service) CreateUser(ctx context.Context, actor *User, req CreateUserRequest, client ClientInfo) (*User, error) {
	u, err := s.createUser(ctx, req)
	if err != nil {
		s.record(ctx, &audit.Entry{
			ActorID: actorID(actor),
			Event:   audit.UserCreate,
			Details: map[string]any{"error": err.Error()},
		}, client)
		return nil, err
	}
	s.record(ctx, &audit.Entry{
		ActorID: actorID(actor),
		Event:   audit.UserCreate,
		Success: true,
		Details: map[string]any{"targetUserId": u.ID, "role": u.Role, "accessLevel": u.AccessLevel},
	}, client)
	return u, nil
}

// UpdateUser applies the non-empty fields of req to user id.
func (s *Service) UpdateUser(ctx context.Context, actor *User, id int64, req UpdateUserRequest, client ClientInfo) (*User, error) {
	u, err := s.updateUser(ctx, id, req)
	if err != nil {
		s.record(ctx, &audit.Entry{
			ActorID: actorID(actor),
			Event:   audit.UserUpdate,
			Details: map[string]any{"targetUserId": id, "error": err.Error()},
		}, client)
		return nil, err
	}
	s.record(ctx, &audit.Entry{
		ActorID: actorID(actor),
		Event:   audit.UserUpdate,
		Success: true,
		Details: map[string]any{"targetUserId": u.ID},
	}, client)
	return u, nil
}

func (s *Service) updateUser(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Username != "" {
		u.Username = req.Username
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	if req.Role != "" {
		u.Role = req.Role
	}
	if req.AccessLevel != "" {
		u.AccessLevel = req.AccessLevel
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes user id. Administrators cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor *User, id int64, client ClientInfo) error {
	err := s.deleteUser(ctx, actor, id)
	entry := &audit.Entry{
		ActorID: actorID(actor),
		Event:   audit.UserDelete,
		Success: err == nil,
		Details: map[string]any{"targetUserId": id},
	}
	if err != nil {
		entry.Details["error"] = err.Error()
	}
	s.record(ctx, entry, client)
	return err
}

func (s *Service) deleteUser(ctx context.Context, actor *User, id int64) error {
	if actor != nil && actor.ID == id {
		return ErrSelfDelete
	}
	return s.users.Delete(ctx, id)
}

func actorID(u *User) *int64 {
	if u == nil {
		return nil
	}
	id := u.ID
	return &id
}
