package auth

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// Repository persists user accounts.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, username, email, password_hash, role, access_level, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.AccessLevel, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

func (s *Store) Create(ctx context.Context, u *User) error {
	const q = `
		INSERT INTO users (username, email, password_hash, role, access_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, q, u.Username, u.Email, u.PasswordHash, u.Role, u.AccessLevel, time.Now().UTC()).
		Scan(&u.ID, &u.CreatedAt)
	return translateUnique(err)
}

func (s *Store) Update(ctx context.Context, u *User) error {
	const q = `
		UPDATE users SET username = $1, email = $2, password_hash = $3, role = $4, access_level = $5
		WHERE id = $6
	`
	res, err := s.db.ExecContext(ctx, q, u.Username, u.Email, u.PasswordHash, u.Role, u.AccessLevel, u.ID)
	if err != nil {
		return translateUnique(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func translateUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrUserExists
	}
	return err
}

// MemoryStore is an in-process Repository.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]User)}
}

func (m *MemoryStore) find(match func(User) bool) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (*User, error) {
	return m.find(func(u User) bool { return u.ID == id })
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u User) bool { return u.Email == email })
}

func (m *MemoryStore) GetByUsername(_ context.Context, username string) (*User, error) {
	return m.find(func(u User) bool { return u.Username == username })
}

func (m *MemoryStore) List(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *MemoryStore) conflicts(u *User) bool {
	for id, other := range m.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Username, u.Username) || strings.EqualFold(other.Email, u.Email) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts(u) {
		return ErrUserExists
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	if m.conflicts(u) {
		return ErrUserExists
	}
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}
