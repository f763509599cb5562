package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"attackwatch/internal/audit"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSelfDelete         = errors.New("cannot delete your own account")
)

type Service struct {
	users    Repository
	audit    audit.Sink
	logger   *zap.Logger
	validate *validator.Validate
	secret   []byte
	ttl      time.Duration
	hashCost int
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func NewService(users Repository, sink audit.Sink, secret string, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		audit:    sink,
		logger:   logger,
		validate: validator.New(),
		secret:   []byte(secret),
		ttl:      24 * time.Hour,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Authenticate verifies an email/password pair and opens a session.
func (s *Service) Authenticate(ctx context.Context, req LoginRequest, client ClientInfo) (*Session, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	}
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Error("authenticate", zap.Error(err))
		}
		s.record(ctx, &audit.Entry{
			Event:   audit.LoginFail,
			Details: map[string]any{"email": req.Email},
		}, client)
		return nil, ErrInvalidCredentials
	}
	sess, err := s.openSession(user)
	if err != nil {
		return nil, err
	}
	s.record(ctx, &audit.Entry{ActorID: &user.ID, Event: audit.LoginSuccess, Success: true}, client)
	return sess, nil
}

// Register creates an analyst account for the caller and opens a session.
// Self-registration never grants the admin role.
func (s *Service) Register(ctx context.Context, req CreateUserRequest, client ClientInfo) (*Session, error) {
	req.Role = RoleAnalyst
	user, err := s.createUser(ctx, req)
	if err != nil {
		s.record(ctx, &audit.Entry{
			Event:   audit.UserCreate,
			Details: map[string]any{"selfRegister": true, "error": err.Error()},
		}, client)
		return nil, err
	}
	s.record(ctx, &audit.Entry{
		ActorID: &user.ID,
		Event:   audit.UserCreate,
		Success: true,
		Details: map[string]any{"selfRegister": true},
	}, client)
	return s.openSession(user)
}

func (s *Service) createUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = RoleAnalyst
	}
	if req.AccessLevel == "" {
		req.AccessLevel = AccessStandard
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		AccessLevel:  req.AccessLevel,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Resolve looks a user up by id. It is the directory the attack workflow
// uses to populate assignees and actors.
func (s *Service) Resolve(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

type Claims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	CSRF     string `json:"csrf"`
	jwt.RegisteredClaims
}

func (s *Service) openSession(user *User) (*Session, error) {
	csrf, err := newCSRFToken()
	if err != nil {
		return nil, err
	}
	token, err := s.issueToken(user, csrf)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, CSRFToken: csrf}, nil
}

func (s *Service) issueToken(user *User, csrf string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		CSRF:     csrf,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func newCSRFToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// record appends an audit entry; failures are logged and never fail the
// operation being audited.
func (s *Service) record(ctx context.Context, e *audit.Entry, client ClientInfo) {
	if s.audit == nil {
		return
	}
	e.IP = client.IP
	e.UserAgent = client.UserAgent
	if err := s.audit.Append(ctx, e); err != nil {
		s.logger.Warn("append auth log", zap.String("event", string(e.Event)), zap.Error(err))
	}
}

type usersFile struct {
	Users []struct {
		Username    string      `yaml:"username"`
		Email       string      `yaml:"email"`
		Password    string      `yaml:"password"`
		Role        Role        `yaml:"role"`
		AccessLevel AccessLevel `yaml:"access_level"`
	} `yaml:"users"`
}

// SeedFromFile creates the users listed in a YAML file, skipping any whose
// username or email already exists. A missing file is not an error.
func (s *Service) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var uf usersFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return err
	}
	for _, u := range uf.Users {
		if u.Username == "" || u.Password == "" {
			continue
		}
		_, err := s.createUser(ctx, CreateUserRequest{
			Username:    u.Username,
			Email:       u.Email,
			Password:    u.Password,
			Role:        u.Role,
			AccessLevel: u.AccessLevel,
		})
		switch {
		case err == nil:
			s.logger.Info("seeded user", zap.String("username", u.Username))
		case errors.Is(err, ErrUserExists):
		default:
			return fmt.Errorf("seed %s: %w", u.Username, err)
		}
	}
	return nil
}
