package auth

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
)

type AccessLevel string

const (
	AccessRead     AccessLevel = "read"
	AccessStandard AccessLevel = "standard"
	AccessSenior   AccessLevel = "senior"
)

type User struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         Role        `json:"role"`
	AccessLevel  AccessLevel `json:"accessLevel"`
	CreatedAt    time.Time   `json:"created_at"`
}

// CanMutate reports whether the user may change attack records.
func (u *User) CanMutate() bool {
	return u.AccessLevel != AccessRead
}

// Ref is the public projection of a user embedded in other records.
type Ref struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u *User) Ref() *Ref {
	return &Ref{ID: u.ID, Username: u.Username, Email: u.Email}
}

type CreateUserRequest struct {
	Username    string      `json:"username" validate:"required,min=3,max=64"`
	Email       string      `json:"email" validate:"required,email,max=254"`
	Password    string      `json:"password" validate:"required,min=8,max=72"`
	Role        Role        `json:"role" validate:"omitempty,oneof=analyst admin"`
	AccessLevel AccessLevel `json:"accessLevel" validate:"omitempty,oneof=read standard senior"`
}

// UpdateUserRequest applies only the non-empty fields.
type UpdateUserRequest struct {
	Username    string      `json:"username" validate:"omitempty,min=3,max=64"`
	Email       string      `json:"email" validate:"omitempty,email,max=254"`
	Password    string      `json:"password" validate:"omitempty,min=8,max=72"`
	Role        Role        `json:"role" validate:"omitempty,oneof=analyst admin"`
	AccessLevel AccessLevel `json:"accessLevel" validate:"omitempty,oneof=read standard senior"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ClientInfo identifies the caller for audit entries.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Session is returned by a successful login or registration.
type Session struct {
	User      *User  `json:"user"`
	Token     string `json:"token"`
	CSRFToken string `json:"csrfToken"`
}
