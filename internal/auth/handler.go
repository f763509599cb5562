package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"attackwatch/internal/httpx"
)

// Handler serves the login, registration and admin user endpoints.
type Handler struct {
	Service *Service
	Logger  *zap.Logger
}

func clientInfo(r *http.Request) ClientInfo {
	return ClientInfo{IP: httpx.ClientIP(r), UserAgent: r.UserAgent()}
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUserExists):
		httpx.WriteError(w, http.StatusBadRequest, "user already exists")
	case errors.Is(err, ErrSelfDelete):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "user not found")
	default:
		h.Logger.Error(op, zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}
	sess, err := h.Service.Authenticate(r.Context(), req, clientInfo(r))
	if err != nil {
		h.writeErr(w, "login", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}
	sess, err := h.Service.Register(r.Context(), req, clientInfo(r))
	if err != nil {
		h.writeErr(w, "register", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "not authorized")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context())
	if err != nil {
		h.writeErr(w, "list users", err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}
	actor, _ := UserFromContext(r.Context())
	u, err := h.Service.CreateUser(r.Context(), actor, req, clientInfo(r))
	if err != nil {
		h.writeErr(w, "create user", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"message": "User created", "user": u})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}
	actor, _ := UserFromContext(r.Context())
	u, err := h.Service.UpdateUser(r.Context(), actor, id, req, clientInfo(r))
	if err != nil {
		h.writeErr(w, "update user", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "User updated", "user": u})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	actor, _ := UserFromContext(r.Context())
	if err := h.Service.DeleteUser(r.Context(), actor, id, clientInfo(r)); err != nil {
		h.writeErr(w, "delete user", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}
