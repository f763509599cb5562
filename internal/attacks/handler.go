package attacks

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"attackwatch/internal/auth"
	"attackwatch/internal/httpx"
)

// Handler serves the /api/attacks endpoints.
type Handler struct {
	Service *Service
	Logger  *zap.Logger
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case IsValidation(err):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "attack not found")
	case errors.Is(err, ErrStoreUnavailable):
		h.Logger.Warn(op, zap.Error(err))
		httpx.WriteError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.Logger.Error(op, zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseRisk accepts severity names in any case.
func parseRisk(s string) RiskLevel {
	switch strings.ToLower(s) {
	case "":
		return ""
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	}
	return RiskLevel(s)
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return Filter{
		Page:     page,
		PageSize: limit,
		Status:   Status(strings.ToLower(q.Get("status"))),
		Risk:     parseRisk(q.Get("severity")),
		Search:   q.Get("search"),
	}
}

func attackID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.List(r.Context(), filterFromQuery(r))
	if err != nil {
		h.writeErr(w, "list attacks", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Stats(r.Context())
	if err != nil {
		h.writeErr(w, "attack stats", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := attackID(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid attack id")
		return
	}
	e, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeErr(w, "get attack", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := attackID(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid attack id")
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}
	actor, _ := auth.UserFromContext(r.Context())
	e, err := h.Service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.writeErr(w, "update attack", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}

type actionRequest struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// Action records a containment action. The action is logged for audit only;
// no enforcement happens here.
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	id, ok := attackID(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid attack id")
		return
	}
	var req actionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}
	action, err := ParseAction(req.Action)
	if err != nil {
		h.writeErr(w, "attack action", err)
		return
	}
	actor, _ := auth.UserFromContext(r.Context())
	entry, err := h.Service.RecordAction(r.Context(), actor, id, action, req.Payload)
	if err != nil {
		h.writeErr(w, "attack action", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Action " + string(action) + " executed",
		"action":  entry,
	})
}
