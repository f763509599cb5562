package attacks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"attackwatch/internal/auth"
)

func newTestRouter(t *testing.T) (http.Handler, *MemoryStore) {
	t.Helper()
	svc, store, _ := newTestService(t)
	h := &Handler{Service: svc, Logger: zap.NewNop()}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), analyst)))
		})
	})
	r.Get("/attacks", h.List)
	r.Get("/attacks/stats", h.Stats)
	r.Get("/attacks/{id}", h.Get)
	r.Patch("/attacks/{id}", h.Update)
	r.Post("/attacks/{id}/action", h.Action)
	return r, store
}

func TestHandlerList(t *testing.T) {
	router, store := newTestRouter(t)
	seed(t, store, 15, func(i int, e *AttackEvent) {
		if i < 5 {
			e.RiskLevel = RiskHigh
		}
	})

	tests := []struct {
		query      string
		wantStatus int
		wantItems  int
		wantTotal  int
	}{
		{"", http.StatusOK, 10, 15},
		{"?page=2&limit=10", http.StatusOK, 5, 15},
		{"?severity=high", http.StatusOK, 5, 5},
		{"?page=abc&limit=-3", http.StatusOK, 10, 15},
		{"?status=closed", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attacks"+tt.query, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var page Page
			if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
				t.Fatal(err)
			}
			if len(page.Items) != tt.wantItems || page.Total != tt.wantTotal {
				t.Errorf("items=%d total=%d, want %d %d", len(page.Items), page.Total, tt.wantItems, tt.wantTotal)
			}
		})
	}
}

func TestHandlerGetAndUpdate(t *testing.T) {
	router, store := newTestRouter(t)
	events := seed(t, store, 1, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attacks/999", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing attack status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attacks/x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}

	body := `{"status":"working","analystNotes":"triaging"}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/attacks/1", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body)
	}
	var got AttackEvent
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != events[0].ID || got.Status != StatusWorking || got.AnalystNotes != "triaging" || len(got.Actions) != 1 {
		t.Errorf("patched = %+v", got)
	}
	if got.LabelName != "DDoS" || got.ProtocolName != "TCP" {
		t.Errorf("derived names = %q %q", got.LabelName, got.ProtocolName)
	}
}

func TestHandlerAction(t *testing.T) {
	router, store := newTestRouter(t)
	seed(t, store, 1, nil)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"block alias", "/attacks/1/action", `{"action":"block","payload":{"ip":"192.168.1.1"}}`, http.StatusOK},
		{"throttle", "/attacks/1/action", `{"action":"throttle"}`, http.StatusOK},
		{"unknown action", "/attacks/1/action", `{"action":"detonate"}`, http.StatusBadRequest},
		{"missing attack", "/attacks/42/action", `{"action":"quarantine"}`, http.StatusNotFound},
		{"malformed body", "/attacks/1/action", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
