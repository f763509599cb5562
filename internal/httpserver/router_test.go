package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"attackwatch/internal/attacks"
	"attackwatch/internal/audit"
	"attackwatch/internal/auth"
	"attackwatch/internal/broadcast"
)

type testEnv struct {
	router   http.Handler
	auth     *auth.Service
	store    *attacks.MemoryStore
	dist     *broadcast.Distributor
	attackID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	authSvc := auth.NewService(auth.NewMemoryStore(), audit.NewMemorySink(), "router-secret", logger,
		auth.WithHashCost(bcrypt.MinCost), auth.WithTokenTTL(time.Hour))
	store := attacks.NewMemoryStore()
	dist := broadcast.NewDistributor(logger)
	attackSvc := attacks.NewService(store, authSvc, dist, logger)

	ctx := context.Background()
	for _, u := range []auth.CreateUserRequest{
		{Username: "root", Email: "root@example.com", Password: "password123", Role: auth.RoleAdmin, AccessLevel: auth.AccessSenior},
		{Username: "alice", Email: "alice@example.com", Password: "password123"},
		{Username: "viewer", Email: "viewer@example.com", Password: "password123", AccessLevel: auth.AccessRead},
	} {
		if _, err := authSvc.CreateUser(ctx, nil, u, auth.ClientInfo{}); err != nil {
			t.Fatal(err)
		}
	}
	id, _ := store.Allocate(ctx)
	e := &attacks.AttackEvent{EventID: id, PredictedLabel: 4, Confidence: 0.91, RiskLevel: attacks.RiskHigh, SrcIP: "192.168.3.4", DstIP: "10.0.1.1", DstPort: 80, Protocol: 6}
	if err := store.Insert(ctx, e); err != nil {
		t.Fatal(err)
	}

	router := NewRouter(Deps{
		Auth:           authSvc,
		Attacks:        attackSvc,
		Distributor:    dist,
		AllowedOrigins: []string{"http://localhost:5173"},
		Logger:         logger,
	})
	return &testEnv{router: router, auth: authSvc, store: store, dist: dist, attackID: e.ID}
}

func (env *testEnv) login(t *testing.T, email string) auth.Session {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"password123"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body)
	}
	var sess auth.Session
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func (env *testEnv) do(t *testing.T, method, path, body string, sess *auth.Session) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
		req.Header.Set(auth.CSRFHeader, sess.CSRFToken)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}
}

func TestAttackRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/attacks", "/api/attacks/stats", "/api/auth/me", "/api/admin/users", "/api/stream"} {
		if rec := env.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d", path, rec.Code)
		}
	}
}

func TestAccessControl(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "root@example.com")
	analyst := env.login(t, "alice@example.com")
	viewer := env.login(t, "viewer@example.com")
	patch := "/api/attacks/" + itoa(env.attackID)

	noCSRF := analyst
	noCSRF.CSRFToken = ""
	wrongCSRF := analyst
	wrongCSRF.CSRFToken = "deadbeef"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		sess   *auth.Session
		want   int
	}{
		{"analyst lists attacks", http.MethodGet, "/api/attacks", "", &analyst, http.StatusOK},
		{"viewer lists attacks", http.MethodGet, "/api/attacks?severity=High", "", &viewer, http.StatusOK},
		{"viewer cannot patch", http.MethodPatch, patch, `{"status":"working"}`, &viewer, http.StatusForbidden},
		{"patch without csrf", http.MethodPatch, patch, `{"status":"working"}`, &noCSRF, http.StatusForbidden},
		{"patch with wrong csrf", http.MethodPatch, patch, `{"status":"working"}`, &wrongCSRF, http.StatusForbidden},
		{"analyst patches", http.MethodPatch, patch, `{"status":"working"}`, &analyst, http.StatusOK},
		{"analyst blocks", http.MethodPost, patch + "/action", `{"action":"block"}`, &analyst, http.StatusOK},
		{"analyst cannot list users", http.MethodGet, "/api/admin/users", "", &analyst, http.StatusForbidden},
		{"admin lists users", http.MethodGet, "/api/admin/users", "", &admin, http.StatusOK},
		{"me", http.MethodGet, "/api/auth/me", "", &viewer, http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nope", "", &admin, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body, tt.sess)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestPatchBroadcastsUpdate(t *testing.T) {
	env := newTestEnv(t)
	analyst := env.login(t, "alice@example.com")
	sub := env.dist.Subscribe()
	defer env.dist.Unsubscribe(sub)

	rec := env.do(t, http.MethodPatch, "/api/attacks/"+itoa(env.attackID), `{"status":"escalated","analystNotes":"lateral movement"}`, &analyst)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", rec.Code, rec.Body)
	}
	select {
	case msg := <-sub.C:
		var got attacks.AttackEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatal(err)
		}
		if msg.Name != attacks.EventAttackUpdated || got.Status != attacks.StatusEscalated || len(got.Actions) != 1 {
			t.Errorf("broadcast %s = %+v", msg.Name, got)
		}
		if got.Actions[0].User == nil || got.Actions[0].User.Username != "alice" {
			t.Errorf("action user = %+v", got.Actions[0].User)
		}
	default:
		t.Fatal("no attack-updated broadcast")
	}
}

func TestAdminUserLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "root@example.com")

	rec := env.do(t, http.MethodPost, "/api/admin/users",
		`{"username":"carol","email":"carol@example.com","password":"password123","accessLevel":"senior"}`, &admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	var created struct {
		User auth.User `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	path := "/api/admin/users/" + itoa(created.User.ID)

	if rec := env.do(t, http.MethodPut, path, `{"role":"admin"}`, &admin); rec.Code != http.StatusOK {
		t.Errorf("update = %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodDelete, path, "", &admin); rec.Code != http.StatusOK {
		t.Errorf("delete = %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodDelete, path, "", &admin); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestRegisterAndLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"register", "/api/auth/register", `{"username":"dave","email":"dave@example.com","password":"password123"}`, http.StatusCreated},
		{"register duplicate", "/api/auth/register", `{"username":"alice","email":"alice@example.com","password":"password123"}`, http.StatusBadRequest},
		{"bad password", "/api/auth/login", `{"email":"alice@example.com","password":"wrong-password"}`, http.StatusUnauthorized},
		{"malformed", "/api/auth/login", `{"email":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodPost, tt.path, tt.body, nil); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func itoa(i int64) string {
	b, _ := json.Marshal(i)
	return string(b)
}
