package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"attackwatch/internal/attacks"
	"attackwatch/internal/auth"
	"attackwatch/internal/broadcast"
	"attackwatch/internal/httpx"
)

// Deps are the services the router exposes.
type Deps struct {
	Auth           *auth.Service
	Attacks        *attacks.Service
	Distributor    *broadcast.Distributor
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.CSRFHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := &auth.Handler{Service: d.Auth, Logger: d.Logger}
	attackHandler := &attacks.Handler{Service: d.Attacks, Logger: d.Logger}

	r.Route("/api", func(r chi.Router) {
		// The stream is long-lived, so it sits outside the request timeout.
		r.With(auth.JWTMiddleware(d.Auth, true)).
			Handle("/stream", &broadcast.StreamHandler{Distributor: d.Distributor, Logger: d.Logger})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/register", authHandler.Register)

			r.Group(func(r chi.Router) {
				r.Use(auth.JWTMiddleware(d.Auth, false))
				r.Use(auth.RequireCSRF)

				r.Get("/auth/me", authHandler.Me)

				r.Route("/attacks", func(r chi.Router) {
					r.Use(auth.RequireWriteAccess)
					r.Get("/", attackHandler.List)
					r.Get("/stats", attackHandler.Stats)
					r.Get("/{id}", attackHandler.Get)
					r.Patch("/{id}", attackHandler.Update)
					r.Post("/{id}/action", attackHandler.Action)
				})

				r.Route("/admin/users", func(r chi.Router) {
					r.Use(auth.RequireRole(auth.RoleAdmin))
					r.Get("/", authHandler.ListUsers)
					r.Post("/", authHandler.CreateUser)
					r.Put("/{id}", authHandler.UpdateUser)
					r.Delete("/{id}", authHandler.DeleteUser)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
