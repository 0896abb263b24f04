/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log (method, path, status, duration, id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the UI

ROUTE GROUPS:
  /api/state            Snapshot load/save
  /api/children/*       Scores and history
  /api/records/*        Ledger entries
  /api/messages/*       Mailbox
  /api/score-items/*    Catalog
  /api/reward-items/*   Catalog
  /api/users/*          Household members
  /api/storage          Capacity
  /api/maintenance/*    Retention
  /api/backup           Export / import
  /api/scenarios/*      Demo data

SECURITY NOTE:
  No authentication middleware. The server is meant for a single household
  on a trusted network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig carries the settings NewRouter needs beyond the handler.
type RouterConfig struct {
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Put("/state", h.PutState)

		r.Get("/scores", h.GetScores)
		r.Route("/children/{id}", func(r chi.Router) {
			r.Get("/score", h.GetScore)
			r.Get("/records", h.GetChildRecords)
		})

		r.Route("/records", func(r chi.Router) {
			r.Post("/behavior", h.LogBehavior)
			r.Post("/redemption", h.RedeemReward)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Get("/unread", h.GetUnreadCount)
			r.Post("/", h.SendMessage)
			r.Post("/{id}/read", h.MarkMessageRead)
		})

		r.Route("/score-items", func(r chi.Router) {
			r.Put("/", h.UpsertScoreItem)
			r.Delete("/{id}", h.DeleteScoreItem)
		})

		r.Route("/reward-items", func(r chi.Router) {
			r.Put("/", h.UpsertRewardItem)
			r.Delete("/{id}", h.DeleteRewardItem)
		})

		r.Patch("/users/{id}", h.UpdateUser)

		r.Get("/storage", h.GetStorage)
		r.Post("/maintenance/prune", h.Prune)

		r.Get("/backup", h.ExportBackup)
		r.Post("/backup", h.ImportBackup)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
