package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/commandq/internal/api/middleware"
	"github.com/phrazzld/commandq/internal/service/auth"
)

// RouterDeps are the collaborators of the control API.
type RouterDeps struct {
	Engine Engine
	// Tokens enables bearer authentication of the /api routes when non-nil.
	Tokens auth.TokenService
	Logger *slog.Logger
}

// NewRouter creates the control API router with all routes and middleware.
func NewRouter(deps RouterDeps) (http.Handler, error) {
	if deps.Engine == nil {
		return nil, errors.New("router requires an engine")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(deps.Logger))

	h := NewEngineHandler(deps.Engine)

	r.Route("/api", func(r chi.Router) {
		if deps.Tokens != nil {
			r.Use(apiMiddleware.NewAuthMiddleware(deps.Tokens).Authenticate)
		}
		r.Post("/commands", h.SubmitCommand)
		r.Get("/queues", h.ListQueues)
		r.Delete("/queues/error", h.ClearErrorQueue)
		r.Get("/queues/{queue}", h.GetQueue)
		r.Get("/state", h.GetState)
		r.Post("/service/stop", h.StopService)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			deps.Logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r, nil
}
