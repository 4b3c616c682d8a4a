package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aryannaik/assetreuse/internal/orchestrator"
	"github.com/aryannaik/assetreuse/internal/reuse"
)

// NewRouter wires the asset API onto a chi router.
func NewRouter(h *Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/assets/search", h.HandleSearch)
		r.Post("/assets", h.HandleUpsert)
		r.Post("/assets/used", h.HandleMarkUsed)
		r.Get("/assets/{id}", h.HandleGet)
		r.Post("/gather", h.HandleGather)
		r.Get("/status", h.HandleStatus)
	})
	return r
}

func New(port string, engine *reuse.Engine, planner *orchestrator.Planner, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	handlers := NewHandlers(engine, planner, logger)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server listening", "addr", "http://localhost:"+port)
	return srv
}
