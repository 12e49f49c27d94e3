package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/research-assistant/backend/internal/handler/chat"
	"github.com/zhouzirui/research-assistant/backend/internal/handler/document"
	"github.com/zhouzirui/research-assistant/backend/internal/handler/persona"
	"github.com/zhouzirui/research-assistant/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/research-assistant/backend/internal/middleware"
	personaModel "github.com/zhouzirui/research-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/research-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/research-assistant/backend/pkg/utils"
)

// Health describes the capabilities reported by /healthz.
type Health struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Research  bool   `json:"research"`
	Embedding bool   `json:"embedding"`
}

// Options configures the router.
type Options struct {
	MaxUploadBytes int64
	Health         Health
}

// NewRouter wires HTTP routes to the assistant pipeline.
func NewRouter(personas personaModel.Store, svc *assistant.Service, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	personaHandler := persona.New(svc, personas)
	documentHandler := document.New(svc, opts.MaxUploadBytes)
	chatHandler := chat.New(svc)

	personaHandler.RegisterRoutes(r)
	documentHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	health := opts.Health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"provider":  health.Provider,
			"model":     health.Model,
			"research":  health.Research,
			"embedding": health.Embedding,
			"sessions":  svc.SessionCount(),
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
