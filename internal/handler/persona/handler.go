package persona

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/research-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/research-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/research-assistant/backend/pkg/utils"
)

// Seeder creates sessions seeded with a personality.
type Seeder interface {
	SetPersonality(ctx context.Context, label string) assistant.PersonalityResult
}

// Handler persona服务的HTTP处理器
type Handler struct {
	seeder   Seeder
	personas persona.Store
}

// New 创建persona处理器
func New(seeder Seeder, personas persona.Store) *Handler {
	return &Handler{
		seeder:   seeder,
		personas: personas,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/set_personality", h.handleSetPersonality)
	r.Get("/personalities", h.handleListPersonalities)
}

// handleSetPersonality 创建带人格指令的新会话
func (h *Handler) handleSetPersonality(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Personality *string `json:"personality"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if payload.Personality == nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "personality is required")
		return
	}

	result := h.seeder.SetPersonality(r.Context(), *payload.Personality)
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"session_id":  result.SessionID,
		"personality": result.Personality,
	})
}

// handleListPersonalities 列出预设人格及其温度
func (h *Handler) handleListPersonalities(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"default":       persona.DefaultLabel,
		"fallback":      persona.FallbackTemperature,
		"personalities": h.personas.List(),
	})
}
