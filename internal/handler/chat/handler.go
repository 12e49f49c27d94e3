package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/research-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/research-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/research-assistant/backend/pkg/utils"
)

// Chatter answers one chat turn.
type Chatter interface {
	Chat(ctx context.Context, in assistant.ChatInput) (assistant.ChatResult, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatter Chatter
}

// New 创建聊天处理器
func New(chatter Chatter) *Handler {
	return &Handler{chatter: chatter}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

type chatRequest struct {
	Question    string  `json:"question"`
	SessionID   string  `json:"session_id"`
	Personality *string `json:"personality"`
	Research    bool    `json:"research"`
}

// handleChat 处理一次问答
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Question) == "" {
		utils.RespondError(w, http.StatusBadRequest, "question is required")
		return
	}

	label := persona.DefaultLabel
	if payload.Personality != nil {
		label = *payload.Personality
	}

	result, err := h.chatter.Chat(r.Context(), assistant.ChatInput{
		Question:    payload.Question,
		SessionID:   payload.SessionID,
		Personality: label,
		Research:    payload.Research,
	})
	if err != nil {
		detail := "internal error"
		if errors.Is(err, assistant.ErrUpstreamModel) {
			detail = err.Error()
		}
		utils.RespondError(w, http.StatusInternalServerError, detail)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"session_id": result.SessionID,
		"answer":     result.Answer,
	})
}
