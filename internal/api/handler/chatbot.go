package handler

import (
	"context"
	"net/http"

	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/chatbot"
)

// Responder answers chat messages and keeps a per-user log.
type Responder interface {
	Reply(ctx context.Context, subjectID, text string) string
	History(subjectID string) []chatbot.Exchange
}

// ChatbotHandler handles chatbot endpoints.
type ChatbotHandler struct {
	bot Responder
}

// NewChatbotHandler creates a new ChatbotHandler.
func NewChatbotHandler(bot Responder) *ChatbotHandler {
	return &ChatbotHandler{bot: bot}
}

// Message handles POST /v1/chatbot - answer one message.
func (h *ChatbotHandler) Message(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	var input models.ChatRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	reply := h.bot.Reply(r.Context(), userID, input.Text)
	response.JSON(w, r, http.StatusOK, models.ChatResponse{Reply: reply})
}

// History handles GET /v1/chatbot/history - the caller's exchange log.
func (h *ChatbotHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewChatHistory(h.bot.History(userID)))
}
