package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/service"
)

type BrainHandler struct {
	brain *service.BrainService
}

func NewBrainHandler(brain *service.BrainService) *BrainHandler {
	return &BrainHandler{brain: brain}
}

// BrainTurn is one earlier message of the conversation.
type BrainTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BrainChatRequest is the body of POST /api/v1/brain/chat.
type BrainChatRequest struct {
	Message string      `json:"message" binding:"required"`
	History []BrainTurn `json:"history"`
}

func (h *BrainHandler) Chat(c *gin.Context) {
	var req BrainChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	history := make([]service.ChatMessage, 0, len(req.History))
	for _, t := range req.History {
		history = append(history, service.ChatMessage{Role: t.Role, Content: t.Content})
	}
	reply, err := h.brain.Chat(c.Request.Context(), middleware.UserID(c), req.Message, history)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"reply":          reply.Reply,
		"sources":        reply.Sources,
		"memories_saved": reply.MemoriesSaved,
	})
}
