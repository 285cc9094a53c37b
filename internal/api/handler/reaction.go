package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/service"
)

type ReactionHandler struct {
	reactions *service.ReactionService
}

func NewReactionHandler(reactions *service.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions}
}

func bindReaction(c *gin.Context) (service.ReactionInput, bool) {
	var in service.ReactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return in, false
	}
	return in, true
}

// Add handles POST /api/v1/reactions. Repeating an identical reaction
// returns 200 instead of 201.
func (h *ReactionHandler) Add(c *gin.Context) {
	in, valid := bindReaction(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	created, err := h.reactions.Add(ctx, middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := h.reactions.Summary(ctx, in.ReactableType, in.ReactableID, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, gin.H{"created": created, "reactions": summary})
}

// Remove handles DELETE /api/v1/reactions.
func (h *ReactionHandler) Remove(c *gin.Context) {
	in, valid := bindReaction(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	removed, err := h.reactions.Remove(ctx, middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := h.reactions.Summary(ctx, in.ReactableType, in.ReactableID, middleware.UserID(c))
	switch {
	case errors.Is(err, service.ErrNotFound):
		// The target was hidden after the reaction was made.
		ok(c, http.StatusOK, gin.H{"removed": removed, "reactions": nil})
		return
	case err != nil:
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"removed": removed, "reactions": summary})
}

// Summary handles GET /api/v1/reactions/:type/:id.
func (h *ReactionHandler) Summary(c *gin.Context) {
	summary, err := h.reactions.Summary(c.Request.Context(), domain.ReactableType(c.Param("type")), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"reactions": summary})
}
