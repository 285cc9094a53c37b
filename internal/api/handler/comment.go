package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
}

func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// CreateCommentRequest is the body of POST /api/v1/vibelogs/:id/comments.
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"comment": comment})
}

func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.comments.List(c.Request.Context(), c.Param("id"), middleware.UserID(c),
		queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"comments": comments})
}

// Delete handles DELETE /api/v1/comments/:id. Only the author may delete.
func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}
