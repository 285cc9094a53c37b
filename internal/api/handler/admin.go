package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/service"
)

// AdminHandler exposes runtime configuration and today's AI spend.
type AdminHandler struct {
	configs *service.AdminConfigService
	costs   *service.CostGuard
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - configs: admin configuration service.
//   - costs: cost guard used for the spend report.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(configs *service.AdminConfigService, costs *service.CostGuard) *AdminHandler {
	return &AdminHandler{configs: configs, costs: costs}
}

// ListConfig handles GET /api/v1/admin/config.
func (h *AdminHandler) ListConfig(c *gin.Context) {
	entries, err := h.configs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"config": entries})
}

// GetConfig handles GET /api/v1/admin/config/:key.
func (h *AdminHandler) GetConfig(c *gin.Context) {
	entry, err := h.configs.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"config": entry})
}

// PutConfigRequest is the body of PUT /api/v1/admin/config/:key.
type PutConfigRequest struct {
	Value json.RawMessage `json:"value"`
}

// PutConfig validates and stores one configuration document. The change is
// visible to the next request that reads the key.
func (h *AdminHandler) PutConfig(c *gin.Context) {
	var req PutConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	key := c.Param("key")
	entry, err := h.configs.Put(ctx, key, req.Value, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	logger.CtxInfo(ctx, "Admin config updated: key=%s, user_id=%s", key, middleware.UserID(c))
	ok(c, http.StatusOK, gin.H{"config": entry})
}

// Costs handles GET /api/v1/admin/costs.
func (h *AdminHandler) Costs(c *gin.Context) {
	status, err := h.costs.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"costs": status})
}
