package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tutor-gateway/internal/response"
	"github.com/stemsi/tutor-gateway/internal/service"
)

// SystemHandler exposes gateway liveness and upstream health.
type SystemHandler struct {
	ai service.TutorAPI
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(ai service.TutorAPI) *SystemHandler {
	return &SystemHandler{ai: ai}
}

// Health godoc
// GET /health
// The gateway itself is alive if this responds; upstream readiness is
// reported alongside so the front-end can gate the chat surface.
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":   "ok",
		"upstream": h.ai.Health(c.Request.Context()),
	})
}
