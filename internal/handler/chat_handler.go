package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tutor-gateway/internal/middleware"
	"github.com/stemsi/tutor-gateway/internal/model"
	"github.com/stemsi/tutor-gateway/internal/response"
	"github.com/stemsi/tutor-gateway/internal/service"
	"github.com/stemsi/tutor-gateway/internal/validator"
)

// ChatHandler handles the chat surface endpoints.
type ChatHandler struct {
	orchestrator *service.ChatOrchestrator
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(orchestrator *service.ChatOrchestrator) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator}
}

// Bootstrap godoc
// POST /api/v1/chat/bootstrap
// Runs the chat entry protocol for this login session and returns the
// resulting view. Safe to re-invoke on every mount of the chat surface.
func (h *ChatHandler) Bootstrap(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view := h.orchestrator.Bootstrap(c.Request.Context(), claims.UserID, claims.LoginUnix())
	response.Success(c, http.StatusOK, view)
}

// State godoc
// GET /api/v1/chat/state
// Returns the current chat view without side effects.
func (h *ChatHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, h.orchestrator.State(claims.UserID))
}

// Send godoc
// POST /api/v1/chat/messages
// Sends one user message. On upstream failure the reply view still
// carries the user's message plus a substituted apology.
func (h *ChatHandler) Send(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SendMessageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.orchestrator.Send(c.Request.Context(), claims.UserID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			response.Fail(c, http.StatusBadRequest, response.ErrEmptyMessage)
		case errors.Is(err, service.ErrSendInFlight):
			response.Fail(c, http.StatusConflict, response.ErrSendInFlight)
		case errors.Is(err, service.ErrServiceUnavailable):
			response.Fail(c, http.StatusServiceUnavailable, response.ErrServiceUnhealthy)
		case errors.Is(err, service.ErrNotBootstrapped):
			response.Fail(c, http.StatusConflict, response.ErrNotBootstrapped)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, view)
}

// LoadHistory godoc
// POST /api/v1/chat/history
// Explicitly loads past messages and merges them into the session.
func (h *ChatHandler) LoadHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.orchestrator.LoadHistory(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotBootstrapped) {
			response.Fail(c, http.StatusConflict, response.ErrNotBootstrapped)
			return
		}
		response.Fail(c, http.StatusBadGateway, response.ErrUpstream)
		return
	}

	response.Success(c, http.StatusOK, view)
}
