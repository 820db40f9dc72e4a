package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tutor-gateway/internal/middleware"
	"github.com/stemsi/tutor-gateway/internal/model"
	"github.com/stemsi/tutor-gateway/internal/repository"
	"github.com/stemsi/tutor-gateway/internal/response"
	"github.com/stemsi/tutor-gateway/internal/service"
	"github.com/stemsi/tutor-gateway/internal/validator"
)

// PracticeHandler handles practice session endpoints.
type PracticeHandler struct {
	controller *service.PracticeController
	attempts   *repository.AttemptRepository
}

// NewPracticeHandler creates a new PracticeHandler.
func NewPracticeHandler(controller *service.PracticeController, attempts *repository.AttemptRepository) *PracticeHandler {
	return &PracticeHandler{controller: controller, attempts: attempts}
}

// Start godoc
// POST /api/v1/practice/sessions
// Activates a practice directive: checks for a prior submission, loads
// the question set, and returns either an in-progress or graded session.
func (h *PracticeHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartPracticeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.controller.Start(c.Request.Context(), claims.UserID, req)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}
		response.Fail(c, http.StatusBadGateway, response.ErrUpstream)
		return
	}

	response.Success(c, http.StatusOK, sess)
}

// Get godoc
// GET /api/v1/practice/sessions/:session_id
// Returns the live session state, including graded results once present.
func (h *PracticeHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sess, err := h.controller.Get(claims.UserID, c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	response.Success(c, http.StatusOK, sess)
}

// RecordAnswer godoc
// PUT /api/v1/practice/sessions/:session_id/answers
// Stores one answer. Questions may be answered in any order.
func (h *PracticeHandler) RecordAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.controller.RecordAnswer(c.Request.Context(), claims.UserID, c.Param("session_id"), req.QuestionID, req.Answer)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		case errors.Is(err, service.ErrUnknownQuestion):
			response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
		case errors.Is(err, service.ErrAlreadyGraded):
			response.Fail(c, http.StatusConflict, response.ErrAlreadyGraded)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"answered_count": sess.AnsweredCount(),
		"total":          len(sess.Questions),
		"submittable":    sess.Submittable(),
	})
}

// Submit godoc
// POST /api/v1/practice/sessions/:session_id/submit
// Grades the session. Incomplete answer sets are rejected before any
// upstream call; a transport failure keeps the answers and is retryable.
func (h *PracticeHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sess, err := h.controller.Submit(c.Request.Context(), claims.UserID, c.Param("session_id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		case errors.Is(err, service.ErrIncompleteAnswers):
			response.Fail(c, http.StatusBadRequest, response.ErrIncompleteAnswers)
		case errors.Is(err, service.ErrAlreadyGraded):
			response.Fail(c, http.StatusConflict, response.ErrAlreadyGraded)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	// A retryable upstream failure is reported inline on the session,
	// not as an HTTP error: the collected answers are still there.
	response.Success(c, http.StatusOK, sess)
}

// Close godoc
// DELETE /api/v1/practice/sessions/:session_id
// Discards the session state (the modal was closed).
func (h *PracticeHandler) Close(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	h.controller.Close(claims.UserID, c.Param("session_id"))
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

// ListAttempts godoc
// GET /api/v1/practice/attempts
// Returns the user's archived attempts, most recent first.
func (h *PracticeHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attempts.ListByUser(c.Request.Context(), claims.UserID, 50)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []repository.PracticeAttempt{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}
