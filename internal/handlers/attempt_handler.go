package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/services"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	scoring        services.ScoreAggregator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	scoring services.ScoreAggregator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		scoring:        scoring,
	}
}

// StartAttempt opens the caller's attempt on an exam
// @Summary Start exam attempt
// @Description Creates a pending attempt with one blank answer per question, or resumes the pending one
// @Tags attempts
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 201 {object} models.AttemptSession
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id}/attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting exam attempt", "exam_id", examID)

	session, err := h.attemptService.Start(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// SubmitAttempt submits the caller's answers for auto-grading
// @Summary Submit exam attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answers body models.SubmitAttemptRequest true "Answers"
// @Success 200 {object} models.Attempt
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting exam attempt", "attempt_id", id, "answers", len(req.Answers))

	attempt, err := h.attemptService.Submit(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttempt returns an attempt with answers and evaluation stats
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	attempt, err := h.attemptService.GetWithStats(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// RecomputeScore re-derives the attempt aggregate from its answers
func (h *AttemptHandler) RecomputeScore(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Recomputing attempt score", "attempt_id", id)

	summary, err := h.scoring.Recompute(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
