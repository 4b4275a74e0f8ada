package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/services"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/utils"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the pieces every handler shares
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err)
	utils.GetLogger(c, h.logger).Error(msg, args...)
}

// parseIDParam writes a 400 and returns 0 when the path id is not a positive integer
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name,
			Details: raw,
		})
		return 0
	}
	return uint(id)
}

// currentUserID writes a 401 and returns false when no user is authenticated
func (h *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	var unevaluated *services.UnevaluatedAttemptsError
	if errors.As(err, &unevaluated) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam has attempts awaiting evaluation",
			Details: map[string]interface{}{
				"exam_id":     unevaluated.ExamID,
				"attempt_ids": unevaluated.AttemptIDs,
			},
		})
		return
	}

	var transitionError *services.TransitionError
	if errors.As(err, &transitionError) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Invalid attempt status transition",
			Details: map[string]interface{}{
				"attempt_id": transitionError.AttemptID,
				"from":       transitionError.From,
				"to":         transitionError.To,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Exam not found"})
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Attempt not found"})
	case errors.Is(err, services.ErrAnswerNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Answer not found"})
	case errors.Is(err, services.ErrResultNotPublished):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Result has not been published"})
	case errors.Is(err, services.ErrExamNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Exam is not active"})
	case errors.Is(err, services.ErrExamLocked):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Exam scoring is locked once attempts exist"})
	case errors.Is(err, services.ErrExamNotEditable):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Questions can only be added to draft exams"})
	case errors.Is(err, services.ErrAttemptAlreadyExists):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt already exists for this exam"})
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt already submitted"})
	case errors.Is(err, services.ErrAttemptNotSubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt has not been submitted"})
	case errors.Is(err, services.ErrConcurrentModification):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt was modified concurrently, please retry"})
	case errors.Is(err, services.ErrUnsupportedQuestion):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: "Unsupported question type"})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
