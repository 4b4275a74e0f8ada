package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/services"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/utils"
)

type EvaluationHandler struct {
	BaseHandler
	evaluationService services.EvaluationService
}

func NewEvaluationHandler(evaluationService services.EvaluationService, logger utils.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		BaseHandler:       NewBaseHandler(logger),
		evaluationService: evaluationService,
	}
}

// EvaluateAnswer grades one text answer by hand
// @Summary Evaluate answer
// @Description Stores the evaluator's score, recomputes the attempt total and promotes the attempt once nothing is left to grade
// @Tags evaluations
// @Accept json
// @Produce json
// @Param evaluation body models.EvaluateAnswerRequest true "Evaluation"
// @Success 200 {object} models.EvaluationResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /evaluations [post]
func (h *EvaluationHandler) EvaluateAnswer(c *gin.Context) {
	var req models.EvaluateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	evaluatorID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Evaluating answer", "answer_id", req.UserAnswerID)

	result, err := h.evaluationService.Evaluate(c.Request.Context(), &req, evaluatorID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
