package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/services"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/utils"
)

type StudentHandler struct {
	BaseHandler
	studentService services.StudentService
}

func NewStudentHandler(studentService services.StudentService, logger utils.Logger) *StudentHandler {
	return &StudentHandler{
		BaseHandler:    NewBaseHandler(logger),
		studentService: studentService,
	}
}

// GetMyAttempts lists the caller's attempts. Scores stay hidden until published.
// @Summary List my attempts
// @Tags students
// @Produce json
// @Param status query string false "Attempt status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} models.PaginatedResponse
// @Router /me/attempts [get]
func (h *StudentHandler) GetMyAttempts(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var params models.ListAttemptsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	page, err := h.studentService.ListMyAttempts(c.Request.Context(), userID, params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetMyResult returns one graded attempt once its exam results are published
// @Summary Get my result
// @Tags students
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.StudentResult
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /me/attempts/{id}/result [get]
func (h *StudentHandler) GetMyResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	result, err := h.studentService.GetMyResult(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
