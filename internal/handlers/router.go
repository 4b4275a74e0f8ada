package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/config"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/metrics"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/services"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/utils"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/validator"
)

// HealthChecker reports whether the service's backing stores are reachable
type HealthChecker func(ctx context.Context) error

type HandlerManager struct {
	examHandler       *ExamHandler
	attemptHandler    *AttemptHandler
	evaluationHandler *EvaluationHandler
	studentHandler    *StudentHandler
	authMiddleware    *CasdoorAuthMiddleware
	health            HealthChecker
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	health HealthChecker,
) *HandlerManager {
	return NewHandlerManagerWithAuth(serviceManager, validator, logger, NewCasdoorAuthMiddleware(casdoorConfig), health)
}

func NewHandlerManagerWithAuth(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	health HealthChecker,
) *HandlerManager {
	return &HandlerManager{
		examHandler:       NewExamHandler(serviceManager.Exam(), serviceManager.Attempt(), serviceManager.Publication(), validator, logger),
		attemptHandler:    NewAttemptHandler(serviceManager.Attempt(), serviceManager.Scoring(), logger),
		evaluationHandler: NewEvaluationHandler(serviceManager.Evaluation(), logger),
		studentHandler:    NewStudentHandler(serviceManager.Student(), logger),
		authMiddleware:    authMiddleware,
		health:            health,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	requireAdmin := hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin)
	requireStudent := hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		exams := v1.Group("/exams")
		{
			// Authoring and triage - Admins only
			exams.POST("", requireAdmin, hm.examHandler.CreateExam)
			exams.GET("", requireAdmin, hm.examHandler.ListExams)
			exams.GET("/:id", requireAdmin, hm.examHandler.GetExam)
			exams.PUT("/:id", requireAdmin, hm.examHandler.UpdateExam)
			exams.PUT("/:id/status", requireAdmin, hm.examHandler.UpdateExamStatus)
			exams.POST("/:id/questions", requireAdmin, hm.examHandler.AddQuestion)
			exams.GET("/:id/attempts", requireAdmin, hm.examHandler.ListExamAttempts)
			exams.POST("/:id/results", requireAdmin, hm.examHandler.PublishResults)

			// Sitting - Students only
			exams.POST("/:id/attempts", requireStudent, hm.attemptHandler.StartAttempt)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", requireAdmin, hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/recompute", requireAdmin, hm.attemptHandler.RecomputeScore)
			attempts.POST("/:id/submit", requireStudent, hm.attemptHandler.SubmitAttempt)
		}

		v1.POST("/evaluations", requireAdmin, hm.evaluationHandler.EvaluateAnswer)

		me := v1.Group("/me")
		me.Use(requireStudent)
		{
			me.GET("/attempts", hm.studentHandler.GetMyAttempts)
			me.GET("/attempts/:id/result", hm.studentHandler.GetMyResult)
		}
	}

	router.GET("/metrics", metrics.PrometheusHandler())

	router.GET("/health", func(c *gin.Context) {
		if hm.health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			if err := hm.health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "exam-evaluation-service",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-evaluation-service",
		})
	})
}
