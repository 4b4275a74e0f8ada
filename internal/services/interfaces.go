package services

import (
	"context"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
)

// ExamService covers authoring: exams, their questions and lifecycle
type ExamService interface {
	Create(ctx context.Context, req *models.ExamCreateRequest, creatorID string) (*models.Exam, error)
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	List(ctx context.Context, params models.ListExamsParams) (*models.PaginatedResponse, error)
	Update(ctx context.Context, id uint, req *models.ExamUpdateRequest) (*models.Exam, error)
	UpdateStatus(ctx context.Context, id uint, status models.ExamStatus) (*models.Exam, error)
	AddQuestion(ctx context.Context, examID uint, req *models.QuestionCreateRequest) (*models.Question, error)
}

// AttemptService covers the student sitting and the admin attempt views
type AttemptService interface {
	Start(ctx context.Context, examID uint, userID string) (*models.AttemptSession, error)
	Submit(ctx context.Context, attemptID uint, req *models.SubmitAttemptRequest, userID string) (*models.Attempt, error)
	GetWithStats(ctx context.Context, attemptID uint) (*models.AttemptWithStats, error)
	ListByExam(ctx context.Context, examID uint, params models.ListAttemptsParams) (*models.PaginatedResponse, error)
}

// EvaluationService is the manual grading entry point
type EvaluationService interface {
	Evaluate(ctx context.Context, req *models.EvaluateAnswerRequest, evaluatorID string) (*models.EvaluationResult, error)
}

type ScoreAggregator interface {
	Recompute(ctx context.Context, attemptID uint) (*models.ScoreSummary, error)
}

type PublicationService interface {
	Publish(ctx context.Context, examID uint, actorID string) (*models.PublishResult, error)
}

// StudentService serves a student's own results under the visibility gate
type StudentService interface {
	ListMyAttempts(ctx context.Context, userID string, params models.ListAttemptsParams) (*models.PaginatedResponse, error)
	GetMyResult(ctx context.Context, attemptID uint, userID string) (*models.StudentResult, error)
}

type ServiceManager interface {
	Exam() ExamService
	Attempt() AttemptService
	Evaluation() EvaluationService
	Scoring() ScoreAggregator
	Publication() PublicationService
	Student() StudentService

	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
