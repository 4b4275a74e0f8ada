package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
)

// Every method takes an optional tx. A nil tx runs on the base connection.

type ExamFilters struct {
	Status    *models.ExamStatus
	CreatedBy *string
	Limit     int
	Offset    int
}

type AttemptFilters struct {
	Status    *models.AttemptStatus
	UserID    *string
	ExamID    *uint
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) error
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)

	// Cached read path for authoring screens. Never used by grading.
	GetCached(ctx context.Context, id uint) (*models.Exam, error)
	ListCached(ctx context.Context, filters ExamFilters) ([]*models.Exam, int64, error)
	InvalidateCache(ctx context.Context, id uint)
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error)
	SumMarks(ctx context.Context, tx *gorm.DB, examID uint) (int, error)
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error)
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.Attempt, int64, error)
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
	ListIDsByExamAndStatus(ctx context.Context, tx *gorm.DB, examID uint, status models.AttemptStatus) ([]uint, error)
	LockByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Attempt, error)

	// TransitionStatus moves one attempt from -> to, failing with
	// ErrStatusConflict when the stored status is not from.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus, updates map[string]interface{}) error
	// BulkTransitionStatus moves every attempt of the exam in status from.
	BulkTransitionStatus(ctx context.Context, tx *gorm.DB, examID uint, from, to models.AttemptStatus, updates map[string]interface{}) (int64, error)
	// UpdateWithVersion writes updates only if the stored version matches,
	// bumping it. Fails with ErrVersionConflict otherwise.
	UpdateWithVersion(ctx context.Context, tx *gorm.DB, id uint, version int, updates map[string]interface{}) error
}

type AnswerRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	GetByIDWithQuestion(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error)
	Update(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) error
	SumScore(ctx context.Context, tx *gorm.DB, attemptID uint) (float64, error)
	CountNeedingEvaluation(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error)
	GetEvaluationStats(ctx context.Context, tx *gorm.DB, attemptIDs []uint) (map[uint]*models.EvaluationStats, error)
}
