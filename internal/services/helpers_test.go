package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/config"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/events"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/validator"
	"github.com/SAP-F-2025/exam-evaluation-service/pkg"
)

type testEnv struct {
	db        *gorm.DB
	repo      repositories.Repository
	services  ServiceManager
	publisher *events.MockEventPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := pkg.MigrateDatabase(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db})
	publisher := events.NewMockEventPublisher(log)

	sm := NewServiceManager(db, repo, log, validator.New(), publisher, config.GradingConfig{MaxRetries: 5})
	if err := sm.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize services: %v", err)
	}

	return &testEnv{db: db, repo: repo, services: sm, publisher: publisher}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func mcq(marks int, key string) *models.QuestionCreateRequest {
	return &models.QuestionCreateRequest{
		Type:          models.QuestionTypeMCQ,
		Text:          "Pick one",
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: strPtr(key),
		Marks:         marks,
	}
}

func trueFalse(marks int, key string) *models.QuestionCreateRequest {
	return &models.QuestionCreateRequest{
		Type:          models.QuestionTypeTrueFalse,
		Text:          "True or false",
		CorrectAnswer: strPtr(key),
		Marks:         marks,
	}
}

func text(marks int) *models.QuestionCreateRequest {
	return &models.QuestionCreateRequest{
		Type:  models.QuestionTypeText,
		Text:  "Explain",
		Marks: marks,
	}
}

// activeExam authors an exam with the given questions and activates it
func (e *testEnv) activeExam(t *testing.T, passingMarks int, questions ...*models.QuestionCreateRequest) (*models.Exam, []*models.Question) {
	t.Helper()
	ctx := context.Background()

	exam, err := e.services.Exam().Create(ctx, &models.ExamCreateRequest{
		Title:        "Midterm",
		Duration:     60,
		PassingMarks: passingMarks,
	}, "admin-1")
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}

	created := make([]*models.Question, 0, len(questions))
	for i, q := range questions {
		q.OrderNumber = i + 1
		question, err := e.services.Exam().AddQuestion(ctx, exam.ID, q)
		if err != nil {
			t.Fatalf("add question %d: %v", i, err)
		}
		created = append(created, question)
	}

	exam, err = e.services.Exam().UpdateStatus(ctx, exam.ID, models.ExamStatusActive)
	if err != nil {
		t.Fatalf("activate exam: %v", err)
	}
	return exam, created
}

// submit starts and submits an attempt for user with answers keyed by question
func (e *testEnv) submit(t *testing.T, examID uint, userID string, answers map[uint]string) *models.Attempt {
	t.Helper()
	ctx := context.Background()

	session, err := e.services.Attempt().Start(ctx, examID, userID)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	req := &models.SubmitAttemptRequest{}
	for qid, a := range answers {
		req.Answers = append(req.Answers, models.AnswerSubmission{QuestionID: qid, AnswerText: strPtr(a)})
	}
	attempt, err := e.services.Attempt().Submit(ctx, session.Attempt.ID, req, userID)
	if err != nil {
		t.Fatalf("submit attempt: %v", err)
	}
	return attempt
}

func (e *testEnv) reload(t *testing.T, attemptID uint) *models.Attempt {
	t.Helper()
	attempt, err := e.repo.Attempt().GetByIDWithDetails(context.Background(), nil, attemptID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	return attempt
}

func (e *testEnv) answerFor(t *testing.T, attempt *models.Attempt, questionID uint) *models.Answer {
	t.Helper()
	for i := range attempt.Answers {
		if attempt.Answers[i].QuestionID == questionID {
			return &attempt.Answers[i]
		}
	}
	t.Fatalf("attempt %d has no answer for question %d", attempt.ID, questionID)
	return nil
}

// assertTotalMatchesAnswers checks the aggregate equals the answer sum
func assertTotalMatchesAnswers(t *testing.T, attempt *models.Attempt) {
	t.Helper()
	var sum float64
	for _, a := range attempt.Answers {
		sum += a.ScoreAwarded
	}
	if attempt.TotalScore != sum {
		t.Errorf("total_score = %v, answers sum to %v", attempt.TotalScore, sum)
	}
}
