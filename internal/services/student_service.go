package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
)

type studentService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewStudentService(repo repositories.Repository, logger *slog.Logger) StudentService {
	return &studentService{repo: repo, logger: logger}
}

// ResultVisible reports whether the owner may see the attempt's scores
func ResultVisible(attempt *models.Attempt, exam *models.Exam) bool {
	if exam == nil || !exam.ResultsPublished {
		return false
	}
	return attempt.Status == models.AttemptEvaluated || attempt.Status == models.AttemptPublished
}

func (s *studentService) ListMyAttempts(ctx context.Context, userID string, params models.ListAttemptsParams) (*models.PaginatedResponse, error) {
	page, size := normalizePage(params.Page, params.PageSize)
	attempts, total, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{
		UserID: &userID,
		Status: params.Status,
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	items := make([]models.StudentAttemptView, len(attempts))
	for i, a := range attempts {
		items[i] = newStudentAttemptView(a, a.Exam)
	}

	return newPaginatedResponse(items, total, page, size), nil
}

// GetMyResult returns the graded attempt to its owner once visible
func (s *studentService) GetMyResult(ctx context.Context, attemptID uint, userID string) (*models.StudentResult, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", "view", "attempt belongs to another user")
	}

	if !ResultVisible(attempt, attempt.Exam) {
		s.logger.Debug("Result withheld", "attempt_id", attemptID, "status", attempt.Status)
		return nil, ErrResultNotPublished
	}

	answers := make([]models.Answer, len(attempt.Answers))
	for i, a := range attempt.Answers {
		answers[i] = a
		if a.Question != nil {
			q := *a.Question
			q.CorrectAnswer = nil
			answers[i].Question = &q
		}
	}

	return &models.StudentResult{
		StudentAttemptView: newStudentAttemptView(attempt, attempt.Exam),
		Answers:            answers,
	}, nil
}

func newStudentAttemptView(attempt *models.Attempt, exam *models.Exam) models.StudentAttemptView {
	view := models.StudentAttemptView{
		AttemptID:   attempt.ID,
		ExamID:      attempt.ExamID,
		Status:      attempt.Status,
		SubmittedAt: attempt.SubmittedAt,
	}
	if exam != nil {
		view.ExamTitle = exam.Title
	}

	if ResultVisible(attempt, exam) {
		score, percentage, passed := attempt.TotalScore, attempt.Percentage, attempt.Passed
		marks := exam.TotalMarks
		view.ResultVisible = true
		view.TotalScore = &score
		view.TotalMarks = &marks
		view.Percentage = &percentage
		view.Passed = &passed
		view.Remarks = attempt.Remarks
	}
	return view
}
