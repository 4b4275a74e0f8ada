package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/events"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/metrics"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/validator"
)

type attemptService struct {
	db         *gorm.DB
	repo       repositories.Repository
	logger     *slog.Logger
	validator  *validator.Validator
	publisher  events.EventPublisher
	grader     *Grader
	aggregator *scoreAggregator
	states     *attemptStateMachine
}

func NewAttemptService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, maxRetries int) AttemptService {
	return &attemptService{
		db:         db,
		repo:       repo,
		logger:     logger,
		validator:  validator,
		publisher:  publisher,
		grader:     NewGrader(),
		aggregator: newScoreAggregator(db, repo, logger, maxRetries),
		states:     newAttemptStateMachine(repo, logger),
	}
}

// Start opens the user's single attempt on an active exam with one blank
// answer per question. Calling it again while pending resumes the attempt.
func (s *attemptService) Start(ctx context.Context, examID uint, userID string) (*models.AttemptSession, error) {
	s.logger.Info("Starting attempt", "exam_id", examID, "user_id", userID)

	var session *models.AttemptSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := s.repo.Exam().GetByID(ctx, tx, examID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if exam.Status != models.ExamStatusActive {
			return ErrExamNotActive
		}

		questions, err := s.repo.Question().GetByExam(ctx, tx, examID)
		if err != nil {
			return fmt.Errorf("failed to get questions: %w", err)
		}

		existing, err := s.repo.Attempt().GetByUserAndExam(ctx, tx, userID, examID)
		switch {
		case err == nil:
			if existing.Status != models.AttemptPending {
				return ErrAttemptAlreadyExists
			}
			session = newAttemptSession(existing, questions)
			return nil
		case !repositories.IsNotFoundError(err):
			return fmt.Errorf("failed to check existing attempt: %w", err)
		}

		attempt := &models.Attempt{
			UserID:    userID,
			ExamID:    examID,
			Status:    models.AttemptPending,
			StartedAt: time.Now(),
			Version:   1,
		}
		if err := s.repo.Attempt().Create(ctx, tx, attempt); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAttemptAlreadyExists
			}
			return fmt.Errorf("failed to create attempt: %w", err)
		}

		answers := make([]*models.Answer, 0, len(questions))
		for _, q := range questions {
			answers = append(answers, &models.Answer{
				AttemptID:  attempt.ID,
				QuestionID: q.ID,
				// Ungraded text answers always await evaluation
				NeedsEvaluation: q.Type == models.QuestionTypeText,
			})
		}
		if err := s.repo.Answer().CreateBatch(ctx, tx, answers); err != nil {
			return fmt.Errorf("failed to create blank answers: %w", err)
		}

		session = newAttemptSession(attempt, questions)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt ready",
		"attempt_id", session.Attempt.ID,
		"exam_id", examID,
		"user_id", userID,
		"questions", len(session.Questions))

	return session, nil
}

// Submit grades the attempt in one transaction: objective answers are
// auto-graded, text answers queued for evaluation, the aggregate written,
// and the attempt moved to completed (and straight on to evaluated when
// nothing is left to grade by hand).
func (s *attemptService) Submit(ctx context.Context, attemptID uint, req *models.SubmitAttemptRequest, userID string) (*models.Attempt, error) {
	start := time.Now()
	defer metrics.ObserveGrading("submit", start)

	s.logger.Info("Submitting attempt",
		"attempt_id", attemptID,
		"user_id", userID,
		"answers", len(req.Answers))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		attempt     *models.Attempt
		pendingText int
		gradedByKey = map[models.QuestionType]map[bool]int{}
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = s.repo.Attempt().GetByIDForUpdate(ctx, tx, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}
		if attempt.UserID != userID {
			return NewPermissionError(userID, attemptID, "attempt", "submit", "attempt belongs to another user")
		}
		if attempt.Status != models.AttemptPending {
			return ErrAttemptAlreadySubmitted
		}

		exam, err := s.repo.Exam().GetByID(ctx, tx, attempt.ExamID)
		if err != nil {
			return fmt.Errorf("failed to get exam: %w", err)
		}
		questions, err := s.repo.Question().GetByExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return fmt.Errorf("failed to get questions: %w", err)
		}

		submitted, err := indexSubmission(req.Answers, questions)
		if err != nil {
			return err
		}

		existing, err := s.repo.Answer().GetByAttempt(ctx, tx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to get answers: %w", err)
		}
		rows := make(map[uint]*models.Answer, len(existing))
		for _, a := range existing {
			rows[a.QuestionID] = a
		}

		var missing []*models.Answer
		for _, q := range questions {
			text := submitted[q.ID]
			outcome, err := s.grader.Grade(q, text)
			if err != nil {
				return err
			}

			if q.Type.IsObjective() {
				if gradedByKey[q.Type] == nil {
					gradedByKey[q.Type] = map[bool]int{}
				}
				gradedByKey[q.Type][*outcome.IsCorrect]++
			}
			if outcome.NeedsEvaluation {
				pendingText++
			}

			row, ok := rows[q.ID]
			if !ok {
				missing = append(missing, &models.Answer{
					AttemptID:       attemptID,
					QuestionID:      q.ID,
					AnswerText:      text,
					IsCorrect:       outcome.IsCorrect,
					ScoreAwarded:    outcome.ScoreAwarded,
					NeedsEvaluation: outcome.NeedsEvaluation,
				})
				continue
			}
			if err := s.repo.Answer().Update(ctx, tx, row.ID, map[string]interface{}{
				"answer_text":      text,
				"is_correct":       outcome.IsCorrect,
				"score_awarded":    outcome.ScoreAwarded,
				"needs_evaluation": outcome.NeedsEvaluation,
			}); err != nil {
				return fmt.Errorf("failed to store graded answer: %w", err)
			}
		}
		if err := s.repo.Answer().CreateBatch(ctx, tx, missing); err != nil {
			return fmt.Errorf("failed to store graded answers: %w", err)
		}

		now := time.Now()
		if err := s.states.Submit(ctx, tx, attempt, now); err != nil {
			return err
		}
		attempt.SubmittedAt = &now

		if _, err := s.aggregator.recomputeAttempt(ctx, tx, attempt, exam); err != nil {
			return err
		}

		promoted, err := s.states.PromoteEvaluated(ctx, tx, attempt, now)
		if err != nil {
			return err
		}
		if promoted {
			attempt.EvaluatedAt = &now
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Attempt submission rejected", "attempt_id", attemptID, "user_id", userID, "error", err)
		return nil, err
	}

	for qType, byResult := range gradedByKey {
		for isCorrect, n := range byResult {
			result := "incorrect"
			if isCorrect {
				result = "correct"
			}
			metrics.AnswersAutoGraded.WithLabelValues(string(qType), result).Add(float64(n))
		}
	}

	if err := s.publisher.PublishAttemptSubmitted(ctx, events.AttemptSubmittedEvent{
		AttemptID:          attempt.ID,
		ExamID:             attempt.ExamID,
		UserID:             attempt.UserID,
		Status:             attempt.Status,
		TotalScore:         attempt.TotalScore,
		PendingEvaluations: pendingText,
		SubmittedAt:        *attempt.SubmittedAt,
	}); err != nil {
		s.logger.Error("Failed to publish submission event", "attempt_id", attempt.ID, "error", err)
	}

	s.logger.Info("Attempt submitted",
		"attempt_id", attempt.ID,
		"status", attempt.Status,
		"total_score", attempt.TotalScore,
		"pending_evaluations", pendingText)

	return attempt, nil
}

// GetWithStats returns the attempt, its graded answers and grading progress
func (s *attemptService) GetWithStats(ctx context.Context, attemptID uint) (*models.AttemptWithStats, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	stats, err := s.repo.Answer().GetEvaluationStats(ctx, nil, []uint{attemptID})
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation stats: %w", err)
	}

	return &models.AttemptWithStats{Attempt: *attempt, Stats: *stats[attemptID]}, nil
}

// ListByExam lists an exam's attempts with evaluation stats for triage
func (s *attemptService) ListByExam(ctx context.Context, examID uint, params models.ListAttemptsParams) (*models.PaginatedResponse, error) {
	if _, err := s.repo.Exam().GetByID(ctx, nil, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	page, size := normalizePage(params.Page, params.PageSize)
	attempts, total, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{
		ExamID: &examID,
		Status: params.Status,
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	ids := make([]uint, len(attempts))
	for i, a := range attempts {
		ids[i] = a.ID
	}
	stats, err := s.repo.Answer().GetEvaluationStats(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation stats: %w", err)
	}

	items := make([]models.AttemptWithStats, len(attempts))
	for i, a := range attempts {
		a.Exam = nil
		items[i] = models.AttemptWithStats{Attempt: *a, Stats: *stats[a.ID]}
	}

	return newPaginatedResponse(items, total, page, size), nil
}

// indexSubmission maps question id to answer text, rejecting the whole
// submission on a foreign or repeated question.
func indexSubmission(answers []models.AnswerSubmission, questions []*models.Question) (map[uint]*string, error) {
	belongs := make(map[uint]bool, len(questions))
	for _, q := range questions {
		belongs[q.ID] = true
	}

	out := make(map[uint]*string, len(answers))
	for _, a := range answers {
		if !belongs[a.QuestionID] {
			return nil, NewValidationError("answers.question_id", "question does not belong to this exam", a.QuestionID)
		}
		if _, dup := out[a.QuestionID]; dup {
			return nil, NewValidationError("answers.question_id", "question answered more than once", a.QuestionID)
		}
		out[a.QuestionID] = a.AnswerText
	}
	return out, nil
}

// newAttemptSession strips answer keys from the questions handed to a student
func newAttemptSession(attempt *models.Attempt, questions []*models.Question) *models.AttemptSession {
	out := make([]models.Question, len(questions))
	for i, q := range questions {
		out[i] = *q
		out[i].CorrectAnswer = nil
	}
	return &models.AttemptSession{Attempt: attempt, Questions: out}
}
