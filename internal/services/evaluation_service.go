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

type evaluationService struct {
	db         *gorm.DB
	repo       repositories.Repository
	logger     *slog.Logger
	validator  *validator.Validator
	publisher  events.EventPublisher
	aggregator *scoreAggregator
	states     *attemptStateMachine
}

func NewEvaluationService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, maxRetries int) EvaluationService {
	return &evaluationService{
		db:         db,
		repo:       repo,
		logger:     logger,
		validator:  validator,
		publisher:  publisher,
		aggregator: newScoreAggregator(db, repo, logger, maxRetries),
		states:     newAttemptStateMachine(repo, logger),
	}
}

// Evaluate grades one text answer. The attempt row is locked for the whole
// read-modify-write so concurrent evaluations of one attempt serialize, and
// the aggregate write is additionally version checked and retried.
func (s *evaluationService) Evaluate(ctx context.Context, req *models.EvaluateAnswerRequest, evaluatorID string) (*models.EvaluationResult, error) {
	start := time.Now()
	defer metrics.ObserveGrading("evaluate", start)

	s.logger.Info("Evaluating answer",
		"answer_id", req.UserAnswerID,
		"score", req.ScoreAwarded,
		"evaluator_id", evaluatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var result *models.EvaluationResult
	err := s.aggregator.withRetry(ctx, "evaluate", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = s.evaluateInTx(ctx, tx, req, evaluatorID)
			return err
		})
	}, "answer_id", req.UserAnswerID)
	if err != nil {
		s.logger.Warn("Evaluation rejected", "answer_id", req.UserAnswerID, "evaluator_id", evaluatorID, "error", err)
		return nil, err
	}

	metrics.ManualEvaluations.Inc()

	if err := s.publisher.PublishAttemptEvaluated(ctx, events.AttemptEvaluatedEvent{
		AttemptID:      result.Attempt.ID,
		AnswerID:       result.Answer.ID,
		ExamID:         result.Attempt.ExamID,
		EvaluatorID:    evaluatorID,
		Status:         result.Attempt.Status,
		TotalScore:     result.Attempt.TotalScore,
		FullyEvaluated: result.Stats.FullyEvaluated,
		EvaluatedAt:    *result.Answer.EvaluatedAt,
	}); err != nil {
		s.logger.Error("Failed to publish evaluation event", "attempt_id", result.Attempt.ID, "error", err)
	}

	s.logger.Info("Answer evaluated",
		"answer_id", result.Answer.ID,
		"attempt_id", result.Attempt.ID,
		"total_score", result.Attempt.TotalScore,
		"status", result.Attempt.Status)

	return result, nil
}

func (s *evaluationService) evaluateInTx(ctx context.Context, tx *gorm.DB, req *models.EvaluateAnswerRequest, evaluatorID string) (*models.EvaluationResult, error) {
	answer, err := s.repo.Answer().GetByIDWithQuestion(ctx, tx, req.UserAnswerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	if answer.Question == nil {
		return nil, fmt.Errorf("answer %d has no question", answer.ID)
	}

	if answer.Question.Type != models.QuestionTypeText {
		return nil, NewValidationError("user_answer_id", "only text answers can be evaluated manually", req.UserAnswerID)
	}
	if errs := s.validator.GetBusinessValidator().ValidateManualScore(req.ScoreAwarded, answer.Question.Marks); len(errs) > 0 {
		return nil, errs
	}

	attempt, err := s.repo.Attempt().GetByIDForUpdate(ctx, tx, answer.AttemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to lock attempt: %w", err)
	}
	if !attempt.Status.IsSubmitted() {
		return nil, ErrAttemptNotSubmitted
	}

	exam, err := s.repo.Exam().GetByID(ctx, tx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	now := time.Now()
	if err := s.repo.Answer().Update(ctx, tx, answer.ID, map[string]interface{}{
		"is_correct":       *req.IsCorrect,
		"score_awarded":    req.ScoreAwarded,
		"needs_evaluation": false,
		"evaluated_by":     evaluatorID,
		"remarks":          req.Remarks,
		"evaluated_at":     now,
	}); err != nil {
		return nil, fmt.Errorf("failed to store evaluation: %w", err)
	}

	answer.IsCorrect = req.IsCorrect
	answer.ScoreAwarded = req.ScoreAwarded
	answer.NeedsEvaluation = false
	answer.EvaluatedBy = &evaluatorID
	answer.Remarks = req.Remarks
	answer.EvaluatedAt = &now

	// Evaluator identity is recorded on the attempt inside the same
	// version guarded write as the aggregate. An evaluation without
	// remarks keeps the remark already on the attempt.
	attemptUpdates := map[string]interface{}{
		"evaluator_id": evaluatorID,
	}
	if req.Remarks != nil {
		attemptUpdates["remarks"] = *req.Remarks
	}
	if err := s.repo.Attempt().UpdateWithVersion(ctx, tx, attempt.ID, attempt.Version, attemptUpdates); err != nil {
		return nil, s.versionError(attempt.ID, err)
	}
	attempt.Version++
	attempt.EvaluatorID = &evaluatorID
	if req.Remarks != nil {
		attempt.Remarks = req.Remarks
	}

	if _, err := s.aggregator.recomputeAttempt(ctx, tx, attempt, exam); err != nil {
		return nil, err
	}

	promoted, err := s.states.PromoteEvaluated(ctx, tx, attempt, now)
	if err != nil {
		return nil, err
	}
	if promoted {
		attempt.EvaluatedAt = &now
	}

	stats, err := s.repo.Answer().GetEvaluationStats(ctx, tx, []uint{attempt.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation stats: %w", err)
	}

	return &models.EvaluationResult{
		Answer:  answer,
		Attempt: attempt,
		Stats:   stats[attempt.ID],
	}, nil
}

func (s *evaluationService) versionError(attemptID uint, err error) error {
	if errors.Is(err, repositories.ErrVersionConflict) {
		return fmt.Errorf("%w: attempt %d", ErrConcurrentModification, attemptID)
	}
	return fmt.Errorf("failed to update attempt: %w", err)
}
