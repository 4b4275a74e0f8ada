package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/metrics"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
)

type scoreAggregator struct {
	db         *gorm.DB
	repo       repositories.Repository
	logger     *slog.Logger
	maxRetries int
}

func NewScoreAggregator(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, maxRetries int) ScoreAggregator {
	return newScoreAggregator(db, repo, logger, maxRetries)
}

func newScoreAggregator(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, maxRetries int) *scoreAggregator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &scoreAggregator{
		db:         db,
		repo:       repo,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// ComputeSummary derives percentage and pass state from a raw total.
// A zero total_marks exam yields 0 percent.
func ComputeSummary(attemptID uint, total float64, exam *models.Exam) models.ScoreSummary {
	var percentage float64
	if exam.TotalMarks > 0 {
		percentage = total / float64(exam.TotalMarks) * 100
	}
	return models.ScoreSummary{
		AttemptID:  attemptID,
		TotalScore: total,
		Percentage: percentage,
		Passed:     total >= float64(exam.PassingMarks),
	}
}

// Recompute re-derives the aggregate of one attempt from its answer rows
func (s *scoreAggregator) Recompute(ctx context.Context, attemptID uint) (*models.ScoreSummary, error) {
	var summary *models.ScoreSummary

	err := s.withRetry(ctx, "recompute", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			attempt, err := s.repo.Attempt().GetByIDForUpdate(ctx, tx, attemptID)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrAttemptNotFound
				}
				return fmt.Errorf("failed to get attempt: %w", err)
			}

			exam, err := s.repo.Exam().GetByID(ctx, tx, attempt.ExamID)
			if err != nil {
				return fmt.Errorf("failed to get exam: %w", err)
			}

			summary, err = s.recomputeAttempt(ctx, tx, attempt, exam)
			return err
		})
	}, "attempt_id", attemptID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt aggregate recomputed",
		"attempt_id", attemptID,
		"total_score", summary.TotalScore,
		"passed", summary.Passed)

	return summary, nil
}

// recomputeAttempt sums the answers and writes the aggregate guarded by the
// attempt version. The caller must hold the attempt row lock in tx.
func (s *scoreAggregator) recomputeAttempt(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, exam *models.Exam) (*models.ScoreSummary, error) {
	total, err := s.repo.Answer().SumScore(ctx, tx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum answer scores: %w", err)
	}

	summary := ComputeSummary(attempt.ID, total, exam)

	err = s.repo.Attempt().UpdateWithVersion(ctx, tx, attempt.ID, attempt.Version, map[string]interface{}{
		"total_score": summary.TotalScore,
		"percentage":  summary.Percentage,
		"passed":      summary.Passed,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: attempt %d", ErrConcurrentModification, attempt.ID)
		}
		return nil, fmt.Errorf("failed to write attempt aggregate: %w", err)
	}

	attempt.Version++
	attempt.TotalScore = summary.TotalScore
	attempt.Percentage = summary.Percentage
	attempt.Passed = summary.Passed

	return &summary, nil
}

// withRetry re-runs fn while it fails with ErrConcurrentModification.
// logArgs identify the target in retry logs.
func (s *scoreAggregator) withRetry(ctx context.Context, operation string, fn func() error, logArgs ...any) error {
	var err error
	for i := 0; i < s.maxRetries; i++ {
		err = fn()
		if !errors.Is(err, ErrConcurrentModification) {
			return err
		}

		metrics.AggregateConflicts.Inc()
		args := append([]any{"operation", operation, "try", i + 1, "max_retries", s.maxRetries}, logArgs...)

		if i == s.maxRetries-1 {
			s.logger.Warn("Concurrent attempt modification, retries exhausted", args...)
			break
		}
		s.logger.Warn("Concurrent attempt modification, retrying", args...)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
	}
	return err
}
