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

// attemptStateMachine owns every attempt status write. Each edge is a
// named method with its guard checked against the locked row.
type attemptStateMachine struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func newAttemptStateMachine(repo repositories.Repository, logger *slog.Logger) *attemptStateMachine {
	return &attemptStateMachine{repo: repo, logger: logger}
}

// Submit is pending -> completed. Objective answers must already be graded.
func (m *attemptStateMachine) Submit(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, at time.Time) error {
	return m.transition(ctx, tx, attempt, models.AttemptCompleted, map[string]interface{}{
		"submitted_at": at,
	})
}

// PromoteEvaluated is completed -> evaluated, taken only once no answer of
// the attempt needs evaluation. Returns whether the edge was taken.
func (m *attemptStateMachine) PromoteEvaluated(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, at time.Time) (bool, error) {
	if attempt.Status != models.AttemptCompleted {
		return false, nil
	}

	pending, err := m.repo.Answer().CountNeedingEvaluation(ctx, tx, attempt.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count pending evaluations: %w", err)
	}
	if pending > 0 {
		return false, nil
	}

	if err := m.transition(ctx, tx, attempt, models.AttemptEvaluated, map[string]interface{}{
		"evaluated_at": at,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// PublishExam is evaluated -> published for every listed attempt of the
// exam. Any attempt not moved fails the whole batch.
func (m *attemptStateMachine) PublishExam(ctx context.Context, tx *gorm.DB, examID uint, attemptIDs []uint, at time.Time) error {
	if len(attemptIDs) == 0 {
		return nil
	}

	moved, err := m.repo.Attempt().BulkTransitionStatus(ctx, tx, examID, models.AttemptEvaluated, models.AttemptPublished, map[string]interface{}{
		"published_at": at,
	})
	if err != nil {
		return fmt.Errorf("failed to publish attempts: %w", err)
	}
	if moved != int64(len(attemptIDs)) {
		return fmt.Errorf("%w: expected %d attempts published, moved %d", ErrConcurrentModification, len(attemptIDs), moved)
	}

	metrics.AttemptTransitions.WithLabelValues(string(models.AttemptEvaluated), string(models.AttemptPublished)).Add(float64(moved))
	return nil
}

func (m *attemptStateMachine) transition(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, to models.AttemptStatus, updates map[string]interface{}) error {
	from := attempt.Status
	if !from.CanTransitionTo(to) {
		return &TransitionError{AttemptID: attempt.ID, From: from, To: to}
	}

	if err := m.repo.Attempt().TransitionStatus(ctx, tx, attempt.ID, from, to, updates); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return fmt.Errorf("%w: attempt %d left %s", ErrConcurrentModification, attempt.ID, from)
		}
		return fmt.Errorf("failed to update attempt status: %w", err)
	}

	attempt.Status = to
	attempt.Version++

	metrics.AttemptTransitions.WithLabelValues(string(from), string(to)).Inc()
	m.logger.Info("Attempt status changed",
		"attempt_id", attempt.ID,
		"from", from,
		"to", to)

	return nil
}
