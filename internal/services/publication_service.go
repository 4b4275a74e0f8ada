package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/events"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/metrics"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
)

type publicationService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	publisher events.EventPublisher
	states    *attemptStateMachine
}

func NewPublicationService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher) PublicationService {
	return &publicationService{
		db:        db,
		repo:      repo,
		logger:    logger,
		publisher: publisher,
		states:    newAttemptStateMachine(repo, logger),
	}
}

// Publish makes every evaluated attempt of the exam visible. The exam row
// and all of its attempts are locked, so the flag and the bulk transition
// commit together or not at all.
func (s *publicationService) Publish(ctx context.Context, examID uint, actorID string) (*models.PublishResult, error) {
	start := time.Now()
	defer metrics.ObserveGrading("publish", start)

	s.logger.Info("Publishing exam results", "exam_id", examID, "actor_id", actorID)

	result := &models.PublishResult{ExamID: examID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := s.repo.Exam().GetByIDForUpdate(ctx, tx, examID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to lock exam: %w", err)
		}

		attempts, err := s.repo.Attempt().LockByExam(ctx, tx, exam.ID)
		if err != nil {
			return fmt.Errorf("failed to lock attempts: %w", err)
		}
		if len(attempts) == 0 {
			return NewBusinessRuleError("publish_requires_attempts", ErrNoAttemptsToPublish.Error(), map[string]interface{}{
				"exam_id": exam.ID,
			})
		}

		var evaluated, unevaluated []uint
		for _, attempt := range attempts {
			switch attempt.Status {
			case models.AttemptEvaluated:
				evaluated = append(evaluated, attempt.ID)
			case models.AttemptCompleted:
				unevaluated = append(unevaluated, attempt.ID)
			case models.AttemptPending:
				result.SkippedPending++
			}
		}
		if len(unevaluated) > 0 {
			return &UnevaluatedAttemptsError{ExamID: exam.ID, AttemptIDs: unevaluated}
		}

		now := time.Now()
		if err := s.states.PublishExam(ctx, tx, exam.ID, evaluated, now); err != nil {
			return err
		}

		if err := s.repo.Exam().Update(ctx, tx, exam.ID, map[string]interface{}{
			"results_published":    true,
			"results_published_at": now,
		}); err != nil {
			return fmt.Errorf("failed to flag exam as published: %w", err)
		}

		result.PublishedCount = len(evaluated)
		result.AttemptIDs = evaluated
		result.PublishedAt = now
		return nil
	})
	if err != nil {
		s.logger.Warn("Publication rejected", "exam_id", examID, "error", err)
		return nil, err
	}
	if result.AttemptIDs == nil {
		result.AttemptIDs = []uint{}
	}

	s.repo.Exam().InvalidateCache(ctx, examID)
	metrics.ResultsPublished.Inc()

	if err := s.publisher.PublishResultsPublished(ctx, events.ResultsPublishedEvent{
		ExamID:         examID,
		PublishedBy:    actorID,
		PublishedCount: result.PublishedCount,
		AttemptIDs:     result.AttemptIDs,
		PublishedAt:    result.PublishedAt,
	}); err != nil {
		s.logger.Error("Failed to publish results event", "exam_id", examID, "error", err)
	}

	s.logger.Info("Exam results published",
		"exam_id", examID,
		"published_count", result.PublishedCount,
		"skipped_pending", result.SkippedPending)

	return result, nil
}
