package events

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
)

const (
	TopicAttemptSubmitted = "exam.attempt.submitted"
	TopicAttemptEvaluated = "exam.attempt.evaluated"
	TopicResultsPublished = "exam.results.published"
)

type AttemptSubmittedEvent struct {
	AttemptID          uint                 `json:"attempt_id"`
	ExamID             uint                 `json:"exam_id"`
	UserID             string               `json:"user_id"`
	Status             models.AttemptStatus `json:"status"`
	TotalScore         float64              `json:"total_score"`
	PendingEvaluations int                  `json:"pending_evaluations"`
	SubmittedAt        time.Time            `json:"submitted_at"`
}

type AttemptEvaluatedEvent struct {
	AttemptID      uint                 `json:"attempt_id"`
	AnswerID       uint                 `json:"answer_id"`
	ExamID         uint                 `json:"exam_id"`
	EvaluatorID    string               `json:"evaluator_id"`
	Status         models.AttemptStatus `json:"status"`
	TotalScore     float64              `json:"total_score"`
	FullyEvaluated bool                 `json:"fully_evaluated"`
	EvaluatedAt    time.Time            `json:"evaluated_at"`
}

type ResultsPublishedEvent struct {
	ExamID         uint      `json:"exam_id"`
	PublishedBy    string    `json:"published_by"`
	PublishedCount int       `json:"published_count"`
	AttemptIDs     []uint    `json:"attempt_ids"`
	PublishedAt    time.Time `json:"published_at"`
}

// EventPublisher emits grading lifecycle events. Callers publish only
// after the owning transaction commits.
type EventPublisher interface {
	PublishAttemptSubmitted(ctx context.Context, event AttemptSubmittedEvent) error
	PublishAttemptEvaluated(ctx context.Context, event AttemptEvaluatedEvent) error
	PublishResultsPublished(ctx context.Context, event ResultsPublishedEvent) error
	Close() error
}
