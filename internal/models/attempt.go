package models

import (
	"time"
)

type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptCompleted AttemptStatus = "completed"
	AttemptEvaluated AttemptStatus = "evaluated"
	AttemptPublished AttemptStatus = "published"
)

// attemptEdges holds the only forward edge out of each status.
// Published has no outgoing edge.
var attemptEdges = map[AttemptStatus]AttemptStatus{
	AttemptPending:   AttemptCompleted,
	AttemptCompleted: AttemptEvaluated,
	AttemptEvaluated: AttemptPublished,
}

// CanTransitionTo reports whether next is the single allowed successor of s.
func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	succ, ok := attemptEdges[s]
	return ok && succ == next
}

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func (s AttemptStatus) Rank() int {
	switch s {
	case AttemptPending:
		return 0
	case AttemptCompleted:
		return 1
	case AttemptEvaluated:
		return 2
	case AttemptPublished:
		return 3
	}
	return -1
}

// IsSubmitted reports whether the attempt has left pending.
func (s AttemptStatus) IsSubmitted() bool {
	return s.Rank() >= AttemptCompleted.Rank()
}

// Attempt is a single user's sitting of an exam.
type Attempt struct {
	ID     uint          `json:"id" gorm:"primaryKey"`
	UserID string        `json:"user_id" gorm:"not null;size:100;uniqueIndex:idx_user_exam"`
	ExamID uint          `json:"exam_id" gorm:"not null;uniqueIndex:idx_user_exam;index"`
	Status AttemptStatus `json:"status" gorm:"not null;size:20;index"`

	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	EvaluatedAt *time.Time `json:"evaluated_at"`
	PublishedAt *time.Time `json:"published_at"`

	TotalScore float64 `json:"total_score" gorm:"not null;default:0"`
	Percentage float64 `json:"percentage" gorm:"not null;default:0"`
	Passed     bool    `json:"passed"`

	EvaluatorID *string `json:"evaluator_id" gorm:"size:100"`
	Remarks     *string `json:"remarks" gorm:"type:text"`

	// Version guards aggregate writes against lost updates
	Version int `json:"-" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Exam    *Exam    `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "user_exams"
}

// Answer is one attempt's response to one question.
type Answer struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	AttemptID  uint    `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID uint    `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	AnswerText *string `json:"answer_text" gorm:"type:text"`

	IsCorrect       *bool   `json:"is_correct"`
	ScoreAwarded    float64 `json:"score_awarded" gorm:"not null;default:0"`
	NeedsEvaluation bool    `json:"needs_evaluation" gorm:"index"`

	EvaluatedBy *string    `json:"evaluated_by" gorm:"size:100"`
	Remarks     *string    `json:"remarks" gorm:"type:text"`
	EvaluatedAt *time.Time `json:"evaluated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Answer) TableName() string {
	return "user_answers"
}

// EvaluationStats is the per-attempt grading progress projection.
type EvaluationStats struct {
	AttemptID              uint `json:"attempt_id"`
	TotalQuestions         int  `json:"total_questions"`
	EvaluatedQuestions     int  `json:"evaluated_questions"`
	AutoEvaluated          int  `json:"auto_evaluated"`
	ManualEvaluationNeeded int  `json:"manual_evaluation_needed"`
	FullyEvaluated         bool `json:"fully_evaluated"`
}
