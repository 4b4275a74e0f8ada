package models

import (
	"time"
)

type ExamCreateRequest struct {
	Title        string  `json:"title" validate:"required,min=3,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	Duration     int     `json:"duration" validate:"required,min=1,max=600"`
	ExamType     string  `json:"exam_type" validate:"omitempty,max=50"`
	PassingMarks int     `json:"passing_marks" validate:"min=0"`
}

type ExamUpdateRequest struct {
	Title        *string `json:"title" validate:"omitempty,min=3,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	Duration     *int    `json:"duration" validate:"omitempty,min=1,max=600"`
	ExamType     *string `json:"exam_type" validate:"omitempty,max=50"`
	PassingMarks *int    `json:"passing_marks" validate:"omitempty,min=0"`
}

type ExamStatusRequest struct {
	Status ExamStatus `json:"status" validate:"required,exam_status"`
}

type QuestionCreateRequest struct {
	Type          QuestionType `json:"type" validate:"required,question_type"`
	Text          string       `json:"text" validate:"required,max=5000"`
	Options       []string     `json:"options" validate:"omitempty,max=10,dive,required,max=500"`
	CorrectAnswer *string      `json:"correct_answer" validate:"omitempty,max=500"`
	Marks         int          `json:"marks" validate:"required,min=1,max=1000"`
	OrderNumber   int          `json:"order_number" validate:"min=0"`
}

type AnswerSubmission struct {
	QuestionID uint    `json:"question_id" validate:"required"`
	AnswerText *string `json:"answer_text" validate:"omitempty,max=10000"`
}

type SubmitAttemptRequest struct {
	Answers []AnswerSubmission `json:"answers" validate:"dive"`
}

// EvaluateAnswerRequest is the payload accepted by the manual evaluation endpoint.
type EvaluateAnswerRequest struct {
	UserAnswerID uint    `json:"user_answer_id" validate:"required"`
	IsCorrect    *bool   `json:"is_correct" validate:"required"`
	ScoreAwarded float64 `json:"score_awarded"`
	Remarks      *string `json:"remarks" validate:"omitempty,max=2000"`
}

type PublishResultsRequest struct {
	Action string `json:"action" validate:"required,publish_action"`
}

const PublishResultsAction = "publish_results"

type ListExamsParams struct {
	Status   *ExamStatus `form:"status"`
	Page     int         `form:"page"`
	PageSize int         `form:"page_size"`
}

type ListAttemptsParams struct {
	Status   *AttemptStatus `form:"status"`
	Page     int            `form:"page"`
	PageSize int            `form:"page_size"`
}

// ScoreSummary is the aggregate written back to an attempt after grading.
type ScoreSummary struct {
	AttemptID  uint    `json:"attempt_id"`
	TotalScore float64 `json:"total_score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
}

type AttemptWithStats struct {
	Attempt
	Stats EvaluationStats `json:"stats"`
}

type EvaluationResult struct {
	Answer  *Answer          `json:"answer"`
	Attempt *Attempt         `json:"attempt"`
	Stats   *EvaluationStats `json:"stats"`
}

// PublishResult reports one publication run. Pending attempts are left
// untouched and only counted.
type PublishResult struct {
	ExamID         uint      `json:"exam_id"`
	PublishedCount int       `json:"published_count"`
	AttemptIDs     []uint    `json:"attempt_ids"`
	SkippedPending int       `json:"skipped_pending"`
	PublishedAt    time.Time `json:"published_at"`
}

// StudentAttemptView is what a student sees for one attempt. Score
// fields stay nil until the result is visible.
type StudentAttemptView struct {
	AttemptID     uint          `json:"attempt_id"`
	ExamID        uint          `json:"exam_id"`
	ExamTitle     string        `json:"exam_title"`
	Status        AttemptStatus `json:"status"`
	SubmittedAt   *time.Time    `json:"submitted_at"`
	ResultVisible bool          `json:"result_visible"`
	TotalScore    *float64      `json:"total_score,omitempty"`
	TotalMarks    *int          `json:"total_marks,omitempty"`
	Percentage    *float64      `json:"percentage,omitempty"`
	Passed        *bool         `json:"passed,omitempty"`
	Remarks       *string       `json:"remarks,omitempty"`
}

type StudentResult struct {
	StudentAttemptView
	Answers []Answer `json:"answers"`
}

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// AttemptSession is returned to a student when an attempt starts. Questions
// carry no correct answers.
type AttemptSession struct {
	Attempt   *Attempt   `json:"attempt"`
	Questions []Question `json:"questions"`
}
