package models

import (
	"time"
)

type ExamStatus string

const (
	ExamStatusDraft    ExamStatus = "draft"
	ExamStatusActive   ExamStatus = "active"
	ExamStatusInactive ExamStatus = "inactive"
)

type Exam struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200" validate:"required,min=3,max=200"`
	Description *string    `json:"description" gorm:"type:text"`
	Duration    int        `json:"duration" gorm:"not null;default:60" validate:"min=1,max=600"` // minutes
	ExamType    string     `json:"exam_type" gorm:"size:50;default:'general'"`
	Status      ExamStatus `json:"status" gorm:"default:'draft';index" validate:"exam_status"`

	// Scoring fields, frozen once attempts exist
	TotalMarks   int `json:"total_marks" gorm:"not null;default:0"`
	PassingMarks int `json:"passing_marks" gorm:"not null;default:0"`

	ResultsPublished   bool       `json:"results_published" gorm:"default:false;index"`
	ResultsPublishedAt *time.Time `json:"results_published_at"`

	CreatedBy string    `json:"created_by" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// CanTransitionTo reports whether an exam may move from its current status to next.
func (e *Exam) CanTransitionTo(next ExamStatus) bool {
	for _, allowed := range examTransitions[e.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

var examTransitions = map[ExamStatus][]ExamStatus{
	ExamStatusDraft:    {ExamStatusActive},
	ExamStatusActive:   {ExamStatusInactive},
	ExamStatusInactive: {ExamStatusActive},
}
