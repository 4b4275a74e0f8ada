package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionTypeMCQ       QuestionType = "mcq"
	QuestionTypeTrueFalse QuestionType = "truefalse"
	QuestionTypeText      QuestionType = "text"
)

// IsObjective reports whether answers of this type are graded automatically.
func (t QuestionType) IsObjective() bool {
	return t == QuestionTypeMCQ || t == QuestionTypeTrueFalse
}

type Question struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	ExamID        uint           `json:"exam_id" gorm:"not null;index"`
	Type          QuestionType   `json:"type" gorm:"not null;size:20" validate:"required,question_type"`
	Text          string         `json:"text" gorm:"type:text;not null" validate:"required"`
	Options       datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"` // mcq only, JSON array of strings
	CorrectAnswer *string        `json:"correct_answer,omitempty" gorm:"size:500"`
	Marks         int            `json:"marks" gorm:"not null" validate:"required,min=1"`
	OrderNumber   int            `json:"order_number" gorm:"not null;default:0"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList decodes the mcq options. Malformed or missing options yield nil.
func (q *Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// NormalizeBoolToken maps a true/false answer to its canonical token.
// The second return is false when the input is not a recognised token.
func NormalizeBoolToken(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return "true", true
	case "false":
		return "false", true
	}
	return "", false
}
