package services

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
)

// GradeOutcome is what a strategy decides for one answer
type GradeOutcome struct {
	IsCorrect       *bool
	ScoreAwarded    float64
	NeedsEvaluation bool
}

// gradingStrategy grades answers of a single question type
type gradingStrategy interface {
	Grade(q *models.Question, answerText *string) GradeOutcome
}

// Grader routes each question type to its strategy. Adding a question
// type means adding one entry here.
type Grader struct {
	strategies map[models.QuestionType]gradingStrategy
}

func NewGrader() *Grader {
	return &Grader{
		strategies: map[models.QuestionType]gradingStrategy{
			models.QuestionTypeMCQ:       mcqStrategy{},
			models.QuestionTypeTrueFalse: trueFalseStrategy{},
			models.QuestionTypeText:      textStrategy{},
		},
	}
}

func (g *Grader) Grade(q *models.Question, answerText *string) (GradeOutcome, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return GradeOutcome{}, fmt.Errorf("%w: %q", ErrUnsupportedQuestion, q.Type)
	}
	return s.Grade(q, answerText), nil
}

// mcqStrategy awards full marks on an exact match with the answer key
type mcqStrategy struct{}

func (mcqStrategy) Grade(q *models.Question, answerText *string) GradeOutcome {
	if isBlank(answerText) || q.CorrectAnswer == nil {
		return incorrect()
	}
	if *answerText == *q.CorrectAnswer {
		return correct(q.Marks)
	}
	return incorrect()
}

// trueFalseStrategy compares normalized true/false tokens
type trueFalseStrategy struct{}

func (trueFalseStrategy) Grade(q *models.Question, answerText *string) GradeOutcome {
	if isBlank(answerText) || q.CorrectAnswer == nil {
		return incorrect()
	}
	given, ok := models.NormalizeBoolToken(*answerText)
	if !ok {
		return incorrect()
	}
	key, ok := models.NormalizeBoolToken(*q.CorrectAnswer)
	if !ok || given != key {
		return incorrect()
	}
	return correct(q.Marks)
}

// textStrategy defers every free-text answer to an evaluator, blank ones included
type textStrategy struct{}

func (textStrategy) Grade(q *models.Question, answerText *string) GradeOutcome {
	return GradeOutcome{IsCorrect: nil, ScoreAwarded: 0, NeedsEvaluation: true}
}

func correct(marks int) GradeOutcome {
	t := true
	return GradeOutcome{IsCorrect: &t, ScoreAwarded: float64(marks)}
}

func incorrect() GradeOutcome {
	f := false
	return GradeOutcome{IsCorrect: &f, ScoreAwarded: 0}
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
