package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
)

// BusinessValidator handles rules that span fields or need stored state
type BusinessValidator struct {
	validate *validator.Validate
}

func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	return ToValidationErrors(bv.validate.Struct(s))
}

// ValidateQuestionCreate checks the answer key fits the question type
func (bv *BusinessValidator) ValidateQuestionCreate(req *models.QuestionCreateRequest) ValidationErrors {
	errs := bv.Validate(req)
	if len(errs) > 0 {
		return errs
	}

	switch req.Type {
	case models.QuestionTypeMCQ:
		if len(req.Options) < 2 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "mcq questions need at least two options",
				Value:   len(req.Options),
				Rule:    "business_logic",
			})
		}
		if req.CorrectAnswer == nil || !contains(req.Options, *req.CorrectAnswer) {
			errs = append(errs, ValidationError{
				Field:   "correct_answer",
				Message: "must match one of the options exactly",
				Value:   req.CorrectAnswer,
				Rule:    "business_logic",
			})
		}
		seen := make(map[string]bool, len(req.Options))
		for _, opt := range req.Options {
			if seen[opt] {
				errs = append(errs, ValidationError{
					Field:   "options",
					Message: "options must be unique",
					Value:   opt,
					Rule:    "business_logic",
				})
				break
			}
			seen[opt] = true
		}

	case models.QuestionTypeTrueFalse:
		if len(req.Options) > 0 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "truefalse questions take no options",
				Rule:    "business_logic",
			})
		}
		if req.CorrectAnswer == nil {
			errs = append(errs, ValidationError{
				Field:   "correct_answer",
				Message: "is required for truefalse questions",
				Rule:    "business_logic",
			})
		} else if _, ok := models.NormalizeBoolToken(*req.CorrectAnswer); !ok {
			errs = append(errs, ValidationError{
				Field:   "correct_answer",
				Message: "must be true or false",
				Value:   *req.CorrectAnswer,
				Rule:    "business_logic",
			})
		}

	case models.QuestionTypeText:
		if len(req.Options) > 0 || req.CorrectAnswer != nil {
			errs = append(errs, ValidationError{
				Field:   "correct_answer",
				Message: "text questions are graded manually and take no answer key",
				Rule:    "business_logic",
			})
		}
	}

	return errs
}

// ValidateExamStatusTransition checks the authoring lifecycle edge
func (bv *BusinessValidator) ValidateExamStatusTransition(exam *models.Exam, next models.ExamStatus, questionCount int64) ValidationErrors {
	var errs ValidationErrors

	if !exam.CanTransitionTo(next) {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", exam.Status, next),
			Value:   next,
			Rule:    "status_transition",
		})
	}

	if next == models.ExamStatusActive && questionCount == 0 {
		errs = append(errs, ValidationError{
			Field:   "questions",
			Message: "exam must have at least one question before activation",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}

	if next == models.ExamStatusActive && exam.PassingMarks > exam.TotalMarks {
		errs = append(errs, ValidationError{
			Field:   "passing_marks",
			Message: "cannot exceed total marks",
			Value:   exam.PassingMarks,
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidateManualScore bounds an evaluator's score by the question's marks
func (bv *BusinessValidator) ValidateManualScore(score float64, marks int) ValidationErrors {
	if score < 0 || score > float64(marks) {
		return ValidationErrors{{
			Field:   "score_awarded",
			Message: fmt.Sprintf("must be between 0 and %d", marks),
			Value:   score,
			Rule:    "score_range",
		}}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
