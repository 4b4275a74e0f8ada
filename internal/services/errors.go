package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/validator"
)

var (
	ErrExamNotFound    = errors.New("exam not found")
	ErrExamNotActive   = errors.New("exam is not active")
	ErrExamLocked      = errors.New("exam scoring is locked because attempts exist")
	ErrExamNotEditable = errors.New("questions can only be added to draft exams")

	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadyExists    = errors.New("attempt already exists for this exam")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptNotSubmitted     = errors.New("attempt has not been submitted")

	ErrAnswerNotFound      = errors.New("answer not found")
	ErrUnsupportedQuestion = errors.New("unsupported question type")

	ErrInvalidTransition      = errors.New("invalid attempt status transition")
	ErrConcurrentModification = errors.New("attempt was modified concurrently")

	ErrNoAttemptsToPublish = errors.New("exam has no attempts")
	ErrUnevaluatedAttempts = errors.New("exam has attempts awaiting evaluation")
	ErrResultNotPublished  = errors.New("result has not been published")
)

type ValidationError = validator.ValidationError
type ValidationErrors = validator.ValidationErrors

func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}}
}

// BusinessRuleError is a well formed request the current state cannot accept
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// TransitionError reports a rejected attempt status edge
type TransitionError struct {
	AttemptID uint
	From      models.AttemptStatus
	To        models.AttemptStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("attempt %d cannot move from %s to %s", e.AttemptID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// UnevaluatedAttemptsError lists the attempts blocking publication
type UnevaluatedAttemptsError struct {
	ExamID     uint
	AttemptIDs []uint
}

func (e *UnevaluatedAttemptsError) Error() string {
	return fmt.Sprintf("exam %d has %d attempts awaiting evaluation: %v", e.ExamID, len(e.AttemptIDs), e.AttemptIDs)
}

func (e *UnevaluatedAttemptsError) Unwrap() error {
	return ErrUnevaluatedAttempts
}
