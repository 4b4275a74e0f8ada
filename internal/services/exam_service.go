package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/validator"
)

const defaultExamType = "general"

type examService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ExamService {
	return &examService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *examService) Create(ctx context.Context, req *models.ExamCreateRequest, creatorID string) (*models.Exam, error) {
	s.logger.Info("Creating exam", "title", req.Title, "creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	examType := req.ExamType
	if examType == "" {
		examType = defaultExamType
	}

	exam := &models.Exam{
		Title:        req.Title,
		Description:  req.Description,
		Duration:     req.Duration,
		ExamType:     examType,
		Status:       models.ExamStatusDraft,
		PassingMarks: req.PassingMarks,
		CreatedBy:    creatorID,
	}
	if err := s.repo.Exam().Create(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}
	s.repo.Exam().InvalidateCache(ctx, exam.ID)

	s.logger.Info("Exam created", "exam_id", exam.ID)
	return exam, nil
}

func (s *examService) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetCached(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

func (s *examService) List(ctx context.Context, params models.ListExamsParams) (*models.PaginatedResponse, error) {
	page, size := normalizePage(params.Page, params.PageSize)
	exams, total, err := s.repo.Exam().ListCached(ctx, repositories.ExamFilters{
		Status: params.Status,
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return newPaginatedResponse(exams, total, page, size), nil
}

// Update edits metadata. Scoring fields are frozen once attempts exist.
func (s *examService) Update(ctx context.Context, id uint, req *models.ExamUpdateRequest) (*models.Exam, error) {
	s.logger.Info("Updating exam", "exam_id", id)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var exam *models.Exam
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockExam(ctx, tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Title != nil {
			updates["title"] = *req.Title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Duration != nil {
			updates["duration"] = *req.Duration
		}
		if req.ExamType != nil {
			updates["exam_type"] = *req.ExamType
		}
		if req.PassingMarks != nil && *req.PassingMarks != current.PassingMarks {
			attempts, err := s.repo.Attempt().CountByExam(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("failed to count attempts: %w", err)
			}
			if attempts > 0 {
				return ErrExamLocked
			}
			if current.Status != models.ExamStatusDraft && *req.PassingMarks > current.TotalMarks {
				return NewValidationError("passing_marks", "cannot exceed total marks", *req.PassingMarks)
			}
			updates["passing_marks"] = *req.PassingMarks
		}

		if len(updates) > 0 {
			if err := s.repo.Exam().Update(ctx, tx, id, updates); err != nil {
				return fmt.Errorf("failed to update exam: %w", err)
			}
		}

		exam, err = s.repo.Exam().GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.repo.Exam().InvalidateCache(ctx, id)
	return exam, nil
}

func (s *examService) UpdateStatus(ctx context.Context, id uint, status models.ExamStatus) (*models.Exam, error) {
	s.logger.Info("Changing exam status", "exam_id", id, "status", status)

	if err := s.validator.Validate(&models.ExamStatusRequest{Status: status}); err != nil {
		return nil, err
	}

	var exam *models.Exam
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockExam(ctx, tx, id)
		if err != nil {
			return err
		}

		questions, err := s.repo.Question().CountByExam(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		if errs := s.validator.GetBusinessValidator().ValidateExamStatusTransition(current, status, questions); len(errs) > 0 {
			return errs
		}

		if err := s.repo.Exam().Update(ctx, tx, id, map[string]interface{}{"status": status}); err != nil {
			return fmt.Errorf("failed to update exam status: %w", err)
		}
		current.Status = status
		exam = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.repo.Exam().InvalidateCache(ctx, id)
	s.logger.Info("Exam status changed", "exam_id", id, "status", status)
	return exam, nil
}

// AddQuestion appends a question to a draft exam and refreshes total_marks
func (s *examService) AddQuestion(ctx context.Context, examID uint, req *models.QuestionCreateRequest) (*models.Question, error) {
	s.logger.Info("Adding question", "exam_id", examID, "type", req.Type, "marks", req.Marks)

	if errs := s.validator.GetBusinessValidator().ValidateQuestionCreate(req); len(errs) > 0 {
		return nil, errs
	}

	question := &models.Question{
		ExamID:      examID,
		Type:        req.Type,
		Text:        req.Text,
		Marks:       req.Marks,
		OrderNumber: req.OrderNumber,
	}
	switch req.Type {
	case models.QuestionTypeMCQ:
		options, err := json.Marshal(req.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		question.Options = datatypes.JSON(options)
		question.CorrectAnswer = req.CorrectAnswer
	case models.QuestionTypeTrueFalse:
		token, _ := models.NormalizeBoolToken(*req.CorrectAnswer)
		question.CorrectAnswer = &token
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := s.lockExam(ctx, tx, examID)
		if err != nil {
			return err
		}
		if exam.Status != models.ExamStatusDraft {
			return ErrExamNotEditable
		}
		attempts, err := s.repo.Attempt().CountByExam(ctx, tx, examID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if attempts > 0 {
			return ErrExamLocked
		}

		if err := s.repo.Question().Create(ctx, tx, question); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}

		total, err := s.repo.Question().SumMarks(ctx, tx, examID)
		if err != nil {
			return fmt.Errorf("failed to sum marks: %w", err)
		}
		return s.repo.Exam().Update(ctx, tx, examID, map[string]interface{}{"total_marks": total})
	})
	if err != nil {
		return nil, err
	}

	s.repo.Exam().InvalidateCache(ctx, examID)
	s.logger.Info("Question added", "exam_id", examID, "question_id", question.ID)
	return question, nil
}

func (s *examService) lockExam(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}
