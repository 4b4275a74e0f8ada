package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/config"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/events"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/validator"
)

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	grading   config.GradingConfig

	// Service instances
	examService        ExamService
	attemptService     AttemptService
	evaluationService  EvaluationService
	scoreAggregator    ScoreAggregator
	publicationService PublicationService
	studentService     StudentService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, grading config.GradingConfig) ServiceManager {
	if grading.MaxRetries < 1 {
		grading.MaxRetries = 3
	}
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		grading:   grading,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.db == nil || sm.repo == nil || sm.publisher == nil {
		return fmt.Errorf("failed to initialize services: missing dependencies")
	}

	sm.logger.Info("Initializing service manager", "max_retries", sm.grading.MaxRetries)

	retries := sm.grading.MaxRetries
	sm.examService = NewExamService(sm.db, sm.repo, sm.logger, sm.validator)
	sm.attemptService = NewAttemptService(sm.db, sm.repo, sm.logger, sm.validator, sm.publisher, retries)
	sm.evaluationService = NewEvaluationService(sm.db, sm.repo, sm.logger, sm.validator, sm.publisher, retries)
	sm.scoreAggregator = NewScoreAggregator(sm.db, sm.repo, sm.logger, retries)
	sm.publicationService = NewPublicationService(sm.db, sm.repo, sm.logger, sm.publisher)
	sm.studentService = NewStudentService(sm.repo, sm.logger)

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) mustBeReady(name string) {
	if !sm.initialized {
		panic("service manager not initialized")
	}
	if sm.shutdown {
		panic(fmt.Sprintf("%s service requested after shutdown", name))
	}
}

// Service getters
func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("exam")
	return sm.examService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("attempt")
	return sm.attemptService
}

func (sm *serviceManager) Evaluation() EvaluationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("evaluation")
	return sm.evaluationService
}

func (sm *serviceManager) Scoring() ScoreAggregator {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("scoring")
	return sm.scoreAggregator
}

func (sm *serviceManager) Publication() PublicationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("publication")
	return sm.publicationService
}

func (sm *serviceManager) Student() StudentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("student")
	return sm.studentService
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if err := sm.publisher.Close(); err != nil {
		sm.logger.Error("Failed to close event publisher", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
