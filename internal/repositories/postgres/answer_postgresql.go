package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	db := a.getDB(tx)
	return db.WithContext(ctx).Omit(clause.Associations).CreateInBatches(answers, 100).Error
}

func (a *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	db := a.getDB(tx)
	var answer models.Answer
	if err := db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) GetByIDWithQuestion(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	db := a.getDB(tx)
	var answer models.Answer
	if err := db.WithContext(ctx).Preload("Question").First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	db := a.getDB(tx)
	var answers []*models.Answer
	if err := db.WithContext(ctx).
		Preload("Question").
		Where("attempt_id = ?", attemptID).
		Order("id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

func (a *AnswerPostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) error {
	db := a.getDB(tx)
	result := db.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (a *AnswerPostgreSQL) SumScore(ctx context.Context, tx *gorm.DB, attemptID uint) (float64, error) {
	db := a.getDB(tx)
	var total float64
	err := db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("attempt_id = ?", attemptID).
		Select("COALESCE(SUM(score_awarded), 0)").
		Scan(&total).Error
	return total, err
}

func (a *AnswerPostgreSQL) CountNeedingEvaluation(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("attempt_id = ? AND needs_evaluation = ?", attemptID, true).
		Count(&count).Error
	return count, err
}

type evaluationStatsRow struct {
	AttemptID              uint
	TotalQuestions         int
	EvaluatedQuestions     int
	AutoEvaluated          int
	ManualEvaluationNeeded int
}

const evaluationStatsQuery = `
SELECT ua.attempt_id AS attempt_id,
       COUNT(*) AS total_questions,
       COALESCE(SUM(CASE WHEN ua.is_correct IS NOT NULL THEN 1 ELSE 0 END), 0) AS evaluated_questions,
       COALESCE(SUM(CASE WHEN q.type IN (?, ?) THEN 1 ELSE 0 END), 0) AS auto_evaluated,
       COALESCE(SUM(CASE WHEN q.type = ? AND ua.needs_evaluation = ? THEN 1 ELSE 0 END), 0) AS manual_evaluation_needed
FROM user_answers ua
JOIN questions q ON q.id = ua.question_id
WHERE ua.attempt_id IN ?
GROUP BY ua.attempt_id`

// GetEvaluationStats projects grading progress from the current answer rows.
// Attempts with no answers get zero stats and count as fully evaluated.
func (a *AnswerPostgreSQL) GetEvaluationStats(ctx context.Context, tx *gorm.DB, attemptIDs []uint) (map[uint]*models.EvaluationStats, error) {
	stats := make(map[uint]*models.EvaluationStats, len(attemptIDs))
	for _, id := range attemptIDs {
		stats[id] = &models.EvaluationStats{AttemptID: id, FullyEvaluated: true}
	}
	if len(attemptIDs) == 0 {
		return stats, nil
	}

	db := a.getDB(tx)
	var rows []evaluationStatsRow
	if err := db.WithContext(ctx).Raw(evaluationStatsQuery,
		string(models.QuestionTypeMCQ), string(models.QuestionTypeTrueFalse),
		string(models.QuestionTypeText), true,
		attemptIDs,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		stats[row.AttemptID] = &models.EvaluationStats{
			AttemptID:              row.AttemptID,
			TotalQuestions:         row.TotalQuestions,
			EvaluatedQuestions:     row.EvaluatedQuestions,
			AutoEvaluated:          row.AutoEvaluated,
			ManualEvaluationNeeded: row.ManualEvaluationNeeded,
			FullyEvaluated:         row.ManualEvaluationNeeded == 0,
		}
	}
	return stats, nil
}
