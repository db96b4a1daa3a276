package repository

import (
	"context"
	"errors"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// CreateIfAbsent 依赖 (quiz_id, student_id) 唯一索引。
// 并发重复开考时第二个插入命中唯一约束，转换成 CONFLICT。
func (r *AttemptRepository) CreateIfAbsent(a *model.QuizAttempt) error {
	err := r.DB.Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.Conflict("ALREADY_ATTEMPTED: student %d already attempted quiz %d", a.StudentID, a.QuizID)
	}
	return err
}

func (r *AttemptRepository) FindByID(id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.First(&attempt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NotFound("attempt %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// SubmitWithAnswers 单事务内 CAS 提交：只有 in_progress 的记录能翻到 submitted，
// 翻转失败说明另一个提交已经赢了，整个事务回滚。
func (r *AttemptRepository) SubmitWithAnswers(ctx context.Context, a *model.QuizAttempt, answers []model.QuizAttemptAnswer) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.QuizAttempt{}).
			Where("id = ? AND status = ?", a.ID, model.AttemptInProgress).
			Updates(map[string]interface{}{
				"status":        a.Status,
				"submitted_at":  a.SubmittedAt,
				"score":         a.Score,
				"max_score":     a.MaxScore,
				"correct_count": a.CorrectCount,
				"total_count":   a.TotalCount,
				"late":          a.Late,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return util.Conflict("attempt %d already submitted", a.ID)
		}
		if len(answers) == 0 {
			return nil
		}
		for i := range answers {
			answers[i].AttemptID = a.ID
		}
		return tx.Create(&answers).Error
	})
}

func (r *AttemptRepository) GetAnswers(attemptID uint) ([]model.QuizAttemptAnswer, error) {
	var answers []model.QuizAttemptAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}
