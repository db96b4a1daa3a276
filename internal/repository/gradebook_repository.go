package repository

import (
	"context"
	"errors"
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GradebookRepository struct {
	DB *gorm.DB
}

func NewGradebookRepository(db *gorm.DB) *GradebookRepository {
	return &GradebookRepository{DB: db}
}

// GetOrCreate 每个教学班懒初始化一份草稿成绩册；
// 并发首访由 class_section_id 唯一索引兜底，输家改走查询。
func (r *GradebookRepository) GetOrCreate(classSectionID uint) (*model.GradeBook, error) {
	var book model.GradeBook
	err := r.DB.Where("class_section_id = ?", classSectionID).First(&book).Error
	if err == nil {
		return &book, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	book = model.GradeBook{ClassSectionID: classSectionID, Status: model.GradeBookDraft}
	if err := r.DB.Create(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = r.DB.Where("class_section_id = ?", classSectionID).First(&book).Error
			if err != nil {
				return nil, err
			}
			return &book, nil
		}
		return nil, err
	}
	return &book, nil
}

func (r *GradebookRepository) FindBySection(classSectionID uint) (*model.GradeBook, error) {
	var book model.GradeBook
	err := r.DB.Where("class_section_id = ?", classSectionID).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NotFound("no gradebook for class section %d", classSectionID)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *GradebookRepository) CreateItem(item *model.GradeItem) error {
	return r.DB.Create(item).Error
}

func (r *GradebookRepository) GetItems(gradebookID uint) ([]model.GradeItem, error) {
	var items []model.GradeItem
	err := r.DB.Where("grade_book_id = ?", gradebookID).
		Order("sort_order ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *GradebookRepository) GetEntries(gradebookID uint) ([]model.GradeEntry, error) {
	var entries []model.GradeEntry
	err := r.DB.
		Joins("JOIN grade_items ON grade_items.id = grade_entries.grade_item_id").
		Where("grade_items.grade_book_id = ?", gradebookID).
		Find(&entries).Error
	return entries, err
}

// UpsertEntries 批量写分。版本 CAS 放在同一事务里：
// 自增命中 0 行说明 expectedVersion 已过期，整批回滚并返回 CONFLICT。
func (r *GradebookRepository) UpsertEntries(ctx context.Context, gradebookID uint, expectedVersion int, entries []model.GradeEntry) (int, error) {
	newVersion := 0
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.GradeBook{}).
			Where("id = ? AND version = ?", gradebookID, expectedVersion).
			Update("version", gorm.Expr("version + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return util.Conflict("gradebook %d version mismatch, expected %d", gradebookID, expectedVersion)
		}
		newVersion = expectedVersion + 1

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "grade_item_id"}, {Name: "enrollment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&entries).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

// UpsertEntry 成绩同步的幂等单格写入，不校验版本但仍推进版本号，
// 重复执行收敛到同一分数。
func (r *GradebookRepository) UpsertEntry(ctx context.Context, gradebookID uint, entry model.GradeEntry) error {
	entry.UpdatedAt = time.Now()
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.GradeBook{}).
			Where("id = ?", gradebookID).
			Update("version", gorm.Expr("version + 1")).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "grade_item_id"}, {Name: "enrollment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&entry).Error
	})
}

// TransitionStatus 按允许的来源状态集合做 CAS 流转。
// 状态变更同样推进 version，基于旧版本的写分随之失效。
func (r *GradebookRepository) TransitionStatus(gradebookID uint, from []model.GradeBookStatus, to model.GradeBookStatus) (bool, error) {
	result := r.DB.Model(&model.GradeBook{}).
		Where("id = ? AND status IN ?", gradebookID, from).
		Updates(map[string]interface{}{
			"status":  to,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GradebookRepository) CreateApproval(a *model.GradebookApproval) error {
	return r.DB.Create(a).Error
}

func (r *GradebookRepository) DecideApproval(gradebookID uint, outcome model.ApprovalOutcome, message string, at time.Time) error {
	return r.DB.Model(&model.GradebookApproval{}).
		Where("grade_book_id = ? AND outcome = ?", gradebookID, model.ApprovalPending).
		Updates(map[string]interface{}{
			"outcome":      outcome,
			"message":      message,
			"responded_at": at,
		}).Error
}

func (r *GradebookRepository) LatestApproval(gradebookID uint) (*model.GradebookApproval, error) {
	var approval model.GradebookApproval
	err := r.DB.Where("grade_book_id = ?", gradebookID).
		Order("requested_at DESC").
		First(&approval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NotFound("no approval history for gradebook %d", gradebookID)
	}
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

// ResolveQuizGradeItem 找教学班成绩册里 kind=quiz 的评分项（成绩同步的落点）。
// 缺失返回 GRADEBOOK_NOT_FOUND，交给队列稍后重试。
func (r *GradebookRepository) ResolveQuizGradeItem(classSectionID uint) (*model.GradeItem, error) {
	var item model.GradeItem
	err := r.DB.
		Joins("JOIN grade_books ON grade_books.id = grade_items.grade_book_id").
		Where("grade_books.class_section_id = ? AND grade_items.kind = ?", classSectionID, model.GradeItemQuiz).
		Order("grade_items.id ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.GradebookNotFound("no quiz grade item configured for class section %d", classSectionID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
