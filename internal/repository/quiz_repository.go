package repository

import (
	"errors"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) CreateQuiz(q *model.Quiz) error {
	return r.DB.Create(q).Error
}

func (r *QuizRepository) FindQuizByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.First(&quiz, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NotFound("quiz %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) ListBySection(classSectionID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.Where("class_section_id = ?", classSectionID).
		Order("created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

// TransitionQuiz 带状态前置条件的更新；WHERE 命中 0 行说明状态已被并发改走
func (r *QuizRepository) TransitionQuiz(q *model.Quiz, from model.QuizStatus) (bool, error) {
	result := r.DB.Model(&model.Quiz{}).
		Where("id = ? AND status = ?", q.ID, from).
		Updates(map[string]interface{}{
			"status":   q.Status,
			"start_at": q.StartAt,
			"end_at":   q.EndAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateQuestion 题目与选项同事务落库
func (r *QuizRepository) CreateQuestion(q *model.QuizQuestion, options []model.QuizAnswerOption) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		for i := range options {
			options[i].QuestionID = q.ID
		}
		return tx.Create(&options).Error
	})
}

// UpdateQuestion 整体替换：题干更新，旧选项删除后重建
func (r *QuizRepository) UpdateQuestion(q *model.QuizQuestion, options []model.QuizAnswerOption) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(q).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", q.ID).Delete(&model.QuizAnswerOption{}).Error; err != nil {
			return err
		}
		for i := range options {
			options[i].ID = 0
			options[i].QuestionID = q.ID
		}
		return tx.Create(&options).Error
	})
}

func (r *QuizRepository) DeleteQuestion(questionID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", questionID).Delete(&model.QuizAnswerOption{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.QuizQuestion{}, questionID).Error
	})
}

func (r *QuizRepository) FindQuestionByID(id uint) (*model.QuizQuestion, error) {
	var question model.QuizQuestion
	err := r.DB.First(&question, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NotFound("question %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuizRepository) CountQuestions(quizID uint) (int, error) {
	var count int64
	err := r.DB.Model(&model.QuizQuestion{}).Where("quiz_id = ?", quizID).Count(&count).Error
	return int(count), err
}

func (r *QuizRepository) QuestionsWithOptions(quizID uint) ([]model.QuizQuestion, map[uint][]model.QuizAnswerOption, error) {
	var questions []model.QuizQuestion
	if err := r.DB.Where("quiz_id = ?", quizID).Order("`order` ASC").Find(&questions).Error; err != nil {
		return nil, nil, err
	}
	if len(questions) == 0 {
		return questions, map[uint][]model.QuizAnswerOption{}, nil
	}

	ids := make([]uint, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	var options []model.QuizAnswerOption
	if err := r.DB.Where("question_id IN ?", ids).Order("id ASC").Find(&options).Error; err != nil {
		return nil, nil, err
	}
	byQuestion := make(map[uint][]model.QuizAnswerOption, len(questions))
	for _, o := range options {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], o)
	}
	return questions, byQuestion, nil
}
