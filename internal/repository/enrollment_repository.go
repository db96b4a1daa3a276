package repository

import (
	"errors"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"

	"gorm.io/gorm"
)

// EnrollmentRepository 任课/选课关系查询，实现 service.CourseAccess
type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) IsTeacherOf(teacherID, classSectionID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.ClassSection{}).
		Where("id = ? AND teacher_id = ?", classSectionID, teacherID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) IsEnrolled(studentID, classSectionID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("class_section_id = ? AND student_id = ?", classSectionID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) EnrollmentID(studentID, classSectionID uint) (uint, error) {
	var enrollment model.Enrollment
	err := r.DB.Where("class_section_id = ? AND student_id = ?", classSectionID, studentID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, util.NotFound("student %d is not enrolled in class section %d", studentID, classSectionID)
	}
	if err != nil {
		return 0, err
	}
	return enrollment.ID, nil
}

func (r *EnrollmentRepository) EnrollmentIDs(classSectionID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Enrollment{}).
		Where("class_section_id = ?", classSectionID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *EnrollmentRepository) FindSection(classSectionID uint) (*model.ClassSection, error) {
	var section model.ClassSection
	err := r.DB.First(&section, classSectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NotFound("class section %d not found", classSectionID)
	}
	if err != nil {
		return nil, err
	}
	return &section, nil
}
