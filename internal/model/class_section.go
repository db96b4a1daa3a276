package model

// ClassSection 班级/教学班。课程与选课的增删改由教务模块负责，
// 本模块只读取它做权限与名单判断。
// swagger:model ClassSection
type ClassSection struct {
	BaseModel
	Name      string `gorm:"size:255;not null" json:"name"`
	TeacherID uint   `gorm:"index;type:bigint unsigned" json:"teacherId"`
	Term      string `gorm:"size:50" json:"term"`
}

func (ClassSection) TableName() string {
	return "class_sections"
}

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	ClassSectionID uint `gorm:"index;type:bigint unsigned;uniqueIndex:uniq_section_student" json:"classSectionId"`
	StudentID      uint `gorm:"index;type:bigint unsigned;uniqueIndex:uniq_section_student" json:"studentId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
