package model

import "time"

type GradeBookStatus string

const (
	GradeBookDraft           GradeBookStatus = "draft"
	GradeBookPendingApproval GradeBookStatus = "pending_approval"
	GradeBookPublished       GradeBookStatus = "published"
	GradeBookLocked          GradeBookStatus = "locked"
	GradeBookRejected        GradeBookStatus = "rejected"
)

// GradeBook 每个教学班一份。Version 在每次提交成功的变更上自增，
// 用于乐观并发检测。
// swagger:model GradeBook
type GradeBook struct {
	BaseModel
	ClassSectionID uint            `gorm:"uniqueIndex;type:bigint unsigned" json:"classSectionId"`
	Status         GradeBookStatus `gorm:"type:enum('draft','pending_approval','published','locked','rejected');default:'draft'" json:"status"`
	Version        int             `gorm:"default:0" json:"version"`
}

func (GradeBook) TableName() string {
	return "grade_books"
}

// Editable 教师可编辑的状态
func (g *GradeBook) Editable() bool {
	return g.Status == GradeBookDraft || g.Status == GradeBookRejected
}

type GradeItemKind string

const (
	GradeItemManual GradeItemKind = "manual"
	GradeItemQuiz   GradeItemKind = "quiz" // 测验成绩同步的落点
)

// swagger:model GradeItem
type GradeItem struct {
	BaseModel
	GradeBookID uint          `gorm:"index;type:bigint unsigned" json:"gradeBookId"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	MaxScore    float64       `gorm:"not null" json:"maxScore"`
	Weight      *float64      `json:"weight,omitempty"`
	Required    bool          `gorm:"default:false" json:"required"`
	Kind        GradeItemKind `gorm:"type:enum('manual','quiz');default:'manual'" json:"kind"`
	SortOrder   int           `gorm:"default:0" json:"sortOrder"`
}

func (GradeItem) TableName() string {
	return "grade_items"
}

// GradeEntry 学生×评分项的一格分数，复合主键
// swagger:model GradeEntry
type GradeEntry struct {
	GradeItemID  uint      `gorm:"primaryKey;type:bigint unsigned" json:"gradeItemId"`
	EnrollmentID uint      `gorm:"primaryKey;type:bigint unsigned" json:"enrollmentId"`
	Score        *float64  `json:"score,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (GradeEntry) TableName() string {
	return "grade_entries"
}

type ApprovalOutcome string

const (
	ApprovalPending  ApprovalOutcome = "pending"
	ApprovalApproved ApprovalOutcome = "approved"
	ApprovalRejected ApprovalOutcome = "rejected"
)

// swagger:model GradebookApproval
type GradebookApproval struct {
	BaseModel
	GradeBookID uint            `gorm:"index;type:bigint unsigned" json:"gradeBookId"`
	Outcome     ApprovalOutcome `gorm:"type:enum('pending','approved','rejected');default:'pending'" json:"outcome"`
	RequestedAt time.Time       `json:"requestedAt"`
	RespondedAt *time.Time      `json:"respondedAt,omitempty"`
	Message     string          `gorm:"type:text" json:"message"`
}

func (GradebookApproval) TableName() string {
	return "gradebook_approvals"
}
