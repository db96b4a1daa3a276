package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// QuizAttempt 一次学生作答。唯一索引保证同一测验同一学生只有一条记录，
// 并发重复开考靠它在存储层拒绝。
// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel

	QuizID       uint          `gorm:"type:bigint unsigned;uniqueIndex:uniq_quiz_student" json:"quizId"`
	StudentID    uint          `gorm:"type:bigint unsigned;uniqueIndex:uniq_quiz_student" json:"studentId"`
	StartedAt    time.Time     `json:"startedAt"`
	SubmittedAt  *time.Time    `json:"submittedAt,omitempty"`
	DueAt        *time.Time    `json:"dueAt,omitempty"` // min(测验截止, 开始+限时)
	Status       AttemptStatus `gorm:"type:enum('in_progress','submitted');default:'in_progress'" json:"status"`
	Score        int           `gorm:"default:0" json:"score"`
	MaxScore     int           `gorm:"default:0" json:"maxScore"`
	CorrectCount int           `gorm:"default:0" json:"correctCount"`
	TotalCount   int           `gorm:"default:0" json:"totalCount"`
	Late         bool          `gorm:"default:false" json:"late"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// QuizAttemptAnswer 提交时一次性写入的每题选项
type QuizAttemptAnswer struct {
	BaseModel
	AttemptID        uint `gorm:"index;type:bigint unsigned" json:"attemptId"`
	QuestionID       uint `gorm:"index;type:bigint unsigned" json:"questionId"`
	SelectedOptionID uint `gorm:"type:bigint unsigned" json:"selectedOptionId"`
}

func (QuizAttemptAnswer) TableName() string {
	return "quiz_attempt_answers"
}
