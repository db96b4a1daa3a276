package model

import "time"

type QuizStatus string

const (
	QuizDraft     QuizStatus = "draft"
	QuizPublished QuizStatus = "published"
	QuizClosed    QuizStatus = "closed"
)

// 题量只允许固定档位
var AllowedQuizSizes = []int{10, 20, 30}

// swagger:model Quiz
type Quiz struct {
	BaseModel

	ClassSectionID   uint       `gorm:"index;type:bigint unsigned" json:"classSectionId"`
	CreatorID        uint       `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	TotalQuestions   int        `gorm:"not null" json:"totalQuestions"` // 10/20/30
	TimeLimitMinutes *int       `json:"timeLimitMinutes,omitempty"`
	ShuffleQuestions bool       `gorm:"default:false" json:"shuffleQuestions"`
	ShuffleAnswers   bool       `gorm:"default:false" json:"shuffleAnswers"`
	StartAt          *time.Time `json:"startAt,omitempty"`
	EndAt            *time.Time `json:"endAt,omitempty"`
	Status           QuizStatus `gorm:"type:enum('draft','published','closed');default:'draft'" json:"status"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

func ValidQuizSize(n int) bool {
	for _, s := range AllowedQuizSizes {
		if n == s {
			return true
		}
	}
	return false
}
