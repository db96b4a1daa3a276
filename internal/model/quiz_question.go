package model

type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "true_false"
)

// swagger:model QuizQuestion
type QuizQuestion struct {
	BaseModel

	QuizID uint         `gorm:"index;type:bigint unsigned" json:"quizId"`
	Text   string       `gorm:"type:text;not null" json:"text"`
	Type   QuestionType `gorm:"type:enum('mcq','true_false');default:'mcq'" json:"type"`
	Points int          `gorm:"default:1" json:"points"`
	Order  int          `gorm:"default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// swagger:model QuizAnswerOption
type QuizAnswerOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;type:bigint unsigned" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"-"` // 永不下发给学生端
}

func (QuizAnswerOption) TableName() string {
	return "quiz_answer_options"
}
