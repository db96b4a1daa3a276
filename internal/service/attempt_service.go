package service

import (
	"context"
	"math/rand"
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"
	"campus_edu_backend/pkg/logger"
	"campus_edu_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// AttemptService 负责学生作答：开考、快照渲染、提交判分。
// 每个 (测验, 学生) 至多一次作答，由存储层唯一约束兜底。
type AttemptService struct {
	Attempts AttemptStore
	Quizzes  QuizStore
	Access   CourseAccess
	Queue    SyncEnqueuer
	Now      Clock
}

func NewAttemptService(attempts AttemptStore, quizzes QuizStore, access CourseAccess, queue SyncEnqueuer, now Clock) *AttemptService {
	if now == nil {
		now = time.Now
	}
	return &AttemptService{Attempts: attempts, Quizzes: quizzes, Access: access, Queue: queue, Now: now}
}

// AttemptQuestionView 学生端题目视图，不携带正确答案标记
type AttemptQuestionView struct {
	QuestionID uint                `json:"questionId"`
	Text       string              `json:"text"`
	Type       model.QuestionType  `json:"type"`
	Points     int                 `json:"points"`
	Options    []AttemptOptionView `json:"options"`
}

type AttemptOptionView struct {
	OptionID uint   `json:"optionId"`
	Text     string `json:"text"`
}

type AttemptView struct {
	AttemptID uint                  `json:"attemptId"`
	QuizID    uint                  `json:"quizId"`
	Status    model.AttemptStatus   `json:"status"`
	DueAt     *time.Time            `json:"dueAt,omitempty"`
	Questions []AttemptQuestionView `json:"questions"`
}

type AnswerSubmission struct {
	QuestionID       uint `json:"questionId"`
	SelectedOptionID uint `json:"selectedOptionId"`
}

type SubmitResult struct {
	AttemptID    uint `json:"attemptId"`
	Score        int  `json:"score"`
	MaxScore     int  `json:"maxScore"`
	CorrectCount int  `json:"correctCount"`
	TotalCount   int  `json:"totalCount"`
	Late         bool `json:"late"`
}

// StartAttempt 开考。创建即原子 create-if-absent，
// 并发重复请求第二个拿到 CONFLICT，不做重试合并。
func (s *AttemptService) StartAttempt(studentID, quizID uint) (*AttemptView, error) {
	quiz, err := s.Quizzes.FindQuizByID(quizID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.Access.IsEnrolled(studentID, quiz.ClassSectionID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.Forbidden("student %d is not enrolled in class section %d", studentID, quiz.ClassSectionID)
	}

	now := s.Now()
	if quiz.Status != model.QuizPublished {
		return nil, util.InvalidState("quiz %d is %s, attempts require a published quiz", quizID, quiz.Status)
	}
	if quiz.StartAt != nil && now.Before(*quiz.StartAt) {
		return nil, util.InvalidState("quiz %d has not opened yet", quizID)
	}
	if quiz.EndAt != nil && now.After(*quiz.EndAt) {
		return nil, util.InvalidState("quiz %d is already past its window", quizID)
	}

	questions, _, err := s.Quizzes.QuestionsWithOptions(quizID)
	if err != nil {
		return nil, err
	}
	maxScore := 0
	for _, q := range questions {
		maxScore += q.Points
	}

	attempt := &model.QuizAttempt{
		QuizID:     quizID,
		StudentID:  studentID,
		StartedAt:  now,
		DueAt:      attemptDueAt(quiz, now),
		Status:     model.AttemptInProgress,
		MaxScore:   maxScore,
		TotalCount: len(questions),
	}
	if err := s.Attempts.CreateIfAbsent(attempt); err != nil {
		return nil, err
	}

	return s.buildView(attempt, quiz)
}

// GetAttempt 重新渲染作答页。乱序由 attemptID 播种，
// 刷新页面得到与开考时完全一致的顺序。
func (s *AttemptService) GetAttempt(studentID, attemptID uint) (*AttemptView, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.Forbidden("attempt %d does not belong to student %d", attemptID, studentID)
	}
	quiz, err := s.Quizzes.FindQuizByID(attempt.QuizID)
	if err != nil {
		return nil, err
	}
	return s.buildView(attempt, quiz)
}

// SubmitAttempt 提交判分。重复提交返回 CONFLICT；超时仍然受理但打迟交标记，
// 避免学生在截止边缘丢失答案。未作答/非法题目一律按错误计。
func (s *AttemptService) SubmitAttempt(ctx context.Context, studentID, attemptID uint, answers []AnswerSubmission) (*SubmitResult, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.Forbidden("attempt %d does not belong to student %d", attemptID, studentID)
	}
	if attempt.Status == model.AttemptSubmitted {
		return nil, util.Conflict("attempt %d already submitted", attemptID)
	}

	questions, optionsByQ, err := s.Quizzes.QuestionsWithOptions(attempt.QuizID)
	if err != nil {
		return nil, err
	}

	correctByQ := make(map[uint]uint, len(questions))
	validOption := make(map[uint]map[uint]bool, len(questions))
	for _, q := range questions {
		valid := make(map[uint]bool)
		for _, o := range optionsByQ[q.ID] {
			valid[o.ID] = true
			if o.IsCorrect {
				correctByQ[q.ID] = o.ID
			}
		}
		validOption[q.ID] = valid
	}

	selected := make(map[uint]uint, len(answers))
	for _, a := range answers {
		if validOption[a.QuestionID] != nil && validOption[a.QuestionID][a.SelectedOptionID] {
			selected[a.QuestionID] = a.SelectedOptionID
		}
	}

	score, correct, maxScore := 0, 0, 0
	rows := make([]model.QuizAttemptAnswer, 0, len(selected))
	for _, q := range questions {
		maxScore += q.Points
		optID, ok := selected[q.ID]
		if !ok {
			continue
		}
		rows = append(rows, model.QuizAttemptAnswer{QuestionID: q.ID, SelectedOptionID: optID})
		if optID == correctByQ[q.ID] {
			score += q.Points
			correct++
		}
	}

	now := s.Now()
	attempt.Status = model.AttemptSubmitted
	attempt.SubmittedAt = &now
	attempt.Score = score
	attempt.MaxScore = maxScore
	attempt.CorrectCount = correct
	attempt.TotalCount = len(questions)
	attempt.Late = attempt.DueAt != nil && now.After(*attempt.DueAt)

	if err := s.Attempts.SubmitWithAnswers(ctx, attempt, rows); err != nil {
		return nil, err
	}
	monitoring.AttemptSubmissions.Inc()

	// 成绩同步异步至少一次投递；入队失败只记日志，不影响本次提交
	if s.Queue != nil {
		if err := s.Queue.Enqueue(attempt.ID); err != nil {
			logger.Log.Error("failed to enqueue score sync",
				zap.Uint("attemptId", attempt.ID), zap.Error(err))
		}
	}

	return &SubmitResult{
		AttemptID:    attempt.ID,
		Score:        score,
		MaxScore:     maxScore,
		CorrectCount: correct,
		TotalCount:   len(questions),
		Late:         attempt.Late,
	}, nil
}

// AttemptAnswerReview 教师端逐题核对行，带正确选项标记
type AttemptAnswerReview struct {
	QuestionID       uint   `json:"questionId"`
	Text             string `json:"text"`
	Points           int    `json:"points"`
	SelectedOptionID uint   `json:"selectedOptionId,omitempty"`
	CorrectOptionID  uint   `json:"correctOptionId"`
	Correct          bool   `json:"correct"`
}

type AttemptReview struct {
	AttemptID   uint                  `json:"attemptId"`
	QuizID      uint                  `json:"quizId"`
	StudentID   uint                  `json:"studentId"`
	Score       int                   `json:"score"`
	MaxScore    int                   `json:"maxScore"`
	Late        bool                  `json:"late"`
	SubmittedAt *time.Time            `json:"submittedAt,omitempty"`
	Answers     []AttemptAnswerReview `json:"answers"`
}

// ReviewAttempt 任课教师核对一份已提交的作答，逐题给出学生实际选择与正确答案
func (s *AttemptService) ReviewAttempt(teacherID, attemptID uint) (*AttemptReview, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.Quizzes.FindQuizByID(attempt.QuizID)
	if err != nil {
		return nil, err
	}
	ok, err := s.Access.IsTeacherOf(teacherID, quiz.ClassSectionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.Forbidden("not the teacher of class section %d", quiz.ClassSectionID)
	}
	if attempt.Status != model.AttemptSubmitted {
		return nil, util.InvalidState("attempt %d has not been submitted yet", attemptID)
	}

	answers, err := s.Attempts.GetAnswers(attemptID)
	if err != nil {
		return nil, err
	}
	selected := make(map[uint]uint, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedOptionID
	}

	questions, optionsByQ, err := s.Quizzes.QuestionsWithOptions(attempt.QuizID)
	if err != nil {
		return nil, err
	}

	review := &AttemptReview{
		AttemptID:   attempt.ID,
		QuizID:      quiz.ID,
		StudentID:   attempt.StudentID,
		Score:       attempt.Score,
		MaxScore:    attempt.MaxScore,
		Late:        attempt.Late,
		SubmittedAt: attempt.SubmittedAt,
	}
	for _, q := range questions {
		row := AttemptAnswerReview{QuestionID: q.ID, Text: q.Text, Points: q.Points}
		for _, o := range optionsByQ[q.ID] {
			if o.IsCorrect {
				row.CorrectOptionID = o.ID
			}
		}
		if optID, picked := selected[q.ID]; picked {
			row.SelectedOptionID = optID
			row.Correct = optID == row.CorrectOptionID
		}
		review.Answers = append(review.Answers, row)
	}
	return review, nil
}

func (s *AttemptService) buildView(attempt *model.QuizAttempt, quiz *model.Quiz) (*AttemptView, error) {
	questions, optionsByQ, err := s.Quizzes.QuestionsWithOptions(quiz.ID)
	if err != nil {
		return nil, err
	}

	// 以 attemptID 为种子，刷新可复现
	rng := rand.New(rand.NewSource(int64(attempt.ID)))
	if quiz.ShuffleQuestions {
		rng.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	view := &AttemptView{
		AttemptID: attempt.ID,
		QuizID:    quiz.ID,
		Status:    attempt.Status,
		DueAt:     attempt.DueAt,
	}
	for _, q := range questions {
		options := optionsByQ[q.ID]
		idx := make([]int, len(options))
		for i := range idx {
			idx[i] = i
		}
		if quiz.ShuffleAnswers {
			rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
		qv := AttemptQuestionView{
			QuestionID: q.ID,
			Text:       q.Text,
			Type:       q.Type,
			Points:     q.Points,
		}
		for _, i := range idx {
			qv.Options = append(qv.Options, AttemptOptionView{OptionID: options[i].ID, Text: options[i].Text})
		}
		view.Questions = append(view.Questions, qv)
	}
	return view, nil
}

// attemptDueAt 取测验截止与限时截止的较早者
func attemptDueAt(quiz *model.Quiz, startedAt time.Time) *time.Time {
	var due *time.Time
	if quiz.TimeLimitMinutes != nil {
		t := startedAt.Add(time.Duration(*quiz.TimeLimitMinutes) * time.Minute)
		due = &t
	}
	if quiz.EndAt != nil && (due == nil || quiz.EndAt.Before(*due)) {
		due = quiz.EndAt
	}
	return due
}
