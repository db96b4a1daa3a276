package service

import (
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"
)

// QuizService 负责测验生命周期：草稿编辑、题目校验、发布与关闭。
// 状态机 draft → published → closed，单向不可回退。
type QuizService struct {
	Quizzes QuizStore
	Access  CourseAccess
	Events  EventSink
	Now     Clock
}

func NewQuizService(quizzes QuizStore, access CourseAccess, events EventSink, now Clock) *QuizService {
	if now == nil {
		now = time.Now
	}
	return &QuizService{Quizzes: quizzes, Access: access, Events: events, Now: now}
}

type QuizCreateRequest struct {
	ClassSectionID   uint   `json:"classSectionId" binding:"required"`
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	TotalQuestions   int    `json:"totalQuestions" binding:"required"`
	TimeLimitMinutes *int   `json:"timeLimitMinutes"`
	ShuffleQuestions bool   `json:"shuffleQuestions"`
	ShuffleAnswers   bool   `json:"shuffleAnswers"`
}

type AnswerOptionRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionRequest struct {
	Text    string                `json:"text" binding:"required"`
	Type    model.QuestionType    `json:"type" binding:"required"`
	Points  int                   `json:"points"`
	Answers []AnswerOptionRequest `json:"answers" binding:"required"`
}

type PublishRequest struct {
	StartAt *time.Time `json:"startAt"`
	EndAt   *time.Time `json:"endAt"`
}

// QuizDetail 教师端详情，含正确答案标记
type QuizDetail struct {
	Quiz      model.Quiz           `json:"quiz"`
	Questions []QuestionWithOption `json:"questions"`
}

type QuestionWithOption struct {
	Question model.QuizQuestion       `json:"question"`
	Options  []model.QuizAnswerOption `json:"options"`
}

// CreateDraft 创建草稿测验
func (s *QuizService) CreateDraft(teacherID uint, req QuizCreateRequest) (*model.Quiz, error) {
	ok, err := s.Access.IsTeacherOf(teacherID, req.ClassSectionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.Forbidden("not the teacher of class section %d", req.ClassSectionID)
	}
	if req.Title == "" {
		return nil, util.InvalidInput("title required")
	}
	if !model.ValidQuizSize(req.TotalQuestions) {
		return nil, util.InvalidInput("totalQuestions must be one of 10/20/30, got %d", req.TotalQuestions)
	}
	if req.TimeLimitMinutes != nil && *req.TimeLimitMinutes <= 0 {
		return nil, util.InvalidInput("timeLimitMinutes must be positive")
	}

	quiz := &model.Quiz{
		ClassSectionID:   req.ClassSectionID,
		CreatorID:        teacherID,
		Title:            req.Title,
		Description:      req.Description,
		TotalQuestions:   req.TotalQuestions,
		TimeLimitMinutes: req.TimeLimitMinutes,
		ShuffleQuestions: req.ShuffleQuestions,
		ShuffleAnswers:   req.ShuffleAnswers,
		Status:           model.QuizDraft,
	}
	if err := s.Quizzes.CreateQuiz(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// AddQuestion 向草稿测验添加题目，连同选项整体校验后入库
func (s *QuizService) AddQuestion(teacherID, quizID uint, req QuestionRequest) (*model.QuizQuestion, error) {
	quiz, err := s.ownedQuiz(teacherID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizDraft {
		return nil, util.InvalidState("quiz %d is %s, questions can only be edited in draft", quizID, quiz.Status)
	}

	if err := validateQuestion(req); err != nil {
		return nil, err
	}

	count, err := s.Quizzes.CountQuestions(quizID)
	if err != nil {
		return nil, err
	}
	if count >= quiz.TotalQuestions {
		return nil, util.InvalidInput("quiz already has the required %d questions", quiz.TotalQuestions)
	}

	question := &model.QuizQuestion{
		QuizID: quizID,
		Text:   req.Text,
		Type:   req.Type,
		Points: req.Points,
		Order:  count + 1,
	}
	options := make([]model.QuizAnswerOption, 0, len(req.Answers))
	for _, a := range req.Answers {
		options = append(options, model.QuizAnswerOption{Text: a.Text, IsCorrect: a.IsCorrect})
	}
	if err := s.Quizzes.CreateQuestion(question, options); err != nil {
		return nil, err
	}
	return question, nil
}

// UpdateQuestion 草稿期内整体替换题干与选项
func (s *QuizService) UpdateQuestion(teacherID, quizID, questionID uint, req QuestionRequest) (*model.QuizQuestion, error) {
	quiz, err := s.ownedQuiz(teacherID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizDraft {
		return nil, util.InvalidState("quiz %d is %s, questions can only be edited in draft", quizID, quiz.Status)
	}
	question, err := s.Quizzes.FindQuestionByID(questionID)
	if err != nil {
		return nil, err
	}
	if question.QuizID != quizID {
		return nil, util.NotFound("question %d not in quiz %d", questionID, quizID)
	}
	if err := validateQuestion(req); err != nil {
		return nil, err
	}

	question.Text = req.Text
	question.Type = req.Type
	question.Points = req.Points
	options := make([]model.QuizAnswerOption, 0, len(req.Answers))
	for _, a := range req.Answers {
		options = append(options, model.QuizAnswerOption{QuestionID: questionID, Text: a.Text, IsCorrect: a.IsCorrect})
	}
	if err := s.Quizzes.UpdateQuestion(question, options); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuizService) DeleteQuestion(teacherID, quizID, questionID uint) error {
	quiz, err := s.ownedQuiz(teacherID, quizID)
	if err != nil {
		return err
	}
	if quiz.Status != model.QuizDraft {
		return util.InvalidState("quiz %d is %s, questions can only be edited in draft", quizID, quiz.Status)
	}
	question, err := s.Quizzes.FindQuestionByID(questionID)
	if err != nil {
		return err
	}
	if question.QuizID != quizID {
		return util.NotFound("question %d not in quiz %d", questionID, quizID)
	}
	return s.Quizzes.DeleteQuestion(questionID)
}

// Publish 发布测验并固定题目集。题量必须等于要求档位，
// 每题都要满足选项不变式。
func (s *QuizService) Publish(teacherID, quizID uint, req PublishRequest) (*model.Quiz, error) {
	quiz, err := s.ownedQuiz(teacherID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizDraft {
		return nil, util.InvalidState("quiz %d is %s, only draft can be published", quizID, quiz.Status)
	}
	if req.StartAt != nil && req.EndAt != nil && !req.EndAt.After(*req.StartAt) {
		return nil, util.InvalidInput("endAt must be after startAt")
	}

	questions, optionsByQ, err := s.Quizzes.QuestionsWithOptions(quizID)
	if err != nil {
		return nil, err
	}
	if len(questions) != quiz.TotalQuestions {
		return nil, util.InvalidState("quiz requires %d questions, has %d", quiz.TotalQuestions, len(questions))
	}
	for _, q := range questions {
		if err := checkOptionInvariant(q, optionsByQ[q.ID]); err != nil {
			return nil, err
		}
	}

	quiz.Status = model.QuizPublished
	quiz.StartAt = req.StartAt
	quiz.EndAt = req.EndAt
	changed, err := s.Quizzes.TransitionQuiz(quiz, model.QuizDraft)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, util.Conflict("quiz %d was modified concurrently", quizID)
	}

	if s.Events != nil {
		s.Events.QuizPublished(quiz.ID, quiz.ClassSectionID)
	}
	return quiz, nil
}

// Close 关闭已发布测验；进行中的作答仍可提交
func (s *QuizService) Close(teacherID, quizID uint) (*model.Quiz, error) {
	quiz, err := s.ownedQuiz(teacherID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizPublished {
		return nil, util.InvalidState("quiz %d is %s, only published can be closed", quizID, quiz.Status)
	}
	quiz.Status = model.QuizClosed
	changed, err := s.Quizzes.TransitionQuiz(quiz, model.QuizPublished)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, util.Conflict("quiz %d was modified concurrently", quizID)
	}
	return quiz, nil
}

func (s *QuizService) ListForTeacher(teacherID, classSectionID uint) ([]model.Quiz, error) {
	ok, err := s.Access.IsTeacherOf(teacherID, classSectionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.Forbidden("not the teacher of class section %d", classSectionID)
	}
	return s.Quizzes.ListBySection(classSectionID)
}

// ListForStudent 学生只能看到所在教学班已发布的测验
func (s *QuizService) ListForStudent(studentID, classSectionID uint) ([]model.Quiz, error) {
	enrolled, err := s.Access.IsEnrolled(studentID, classSectionID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.Forbidden("student %d is not enrolled in class section %d", studentID, classSectionID)
	}
	quizzes, err := s.Quizzes.ListBySection(classSectionID)
	if err != nil {
		return nil, err
	}
	published := make([]model.Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		if q.Status == model.QuizPublished {
			published = append(published, q)
		}
	}
	return published, nil
}

func (s *QuizService) Detail(teacherID, quizID uint) (*QuizDetail, error) {
	quiz, err := s.ownedQuiz(teacherID, quizID)
	if err != nil {
		return nil, err
	}
	questions, optionsByQ, err := s.Quizzes.QuestionsWithOptions(quizID)
	if err != nil {
		return nil, err
	}
	detail := &QuizDetail{Quiz: *quiz}
	for _, q := range questions {
		detail.Questions = append(detail.Questions, QuestionWithOption{Question: q, Options: optionsByQ[q.ID]})
	}
	return detail, nil
}

func (s *QuizService) ownedQuiz(teacherID, quizID uint) (*model.Quiz, error) {
	quiz, err := s.Quizzes.FindQuizByID(quizID)
	if err != nil {
		return nil, err
	}
	if quiz.CreatorID != teacherID {
		return nil, util.Forbidden("quiz %d is not owned by teacher %d", quizID, teacherID)
	}
	return quiz, nil
}

func validateQuestion(req QuestionRequest) error {
	if req.Text == "" {
		return util.InvalidInput("question text required")
	}
	if req.Type != model.QuestionMCQ && req.Type != model.QuestionTrueFalse {
		return util.InvalidInput("unknown question type %q", req.Type)
	}
	if req.Points <= 0 {
		return util.InvalidInput("points must be positive")
	}
	if req.Type == model.QuestionTrueFalse && len(req.Answers) != 2 {
		return util.InvalidInput("true/false question must have exactly 2 options")
	}
	if len(req.Answers) < 2 {
		return util.InvalidInput("question must have at least 2 options")
	}
	correct := 0
	for _, a := range req.Answers {
		if a.Text == "" {
			return util.InvalidInput("option text required")
		}
		if a.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return util.InvalidInput("question must have exactly 1 correct option, got %d", correct)
	}
	return nil
}

func checkOptionInvariant(q model.QuizQuestion, options []model.QuizAnswerOption) error {
	if len(options) < 2 {
		return util.InvalidState("question %d has fewer than 2 options", q.ID)
	}
	if q.Type == model.QuestionTrueFalse && len(options) != 2 {
		return util.InvalidState("true/false question %d must have exactly 2 options", q.ID)
	}
	correct := 0
	for _, o := range options {
		if o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return util.InvalidState("question %d must have exactly 1 correct option, has %d", q.ID, correct)
	}
	return nil
}
