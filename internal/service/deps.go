package service

import (
	"context"
	"time"

	"campus_edu_backend/internal/model"
)

// Clock 注入时钟，便于确定性测试
type Clock func() time.Time

// CourseAccess 选课/任课关系查询。身份与选课数据归教务模块，
// 核心服务只通过该接口做授权判断，测试时用假实现。
type CourseAccess interface {
	IsTeacherOf(teacherID, classSectionID uint) (bool, error)
	IsEnrolled(studentID, classSectionID uint) (bool, error)
	EnrollmentID(studentID, classSectionID uint) (uint, error)
	EnrollmentIDs(classSectionID uint) ([]uint, error)
}

// UserStore 账号查询，登录时用
type UserStore interface {
	FindByEmail(email string) (*model.User, error)
}

// EventSink 对外事件通知，尽力而为；失败只记日志，绝不回滚触发它的状态变更
type EventSink interface {
	QuizPublished(quizID, classSectionID uint)
	GradebookDecided(gradebookID uint, approved bool)
}

// QuizGradeItemResolver 解析教学班配置的“测验”评分项（外部映射协作方）
type QuizGradeItemResolver interface {
	ResolveQuizGradeItem(classSectionID uint) (*model.GradeItem, error)
}

// SyncEnqueuer 成绩同步任务入队（至少一次投递）
type SyncEnqueuer interface {
	Enqueue(attemptID uint) error
}

// QuizStore 测验与题目持久化
type QuizStore interface {
	CreateQuiz(q *model.Quiz) error
	FindQuizByID(id uint) (*model.Quiz, error)
	ListBySection(classSectionID uint) ([]model.Quiz, error)
	// TransitionQuiz 按 from 状态做 CAS 更新（status/start_at/end_at），
	// 返回 false 表示状态已被并发修改
	TransitionQuiz(q *model.Quiz, from model.QuizStatus) (bool, error)
	CreateQuestion(q *model.QuizQuestion, options []model.QuizAnswerOption) error
	UpdateQuestion(q *model.QuizQuestion, options []model.QuizAnswerOption) error
	DeleteQuestion(questionID uint) error
	FindQuestionByID(id uint) (*model.QuizQuestion, error)
	CountQuestions(quizID uint) (int, error)
	QuestionsWithOptions(quizID uint) ([]model.QuizQuestion, map[uint][]model.QuizAnswerOption, error)
}

// AttemptStore 作答持久化。CreateIfAbsent 依赖 (quiz_id, student_id)
// 唯一约束原子拒绝重复开考；SubmitWithAnswers 在单事务内 CAS 提交。
type AttemptStore interface {
	CreateIfAbsent(a *model.QuizAttempt) error
	FindByID(id uint) (*model.QuizAttempt, error)
	SubmitWithAnswers(ctx context.Context, a *model.QuizAttempt, answers []model.QuizAttemptAnswer) error
	GetAnswers(attemptID uint) ([]model.QuizAttemptAnswer, error)
}

// GradebookStore 成绩册持久化。批量写分与状态流转都在存储层保证原子性。
type GradebookStore interface {
	GetOrCreate(classSectionID uint) (*model.GradeBook, error)
	FindBySection(classSectionID uint) (*model.GradeBook, error)
	CreateItem(item *model.GradeItem) error
	GetItems(gradebookID uint) ([]model.GradeItem, error)
	GetEntries(gradebookID uint) ([]model.GradeEntry, error)
	// UpsertEntries 全量成功或全量失败；expectedVersion 不匹配返回 CONFLICT
	UpsertEntries(ctx context.Context, gradebookID uint, expectedVersion int, entries []model.GradeEntry) (int, error)
	// UpsertEntry 幂等写单格（成绩同步使用），重复执行收敛到同一值
	UpsertEntry(ctx context.Context, gradebookID uint, entry model.GradeEntry) error
	// TransitionStatus 按 from 集合 CAS 流转，返回 false 表示当前状态不在 from 内；
	// 流转成功同时推进 version，旧版本号的写分随之失效
	TransitionStatus(gradebookID uint, from []model.GradeBookStatus, to model.GradeBookStatus) (bool, error)
	CreateApproval(a *model.GradebookApproval) error
	DecideApproval(gradebookID uint, outcome model.ApprovalOutcome, message string, at time.Time) error
	LatestApproval(gradebookID uint) (*model.GradebookApproval, error)
}
