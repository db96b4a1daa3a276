package service

import (
	"context"
	"math"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"
	"campus_edu_backend/pkg/logger"
	"campus_edu_backend/pkg/tracing"

	"go.uber.org/zap"
)

// ScoreSyncService 把已提交的测验成绩同步进成绩册。
// 按比例换算到评分项满分，写入幂等，重复同步收敛到同一值。
type ScoreSyncService struct {
	Attempts AttemptStore
	Quizzes  QuizStore
	Books    GradebookStore
	Access   CourseAccess
	Resolver QuizGradeItemResolver
	// AllowPublishedSync 已发布/锁定成绩册是否允许补录（运行期可热更）
	AllowPublishedSync func() bool
}

func NewScoreSyncService(attempts AttemptStore, quizzes QuizStore, books GradebookStore, access CourseAccess, resolver QuizGradeItemResolver, allowPublishedSync func() bool) *ScoreSyncService {
	if allowPublishedSync == nil {
		allowPublishedSync = func() bool { return false }
	}
	return &ScoreSyncService{
		Attempts:           attempts,
		Quizzes:            quizzes,
		Books:              books,
		Access:             access,
		Resolver:           resolver,
		AllowPublishedSync: allowPublishedSync,
	}
}

// SyncAttemptScore 同步单次作答。
// 作答缺失/未提交返回 ITEM_NOT_FOUND，落点评分项未配置返回
// GRADEBOOK_NOT_FOUND，两者都是可重试的暂态失败，由队列调度重试。
func (s *ScoreSyncService) SyncAttemptScore(ctx context.Context, attemptID uint) error {
	ctx, span := tracing.Tracer.Start(ctx, "score_sync.attempt")
	defer span.End()

	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		if util.IsCode(err, util.CodeNotFound) {
			return util.ItemNotFound("attempt %d not found", attemptID)
		}
		return err
	}
	if attempt.Status != model.AttemptSubmitted {
		return util.ItemNotFound("attempt %d has no submitted score yet", attemptID)
	}

	quiz, err := s.Quizzes.FindQuizByID(attempt.QuizID)
	if err != nil {
		return err
	}

	item, err := s.Resolver.ResolveQuizGradeItem(quiz.ClassSectionID)
	if err != nil {
		return err
	}

	book, err := s.Books.FindBySection(quiz.ClassSectionID)
	if err != nil {
		if util.IsCode(err, util.CodeNotFound) {
			return util.GradebookNotFound("no gradebook for class section %d", quiz.ClassSectionID)
		}
		return err
	}
	if (book.Status == model.GradeBookPublished || book.Status == model.GradeBookLocked) && !s.AllowPublishedSync() {
		return util.InvalidState("gradebook %d is %s, late score sync is disabled", book.ID, book.Status)
	}

	enrollmentID, err := s.Access.EnrollmentID(attempt.StudentID, quiz.ClassSectionID)
	if err != nil {
		return err
	}

	value := 0.0
	if attempt.MaxScore > 0 {
		value = round2(float64(attempt.Score) / float64(attempt.MaxScore) * item.MaxScore)
	}

	entry := model.GradeEntry{
		GradeItemID:  item.ID,
		EnrollmentID: enrollmentID,
		Score:        &value,
	}
	if err := s.Books.UpsertEntry(ctx, book.ID, entry); err != nil {
		return err
	}

	logger.Log.Info("score synced to gradebook",
		zap.Uint("attemptId", attemptID),
		zap.Uint("gradeItemId", item.ID),
		zap.Uint("enrollmentId", enrollmentID),
		zap.Float64("value", value))
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
