package service

import (
	"context"
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"
	"campus_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// GradebookArchiver 发布后的快照归档（尽力而为）
type GradebookArchiver interface {
	ArchiveGradebook(ctx context.Context, classSectionID uint)
}

// GradebookService 负责评分项/分数录入与审批状态机：
// draft ⇄ rejected → pending_approval → published/rejected。
// 写分走乐观并发（version 字段），冲突返回 CONFLICT 让调用方重试。
type GradebookService struct {
	Books    GradebookStore
	Access   CourseAccess
	Events   EventSink
	Archiver GradebookArchiver
	Now      Clock
}

func NewGradebookService(books GradebookStore, access CourseAccess, events EventSink, archiver GradebookArchiver, now Clock) *GradebookService {
	if now == nil {
		now = time.Now
	}
	return &GradebookService{Books: books, Access: access, Events: events, Archiver: archiver, Now: now}
}

type GradeItemRequest struct {
	Name      string   `json:"name" binding:"required"`
	MaxScore  float64  `json:"maxScore" binding:"required"`
	Weight    *float64 `json:"weight"`
	Required  bool     `json:"required"`
	Kind      string   `json:"kind"`
	SortOrder int      `json:"sortOrder"`
}

// ScoreCell 一格分数：评分项 × 选课记录
type ScoreCell struct {
	GradeItemID  uint     `json:"gradeItemId" binding:"required"`
	EnrollmentID uint     `json:"enrollmentId" binding:"required"`
	Score        *float64 `json:"score"`
}

type UpsertScoresRequest struct {
	ExpectedVersion int         `json:"expectedVersion"`
	Cells           []ScoreCell `json:"cells" binding:"required"`
}

type GradebookDetail struct {
	GradeBook model.GradeBook          `json:"gradeBook"`
	Items     []model.GradeItem        `json:"items"`
	Entries   []model.GradeEntry       `json:"entries"`
	Approval  *model.GradebookApproval `json:"approval,omitempty"`
}

// GetOrCreate 首次访问时建一份空的草稿成绩册
func (s *GradebookService) GetOrCreate(classSectionID uint) (*model.GradeBook, error) {
	return s.Books.GetOrCreate(classSectionID)
}

func (s *GradebookService) Detail(teacherID, classSectionID uint) (*GradebookDetail, error) {
	if err := s.requireTeacher(teacherID, classSectionID); err != nil {
		return nil, err
	}
	book, err := s.Books.GetOrCreate(classSectionID)
	if err != nil {
		return nil, err
	}
	items, err := s.Books.GetItems(book.ID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Books.GetEntries(book.ID)
	if err != nil {
		return nil, err
	}
	approval, err := s.Books.LatestApproval(book.ID)
	if err != nil && !util.IsCode(err, util.CodeNotFound) {
		return nil, err
	}
	return &GradebookDetail{GradeBook: *book, Items: items, Entries: entries, Approval: approval}, nil
}

// AddItem 教师在可编辑状态下定义评分项
func (s *GradebookService) AddItem(teacherID, classSectionID uint, req GradeItemRequest) (*model.GradeItem, error) {
	if err := s.requireTeacher(teacherID, classSectionID); err != nil {
		return nil, err
	}
	book, err := s.Books.GetOrCreate(classSectionID)
	if err != nil {
		return nil, err
	}
	if !book.Editable() {
		return nil, util.InvalidState("gradebook is %s, items can only be edited in draft/rejected", book.Status)
	}
	if req.MaxScore <= 0 {
		return nil, util.InvalidInput("maxScore must be positive")
	}
	kind := model.GradeItemKind(req.Kind)
	if kind == "" {
		kind = model.GradeItemManual
	}
	if kind != model.GradeItemManual && kind != model.GradeItemQuiz {
		return nil, util.InvalidInput("unknown grade item kind %q", req.Kind)
	}
	item := &model.GradeItem{
		GradeBookID: book.ID,
		Name:        req.Name,
		MaxScore:    req.MaxScore,
		Weight:      req.Weight,
		Required:    req.Required,
		Kind:        kind,
		SortOrder:   req.SortOrder,
	}
	if err := s.Books.CreateItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpsertScores 批量写分，全量成功或全量失败。
// expectedVersion 与当前版本不符返回 CONFLICT，调用方需取新版本重试。
func (s *GradebookService) UpsertScores(ctx context.Context, teacherID, classSectionID uint, req UpsertScoresRequest) (int, error) {
	if err := s.requireTeacher(teacherID, classSectionID); err != nil {
		return 0, err
	}
	book, err := s.Books.GetOrCreate(classSectionID)
	if err != nil {
		return 0, err
	}
	if !book.Editable() {
		return 0, util.InvalidState("gradebook is %s, scores can only be edited in draft/rejected", book.Status)
	}
	if len(req.Cells) == 0 {
		return 0, util.InvalidInput("no score cells provided")
	}

	items, err := s.Books.GetItems(book.ID)
	if err != nil {
		return 0, err
	}
	itemByID := make(map[uint]model.GradeItem, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}

	enrollmentIDs, err := s.Access.EnrollmentIDs(classSectionID)
	if err != nil {
		return 0, err
	}
	enrolled := make(map[uint]bool, len(enrollmentIDs))
	for _, id := range enrollmentIDs {
		enrolled[id] = true
	}

	now := s.Now()
	entries := make([]model.GradeEntry, 0, len(req.Cells))
	for _, cell := range req.Cells {
		item, ok := itemByID[cell.GradeItemID]
		if !ok {
			return 0, util.InvalidInput("grade item %d does not exist in this gradebook", cell.GradeItemID)
		}
		if !enrolled[cell.EnrollmentID] {
			return 0, util.InvalidInput("enrollment %d does not belong to class section %d", cell.EnrollmentID, classSectionID)
		}
		if cell.Score != nil && (*cell.Score < 0 || *cell.Score > item.MaxScore) {
			return 0, util.InvalidInput("score %.2f out of range for item %q (max %.2f)", *cell.Score, item.Name, item.MaxScore)
		}
		entries = append(entries, model.GradeEntry{
			GradeItemID:  cell.GradeItemID,
			EnrollmentID: cell.EnrollmentID,
			Score:        cell.Score,
			UpdatedAt:    now,
		})
	}

	return s.Books.UpsertEntries(ctx, book.ID, req.ExpectedVersion, entries)
}

// RequestApproval 提交审批。必填评分项必须覆盖全部在读学生。
func (s *GradebookService) RequestApproval(teacherID, classSectionID uint) (*model.GradebookApproval, error) {
	if err := s.requireTeacher(teacherID, classSectionID); err != nil {
		return nil, err
	}
	book, err := s.Books.GetOrCreate(classSectionID)
	if err != nil {
		return nil, err
	}
	if !book.Editable() {
		return nil, util.InvalidState("gradebook is %s, approval can only be requested from draft/rejected", book.Status)
	}

	if err := s.checkCompleteness(book, classSectionID); err != nil {
		return nil, err
	}

	changed, err := s.Books.TransitionStatus(book.ID,
		[]model.GradeBookStatus{model.GradeBookDraft, model.GradeBookRejected},
		model.GradeBookPendingApproval)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, util.InvalidState("gradebook %d changed state concurrently", book.ID)
	}

	approval := &model.GradebookApproval{
		GradeBookID: book.ID,
		Outcome:     model.ApprovalPending,
		RequestedAt: s.Now(),
	}
	if err := s.Books.CreateApproval(approval); err != nil {
		// 审批记录没落库就把状态退回去，避免卡在无人能裁决的 pending_approval
		if _, rbErr := s.Books.TransitionStatus(book.ID,
			[]model.GradeBookStatus{model.GradeBookPendingApproval}, book.Status); rbErr != nil {
			logger.Log.Error("failed to roll back gradebook status after approval create error",
				zap.Uint("gradebookId", book.ID), zap.Error(rbErr))
		}
		return nil, err
	}
	return approval, nil
}

// Approve 审批通过，成绩册发布。pending_approval 上的 approve/reject
// 只有一个能生效，落败方拿到 INVALID_STATE。
func (s *GradebookService) Approve(adminID, classSectionID uint, message string) error {
	book, err := s.Books.FindBySection(classSectionID)
	if err != nil {
		return err
	}
	changed, err := s.Books.TransitionStatus(book.ID,
		[]model.GradeBookStatus{model.GradeBookPendingApproval}, model.GradeBookPublished)
	if err != nil {
		return err
	}
	if !changed {
		return util.InvalidState("gradebook %d is not pending approval", book.ID)
	}
	if err := s.Books.DecideApproval(book.ID, model.ApprovalApproved, message, s.Now()); err != nil {
		return err
	}

	if s.Events != nil {
		s.Events.GradebookDecided(book.ID, true)
	}
	if s.Archiver != nil {
		// 归档快照尽力而为，不阻塞审批
		go s.Archiver.ArchiveGradebook(context.Background(), classSectionID)
	}
	return nil
}

// Reject 驳回，成绩册回到教师可编辑状态
func (s *GradebookService) Reject(adminID, classSectionID uint, message string) error {
	if message == "" {
		return util.InvalidInput("rejection message required")
	}
	book, err := s.Books.FindBySection(classSectionID)
	if err != nil {
		return err
	}
	changed, err := s.Books.TransitionStatus(book.ID,
		[]model.GradeBookStatus{model.GradeBookPendingApproval}, model.GradeBookRejected)
	if err != nil {
		return err
	}
	if !changed {
		return util.InvalidState("gradebook %d is not pending approval", book.ID)
	}
	if err := s.Books.DecideApproval(book.ID, model.ApprovalRejected, message, s.Now()); err != nil {
		return err
	}
	if s.Events != nil {
		s.Events.GradebookDecided(book.ID, false)
	}
	return nil
}

func (s *GradebookService) requireTeacher(teacherID, classSectionID uint) error {
	ok, err := s.Access.IsTeacherOf(teacherID, classSectionID)
	if err != nil {
		return err
	}
	if !ok {
		return util.Forbidden("not the teacher of class section %d", classSectionID)
	}
	return nil
}

func (s *GradebookService) checkCompleteness(book *model.GradeBook, classSectionID uint) error {
	items, err := s.Books.GetItems(book.ID)
	if err != nil {
		return err
	}
	entries, err := s.Books.GetEntries(book.ID)
	if err != nil {
		return err
	}
	enrollmentIDs, err := s.Access.EnrollmentIDs(classSectionID)
	if err != nil {
		return err
	}

	scored := make(map[[2]uint]bool, len(entries))
	for _, e := range entries {
		if e.Score != nil {
			scored[[2]uint{e.GradeItemID, e.EnrollmentID}] = true
		}
	}
	for _, item := range items {
		if !item.Required {
			continue
		}
		for _, enrollmentID := range enrollmentIDs {
			if !scored[[2]uint{item.ID, enrollmentID}] {
				logger.Log.Debug("completeness check failed",
					zap.Uint("itemId", item.ID), zap.Uint("enrollmentId", enrollmentID))
				return util.InvalidInput("required item %q has missing scores", item.Name)
			}
		}
	}
	return nil
}
