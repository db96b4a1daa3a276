package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"
)

type gradebookFixture struct {
	store  *fakeGradebookStore
	access *fakeAccess
	sink   *fakeSink
	svc    *GradebookService
}

func newGradebookFixture(t *testing.T) *gradebookFixture {
	t.Helper()
	store := newFakeGradebookStore()
	access := newFakeAccess()
	access.setTeacher(testSectionID, testTeacherID)
	access.enroll(testSectionID, 7, 70)
	access.enroll(testSectionID, 8, 80)
	sink := &fakeSink{}
	svc := NewGradebookService(store, access, sink, nil, fixedClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))
	return &gradebookFixture{store: store, access: access, sink: sink, svc: svc}
}

func (f *gradebookFixture) addItem(t *testing.T, req GradeItemRequest) *model.GradeItem {
	t.Helper()
	item, err := f.svc.AddItem(testTeacherID, testSectionID, req)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return item
}

func score(v float64) *float64 { return &v }

func TestUpsertScoresRejectsOverMaxAtomically(t *testing.T) {
	f := newGradebookFixture(t)
	item := f.addItem(t, GradeItemRequest{Name: "期末", MaxScore: 10, Required: true})

	_, err := f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: 0,
		Cells: []ScoreCell{
			{GradeItemID: item.ID, EnrollmentID: 70, Score: score(9)},
			{GradeItemID: item.ID, EnrollmentID: 80, Score: score(15)}, // 超过满分
		},
	})
	if !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for score over max, got %v", err)
	}
	if len(f.store.entries) != 0 {
		t.Fatalf("batch must be all-or-nothing, %d entries written", len(f.store.entries))
	}
}

func TestUpsertScoresRejectsUnknownItemAndEnrollment(t *testing.T) {
	f := newGradebookFixture(t)
	item := f.addItem(t, GradeItemRequest{Name: "平时", MaxScore: 10})

	_, err := f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		Cells: []ScoreCell{{GradeItemID: 9999, EnrollmentID: 70, Score: score(5)}},
	})
	if !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for unknown item, got %v", err)
	}

	_, err = f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		Cells: []ScoreCell{{GradeItemID: item.ID, EnrollmentID: 9999, Score: score(5)}},
	})
	if !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for foreign enrollment, got %v", err)
	}
}

func TestUpsertScoresVersionConflict(t *testing.T) {
	f := newGradebookFixture(t)
	item := f.addItem(t, GradeItemRequest{Name: "期末", MaxScore: 100})

	cells := []ScoreCell{{GradeItemID: item.ID, EnrollmentID: 70, Score: score(88)}}
	version, err := f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: 0,
		Cells:           cells,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if version != 1 {
		t.Fatalf("version = %d, want 1", version)
	}

	// 基于过期版本的写入被拒
	_, err = f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: 0,
		Cells:           cells,
	})
	if !util.IsCode(err, util.CodeConflict) {
		t.Fatalf("expected CONFLICT on stale version, got %v", err)
	}
}

func TestRequestApprovalRequiresCompleteRequiredItems(t *testing.T) {
	f := newGradebookFixture(t)
	item := f.addItem(t, GradeItemRequest{Name: "期末", MaxScore: 100, Required: true})

	// 只给 1/2 名学生写分
	if _, err := f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: 0,
		Cells:           []ScoreCell{{GradeItemID: item.ID, EnrollmentID: 70, Score: score(90)}},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	_, err := f.svc.RequestApproval(testTeacherID, testSectionID)
	if !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for incomplete required item, got %v", err)
	}

	// 补齐后通过
	if _, err := f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: 1,
		Cells:           []ScoreCell{{GradeItemID: item.ID, EnrollmentID: 80, Score: score(75)}},
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	approval, err := f.svc.RequestApproval(testTeacherID, testSectionID)
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if approval.Outcome != model.ApprovalPending {
		t.Fatalf("outcome = %s, want pending", approval.Outcome)
	}
}

func submitForApproval(t *testing.T, f *gradebookFixture) {
	t.Helper()
	item := f.addItem(t, GradeItemRequest{Name: "期末", MaxScore: 100, Required: true})
	if _, err := f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: 0,
		Cells: []ScoreCell{
			{GradeItemID: item.ID, EnrollmentID: 70, Score: score(90)},
			{GradeItemID: item.ID, EnrollmentID: 80, Score: score(80)},
		},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := f.svc.RequestApproval(testTeacherID, testSectionID); err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
}

func TestApproveThenRejectSingleWinner(t *testing.T) {
	f := newGradebookFixture(t)
	submitForApproval(t, f)

	if err := f.svc.Approve(2, testSectionID, "ok"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	// 落败方拿到 INVALID_STATE
	if err := f.svc.Reject(3, testSectionID, "too late"); !util.IsCode(err, util.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE for losing decision, got %v", err)
	}

	book, _ := f.store.FindBySection(testSectionID)
	if book.Status != model.GradeBookPublished {
		t.Fatalf("status = %s, want published", book.Status)
	}
	if len(f.sink.decided) != 1 || !f.sink.decided[0] {
		t.Fatalf("decision events = %v, want single approved", f.sink.decided)
	}
}

func TestRejectReturnsToEditableWithMessage(t *testing.T) {
	f := newGradebookFixture(t)
	submitForApproval(t, f)

	if err := f.svc.Reject(2, testSectionID, ""); !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for empty rejection message, got %v", err)
	}

	if err := f.svc.Reject(2, testSectionID, "期末分数分布异常"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	book, _ := f.store.FindBySection(testSectionID)
	if book.Status != model.GradeBookRejected {
		t.Fatalf("status = %s, want rejected", book.Status)
	}

	// 驳回后教师可以继续改分
	items, _ := f.store.GetItems(book.ID)
	if _, err := f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: book.Version,
		Cells:           []ScoreCell{{GradeItemID: items[0].ID, EnrollmentID: 70, Score: score(95)}},
	}); err != nil {
		t.Fatalf("upsert after reject: %v", err)
	}
}

func TestEditsBlockedWhilePendingApproval(t *testing.T) {
	f := newGradebookFixture(t)
	submitForApproval(t, f)

	book, _ := f.store.FindBySection(testSectionID)
	items, _ := f.store.GetItems(book.ID)

	_, err := f.svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: book.Version,
		Cells:           []ScoreCell{{GradeItemID: items[0].ID, EnrollmentID: 70, Score: score(50)}},
	})
	if !util.IsCode(err, util.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE while pending approval, got %v", err)
	}
	if _, err := f.svc.AddItem(testTeacherID, testSectionID, GradeItemRequest{Name: "加分", MaxScore: 5}); !util.IsCode(err, util.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE adding item while pending, got %v", err)
	}
}

func TestStatusTransitionInvalidatesStaleVersion(t *testing.T) {
	f := newGradebookFixture(t)
	item := f.addItem(t, GradeItemRequest{Name: "期末", MaxScore: 100})
	book, err := f.store.GetOrCreate(testSectionID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	staleVersion := book.Version

	changed, err := f.store.TransitionStatus(book.ID,
		[]model.GradeBookStatus{model.GradeBookDraft}, model.GradeBookPendingApproval)
	if err != nil || !changed {
		t.Fatalf("TransitionStatus: changed=%v err=%v", changed, err)
	}

	// 流转前读到的版本号不能再提交写分，否则会绕过 pending_approval 的编辑封锁
	_, err = f.store.UpsertEntries(context.Background(), book.ID, staleVersion,
		[]model.GradeEntry{{GradeItemID: item.ID, EnrollmentID: 70, Score: score(60)}})
	if !util.IsCode(err, util.CodeConflict) {
		t.Fatalf("expected CONFLICT for pre-transition version, got %v", err)
	}
	if len(f.store.entries) != 0 {
		t.Fatalf("stale write must not land, %d entries written", len(f.store.entries))
	}
}

type approvalWriteFailStore struct {
	*fakeGradebookStore
	fail bool
}

func (s *approvalWriteFailStore) CreateApproval(a *model.GradebookApproval) error {
	if s.fail {
		return errors.New("approvals table unavailable")
	}
	return s.fakeGradebookStore.CreateApproval(a)
}

func TestRequestApprovalRevertsStatusWhenRecordWriteFails(t *testing.T) {
	store := &approvalWriteFailStore{fakeGradebookStore: newFakeGradebookStore()}
	access := newFakeAccess()
	access.setTeacher(testSectionID, testTeacherID)
	access.enroll(testSectionID, 7, 70)
	svc := NewGradebookService(store, access, &fakeSink{}, nil, fixedClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))

	item, err := svc.AddItem(testTeacherID, testSectionID, GradeItemRequest{Name: "期末", MaxScore: 100, Required: true})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.UpsertScores(context.Background(), testTeacherID, testSectionID, UpsertScoresRequest{
		ExpectedVersion: 0,
		Cells:           []ScoreCell{{GradeItemID: item.ID, EnrollmentID: 70, Score: score(90)}},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	store.fail = true
	if _, err := svc.RequestApproval(testTeacherID, testSectionID); err == nil {
		t.Fatal("expected error when approval record cannot be written")
	}
	// 状态要退回可编辑，不能卡在没有待审记录的 pending_approval
	book, _ := store.FindBySection(testSectionID)
	if book.Status != model.GradeBookDraft {
		t.Fatalf("status = %s, want draft after rollback", book.Status)
	}

	store.fail = false
	approval, err := svc.RequestApproval(testTeacherID, testSectionID)
	if err != nil {
		t.Fatalf("RequestApproval after recovery: %v", err)
	}
	if approval.Outcome != model.ApprovalPending {
		t.Fatalf("outcome = %s, want pending", approval.Outcome)
	}
}

func TestGradebookAccessRequiresTeacher(t *testing.T) {
	f := newGradebookFixture(t)
	if _, err := f.svc.Detail(99, testSectionID); !util.IsCode(err, util.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for foreign teacher, got %v", err)
	}
}
