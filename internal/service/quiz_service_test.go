package service

import (
	"fmt"
	"testing"
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"
)

const (
	testSectionID = uint(100)
	testTeacherID = uint(1)
)

func newQuizFixture() (*QuizService, *fakeQuizStore, *fakeSink) {
	store := newFakeQuizStore()
	access := newFakeAccess()
	access.setTeacher(testSectionID, testTeacherID)
	sink := &fakeSink{}
	svc := NewQuizService(store, access, sink, fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	return svc, store, sink
}

func mcq(text string, correctIdx int) QuestionRequest {
	answers := make([]AnswerOptionRequest, 4)
	for i := range answers {
		answers[i] = AnswerOptionRequest{Text: fmt.Sprintf("%s option %d", text, i), IsCorrect: i == correctIdx}
	}
	return QuestionRequest{Text: text, Type: model.QuestionMCQ, Points: 1, Answers: answers}
}

func draftQuizWithQuestions(t *testing.T, svc *QuizService, n int) *model.Quiz {
	t.Helper()
	quiz, err := svc.CreateDraft(testTeacherID, QuizCreateRequest{
		ClassSectionID: testSectionID,
		Title:          "期中测验",
		TotalQuestions: 10,
	})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := svc.AddQuestion(testTeacherID, quiz.ID, mcq(fmt.Sprintf("q%d", i), i%4)); err != nil {
			t.Fatalf("AddQuestion %d: %v", i, err)
		}
	}
	return quiz
}

func TestCreateDraftRejectsBadSize(t *testing.T) {
	svc, _, _ := newQuizFixture()
	_, err := svc.CreateDraft(testTeacherID, QuizCreateRequest{
		ClassSectionID: testSectionID,
		Title:          "测验",
		TotalQuestions: 15,
	})
	if !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for size 15, got %v", err)
	}
}

func TestCreateDraftRequiresTeacher(t *testing.T) {
	svc, _, _ := newQuizFixture()
	_, err := svc.CreateDraft(99, QuizCreateRequest{
		ClassSectionID: testSectionID,
		Title:          "测验",
		TotalQuestions: 10,
	})
	if !util.IsCode(err, util.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestAddQuestionRejectsTwoCorrectOptions(t *testing.T) {
	svc, _, _ := newQuizFixture()
	quiz := draftQuizWithQuestions(t, svc, 0)

	req := mcq("bad", 0)
	req.Answers[1].IsCorrect = true
	_, err := svc.AddQuestion(testTeacherID, quiz.ID, req)
	if !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for two correct options, got %v", err)
	}
}

func TestAddQuestionRejectsBeyondCapacity(t *testing.T) {
	svc, _, _ := newQuizFixture()
	quiz := draftQuizWithQuestions(t, svc, 10)

	_, err := svc.AddQuestion(testTeacherID, quiz.ID, mcq("extra", 0))
	if !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT beyond capacity, got %v", err)
	}
}

func TestPublishRequiresFullQuestionCount(t *testing.T) {
	svc, _, _ := newQuizFixture()
	quiz := draftQuizWithQuestions(t, svc, 9)

	_, err := svc.Publish(testTeacherID, quiz.ID, PublishRequest{})
	if !util.IsCode(err, util.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE with 9/10 questions, got %v", err)
	}
}

func TestPublishFixesQuestionSetAndEmitsEvent(t *testing.T) {
	svc, store, sink := newQuizFixture()
	quiz := draftQuizWithQuestions(t, svc, 10)

	published, err := svc.Publish(testTeacherID, quiz.ID, PublishRequest{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if published.Status != model.QuizPublished {
		t.Fatalf("status = %s, want published", published.Status)
	}
	if len(sink.published) != 1 || sink.published[0] != quiz.ID {
		t.Fatalf("publish event not emitted: %v", sink.published)
	}

	// 发布后题目集固定
	if _, err := svc.AddQuestion(testTeacherID, quiz.ID, mcq("late", 0)); !util.IsCode(err, util.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE adding question after publish, got %v", err)
	}
	if got := store.quizzes[quiz.ID].Status; got != model.QuizPublished {
		t.Fatalf("stored status = %s", got)
	}
}

func TestPublishRejectsInvalidWindow(t *testing.T) {
	svc, _, _ := newQuizFixture()
	quiz := draftQuizWithQuestions(t, svc, 10)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := svc.Publish(testTeacherID, quiz.ID, PublishRequest{StartAt: &start, EndAt: &end})
	if !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for end before start, got %v", err)
	}
}

func TestCloseOnlyFromPublished(t *testing.T) {
	svc, _, _ := newQuizFixture()
	quiz := draftQuizWithQuestions(t, svc, 10)

	if _, err := svc.Close(testTeacherID, quiz.ID); !util.IsCode(err, util.CodeInvalidState) {
		t.Fatalf("expected INVALID_STATE closing a draft, got %v", err)
	}

	if _, err := svc.Publish(testTeacherID, quiz.ID, PublishRequest{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	closed, err := svc.Close(testTeacherID, quiz.ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != model.QuizClosed {
		t.Fatalf("status = %s, want closed", closed.Status)
	}
}

func TestListForStudentOnlyPublished(t *testing.T) {
	svc, _, _ := newQuizFixture()
	access := svc.Access.(*fakeAccess)
	access.enroll(testSectionID, 7, 70)

	draft := draftQuizWithQuestions(t, svc, 10)
	published := draftQuizWithQuestions(t, svc, 10)
	if _, err := svc.Publish(testTeacherID, published.ID, PublishRequest{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	quizzes, err := svc.ListForStudent(7, testSectionID)
	if err != nil {
		t.Fatalf("ListForStudent: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != published.ID {
		t.Fatalf("expected only published quiz, got %+v (draft=%d)", quizzes, draft.ID)
	}
}
