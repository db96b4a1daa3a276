package service

import (
	"context"
	"sort"
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// ---- 测验存储假实现 ----

type fakeQuizStore struct {
	quizzes   map[uint]*model.Quiz
	questions map[uint]*model.QuizQuestion
	options   map[uint][]model.QuizAnswerOption
	nextID    uint
}

func newFakeQuizStore() *fakeQuizStore {
	return &fakeQuizStore{
		quizzes:   map[uint]*model.Quiz{},
		questions: map[uint]*model.QuizQuestion{},
		options:   map[uint][]model.QuizAnswerOption{},
	}
}

func (f *fakeQuizStore) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeQuizStore) CreateQuiz(q *model.Quiz) error {
	q.ID = f.id()
	cp := *q
	f.quizzes[q.ID] = &cp
	return nil
}

func (f *fakeQuizStore) FindQuizByID(id uint) (*model.Quiz, error) {
	q, ok := f.quizzes[id]
	if !ok {
		return nil, util.NotFound("quiz %d not found", id)
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuizStore) ListBySection(classSectionID uint) ([]model.Quiz, error) {
	var out []model.Quiz
	for _, q := range f.quizzes {
		if q.ClassSectionID == classSectionID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeQuizStore) TransitionQuiz(q *model.Quiz, from model.QuizStatus) (bool, error) {
	cur, ok := f.quizzes[q.ID]
	if !ok {
		return false, util.NotFound("quiz %d not found", q.ID)
	}
	if cur.Status != from {
		return false, nil
	}
	cur.Status = q.Status
	cur.StartAt = q.StartAt
	cur.EndAt = q.EndAt
	return true, nil
}

func (f *fakeQuizStore) CreateQuestion(q *model.QuizQuestion, options []model.QuizAnswerOption) error {
	q.ID = f.id()
	cp := *q
	f.questions[q.ID] = &cp
	stored := make([]model.QuizAnswerOption, len(options))
	for i, o := range options {
		o.ID = f.id()
		o.QuestionID = q.ID
		stored[i] = o
	}
	f.options[q.ID] = stored
	return nil
}

func (f *fakeQuizStore) UpdateQuestion(q *model.QuizQuestion, options []model.QuizAnswerOption) error {
	cp := *q
	f.questions[q.ID] = &cp
	stored := make([]model.QuizAnswerOption, len(options))
	for i, o := range options {
		o.ID = f.id()
		o.QuestionID = q.ID
		stored[i] = o
	}
	f.options[q.ID] = stored
	return nil
}

func (f *fakeQuizStore) DeleteQuestion(questionID uint) error {
	delete(f.questions, questionID)
	delete(f.options, questionID)
	return nil
}

func (f *fakeQuizStore) FindQuestionByID(id uint) (*model.QuizQuestion, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, util.NotFound("question %d not found", id)
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuizStore) CountQuestions(quizID uint) (int, error) {
	count := 0
	for _, q := range f.questions {
		if q.QuizID == quizID {
			count++
		}
	}
	return count, nil
}

func (f *fakeQuizStore) QuestionsWithOptions(quizID uint) ([]model.QuizQuestion, map[uint][]model.QuizAnswerOption, error) {
	var questions []model.QuizQuestion
	for _, q := range f.questions {
		if q.QuizID == quizID {
			questions = append(questions, *q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })
	byQ := map[uint][]model.QuizAnswerOption{}
	for _, q := range questions {
		byQ[q.ID] = append([]model.QuizAnswerOption{}, f.options[q.ID]...)
	}
	return questions, byQ, nil
}

// ---- 作答存储假实现 ----

type fakeAttemptStore struct {
	attempts map[uint]*model.QuizAttempt
	answers  map[uint][]model.QuizAttemptAnswer
	nextID   uint
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: map[uint]*model.QuizAttempt{},
		answers:  map[uint][]model.QuizAttemptAnswer{},
	}
}

func (f *fakeAttemptStore) CreateIfAbsent(a *model.QuizAttempt) error {
	for _, existing := range f.attempts {
		if existing.QuizID == a.QuizID && existing.StudentID == a.StudentID {
			return util.Conflict("ALREADY_ATTEMPTED: student %d already attempted quiz %d", a.StudentID, a.QuizID)
		}
	}
	f.nextID++
	a.ID = f.nextID
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeAttemptStore) FindByID(id uint) (*model.QuizAttempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, util.NotFound("attempt %d not found", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) SubmitWithAnswers(ctx context.Context, a *model.QuizAttempt, answers []model.QuizAttemptAnswer) error {
	cur, ok := f.attempts[a.ID]
	if !ok {
		return util.NotFound("attempt %d not found", a.ID)
	}
	if cur.Status != model.AttemptInProgress {
		return util.Conflict("attempt %d already submitted", a.ID)
	}
	cp := *a
	f.attempts[a.ID] = &cp
	f.answers[a.ID] = answers
	return nil
}

func (f *fakeAttemptStore) GetAnswers(attemptID uint) ([]model.QuizAttemptAnswer, error) {
	return f.answers[attemptID], nil
}

// ---- 成绩册存储假实现 ----

type fakeGradebookStore struct {
	books     map[uint]*model.GradeBook
	bySection map[uint]uint
	items     map[uint]*model.GradeItem
	entries   map[[2]uint]model.GradeEntry
	approvals []*model.GradebookApproval
	nextID    uint
}

func newFakeGradebookStore() *fakeGradebookStore {
	return &fakeGradebookStore{
		books:     map[uint]*model.GradeBook{},
		bySection: map[uint]uint{},
		items:     map[uint]*model.GradeItem{},
		entries:   map[[2]uint]model.GradeEntry{},
	}
}

func (f *fakeGradebookStore) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeGradebookStore) GetOrCreate(classSectionID uint) (*model.GradeBook, error) {
	if id, ok := f.bySection[classSectionID]; ok {
		cp := *f.books[id]
		return &cp, nil
	}
	book := &model.GradeBook{ClassSectionID: classSectionID, Status: model.GradeBookDraft}
	book.ID = f.id()
	f.books[book.ID] = book
	f.bySection[classSectionID] = book.ID
	cp := *book
	return &cp, nil
}

func (f *fakeGradebookStore) FindBySection(classSectionID uint) (*model.GradeBook, error) {
	id, ok := f.bySection[classSectionID]
	if !ok {
		return nil, util.NotFound("no gradebook for class section %d", classSectionID)
	}
	cp := *f.books[id]
	return &cp, nil
}

func (f *fakeGradebookStore) CreateItem(item *model.GradeItem) error {
	item.ID = f.id()
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

func (f *fakeGradebookStore) GetItems(gradebookID uint) ([]model.GradeItem, error) {
	var out []model.GradeItem
	for _, it := range f.items {
		if it.GradeBookID == gradebookID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGradebookStore) GetEntries(gradebookID uint) ([]model.GradeEntry, error) {
	var out []model.GradeEntry
	for key, e := range f.entries {
		item, ok := f.items[key[0]]
		if ok && item.GradeBookID == gradebookID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeGradebookStore) UpsertEntries(ctx context.Context, gradebookID uint, expectedVersion int, entries []model.GradeEntry) (int, error) {
	book, ok := f.books[gradebookID]
	if !ok {
		return 0, util.NotFound("gradebook %d not found", gradebookID)
	}
	if book.Version != expectedVersion {
		return 0, util.Conflict("gradebook %d version mismatch, expected %d", gradebookID, expectedVersion)
	}
	book.Version++
	for _, e := range entries {
		f.entries[[2]uint{e.GradeItemID, e.EnrollmentID}] = e
	}
	return book.Version, nil
}

func (f *fakeGradebookStore) UpsertEntry(ctx context.Context, gradebookID uint, entry model.GradeEntry) error {
	book, ok := f.books[gradebookID]
	if !ok {
		return util.NotFound("gradebook %d not found", gradebookID)
	}
	book.Version++
	f.entries[[2]uint{entry.GradeItemID, entry.EnrollmentID}] = entry
	return nil
}

func (f *fakeGradebookStore) TransitionStatus(gradebookID uint, from []model.GradeBookStatus, to model.GradeBookStatus) (bool, error) {
	book, ok := f.books[gradebookID]
	if !ok {
		return false, util.NotFound("gradebook %d not found", gradebookID)
	}
	for _, s := range from {
		if book.Status == s {
			book.Status = to
			book.Version++
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGradebookStore) CreateApproval(a *model.GradebookApproval) error {
	a.ID = f.id()
	cp := *a
	f.approvals = append(f.approvals, &cp)
	return nil
}

func (f *fakeGradebookStore) DecideApproval(gradebookID uint, outcome model.ApprovalOutcome, message string, at time.Time) error {
	for i := len(f.approvals) - 1; i >= 0; i-- {
		a := f.approvals[i]
		if a.GradeBookID == gradebookID && a.Outcome == model.ApprovalPending {
			a.Outcome = outcome
			a.Message = message
			a.RespondedAt = &at
			return nil
		}
	}
	return nil
}

func (f *fakeGradebookStore) LatestApproval(gradebookID uint) (*model.GradebookApproval, error) {
	for i := len(f.approvals) - 1; i >= 0; i-- {
		if f.approvals[i].GradeBookID == gradebookID {
			cp := *f.approvals[i]
			return &cp, nil
		}
	}
	return nil, util.NotFound("no approval history for gradebook %d", gradebookID)
}

func (f *fakeGradebookStore) ResolveQuizGradeItem(classSectionID uint) (*model.GradeItem, error) {
	id, ok := f.bySection[classSectionID]
	if !ok {
		return nil, util.GradebookNotFound("no quiz grade item configured for class section %d", classSectionID)
	}
	var found *model.GradeItem
	for _, it := range f.items {
		if it.GradeBookID == id && it.Kind == model.GradeItemQuiz {
			if found == nil || it.ID < found.ID {
				found = it
			}
		}
	}
	if found == nil {
		return nil, util.GradebookNotFound("no quiz grade item configured for class section %d", classSectionID)
	}
	cp := *found
	return &cp, nil
}

// ---- 选课/任课假实现 ----

type fakeAccess struct {
	teachers    map[uint]uint          // classSectionID -> teacherID
	enrollments map[uint]map[uint]uint // classSectionID -> studentID -> enrollmentID
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{teachers: map[uint]uint{}, enrollments: map[uint]map[uint]uint{}}
}

func (f *fakeAccess) setTeacher(sectionID, teacherID uint) {
	f.teachers[sectionID] = teacherID
}

func (f *fakeAccess) enroll(sectionID, studentID, enrollmentID uint) {
	if f.enrollments[sectionID] == nil {
		f.enrollments[sectionID] = map[uint]uint{}
	}
	f.enrollments[sectionID][studentID] = enrollmentID
}

func (f *fakeAccess) IsTeacherOf(teacherID, classSectionID uint) (bool, error) {
	return f.teachers[classSectionID] == teacherID, nil
}

func (f *fakeAccess) IsEnrolled(studentID, classSectionID uint) (bool, error) {
	_, ok := f.enrollments[classSectionID][studentID]
	return ok, nil
}

func (f *fakeAccess) EnrollmentID(studentID, classSectionID uint) (uint, error) {
	id, ok := f.enrollments[classSectionID][studentID]
	if !ok {
		return 0, util.NotFound("student %d is not enrolled in class section %d", studentID, classSectionID)
	}
	return id, nil
}

func (f *fakeAccess) EnrollmentIDs(classSectionID uint) ([]uint, error) {
	var ids []uint
	for _, id := range f.enrollments[classSectionID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ---- 队列与事件假实现 ----

type fakeQueue struct {
	enqueued []uint
}

func (f *fakeQueue) Enqueue(attemptID uint) error {
	f.enqueued = append(f.enqueued, attemptID)
	return nil
}

type fakeSink struct {
	published []uint
	decided   []bool
}

func (f *fakeSink) QuizPublished(quizID, classSectionID uint) {
	f.published = append(f.published, quizID)
}

func (f *fakeSink) GradebookDecided(gradebookID uint, approved bool) {
	f.decided = append(f.decided, approved)
}
