package service

import (
	"testing"
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type fakeUserStore struct {
	users map[string]*model.User
}

func (f *fakeUserStore) FindByEmail(email string) (*model.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, util.NotFound("user with email %s not found", email)
	}
	cp := *u
	return &cp, nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	teacher := &model.User{Name: "王老师", Email: "teacher@campus.local", Password: string(hash), Role: model.Teacher}
	teacher.ID = testTeacherID
	store := &fakeUserStore{users: map[string]*model.User{teacher.Email: teacher}}
	return NewAuthService(store, testJWTSecret, time.Hour), store
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	result, err := svc.Login("teacher@campus.local", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := util.ParseJWT(result.Token, testJWTSecret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != testTeacherID || claims.Role != model.Teacher {
		t.Fatalf("claims user=%d role=%s, want %d/teacher", claims.UserID, claims.Role, testTeacherID)
	}

	// 换密钥签出的令牌要被拒
	if _, err := util.ParseJWT(result.Token, "another-secret-another-secret-xx"); err == nil {
		t.Fatal("token must not parse with a different secret")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, store := newAuthFixture(t)

	if _, err := svc.Login("teacher@campus.local", "wrong"); !util.IsCode(err, util.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for wrong password, got %v", err)
	}
	// 未注册邮箱与密码错误不可区分
	if _, err := svc.Login("nobody@campus.local", "s3cret"); !util.IsCode(err, util.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for unknown email, got %v", err)
	}
	if _, err := svc.Login("", ""); !util.IsCode(err, util.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for empty credentials, got %v", err)
	}

	store.users["teacher@campus.local"].Disabled = true
	if _, err := svc.Login("teacher@campus.local", "s3cret"); !util.IsCode(err, util.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for disabled account, got %v", err)
	}
}
