package service

import (
	"time"

	"campus_edu_backend/internal/model"
	"campus_edu_backend/internal/util"
	"campus_edu_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 账号登录，签发携带角色的访问令牌
type AuthService struct {
	Users  UserStore
	Secret string
	Expire time.Duration
}

func NewAuthService(users UserStore, secret string, expire time.Duration) *AuthService {
	return &AuthService{Users: users, Secret: secret, Expire: expire}
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login 邮箱+密码换令牌。账号不存在和密码错误返回同一个错误，
// 不暴露邮箱是否注册过。
func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, util.InvalidInput("email and password required")
	}

	user, err := s.Users.FindByEmail(email)
	if err != nil {
		if util.IsCode(err, util.CodeNotFound) {
			return nil, util.Forbidden("invalid email or password")
		}
		return nil, err
	}
	if user.Disabled {
		return nil, util.Forbidden("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.Forbidden("invalid email or password")
	}

	token, err := util.GenerateJWT(user, s.Secret, s.Expire)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("user logged in",
		zap.Uint("userId", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{Token: token, User: user}, nil
}
