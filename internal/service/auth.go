package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pobyzaarif/goshortcute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ethio-home/internal/core/auth"
	"ethio-home/internal/core/cache"
	"ethio-home/internal/core/config"
	"ethio-home/internal/core/metrics"
	"ethio-home/internal/core/mq"
	"ethio-home/internal/domain"
	"ethio-home/internal/repo"
	"ethio-home/pkg/utils"
)

type AuthService struct {
	Users     *repo.UserRepo
	JWT       *auth.JWTer
	Cache     *cache.Cache
	Events    mq.EventPublisher
	Cfg       config.Auth
	PublicURL string
	Log       *zap.Logger
	Now       func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type SignupInput struct {
	Name            string `json:"name" binding:"required,max=64"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone" binding:"omitempty,ethphone"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
	Role            string `json:"role" binding:"omitempty,oneof=buyer seller agent"`
}

// Signup 新用户未验证，验证邮件经事件异步发送
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	email := repo.NormalizeEmail(in.Email)
	taken, err := s.Users.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrEmailTaken
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleBuyer
	}
	u := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        in.Phone,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	metrics.Signups.WithLabelValues(role).Inc()

	link, err := s.VerificationLink(u.Email)
	if err != nil {
		return nil, err
	}
	if err := s.Events.Publish(ctx, mq.KeyUserSignup, mq.UserSignup{
		UserID: u.ID, Name: u.Name, Email: u.Email, Link: link,
	}); err != nil {
		s.Log.Warn("publish signup event failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.Log.Info("user signed up", zap.String("user_id", u.ID), zap.String("role", role))
	return u, nil
}

// VerificationToken AES-CBC("email|expUnix") 再做 URL 安全 base64
func (s *AuthService) VerificationToken(email string) (string, error) {
	ttl := time.Duration(s.Cfg.EmailVerificationTTLMin) * time.Minute
	plain := fmt.Sprintf("%s|%d", email, s.now().Add(ttl).Unix())
	enc, err := goshortcute.AESCBCEncrypt([]byte(plain), []byte(s.Cfg.EmailVerificationKey))
	if err != nil {
		return "", fmt.Errorf("encrypt verification token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(enc)), nil
}

func (s *AuthService) VerificationLink(email string) (string, error) {
	tok, err := s.VerificationToken(email)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s.PublicURL, "/") + "/api/v1/users/verifyEmail/" + tok, nil
}

func (s *AuthService) decodeVerification(tok string) (email string, err error) {
	// 非法密文可能让底层解密 panic
	defer func() {
		if r := recover(); r != nil {
			err = domain.ErrTokenInvalid
		}
	}()
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return "", domain.ErrTokenInvalid
	}
	plain, err := goshortcute.AESCBCDecrypt(raw, []byte(s.Cfg.EmailVerificationKey))
	if err != nil {
		return "", domain.ErrTokenInvalid
	}
	parts := strings.Split(plain, "|")
	if len(parts) != 2 {
		return "", domain.ErrTokenInvalid
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || s.now().After(time.Unix(exp, 0)) {
		return "", domain.ErrTokenInvalid
	}
	return parts[0], nil
}

// VerifyEmail 激活账号并直接登录
func (s *AuthService) VerifyEmail(ctx context.Context, tok string) (string, *domain.User, error) {
	email, err := s.decodeVerification(tok)
	if err != nil {
		return "", nil, err
	}
	u, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return "", nil, err
	}
	if !u.IsVerified {
		if err := s.Users.UpdateFields(ctx, u.ID, map[string]any{"is_verified": true}); err != nil {
			return "", nil, err
		}
		u.IsVerified = true
	}
	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !u.IsVerified {
		return "", nil, domain.ErrUnverifiedEmail
	}
	return s.issue(u)
}

// Logout 按 jti 拉黑到 token 自然过期
func (s *AuthService) Logout(ctx context.Context, c *auth.Claims) error {
	if c == nil {
		return nil
	}
	return s.Cache.Revoke(ctx, c.ID, c.Remaining(s.now()))
}

// ForgotPassword 生成一次性重置 token，库里只存 sha256
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: there is no user with that email address", domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	raw, err := utils.NewRawToken(32)
	if err != nil {
		return err
	}
	exp := s.now().Add(time.Duration(s.Cfg.ResetTokenTTLMin) * time.Minute)
	if err := s.Users.UpdateFields(ctx, u.ID, map[string]any{
		"password_reset_token":   utils.HashToken(raw),
		"password_reset_expires": exp,
	}); err != nil {
		return err
	}

	link := strings.TrimRight(s.PublicURL, "/") + "/api/v1/users/resetPassword/" + raw
	if err := s.Events.Publish(ctx, mq.KeyPasswordReset, mq.PasswordReset{
		UserID: u.ID, Name: u.Name, Email: u.Email, Link: link,
	}); err != nil {
		// 发不出去就作废 token
		_ = s.Users.UpdateFields(ctx, u.ID, map[string]any{"password_reset_token": "", "password_reset_expires": nil})
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, raw, password string) (string, *domain.User, error) {
	u, err := s.Users.FindByResetToken(ctx, utils.HashToken(raw), s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return "", nil, err
	}
	if err := s.setPassword(u, password); err != nil {
		return "", nil, err
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	if err := s.Users.Update(ctx, u); err != nil {
		return "", nil, err
	}
	return s.issue(u)
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, password string) (string, *domain.User, error) {
	u, err := s.Users.FindActiveByID(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	if !utils.CheckPassword(current, u.PasswordHash) {
		return "", nil, fmt.Errorf("%w: your current password is wrong", domain.ErrInvalidCredentials)
	}
	if err := s.setPassword(u, password); err != nil {
		return "", nil, err
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return "", nil, err
	}
	return s.issue(u)
}

// setPassword changedAt 回拨 1s，保证新签发的 token 的 iat 不早于它
func (s *AuthService) setPassword(u *domain.User, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	at := s.now().Add(-time.Second)
	u.PasswordHash = hash
	u.PasswordChangedAt = &at
	return nil
}

func (s *AuthService) issue(u *domain.User) (string, *domain.User, error) {
	tok, err := s.JWT.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return tok, u, nil
}
