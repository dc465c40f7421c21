package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ethio-home/internal/domain"
	"ethio-home/internal/repo"
	"ethio-home/pkg/utils"
)

// UserService 后台用户管理
type UserService struct {
	Users *repo.UserRepo
	Log   *zap.Logger
}

func NewUserService(users *repo.UserRepo, l *zap.Logger) *UserService {
	return &UserService{Users: users, Log: l}
}

func (s *UserService) List(ctx context.Context, f repo.UserFilter) ([]domain.User, int64, error) {
	return s.Users.List(ctx, f)
}

// Ban 软删：active=false 后所有查询与登录都看不到该用户
func (s *UserService) Ban(ctx context.Context, id string) error {
	if err := s.Users.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.Log.Info("user banned", zap.String("user_id", id))
	return nil
}

func (s *UserService) Restore(ctx context.Context, id string) error {
	if err := s.Users.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.Log.Info("user restored", zap.String("user_id", id))
	return nil
}

type StaffInput struct {
	Name     string
	Email    string
	Password string
	Role     string // admin | employee
}

// CreateStaff 后台账号直接视为已验证
func (s *UserService) CreateStaff(ctx context.Context, in StaffInput) (*domain.User, error) {
	if in.Role == "" {
		in.Role = domain.RoleAdmin
	}
	if !domain.IsStaff(in.Role) {
		return nil, fmt.Errorf("%w: role must be admin or employee", domain.ErrValidation)
	}
	email := repo.NormalizeEmail(in.Email)
	if at := strings.IndexByte(email, '@'); at < 1 || at == len(email)-1 {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrValidation)
	}
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
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	u := &domain.User{
		Name:         name,
		Email:        email,
		Role:         in.Role,
		PasswordHash: hash,
		IsVerified:   true,
		Active:       true,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	s.Log.Info("staff account created", zap.String("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}
