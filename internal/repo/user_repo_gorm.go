package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"ethio-home/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

// WithTx 事务内使用同一个 tx（sqlite 单连接下必须如此）
func (r *UserRepo) WithTx(tx *gorm.DB) *UserRepo { return &UserRepo{db: tx} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepo) first(ctx context.Context, q any, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where(q, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

// FindActiveByID 软删用户视为不存在
func (r *UserRepo) FindActiveByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ? AND active = ?", id, true)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ? AND active = ?", NormalizeEmail(email), true)
}

// EmailTaken 包含已停用账号，唯一索引不区分 active
func (r *UserRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", NormalizeEmail(email)).Count(&n).Error
	return n > 0, err
}

func (r *UserRepo) FindByResetToken(ctx context.Context, hashed string, now time.Time) (*domain.User, error) {
	return r.first(ctx, "password_reset_token = ? AND password_reset_expires > ? AND active = ?", hashed, now, true)
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *UserRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.UpdateFields(ctx, id, map[string]any{"active": active})
}

type UserFilter struct {
	Q           string
	Role        string
	WithDeleted bool
	Offset      int
	Limit       int
}

func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]domain.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.User{})
	if !f.WithDeleted {
		q = q.Where("active = ?", true)
	}
	if s := strings.TrimSpace(f.Q); s != "" {
		like := "%" + s + "%"
		q = q.Where("email LIKE ? OR name LIKE ?", like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
