package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ethio-home/internal/domain"
)

type PropertyRepo struct{ db *gorm.DB }

func NewPropertyRepo(db *gorm.DB) *PropertyRepo { return &PropertyRepo{db: db} }

func (r *PropertyRepo) WithTx(tx *gorm.DB) *PropertyRepo { return &PropertyRepo{db: tx} }

func (r *PropertyRepo) FindByID(ctx context.Context, id string) (*domain.Property, error) {
	var p domain.Property
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkSold 原子 CAS：仅 sold=false 时置 true，返回是否抢到
func (r *PropertyRepo) MarkSold(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Property{}).
		Where("id = ? AND sold = ?", id, false).
		Update("sold", true)
	return res.RowsAffected == 1, res.Error
}

func (r *PropertyRepo) MarkVerified(ctx context.Context, id, staffID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Property{}).Where("id = ?", id).Updates(map[string]any{
		"is_verified":       true,
		"verified_by":       staffID,
		"verification_date": at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PropertyRepo) ListPending(ctx context.Context, offset, limit int) ([]domain.Property, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Property{}).Where("is_verified = ? AND sold = ?", false, false)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Property
	if err := q.Order("created_at ASC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
