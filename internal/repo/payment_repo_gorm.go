package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ethio-home/internal/domain"
)

// PaymentRepo 付款流水 + 成交记录 + 订阅
type PaymentRepo struct{ db *gorm.DB }

func NewPaymentRepo(db *gorm.DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) WithTx(tx *gorm.DB) *PaymentRepo { return &PaymentRepo{db: tx} }

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepo) Save(ctx context.Context, p *domain.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// FindByTxRef forUpdate 时加行锁（sqlite 忽略）
func (r *PaymentRepo) FindByTxRef(ctx context.Context, ref string, forUpdate bool) (*domain.Payment, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p domain.Payment
	err := q.Where("tx_ref = ?", ref).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetStatus success 行不会被改写；状态未变化时返回 false
func (r *PaymentRepo) SetStatus(ctx context.Context, ref, status, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("tx_ref = ? AND status <> ? AND status <> ?", ref, domain.PaymentSuccess, status).
		Updates(map[string]any{"status": status, "reason": reason})
	return res.RowsAffected > 0, res.Error
}

// InsertSelling ON CONFLICT(tx_ref) DO NOTHING；inserted=false 表示重放
func (r *PaymentRepo) InsertSelling(ctx context.Context, s *domain.Selling) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_ref"}}, DoNothing: true}).
		Omit(clause.Associations).
		Create(s)
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentRepo) SellingByTxRef(ctx context.Context, ref string) (*domain.Selling, error) {
	var s domain.Selling
	err := r.db.WithContext(ctx).Where("tx_ref = ?", ref).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PaymentRepo) SubscriptionBySeller(ctx context.Context, sellerID string, forUpdate bool) (*domain.SubscriptionPlan, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var s domain.SubscriptionPlan
	err := q.Where("seller_id = ?", sellerID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PaymentRepo) SaveSubscription(ctx context.Context, s *domain.SubscriptionPlan) error {
	return r.db.WithContext(ctx).Save(s).Error
}

type PaymentFilter struct {
	Kind   string
	Status string
	UserID string
	Offset int
	Limit  int
}

func (r *PaymentRepo) List(ctx context.Context, f PaymentFilter) ([]domain.Payment, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Payment{})
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Payment
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
