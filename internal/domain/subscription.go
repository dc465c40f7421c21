package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SubscriptionPlan 每个卖家一行；续费追加 tx_ref / paymentDate
type SubscriptionPlan struct {
	Base
	SellerID     string                         `gorm:"type:varchar(32);not null;uniqueIndex" json:"seller"`
	Plan         string                         `gorm:"size:32;not null" json:"plan"`
	Price        decimal.Decimal                `gorm:"type:decimal(14,2);not null" json:"price"`
	TxRefs       datatypes.JSONSlice[string]    `json:"tx_ref"`
	PaymentDates datatypes.JSONSlice[time.Time] `json:"paymentDate"`
	Active       bool                           `gorm:"not null;default:false" json:"active"`
	ExpiresAt    *time.Time                     `json:"expiresAt,omitempty"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plans" }

func (s *SubscriptionPlan) HasTxRef(ref string) bool { return slices.Contains(s.TxRefs, ref) }

// Renew 追加一次付款并顺延到期时间（未过期则在原到期日上叠加）
func (s *SubscriptionPlan) Renew(txRef string, paidAt time.Time, days int) {
	s.TxRefs = append(s.TxRefs, txRef)
	s.PaymentDates = append(s.PaymentDates, paidAt)
	from := paidAt
	if s.ExpiresAt != nil && s.ExpiresAt.After(paidAt) {
		from = *s.ExpiresAt
	}
	exp := from.AddDate(0, 0, days)
	s.ExpiresAt = &exp
	s.Active = true
}
