package domain

import "github.com/shopspring/decimal"

const (
	PaymentKindSale         = "sale"
	PaymentKindSubscription = "subscription"

	PaymentInitiated = "initiated"
	PaymentPending   = "pending"
	PaymentSuccess   = "success"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
	PaymentRefunding = "refunding"
)

// Payment 付款流水：initiated → pending → success | failed | cancelled；success 为终态
type Payment struct {
	Base
	TxRef       string          `gorm:"size:191;not null;uniqueIndex" json:"tx_ref"`
	Kind        string          `gorm:"size:16;not null;index" json:"kind"`
	Status      string          `gorm:"size:16;not null;index" json:"status"`
	UserID      string          `gorm:"type:varchar(32);not null;index" json:"user"`
	PropertyID  string          `gorm:"type:varchar(32);index" json:"property,omitempty"`
	Plan        string          `gorm:"size:32" json:"plan,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency    string          `gorm:"size:8" json:"currency"`
	CheckoutURL string          `gorm:"size:512" json:"checkoutUrl,omitempty"`
	Reason      string          `gorm:"size:255" json:"reason,omitempty"`
}

func (Payment) TableName() string { return "payments" }

// CanMoveTo success 之后不再变更
func (p *Payment) CanMoveTo(status string) bool {
	return p.Status != PaymentSuccess && p.Status != status
}
