package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Selling 付款确认后才落库；tx_ref 与 property 各自唯一
type Selling struct {
	Base
	PropertyID  string          `gorm:"type:varchar(32);not null;uniqueIndex" json:"property"`
	BuyerID     string          `gorm:"type:varchar(32);not null;index" json:"buyer"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	TxRef       string          `gorm:"size:191;not null;uniqueIndex" json:"tx_ref"`
	PaymentDate time.Time       `json:"paymentDate"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"propertyInfo,omitempty"`
}

func (Selling) TableName() string { return "sellings" }
