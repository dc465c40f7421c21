package domain

import "time"

const (
	InterestPending   = "pending"
	InterestContacted = "contacted"
	InterestSchedule  = "schedule"
	InterestVisited   = "visited"
	InterestRejected  = "rejected"
)

// InterestForm 同一买家对同一房源只允许一条（唯一索引兜底）
type InterestForm struct {
	Base
	BuyerID    string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_interest_buyer_property" json:"buyer"`
	PropertyID string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_interest_buyer_property;index:idx_interest_property" json:"property"`
	Message    string     `gorm:"type:text" json:"message" binding:"omitempty,max=2000"`
	Phone      string     `gorm:"size:32" json:"phone,omitempty" binding:"omitempty,ethphone"`
	Status     string     `gorm:"size:16;not null;default:pending" json:"status" binding:"omitempty,oneof=pending contacted schedule visited rejected"`
	VisitDate  *time.Time `json:"visitDate,omitempty"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"propertyInfo,omitempty"`
	Buyer    *User     `gorm:"foreignKey:BuyerID" json:"buyerInfo,omitempty"`
}

func (InterestForm) TableName() string { return "interest_forms" }
