package domain

type Review struct {
	Base
	BuyerID    string `gorm:"type:varchar(32);not null;uniqueIndex:idx_review_buyer_property" json:"buyer"`
	PropertyID string `gorm:"type:varchar(32);not null;uniqueIndex:idx_review_buyer_property;index:idx_review_property" json:"property"`
	Rating     int    `gorm:"not null" json:"rating" binding:"omitempty,min=1,max=5"`
	Comment    string `gorm:"type:text" json:"review" binding:"omitempty,max=2000"`
}

func (Review) TableName() string { return "reviews" }
