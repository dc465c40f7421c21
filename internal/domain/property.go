package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusForSale = "for-sale"
	StatusForRent = "for-rent"
)

type Property struct {
	Base
	Title            string                      `gorm:"size:160;not null" json:"title" form:"title" binding:"omitempty,max=160"`
	Description      string                      `gorm:"type:text" json:"description" form:"description"`
	Price            decimal.Decimal             `gorm:"type:decimal(14,2);not null" json:"price" form:"price"`
	Location         string                      `gorm:"size:160;not null;index" json:"location" form:"location"`
	Type             string                      `gorm:"size:24;not null" json:"type" form:"type" binding:"omitempty,oneof=house apartment villa land commercial condominium"`
	Status           string                      `gorm:"size:16;not null;default:for-sale" json:"status" form:"status" binding:"omitempty,oneof=for-sale for-rent"`
	Bedrooms         int                         `json:"bedrooms" form:"bedrooms" binding:"gte=0"`
	Bathrooms        int                         `json:"bathrooms" form:"bathrooms" binding:"gte=0"`
	Area             float64                     `json:"area" form:"area" binding:"gte=0"`
	Images           datatypes.JSONSlice[string] `json:"images" form:"-"`
	OwnerID          string                      `gorm:"type:varchar(32);not null;index" json:"owner" form:"owner"`
	IsVerified       bool                        `gorm:"not null;default:false" json:"isVerified" form:"isVerified"`
	VerifiedBy       *string                     `gorm:"type:varchar(32)" json:"verifiedBy,omitempty" form:"-"`
	VerificationDate *time.Time                  `json:"verificationDate,omitempty" form:"-"`
	Sold             bool                        `gorm:"not null;default:false;index" json:"sold" form:"sold"`

	Owner     *User    `gorm:"foreignKey:OwnerID" json:"ownerInfo,omitempty" form:"-"`
	ImagesURL []string `gorm:"-" json:"imagesUrl,omitempty" form:"-"`
}

func (Property) TableName() string { return "properties" }
