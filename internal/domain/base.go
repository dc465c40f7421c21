package domain

import (
	"time"

	"gorm.io/gorm"

	"ethio-home/pkg/utils"
)

// Base 所有资源共用：32 位 hex 主键 + 时间戳
type Base struct {
	ID        string    `gorm:"primaryKey;type:varchar(32)" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = utils.NewID()
	}
	return nil
}

func (b *Base) GetID() string { return b.ID }

// Models AutoMigrate 全量模型
func Models() []any {
	return []any{
		&User{}, &Property{}, &InterestForm{}, &Selling{},
		&SubscriptionPlan{}, &Review{}, &Payment{},
	}
}
