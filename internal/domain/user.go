package domain

import "time"

type User struct {
	Base
	Name                 string     `gorm:"size:64;not null" json:"name" binding:"omitempty,max=64"`
	Email                string     `gorm:"uniqueIndex;size:191;not null" json:"email" binding:"omitempty,email"`
	Phone                string     `gorm:"size:32" json:"phone,omitempty" binding:"omitempty,ethphone"`
	Photo                string     `gorm:"size:255;not null;default:default.jpg" json:"photo"`
	Role                 string     `gorm:"size:16;not null;default:buyer" json:"role" binding:"omitempty,oneof=admin employee seller agent buyer"`
	PasswordHash         string     `gorm:"size:100;not null" json:"-"`
	PasswordChangedAt    *time.Time `json:"-"`
	IsVerified           bool       `gorm:"not null;default:false" json:"isVerified"`
	PasswordResetToken   string     `gorm:"size:64;index" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `gorm:"not null;default:true;index" json:"-"`

	ImagesURL string `gorm:"-" json:"imagesUrl,omitempty"`
}

func (User) TableName() string { return "users" }

// ChangedPasswordAfter iat 早于最近一次改密 → token 作废
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Truncate(time.Second).After(issuedAt)
}

// Public 对外展示的精简信息
func (u *User) Public() map[string]any {
	return map[string]any{
		"id": u.ID, "name": u.Name, "email": u.Email, "role": u.Role,
		"photo": u.Photo, "isVerified": u.IsVerified,
	}
}
