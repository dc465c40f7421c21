// Package testkit 测试用的内存库与数据构造
package testkit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ethio-home/internal/core/config"
	"ethio-home/internal/core/database"
	"ethio-home/internal/domain"
	"ethio-home/pkg/utils"
)

const Password = "pass1234"

func init() { utils.PasswordCost = bcrypt.MinCost }

// NewDB sqlite 内存库；单连接，事务内只能用 tx
func NewDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:        "sqlite",
		DSN:           ":memory:",
		MaxOpenConns:  1,
		MaxIdleConns:  1,
		LogLevel:      "silent",
		NoPrepareStmt: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(models) == 0 {
		models = domain.Models()
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Config 测试配置（与 config.local.yaml 同结构）
func Config() *config.Config {
	return &config.Config{
		App: config.App{Name: "ethio-home", Env: "test", FrontendURL: "http://front.test", PublicURL: "http://api.test"},
		Log: config.Log{Level: "error"},
		JWT: config.JWT{Secret: "test-secret", Issuer: "ethio-home", AccessTokenTTLMin: 60, CookieName: "jwt"},
		DB:  config.DB{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1, LogLevel: "silent"},
		Chapa: config.Chapa{
			SecretKey: "CHASECK_TEST", WebhookSecret: "whsec", Currency: "ETB",
			CallbackURL: "http://api.test/api/v1/selling/webhook", ReturnURL: "http://front.test/payment/success",
			TimeoutSec: 5,
		},
		Mail:   config.Mail{Provider: "log", SenderEmail: "no-reply@ethio-home.test", SenderName: "Ethio-Home"},
		Upload: config.Upload{PublicBaseURL: "http://api.test"},
		RateLimit: config.RateLimit{
			RPS: 1000, Burst: 1000, PerIP: config.Limit{RPS: 1000, Burst: 1000}, Concurrency: 100,
		},
		Auth: config.Auth{EmailVerificationKey: "0123456789abcdef", EmailVerificationTTLMin: 60, ResetTokenTTLMin: 60},
		Subscription: config.Subscription{Plans: map[string]config.Plan{
			"basic":   {Price: "500", Days: 30},
			"premium": {Price: "1500", Days: 30},
		}},
	}
}

// CreateUser 已验证、密码为 Password
func CreateUser(t testing.TB, db *gorm.DB, role string) *domain.User {
	t.Helper()
	hash, err := utils.HashPassword(Password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	id := utils.NewID()
	u := &domain.User{
		Base:         domain.Base{ID: id},
		Name:         role + "-" + id[:6],
		Email:        role + "-" + id[:8] + "@ethio-home.test",
		Role:         role,
		PasswordHash: hash,
		IsVerified:   true,
		Active:       true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func CreateProperty(t testing.TB, db *gorm.DB, ownerID string, price int64) *domain.Property {
	t.Helper()
	p := &domain.Property{
		Title:    "House in Bole",
		Price:    decimal.NewFromInt(price),
		Location: "Addis Ababa",
		Type:     "house",
		Status:   domain.StatusForSale,
		Bedrooms: 3,
		OwnerID:  ownerID,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create property: %v", err)
	}
	// CreatedAt 拉开间隔，排序断言稳定
	time.Sleep(2 * time.Millisecond)
	return p
}
