// Package app 进程级依赖装配：api / admin / ethioctl 共用
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ethio-home/internal/core/auth"
	"ethio-home/internal/core/cache"
	"ethio-home/internal/core/config"
	"ethio-home/internal/core/database"
	"ethio-home/internal/core/mailer"
	"ethio-home/internal/core/mq"
	"ethio-home/internal/core/payment"
	"ethio-home/internal/domain"
	"ethio-home/internal/feature/interest"
	"ethio-home/internal/feature/property"
	"ethio-home/internal/feature/review"
	"ethio-home/internal/feature/selling"
	"ethio-home/internal/feature/subscription"
	"ethio-home/internal/feature/user"
	"ethio-home/internal/repo"
	"ethio-home/internal/service"
	"ethio-home/internal/transport/http/handler"
	mdw "ethio-home/internal/transport/http/middleware"
	"ethio-home/internal/transport/http/router"
)

// Infra 外部资源；测试里可以换成 sqlite / miniredis / 假网关
type Infra struct {
	DB      *gorm.DB
	Redis   *redis.Client     // 可为 nil
	Events  mq.EventPublisher // 为 nil 时进程内投递给 Notifier
	Mail    mailer.Mailer     // 为 nil 时按配置构造
	Gateway payment.Gateway   // 为 nil 时用 Chapa
}

type App struct {
	Cfg *config.Config
	Log *zap.Logger

	DB      *gorm.DB
	Redis   *redis.Client
	Cache   *cache.Cache
	Events  mq.EventPublisher
	Mail    mailer.Mailer
	Gateway payment.Gateway
	JWT     *auth.JWTer

	Users    *repo.UserRepo
	Props    *repo.PropertyRepo
	Payments *repo.PaymentRepo

	Auth       *service.AuthService
	UserSvc    *service.UserService
	Properties *service.PropertyService
	Pay        *service.PaymentService
	Notifier   *service.Notifier

	closers []func()
}

func OpenDB(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	return database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		SlowQueryMS:        cfg.DB.SlowQueryMS,
		ConnectRetries:     cfg.DB.ConnectRetries,
		Log:                l,
	})
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// New 按配置连接 DB / Redis / RabbitMQ
func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	db, err := OpenDB(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver), zap.String("dsn", database.MaskDSN(cfg.DB.DSN)))
	if cfg.DB.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		l.Info("automigrate done")
	}

	in := Infra{DB: db}
	closers := []func(){func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}}
	if cfg.Redis.Enabled {
		in.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := in.Redis.Ping(ctx).Err(); err != nil {
			// 缓存 / 黑名单 / 限流均 fail-open，不阻止启动
			l.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		closers = append(closers, func() { _ = in.Redis.Close() })
	}
	if cfg.MQ.Enabled {
		pub, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			return nil, err
		}
		in.Events = pub
		closers = append(closers, func() { _ = pub.Close() })
		l.Info("rabbitmq connected", zap.String("exchange", cfg.MQ.Exchange))
	}

	a := Assemble(cfg, l, in)
	a.closers = append(closers, a.closers...)
	return a, nil
}

// Assemble 只做装配，不连接任何外部资源
func Assemble(cfg *config.Config, l *zap.Logger, in Infra) *App {
	a := &App{Cfg: cfg, Log: l, DB: in.DB, Redis: in.Redis, Events: in.Events, Mail: in.Mail, Gateway: in.Gateway}
	if in.Redis != nil {
		a.Cache = cache.NewWithClient(in.Redis)
	}
	if a.Mail == nil {
		a.Mail = mailer.New(cfg.Mail, l)
	}
	if a.Gateway == nil {
		a.Gateway = payment.NewChapa(cfg.Chapa)
	}
	a.JWT = &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	a.Users = repo.NewUserRepo(in.DB)
	a.Props = repo.NewPropertyRepo(in.DB)
	a.Payments = repo.NewPaymentRepo(in.DB)

	a.Notifier = &service.Notifier{Mail: a.Mail, Users: a.Users, Log: l}
	if a.Events == nil {
		inline := &mq.Inline{H: a.Notifier.Handle, Log: l}
		a.Events = inline
		a.closers = append(a.closers, inline.Wait)
	}

	a.Auth = &service.AuthService{
		Users:     a.Users,
		JWT:       a.JWT,
		Cache:     a.Cache,
		Events:    a.Events,
		Cfg:       cfg.Auth,
		PublicURL: cfg.App.PublicURL,
		Log:       l,
	}
	a.UserSvc = service.NewUserService(a.Users, l)
	a.Properties = service.NewPropertyService(a.Props, a.Cache, l)
	a.Pay = &service.PaymentService{
		DB:          in.DB,
		Users:       a.Users,
		Props:       a.Props,
		Payments:    a.Payments,
		Properties:  a.Properties,
		Gateway:     a.Gateway,
		Events:      a.Events,
		Chapa:       cfg.Chapa,
		Plans:       cfg.Subscription.Plans,
		FrontendURL: cfg.App.FrontendURL,
		Log:         l,
	}
	return a
}

func (a *App) Guard() mdw.Guard {
	return mdw.Guard{JWT: a.JWT, Users: a.Users, Revoked: a.Cache, CookieName: a.Cfg.JWT.CookieName}
}

func (a *App) imgBase(sub string) string {
	return strings.TrimRight(a.Cfg.Upload.PublicBaseURL, "/") + "/img/" + sub
}

// Modules /api/v1 下的全部业务模块
func (a *App) Modules() []any {
	up := a.Cfg.Upload.Dir
	return []any{
		user.Module{
			DB:   a.DB,
			Auth: a.Auth,
			Cookie: user.Cookie{
				Name:   a.Cfg.JWT.CookieName,
				Secure: a.Cfg.JWT.CookieSecure,
				TTL:    a.JWT.TTL,
			},
			Photo:   mdw.UserPhoto(up),
			ImgBase: a.imgBase("users"),
		},
		property.Module{DB: a.DB, Properties: a.Properties, Images: mdw.PropertyImages(up), ImgBase: a.imgBase("properties")},
		interest.Module{DB: a.DB},
		review.Module{DB: a.DB},
		selling.Module{DB: a.DB, Payments: a.Pay, Properties: a.Properties},
		subscription.Module{DB: a.DB, Payments: a.Pay, Plans: a.Cfg.Subscription.Plans},
	}
}

func (a *App) routerOptions(mods []any) router.Options {
	var origins []string
	if a.Cfg.App.FrontendURL != "" {
		origins = []string{a.Cfg.App.FrontendURL}
	}
	return router.Options{
		Log:       a.Log,
		Guard:     a.Guard(),
		Limits:    a.Cfg.RateLimit,
		Redis:     a.Redis,
		Origins:   origins,
		StaticDir: a.Cfg.Upload.Dir,
		Modules:   mods,
	}
}

func (a *App) APIOptions() router.Options { return a.routerOptions(a.Modules()) }

func (a *App) AdminOptions() router.Options {
	o := a.routerOptions([]any{handler.NewAdminHandler(a.DB, a.UserSvc, a.Properties, a.Pay)})
	o.StaticDir = ""
	return o
}

// Close 逆序释放
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
