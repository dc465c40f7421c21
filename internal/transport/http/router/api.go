package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ethio-home/internal/core/config"
	"ethio-home/internal/core/metrics"
	"ethio-home/internal/core/server"
	"ethio-home/internal/transport/http/ez"
	mdw "ethio-home/internal/transport/http/middleware"
)

type Options struct {
	Log     *zap.Logger
	Guard   mdw.Guard
	Limits  config.RateLimit
	Redis   *redis.Client // 为 nil 时不启用分布式限流
	Origins []string
	// StaticDir 对外暴露 /img（上传目录）
	StaticDir string
	Timeout   time.Duration
	MaxBody   int64
	Mode      string
	Modules   []any
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 15 * time.Second
	}
	return o.Timeout
}

func (o Options) maxBody() int64 {
	if o.MaxBody <= 0 {
		return 40 << 20 // 6 张 5MB 图片 + 表单
	}
	return o.MaxBody
}

func (o Options) concurrency() int64 {
	if o.Limits.Concurrency <= 0 {
		return 300
	}
	return o.Limits.Concurrency
}

// 网关回调可能较慢，不受统一超时约束
var noTimeout = []string{"/api/v1/selling/webhook", "/api/v1/subscription/webhook"}

func (o Options) ingress(engine string) []gin.HandlerFunc {
	hs := []gin.HandlerFunc{mdw.RequestID()}
	if o.Limits.RPS > 0 {
		hs = append(hs, mdw.RateLimit(rate.Limit(o.Limits.RPS), o.Limits.Burst))
	}
	if o.Limits.PerIP.RPS > 0 {
		hs = append(hs, mdw.RateLimitPerIP(rate.Limit(o.Limits.PerIP.RPS), o.Limits.PerIP.Burst, 10*time.Minute))
	}
	if o.Redis != nil {
		hs = append(hs, mdw.RedisTokenBucket(o.Limits.Redis, o.Redis, o.Log))
	}
	return append(hs,
		mdw.Metrics(engine),
		mdw.ConcurrencyLimit(o.concurrency(), time.Second),
		mdw.MaxBodyBytes(o.maxBody()),
		mdw.Timeout(o.timeout(), noTimeout...),
	)
}

func health(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func NewAPIEngine(o Options) *gin.Engine {
	r := server.NewRouter(o.Log, server.Options{Name: "api", Mode: o.Mode, Origins: o.Origins})
	r.Use(o.ingress("api")...)
	r.Use(mdw.AccessLog(o.Log))

	// 健康检查 + 指标
	health(r)
	if o.StaticDir != "" {
		r.Static("/img", o.StaticDir)
	}

	// 前缀
	api := r.Group("/api/v1")
	priv := api.Group("")
	priv.Use(o.Guard.Protect())

	var reg Registry
	if !reg.Register(o.Modules...) {
		o.Log.Warn("some modules mount neither api nor admin routes")
	}
	reg.MountAPI(api, priv)

	r.NoRoute(func(c *gin.Context) {
		ez.Fail(c, ez.NotFound("Can't find "+c.Request.URL.Path+" on this server!"))
	})
	return r
}
