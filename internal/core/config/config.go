package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
	// 前端地址：CORS 白名单 + 支付 return_url
	FrontendURL string
	// 本服务对外地址：邮件里的验证链接
	PublicURL string
}

type Rotate struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level  string
	JSON   bool
	Rotate Rotate
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
	CookieName        string
	CookieSecure      bool
}

type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
	SlowQueryMS        int
	ConnectRetries     int
}

type MQ struct {
	Enabled  bool
	URL      string
	Exchange string
	Queue    string
}

type Chapa struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Currency      string
	CallbackURL   string
	ReturnURL     string
	TimeoutSec    int
}

type Mail struct {
	Provider    string // mailjet | log
	BaseURL     string
	Username    string
	Password    string
	SenderEmail string
	SenderName  string
}

type Upload struct {
	Dir           string
	PublicBaseURL string
}

type RedisBucket struct {
	Enabled           bool
	Capacity          int
	RefillTokens      int
	RefillIntervalSec int
	TTLSec            int
	Prefix            string
	KeyStrategy       string
}

type Limit struct {
	RPS   float64
	Burst int
}

type RateLimit struct {
	RPS         float64
	Burst       int
	PerIP       Limit `mapstructure:"perip"`
	Redis       RedisBucket
	Concurrency int64
}

type Auth struct {
	EmailVerificationKey    string
	EmailVerificationTTLMin int
	ResetTokenTTLMin        int
}

type Plan struct {
	Price string
	Days  int
}

type Subscription struct {
	Plans map[string]Plan
}

type Config struct {
	App          App
	Log          Log
	JWT          JWT
	DB           DB
	Redis        Redis `mapstructure:"redis"`
	MQ           MQ    `mapstructure:"mq"`
	Chapa        Chapa
	Mail         Mail
	Upload       Upload
	RateLimit    RateLimit `mapstructure:"ratelimit"`
	Auth         Auth
	Subscription Subscription
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ethio-home")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 15)
	v.SetDefault("app.http.writeTimeoutSec", 30)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("app.frontendURL", "http://localhost:5173")
	v.SetDefault("app.publicURL", "http://localhost:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.rotate.filename", "logs/app.log")
	v.SetDefault("log.rotate.maxSizeMB", 100)
	v.SetDefault("log.rotate.maxBackups", 7)
	v.SetDefault("log.rotate.maxAgeDays", 30)

	v.SetDefault("jwt.issuer", "ethio-home")
	v.SetDefault("jwt.accessTokenTTLMin", 90*24*60)
	v.SetDefault("jwt.cookieName", "jwt")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxOpenConns", 50)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.logLevel", "warn")
	v.SetDefault("db.slowQueryMS", 200)
	v.SetDefault("db.connectRetries", 5)

	v.SetDefault("mq.exchange", "ethio-home.events")
	v.SetDefault("mq.queue", "ethio-home.notifications")

	v.SetDefault("chapa.baseURL", "https://api.chapa.co")
	v.SetDefault("chapa.currency", "ETB")
	v.SetDefault("chapa.timeoutSec", 15)

	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.baseURL", "https://api.mailjet.com")
	v.SetDefault("mail.senderName", "Ethio-Home")

	v.SetDefault("upload.dir", "public/img")

	v.SetDefault("ratelimit.rps", 200)
	v.SetDefault("ratelimit.burst", 400)
	v.SetDefault("ratelimit.perip.rps", 10)
	v.SetDefault("ratelimit.perip.burst", 100)
	v.SetDefault("ratelimit.concurrency", 300)
	v.SetDefault("ratelimit.redis.capacity", 100)
	v.SetDefault("ratelimit.redis.refillTokens", 100)
	v.SetDefault("ratelimit.redis.refillIntervalSec", 3600)
	v.SetDefault("ratelimit.redis.ttlSec", 7200)
	v.SetDefault("ratelimit.redis.prefix", "rl")
	v.SetDefault("ratelimit.redis.keyStrategy", "ip")

	v.SetDefault("auth.emailVerificationTTLMin", 24*60)
	v.SetDefault("auth.resetTokenTTLMin", 60)
}

// Load 读取 yaml + APP_ 前缀环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func MustLoad(path string) *Config {
	c, err := Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	switch len(c.Auth.EmailVerificationKey) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("auth.emailVerificationKey must be 16, 24 or 32 bytes")
	}
	// 套餐名会进 tx_ref（以 "-" 分段）
	for name, p := range c.Subscription.Plans {
		if name == "" || strings.Contains(name, "-") {
			return fmt.Errorf("subscription.plans: invalid plan name %q (must not contain '-')", name)
		}
		if p.Days <= 0 {
			return fmt.Errorf("subscription.plans.%s.days must be positive", name)
		}
	}
	return nil
}
