package config

import (
	"fmt"
	"strings"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Security   SecurityConfig   `mapstructure:"security"`
	Commission CommissionConfig `mapstructure:"commission"`
	Payout     PayoutConfig     `mapstructure:"payout"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Paypal     PaypalConfig     `mapstructure:"paypal"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SecurityConfig 鉴权与回调验签配置
type SecurityConfig struct {
	AdminToken    string          `mapstructure:"admin_token"`
	WebhookSecret string          `mapstructure:"webhook_secret"`
	PayoutLimit   RateLimitConfig `mapstructure:"payout_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// CommissionConfig 佣金分成配置, 百分比均以整数表示
type CommissionConfig struct {
	DirectRatePercent       int64 `mapstructure:"direct_rate_percent"`
	Level1RatePercent       int64 `mapstructure:"level1_rate_percent"`
	Level2RatePercent       int64 `mapstructure:"level2_rate_percent"`
	PoolRatePercent         int64 `mapstructure:"pool_rate_percent"`
	SelfDiscountPercent     int64 `mapstructure:"self_discount_percent"`
	SelfDiscountIntervalDay int   `mapstructure:"self_discount_interval_days"`
	PhysicalHoldDays        int   `mapstructure:"physical_hold_days"`
	DigitalHoldDays         int   `mapstructure:"digital_hold_days"`
}

// PayoutConfig 打款配置
type PayoutConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	MinAmount             string `mapstructure:"min_amount"`
	Currency              string `mapstructure:"currency"`
	ReconcileDelaySeconds int    `mapstructure:"reconcile_delay_seconds"`
}

// PoolConfig 奖池结算配置
type PoolConfig struct {
	SettleIntervalSeconds int `mapstructure:"settle_interval_seconds"`
}

// PaypalConfig PayPal Payouts 通道配置
type PaypalConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
	EmailSubject string `mapstructure:"email_subject"`
}

// C 全局配置实例
var C *Config

// Load 加载配置, 环境变量覆盖默认值
func Load() *Config {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config unmarshal failed: %v", err))
	}
	C = cfg
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:commission.db?cache=shared")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.conn_max_idle_time", 600)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "cl")

	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)

	v.SetDefault("cors.allowed_origins", []string{})

	v.SetDefault("security.admin_token", "")
	v.SetDefault("security.webhook_secret", "")
	v.SetDefault("security.payout_limit.window_seconds", 60)
	v.SetDefault("security.payout_limit.max_attempts", 5)

	v.SetDefault("commission.direct_rate_percent", 42)
	v.SetDefault("commission.level1_rate_percent", 2)
	v.SetDefault("commission.level2_rate_percent", 1)
	v.SetDefault("commission.pool_rate_percent", 8)
	v.SetDefault("commission.self_discount_percent", 10)
	v.SetDefault("commission.self_discount_interval_days", 30)
	v.SetDefault("commission.physical_hold_days", 30)
	v.SetDefault("commission.digital_hold_days", 7)

	v.SetDefault("payout.enabled", true)
	v.SetDefault("payout.min_amount", "10")
	v.SetDefault("payout.currency", "USD")
	v.SetDefault("payout.reconcile_delay_seconds", 300)

	v.SetDefault("pool.settle_interval_seconds", 600)

	v.SetDefault("paypal.client_id", "")
	v.SetDefault("paypal.client_secret", "")
	v.SetDefault("paypal.base_url", "https://api-m.sandbox.paypal.com")
	v.SetDefault("paypal.email_subject", "You have a payout")
}
