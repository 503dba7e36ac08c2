package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/foliodesk/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Cart     CartConfig     `mapstructure:"cart"`
	Access   AccessConfig   `mapstructure:"access"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
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

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// UpstreamConfig 上游平台 API 配置
type UpstreamConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Timeout 上游请求超时
func (c UpstreamConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 12 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// PaymentConfig 支付网关挂件配置
type PaymentConfig struct {
	KeyID      string `mapstructure:"key_id"`
	KeySecret  string `mapstructure:"key_secret"`
	BrandName  string `mapstructure:"brand_name"`
	ThemeColor string `mapstructure:"theme_color"`
	Currency   string `mapstructure:"currency"`
}

// CartConfig 本地购物车存储配置
type CartConfig struct {
	Dir            string `mapstructure:"dir"`
	BackupMaxBytes int64  `mapstructure:"backup_max_bytes"`
}

// AccessConfig 订阅访问解析配置
type AccessConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// CacheTTL 访问缓存有效期
func (c AccessConfig) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// CheckoutConfig 结账配置
type CheckoutConfig struct {
	VerifyMaxAttempts      int `mapstructure:"verify_max_attempts"`
	VerifyInitialBackoffMS int `mapstructure:"verify_initial_backoff_ms"`
}

// VerifyInitialBackoff 委托核验首次重试间隔
func (c CheckoutConfig) VerifyInitialBackoff() time.Duration {
	if c.VerifyInitialBackoffMS <= 0 {
		return time.Second
	}
	return time.Duration(c.VerifyInitialBackoffMS) * time.Millisecond
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CheckoutRateLimit CheckoutRateLimitConfig `mapstructure:"checkout_rate_limit"`
}

// CheckoutRateLimitConfig 结账限流配置
type CheckoutRateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "fd")
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Device-ID",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("upstream.base_url", "http://127.0.0.1:9000/api/v1")
	viper.SetDefault("upstream.timeout_ms", 12000)
	viper.SetDefault("payment.key_id", "")
	viper.SetDefault("payment.key_secret", "")
	viper.SetDefault("payment.brand_name", "FolioDesk")
	viper.SetDefault("payment.theme_color", "#1a73e8")
	viper.SetDefault("payment.currency", "INR")
	viper.SetDefault("cart.dir", "./data/carts")
	viper.SetDefault("cart.backup_max_bytes", 65536)
	viper.SetDefault("access.cache_ttl_seconds", 60)
	viper.SetDefault("checkout.verify_max_attempts", 5)
	viper.SetDefault("checkout.verify_initial_backoff_ms", 1000)
	viper.SetDefault("security.checkout_rate_limit.window_seconds", 60)
	viper.SetDefault("security.checkout_rate_limit.max_requests", 10)

	// 环境变量支持（server.port -> SERVER_PORT）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("config parse failed: %w", err))
	}

	return &cfg
}
