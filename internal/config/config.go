package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configはアプリ全体の設定
type Config struct {
	Port      string `mapstructure:"PORT"`     // サーバーポート（3006）
	GoEnv     string `mapstructure:"APP_ENV"`  // development/production
	DBDriver  string `mapstructure:"DB_DRIVER"` // postgres/memory
	BodyLimit string `mapstructure:"BODY_LIMIT"`

	DatabaseURL      string `mapstructure:"DATABASE_URL"` // あれば最優先
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string `mapstructure:"POSTGRES_DB"`
	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     int    `mapstructure:"POSTGRES_PORT"`
	PostgresSSLMode  string `mapstructure:"POSTGRES_SSLMODE"`

	JWTSecret        string `mapstructure:"JWT_SECRET"`         // accesstoken署名
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"` // refreshtoken署名
	BcryptCost       int    `mapstructure:"BCRYPT_COST"`

	RedisAddr           string        `mapstructure:"REDIS_ADDR"` // 空ならキャッシュ無効
	RedisPassword       string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int           `mapstructure:"REDIS_DB"`
	RedisDialTimeout    time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	RedisCommandTimeout time.Duration `mapstructure:"REDIS_COMMAND_TIMEOUT"`
	RedisProbeInterval  time.Duration `mapstructure:"REDIS_PROBE_INTERVAL"`

	S3Endpoint  string `mapstructure:"MINIO_ENDPOINT"`
	S3UseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
	S3Region    string `mapstructure:"MINIO_REGION"`
	S3Bucket    string `mapstructure:"MINIO_BUCKET_NAME"`
	S3AccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"MINIO_SECRET_KEY"`

	APIUserKey        string `mapstructure:"USER_KEY"`   // x-api-key の利用者キー
	APISecretKey      string `mapstructure:"SECRET_KEY"` // x-api-key の署名キー
	DataEncryptionKey string `mapstructure:"DATA_ENCRYPTION_KEY"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"` // CIDR。空ならX-Forwarded-Forを見ない

	RateLimitWindowSeconds   int `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`
	RateLimitMaxRequests     int `mapstructure:"RATE_LIMIT_MAX_REQUESTS"`
	RateLimitBlockSeconds    int `mapstructure:"RATE_LIMIT_BLOCK_SECONDS"`
	AuthRateLimitMaxRequests int `mapstructure:"AUTH_RATE_LIMIT_MAX_REQUESTS"`
}

var errEmptyPort = errors.New("PORT is required")

// Loadは環境変数から設定を読む。.envはmainでgodotenvが環境変数に流し込む。
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3006")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("BODY_LIMIT", "100M")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "app")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("BCRYPT_COST", 10)

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "10s")
	v.SetDefault("REDIS_COMMAND_TIMEOUT", "3s")
	v.SetDefault("REDIS_PROBE_INTERVAL", "5s")

	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MINIO_BUCKET_NAME", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")

	v.SetDefault("USER_KEY", "")
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("DATA_ENCRYPTION_KEY", "")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_BLOCK_SECONDS", 60)
	v.SetDefault("AUTH_RATE_LIMIT_MAX_REQUESTS", 10)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg.Port = strings.TrimPrefix(strings.TrimSpace(cfg.Port), ":")
	cfg.S3Endpoint = strings.TrimSpace(cfg.S3Endpoint)
	cfg.S3Bucket = strings.TrimSpace(cfg.S3Bucket)
	cfg.S3AccessKey = strings.TrimSpace(cfg.S3AccessKey)
	cfg.S3SecretKey = strings.TrimSpace(cfg.S3SecretKey)
	if strings.TrimSpace(cfg.S3Region) == "" {
		cfg.S3Region = "us-east-1"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// 必須チェック
func (c Config) validate() error {
	if c.Port == "" {
		return errEmptyPort
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be number: %w", err)
	}
	switch c.DBDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", c.DBDriver)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if c.RateLimitWindowSeconds <= 0 || c.RateLimitMaxRequests <= 0 || c.RateLimitBlockSeconds <= 0 || c.AuthRateLimitMaxRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_* must be positive")
	}
	if _, err := c.ProxyRanges(); err != nil {
		return err
	}
	return nil
}

// Addrはecho.Startに渡すアドレス
func (c Config) Addr() string {
	return ":" + c.Port
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// PostgresDSNはDATABASE_URLがあればそれを使う
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// S3Configuredは必須4項目が揃っているか
func (c Config) S3Configured() bool {
	return c.S3Endpoint != "" && c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Originsは","区切りのALLOWED_ORIGINSを分解する。"*"なら全許可。
func (c Config) Origins() []string {
	raw := strings.TrimSpace(c.AllowedOrigins)
	if raw == "" || raw == "*" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ProxyRangesは","区切りのTRUSTED_PROXIESをCIDRとして読む
func (c Config) ProxyRanges() ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}
