package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3006", cfg.Port)
	assert.Equal(t, ":3006", cfg.Addr())
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 10*time.Second, cfg.RedisDialTimeout)
	assert.Equal(t, 3*time.Second, cfg.RedisCommandTimeout)
	assert.Equal(t, 60, cfg.RateLimitWindowSeconds)
	assert.Equal(t, 30, cfg.RateLimitMaxRequests)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.False(t, cfg.S3Configured())
	assert.Equal(t, []string{"*"}, cfg.Origins())
}

// JWT secretが無くてもLoadは失敗しない（署名時にエラー）
func TestLoad_MissingSecretsIsNotFatal(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.JWTRefreshSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":8080")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("REDIS_COMMAND_TIMEOUT", "750ms")
	t.Setenv("MINIO_ENDPOINT", " localhost:9000 ")
	t.Setenv("MINIO_BUCKET_NAME", "bucket")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio123")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Equal(t, "access", cfg.JWTSecret)
	assert.Equal(t, "refresh", cfg.JWTRefreshSecret)
	assert.Equal(t, 750*time.Millisecond, cfg.RedisCommandTimeout)
	assert.Equal(t, "localhost:9000", cfg.S3Endpoint)
	assert.True(t, cfg.S3UseSSL)
	assert.True(t, cfg.S3Configured())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port not number", "PORT", "abc"},
		{"unknown driver", "DB_DRIVER", "mysql"},
		{"bcrypt too low", "BCRYPT_COST", "2"},
		{"window zero", "RATE_LIMIT_WINDOW_SECONDS", "0"},
		{"proxy not cidr", "TRUSTED_PROXIES", "10.0.0.1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{
		PostgresHost:     "db",
		PostgresPort:     5433,
		PostgresUser:     "u",
		PostgresPassword: "p",
		PostgresDB:       "d",
		PostgresSSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.PostgresDSN())
}

func TestProxyRanges(t *testing.T) {
	ranges, err := Config{}.ProxyRanges()
	require.NoError(t, err)
	assert.Empty(t, ranges)

	ranges, err = Config{TrustedProxies: "10.0.0.0/8, 192.0.2.0/24 ,"}.ProxyRanges()
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, "10.0.0.0/8", ranges[0].String())
	assert.Equal(t, "192.0.2.0/24", ranges[1].String())
}
