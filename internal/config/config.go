package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL" env-required:"true" env-description:"PostgreSQL connection URL"`

	// Identity backend
	IdentityURL     string        `env:"IDENTITY_URL" env-required:"true" env-description:"Base URL of the identity backend"`
	IdentityAnonKey string        `env:"IDENTITY_ANON_KEY" env-required:"true" env-description:"Public API key sent as the apikey header"`
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT" env-default:"10s"`

	// Session
	SessionMaxAge int `env:"SESSION_MAX_AGE" env-default:"604800"`

	// View cache
	RedisAddr     string        `env:"REDIS_ADDR" env-description:"Redis address; empty disables the view cache"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	ViewCacheTTL  time.Duration `env:"VIEW_CACHE_TTL" env-default:"60s"`

	// Rate Limit
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" env-default:"120"`
	RateLimitAuth    int `env:"RATE_LIMIT_AUTH" env-default:"10"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" env-default:"8080"`
	BaseURL    string `env:"BASE_URL" env-required:"true" env-description:"Public origin used for cookies and email links"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定または空の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// 空文字で設定された必須変数も未設定として扱う
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"IDENTITY_URL", cfg.IdentityURL},
		{"IDENTITY_ANON_KEY", cfg.IdentityAnonKey},
		{"BASE_URL", cfg.BaseURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.IdentityURL = strings.TrimRight(cfg.IdentityURL, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// CacheEnabled はRedisビューキャッシュが設定されているかを返す。
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// CallbackURL はサインアップ確認メールに埋め込むコールバックURLを返す。
func (c *Config) CallbackURL() string {
	return c.BaseURL + "/auth/callback"
}

// Usage は環境変数の一覧と説明を返す。
func Usage() string {
	var b strings.Builder
	cleanenv.FUsage(&b, &Config{}, nil)()
	return b.String()
}
