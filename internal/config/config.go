// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PublicBaseURL  string        `yaml:"public_base_url"` // used to build share links
	VerifyLimit    int           `yaml:"verify_limit"`    // verify/redeem calls per address per window
	ShareLimit     int           `yaml:"share_limit"`     // share downloads per address per window
	LimitWindow    time.Duration `yaml:"limit_window"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	SigningSecret string        `yaml:"signing_secret"` // HMAC key for payloads and share tokens
	PhoneKey      string        `yaml:"phone_key"`      // AES key for holder phone numbers at rest
	JWTSecret     string        `yaml:"jwt_secret"`     // staff bearer tokens
	JWTTTL        time.Duration `yaml:"jwt_ttl"`
}

type BatchConfig struct {
	ChunkSize  int           `yaml:"chunk_size"`
	Workers    int           `yaml:"workers"`
	ChunkPause time.Duration `yaml:"chunk_pause"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type RenderConfig struct {
	ShareTTL time.Duration `yaml:"share_ttl"`
	Currency string        `yaml:"currency"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Security SecurityConfig `yaml:"security"`
	Batch    BatchConfig    `yaml:"batch"`
	Render   RenderConfig   `yaml:"render"`

	Runtime RuntimeConfig `yaml:"-"`
}

// MaxChunkSize bounds memory per chunk and any downstream per-call limits.
const MaxChunkSize = 1000

// LoadConfig reads the YAML file at path, applies defaults and validates required fields.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file read.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.VerifyLimit <= 0 {
		cfg.HTTP.VerifyLimit = 120
	}
	if cfg.HTTP.ShareLimit <= 0 {
		cfg.HTTP.ShareLimit = 30
	}
	if cfg.HTTP.LimitWindow <= 0 {
		cfg.HTTP.LimitWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Security.JWTTTL <= 0 {
		cfg.Security.JWTTTL = 8 * time.Hour
	}
	if cfg.Batch.ChunkSize <= 0 || cfg.Batch.ChunkSize > MaxChunkSize {
		cfg.Batch.ChunkSize = MaxChunkSize
	}
	if cfg.Batch.Workers <= 0 {
		cfg.Batch.Workers = 1
	}
	if cfg.Batch.LockTTL <= 0 {
		cfg.Batch.LockTTL = 15 * time.Minute
	}
	if cfg.Render.ShareTTL <= 0 {
		cfg.Render.ShareTTL = 7 * 24 * time.Hour
	}
	if cfg.Render.Currency == "" {
		cfg.Render.Currency = "KRW"
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if len(cfg.Security.SigningSecret) < 32 {
		return nil, errors.New("security.signing_secret must be at least 32 bytes")
	}
	if cfg.Security.JWTSecret == "" {
		return nil, errors.New("security.jwt_secret is required")
	}
	if n := len(cfg.Security.PhoneKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return nil, errors.New("security.phone_key must be 16, 24, or 32 bytes")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
