// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

// Cache modes.
const (
	CacheModeFile   = "file"
	CacheModeSQLite = "sqlite"
)

var validate = validator.New()

// Config holds the application configuration loaded from environment variables.
type Config struct {
	CorpID         string `validate:"required"`
	AgentID        string
	AgentSecret    string
	ContactsSecret string
	CorpSecret     string

	Token          string
	EncodingAESKey string `validate:"omitempty,len=43"`

	CacheMode     string `validate:"oneof=file sqlite"`
	CacheDir      string `validate:"required_if=CacheMode file"`
	DBPath        string `validate:"required_if=CacheMode sqlite"`
	SecretKeyHex  string `validate:"omitempty,len=64,hexadecimal"`
	DedupeRefresh bool

	APIBaseURL  string        `validate:"required,url"`
	HTTPTimeout time.Duration `validate:"gt=0"`
	ListenAddr  string        `validate:"required"`
	LogLevel    string        `validate:"oneof=debug info warn error"`
}

// Secrets returns the configured secret for every scope that has one.
func (c *Config) Secrets() map[model.SecretScope]string {
	secrets := make(map[model.SecretScope]string, 3)
	for scope, secret := range map[model.SecretScope]string{
		model.ScopeAgent:    c.AgentSecret,
		model.ScopeContacts: c.ContactsSecret,
		model.ScopeCorp:     c.CorpSecret,
	} {
		if secret != "" {
			secrets[scope] = secret
		}
	}
	return secrets
}

// HasCallback reports whether the callback token and AES key are both set.
func (c *Config) HasCallback() bool {
	return c.Token != "" && c.EncodingAESKey != ""
}

// SecretKey decodes the sqlite payload key. It returns nil when no key is set.
func (c *Config) SecretKey() []byte {
	if c.SecretKeyHex == "" {
		return nil
	}
	key, _ := hex.DecodeString(c.SecretKeyHex)
	return key
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory (or the file named by WECOMKIT_ENV_FILE)
// is loaded first; variables already set in the environment take precedence.
// WECOMKIT_CORP_ID is required. The sqlite cache mode also requires
// WECOMKIT_SECRET_KEY.
func Load() (*Config, error) {
	envFile := ".env"
	if v, ok := os.LookupEnv("WECOMKIT_ENV_FILE"); ok {
		envFile = v
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		CorpID:         os.Getenv("WECOMKIT_CORP_ID"),
		AgentID:        os.Getenv("WECOMKIT_AGENT_ID"),
		AgentSecret:    os.Getenv("WECOMKIT_AGENT_SECRET"),
		ContactsSecret: os.Getenv("WECOMKIT_CONTACTS_SECRET"),
		CorpSecret:     os.Getenv("WECOMKIT_CORP_SECRET"),
		Token:          os.Getenv("WECOMKIT_TOKEN"),
		EncodingAESKey: os.Getenv("WECOMKIT_ENCODING_AES_KEY"),
		CacheMode:      envOr("WECOMKIT_CACHE_MODE", CacheModeFile),
		CacheDir:       envOr("WECOMKIT_CACHE_DIR", ".wecomkit"),
		DBPath:         envOr("WECOMKIT_DB_PATH", "wecomkit.db"),
		SecretKeyHex:   os.Getenv("WECOMKIT_SECRET_KEY"),
		APIBaseURL:     envOr("WECOMKIT_API_BASE_URL", "https://qyapi.weixin.qq.com"),
		ListenAddr:     envOr("WECOMKIT_LISTEN_ADDR", "127.0.0.1:8080"),
		LogLevel:       envOr("WECOMKIT_LOG_LEVEL", "info"),
		HTTPTimeout:    10 * time.Second,
	}

	if v, ok := os.LookupEnv("WECOMKIT_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("WECOMKIT_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.HTTPTimeout = parsed
	}

	if v, ok := os.LookupEnv("WECOMKIT_DEDUPE_REFRESH"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("WECOMKIT_DEDUPE_REFRESH has invalid boolean %q: %w", v, err)
		}
		cfg.DedupeRefresh = parsed
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.CacheMode == CacheModeSQLite && cfg.SecretKeyHex == "" {
		return nil, errors.New("WECOMKIT_SECRET_KEY is required when WECOMKIT_CACHE_MODE is sqlite")
	}
	if _, err := hex.DecodeString(cfg.SecretKeyHex); err != nil {
		return nil, fmt.Errorf("WECOMKIT_SECRET_KEY is not valid hex: %w", err)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
