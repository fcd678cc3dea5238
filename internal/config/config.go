// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.knowbase/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive values (database password, API keys) are masked in String()
// and MarshalJSON(). Validation runs fail-fast at load time with
// sentinel errors checkable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Embedding provider identifiers used in Config.EmbeddingProvider.
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

// DocumentPage names one documentation page to sync, with the tenant
// its chunks belong to.
type DocumentPage struct {
	PageID   string `mapstructure:"page_id" json:"page_id"`
	TenantID string `mapstructure:"tenant_id" json:"tenant_id"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON(); update it
// when adding new secrets.
type Config struct {
	// Embedding service configuration
	EmbeddingProvider  string  `mapstructure:"embedding_provider" json:"embedding_provider"` // "http" (default) or "openai"
	EmbeddingURL       string  `mapstructure:"embedding_url" json:"embedding_url"`
	EmbeddingDimension int     `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	EmbeddingTimeout   int     `mapstructure:"embedding_timeout_seconds" json:"embedding_timeout_seconds"`
	EmbeddingRPS       float64 `mapstructure:"embedding_rps" json:"embedding_rps"` // 0 disables rate limiting
	OpenAIAPIKey       string  `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON

	// Chunking configuration
	ChunkSize        int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap     int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MinContentLength int `mapstructure:"min_content_length" json:"min_content_length"`
	MaxContentLength int `mapstructure:"max_content_length" json:"max_content_length"`

	// Retrieval configuration
	RetrievalTopK  int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold" json:"score_threshold"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
	StoreTimeout     int    `mapstructure:"store_timeout_seconds" json:"store_timeout_seconds"`

	// Sync configuration
	SyncInterval  int            `mapstructure:"sync_interval_minutes" json:"sync_interval_minutes"`
	DefaultTenant string         `mapstructure:"default_tenant" json:"default_tenant"`
	DocumentPages []DocumentPage `mapstructure:"document_pages" json:"document_pages"`
}

// Load reads configuration from file and environment, applies defaults,
// and validates. DATABASE_URL, when set, overrides the individual
// postgres_* settings.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(home, ".knowbase"))
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Embedding defaults
	v.SetDefault("embedding_provider", ProviderHTTP)
	v.SetDefault("embedding_url", "http://localhost:8000")
	v.SetDefault("embedding_dimension", 768)
	v.SetDefault("embedding_timeout_seconds", 30)
	v.SetDefault("embedding_rps", 0)

	// Chunking defaults
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("min_content_length", 10)
	v.SetDefault("max_content_length", 12000)

	// Retrieval defaults
	v.SetDefault("retrieval_top_k", 5)
	v.SetDefault("score_threshold", 0.7)

	// PostgreSQL defaults (local development instance)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "knowbase")
	v.SetDefault("postgres_password", "knowbase_dev_password")
	v.SetDefault("postgres_db_name", "knowbase")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("store_timeout_seconds", 10)

	// Sync defaults
	v.SetDefault("sync_interval_minutes", 60)
	v.SetDefault("default_tenant", "default")
}

// bindEnvVariables binds environment overrides explicitly. Secrets come
// only from the environment, never from the config file in production.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("embedding_provider", "KNOWBASE_EMBEDDING_PROVIDER")
	mustBind("embedding_url", "KNOWBASE_EMBEDDING_URL")
	mustBind("embedding_dimension", "KNOWBASE_EMBEDDING_DIMENSION")
	mustBind("default_tenant", "KNOWBASE_DEFAULT_TENANT")
	mustBind("sync_interval_minutes", "KNOWBASE_SYNC_INTERVAL_MINUTES")

	// NOTE: DATABASE_URL is handled separately in parseDatabaseURL
	// because it expands into several postgres_* fields.
}

// EmbedTimeout returns the embedding call timeout as a duration.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbeddingTimeout) * time.Second
}

// StoreQueryTimeout returns the store operation timeout as a duration.
func (c *Config) StoreQueryTimeout() time.Duration {
	return time.Duration(c.StoreTimeout) * time.Second
}

// SyncIntervalDuration returns the sync schedule interval as a duration.
func (c *Config) SyncIntervalDuration() time.Duration {
	return time.Duration(c.SyncInterval) * time.Minute
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 bytes or
// fewer are fully masked; longer ones keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
