package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for nlq-engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// DatabaseURL optionally pre-connects to a store on startup.
	// Connection strings can also be supplied per-request via POST /api/connect.
	DatabaseURL string `yaml:"-" env:"DATABASE_URL"`

	Cache     CacheConfig     `yaml:"cache"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Query     QueryConfig     `yaml:"query"`
	DocSearch DocSearchConfig `yaml:"doc_search"`

	// HintRulesPath optionally points at a YAML file extending the built-in
	// synonym rule set for schema hint tagging.
	HintRulesPath string `yaml:"hint_rules_path" env:"HINT_RULES_PATH" env-default:""`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"1000"`
	TTLSeconds int `yaml:"ttl_seconds" env:"CACHE_TTL_SECONDS" env-default:"300"`
}

// TTL returns the configured entry TTL as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// DiscoveryConfig holds schema discovery settings.
type DiscoveryConfig struct {
	// SampleRows is how many rows are sampled per table for value matching.
	SampleRows int `yaml:"sample_rows" env:"DISCOVERY_SAMPLE_ROWS" env-default:"3"`
	// MaxTables caps how many tables a single discovery run will introspect.
	MaxTables int `yaml:"max_tables" env:"DISCOVERY_MAX_TABLES" env-default:"200"`
	// TimeoutSeconds bounds a full discovery run.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"DISCOVERY_TIMEOUT_SECONDS" env-default:"60"`
}

// Timeout returns the discovery timeout as a duration.
func (c *DiscoveryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultPageSize int `yaml:"default_page_size" env:"QUERY_DEFAULT_PAGE_SIZE" env-default:"50"`
	// MaxPageSize caps page_size; larger requests are clamped, not rejected.
	MaxPageSize    int `yaml:"max_page_size" env:"QUERY_MAX_PAGE_SIZE" env-default:"200"`
	TimeoutSeconds int `yaml:"timeout_seconds" env:"QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// Timeout returns the per-branch execution timeout as a duration.
func (c *QueryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DocSearchConfig holds settings for the external document-search collaborator.
type DocSearchConfig struct {
	// Endpoint is the collaborator's base URL. Empty disables document search;
	// document-classified queries then return empty results with a note.
	Endpoint       string `yaml:"endpoint" env:"DOC_SEARCH_ENDPOINT" env-default:""`
	Limit          int    `yaml:"limit" env:"DOC_SEARCH_LIMIT" env-default:"10"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"DOC_SEARCH_TIMEOUT_SECONDS" env-default:"10"`
}

// Timeout returns the document search timeout as a duration.
func (c *DocSearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable
// overrides. A missing config.yaml is not an error; environment variables
// and defaults apply alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive, got %d", c.Cache.TTLSeconds)
	}
	if c.Query.MaxPageSize <= 0 {
		return fmt.Errorf("query.max_page_size must be positive, got %d", c.Query.MaxPageSize)
	}
	if c.Query.DefaultPageSize <= 0 || c.Query.DefaultPageSize > c.Query.MaxPageSize {
		return fmt.Errorf("query.default_page_size must be in [1, %d], got %d",
			c.Query.MaxPageSize, c.Query.DefaultPageSize)
	}
	if c.Discovery.SampleRows < 0 {
		return fmt.Errorf("discovery.sample_rows must not be negative, got %d", c.Discovery.SampleRows)
	}
	return nil
}
