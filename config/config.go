package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the deepsearch system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Research  ResearchConfig  `mapstructure:"research"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type    string              `mapstructure:"type"` // openai, anthropic, local, etc.
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Timeout time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name        string  `mapstructure:"name"`
	APIName     string  `mapstructure:"api_name"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// LLMRoutingConfig defines which model to use for each research phase
type LLMRoutingConfig struct {
	Planning      string `mapstructure:"planning"`      // query planning
	Evaluation    string `mapstructure:"evaluation"`    // continue/answer decision
	Summarization string `mapstructure:"summarization"` // per-source condensation
	Answering     string `mapstructure:"answering"`     // final synthesis
	Fallback      string `mapstructure:"fallback"`
}

// ModelFor resolves the configured model for a phase, falling back when unset.
func (r LLMRoutingConfig) ModelFor(phase string) string {
	var m string
	switch phase {
	case "planning":
		m = r.Planning
	case "evaluation":
		m = r.Evaluation
	case "summarization":
		m = r.Summarization
	case "answering":
		m = r.Answering
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// SearchConfig contains web search provider settings
type SearchConfig struct {
	Provider         string `mapstructure:"provider"` // serper, brave
	SerperAPIKey     string `mapstructure:"serper_api_key"`
	BraveAPIKey      string `mapstructure:"brave_api_key"`
	ResultsPerQuery  int    `mapstructure:"results_per_query"`
	MaxSourcesPerHop int    `mapstructure:"max_sources_per_hop"`
}

// APIKey returns the credential matching the configured search provider.
func (s SearchConfig) APIKey() string {
	switch s.Provider {
	case "brave":
		return s.BraveAPIKey
	default:
		return s.SerperAPIKey
	}
}

// FetchConfig contains page extraction settings
type FetchConfig struct {
	Fetcher  string        `mapstructure:"fetcher"` // readability, chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// ResearchConfig tunes the research loop
type ResearchConfig struct {
	MaxSteps   int `mapstructure:"max_steps"`
	MinQueries int `mapstructure:"min_queries"`
	MaxQueries int `mapstructure:"max_queries"`
}

// RateLimitConfig bounds aggregate LLM call volume across all requests
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

func (r RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be > 0 when enabled")
	}
	if r.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be > 0 when enabled")
	}
	return nil
}

// CacheConfig contains summarization cache settings
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// StorageConfig groups backing stores
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// PostgresConfig contains Postgres connection settings for the chat store
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection URL from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

func setDefaults() {
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.results_per_query", 5)
	viper.SetDefault("search.max_sources_per_hop", 8)
	viper.SetDefault("fetch.fetcher", "readability")
	viper.SetDefault("fetch.timeout", "15s")
	viper.SetDefault("fetch.max_chars", 20000)
	viper.SetDefault("research.max_steps", 10)
	viper.SetDefault("research.min_queries", 3)
	viper.SetDefault("research.max_queries", 5)
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.max_requests", 60)
	viper.SetDefault("rate_limit.window", "1m")
	viper.SetDefault("rate_limit.key_prefix", "rate_limit")
	viper.SetDefault("rate_limit.max_retries", 3)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttl", "6h")
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.timeout", "5s")
}

// LoadConfig loads config from file, with DEEPSEARCH_* env overrides
func LoadConfig(path string) (*Config, error) {
	setDefaults()

	if path == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("json")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DEEPSEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional: defaults plus env cover a dev run
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
