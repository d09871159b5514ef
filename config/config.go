package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Cache     CacheConfig
	Matching  MatchingConfig
	Verify    VerifyConfig
	Retailers RetailersConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig holds product store configuration
type StoreConfig struct {
	Type        string `mapstructure:"type"` // "memory" or "postgres"
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MatchingConfig holds normalization and filtering configuration
type MatchingConfig struct {
	FuzzyThreshold     float64  `mapstructure:"fuzzy_threshold"`
	CandidateLimit     int      `mapstructure:"candidate_limit"`
	SupportedCountries []string `mapstructure:"supported_countries"`
	DefaultCurrency    string   `mapstructure:"default_currency"`
}

// VerifyConfig holds live verification configuration
type VerifyConfig struct {
	TopN           int           `mapstructure:"top_n"`
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	DeadlineBuffer time.Duration `mapstructure:"deadline_buffer"`
	RecentWindow   time.Duration `mapstructure:"recent_window"`
}

// RetailersConfig holds per-retailer adapter configuration
type RetailersConfig struct {
	RainforestAPIKey string `mapstructure:"rainforest_api_key"`
	AmazonDomain     string `mapstructure:"amazon_domain"`
	BootsBaseURL     string `mapstructure:"boots_base_url"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/skinmatch/")

	// Environment variable settings
	v.SetEnvPrefix("SKINMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Store defaults
	v.SetDefault("store.type", "memory")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "15m")

	// Matching defaults
	v.SetDefault("matching.fuzzy_threshold", 88.0)
	v.SetDefault("matching.candidate_limit", 200)
	v.SetDefault("matching.supported_countries", []string{"GB"})
	v.SetDefault("matching.default_currency", "GBP")

	// Verification defaults
	v.SetDefault("verify.top_n", 20)
	v.SetDefault("verify.adapter_timeout", "8s")
	v.SetDefault("verify.deadline_buffer", "5s")
	v.SetDefault("verify.recent_window", "24h")

	// Retailer defaults
	v.SetDefault("retailers.amazon_domain", "amazon.co.uk")
	v.SetDefault("retailers.boots_base_url", "https://www.boots.com")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Store.Type != "memory" && config.Store.Type != "postgres" {
		return fmt.Errorf("store type must be 'memory' or 'postgres', got: %s", config.Store.Type)
	}
	if config.Store.Type == "postgres" && config.Store.PostgresDSN == "" {
		return fmt.Errorf("postgres DSN is required when store type is 'postgres'")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}
	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Matching.FuzzyThreshold <= 0 || config.Matching.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold must be in (0, 100], got: %v", config.Matching.FuzzyThreshold)
	}
	if len(config.Matching.SupportedCountries) == 0 {
		return fmt.Errorf("at least one supported country is required")
	}

	return nil
}
