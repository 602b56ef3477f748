package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Cart      CartConfig      `mapstructure:"cart"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// MaxUploadBytes caps the image body on the OCR route
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// OCRConfig selects and tunes the text recognition provider
type OCRConfig struct {
	Provider     string        `mapstructure:"provider"` // "tesseract" or "http"
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Language     string        `mapstructure:"language"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	Workers      int64         `mapstructure:"workers"`
}

// DatabaseConfig holds catalog and cart storage configuration
type DatabaseConfig struct {
	Store    string `mapstructure:"store"` // "memory" or "postgres"
	DSN      string `mapstructure:"dsn"`
	SeedFile string `mapstructure:"seed_file"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory"
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// CartConfig holds cart reconciliation settings
type CartConfig struct {
	MaxSaveRetries int `mapstructure:"max_save_retries"`
}

// MatchingConfig holds product matching settings
type MatchingConfig struct {
	TieBreak string `mapstructure:"tie_break"` // "first" or "shortest"
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/listcart/")

	// LISTCART_OCR_API_KEY -> ocr.api_key
	v.SetEnvPrefix("LISTCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.max_upload_bytes", 10<<20)

	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.base_url", "")
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.poll_interval", "1s")
	v.SetDefault("ocr.max_attempts", 10)
	v.SetDefault("ocr.rate_limit", 10)
	v.SetDefault("ocr.workers", 2)

	v.SetDefault("database.store", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.seed_file", "")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.cleanup_interval", "5m")

	v.SetDefault("cart.max_save_retries", 3)

	v.SetDefault("matching.tie_break", "first")

	v.SetDefault("ratelimit.per_ip", 120)

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.OCR.Provider {
	case "tesseract":
	case "http":
		if config.OCR.BaseURL == "" {
			return fmt.Errorf("OCR base URL is required for the http provider (set LISTCART_OCR_BASE_URL)")
		}
		if config.OCR.APIKey == "" {
			return fmt.Errorf("OCR API key is required for the http provider (set LISTCART_OCR_API_KEY)")
		}
	default:
		return fmt.Errorf("ocr provider must be 'tesseract' or 'http', got: %s", config.OCR.Provider)
	}

	if config.OCR.PollInterval <= 0 {
		return fmt.Errorf("ocr poll interval must be positive, got: %s", config.OCR.PollInterval)
	}
	if config.OCR.MaxAttempts < 1 {
		return fmt.Errorf("ocr max attempts must be at least 1, got: %d", config.OCR.MaxAttempts)
	}

	switch config.Database.Store {
	case "memory":
	case "postgres":
		if config.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for the postgres store (set LISTCART_DATABASE_DSN)")
		}
	default:
		return fmt.Errorf("database store must be 'memory' or 'postgres', got: %s", config.Database.Store)
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	if config.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("cache cleanup interval must be positive, got: %s", config.Cache.CleanupInterval)
	}

	if config.Cart.MaxSaveRetries < 0 {
		return fmt.Errorf("cart max save retries must not be negative, got: %d", config.Cart.MaxSaveRetries)
	}

	if config.Matching.TieBreak != "first" && config.Matching.TieBreak != "shortest" {
		return fmt.Errorf("matching tie break must be 'first' or 'shortest', got: %s", config.Matching.TieBreak)
	}

	return nil
}
