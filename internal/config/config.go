package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/incubator-intake/internal/logging"
	"github.com/eugenenazirov/incubator-intake/internal/storage"
)

const (
	defaultPort              = "8080"
	defaultDBFile            = "db.json"
	defaultRateLimitRPS      = 25.0
	defaultRateLimitBurst    = 50
	defaultMaxBodyBytes      = 1 << 20
	defaultCORSAllowedOrigin = "*"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	Storage              string
	DBFile               string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	EnableMetrics        bool
	CORSAllowedOrigin    string
	MaxBodyBytes         int64
	RateLimitRPS         float64
	RateLimitBurst       int
}

// yamlConfig represents the YAML configuration file structure.
// Pointer fields distinguish "absent" from an explicit zero value.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	Storage              string        `yaml:"storage"`
	DBFile               string        `yaml:"db_file"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	EnableMetrics        *bool         `yaml:"enable_metrics"`
	CORSAllowedOrigin    string        `yaml:"cors_allowed_origin"`
	MaxBodyBytes         *int64        `yaml:"max_body_bytes"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	EnvFile        string
	Port           *string
	Storage        *string
	DBFile         *string
	LogLevel       *string
	EnableMetrics  *bool
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Seed the process environment from a dotenv file; real env vars win
	if overrides != nil && overrides.EnvFile != "" {
		if err := godotenv.Load(overrides.EnvFile); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	// Load from YAML file if specified (overrides env)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		Storage:              storage.KindFile,
		DBFile:               defaultDBFile,
		LogLevel:             logging.DefaultLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		EnableMetrics:        true,
		CORSAllowedOrigin:    defaultCORSAllowedOrigin,
		MaxBodyBytes:         defaultMaxBodyBytes,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.Storage != "" {
		cfg.Storage = yamlCfg.Storage
	}
	if yamlCfg.DBFile != "" {
		cfg.DBFile = yamlCfg.DBFile
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.CORSAllowedOrigin != "" {
		cfg.CORSAllowedOrigin = yamlCfg.CORSAllowedOrigin
	}

	durations := []struct {
		name  string
		raw   string
		value *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.value = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.EnableMetrics != nil {
		cfg.EnableMetrics = *yamlCfg.EnableMetrics
	}
	if yamlCfg.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *yamlCfg.MaxBodyBytes
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if kind := strings.TrimSpace(os.Getenv("STORAGE")); kind != "" {
		cfg.Storage = kind
	}

	if path := strings.TrimSpace(os.Getenv("DB_FILE")); path != "" {
		cfg.DBFile = path
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if origin := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGIN")); origin != "" {
		cfg.CORSAllowedOrigin = origin
	}

	if raw := strings.TrimSpace(os.Getenv("ENABLE_METRICS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse ENABLE_METRICS: %w", err)
		}
		cfg.EnableMetrics = value
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_BODY_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = value
	}

	if raw := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = value
	}

	if raw := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = value
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.Storage != nil && *overrides.Storage != "" {
		cfg.Storage = *overrides.Storage
	}

	if overrides.DBFile != nil && *overrides.DBFile != "" {
		cfg.DBFile = *overrides.DBFile
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.EnableMetrics != nil {
		cfg.EnableMetrics = *overrides.EnableMetrics
	}

	if overrides.RateLimitRPS != nil {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit rps must be >= 0, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit burst must be >= 0, got %d", cfg.RateLimitBurst)
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case storage.KindFile:
		if strings.TrimSpace(cfg.DBFile) == "" {
			return errors.New("db file path cannot be empty with file storage")
		}
	case storage.KindMemory:
	default:
		return fmt.Errorf("%w: %q", storage.ErrUnknownBackend, cfg.Storage)
	}
	return nil
}
