// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty means the in-memory store is used, which only
	// makes sense for local runs and tests.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty disables the score cache and Redis-backed rate
	// limiting; both fall back to in-process equivalents.
	RedisAddr string `koanf:"redis_addr"`

	// Scoring parameters. Zero values fall back to the scorer defaults.
	CalibrationPath       string  `koanf:"calibration_path"`
	DecayFactor           float64 `koanf:"decay_factor"`
	EnableDecay           bool    `koanf:"enable_decay"`
	InvolvementWindowDays int     `koanf:"involvement_window_days"`
	LoyaltyWindowDays     int     `koanf:"loyalty_window_days"`
	LoyaltySampleCap      int     `koanf:"loyalty_sample_cap"`
	CentralityCap         float64 `koanf:"centrality_cap"`

	// Background recompute job.
	RecomputeInterval time.Duration `koanf:"recompute_interval"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporterType string  `koanf:"tracing_exporter_type"`
	OTLPEndpoint        string  `koanf:"otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
}

// Configuration validation errors.
var (
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
	ErrInvalidDecayFactor       = errors.New("DECAY_FACTOR must be in (0, 1]")
	ErrInvalidWindowDays        = errors.New("window days must be positive")
	ErrInvalidSampleCap         = errors.New("LOYALTY_SAMPLE_CAP must be positive")
	ErrInvalidCentralityCap     = errors.New("CENTRALITY_CAP must be positive")
	ErrInvalidRecomputeInterval = errors.New("RECOMPUTE_INTERVAL must be a valid duration")
	ErrInvalidSamplingRate      = errors.New("TRACING_SAMPLING_RATE must be in [0, 1]")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultEnableDecay         = true
	DefaultRecomputeInterval   = 30 * time.Second
	DefaultTracingExporterType = "otlp-http"
	DefaultTracingSamplingRate = 1.0
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"DEERRIVER_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	decayFactor, err := getEnvFloatOrDefault("DECAY_FACTOR", k.Float64("decay_factor"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	involvementWindow, err := getEnvIntOrDefault("INVOLVEMENT_WINDOW_DAYS", k.Int("involvement_window_days"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	loyaltyWindow, err := getEnvIntOrDefault("LOYALTY_WINDOW_DAYS", k.Int("loyalty_window_days"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	sampleCap, err := getEnvIntOrDefault("LOYALTY_SAMPLE_CAP", k.Int("loyalty_sample_cap"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	centralityCap, err := getEnvFloatOrDefault("CENTRALITY_CAP", k.Float64("centrality_cap"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	samplingRate, err := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	recomputeInterval := DefaultRecomputeInterval
	if k.Exists("recompute_interval") {
		recomputeInterval = k.Duration("recompute_interval")
	}
	if val := os.Getenv("RECOMPUTE_INTERVAL"); val != "" {
		d, derr := time.ParseDuration(val)
		if derr != nil {
			loadErrs = append(loadErrs, fmt.Errorf("%w: %v", ErrInvalidRecomputeInterval, derr))
		} else {
			recomputeInterval = d
		}
	}

	cfg := &Config{
		Port:                  port,
		Env:                   getEnvOrDefaultMulti([]string{"DEERRIVER_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:           getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:             getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		CalibrationPath:       getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		DecayFactor:           decayFactor,
		EnableDecay:           getEnvBoolOrDefault("ENABLE_DECAY", k, "enable_decay", DefaultEnableDecay),
		InvolvementWindowDays: involvementWindow,
		LoyaltyWindowDays:     loyaltyWindow,
		LoyaltySampleCap:      sampleCap,
		CentralityCap:         centralityCap,
		RecomputeInterval:     recomputeInterval,
		TracingEnabled:        getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporterType:   getEnvOrDefault("TRACING_EXPORTER_TYPE", k.String("tracing_exporter_type"), DefaultTracingExporterType),
		OTLPEndpoint:          getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSamplingRate:   samplingRate,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBoolOrDefault returns the environment variable as bool if set,
// otherwise the koanf value, or default. Truthy env values are
// true/1/yes/on; falsy are false/0/no/off; anything else keeps the default.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that configuration values are within their allowed
// ranges. Zero scoring parameters are allowed; the scorers substitute
// their own defaults.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.DecayFactor < 0 || c.DecayFactor > 1 {
		errs = append(errs, ErrInvalidDecayFactor)
	}
	if c.InvolvementWindowDays < 0 || c.LoyaltyWindowDays < 0 {
		errs = append(errs, ErrInvalidWindowDays)
	}
	if c.LoyaltySampleCap < 0 {
		errs = append(errs, ErrInvalidSampleCap)
	}
	if c.CentralityCap < 0 {
		errs = append(errs, ErrInvalidCentralityCap)
	}
	if c.RecomputeInterval < 0 {
		errs = append(errs, ErrInvalidRecomputeInterval)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// Credentials embedded in URLs are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                    fmt.Sprintf("%d", c.Port),
		"env":                     c.Env,
		"database_url":            maskDatabaseURL(c.DatabaseURL),
		"redis_addr":              c.RedisAddr,
		"calibration_path":        c.CalibrationPath,
		"decay_factor":            fmt.Sprintf("%g", c.DecayFactor),
		"enable_decay":            fmt.Sprintf("%t", c.EnableDecay),
		"involvement_window_days": fmt.Sprintf("%d", c.InvolvementWindowDays),
		"loyalty_window_days":     fmt.Sprintf("%d", c.LoyaltyWindowDays),
		"loyalty_sample_cap":      fmt.Sprintf("%d", c.LoyaltySampleCap),
		"centrality_cap":          fmt.Sprintf("%g", c.CentralityCap),
		"recompute_interval":      c.RecomputeInterval.String(),
		"tracing_enabled":         fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter_type":   c.TracingExporterType,
		"otlp_endpoint":           c.OTLPEndpoint,
		"tracing_sampling_rate":   fmt.Sprintf("%g", c.TracingSamplingRate),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
