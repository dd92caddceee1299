package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	Quality QualityConfig

	ScenesFile    string
	HistoryDBPath string

	AzureAccount   string
	AzureKey       string
	AzureContainer string

	ModelProvider string
	GeminiAPIKey  string
	GeminiModel   string
	OCRLanguage   string
}

// QualityConfig holds the global gate thresholds used when a scene declares none
type QualityConfig struct {
	MinScore       int
	StrictMinScore int
	BlockFloor     int
	StrictFloor    int
}

// DefaultQualityConfig returns the declared gate defaults
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinScore:       60,
		StrictMinScore: 70,
		BlockFloor:     45,
		StrictFloor:    80,
	}
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob storage credentials are configured
func (c *Config) AzureEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != ""
}

// Load reads a .env file when present and then loads the environment
func Load() (*Config, error) {
	// missing .env is fine
	_ = godotenv.Load()
	return LoadFromEnv()
}

func LoadFromEnv() (*Config, error) {
	defaults := DefaultQualityConfig()
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		Quality: QualityConfig{
			MinScore:       int(parseIntOrDefault("QUALITY_MIN_SCORE", int64(defaults.MinScore))),
			StrictMinScore: int(parseIntOrDefault("QUALITY_STRICT_MIN_SCORE", int64(defaults.StrictMinScore))),
			BlockFloor:     int(parseIntOrDefault("QUALITY_BLOCK_FLOOR", int64(defaults.BlockFloor))),
			StrictFloor:    int(parseIntOrDefault("QUALITY_STRICT_FLOOR", int64(defaults.StrictFloor))),
		},
		ScenesFile:     strings.TrimSpace(os.Getenv("SCENES_FILE")),
		HistoryDBPath:  getEnvOrDefault("HISTORY_DB_PATH", "capture-history.db"),
		AzureAccount:   strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureKey:       strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
		AzureContainer: getEnvOrDefault("AZURE_CAPTURE_CONTAINER", "captures"),
		ModelProvider:  strings.ToLower(getEnvOrDefault("MODEL_PROVIDER", "signal")),
		GeminiAPIKey:   strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		OCRLanguage:    getEnvOrDefault("OCR_LANGUAGE", "eng"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field consistency
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if err := c.Quality.Validate(); err != nil {
		return err
	}
	switch c.ModelProvider {
	case "signal":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when MODEL_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("invalid MODEL_PROVIDER: %q", c.ModelProvider)
	}
	return nil
}

// Validate checks that every threshold is a score in 0..100
func (q QualityConfig) Validate() error {
	for name, v := range map[string]int{
		"QUALITY_MIN_SCORE":        q.MinScore,
		"QUALITY_STRICT_MIN_SCORE": q.StrictMinScore,
		"QUALITY_BLOCK_FLOOR":      q.BlockFloor,
		"QUALITY_STRICT_FLOOR":     q.StrictFloor,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be within 0..100 (got %d)", name, v)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
