package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host               string        `validate:"required"`
	Port               string        `validate:"required,numeric"`
	LogLevel           string        `validate:"oneof=debug info warn warning error"`
	RequestTimeout     time.Duration `validate:"gt=0"`
	ImageFetchTimeout  time.Duration `validate:"gt=0"`
	OCRTimeout         time.Duration `validate:"gt=0"`
	MaxRequestBodySize int64         `validate:"gt=0"`

	OCRProvider       string `validate:"oneof=tesseract documentai azure"`
	TesseractLanguage string `validate:"required"`

	DocumentAIProjectID       string `validate:"required_if=OCRProvider documentai"`
	DocumentAILocation        string `validate:"required_if=OCRProvider documentai"`
	DocumentAIProcessorID     string `validate:"required_if=OCRProvider documentai"`
	DocumentAICredentialsFile string

	AzureVisionEndpoint string `validate:"required_if=OCRProvider azure,omitempty,url"`
	AzureVisionKey      string `validate:"required_if=OCRProvider azure"`

	AzureStorageAccount string
	AzureStorageKey     string `validate:"required_with=AzureStorageAccount"`

	// Images scoring below QualityGateMinScore skip OCR unless the request forces it
	QualityGateMinScore int     `validate:"gte=0,lte=100"`
	DetectBlur          bool
	BlurThreshold       float64 `validate:"gte=0"`
	BatchWorkers        int     `validate:"gte=0,lte=64"`
	MaxBatchSize        int     `validate:"gt=0,lte=100"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// BlobStorageEnabled reports whether azblob:// sources can be served
func (c *Config) BlobStorageEnabled() bool {
	return c.AzureStorageAccount != ""
}

// LoadFromEnv reads the environment after loading envFiles (default .env) that exist.
// Variables already set take precedence over the files.
func LoadFromEnv(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		LogLevel:           strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		OCRTimeout:         parseDurationOrDefault("OCR_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 20*1024*1024), // 20MB

		OCRProvider:       strings.ToLower(getEnvOrDefault("OCR_PROVIDER", "tesseract")),
		TesseractLanguage: getEnvOrDefault("TESSERACT_LANGUAGE", "eng"),

		DocumentAIProjectID:       os.Getenv("DOCUMENTAI_PROJECT_ID"),
		DocumentAILocation:        getEnvOrDefault("DOCUMENTAI_LOCATION", "us"),
		DocumentAIProcessorID:     os.Getenv("DOCUMENTAI_PROCESSOR_ID"),
		DocumentAICredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		AzureVisionEndpoint: os.Getenv("AZURE_VISION_ENDPOINT"),
		AzureVisionKey:      os.Getenv("AZURE_VISION_KEY"),

		AzureStorageAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:     os.Getenv("AZURE_STORAGE_KEY"),

		QualityGateMinScore: int(parseIntOrDefault("QUALITY_GATE_MIN_SCORE", 30)),
		DetectBlur:          parseBoolOrDefault("DETECT_BLUR", false),
		BlurThreshold:       parseFloatOrDefault("BLUR_THRESHOLD", 100),
		BatchWorkers:        int(parseIntOrDefault("BATCH_WORKERS", 4)),
		MaxBatchSize:        int(parseIntOrDefault("MAX_BATCH_SIZE", 10)),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate port is in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
