// Package config loads the daemon's runtime configuration from the
// environment. Stages receive their tunables as explicit values; nothing
// outside this package reads the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Engine selection values for OCR_ENGINE.
const (
	EngineTesseract    = "tesseract"
	EngineTesseractCLI = "tesseract-cli"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port string

	// Request handling.
	MaxUploadBytes int64
	MaxConns       int

	// Decoder.
	MaxDimension int

	// Preprocessor defaults, overridable per request.
	Grayscale bool
	Binarize  bool
	// BinarizeThreshold in 1..255; zero selects the automatic threshold.
	BinarizeThreshold int
	Deskew            bool

	// OCR invoker.
	Engine          string
	TesseractPath   string
	DefaultLanguage string
	DefaultTimeout  time.Duration
	MaxTimeout      time.Duration
	PSM             int
	CharWhitelist   string

	// Assembler default.
	MinConfidence float64
}

// Load reads configuration from the environment, providing defaults that
// match the deployment. A .env file is honored when present.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:              getEnv("PORT", "8080"),
		MaxUploadBytes:    getEnvInt64("OCR_MAX_UPLOAD_BYTES", 32<<20),
		MaxConns:          getEnvInt("OCR_MAX_CONNS", 64),
		MaxDimension:      getEnvInt("OCR_MAX_DIMENSION", 4000),
		Grayscale:         getEnvBool("OCR_GRAYSCALE", true),
		Binarize:          getEnvBool("OCR_BINARIZE", false),
		BinarizeThreshold: getEnvInt("OCR_BINARIZE_THRESHOLD", 0),
		Deskew:            getEnvBool("OCR_DESKEW", false),
		Engine:            getEnv("OCR_ENGINE", EngineTesseract),
		TesseractPath:     getEnv("TESSERACT_PATH", "/usr/bin/tesseract"),
		DefaultLanguage:   getEnv("OCR_DEFAULT_LANGUAGE", "eng"),
		DefaultTimeout:    getEnvDuration("OCR_DEFAULT_TIMEOUT_MS", 10*time.Second),
		MaxTimeout:        getEnvDuration("OCR_MAX_TIMEOUT_MS", 30*time.Second),
		PSM:               getEnvInt("OCR_PSM", 0),
		CharWhitelist:     getEnv("OCR_CHAR_WHITELIST", ""),
		MinConfidence:     float64(getEnvInt("OCR_MIN_CONFIDENCE", 0)),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
