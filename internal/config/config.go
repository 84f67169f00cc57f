package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds scanner configuration.
type Config struct {
	Env      string
	LogLevel string

	// Scan selection
	DaysToScan     int
	ScanType       string
	MassageType    string
	TargetStaff    []string
	Headless       bool
	PassURL        string
	CatalogPath    string
	ScanRatePerSec float64

	// Browser engine
	BrowserMode       string
	BrowserSidecarURL string
	ChromePath        string
	BrowserTimeout    time.Duration

	// Output
	OutputDir string
	DebugDir  string
	S3Bucket  string
	S3Prefix  string

	// Storage
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ScanEventsQueueURL  string

	// Notifications
	TelegramBotToken string
	TelegramChatID   int64
	SendGridAPIKey   string
	SESFromEmail     string
	NotifyEmailFrom  string
	NotifyEmailTo    string

	// Server
	Port           string
	AdminJWTSecret string
	ScanSchedule   string
	CORSOrigins    []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DaysToScan:     getEnvAsInt("DAYS_TO_SCAN", 30),
		ScanType:       strings.ToLower(strings.TrimSpace(getEnv("SCAN_TYPE", ""))),
		MassageType:    strings.ToLower(strings.TrimSpace(getEnv("MASSAGE_TYPE", ""))),
		TargetStaff:    getEnvAsList("TARGET_STAFF"),
		Headless:       getEnv("HEADLESS", "true") != "false",
		PassURL:        getEnv("PASS_URL", ""),
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		ScanRatePerSec: getEnvAsFloat("SCAN_RATE_PER_SEC", 1),

		BrowserMode:       strings.ToLower(getEnv("BROWSER_MODE", "local")),
		BrowserSidecarURL: getEnv("BROWSER_SIDECAR_URL", "http://localhost:3000"),
		ChromePath:        getEnv("CHROME_PATH", ""),
		BrowserTimeout:    getEnvAsDuration("BROWSER_TIMEOUT", 120*time.Second),

		OutputDir: getEnv("OUTPUT_DIR", "www"),
		DebugDir:  getEnv("DEBUG_DIR", "."),
		S3Bucket:  getEnv("S3_BUCKET", ""),
		S3Prefix:  getEnv("S3_PREFIX", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ScanEventsQueueURL:  getEnv("SCAN_EVENTS_QUEUE_URL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		SESFromEmail:     getEnv("SES_FROM_EMAIL", ""),
		NotifyEmailFrom:  getEnv("NOTIFY_EMAIL_FROM", ""),
		NotifyEmailTo:    getEnv("NOTIFY_EMAIL_TO", ""),

		Port:           getEnv("PORT", "8080"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		ScanSchedule:   getEnv("SCAN_SCHEDULE", "*/30 * * * *"),
		CORSOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// UseSidecar reports whether scans should drive the remote browser sidecar
// instead of a locally launched Chrome.
func (c *Config) UseSidecar() bool {
	return c.BrowserMode == "sidecar"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
