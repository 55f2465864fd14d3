package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	QueueURL        string

	AutomationProvider string
	APS                APSConfig
	PollInterval       time.Duration
	PollMaxAttempts    int

	ComplianceStandards []string
	UnresolvedPolicy    string
	StandardsFile       string

	MaxUploadBytes int64
	// RateLimitPerMinute caps requests per client IP; zero disables limiting.
	RateLimitPerMinute int
}

// APSConfig holds Autodesk Platform Services credentials and endpoints.
type APSConfig struct {
	ClientID     string
	ClientSecret string
	BucketKey    string
	ActivityID   string
	BaseURL      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		QueueURL:        getEnv("TGA_SQS_QUEUE_URL", ""),

		AutomationProvider: normalizeProvider(getEnv("AUTOMATION_PROVIDER", "simulated")),
		APS: APSConfig{
			ClientID:     getEnv("APS_CLIENT_ID", ""),
			ClientSecret: getEnv("APS_CLIENT_SECRET", ""),
			BucketKey:    getEnv("APS_BUCKET_KEY", "tga-platform-bucket"),
			ActivityID:   getEnv("APS_ACTIVITY_ID", ""),
			BaseURL:      getEnv("APS_BASE_URL", "https://developer.api.autodesk.com"),
		},
		PollInterval:    getDuration("POLL_INTERVAL", 5*time.Second),
		PollMaxAttempts: getInt("POLL_MAX_ATTEMPTS", 120),

		ComplianceStandards: splitAndTrim(getEnv("COMPLIANCE_STANDARDS", "DIN 18015,VDI 2052")),
		UnresolvedPolicy:    getEnv("COMPLIANCE_UNRESOLVED_POLICY", "compliant"),
		StandardsFile:       getEnv("STANDARDS_FILE", ""),

		MaxUploadBytes:     int64(getInt("MAX_UPLOAD_BYTES", 50<<20)),
		RateLimitPerMinute: getNonNegativeInt("RATE_LIMIT_PER_MINUTE", 120),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("ignoring invalid %s=%q", key, raw)
		return def
	}
	return n
}

func getNonNegativeInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "0" {
		return 0
	}
	return getInt(key, def)
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("ignoring invalid %s=%q", key, raw)
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "aps", "autodesk":
		return "aps"
	default:
		return "simulated"
	}
}
