package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds agent configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	// Remote Fine Print API.
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// Local API auth. Empty disables auth outside production.
	LocalAuthToken string

	// Offline state store.
	StoreType         string // badger | memory | postgres
	DataDir           string
	DatabaseURL       string
	StorageQuotaBytes int64

	// Raw upload storage.
	ObjectStoreType string // local | s3
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	// Sync behavior.
	CacheTTL        time.Duration
	AutoSync        bool
	ProbeInterval   time.Duration // 0 disables the connectivity probe
	CleanupInterval time.Duration // 0 disables periodic maintenance
}

const defaultStorageQuotaBytes = 50 << 20 // 50MB

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	apiBase := strings.TrimRight(getEnv("FP_API_BASE_URL", "https://api.fineprint.ai"), "/")

	if env == "production" && os.Getenv("FP_API_TOKEN") == "" {
		log.Printf("FP_API_TOKEN is empty; remote calls will be unauthenticated")
	}

	return Config{
		Port:            getEnv("PORT", "8090"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),

		APIBaseURL: apiBase,
		APIToken:   os.Getenv("FP_API_TOKEN"),
		APITimeout: getEnvDuration("FP_API_TIMEOUT", 60*time.Second),

		LocalAuthToken: os.Getenv("FP_LOCAL_AUTH_TOKEN"),

		StoreType:         normalizeStoreType(getEnv("FP_STORE", "badger")),
		DataDir:           getEnv("FP_DATA_DIR", "./data"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StorageQuotaBytes: getEnvInt64("FP_STORAGE_QUOTA_BYTES", defaultStorageQuotaBytes),

		ObjectStoreType: normalizeObjectStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data/uploads"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		CacheTTL:        getEnvDuration("FP_CACHE_TTL", 24*time.Hour),
		AutoSync:        getEnvBool("FP_AUTO_SYNC", true),
		ProbeInterval:   getEnvDuration("FP_PROBE_INTERVAL", 0),
		CleanupInterval: getEnvDuration("FP_CLEANUP_INTERVAL", 6*time.Hour),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
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
	case "memory":
		return "memory"
	case "postgres", "pg":
		return "postgres"
	default:
		return "badger"
	}
}

func normalizeObjectStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
