package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"union-data/internal/database"
)

// Config union-data (HTTP API) configuration.
type Config struct {
	HTTP struct {
		Addr string
	}
	Database database.Config
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	JWT struct {
		Secret    string
		Issuer    string
		TTLHours  int
	}
	Storage StorageConfig
	Notify  NotifyConfig
	Geocode GeocodeConfig
}

// StorageConfig blob-store settings for the upload endpoint.
type StorageConfig struct {
	Bucket    string
	Region    string
	PublicURL string // base URL files are served from; bucket endpoint when empty
}

// NotifyConfig templated-message (AlimTalk/SMS) gateway settings.
type NotifyConfig struct {
	BaseURL string
	APIKey  string
	Sender  string // sender phone number registered with the gateway
}

// GeocodeConfig cadastral address-lookup service settings.
type GeocodeConfig struct {
	BaseURL string
	APIKey  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "uniondata")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.JWT.Secret = getEnv("JWT_SECRET", "")
	cfg.JWT.Issuer = getEnv("JWT_ISSUER", "union-data")
	cfg.JWT.TTLHours = parseInt(getEnv("JWT_TTL_HOURS", "24"), 24)

	cfg.Storage.Bucket = getEnv("UPLOAD_S3_BUCKET", "")
	cfg.Storage.Region = getEnv("AWS_REGION", "ap-northeast-2")
	cfg.Storage.PublicURL = getEnv("UPLOAD_PUBLIC_URL", "")

	cfg.Notify.BaseURL = getEnv("NOTIFY_BASE_URL", "")
	cfg.Notify.APIKey = getEnv("NOTIFY_API_KEY", "")
	cfg.Notify.Sender = getEnv("NOTIFY_SENDER", "")

	cfg.Geocode.BaseURL = getEnv("GEOCODE_BASE_URL", "")
	cfg.Geocode.APIKey = getEnv("GEOCODE_API_KEY", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
