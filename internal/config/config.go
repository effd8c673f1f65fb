package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Storage types selectable through STORAGE_TYPE.
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob backends selectable through BLOB_BACKEND.
const (
	BlobLocal = "local"
	BlobMinIO = "minio"
)

// Bus drivers selectable through BUS_DRIVER.
const (
	BusPulsar = "pulsar"
	BusRedis  = "redis"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects the repository variant and where payloads land.
type StorageConfig struct {
	Type         string
	Path         string
	BlobBackend  string
	SQLitePath   string
	FetchTimeout time.Duration
	CacheSize    int
}

// BusConfig holds message bus settings. The bus is optional; when Enabled is
// false no publisher is constructed.
type BusConfig struct {
	Enabled          bool
	Driver           string
	PulsarServiceURL string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	Topic            string
	MaxRetries       int
	RetryDelay       time.Duration
	SendTimeout      time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port     string
	GRPCAddr string
	LogLevel string
	Timezone string
	Storage  StorageConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	Bus      BusConfig
}

// Load reads configuration from environment variables.
// A .env file is auto-loaded by cmd/imagecollector; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:     getEnv("PORT", "8080"),
		GRPCAddr: getEnv("GRPC_ADDR", "127.0.0.1:8001"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		Storage: StorageConfig{
			Type:         getEnv("STORAGE_TYPE", StorageSQLite),
			Path:         getEnv("STORAGE_PATH", "./storage"),
			BlobBackend:  getEnv("BLOB_BACKEND", BlobLocal),
			SQLitePath:   getEnv("SQLITE_DB_PATH", "./storage/images.db"),
			FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
			CacheSize:    getEnvInt("CACHE_SIZE", 0),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", "images_db"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Bus: BusConfig{
			Enabled:          getEnvBool("BUS_ENABLED", false),
			Driver:           getEnv("BUS_DRIVER", BusPulsar),
			PulsarServiceURL: getEnv("PULSAR_SERVICE_URL", "pulsar://localhost:6650"),
			RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:    getEnv("REDIS_PASSWORD", ""),
			RedisDB:          getEnvInt("REDIS_DB", 0),
			Topic:            getEnv("BUS_TOPIC", "persistent://public/default/eventos-suscripcion"),
			MaxRetries:       getEnvInt("BUS_MAX_RETRIES", 3),
			RetryDelay:       getEnvDuration("BUS_RETRY_DELAY", time.Second),
			SendTimeout:      getEnvDuration("BUS_SEND_TIMEOUT", 3*time.Second),
		},
	}
}

// Validate rejects unknown enum values so a typo fails at startup instead of
// silently falling back to another backend.
func (c *AppConfig) Validate() error {
	switch c.Storage.Type {
	case StorageFile, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("invalid STORAGE_TYPE %q", c.Storage.Type)
	}
	switch c.Storage.BlobBackend {
	case BlobLocal, BlobMinIO:
	default:
		return fmt.Errorf("invalid BLOB_BACKEND %q", c.Storage.BlobBackend)
	}
	if c.Bus.Enabled {
		switch c.Bus.Driver {
		case BusPulsar, BusRedis:
		default:
			return fmt.Errorf("invalid BUS_DRIVER %q", c.Bus.Driver)
		}
		if c.Bus.Topic == "" {
			return fmt.Errorf("BUS_TOPIC is required when the bus is enabled")
		}
	}
	if c.Storage.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.Bus.MaxRetries < 0 {
		return fmt.Errorf("BUS_MAX_RETRIES must not be negative")
	}
	if c.Bus.RetryDelay < 0 {
		return fmt.Errorf("BUS_RETRY_DELAY must not be negative")
	}
	if c.Bus.SendTimeout <= 0 {
		return fmt.Errorf("BUS_SEND_TIMEOUT must be positive")
	}
	return nil
}

// Location resolves the configured timezone used for log timestamps.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
