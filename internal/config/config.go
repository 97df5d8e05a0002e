// Package config provides configuration management for the device
// inventory service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the service.
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Blob      BlobConfig
	Directory DirectoryConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string
	HTTPPort    string
	Environment string
	Debug       bool

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Startup behavior
	Migrate  bool
	SeedFile string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds the device read-cache configuration.
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	DeviceTTL time.Duration
	LookupTTL time.Duration
}

// BlobConfig selects and configures the attachment blob backend.
type BlobConfig struct {
	// Backend is "disk" or "s3".
	Backend string

	// Disk backend
	Dir string

	// S3 backend
	S3Region    string
	S3Bucket    string
	S3Prefix    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	MaxFileSize int64
}

// DirectoryConfig selects and configures the user directory backend.
type DirectoryConfig struct {
	// Backend is "postgres" or "ldap".
	Backend string

	// LDAP backend
	LDAPAddr         string
	LDAPUseTLS       bool
	LDAPBindDN       string
	LDAPBindPassword string
	LDAPBaseDN       string
	LDAPUserFilter   string
	LDAPTimeout      time.Duration
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string // json, text
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:            getEnv("SERVICE_NAME", "devicehub"),
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			Debug:           getEnvBool("DEBUG", false),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			Migrate:         getEnvBool("DB_MIGRATE", true),
			SeedFile:        getEnv("SEED_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "devicehub"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:   getEnvBool("REDIS_ENABLED", false),
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			DeviceTTL: getEnvDuration("REDIS_DEVICE_TTL", 15*time.Minute),
			LookupTTL: getEnvDuration("REDIS_LOOKUP_TTL", 30*time.Minute),
		},
		Blob: BlobConfig{
			Backend:     getEnv("BLOB_BACKEND", "disk"),
			Dir:         getEnv("BLOB_DIR", "./data/blobs"),
			S3Region:    getEnv("BLOB_S3_REGION", "us-east-1"),
			S3Bucket:    getEnv("BLOB_S3_BUCKET", ""),
			S3Prefix:    getEnv("BLOB_S3_PREFIX", "device-configs"),
			S3Endpoint:  getEnv("BLOB_S3_ENDPOINT", ""),
			S3AccessKey: getEnv("BLOB_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("BLOB_S3_SECRET_KEY", ""),
			MaxFileSize: int64(getEnvInt("BLOB_MAX_FILE_SIZE", 5*1024*1024)),
		},
		Directory: DirectoryConfig{
			Backend:          getEnv("DIRECTORY_BACKEND", "postgres"),
			LDAPAddr:         getEnv("LDAP_ADDR", "localhost:389"),
			LDAPUseTLS:       getEnvBool("LDAP_USE_TLS", false),
			LDAPBindDN:       getEnv("LDAP_BIND_DN", ""),
			LDAPBindPassword: getEnv("LDAP_BIND_PASSWORD", ""),
			LDAPBaseDN:       getEnv("LDAP_BASE_DN", ""),
			LDAPUserFilter:   getEnv("LDAP_USER_FILTER", "(objectClass=person)"),
			LDAPTimeout:      getEnvDuration("LDAP_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:   getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-User-Role", "X-User-Active"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 86400),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.HTTPPort == "" {
		return fmt.Errorf("HTTP port is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	switch c.Blob.Backend {
	case "disk":
		if c.Blob.Dir == "" {
			return fmt.Errorf("blob dir is required for the disk backend")
		}
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown blob backend: %s", c.Blob.Backend)
	}

	switch c.Directory.Backend {
	case "postgres":
	case "ldap":
		if c.Directory.LDAPBaseDN == "" {
			return fmt.Errorf("LDAP base DN is required for the ldap backend")
		}
	default:
		return fmt.Errorf("unknown directory backend: %s", c.Directory.Backend)
	}

	if c.Blob.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive")
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions for environment variable loading.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return b
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return i
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return d
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		current := ""
		for _, char := range value {
			if char == ',' {
				if current != "" {
					result = append(result, current)
					current = ""
				}
			} else {
				current += string(char)
			}
		}
		if current != "" {
			result = append(result, current)
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
