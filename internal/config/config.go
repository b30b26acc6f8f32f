// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"hospitex_portal/pkg/utils"

	"github.com/joho/godotenv"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	SchemaPath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// IsProduction reports whether APP_ENV is production.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

// JWTConfig holds access token settings
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// RedisConfig holds Redis settings. An empty Address disables Redis.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	QRLockTTL time.Duration
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// BlobConfig selects and configures the export archive store.
type BlobConfig struct {
	Driver        string // fs | s3
	FSRoot        string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3PathStyle   bool
	S3AccessKeyID string
	S3SecretKey   string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// CORSConfig holds allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string
}

// ImportConfig bounds spreadsheet imports.
type ImportConfig struct {
	MaxRows int
}

// Config holds all configuration
type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Redis  RedisConfig
	Blob   BlobConfig
	Log    LogConfig
	CORS   CORSConfig
	Import ImportConfig
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; the process environment always wins over defaults.
	_ = godotenv.Load()

	env := utils.Getenv("APP_ENV", "development")
	cfg := &Config{
		Server: ServerConfig{
			Port: utils.Getenv("PORT", "8080"),
			Env:  env,
		},
		DB: DBConfig{
			Host:            utils.Getenv("DB_HOST", "localhost"),
			Port:            utils.Getenv("DB_PORT", "5432"),
			User:            utils.Getenv("DB_USER", "hospitex"),
			Password:        utils.Getenv("DB_PASSWORD", "hospitex"),
			Name:            utils.Getenv("DB_NAME", "hospitex_portal"),
			SSLMode:         utils.Getenv("DB_SSLMODE", "disable"),
			SchemaPath:      utils.Getenv("DB_SCHEMA_PATH", ""),
			MaxOpenConns:    utils.GetenvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    utils.GetenvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: utils.GetenvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			Secret:     utils.Getenv("JWT_SECRET", ""),
			Expiration: utils.GetenvDuration("JWT_EXPIRATION", 24*time.Hour),
		},
		Redis: RedisConfig{
			Address:   utils.Getenv("REDIS_ADDRESS", ""),
			Password:  utils.Getenv("REDIS_PASSWORD", ""),
			DB:        utils.GetenvInt("REDIS_DB", 0),
			QRLockTTL: utils.GetenvDuration("QR_LOCK_TTL", 10*time.Second),
		},
		Blob: BlobConfig{
			Driver:        strings.ToLower(utils.Getenv("BLOB_DRIVER", "fs")),
			FSRoot:        utils.Getenv("BLOB_FS_ROOT", "./exports"),
			S3Bucket:      utils.Getenv("BLOB_S3_BUCKET", ""),
			S3Region:      utils.Getenv("BLOB_S3_REGION", "us-east-1"),
			S3Endpoint:    utils.Getenv("BLOB_S3_ENDPOINT", ""),
			S3PathStyle:   utils.GetenvBool("BLOB_S3_PATH_STYLE", false),
			S3AccessKeyID: utils.Getenv("AWS_ACCESS_KEY_ID", ""),
			S3SecretKey:   utils.Getenv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Log: LogConfig{
			Level:  utils.Getenv("LOG_LEVEL", "info"),
			Pretty: utils.GetenvBool("LOG_PRETTY", !strings.EqualFold(env, "production")),
		},
		CORS: CORSConfig{
			AllowedOrigins: utils.GetenvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Import: ImportConfig{
			MaxRows: utils.GetenvInt("IMPORT_MAX_ROWS", 5000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		if c.Server.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.JWT.Secret = "dev-only-insecure-secret"
	}
	switch c.Blob.Driver {
	case "fs":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET is required for the s3 blob driver")
		}
	default:
		return fmt.Errorf("unsupported BLOB_DRIVER %q", c.Blob.Driver)
	}
	if c.Import.MaxRows <= 0 {
		return fmt.Errorf("IMPORT_MAX_ROWS must be positive")
	}
	return nil
}

// LogFields returns non-secret settings for the startup log line.
func (c *Config) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"env":           c.Server.Env,
		"port":          c.Server.Port,
		"db_host":       c.DB.Host,
		"db_name":       c.DB.Name,
		"redis_enabled": c.Redis.Enabled(),
		"blob_driver":   c.Blob.Driver,
	}
}
