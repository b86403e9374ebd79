// Package config loads the service configuration: built-in defaults, then
// an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds every setting of the service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Cache         CacheConfig         `yaml:"cache"`
	Messaging     MessagingConfig     `yaml:"messaging"`
	Normalization NormalizationConfig `yaml:"normalization"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxUploadMB     int64         `yaml:"max_upload_mb"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
	Path   string `yaml:"path"` // sqlite file, used when DSN is empty
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	CookieName    string        `yaml:"cookie_name"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	AdminUsername string        `yaml:"admin_username"`
	AdminPassword string        `yaml:"admin_password"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"` // local, gridfs
	ImageDir      string `yaml:"image_dir"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	GridFSBucket  string `yaml:"gridfs_bucket"`
}

type CacheConfig struct {
	LocalTTL      time.Duration `yaml:"local_ttl"`
	LocalMaxSize  int64         `yaml:"local_max_size"`
	MemcachedHost string        `yaml:"memcached_host"` // empty disables the second tier
	MemcachedTTL  time.Duration `yaml:"memcached_ttl"`
}

type MessagingConfig struct {
	RabbitMQURL string `yaml:"rabbitmq_url"` // empty disables events
	Exchange    string `yaml:"exchange"`
}

type NormalizationConfig struct {
	RulesFile string `yaml:"rules_file"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Supported backends.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	StorageLocal  = "local"
	StorageGridFS = "gridfs"
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			GinMode:         "release",
			AllowedOrigins:  []string{"*"},
			MaxUploadMB:     50,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "listings.db",
		},
		Auth: AuthConfig{
			JWTSecret:     "default-secret-change-in-production",
			TokenTTL:      24 * time.Hour,
			CookieName:    "listings_token",
			AdminUsername: "admin",
			AdminPassword: "1234",
		},
		Storage: StorageConfig{
			Backend:       StorageLocal,
			ImageDir:      "uploads",
			MongoDatabase: "listings",
			GridFSBucket:  "images",
		},
		Cache: CacheConfig{
			LocalTTL:     5 * time.Minute,
			LocalMaxSize: 1000,
			MemcachedTTL: 15 * time.Minute,
		},
		Messaging: MessagingConfig{
			Exchange: "listings.events",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. A missing file is not an error when the
// path is the default one.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.GinMode = getEnv("GIN_MODE", c.Server.GinMode)
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_DSN", c.Database.DSN)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.AdminUsername = getEnv("ADMIN_USERNAME", c.Auth.AdminUsername)
	c.Auth.AdminPassword = getEnv("ADMIN_PASSWORD", c.Auth.AdminPassword)
	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.ImageDir = getEnv("IMAGE_DIR", c.Storage.ImageDir)
	c.Storage.MongoURI = getEnv("MONGO_URI", c.Storage.MongoURI)
	c.Storage.MongoDatabase = getEnv("MONGO_DATABASE", c.Storage.MongoDatabase)
	c.Cache.MemcachedHost = getEnv("MEMCACHED_HOST", c.Cache.MemcachedHost)
	c.Messaging.RabbitMQURL = getEnv("RABBITMQ_URL", c.Messaging.RabbitMQURL)
	c.Normalization.RulesFile = getEnv("RULES_FILE", c.Normalization.RulesFile)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Server.MaxUploadMB = n
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.DSN == "" && c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverMySQL, DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.ImageDir == "" {
			return errors.New("storage.image_dir is required for local storage")
		}
	case StorageGridFS:
		if c.Storage.MongoURI == "" {
			return errors.New("storage.mongo_uri is required for gridfs storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	return nil
}

// MaxUploadBytes is the request body cap for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

// getEnv returns the environment value for key or the fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
