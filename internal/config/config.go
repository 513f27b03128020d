// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Display modes for comment threads.
const (
	DisplayModeNested    = "nested"
	DisplayModeFlattened = "flattened"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver     string `mapstructure:"DB_DRIVER"`
	DBHost       string `mapstructure:"DB_HOST"`
	DBPort       string `mapstructure:"DB_PORT"`
	DBUser       string `mapstructure:"DB_USER"`
	DBPassword   string `mapstructure:"DB_PASSWORD"`
	DBName       string `mapstructure:"DB_NAME"`
	DBSSLMode    string `mapstructure:"DB_SSLMODE"`
	DBSQLitePath string `mapstructure:"DB_SQLITE_PATH"`

	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTIssuer   string `mapstructure:"JWT_ISSUER"`
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	AllowedOrigins string        `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string        `mapstructure:"FEATURE_FLAGS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	CommentCooldown        time.Duration `mapstructure:"COMMENT_COOLDOWN"`
	CommentPageSize        int           `mapstructure:"COMMENT_PAGE_SIZE"`
	CommentReplyWindow     int           `mapstructure:"COMMENT_REPLY_WINDOW"`
	CommentRepliesPageSize int           `mapstructure:"COMMENT_REPLIES_PAGE_SIZE"`
	CommentDisplayMode     string        `mapstructure:"COMMENT_DISPLAY_MODE"`
	CommentFlattenDepth    int           `mapstructure:"COMMENT_FLATTEN_DEPTH"`
	CommentMaxDisplayDepth int           `mapstructure:"COMMENT_MAX_DISPLAY_DEPTH"`
	CommentMaxReplyDepth   int           `mapstructure:"COMMENT_MAX_REPLY_DEPTH"`
	CommentMaxLength       int           `mapstructure:"COMMENT_MAX_LENGTH"`

	DevBootstrapStaff bool   `mapstructure:"DEV_BOOTSTRAP_STAFF"`
	DevStaffUsername  string `mapstructure:"DEV_STAFF_USERNAME"`
	DevStaffEmail     string `mapstructure:"DEV_STAFF_EMAIL"`
	DevStaffPassword  string `mapstructure:"DEV_STAFF_PASSWORD"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file may not exist.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	SetDefaults(viper.GetViper())

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults registers development defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8375")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "news_advance")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "news_advance.db")
	v.SetDefault("DB_SCHEMA_MODE", "hybrid")
	v.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)

	v.SetDefault("REDIS_URL", "localhost:6379")

	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "news-advance")
	v.SetDefault("JWT_AUDIENCE", "news-advance-api")

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	v.SetDefault("FEATURE_FLAGS", "")
	v.SetDefault("REQUEST_TIMEOUT", "3s")

	v.SetDefault("COMMENT_COOLDOWN", "2s")
	v.SetDefault("COMMENT_PAGE_SIZE", 10)
	v.SetDefault("COMMENT_REPLY_WINDOW", 5)
	v.SetDefault("COMMENT_REPLIES_PAGE_SIZE", 10)
	v.SetDefault("COMMENT_DISPLAY_MODE", DisplayModeFlattened)
	v.SetDefault("COMMENT_FLATTEN_DEPTH", 5)
	v.SetDefault("COMMENT_MAX_DISPLAY_DEPTH", 20)
	v.SetDefault("COMMENT_MAX_REPLY_DEPTH", 0)
	v.SetDefault("COMMENT_MAX_LENGTH", 5000)

	v.SetDefault("DEV_BOOTSTRAP_STAFF", false)
	v.SetDefault("DEV_STAFF_USERNAME", "news_staff")
	v.SetDefault("DEV_STAFF_EMAIL", "staff@newsadvance.local")
	v.SetDefault("DEV_STAFF_PASSWORD", "")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.CommentDisplayMode = strings.ToLower(strings.TrimSpace(c.CommentDisplayMode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	switch c.CommentDisplayMode {
	case DisplayModeNested, DisplayModeFlattened:
	default:
		return fmt.Errorf("COMMENT_DISPLAY_MODE must be %q or %q, got %q",
			DisplayModeNested, DisplayModeFlattened, c.CommentDisplayMode)
	}

	if c.CommentCooldown < 0 {
		return errors.New("COMMENT_COOLDOWN must not be negative")
	}
	if c.CommentPageSize < 1 || c.CommentRepliesPageSize < 1 {
		return errors.New("comment page sizes must be positive")
	}
	if c.CommentReplyWindow < 0 {
		return errors.New("COMMENT_REPLY_WINDOW must not be negative")
	}
	if c.CommentFlattenDepth < 1 {
		return errors.New("COMMENT_FLATTEN_DEPTH must be at least 1")
	}
	if c.CommentMaxDisplayDepth < 1 {
		return errors.New("COMMENT_MAX_DISPLAY_DEPTH must be at least 1")
	}
	if c.CommentMaxReplyDepth < 0 {
		return errors.New("COMMENT_MAX_REPLY_DEPTH must not be negative")
	}
	if c.CommentMaxLength < 1 {
		return errors.New("COMMENT_MAX_LENGTH must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "sqlite" {
			return errors.New("DB_DRIVER sqlite is not supported in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
