package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Session   SessionConfig
	Gateway   GatewayConfig
	Tracking  TrackingConfig
	Cache     CacheConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	BaseURL        string
	Debug          bool
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	Schema          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry int // in minutes
}

type SessionConfig struct {
	Secret string
	Name   string
	MaxAge int // in seconds
	Secure bool
}

// GatewayConfig configures the payment gateway client
type GatewayConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
}

// TrackingConfig holds the carrier polling policies
type TrackingConfig struct {
	RefreshThrottle time.Duration
	LookupTTL       time.Duration
	HistoryLimit    int
	CarrierTimeout  time.Duration
	FailureRate     float64
}

type CacheConfig struct {
	Enabled    bool
	Prefix     string
	DefaultTTL time.Duration
}

// StorageConfig configures product image storage in S3
type StorageConfig struct {
	Enabled   bool
	Bucket    string
	Region    string
	Prefix    string
	PublicURL string
	LocalDir  string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
}

// IsProduction reports whether the server runs with production settings
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.Schema,
	)
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func Load() *Config {
	// .env populates the process environment; real environment variables win
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.AutomaticEnv()
	setDefaults()

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			BaseURL:        viper.GetString("SERVER_BASE_URL"),
			Debug:          viper.GetBool("SERVER_DEBUG"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetString("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_DATABASE"),
			Schema:          viper.GetString("DB_SCHEMA"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: viper.GetInt("JWT_ACCESS_EXPIRY"),
		},
		Session: SessionConfig{
			Secret: viper.GetString("SESSION_SECRET"),
			Name:   viper.GetString("SESSION_NAME"),
			MaxAge: viper.GetInt("SESSION_MAX_AGE"),
			Secure: viper.GetBool("SESSION_SECURE"),
		},
		Gateway: GatewayConfig{
			BaseURL:       viper.GetString("GATEWAY_BASE_URL"),
			SecretKey:     viper.GetString("GATEWAY_SECRET_KEY"),
			WebhookSecret: firstNonEmpty(viper.GetString("GATEWAY_WEBHOOK_SECRET"), viper.GetString("GATEWAY_SECRET_KEY")),
			Currency:      viper.GetString("GATEWAY_CURRENCY"),
			Timeout:       viper.GetDuration("GATEWAY_TIMEOUT"),
		},
		Tracking: TrackingConfig{
			RefreshThrottle: viper.GetDuration("TRACKING_REFRESH_THROTTLE"),
			LookupTTL:       viper.GetDuration("TRACKING_LOOKUP_TTL"),
			HistoryLimit:    viper.GetInt("TRACKING_HISTORY_LIMIT"),
			CarrierTimeout:  viper.GetDuration("TRACKING_CARRIER_TIMEOUT"),
			FailureRate:     viper.GetFloat64("TRACKING_SIMULATED_FAILURE_RATE"),
		},
		Cache: CacheConfig{
			Enabled:    viper.GetBool("CACHE_ENABLED"),
			Prefix:     viper.GetString("CACHE_PREFIX"),
			DefaultTTL: viper.GetDuration("CACHE_DEFAULT_TTL"),
		},
		Storage: StorageConfig{
			Enabled:   viper.GetBool("S3_ENABLED"),
			Bucket:    viper.GetString("S3_BUCKET"),
			Region:    viper.GetString("S3_REGION"),
			Prefix:    viper.GetString("S3_PREFIX"),
			PublicURL: viper.GetString("S3_PUBLIC_URL"),
			LocalDir:  viper.GetString("UPLOADS_DIR"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           viper.GetBool("RATE_LIMIT_ENABLED"),
			RequestsPerWindow: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:            viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("SERVER_BASE_URL", "http://localhost:8080")
	viper.SetDefault("SERVER_DEBUG", false)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 25)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 60)
	viper.SetDefault("SESSION_NAME", "storefront_session")
	viper.SetDefault("SESSION_MAX_AGE", 86400*7)
	viper.SetDefault("SESSION_SECURE", false)
	viper.SetDefault("GATEWAY_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("GATEWAY_CURRENCY", "NGN")
	viper.SetDefault("GATEWAY_TIMEOUT", 10*time.Second)
	viper.SetDefault("TRACKING_REFRESH_THROTTLE", 30*time.Minute)
	viper.SetDefault("TRACKING_LOOKUP_TTL", 15*time.Minute)
	viper.SetDefault("TRACKING_HISTORY_LIMIT", 20)
	viper.SetDefault("TRACKING_CARRIER_TIMEOUT", 10*time.Second)
	viper.SetDefault("TRACKING_SIMULATED_FAILURE_RATE", 0.1)
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_PREFIX", "storefront")
	viper.SetDefault("CACHE_DEFAULT_TTL", 10*time.Minute)
	viper.SetDefault("S3_ENABLED", false)
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_PREFIX", "products/")
	viper.SetDefault("UPLOADS_DIR", "uploads")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 60)
	viper.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Server.IsProduction() {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT secret is required in production")
		}
		if len(c.Session.Secret) < 32 {
			return fmt.Errorf("session secret must be at least 32 characters in production")
		}
		if c.Gateway.SecretKey == "" {
			return fmt.Errorf("gateway secret key is required in production")
		}
		if c.Server.Debug {
			return fmt.Errorf("debug mode must be disabled in production")
		}
	}

	if c.Tracking.HistoryLimit < 1 {
		return fmt.Errorf("tracking history limit must be at least 1")
	}

	if c.Tracking.FailureRate < 0 || c.Tracking.FailureRate > 1 {
		return fmt.Errorf("simulated carrier failure rate must be between 0 and 1")
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("S3 bucket is required when S3 is enabled")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerWindow < 1 {
		return fmt.Errorf("rate limit must allow at least one request per window")
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
