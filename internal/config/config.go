package config

import (
	"strings"
	"time"

	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Webhook   WebhookConfig
	Clerk     ClerkConfig
	RateLimit RateLimitConfig
	LogLevel  string
	// ReconcileInterval of 0 disables the metadata repair pass.
	ReconcileInterval time.Duration
	CORSOrigins       []string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoDBConfig; an empty URI selects the in-memory user repository.
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// RedisConfig; an empty Host disables Redis-backed components.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type WebhookConfig struct {
	Secret    string
	DedupeTTL time.Duration
	// MaxBodyBytes caps the accepted delivery size.
	MaxBodyBytes int64
}

type ClerkConfig struct {
	SecretKey          string
	APIURL             string
	Issuer             string
	ClientID           string
	JWTKey             string
	AllowInsecureToken bool
}

type RateLimitConfig struct {
	Enabled  bool
	RPS      float64
	Burst    int
	UseRedis bool
	Window   time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "imaginify")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CLERK_API_URL", "https://api.clerk.com")
	viper.SetDefault("WEBHOOK_DEDUPE_TTL", 86400)
	viper.SetDefault("WEBHOOK_MAX_BODY_BYTES", 1<<20)
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("RECONCILE_INTERVAL", 300)
	viper.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Webhook: WebhookConfig{
			Secret:       viper.GetString("WEBHOOK_SECRET"),
			DedupeTTL:    time.Duration(viper.GetInt("WEBHOOK_DEDUPE_TTL")) * time.Second,
			MaxBodyBytes: viper.GetInt64("WEBHOOK_MAX_BODY_BYTES"),
		},
		Clerk: ClerkConfig{
			SecretKey:          viper.GetString("CLERK_SECRET_KEY"),
			APIURL:             viper.GetString("CLERK_API_URL"),
			Issuer:             viper.GetString("CLERK_ISSUER"),
			ClientID:           viper.GetString("CLERK_CLIENT_ID"),
			JWTKey:             viper.GetString("CLERK_JWT_KEY"),
			AllowInsecureToken: viper.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:      viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:    viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis: viper.GetBool("RATE_LIMIT_USE_REDIS"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		LogLevel:          viper.GetString("LOG_LEVEL"),
		ReconcileInterval: time.Duration(viper.GetInt("RECONCILE_INTERVAL")) * time.Second,
		CORSOrigins:       splitList(viper.GetString("CORS_ORIGINS")),
	}

	// Missing secrets are reported, not fatal: the webhook answers 500 until
	// WEBHOOK_SECRET is provided.
	if cfg.Webhook.Secret == "" {
		logger.Warnf("WEBHOOK_SECRET is not set; webhook deliveries will be rejected")
	}
	if cfg.MongoDB.URI == "" {
		logger.Warnf("MONGODB_URI is not set; users are kept in memory")
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
