package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	CloudSign CloudSignConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CloudSignConfig configures the remote signing service client.
// BaseURL selects sandbox vs. production; ClientID is the credential
// exchanged at the token endpoint.
type CloudSignConfig struct {
	BaseURL        string
	ClientID       string
	RequestTimeout time.Duration
	// StaleMargin is subtracted from the issuer-declared token lifetime so a
	// token is refreshed before it can expire mid-request.
	StaleMargin time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// WebhookConfig holds the shared secret used to verify CloudSign callback
// signatures (HMAC-signed JWT in the Authorization header).
type WebhookConfig struct {
	Secret string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5020")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CLOUDSIGN_BASE_URL", "https://api-sandbox.cloudsign.jp")
	viper.SetDefault("CLOUDSIGN_REQUEST_TIMEOUT", 10)
	viper.SetDefault("CLOUDSIGN_TOKEN_STALE_MARGIN", 60)
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			LogLevel:     viper.GetString("LOG_LEVEL"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		CloudSign: CloudSignConfig{
			BaseURL:        viper.GetString("CLOUDSIGN_BASE_URL"),
			ClientID:       os.Getenv("CLOUDSIGN_CLIENT_ID"),
			RequestTimeout: time.Duration(viper.GetInt("CLOUDSIGN_REQUEST_TIMEOUT")) * time.Second,
			StaleMargin:    time.Duration(viper.GetInt("CLOUDSIGN_TOKEN_STALE_MARGIN")) * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("CLOUDSIGN_WEBHOOK_SECRET"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.CloudSign.ClientID == "" {
		return fmt.Errorf("CLOUDSIGN_CLIENT_ID is required")
	}
	if cfg.CloudSign.BaseURL == "" {
		return fmt.Errorf("CLOUDSIGN_BASE_URL must not be empty")
	}
	if cfg.CloudSign.RequestTimeout <= 0 {
		return fmt.Errorf("CLOUDSIGN_REQUEST_TIMEOUT must be positive")
	}
	return nil
}
