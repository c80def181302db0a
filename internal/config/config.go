package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	// Language model
	GeminiAPIKey         string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel          string `mapstructure:"GEMINI_MODEL"`
	LLMRequestsPerMinute int    `mapstructure:"LLM_REQUESTS_PER_MINUTE"`
	LLMMaxRetries        int    `mapstructure:"LLM_MAX_RETRIES"`
	ItineraryMaxAttempts int    `mapstructure:"ITINERARY_MAX_ATTEMPTS"`

	// External lookups
	UnsplashAccessKey  string        `mapstructure:"UNSPLASH_ACCESS_KEY"`
	UnsplashBaseURL    string        `mapstructure:"UNSPLASH_BASE_URL"`
	OpenWeatherAPIKey  string        `mapstructure:"OPENWEATHER_API_KEY"`
	OpenWeatherBaseURL string        `mapstructure:"OPENWEATHER_BASE_URL"`
	NominatimBaseURL   string        `mapstructure:"NOMINATIM_BASE_URL"`
	HTTPUserAgent      string        `mapstructure:"HTTP_USER_AGENT"`
	LookupCacheTTL     time.Duration `mapstructure:"LOOKUP_CACHE_TTL"`

	// Google sign-in and sessions
	GoogleOAuthClientID     string        `mapstructure:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleOAuthClientSecret string        `mapstructure:"GOOGLE_OAUTH_CLIENT_SECRET"`
	GoogleOAuthRedirectURL  string        `mapstructure:"GOOGLE_OAUTH_REDIRECT_URL"`
	GoogleUserInfoURL       string        `mapstructure:"GOOGLE_USERINFO_URL"`
	SessionEncryptionKey    string        `mapstructure:"SESSION_ENCRYPTION_KEY"` // Base64 encoded, 32 bytes
	SessionTTL              time.Duration `mapstructure:"SESSION_TTL"`
	APIRequestsPerMinute    int           `mapstructure:"API_REQUESTS_PER_MINUTE"`

	// Redis
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Notification delivery
	RabbitMQURL       string `mapstructure:"RABBITMQ_URL"`
	NotificationQueue string `mapstructure:"NOTIFICATION_QUEUE"`
	SMTPHost          string `mapstructure:"SMTP_HOST"`
	SMTPPort          string `mapstructure:"SMTP_PORT"`
	SMTPUser          string `mapstructure:"SMTP_USER"`
	SMTPPassword      string `mapstructure:"SMTP_PASSWORD"`
	MailFrom          string `mapstructure:"MAIL_FROM"`
}

var envKeys = []string{
	"PORT", "GIN_MODE", "CLIENT_URL",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"GEMINI_API_KEY", "GEMINI_MODEL", "LLM_REQUESTS_PER_MINUTE", "LLM_MAX_RETRIES", "ITINERARY_MAX_ATTEMPTS",
	"UNSPLASH_ACCESS_KEY", "UNSPLASH_BASE_URL", "OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL",
	"NOMINATIM_BASE_URL", "HTTP_USER_AGENT", "LOOKUP_CACHE_TTL",
	"GOOGLE_OAUTH_CLIENT_ID", "GOOGLE_OAUTH_CLIENT_SECRET", "GOOGLE_OAUTH_REDIRECT_URL", "GOOGLE_USERINFO_URL",
	"SESSION_ENCRYPTION_KEY", "SESSION_TTL", "API_REQUESTS_PER_MINUTE",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"RABBITMQ_URL", "NOTIFICATION_QUEUE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "MAIL_FROM",
}

// LoadConfig loads configuration from environment variables using Viper.
// When CONFIG_FILE points at a YAML (or any viper-supported) file it is read first
// and environment variables override its values.
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("LLM_REQUESTS_PER_MINUTE", 30)
	v.SetDefault("LLM_MAX_RETRIES", 2)
	v.SetDefault("ITINERARY_MAX_ATTEMPTS", 3)
	v.SetDefault("UNSPLASH_BASE_URL", "https://api.unsplash.com")
	v.SetDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org")
	v.SetDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("HTTP_USER_AGENT", "tripplanner/1.0")
	v.SetDefault("LOOKUP_CACHE_TTL", 6*time.Hour)
	v.SetDefault("GOOGLE_USERINFO_URL", "https://www.googleapis.com/oauth2/v1/userinfo")
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("API_REQUESTS_PER_MINUTE", 10)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NOTIFICATION_QUEUE", "trip-notifications")
	v.SetDefault("SMTP_PORT", "2525")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("CONFIG_FILE")

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	if c.SessionEncryptionKey == "" {
		return errors.New("SESSION_ENCRYPTION_KEY is required")
	}
	if _, err := c.SessionKey(); err != nil {
		return err
	}
	if c.ItineraryMaxAttempts < 1 {
		return errors.New("ITINERARY_MAX_ATTEMPTS must be at least 1")
	}
	if (c.GoogleOAuthClientID == "") != (c.GoogleOAuthClientSecret == "") {
		return errors.New("GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET must be set together")
	}
	return nil
}

// SessionKey decodes SESSION_ENCRYPTION_KEY.
func (c *Config) SessionKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.SessionEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode SESSION_ENCRYPTION_KEY from base64: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("SESSION_ENCRYPTION_KEY must be a 32-byte key (AES-256), after base64 decoding")
	}
	return key, nil
}

// OAuthCodeFlowEnabled reports whether the redirect based sign-in is configured.
func (c *Config) OAuthCodeFlowEnabled() bool {
	return c.GoogleOAuthClientID != "" && c.GoogleOAuthRedirectURL != ""
}
