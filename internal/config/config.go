package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	CORS     CORS     `mapstructure:"cors"`
	AI       AI       `mapstructure:"ai"`
	Tracing  Tracing  `mapstructure:"tracing"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port        int   `mapstructure:"port"`
	MaxUploadMB int64 `mapstructure:"max_upload_mb"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORS holds the cross-origin settings for the browser frontend.
type CORS struct {
	FrontendURL string `mapstructure:"frontend_url"`
}

// AI holds the configuration for the trade review model.
type AI struct {
	ApiKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Tracing toggles the stdout OpenTelemetry exporter.
type Tracing struct {
	Enabled bool `mapstructure:"enabled"`
}

// Environment variables the deployment sets directly, without the nested key prefix.
var envBindings = map[string]string{
	"database.dsn":      "DATABASE_URL",
	"cors.frontend_url": "FRONTEND_URL",
	"ai.api_key":        "ANTHROPIC_API_KEY",
	"server.port":       "PORT",
}

// LoadConfig reads configuration from an optional config.yml in path, then
// from environment variables. A missing config file is not an error.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, env := range envBindings {
		if err = v.BindEnv(key, env); err != nil {
			return
		}
	}

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("database.dsn", "sqlite:///./trades.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("cors.frontend_url", "http://localhost:3000")
	v.SetDefault("ai.base_url", "https://api.anthropic.com")
	v.SetDefault("ai.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.rate_limit", 1)       // requests per second
	v.SetDefault("ai.rate_limit_burst", 1) // burst size
	v.SetDefault("tracing.enabled", false)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
