// Package config holds the runtime configuration of the service and the
// domain constants shared by its components.
package config

import (
	"fmt"
	"log"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// AppConfig is read from the environment (optionally seeded from .env).
type AppConfig struct {
	ListenAddr     string   `env:"INCIDENBOT_LISTEN_ADDR" env-default:":8080"`
	DatabaseURL    string   `env:"INCIDENBOT_DATABASE_URL" env-default:"host=localhost user=user password=password dbname=incidenbot port=5432 sslmode=disable"`
	RedisAddr      string   `env:"INCIDENBOT_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword  string   `env:"INCIDENBOT_REDIS_PASSWORD"`
	RedisDB        int      `env:"INCIDENBOT_REDIS_DB" env-default:"0"`
	AllowedOrigins []string `env:"INCIDENBOT_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://localhost:5173"`

	GeminiAPIKey   string `env:"API_KEY"`
	GeminiModel    string `env:"INCIDENBOT_GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	GeminiEndpoint string `env:"INCIDENBOT_GEMINI_ENDPOINT" env-default:"https://generativelanguage.googleapis.com/v1beta"`

	WebhookURL string `env:"INCIDENBOT_WEBHOOK_URL" env-default:"https://hook.eu2.make.com/pqh9l7wmjwq8vc5w3cwv8n76pg9kulhg"`

	StaffPassword string `env:"INCIDENBOT_STAFF_PASSWORD" env-default:"admin123"`
	JWTSecret     string `env:"INCIDENBOT_JWT_SECRET"`

	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramStaffChatID int64  `env:"TELEGRAM_STAFF_CHAT_ID"`
	TelegramMinUrgency  int    `env:"TELEGRAM_MIN_URGENCY" env-default:"4"`

	DigestSchedule  string `env:"INCIDENBOT_DIGEST_SCHEDULE" env-default:"0 8 * * *"`
	DefaultLanguage string `env:"INCIDENBOT_DEFAULT_LANGUAGE" env-default:"es"`
	TestMode        bool   `env:"INCIDENBOT_TEST_MODE" env-default:"true"`
}

// TelegramEnabled reports whether staff alerts can be sent.
func (c *AppConfig) TelegramEnabled() bool {
	return c != nil && c.TelegramBotToken != "" && c.TelegramStaffChatID != 0
}

// Load reads .env (if present) and then the process environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: .env file not loaded, using process environment")
	}

	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if cfg.JWTSecret == "" {
		log.Println("WARNING: INCIDENBOT_JWT_SECRET not set, falling back to an insecure development secret")
		cfg.JWTSecret = "YOUR_ULTRA_SECRET_KEY_HERE"
	}
	return &cfg, nil
}
