package config

import (
	"errors"
	"strings"
	"time"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	ClientURL          string
	JWTSecret          string
	TokenTTL           time.Duration
	BcryptCost         int
	ResetTokenTTL      time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	ResendAPIKey       string
	ResendAllowedEmail string
	EmailFrom          string
	EmailDir           string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
//
// JWT_SECRET has no default on purpose: a process without a signing key must
// not come up, see Validate.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":8081"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://club:club@db:5432/club?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		ClientURL:          GetString("CLIENT_URL", "http://localhost:5173"),
		JWTSecret:          GetString("JWT_SECRET", ""),
		TokenTTL:           time.Duration(GetInt("JWT_EXPIRY_MINUTES", 1440)) * time.Minute,
		BcryptCost:         GetInt("BCRYPT_COST", 10),
		ResetTokenTTL:      time.Duration(GetInt("RESET_TOKEN_EXPIRY_HOURS", 1)) * time.Hour,
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		ResendAPIKey:       GetString("RESEND_API_KEY", ""),
		ResendAllowedEmail: GetString("RESEND_ALLOWED_EMAIL", ""),
		EmailFrom:          GetString("EMAIL_FROM", "Zappa Klubben <onboarding@resend.dev>"),
		EmailDir:           GetString("EMAIL_DIR", "./emails"),
	}
}

// Validate reports configuration the process cannot start without.
func (c APIConfig) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("BCRYPT_COST out of range")
	}
	return nil
}
