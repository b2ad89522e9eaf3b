package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	Server   ServerConfig
	CORS     CORSConfig
	Log      LogConfig
	Redis    RedisConfig
	SMS      SMSConfig
	Seed     SeedConfig
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

type ServerConfig struct {
	Port        string
	GinMode     string
	FrontendURL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig enables the cross-instance notification relay when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// SMSConfig holds Twilio credentials; SMS is logged instead of sent when any is empty
type SMSConfig struct {
	AccountSID         string
	AuthToken          string
	FromPhone          string
	BaseURL            string
	DefaultCountryCode string
}

// Enabled reports whether SMS credentials are complete
func (s SMSConfig) Enabled() bool {
	return s.AccountSID != "" && s.AuthToken != "" && s.FromPhone != ""
}

type SeedConfig struct {
	SuperAdminEmail    string
	SuperAdminPassword string
	SuperAdminName     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "hms")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("ACCESS_TOKEN_EXPIRY", "24h")
	v.SetDefault("PORT", "8000")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CHANNEL", "hms:notifications")
	v.SetDefault("TWILIO_BASE_URL", "https://api.twilio.com")
	v.SetDefault("SMS_DEFAULT_COUNTRY_CODE", "+91")
	v.SetDefault("SEED_SUPERADMIN_NAME", "Super Admin")
}

// LoadConfig reads .env (if present) and the process environment
func LoadConfig() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
		},
		JWT: JWTConfig{
			Secret:            v.GetString("JWT_SECRET"),
			AccessTokenExpiry: parseDuration(v.GetString("ACCESS_TOKEN_EXPIRY"), 24*time.Hour),
		},
		Server: ServerConfig{
			Port:        v.GetString("PORT"),
			GinMode:     v.GetString("GIN_MODE"),
			FrontendURL: strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseOrigins(v.GetString("ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Channel:  v.GetString("REDIS_CHANNEL"),
		},
		SMS: SMSConfig{
			AccountSID:         v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:          v.GetString("TWILIO_AUTH_TOKEN"),
			FromPhone:          v.GetString("TWILIO_FROM_PHONE"),
			BaseURL:            v.GetString("TWILIO_BASE_URL"),
			DefaultCountryCode: v.GetString("SMS_DEFAULT_COUNTRY_CODE"),
		},
		Seed: SeedConfig{
			SuperAdminEmail:    v.GetString("SEED_SUPERADMIN_EMAIL"),
			SuperAdminPassword: v.GetString("SEED_SUPERADMIN_PASSWORD"),
			SuperAdminName:     v.GetString("SEED_SUPERADMIN_NAME"),
		},
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseOrigins(s string) []string {
	origins := []string{}
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
