package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env            string
	Port           int
	APIPrefix      string
	BackendTimeout time.Duration

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Dashboard DashboardConfig
	Invoices  InvoiceConfig
	Push      PushConfig
	Email     EmailConfig
	Reminders ReminderConfig
	Billing   BillingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	ProfileTTL   time.Duration
	RecentLimit  int
}

// InvoiceConfig controls invoice rendering storage and signed download links.
type InvoiceConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// PushConfig configures the push relay client and its dispatch queue.
type PushConfig struct {
	Enabled    bool
	Endpoint   string
	AccessKey  string
	Workers    int
	BufferSize int
	Timeout    time.Duration
}

// EmailConfig enables the optional SendGrid reminder channel.
type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

// ReminderConfig schedules automatic overdue reminders. Empty Cron disables the scheduler.
type ReminderConfig struct {
	Cron string
}

// BillingConfig holds presentational billing settings.
type BillingConfig struct {
	CurrencySymbol string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.BackendTimeout = parseDuration(v.GetString("BACKEND_TIMEOUT"), 30*time.Second)

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 30*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	recent := v.GetInt("DASHBOARD_RECENT_LIMIT")
	if recent <= 0 {
		recent = 5
	}
	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("ENABLE_DASHBOARD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		ProfileTTL:   parseDuration(v.GetString("PROFILE_CACHE_TTL"), 24*time.Hour),
		RecentLimit:  recent,
	}

	cfg.Invoices = InvoiceConfig{
		StorageDir:      v.GetString("INVOICE_STORAGE_DIR"),
		SignedURLSecret: v.GetString("INVOICE_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("INVOICE_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("INVOICE_CLEANUP_INTERVAL"), 6*time.Hour),
	}

	cfg.Push = PushConfig{
		Enabled:    v.GetBool("ENABLE_PUSH"),
		Endpoint:   v.GetString("PUSH_ENDPOINT"),
		AccessKey:  v.GetString("PUSH_ACCESS_TOKEN"),
		Workers:    v.GetInt("PUSH_WORKERS"),
		BufferSize: v.GetInt("PUSH_BUFFER_SIZE"),
		Timeout:    parseDuration(v.GetString("PUSH_TIMEOUT"), 10*time.Second),
	}

	cfg.Email = EmailConfig{
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromEmail:      v.GetString("SENDGRID_FROM_EMAIL"),
		FromName:       v.GetString("SENDGRID_FROM_NAME"),
	}

	cfg.Reminders = ReminderConfig{Cron: strings.TrimSpace(v.GetString("REMINDER_CRON"))}

	cfg.Billing = BillingConfig{CurrencySymbol: v.GetString("CURRENCY_SYMBOL")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("BACKEND_TIMEOUT", "30s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_billing")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "720h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DASHBOARD_CACHE", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("PROFILE_CACHE_TTL", "24h")
	v.SetDefault("DASHBOARD_RECENT_LIMIT", 5)

	v.SetDefault("INVOICE_STORAGE_DIR", "./invoices")
	v.SetDefault("INVOICE_SIGNED_URL_SECRET", "dev_invoice_secret")
	v.SetDefault("INVOICE_SIGNED_URL_TTL", "30m")
	v.SetDefault("INVOICE_CLEANUP_INTERVAL", "6h")

	v.SetDefault("ENABLE_PUSH", false)
	v.SetDefault("PUSH_ENDPOINT", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("PUSH_ACCESS_TOKEN", "")
	v.SetDefault("PUSH_WORKERS", 2)
	v.SetDefault("PUSH_BUFFER_SIZE", 64)
	v.SetDefault("PUSH_TIMEOUT", "10s")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("SENDGRID_FROM_EMAIL", "")
	v.SetDefault("SENDGRID_FROM_NAME", "SMA Billing")

	v.SetDefault("REMINDER_CRON", "")
	v.SetDefault("CURRENCY_SYMBOL", "$")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
