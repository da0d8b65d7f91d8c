package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	EmailProviderConsole  = "console"
	EmailProviderSendgrid = "sendgrid"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Email         EmailConfig
	Push          PushConfig
	Notifications NotificationConfig
	Reminders     ReminderConfig
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
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EmailConfig selects and configures the email channel adapter.
type EmailConfig struct {
	Provider        string
	SendgridAPIKey  string
	FromName        string
	FromAddress     string
	SubjectPrefix   string
	Timeout         time.Duration
	FrontendBaseURL string
}

// PushConfig tunes the websocket hub backing in-app push.
type PushConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// NotificationConfig governs the fan-out dispatcher and preference lookups.
type NotificationConfig struct {
	Concurrency        int
	AdapterTimeout     time.Duration
	PreferenceCache    bool
	PreferenceCacheTTL time.Duration
}

// ReminderConfig toggles the lead-time reminder trigger.
type ReminderConfig struct {
	Enabled  bool
	CronSpec string
	Workers  int
	DedupTTL time.Duration
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	provider := strings.ToLower(strings.TrimSpace(v.GetString("EMAIL_PROVIDER")))
	if provider != EmailProviderSendgrid {
		provider = EmailProviderConsole
	}
	cfg.Email = EmailConfig{
		Provider:        provider,
		SendgridAPIKey:  v.GetString("SENDGRID_API_KEY"),
		FromName:        v.GetString("EMAIL_FROM_NAME"),
		FromAddress:     v.GetString("EMAIL_FROM_ADDRESS"),
		SubjectPrefix:   v.GetString("EMAIL_SUBJECT_PREFIX"),
		Timeout:         parseDuration(v.GetString("EMAIL_TIMEOUT"), 10*time.Second),
		FrontendBaseURL: strings.TrimRight(v.GetString("FRONTEND_BASE_URL"), "/"),
	}

	cfg.Push = PushConfig{
		WriteTimeout: parseDuration(v.GetString("PUSH_WRITE_TIMEOUT"), 5*time.Second),
		PingInterval: parseDuration(v.GetString("PUSH_PING_INTERVAL"), 30*time.Second),
	}

	concurrency := v.GetInt("NOTIFY_CONCURRENCY")
	if concurrency <= 0 {
		concurrency = 8
	}
	cfg.Notifications = NotificationConfig{
		Concurrency:        concurrency,
		AdapterTimeout:     parseDuration(v.GetString("NOTIFY_ADAPTER_TIMEOUT"), 15*time.Second),
		PreferenceCache:    v.GetBool("ENABLE_PREFERENCE_CACHE"),
		PreferenceCacheTTL: parseDuration(v.GetString("PREFERENCE_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Reminders = ReminderConfig{
		Enabled:  v.GetBool("ENABLE_REMINDERS"),
		CronSpec: v.GetString("REMINDER_CRON_SPEC"),
		Workers:  v.GetInt("REMINDER_WORKERS"),
		DedupTTL: parseDuration(v.GetString("REMINDER_DEDUP_TTL"), 26*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lms_calls")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EMAIL_PROVIDER", EmailProviderConsole)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_NAME", "LMS")
	v.SetDefault("EMAIL_FROM_ADDRESS", "no-reply@localhost")
	v.SetDefault("EMAIL_SUBJECT_PREFIX", "")
	v.SetDefault("EMAIL_TIMEOUT", "10s")
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")

	v.SetDefault("PUSH_WRITE_TIMEOUT", "5s")
	v.SetDefault("PUSH_PING_INTERVAL", "30s")

	v.SetDefault("NOTIFY_CONCURRENCY", 8)
	v.SetDefault("NOTIFY_ADAPTER_TIMEOUT", "15s")
	v.SetDefault("ENABLE_PREFERENCE_CACHE", false)
	v.SetDefault("PREFERENCE_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_REMINDERS", false)
	v.SetDefault("REMINDER_CRON_SPEC", "* * * * *")
	v.SetDefault("REMINDER_WORKERS", 2)
	v.SetDefault("REMINDER_DEDUP_TTL", "26h")
}

// isMissingFile reports whether viper failed only because the explicit .env path is absent.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
