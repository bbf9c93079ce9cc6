package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Telegram TelegramConfig
	Session  SessionConfig
	Presence PresenceConfig
	Profile  ProfileConfig
	Uploads  UploadConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// TelegramConfig wires the bot integration. An empty BotToken disables
// the bot entirely (dev mode: no Telegram auth, no notifications).
type TelegramConfig struct {
	BotToken        string
	BotUsername     string
	APIBaseURL      string
	AdminTelegramID int64
	SiteURL         string
	PollTimeoutSec  int
}

// SessionConfig controls opaque session token retention.
type SessionConfig struct {
	TTLHours               int
	LoginTokenTTLMinutes   int
	CleanupIntervalMinutes int
}

// PresenceConfig holds the presence/typing tracker timeouts.
type PresenceConfig struct {
	OnlineTimeoutSeconds     int
	PurgeTimeoutSeconds      int
	BroadcastIntervalSeconds int
	TypingTimeoutSeconds     int
}

// ProfileConfig throttles outbound Telegram profile refresh calls.
type ProfileConfig struct {
	RefreshCooldownMinutes int
	AvatarSweepHours       int
	RequestsPerSecond      float64
}

// UploadConfig locates stored avatars and attachments.
type UploadConfig struct {
	Dir string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	adminTelegramID, err := strconv.ParseInt(getEnv("ADMIN_TELEGRAM_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("TELEGRAM_PROFILE_RPS", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_PROFILE_RPS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "zapret-tracker"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Telegram: TelegramConfig{
			BotToken:        os.Getenv("BOT_TOKEN"),
			BotUsername:     os.Getenv("BOT_USERNAME"),
			APIBaseURL:      getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
			AdminTelegramID: adminTelegramID,
			SiteURL:         getEnv("SITE_URL", "http://localhost:3000"),
			PollTimeoutSec:  getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 25),
		},
		Session: SessionConfig{
			TTLHours:               getEnvAsInt("SESSION_TTL_HOURS", 720),
			LoginTokenTTLMinutes:   getEnvAsInt("LOGIN_TOKEN_TTL_MINUTES", 10),
			CleanupIntervalMinutes: getEnvAsInt("SESSION_CLEANUP_INTERVAL_MINUTES", 5),
		},
		Presence: PresenceConfig{
			OnlineTimeoutSeconds:     getEnvAsInt("PRESENCE_ONLINE_TIMEOUT_SECONDS", 60),
			PurgeTimeoutSeconds:      getEnvAsInt("PRESENCE_PURGE_TIMEOUT_SECONDS", 120),
			BroadcastIntervalSeconds: getEnvAsInt("PRESENCE_BROADCAST_INTERVAL_SECONDS", 10),
			TypingTimeoutSeconds:     getEnvAsInt("TYPING_TIMEOUT_SECONDS", 4),
		},
		Profile: ProfileConfig{
			RefreshCooldownMinutes: getEnvAsInt("PROFILE_REFRESH_COOLDOWN_MINUTES", 30),
			AvatarSweepHours:       getEnvAsInt("AVATAR_SWEEP_HOURS", 6),
			RequestsPerSecond:      rps,
		},
		Uploads: UploadConfig{
			Dir: getEnv("UPLOAD_DIR", "uploads"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Enabled reports whether the bot integration is configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

// SiteIsHTTPS reports whether SITE_URL can host a Telegram WebApp button.
func (t TelegramConfig) SiteIsHTTPS() bool {
	return strings.HasPrefix(t.SiteURL, "https://")
}

// SessionTTL returns the session retention window.
func (s SessionConfig) SessionTTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// LoginTokenTTL returns the deep-link handshake token lifetime.
func (s SessionConfig) LoginTokenTTL() time.Duration {
	return time.Duration(s.LoginTokenTTLMinutes) * time.Minute
}

// CleanupInterval returns the maintenance loop period.
func (s SessionConfig) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalMinutes) * time.Minute
}

// OnlineTimeout is the liveness threshold for the online list.
func (p PresenceConfig) OnlineTimeout() time.Duration {
	return time.Duration(p.OnlineTimeoutSeconds) * time.Second
}

// PurgeTimeout is the hard threshold after which entries are dropped.
func (p PresenceConfig) PurgeTimeout() time.Duration {
	return time.Duration(p.PurgeTimeoutSeconds) * time.Second
}

// BroadcastInterval is the cleanup-and-broadcast tick period.
func (p PresenceConfig) BroadcastInterval() time.Duration {
	return time.Duration(p.BroadcastIntervalSeconds) * time.Second
}

// TypingTimeout is the typing indicator expiry.
func (p PresenceConfig) TypingTimeout() time.Duration {
	return time.Duration(p.TypingTimeoutSeconds) * time.Second
}

// RefreshCooldown is the minimum gap between profile refreshes per user.
func (p ProfileConfig) RefreshCooldown() time.Duration {
	return time.Duration(p.RefreshCooldownMinutes) * time.Minute
}

// AvatarSweepInterval is the period of the full avatar refresh pass.
func (p ProfileConfig) AvatarSweepInterval() time.Duration {
	return time.Duration(p.AvatarSweepHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
