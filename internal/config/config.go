package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Token     TokenConfig
	Scheduler SchedulerConfig
	Platform  PlatformConfig
	AutoClose AutoCloseConfig
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
	Addr        string
	Password    string
	DB          int
	ConfigTTLMs int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines admin-session authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// TokenConfig holds secrets for signed action tokens.
type TokenConfig struct {
	Secret       string
	LegacySecret string
}

// SchedulerConfig tunes the per-tenant job scheduler.
type SchedulerConfig struct {
	TaskSpacingMs int
}

// PlatformConfig points at the chat platform REST API.
type PlatformConfig struct {
	BaseURL          string
	BotToken         string
	RequestTimeoutMs int
}

// AutoCloseConfig controls the stale-ticket scanner.
type AutoCloseConfig struct {
	Enabled         bool
	CheckIntervalMs int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
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
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			ConfigTTLMs: getEnvAsInt("REDIS_CONFIG_TTL_MS", 60000),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Token: TokenConfig{
			Secret:       getEnv("ACTION_TOKEN_SECRET", "dev-action-secret"),
			LegacySecret: os.Getenv("ACTION_TOKEN_LEGACY_SECRET"),
		},
		Scheduler: SchedulerConfig{
			TaskSpacingMs: getEnvAsInt("SCHEDULER_TASK_SPACING_MS", 1000),
		},
		Platform: PlatformConfig{
			BaseURL:          getEnv("PLATFORM_BASE_URL", ""),
			BotToken:         os.Getenv("PLATFORM_BOT_TOKEN"),
			RequestTimeoutMs: getEnvAsInt("PLATFORM_REQUEST_TIMEOUT_MS", 10000),
		},
		AutoClose: AutoCloseConfig{
			Enabled:         getEnvAsBool("AUTOCLOSE_ENABLED", true),
			CheckIntervalMs: getEnvAsInt("AUTOCLOSE_CHECK_INTERVAL_MS", 300000),
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

// TaskSpacing returns the per-tenant delay between scheduled tasks.
func (s SchedulerConfig) TaskSpacing() time.Duration {
	if s.TaskSpacingMs < 0 {
		return 0
	}
	return time.Duration(s.TaskSpacingMs) * time.Millisecond
}

// ConfigTTL returns the tenant-config cache lifetime.
func (r RedisConfig) ConfigTTL() time.Duration {
	if r.ConfigTTLMs <= 0 {
		return time.Minute
	}
	return time.Duration(r.ConfigTTLMs) * time.Millisecond
}

// CheckInterval returns the auto-close scan period.
func (a AutoCloseConfig) CheckInterval() time.Duration {
	if a.CheckIntervalMs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(a.CheckIntervalMs) * time.Millisecond
}

// RequestTimeout returns the platform client timeout.
func (p PlatformConfig) RequestTimeout() time.Duration {
	if p.RequestTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.RequestTimeoutMs) * time.Millisecond
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
