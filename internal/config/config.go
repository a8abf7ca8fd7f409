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
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Policy       PolicyConfig
	Escalation   EscalationConfig
	TicketNumber TicketNumberConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// PublicRateLimit caps anonymous submissions per client IP per minute.
	PublicRateLimit int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer-token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
}

// PolicyConfig drives authorization and SLA defaults.
type PolicyConfig struct {
	CapabilitiesFile string
	GlobalRoles      []string
	DefaultSLAHours  int
	Timezone         string
}

// EscalationConfig drives the automatic sweep.
type EscalationConfig struct {
	Enabled        bool
	Schedule       string
	RatePerSecond  float64
	LockTTLSeconds int
	CandidateLimit int
	LockKey        string
}

// TicketNumberConfig selects the daily sequence backend: "postgres", "redis"
// or "memory".
type TicketNumberConfig struct {
	Backend    string
	RedisKey   string
	MaxRetries int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rate, err := strconv.ParseFloat(getEnv("ESCALATION_RATE_PER_SECOND", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ESCALATION_RATE_PER_SECOND: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			PublicRateLimit:       getEnvAsInt("PUBLIC_RATE_LIMIT_PER_MINUTE", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:                getEnv("AUTH_JWT_ISSUER", "ticket-escalation"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Policy: PolicyConfig{
			CapabilitiesFile: os.Getenv("POLICY_CAPABILITIES_FILE"),
			GlobalRoles:      getEnvAsList("POLICY_GLOBAL_ROLES", []string{"ADMIN", "DIRECTOR"}),
			DefaultSLAHours:  getEnvAsInt("POLICY_DEFAULT_SLA_HOURS", 24),
			Timezone:         getEnv("POLICY_TIMEZONE", "UTC"),
		},
		Escalation: EscalationConfig{
			Enabled:        getEnvAsBool("ESCALATION_SWEEP_ENABLED", true),
			Schedule:       getEnv("ESCALATION_SWEEP_SCHEDULE", "@every 5m"),
			RatePerSecond:  rate,
			LockTTLSeconds: getEnvAsInt("ESCALATION_LOCK_TTL_SECONDS", 240),
			CandidateLimit: getEnvAsInt("ESCALATION_CANDIDATE_LIMIT", 500),
			LockKey:        getEnv("ESCALATION_LOCK_KEY", "escalation:sweep:lock"),
		},
		TicketNumber: TicketNumberConfig{
			Backend:    getEnv("TICKET_NUMBER_BACKEND", "postgres"),
			RedisKey:   getEnv("TICKET_NUMBER_REDIS_KEY", "ticket_seq"),
			MaxRetries: getEnvAsInt("TICKET_NUMBER_MAX_RETRIES", 3),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if _, err := cfg.Policy.Location(); err != nil {
		return nil, fmt.Errorf("invalid POLICY_TIMEZONE: %w", err)
	}
	switch cfg.TicketNumber.Backend {
	case "postgres", "redis", "memory":
	default:
		return nil, fmt.Errorf("invalid TICKET_NUMBER_BACKEND %q", cfg.TicketNumber.Backend)
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

// Location resolves the timezone ticket numbers are dated in.
func (p PolicyConfig) Location() (*time.Location, error) {
	return time.LoadLocation(p.Timezone)
}

// DefaultSLA returns the fallback SLA duration.
func (p PolicyConfig) DefaultSLA() time.Duration {
	return time.Duration(p.DefaultSLAHours) * time.Hour
}

// LockTTL returns how long a sweep holds the distributed lock.
func (e EscalationConfig) LockTTL() time.Duration {
	return time.Duration(e.LockTTLSeconds) * time.Second
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
