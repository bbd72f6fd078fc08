package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Policies for tickets filed while no agent is registered.
const (
	UnassignedPolicyAllow  = "allow"
	UnassignedPolicyReject = "reject"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig          `yaml:"app"`
	Store        StoreConfig        `yaml:"store"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Logger       LoggerConfig       `yaml:"logger"`
	Auth         AuthConfig         `yaml:"auth"`
	Tickets      TicketConfig       `yaml:"tickets"`
	Notification NotificationConfig `yaml:"notification"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `yaml:"name"`
	Env                   string `yaml:"env"`
	Host                  string `yaml:"host"`
	Port                  string `yaml:"port"`
	Version               string `yaml:"version"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver        string `yaml:"driver"`
	IDStrategy    string `yaml:"id_strategy"`
	SnowflakeNode int64  `yaml:"snowflake_node"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	RunMigrations  bool   `yaml:"run_migrations"`
	MigrationsDir  string `yaml:"migrations_dir"`
	ConnMaxIdleSec int32  `yaml:"conn_max_idle_seconds"`
	ConnMaxLifeSec int32  `yaml:"conn_max_life_seconds"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig enables export of domain events when brokers are set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether at least one broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `yaml:"jwt_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	BcryptCost            int    `yaml:"bcrypt_cost"`
}

// TicketConfig holds lifecycle policies.
type TicketConfig struct {
	UnassignedPolicy string `yaml:"unassigned_policy"`
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string `yaml:"email_from"`
	WebhookURL string `yaml:"webhook_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:                  "service-desk",
			Env:                   "development",
			Host:                  "0.0.0.0",
			Port:                  "8080",
			Version:               "dev",
			RequestTimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Driver:     StoreDriverPostgres,
			IDStrategy: "sequence",
		},
		Postgres: PostgresConfig{
			MaxConns:       10,
			MinConns:       2,
			RunMigrations:  true,
			MigrationsDir:  "migrations",
			ConnMaxIdleSec: 30,
			ConnMaxLifeSec: 300,
		},
		Kafka: KafkaConfig{
			Topic: "service-desk.ticket-events",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			JWTSecret:             "dev-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            12,
		},
		Tickets: TicketConfig{
			UnassignedPolicy: UnassignedPolicyAllow,
		},
		Notification: NotificationConfig{
			EmailFrom: "noreply@example.com",
		},
	}
}

// Load reads configuration from an optional YAML file, then .env, then
// environment variables, each layer overriding the previous one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := loadFile(getEnv("CONFIG_FILE", "config.yaml"), cfg); err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", strconv.Itoa(cfg.Redis.DB)))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnv("APP_PORT", cfg.App.Port)
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.App.RequestTimeoutSeconds = getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", cfg.App.RequestTimeoutSeconds)

	cfg.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", cfg.Store.Driver))
	cfg.Store.IDStrategy = strings.ToLower(getEnv("ID_STRATEGY", cfg.Store.IDStrategy))
	cfg.Store.SnowflakeNode = int64(getEnvAsInt("SNOWFLAKE_NODE", int(cfg.Store.SnowflakeNode)))

	cfg.Postgres.DSN = getEnv("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Postgres.MaxConns = int32(getEnvAsInt("POSTGRES_MAX_CONNS", int(cfg.Postgres.MaxConns)))
	cfg.Postgres.MinConns = int32(getEnvAsInt("POSTGRES_MIN_CONNS", int(cfg.Postgres.MinConns)))
	cfg.Postgres.RunMigrations = getEnvAsBool("POSTGRES_RUN_MIGRATIONS", cfg.Postgres.RunMigrations)
	cfg.Postgres.MigrationsDir = getEnv("POSTGRES_MIGRATIONS_DIR", cfg.Postgres.MigrationsDir)
	cfg.Postgres.ConnMaxIdleSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", int(cfg.Postgres.ConnMaxIdleSec)))
	cfg.Postgres.ConnMaxLifeSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", int(cfg.Postgres.ConnMaxLifeSec)))

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = redisDB

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)

	cfg.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTokenTTLMinutes = getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", cfg.Auth.AccessTokenTTLMinutes)
	cfg.Auth.BcryptCost = getEnvAsInt("AUTH_BCRYPT_COST", cfg.Auth.BcryptCost)

	cfg.Tickets.UnassignedPolicy = strings.ToLower(getEnv("TICKET_UNASSIGNED_POLICY", cfg.Tickets.UnassignedPolicy))

	cfg.Notification.EmailFrom = getEnv("NOTIFY_EMAIL_FROM", cfg.Notification.EmailFrom)
	cfg.Notification.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", cfg.Notification.WebhookURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Tickets.UnassignedPolicy {
	case UnassignedPolicyAllow, UnassignedPolicyReject:
	default:
		return fmt.Errorf("invalid TICKET_UNASSIGNED_POLICY %q", c.Tickets.UnassignedPolicy)
	}
	if c.Store.Driver == StoreDriverPostgres && c.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
	}
	return nil
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

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
