package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Duration reads "30s" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Server contains HTTP and logging settings.
type Server struct {
	Port     string `toml:"port"`
	LogLevel string `toml:"log_level"`
}

// Store selects where configs records live.
type Store struct {
	Backend       string   `toml:"backend"`
	MongoURL      string   `toml:"mongo_url"`
	MongoDatabase string   `toml:"mongo_database"`
	DatabaseURL   string   `toml:"database_url"`
	CacheTTL      Duration `toml:"cache_ttl"`
}

// Redis backs the config cache, circuit breaker, rate limiter and realtime relay.
type Redis struct {
	URL string `toml:"url"`
}

// Broker contains the RabbitMQ RPC settings.
type Broker struct {
	URL           string   `toml:"url"`
	Queue         string   `toml:"queue"`
	RPCTimeout    Duration `toml:"rpc_timeout"`
	RetryAttempts int      `toml:"retry_attempts"`
}

// Webhook contains the n8n endpoint settings.
type Webhook struct {
	BaseURL          string   `toml:"base_url"`
	Path             string   `toml:"path"`
	Timeout          Duration `toml:"timeout"`
	BreakerThreshold int      `toml:"breaker_threshold"`
	BreakerCooldown  Duration `toml:"breaker_cooldown"`
}

// Automation contains dispatch settings.
type Automation struct {
	TestMode   bool     `toml:"test_mode"`
	NumWorkers int      `toml:"num_workers"`
	JobTimeout Duration `toml:"job_timeout"`
	RateLimit  int      `toml:"rate_limit"`
}

// Realtime toggles live delivery over WebSocket.
type Realtime struct {
	Enabled bool `toml:"enabled"`
}

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `toml:"server"`
	Store      Store      `toml:"store"`
	Redis      Redis      `toml:"redis"`
	Broker     Broker     `toml:"broker"`
	Webhook    Webhook    `toml:"webhook"`
	Automation Automation `toml:"automation"`
	Realtime   Realtime   `toml:"realtime"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{Port: "8080", LogLevel: "info"},
		Store: Store{
			Backend:       BackendMongo,
			MongoDatabase: "erxes",
			CacheTTL:      Duration{30 * time.Second},
		},
		Broker: Broker{
			Queue:         "rpc_queue:erxes-api_erxes-automations",
			RPCTimeout:    Duration{30 * time.Second},
			RetryAttempts: 5,
		},
		Webhook: Webhook{
			BaseURL:          "http://localhost:5678",
			Path:             "erxes trigger/webhook",
			Timeout:          Duration{10 * time.Second},
			BreakerThreshold: 5,
			BreakerCooldown:  Duration{30 * time.Second},
		},
		Automation: Automation{
			NumWorkers: 10,
			JobTimeout: Duration{time.Minute},
		},
		Realtime: Realtime{Enabled: true},
	}
}

// Load builds the configuration from defaults, then the optional TOML file
// at path, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("config file %s not found", path)
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", cfg.Server.LogLevel)

	cfg.Store.Backend = strings.ToLower(getEnv("CONFIG_BACKEND", cfg.Store.Backend))
	cfg.Store.MongoURL = getEnv("MONGO_URL", cfg.Store.MongoURL)
	cfg.Store.MongoDatabase = getEnv("MONGO_DATABASE", cfg.Store.MongoDatabase)
	cfg.Store.DatabaseURL = getEnv("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.CacheTTL = getEnvDuration("CONFIG_CACHE_TTL", cfg.Store.CacheTTL)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)

	cfg.Broker.URL = getEnv("RABBITMQ_URL", cfg.Broker.URL)
	cfg.Broker.Queue = getEnv("AUTOMATION_QUEUE", cfg.Broker.Queue)
	cfg.Broker.RPCTimeout = getEnvDuration("RPC_TIMEOUT", cfg.Broker.RPCTimeout)
	cfg.Broker.RetryAttempts = getEnvInt("RABBITMQ_RETRY_ATTEMPTS", cfg.Broker.RetryAttempts)

	cfg.Webhook.BaseURL = getEnv("WEBHOOK_BASE_URL", cfg.Webhook.BaseURL)
	cfg.Webhook.Path = getEnv("WEBHOOK_PATH", cfg.Webhook.Path)
	cfg.Webhook.Timeout = getEnvDuration("WEBHOOK_TIMEOUT", cfg.Webhook.Timeout)
	cfg.Webhook.BreakerThreshold = getEnvInt("BREAKER_THRESHOLD", cfg.Webhook.BreakerThreshold)
	cfg.Webhook.BreakerCooldown = getEnvDuration("BREAKER_COOLDOWN", cfg.Webhook.BreakerCooldown)

	cfg.Automation.TestMode = getEnvBool("AUTOMATION_TEST_MODE", cfg.Automation.TestMode)
	cfg.Automation.NumWorkers = getEnvInt("NUM_WORKERS", cfg.Automation.NumWorkers)
	cfg.Automation.JobTimeout = getEnvDuration("JOB_TIMEOUT", cfg.Automation.JobTimeout)
	cfg.Automation.RateLimit = getEnvInt("RATE_LIMIT_PER_USER", cfg.Automation.RateLimit)

	cfg.Realtime.Enabled = getEnvBool("REALTIME_ENABLED", cfg.Realtime.Enabled)
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMongo:
		if c.Store.MongoURL == "" {
			return fmt.Errorf("MONGO_URL is required for the %s backend", BackendMongo)
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown config backend %q", c.Store.Backend)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Broker.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is required")
	}
	if c.Automation.NumWorkers <= 0 {
		return fmt.Errorf("NUM_WORKERS must be positive, got %d", c.Automation.NumWorkers)
	}
	return nil
}

// ConnString is the connection string of the selected backend.
func (c *Config) ConnString() string {
	if c.Store.Backend == BackendPostgres {
		return c.Store.DatabaseURL
	}
	return c.Store.MongoURL
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("15s") or plain milliseconds.
func getEnvDuration(key string, fallback Duration) Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return Duration{d}
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return Duration{time.Duration(ms) * time.Millisecond}
	}
	return fallback
}
