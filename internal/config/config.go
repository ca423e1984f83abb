package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is loaded once at process start. Services are constructed from it
// and never re-read it, so there is no hot reload path.
type Config struct {
	Log       Log       `yaml:"log"`
	Telegram  Telegram  `yaml:"telegram"`
	Storage   Storage   `yaml:"storage"`
	Upstream  Upstream  `yaml:"upstream"`
	Summary   Summary   `yaml:"summary"`
	Poller    Poller    `yaml:"poller"`
	Broadcast Broadcast `yaml:"broadcast"`
	Queue     Queue     `yaml:"queue"`
	Digest    Digest    `yaml:"digest"`
	API       API       `yaml:"api"`
}

type Log struct {
	Level    string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Console  bool   `yaml:"console" env:"LOG_CONSOLE" env-default:"true"`
	File     string `yaml:"file" env:"LOG_FILE"`
	FileOn   bool   `yaml:"file_enabled" env:"LOG_FILE_ENABLED"`
}

type Telegram struct {
	Token       string        `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	PollTimeout time.Duration `yaml:"poll_timeout" env:"TELEGRAM_POLL_TIMEOUT" env-default:"10s"`
}

type Storage struct {
	// Driver selects the backend: "sqlite", "postgres" or "memory".
	Driver      string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	Path        string        `yaml:"path" env:"STORAGE_PATH" env-default:"./data/vaultbot.db"`
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"STORAGE_BUSY_TIMEOUT" env-default:"5s"`
}

type Upstream struct {
	StatsURL      string        `yaml:"stats_url" env:"UPSTREAM_STATS_URL"`
	RebalancesURL string        `yaml:"rebalances_url" env:"UPSTREAM_REBALANCES_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT" env-default:"8s"`
}

type Summary struct {
	TTL time.Duration `yaml:"ttl" env:"SUMMARY_TTL" env-default:"60s"`
}

type Poller struct {
	Enabled  bool          `yaml:"enabled" env:"POLLER_ENABLED" env-default:"true"`
	Interval time.Duration `yaml:"interval" env:"POLLER_INTERVAL" env-default:"60s"`
	// Mode selects how a new event reaches the pipeline:
	// "inline" processes it synchronously, "queue" enqueues a durable job.
	Mode string `yaml:"mode" env:"POLLER_MODE" env-default:"inline"`
}

type Broadcast struct {
	Concurrency int           `yaml:"concurrency" env:"BROADCAST_CONCURRENCY" env-default:"8"`
	RatePerSec  int           `yaml:"rate_per_sec" env:"BROADCAST_RATE_PER_SEC" env-default:"25"`
	SendTimeout time.Duration `yaml:"send_timeout" env:"BROADCAST_SEND_TIMEOUT" env-default:"10s"`
}

type Queue struct {
	Enabled     bool          `yaml:"enabled" env:"QUEUE_ENABLED"`
	Addr        string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB          int           `yaml:"db" env:"REDIS_DB"`
	Key         string        `yaml:"key" env:"QUEUE_KEY" env-default:"vaultbot:rebalances"`
	MaxAttempts int           `yaml:"max_attempts" env:"QUEUE_MAX_ATTEMPTS" env-default:"5"`
	Backoff     time.Duration `yaml:"backoff" env:"QUEUE_BACKOFF" env-default:"2s"`
}

type Digest struct {
	Enabled  bool   `yaml:"enabled" env:"DIGEST_ENABLED"`
	Schedule string `yaml:"schedule" env:"DIGEST_SCHEDULE" env-default:"0 9 * * *"`
	Timezone string `yaml:"timezone" env:"DIGEST_TIMEZONE"`
}

type API struct {
	Enabled bool   `yaml:"enabled" env:"API_ENABLED" env-default:"true"`
	Addr    string `yaml:"addr" env:"API_ADDR" env-default:":8080"`
}

// Load reads the YAML file at path (if it exists) and applies environment
// overrides on top. A missing file is not an error: env-only deployments
// are supported.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		// Allow env vars to override file values.
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("config: telegram token is required (TELEGRAM_BOT_TOKEN)")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DatabaseURL == "" {
		return errors.New("config: storage.database_url is required for the postgres driver")
	}
	switch c.Poller.Mode {
	case "inline", "queue":
	default:
		return fmt.Errorf("config: unknown poller mode %q", c.Poller.Mode)
	}
	if c.Poller.Mode == "queue" && !c.Queue.Enabled {
		return errors.New("config: poller mode \"queue\" requires queue.enabled")
	}
	if c.Poller.Interval <= 0 {
		return errors.New("config: poller interval must be positive")
	}
	if c.Summary.TTL <= 0 {
		return errors.New("config: summary ttl must be positive")
	}
	return nil
}
