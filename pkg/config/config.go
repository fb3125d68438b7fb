package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Finnhub     FinnhubConfig    `yaml:"finnhub"`
	Series      SeriesConfig     `yaml:"series"`
	Model       ModelConfig      `yaml:"model"`
	Training    TrainingConfig   `yaml:"training"`
	Split       SplitConfig      `yaml:"split"`
	Scheduler   SchedulerConfig  `yaml:"scheduler"`
	Redis       RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	SQLite      SQLiteConfig     `yaml:"sqlite"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"3m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"30s"`
	RateLimit       struct {
		Capacity     float64 `yaml:"capacity" default:"3"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"0.2"`
	} `yaml:"rate_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type FinnhubConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url" default:"https://finnhub.io/api/v1"`
	Timeout       time.Duration `yaml:"timeout" default:"10s"`
	RetryMaxTime  time.Duration `yaml:"retry_max_time" default:"10s"`
	RatePerSecond float64       `yaml:"rate_per_second" default:"1"`
	RateBurst     int           `yaml:"rate_burst" default:"1"`
}

type SeriesConfig struct {
	Symbol       string `yaml:"symbol" default:"AAPL"`
	Resolution   string `yaml:"resolution" default:"D"`
	LookbackDays int    `yaml:"lookback_days" default:"730"`
	Backend      string `yaml:"backend" default:"csv"`
	Dir          string `yaml:"dir" default:"data"`
}

type ModelConfig struct {
	Path         string  `yaml:"path" default:"models/latest.json"`
	SeqLength    int     `yaml:"seq_length" default:"30"`
	Hidden       int     `yaml:"hidden" default:"50"`
	LearningRate float64 `yaml:"learning_rate" default:"0.001"`
	ClipNorm     float64 `yaml:"clip_norm" default:"5"`
	Seed         int64   `yaml:"seed" default:"42"`
}

type TrainingConfig struct {
	Epochs    int           `yaml:"epochs" default:"10"`
	BatchSize int           `yaml:"batch_size" default:"32"`
	Timeout   time.Duration `yaml:"timeout" default:"2m"`
}

type SplitConfig struct {
	TestRatio float64 `yaml:"test_ratio" default:"0.2"`
	Holdout   int     `yaml:"holdout"`
}

type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec" default:"0 22 * * 1-5"`
}

type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr" default:"localhost:6379"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size" default:"10"`
	Prefix    string        `yaml:"prefix" default:"fincast"`
	ResultTTL time.Duration `yaml:"result_ttl" default:"24h"`
	LockTTL   time.Duration `yaml:"lock_ttl" default:"3m"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"fincast.predictions"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"gzip"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"default"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" default:"data/runs.db"`
}

// Load applies struct defaults, then the YAML file at path (skipped when
// path is empty) and validates the result.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, and then overrides
// with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Series.Symbol = strings.ToUpper(strings.TrimSpace(v))
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Series.Symbol) == "" {
		return fmt.Errorf("series.symbol is required")
	}
	switch c.Series.Resolution {
	case "D", "W", "M":
	default:
		return fmt.Errorf("series.resolution must be D, W or M, got '%s'", c.Series.Resolution)
	}
	if c.Series.Backend != "csv" && c.Series.Backend != "clickhouse" {
		return fmt.Errorf("series.backend must be 'csv' or 'clickhouse', got '%s'", c.Series.Backend)
	}
	if c.Series.LookbackDays < 1 {
		return fmt.Errorf("series.lookback_days must be positive")
	}
	if c.Model.SeqLength < 1 || c.Model.Hidden < 1 {
		return fmt.Errorf("model.seq_length and model.hidden must be positive")
	}
	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if c.Training.Epochs < 1 || c.Training.BatchSize < 1 {
		return fmt.Errorf("training.epochs and training.batch_size must be positive")
	}
	if c.Training.Timeout <= 0 {
		return fmt.Errorf("training.timeout must be positive")
	}
	if c.Split.Holdout < 0 {
		return fmt.Errorf("split.holdout cannot be negative")
	}
	if c.Split.Holdout == 0 && (c.Split.TestRatio <= 0 || c.Split.TestRatio >= 1) {
		return fmt.Errorf("split.test_ratio must be in (0,1), got %v", c.Split.TestRatio)
	}
	if c.Scheduler.Enabled && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required when the scheduler is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
