// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	Store    StoreConfig
	Queue    QueueConfig
	Pipeline PipelineConfig
	Cleanup  CleanupConfig
	Provider ProviderConfig
	Events   EventsConfig
}

type StoreConfig struct {
	Driver      string // postgres | mysql | sqlite
	PostgresDSN string
	MySQLDSN    string
	SQLitePath  string
	MaxConns    int32
}

type QueueConfig struct {
	Backend           string // redis | inline
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	QueueKey          string
	ProcessingKey     string
	VisibilityTimeout time.Duration
	Workers           int
}

type PipelineConfig struct {
	StageTimeout  time.Duration
	StageRetries  int
	MinDraftWords int
	TargetWords   int
	MinScore      float64
}

type CleanupConfig struct {
	MaxAge   time.Duration
	Interval time.Duration
	Strategy string // all | status
}

type ProviderConfig struct {
	Kind           string // llm | stub
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTimeout     time.Duration
	ImageSearchURL string
	ImageSearchKey string
	ImagesPerPost  int
}

type EventsConfig struct {
	RabbitURL string
	Exchange  string
}

// Load reads .env (if present) and then the environment.
func Load() *Config {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() *Config {
	return &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
			MySQLDSN:    getEnv("MYSQL_DSN", ""),
			SQLitePath:  getEnv("SQLITE_PATH", "blog-jobs.db"),
			MaxConns:    int32(getEnvAsInt("DB_MAX_CONNS", 10)),
		},
		Queue: QueueConfig{
			Backend:           strings.ToLower(getEnv("QUEUE_BACKEND", "redis")),
			RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:     getEnv("REDIS_PASSWORD", ""),
			RedisDB:           getEnvAsInt("REDIS_DB", 0),
			QueueKey:          getEnv("REDIS_QUEUE_KEY", "blog-jobs:queue"),
			ProcessingKey:     getEnv("REDIS_PROCESSING_KEY", "blog-jobs:processing"),
			VisibilityTimeout: getEnvAsDuration("REDIS_VISIBILITY_TIMEOUT", 15*time.Minute),
			Workers:           getEnvAsInt("WORKERS", 4),
		},
		Pipeline: PipelineConfig{
			StageTimeout:  getEnvAsDuration("STAGE_TIMEOUT", 2*time.Minute),
			StageRetries:  getEnvAsInt("STAGE_RETRIES", 0),
			MinDraftWords: getEnvAsInt("MIN_DRAFT_WORDS", 100),
			TargetWords:   getEnvAsInt("TARGET_WORDS", 500),
			MinScore:      getEnvAsFloat("MIN_SCORE", 8),
		},
		Cleanup: CleanupConfig{
			MaxAge:   getEnvAsDuration("CLEANUP_MAX_AGE", 24*time.Hour),
			Interval: getEnvAsDuration("CLEANUP_INTERVAL", time.Hour),
			Strategy: strings.ToLower(getEnv("CLEANUP_STRATEGY", "status")),
		},
		Provider: ProviderConfig{
			Kind:           strings.ToLower(getEnv("STAGE_PROVIDER", "llm")),
			LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			LLMAPIKey:      getEnv("LLM_API_KEY", ""),
			LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
			ImageSearchURL: getEnv("IMAGE_SEARCH_URL", ""),
			ImageSearchKey: getEnv("IMAGE_SEARCH_KEY", ""),
			ImagesPerPost:  getEnvAsInt("IMAGES_PER_POST", 3),
		},
		Events: EventsConfig{
			RabbitURL: getEnv("RABBIT_URL", ""),
			Exchange:  getEnv("RABBIT_EXCHANGE", "blog-jobs.events"),
		},
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for STORE_DRIVER=postgres"))
		}
	case "mysql":
		if c.Store.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required for STORE_DRIVER=mysql"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Queue.Backend {
	case "redis", "inline":
	default:
		errs = append(errs, fmt.Errorf("unknown QUEUE_BACKEND %q", c.Queue.Backend))
	}
	if c.Queue.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}

	switch c.Cleanup.Strategy {
	case "all", "status":
	default:
		errs = append(errs, fmt.Errorf("unknown CLEANUP_STRATEGY %q", c.Cleanup.Strategy))
	}
	if c.Cleanup.MaxAge <= 0 {
		errs = append(errs, errors.New("CLEANUP_MAX_AGE must be positive"))
	}

	switch c.Provider.Kind {
	case "llm":
		if c.Provider.LLMAPIKey == "" {
			errs = append(errs, errors.New("LLM_API_KEY is required for STAGE_PROVIDER=llm"))
		}
	case "stub":
	default:
		errs = append(errs, fmt.Errorf("unknown STAGE_PROVIDER %q", c.Provider.Kind))
	}

	if c.Pipeline.StageRetries < 0 {
		errs = append(errs, errors.New("STAGE_RETRIES must not be negative"))
	}
	if c.Pipeline.MinDraftWords <= 0 || c.Pipeline.TargetWords < c.Pipeline.MinDraftWords {
		errs = append(errs, errors.New("need 0 < MIN_DRAFT_WORDS <= TARGET_WORDS"))
	}

	return errors.Join(errs...)
}

// StoreDSN returns the DSN for the configured driver.
func (c *Config) StoreDSN() string {
	switch c.Store.Driver {
	case "mysql":
		return c.Store.MySQLDSN
	case "sqlite":
		return c.Store.SQLitePath
	default:
		return c.Store.PostgresDSN
	}
}

// RedactDSN masks the password of URL-style and user:pass@ DSNs for logging.
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil && u.Host != "" {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return u.String()
		}
		return dsn
	}
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	colon := strings.Index(dsn[:at], ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:colon+1] + "xxxxx" + dsn[at:]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
