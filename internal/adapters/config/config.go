package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tripmind/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Model         ModelConfig
	Turn          TurnConfig
	Session       SessionConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	Enrichment    EnrichmentConfig
	Intent        IntentConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"tripmind"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8000"`
	AllowedOrigins  []string      `envconfig:"WS_ALLOWED_ORIGINS"`
	PingInterval    time.Duration `envconfig:"WS_PING_INTERVAL" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ModelConfig selects the language model behind the ADK gateway
type ModelConfig struct {
	Provider      string  `envconfig:"MODEL_PROVIDER" default:"gemini"` // gemini|openai
	Name          string  `envconfig:"GOOGLE_GENAI_MODEL" default:"gemini-2.0-flash"`
	GoogleAPIKey  string  `envconfig:"GOOGLE_API_KEY"`
	UseVertexAI   bool    `envconfig:"GOOGLE_GENAI_USE_VERTEXAI" default:"false"`
	Project       string  `envconfig:"GOOGLE_CLOUD_PROJECT"`
	Location      string  `envconfig:"GOOGLE_CLOUD_LOCATION" default:"us-central1"`
	OpenAIKey     string  `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string  `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	Temperature   float32 `envconfig:"MODEL_TEMPERATURE" default:"0.7"`
	TopP          float32 `envconfig:"MODEL_TOP_P" default:"0.95"`
	TopK          float32 `envconfig:"MODEL_TOP_K" default:"40"`
	MaxOutputToks int32   `envconfig:"MODEL_MAX_OUTPUT_TOKENS" default:"8192"`
}

// TurnConfig holds the completeness policy used by the aggregator
type TurnConfig struct {
	Timeout         time.Duration `envconfig:"TURN_TIMEOUT" default:"45s"`
	MinFinalRunes   int           `envconfig:"TURN_MIN_FINAL_RUNES" default:"100"`
	MinFinalRatio   float64       `envconfig:"TURN_MIN_FINAL_RATIO" default:"0.9"`
	PartialBatch    int           `envconfig:"TURN_PARTIAL_BATCH" default:"3"`
	MinPartialRunes int           `envconfig:"TURN_MIN_PARTIAL_RUNES" default:"5"`
	ShortQueryRunes int           `envconfig:"TURN_SHORT_QUERY_RUNES" default:"120"`
	ExcerptRunes    int           `envconfig:"TURN_EXCERPT_RUNES" default:"1000"`
	HistoryWindow   int           `envconfig:"TURN_HISTORY_WINDOW" default:"10"`
}

type SessionConfig struct {
	Storage string        `envconfig:"SESSION_STORAGE_TYPE" default:"memory"` // memory|redis
	IdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" default:"0"`
	Sweep   time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers    []string `envconfig:"KAFKA_BROKERS"`
	TurnsTopic string   `envconfig:"KAFKA_TURNS_TOPIC" default:"tripmind.turns"`
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	Debug    bool   `envconfig:"TELEGRAM_DEBUG" default:"false"`
}

type EnrichmentConfig struct {
	TavilyAPIKey      string        `envconfig:"TAVILY_API_KEY"`
	YouTubeAPIKey     string        `envconfig:"YOUTUBE_API_KEY"`
	RequestsPerMinute int           `envconfig:"ENRICH_REQUESTS_PER_MINUTE" default:"60"`
	Timeout           time.Duration `envconfig:"ENRICH_TIMEOUT" default:"15s"`
	CacheTTL          time.Duration `envconfig:"ENRICH_CACHE_TTL" default:"6h"`
	MaxRetries        int           `envconfig:"ENRICH_MAX_RETRIES" default:"2"`
	Language          string        `envconfig:"DEFAULT_LANGUAGE" default:"th"`
}

type IntentConfig struct {
	TablesPath string `envconfig:"INTENT_TABLES_PATH"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations that cannot start the service
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "gemini":
		if c.Model.GoogleAPIKey == "" && !c.Model.UseVertexAI {
			return errors.Wrap(errors.ErrInvalidInput, "GOOGLE_API_KEY is required unless GOOGLE_GENAI_USE_VERTEXAI is set")
		}
	case "openai":
		if c.Model.OpenAIKey == "" {
			return errors.Wrap(errors.ErrInvalidInput, "OPENAI_API_KEY is required for MODEL_PROVIDER=openai")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown MODEL_PROVIDER %q", c.Model.Provider)
	}

	switch c.Session.Storage {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return errors.Wrap(errors.ErrInvalidInput, "SESSION_STORAGE_TYPE=redis requires REDIS_ENABLED=true")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown SESSION_STORAGE_TYPE %q", c.Session.Storage)
	}

	if c.Turn.MinFinalRatio <= 0 || c.Turn.MinFinalRatio > 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "TURN_MIN_FINAL_RATIO must be in (0,1], got %v", c.Turn.MinFinalRatio)
	}
	if c.Turn.PartialBatch < 1 {
		return errors.Wrap(errors.ErrInvalidInput, "TURN_PARTIAL_BATCH must be >= 1")
	}
	if c.Turn.Timeout <= 0 {
		return errors.Wrap(errors.ErrInvalidInput, "TURN_TIMEOUT must be positive")
	}

	return nil
}
