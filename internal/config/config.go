package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Site        SiteConfig        `mapstructure:"site"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Costs       CostsConfig       `mapstructure:"costs"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Translation TranslationConfig `mapstructure:"translation"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Qdrant      QdrantConfig      `mapstructure:"qdrant"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Narration   NarrationConfig   `mapstructure:"narration"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// SiteConfig describes the public site; feeds use it for links and metadata.
type SiteConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Language    string `mapstructure:"language"`
	FeedLimit   int    `mapstructure:"feed_limit"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	URL             string        `mapstructure:"url"`    // postgres DSN
	Path            string        `mapstructure:"path"`   // sqlite file
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

// DSN returns the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; empty detects from endpoint
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type OpenAIConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	ChatModel          string        `mapstructure:"chat_model"`
	ImageModel         string        `mapstructure:"image_model"`
	ImageSize          string        `mapstructure:"image_size"`
	SpeechModel        string        `mapstructure:"speech_model"`
	SpeechVoice        string        `mapstructure:"speech_voice"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Audience  string `mapstructure:"audience"`
}

// RateLimitRule is a fixed-window ceiling.
type RateLimitRule struct {
	Limit         int `mapstructure:"limit" json:"limit"`
	WindowSeconds int `mapstructure:"window_seconds" json:"window_seconds"`
}

// EndpointLimit holds the separate anonymous and authenticated ceilings for one endpoint.
type EndpointLimit struct {
	Anonymous     RateLimitRule `mapstructure:"anonymous" json:"anonymous"`
	Authenticated RateLimitRule `mapstructure:"authenticated" json:"authenticated"`
}

type LimitsConfig struct {
	Endpoints map[string]EndpointLimit `mapstructure:"endpoints"`
}

// CostsConfig holds the daily ceiling and the price list used to fill the ledger.
type CostsConfig struct {
	DailyLimitUSD            float64 `mapstructure:"daily_limit_usd"`
	TranscriptionPerMinute   float64 `mapstructure:"transcription_per_minute"`
	ChatInputPerMillion      float64 `mapstructure:"chat_input_per_million"`
	ChatOutputPerMillion     float64 `mapstructure:"chat_output_per_million"`
	ImagePerImage            float64 `mapstructure:"image_per_image"`
	SpeechPerMillionChars    float64 `mapstructure:"speech_per_million_chars"`
	EmbeddingPerMillionToken float64 `mapstructure:"embedding_per_million_tokens"`
	ModalPerSecond           float64 `mapstructure:"modal_per_second"`
}

type PipelineConfig struct {
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	GenerateCovers  bool          `mapstructure:"generate_covers"`
	CoverFetchLimit int64         `mapstructure:"cover_fetch_limit"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	DefaultTone     string        `mapstructure:"default_tone"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
}

type TranslationConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Languages []string `mapstructure:"languages"`
}

// JobsConfig selects how follow-up work runs: "inline" goroutines or the "asynq" queue.
type JobsConfig struct {
	Backend     string        `mapstructure:"backend"`
	Queue       string        `mapstructure:"queue"`
	MaxRetry    int           `mapstructure:"max_retry"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type NarrationConfig struct {
	Provider string        `mapstructure:"provider"` // openai or modal
	ModalURL string        `mapstructure:"modal_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// Load reads configuration from file, environment and defaults.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment-specific values use conventional variable names.
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("narration.modal_url", "MODAL_TTS_URL")
	v.BindEnv("costs.daily_limit_usd", "DAILY_COST_LIMIT_USD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Embedding.ResolveEnvVars()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("site.base_url", "http://localhost:3000")
	v.SetDefault("site.title", "VibeLog")
	v.SetDefault("site.description", "Voice-first posts, polished and published.")
	v.SetDefault("site.language", "en")
	v.SetDefault("site.feed_limit", 50)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/vibelog.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("database.slow_query", 500*time.Millisecond)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "vibelogs")

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.image_model", "dall-e-3")
	v.SetDefault("openai.image_size", "1792x1024")
	v.SetDefault("openai.speech_model", "tts-1")
	v.SetDefault("openai.speech_voice", "alloy")
	v.SetDefault("openai.timeout", 60*time.Second)

	v.SetDefault("limits.endpoints", DefaultEndpointLimits())

	v.SetDefault("costs.daily_limit_usd", 50.0)
	v.SetDefault("costs.transcription_per_minute", 0.006)
	v.SetDefault("costs.chat_input_per_million", 0.15)
	v.SetDefault("costs.chat_output_per_million", 0.60)
	v.SetDefault("costs.image_per_image", 0.08)
	v.SetDefault("costs.speech_per_million_chars", 15.0)
	v.SetDefault("costs.embedding_per_million_tokens", 0.02)
	v.SetDefault("costs.modal_per_second", 0.000164)

	v.SetDefault("pipeline.max_upload_bytes", 25*1024*1024)
	v.SetDefault("pipeline.generate_covers", true)
	v.SetDefault("pipeline.cover_fetch_limit", 10*1024*1024)
	v.SetDefault("pipeline.fetch_timeout", 30*time.Second)
	v.SetDefault("pipeline.default_tone", "authentic")
	v.SetDefault("pipeline.presign_ttl", 15*time.Minute)

	v.SetDefault("translation.enabled", true)
	v.SetDefault("translation.languages", []string{"en", "es", "fr", "de", "vi", "zh"})

	v.SetDefault("jobs.backend", "inline")
	v.SetDefault("jobs.queue", "followups")
	v.SetDefault("jobs.max_retry", 5)
	v.SetDefault("jobs.timeout", 2*time.Minute)
	v.SetDefault("jobs.concurrency", 4)

	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "vibelogs")

	v.SetDefault("embedding.name", "jina-v3")
	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("embedding.api_key_env", "JINA_API_KEY")

	v.SetDefault("narration.provider", "openai")
	v.SetDefault("narration.timeout", 5*time.Minute)
	v.SetDefault("narration.max_chars", 4096)
}

// DefaultEndpointLimits are the built-in ceilings; the rate_limits admin entry overrides them.
func DefaultEndpointLimits() map[string]EndpointLimit {
	return map[string]EndpointLimit{
		"upload": {
			Anonymous:     RateLimitRule{Limit: 0, WindowSeconds: 3600},
			Authenticated: RateLimitRule{Limit: 20, WindowSeconds: 3600},
		},
		"transcribe": {
			Anonymous:     RateLimitRule{Limit: 5, WindowSeconds: 3600},
			Authenticated: RateLimitRule{Limit: 60, WindowSeconds: 3600},
		},
		"generate": {
			Anonymous:     RateLimitRule{Limit: 5, WindowSeconds: 3600},
			Authenticated: RateLimitRule{Limit: 60, WindowSeconds: 3600},
		},
		"cover": {
			Anonymous:     RateLimitRule{Limit: 0, WindowSeconds: 3600},
			Authenticated: RateLimitRule{Limit: 10, WindowSeconds: 3600},
		},
		"narration": {
			Anonymous:     RateLimitRule{Limit: 0, WindowSeconds: 3600},
			Authenticated: RateLimitRule{Limit: 10, WindowSeconds: 3600},
		},
		"brain_chat": {
			Anonymous:     RateLimitRule{Limit: 0, WindowSeconds: 60},
			Authenticated: RateLimitRule{Limit: 20, WindowSeconds: 60},
		},
		"related": {
			Anonymous:     RateLimitRule{Limit: 30, WindowSeconds: 60},
			Authenticated: RateLimitRule{Limit: 60, WindowSeconds: 60},
		},
		"reactions": {
			Anonymous:     RateLimitRule{Limit: 0, WindowSeconds: 60},
			Authenticated: RateLimitRule{Limit: 120, WindowSeconds: 60},
		},
	}
}

// Validate reports the first setting that would make the service misbehave.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Jobs.Backend {
	case "inline":
	case "asynq":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the asynq job backend")
		}
	default:
		return fmt.Errorf("unknown jobs backend %q", c.Jobs.Backend)
	}
	switch c.Narration.Provider {
	case "openai":
	case "modal":
		if c.Narration.ModalURL == "" {
			return fmt.Errorf("narration.modal_url is required for the modal provider")
		}
	default:
		return fmt.Errorf("unknown narration provider %q", c.Narration.Provider)
	}
	if c.Pipeline.MaxUploadBytes <= 0 {
		return fmt.Errorf("pipeline.max_upload_bytes must be positive")
	}
	if c.Qdrant.Enabled {
		if err := c.Embedding.Validate(); err != nil {
			return err
		}
	}
	return nil
}
