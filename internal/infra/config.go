package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Image provider identifiers accepted by IMAGE_PROVIDER.
const (
	ImageProviderReplicate = "replicate"
	ImageProviderOpenAI    = "openai"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string `env:"APP_ENV" env-default:"development"`
	Port          string `env:"PORT" env-default:"8080"`
	DatabaseURL   string `env:"DATABASE_URL" env-required:"true"`
	HistoryDBPath string `env:"HISTORY_DB_PATH" env-default:"generation_history.db"`

	ImageProvider     string `env:"IMAGE_PROVIDER" env-default:"replicate"`
	ReplicateAPIToken string `env:"REPLICATE_API_TOKEN"`
	ReplicateBaseURL  string `env:"REPLICATE_BASE_URL" env-default:"https://api.replicate.com/v1"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`

	TelegramBotToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChannelID string `env:"TELEGRAM_CHANNEL_ID"`
	TelegramBaseURL   string `env:"TELEGRAM_BASE_URL" env-default:"https://api.telegram.org"`

	GoogleAPIKey        string `env:"GOOGLE_API_KEY"`
	GoogleCSEID         string `env:"GOOGLE_CSE_ID"`
	GoogleSearchBaseURL string `env:"GOOGLE_SEARCH_BASE_URL" env-default:"https://www.googleapis.com/customsearch/v1"`

	UploadFolder    string `env:"UPLOAD_FOLDER" env-default:"main_images"`
	GeneratedFolder string `env:"GENERATED_FOLDER" env-default:"generated_images"`
	VideoFolder     string `env:"VIDEO_FOLDER" env-default:"generated_videos"`

	HTTPReadTimeoutSeconds  int    `env:"HTTP_READ_TIMEOUT_SECONDS" env-default:"15"`
	HTTPWriteTimeoutSeconds int    `env:"HTTP_WRITE_TIMEOUT_SECONDS" env-default:"600"`
	HTTPIdleTimeoutSeconds  int    `env:"HTTP_IDLE_TIMEOUT_SECONDS" env-default:"60"`
	RateLimitPerMin         int    `env:"RATE_LIMIT_PER_MINUTE" env-default:"30"`
	MaxConcurrentPipelines  int64  `env:"MAX_CONCURRENT_PIPELINES" env-default:"4"`
	CORSAllowedOrigins      string `env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:8080"`

	WorkerPollSeconds int `env:"WORKER_POLL_SECONDS" env-default:"30"`
	WorkerBatchSize   int `env:"WORKER_BATCH_SIZE" env-default:"5"`

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	WorkerPoll       time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.ImageProvider = strings.ToLower(strings.TrimSpace(cfg.ImageProvider))
	switch cfg.ImageProvider {
	case ImageProviderReplicate, ImageProviderOpenAI:
	default:
		return nil, fmt.Errorf("IMAGE_PROVIDER %q is not supported", cfg.ImageProvider)
	}
	if cfg.MaxConcurrentPipelines <= 0 {
		cfg.MaxConcurrentPipelines = 1
	}

	cfg.HTTPReadTimeout = time.Second * time.Duration(cfg.HTTPReadTimeoutSeconds)
	cfg.HTTPWriteTimeout = time.Second * time.Duration(cfg.HTTPWriteTimeoutSeconds)
	cfg.HTTPIdleTimeout = time.Second * time.Duration(cfg.HTTPIdleTimeoutSeconds)
	cfg.WorkerPoll = time.Second * time.Duration(cfg.WorkerPollSeconds)

	return &cfg, nil
}

// ReplicateConfigured reports whether the prediction API token is present.
func (c *Config) ReplicateConfigured() bool {
	return strings.TrimSpace(c.ReplicateAPIToken) != ""
}

// OpenAIConfigured reports whether the OpenAI key is present.
func (c *Config) OpenAIConfigured() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// TelegramConfigured reports whether both bot token and channel are present.
func (c *Config) TelegramConfigured() bool {
	return strings.TrimSpace(c.TelegramBotToken) != "" && strings.TrimSpace(c.TelegramChannelID) != ""
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
