package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// One listener per stage, mirroring the stage control protocol.
	CoordinatorPort string `envconfig:"COORDINATOR_PORT" default:"8080"`
	ScraperPort     string `envconfig:"SCRAPER_PORT" default:"8081"`
	EmbedderPort    string `envconfig:"EMBEDDER_PORT" default:"8082"`
	BotPort         string `envconfig:"BOT_PORT" default:"8083"`
	Debug           bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	KnowledgeBaseURL string `envconfig:"KNOWLEDGEBASE_URL"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	SlackBotToken  string `envconfig:"SLACK_BOT_TOKEN"`
	SlackAppToken  string `envconfig:"SLACK_APP_TOKEN"`
	SlackChannelID string `envconfig:"SLACK_TARGET_CHANNEL_ID"`

	JiraHost       string `envconfig:"JIRA_HOST"`
	JiraEmail      string `envconfig:"JIRA_EMAIL"`
	JiraAPIToken   string `envconfig:"JIRA_API_TOKEN"`
	JiraProjectKey string `envconfig:"JIRA_PROJECT_KEY"`

	SimilarityThreshold float64       `envconfig:"SIMILARITY_THRESHOLD" default:"0.8"`
	Concurrency         int           `envconfig:"CONCURRENCY" default:"50"`
	MaxRetries          int           `envconfig:"MAX_RETRIES" default:"3"`
	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CURIOBOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in [0,1], got %v", cfg.SimilarityThreshold)
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasSlack() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

func (c *Config) HasJira() bool {
	return c.JiraHost != "" && c.JiraEmail != "" && c.JiraAPIToken != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// CoordinatorURL is the base URL stages use to signal completion back.
func (c *Config) CoordinatorURL() string {
	return "http://localhost:" + c.CoordinatorPort
}

func (c *Config) ScraperURL() string {
	return "http://localhost:" + c.ScraperPort
}

func (c *Config) EmbedderURL() string {
	return "http://localhost:" + c.EmbedderPort
}

func (c *Config) BotURL() string {
	return "http://localhost:" + c.BotPort
}
