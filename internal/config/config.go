package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the pipeline needs for one run. All secrets come
// from the environment; the topic query may be overridden from a YAML file.
type Config struct {
	LINE   LINEConfig
	Claude ClaudeConfig
	Feed   FeedConfig

	TopicsConfigPath string
	RequestTimeout   time.Duration
	Debug            bool

	// Monitoring HTTP endpoints (optional)
	EnableMonitoring bool
	MonitoringPort   string
}

// LINEConfig wires the Messaging API push endpoint.
type LINEConfig struct {
	Endpoint     string
	ChannelToken string
	To           string // user ID (U...) or group ID (C...)
}

// ClaudeConfig describes how to contact the Anthropic messages API.
type ClaudeConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
}

// FeedConfig describes the Google News search query for one topic.
type FeedConfig struct {
	Query    string `yaml:"query"`
	Language string `yaml:"language"`
	Country  string `yaml:"country"`
	MaxItems int    `yaml:"maxItems"`
}

const (
	defaultClaudeEndpoint = "https://api.anthropic.com/v1/messages"
	defaultLINEEndpoint   = "https://api.line.me/v2/bot/message/push"
	defaultModel          = "claude-haiku-4-5-20251001"

	// OR-combination of topic synonyms for robotic mowing/weeding news.
	defaultQuery = "草刈りロボット OR 自動草刈り OR ロボット芝刈り機 OR 除草ロボット OR 草刈り機 ロボット"
)

// Load builds the configuration from environment variables, applying the
// topics YAML file on top of the feed defaults when it exists.
func Load() (*Config, error) {
	cfg := &Config{
		LINE: LINEConfig{
			Endpoint: defaultLINEEndpoint,
		},
		Claude: ClaudeConfig{
			Endpoint:  defaultClaudeEndpoint,
			Model:     defaultModel,
			MaxTokens: 4096,
		},
		Feed: FeedConfig{
			Query:    defaultQuery,
			Language: "ja",
			Country:  "JP",
			MaxItems: 15,
		},
		TopicsConfigPath: getEnvOrDefault("TOPICS_CONFIG_PATH", "configs/topics.yaml"),
		RequestTimeout:   30 * time.Second,
		MonitoringPort:   getEnvOrDefault("MONITORING_PORT", "8080"),
	}

	cfg.LINE.ChannelToken = os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	cfg.LINE.To = os.Getenv("LINE_TO_ID")
	cfg.Claude.APIKey = os.Getenv("ANTHROPIC_API_KEY")

	if model := os.Getenv("CLAUDE_MODEL"); model != "" {
		cfg.Claude.Model = model
	}
	if v := os.Getenv("CLAUDE_MAX_TOKENS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.Claude.MaxTokens = val
		}
	}
	if v := os.Getenv("MAX_FEED_ITEMS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.Feed.MaxItems = val
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RequestTimeout = time.Duration(val) * time.Second
		}
	}
	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}
	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		cfg.EnableMonitoring = true
	}

	if err := cfg.loadTopics(); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// loadTopics merges configs/topics.yaml into the feed defaults. A missing
// file is fine; a present but broken file is a configuration error.
func (c *Config) loadTopics() error {
	raw, err := os.ReadFile(c.TopicsConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read topics config %s: %w", c.TopicsConfigPath, err)
	}

	var fileCfg FeedConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return fmt.Errorf("parse topics config %s: %w", c.TopicsConfigPath, err)
	}

	if fileCfg.Query != "" {
		c.Feed.Query = fileCfg.Query
	}
	if fileCfg.Language != "" {
		c.Feed.Language = fileCfg.Language
	}
	if fileCfg.Country != "" {
		c.Feed.Country = fileCfg.Country
	}
	if fileCfg.MaxItems > 0 {
		c.Feed.MaxItems = fileCfg.MaxItems
	}
	return nil
}

func (c *Config) Validate() error {
	if c.LINE.ChannelToken == "" {
		return fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN is required")
	}
	if c.LINE.To == "" {
		return fmt.Errorf("LINE_TO_ID is required")
	}
	if c.Claude.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.Feed.Query == "" {
		return fmt.Errorf("feed query must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
