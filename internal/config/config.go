// Package config loads chatprobe settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up when no --config flag is given.
const DefaultPath = "chatprobe.yaml"

type Shop struct {
	Platform string `yaml:"platform"`
	Name     string `yaml:"name"`
	Account  string `yaml:"account"`
	ID       string `yaml:"id"`
}

type SMTP struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// Enabled reports whether enough is configured to send mail.
func (s SMTP) Enabled() bool {
	return s.Host != "" && len(s.Recipients) > 0
}

type Config struct {
	BaseURL  string `yaml:"base_url"`
	Account  string `yaml:"account"`
	Password string `yaml:"password"`
	Shop     Shop   `yaml:"shop"`

	// Conversation scenario.
	Questions            []string `yaml:"questions"`
	Concurrency          int      `yaml:"concurrency"`
	WaitBetweenQuestions int      `yaml:"wait_between_questions"` // seconds
	HTTPTimeout          int      `yaml:"http_timeout"`           // seconds
	ProductIndex         int      `yaml:"product_index"`
	UseProduct           bool     `yaml:"use_product"`

	// Reporting and side channels.
	ReportDir   string `yaml:"report_dir"`
	SMTP        SMTP   `yaml:"smtp"`
	DatabaseURL string `yaml:"database_url"`
	NatsURL     string `yaml:"nats_url"`
	NatsToken   string `yaml:"nats_token"`
	LogLevel    string `yaml:"log_level"`

	StubPort int `yaml:"stub_port"`
}

func defaults() *Config {
	return &Config{
		BaseURL: "https://dev.zhiyan.chat",
		Shop: Shop{
			Platform: "tmall",
			Name:     "儒意化妆品旗舰店",
			Account:  "测试专用1",
			ID:       "585",
		},
		Concurrency:          3,
		WaitBetweenQuestions: 10,
		HTTPTimeout:          120,
		UseProduct:           true,
		ReportDir:            "reports",
		LogLevel:             "info",
		StubPort:             8620,
	}
}

// Load builds the config: defaults, then the YAML file (when present), then
// environment overrides. A missing file at the default path is fine; an
// explicitly given path must exist.
func Load(path string) (*Config, error) {
	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// defaults + env only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseURL = envStr("CHATPROBE_BASE_URL", c.BaseURL)
	c.Account = envStr("CHATPROBE_ACCOUNT", c.Account)
	c.Password = envStr("CHATPROBE_PASSWORD", c.Password)
	c.Shop.ID = envStr("CHATPROBE_SHOP_ID", c.Shop.ID)
	c.Concurrency = envInt("CHATPROBE_CONCURRENCY", c.Concurrency)
	c.WaitBetweenQuestions = envInt("CHATPROBE_WAIT_SECONDS", c.WaitBetweenQuestions)
	c.ReportDir = envStr("CHATPROBE_REPORT_DIR", c.ReportDir)
	c.DatabaseURL = envStr("DATABASE_URL", c.DatabaseURL)
	c.NatsURL = envStr("NATS_URL", c.NatsURL)
	c.NatsToken = envStr("NATS_TOKEN", c.NatsToken)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.SMTP.Password = envStr("CHATPROBE_SMTP_PASSWORD", c.SMTP.Password)
	if v := os.Getenv("CHATPROBE_RECIPIENTS"); v != "" {
		c.SMTP.Recipients = splitList(v)
	}
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.WaitBetweenQuestions < 0 {
		return fmt.Errorf("wait_between_questions must not be negative")
	}
	if c.HTTPTimeout < 1 {
		return fmt.Errorf("http_timeout must be at least 1 second")
	}
	return nil
}

// Wait is the inter-turn delay.
func (c *Config) Wait() time.Duration {
	return time.Duration(c.WaitBetweenQuestions) * time.Second
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
