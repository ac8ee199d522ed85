package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	Renderer            string `mapstructure:"RENDERER"`          // "chromedp" or "http"
	PageLoadTimeout     int    `mapstructure:"PAGE_LOAD_TIMEOUT"` // in seconds
	ProbeTimeoutMS      int    `mapstructure:"PROBE_TIMEOUT_MS"`
	MaxProbeConcurrency int    `mapstructure:"MAX_PROBE_CONCURRENCY"` // 0 means unbounded
	ScrollStepPixels    int    `mapstructure:"SCROLL_STEP_PIXELS"`
	ScrollStepDelayMS   int    `mapstructure:"SCROLL_STEP_DELAY_MS"`
	SessionTTLMinutes   int    `mapstructure:"SESSION_TTL_MINUTES"`
	Proxies             string `mapstructure:"PROXIES"` // comma separated
}

var defaults = map[string]any{
	"SERVER_PORT":           "8080",
	"LOG_LEVEL":             "info",
	"POSTGRES_URL":          "",
	"REDIS_ADDR":            "localhost:6379",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"RENDERER":              "chromedp",
	"PAGE_LOAD_TIMEOUT":     30,
	"PROBE_TIMEOUT_MS":      2000,
	"MAX_PROBE_CONCURRENCY": 0,
	"SCROLL_STEP_PIXELS":    300,
	"SCROLL_STEP_DELAY_MS":  200,
	"SESSION_TTL_MINUTES":   30,
	"PROXIES":               "",
}

// Load reads configuration from a .env file or environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	// This allows configuration purely through environment variables in production
	_ = v.ReadInConfig()

	// Every key needs a default, otherwise Unmarshal never consults the environment for it.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) PageLoadTimeoutDuration() time.Duration {
	return time.Duration(c.PageLoadTimeout) * time.Second
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMS) * time.Millisecond
}

func (c *Config) ScrollStepDelay() time.Duration {
	return time.Duration(c.ScrollStepDelayMS) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// ProxyList splits PROXIES into individual proxy URLs.
func (c *Config) ProxyList() []string {
	var proxies []string
	for _, p := range strings.Split(c.Proxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}
