package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// SMTPConfig holds the mail server settings
type SMTPConfig struct {
	Host     string        `toml:"host"`
	Port     int           `toml:"port"`
	Username string        `toml:"username"`
	Password string        `toml:"password"`
	From     string        `toml:"from"`
	TLS      string        `toml:"tls"` // mandatory, opportunistic, ssl or none
	Timeout  time.Duration `toml:"timeout"`
}

// FetchConfig holds the HTTP settings used to download feeds
type FetchConfig struct {
	Timeout   time.Duration `toml:"timeout"`
	UserAgent string        `toml:"user_agent"`
}

// MetricsConfig points to a Prometheus Pushgateway. Metrics are not pushed
// when the URL is empty.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

// Config represents the top-level configuration
type Config struct {
	Timezone string        `toml:"timezone"`
	Subject  string        `toml:"subject"`
	Template string        `toml:"template"` // Empty means the built-in template
	SMTP     SMTPConfig    `toml:"smtp"`
	Fetch    FetchConfig   `toml:"fetch"`
	Metrics  MetricsConfig `toml:"metrics"`
}

func Default() *Config {
	return &Config{
		Timezone: "Europe/Madrid",
		Subject:  "Newsletter",
		SMTP: SMTPConfig{
			Host:    "localhost",
			Port:    587,
			TLS:     "mandatory",
			Timeout: 30 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			UserAgent: "newsdigest/1.0",
		},
		Metrics: MetricsConfig{
			Job: "newsdigest",
		},
	}
}

// LoadConfig reads the TOML file at path on top of the defaults and applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	meta, err := toml.DecodeFile(path, config)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.WithField("path", path).Debug("No config file found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("error parsing config file: %w", err)
	default:
		for _, key := range meta.Undecoded() {
			log.WithField("key", key.String()).Warn("Unknown config key")
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if _, err := config.Location(); err != nil {
		return nil, err
	}

	return config, nil
}

// Location is the reference timezone used for feed watermarks
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"NEWSDIGEST_TIMEZONE":        &c.Timezone,
		"NEWSDIGEST_SUBJECT":         &c.Subject,
		"NEWSDIGEST_TEMPLATE":        &c.Template,
		"NEWSDIGEST_SMTP_HOST":       &c.SMTP.Host,
		"NEWSDIGEST_SMTP_USERNAME":   &c.SMTP.Username,
		"NEWSDIGEST_SMTP_PASSWORD":   &c.SMTP.Password,
		"NEWSDIGEST_SMTP_FROM":       &c.SMTP.From,
		"NEWSDIGEST_SMTP_TLS":        &c.SMTP.TLS,
		"NEWSDIGEST_PUSHGATEWAY_URL": &c.Metrics.PushgatewayURL,
	}
	for name, field := range overrides {
		if value, ok := os.LookupEnv(name); ok {
			*field = value
		}
	}

	if value, ok := os.LookupEnv("NEWSDIGEST_SMTP_PORT"); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid NEWSDIGEST_SMTP_PORT %q: %w", value, err)
		}
		c.SMTP.Port = port
	}
	return nil
}
