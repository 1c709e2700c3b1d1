// Package config loads run settings from defaults, an optional YAML file, an
// optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds every setting a run needs.
type Config struct {
	Competition string       `yaml:"competition"`
	Season      string       `yaml:"season"`
	BaseURL     string       `yaml:"base_url"`
	OutDir      string       `yaml:"out_dir"`
	HistoryDSN  string       `yaml:"history_dsn"`
	Listen      string       `yaml:"listen"`
	Enrich      EnrichConfig `yaml:"enrich"`
	Fetch       FetchConfig  `yaml:"fetch"`
	Mail        MailConfig   `yaml:"mail"`
}

// EnrichConfig controls profile enrichment.
type EnrichConfig struct {
	Enabled bool          `yaml:"enabled"`
	Delay   time.Duration `yaml:"delay"`
}

// FetchConfig controls the HTTP client.
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// MailConfig holds SMTP settings. Mail is sent only when To is non-empty.
type MailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Enabled reports whether a run should send mail.
func (m MailConfig) Enabled() bool {
	return len(m.To) > 0
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Competition: "L1",
		Season:      "2025",
		BaseURL:     "https://www.transfermarkt.com",
		OutDir:      "out",
		Listen:      ":8080",
		Enrich: EnrichConfig{
			Enabled: false,
			Delay:   2 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			Retries: 3,
		},
		Mail: MailConfig{
			Port: 587,
		},
	}
}

// ListingURL returns the rumours listing page for the configured
// competition and season.
func (c Config) ListingURL() string {
	return fmt.Sprintf("%s/bundesliga/geruechte/wettbewerb/%s/saison_id/%s/plus/1",
		strings.TrimRight(c.BaseURL, "/"),
		url.PathEscape(c.Competition),
		url.PathEscape(c.Season),
	)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Competition) == "" {
		errs = append(errs, errors.New("competition is required"))
	}
	if strings.TrimSpace(c.Season) == "" {
		errs = append(errs, errors.New("season is required"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base URL %q must be an absolute http(s) URL", c.BaseURL))
	}
	if c.OutDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Enrich.Delay < 0 {
		errs = append(errs, fmt.Errorf("enrich delay %s must not be negative", c.Enrich.Delay))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout %s must be positive", c.Fetch.Timeout))
	}
	if c.Fetch.Retries < 0 {
		errs = append(errs, fmt.Errorf("fetch retries %d must not be negative", c.Fetch.Retries))
	}
	if c.Mail.Enabled() {
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail host is required when recipients are set"))
		}
		if c.Mail.From == "" {
			errs = append(errs, errors.New("mail sender is required when recipients are set"))
		}
		if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
			errs = append(errs, fmt.Errorf("mail port %d is out of range", c.Mail.Port))
		}
	}

	return errors.Join(errs...)
}
