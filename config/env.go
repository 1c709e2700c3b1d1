package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvCompetition    = "COMPETITION"
	EnvSeason         = "SEASON_ID"
	EnvBaseURL        = "BASE_URL"
	EnvEnrichProfiles = "ENRICH_PROFILES"
	EnvEnrichDelay    = "ENRICH_DELAY"
	EnvOutDir         = "OUT_DIR"
	EnvHistoryDSN     = "HISTORY_DSN"
	EnvListen         = "LISTEN_ADDR"
	EnvFetchTimeout   = "FETCH_TIMEOUT"
	EnvFetchRetries   = "FETCH_RETRIES"
	EnvSMTPHost       = "SMTP_HOST"
	EnvSMTPPort       = "SMTP_PORT"
	EnvSMTPUser       = "SMTP_USER"
	EnvSMTPPassword   = "SMTP_PASSWORD"
	EnvMailFrom       = "MAIL_FROM"
	EnvMailTo         = "MAIL_TO"
)

// DefaultDotEnv is the .env file read by Load.
const DefaultDotEnv = ".env"

// LookupFunc returns the value of an environment variable and whether it is
// set.
type LookupFunc func(key string) (string, bool)

// ReadDotEnv reads a .env file without touching the process environment.
// A missing file yields an empty map.
func ReadDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

// Chain looks keys up in each LookupFunc in turn and returns the first
// non-empty value.
func Chain(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if v, ok := lookup(key); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
}

// MapLookup looks keys up in m.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// ApplyEnv overrides cfg with every variable lookup finds. Empty values are
// ignored. Unparseable values are reported together and leave the setting
// unchanged.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str(EnvCompetition, &cfg.Competition)
	str(EnvSeason, &cfg.Season)
	str(EnvBaseURL, &cfg.BaseURL)
	str(EnvOutDir, &cfg.OutDir)
	str(EnvHistoryDSN, &cfg.HistoryDSN)
	str(EnvListen, &cfg.Listen)

	if v, ok := lookup(EnvEnrichProfiles); ok && v != "" {
		enabled, err := ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvEnrichProfiles, err))
		} else {
			cfg.Enrich.Enabled = enabled
		}
	}
	dur(EnvEnrichDelay, &cfg.Enrich.Delay)
	dur(EnvFetchTimeout, &cfg.Fetch.Timeout)
	num(EnvFetchRetries, &cfg.Fetch.Retries)

	str(EnvSMTPHost, &cfg.Mail.Host)
	num(EnvSMTPPort, &cfg.Mail.Port)
	str(EnvSMTPUser, &cfg.Mail.User)
	str(EnvSMTPPassword, &cfg.Mail.Password)
	str(EnvMailFrom, &cfg.Mail.From)
	if v, ok := lookup(EnvMailTo); ok && v != "" {
		cfg.Mail.To = SplitList(v)
	}

	return errors.Join(errs...)
}

// ParseBool accepts the usual boolean spellings plus yes/no and on/off.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load builds a Config from the defaults, the YAML file at path, the .env
// file at dotenvPath and the process environment, each overriding the one
// before. Variables already set in the environment win over .env entries.
// Command-line flags are applied by the caller.
func Load(path, dotenvPath string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	dotenv := map[string]string{}
	if dotenvPath != "" {
		var err error
		if dotenv, err = ReadDotEnv(dotenvPath); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnv(&cfg, Chain(os.LookupEnv, MapLookup(dotenv))); err != nil {
		return cfg, fmt.Errorf("invalid environment: %w", err)
	}

	return cfg, nil
}
