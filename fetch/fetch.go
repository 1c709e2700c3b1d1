// Package fetch retrieves raw page markup over HTTP with retry and backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// UserAgent identifies the scraper to the sites it reads.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) DefenderRumoursBot/1.2"

// Fetcher returns the raw body of the page at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Func adapts an ordinary function to the Fetcher interface.
type Func func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f(ctx, url).
func (f Func) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Error is returned when a page could not be fetched. Transient errors
// (network failures, 429 and 5xx responses) may succeed on a later attempt;
// anything else is fatal for that URL.
type Error struct {
	URL       string
	Status    int
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a *Error marked transient.
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Transient
}

// Config holds the HTTP client settings.
type Config struct {
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	UserAgent    string
	// Referer is sent with every request; usually the site's base URL.
	Referer string
}

// DefaultConfig returns the default client settings.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		Retries:      3,
		RetryWait:    1500 * time.Millisecond,
		RetryMaxWait: 10 * time.Second,
		UserAgent:    UserAgent,
	}
}

// Client fetches pages with browser-like headers, retrying transient
// failures with exponential backoff.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a Client. A nil logger uses slog.Default().
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgent
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(cfg.Retries)
	client.SetRetryWaitTime(cfg.RetryWait)
	client.SetRetryMaxWaitTime(cfg.RetryMaxWait)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return transientStatus(res.StatusCode())
	})
	client.AddRetryHook(func(res *resty.Response, err error) {
		status := 0
		if res != nil {
			status = res.StatusCode()
		}
		logger.Debug("retrying fetch", "status", status, "error", err)
	})
	client.SetLogger(restyLogger{logger})
	client.SetHeaders(map[string]string{
		"User-Agent":      cfg.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-GB,en;q=0.9,de;q=0.7",
	})
	if cfg.Referer != "" {
		client.SetHeader("Referer", cfg.Referer)
	}

	return &Client{http: client, logger: logger}
}

// Fetch performs a GET for url and returns the body of a 2xx response.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	c.logger.DebugContext(ctx, "fetching page", "url", url)

	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		// A cancelled caller is not worth retrying later.
		return nil, &Error{URL: url, Transient: ctx.Err() == nil, Err: err}
	}

	if !res.IsSuccess() {
		status := res.StatusCode()
		return nil, &Error{
			URL:       url,
			Status:    status,
			Transient: transientStatus(status),
			Err:       fmt.Errorf("unexpected status %s", res.Status()),
		}
	}

	c.logger.DebugContext(ctx, "fetched page", "url", url, "bytes", len(res.Body()), "duration", res.Time())
	return res.Body(), nil
}

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// restyLogger routes resty's internal messages into slog.
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) {
	r.l.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (r restyLogger) Warnf(format string, v ...any) {
	r.l.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (r restyLogger) Debugf(format string, v ...any) {
	r.l.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
