// Package defrumours scrapes transfer-rumour listings for defenders and
// writes them out as JSON and email-ready HTML.
package defrumours

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pevans/defrumours/enrich"
	"github.com/pevans/defrumours/extract"
	"github.com/pevans/defrumours/fetch"
	"github.com/pevans/defrumours/history"
	"github.com/pevans/defrumours/output"
	"github.com/pevans/defrumours/render"
	"github.com/pevans/defrumours/rumours"
)

// RunRecorder stores a summary of each run.
type RunRecorder interface {
	Record(ctx context.Context, run *history.Run) error
}

// Mailer delivers the HTML rendering of a run.
type Mailer interface {
	Send(ctx context.Context, subject, html string) error
}

// ServiceConfig wires a Service. Fetcher is required; Writer is required for
// Run. History and Mailer are optional.
type ServiceConfig struct {
	Fetcher fetch.Fetcher
	Writer  *output.Writer
	History RunRecorder
	Mailer  Mailer
	// Rules replaces extract.DefaultRules() when set.
	Rules *extract.Rules
	// EnrichDelay is the pause between profile fetches.
	EnrichDelay time.Duration
	Logger      *slog.Logger
}

// Service performs scrape runs.
type Service struct {
	fetcher  fetch.Fetcher
	writer   *output.Writer
	history  RunRecorder
	mailer   Mailer
	rules    extract.Rules
	enricher *enrich.Enricher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a Service from cfg.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("a fetcher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	rules := extract.DefaultRules()
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}

	return &Service{
		fetcher:  cfg.Fetcher,
		writer:   cfg.Writer,
		history:  cfg.History,
		mailer:   cfg.Mailer,
		rules:    rules,
		enricher: enrich.NewEnricher(cfg.Fetcher, cfg.EnrichDelay, cfg.Logger),
		logger:   cfg.Logger,
		now:      time.Now,
	}, nil
}

// Options selects what a run scrapes.
type Options struct {
	// URL is the listing page to fetch.
	URL         string
	Competition string
	Season      string
	// Enrich fetches each record's profile page for extra attributes.
	Enrich bool
	// Title heads the HTML rendering; render.DefaultTitle when empty.
	Title string
}

// Result is everything one scrape produced.
type Result struct {
	Results rumours.ResultSet
	HTML    string
	// Raw is the fetched listing markup.
	Raw  []byte
	Page *extract.Page
	// NeedsDiagnostics is set when the table was missing, had no rows or
	// yielded no records.
	NeedsDiagnostics bool
	Enrichment       enrich.Summary
}

// Scrape fetches the listing page and turns it into a sorted result set and
// its HTML rendering. Only a failed fetch of the listing itself (or a
// cancelled context) is an error; layout problems yield an empty result with
// NeedsDiagnostics set.
func (s *Service) Scrape(ctx context.Context, opts Options) (*Result, error) {
	raw, err := s.fetcher.Fetch(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	page, err := extract.NewExtractor(s.rules, opts.URL).ExtractHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to extract listing: %w", err)
	}

	records := rumours.Assemble(page.Rows, s.rules.DefaultPosition)
	s.logger.InfoContext(ctx, "extracted listing",
		"url", opts.URL,
		"table_found", page.TableFound,
		"total_rows", page.TotalRows,
		"skipped_rows", page.Skipped,
		"records", len(records),
	)

	result := &Result{Raw: raw, Page: page}
	if opts.Enrich && len(records) > 0 {
		records, result.Enrichment, err = s.enricher.Enrich(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("profile enrichment interrupted: %w", err)
		}
		s.logger.InfoContext(ctx, "enriched profiles",
			"fetched", result.Enrichment.Fetched,
			"failed", result.Enrichment.Failed,
		)
	}

	result.Results = rumours.NewResultSet(rumours.Meta{
		Source:      opts.URL,
		Competition: opts.Competition,
		Season:      opts.Season,
		GeneratedAt: s.now(),
	}, records)
	result.HTML = render.Document(opts.Title, result.Results.Items)
	result.NeedsDiagnostics = !page.TableFound || page.TotalRows == 0 || len(records) == 0

	return result, nil
}

// Run scrapes and writes the result set, its HTML rendering and, when
// needed, diagnostics. Nothing is written if the listing cannot be fetched.
// The run is then recorded and mailed; failures there are logged and never
// fail a run whose outputs were written.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	if s.writer == nil {
		return nil, errors.New("no output writer configured")
	}

	result, err := s.Scrape(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := s.writer.WriteResult(result.Results, result.HTML); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "wrote results",
		"dir", s.writer.Dir(), "count", result.Results.Count)

	if result.NeedsDiagnostics {
		diag := output.NewDiagnostics(opts.URL, result.Page, result.Results.Count)
		if err := s.writer.WriteDiagnostics(result.Raw, diag); err != nil {
			return nil, err
		}
		s.logger.WarnContext(ctx, "no defender rumours extracted, wrote diagnostics",
			"debug_html", s.writer.Path(output.DebugHTMLFile),
			"rows_json", s.writer.Path(output.RowsFile),
		)
	}

	if s.history != nil {
		run := &history.Run{
			GeneratedAt: result.Results.GeneratedUTC.Time,
			Source:      opts.URL,
			Competition: opts.Competition,
			Season:      opts.Season,
			TotalRows:   result.Page.TotalRows,
			Count:       result.Results.Count,
			Diagnostics: result.NeedsDiagnostics,
		}
		if err := s.history.Record(ctx, run); err != nil {
			s.logger.WarnContext(ctx, "failed to record run", "error", err)
		}
	}

	if s.mailer != nil {
		if err := s.mailer.Send(ctx, Subject(opts, result.Results.Count), result.HTML); err != nil {
			s.logger.WarnContext(ctx, "failed to mail results", "error", err)
		}
	}

	return result, nil
}

// Subject is the mail subject for a run with count records.
func Subject(opts Options, count int) string {
	title := opts.Title
	if title == "" {
		title = render.DefaultTitle
	}
	if opts.Competition != "" && opts.Season != "" {
		return fmt.Sprintf("%s: %d (%s %s)", title, count, opts.Competition, opts.Season)
	}
	return fmt.Sprintf("%s: %d", title, count)
}

// Watch runs immediately and then every interval until ctx is done. Failed
// runs are logged and retried at the next tick.
func (s *Service) Watch(ctx context.Context, opts Options, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval %s must be positive", interval)
	}

	s.logger.InfoContext(ctx, "watch starting", "url", opts.URL, "interval", interval)
	s.runLogged(ctx, opts)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "watch stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runLogged(ctx, opts)
		}
	}
}

func (s *Service) runLogged(ctx context.Context, opts Options) {
	if _, err := s.Run(ctx, opts); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "run failed", "url", opts.URL, "error", err,
			"transient", fetch.IsTransient(err))
	}
}
