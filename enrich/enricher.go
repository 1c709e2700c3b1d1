package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/pevans/defrumours/fetch"
	"github.com/pevans/defrumours/rumours"
)

// DefaultDelay is the minimum pause between two profile fetches.
const DefaultDelay = 2 * time.Second

// Enricher fetches profile pages one at a time, pausing between requests.
type Enricher struct {
	fetcher fetch.Fetcher
	delay   time.Duration
	logger  *slog.Logger

	// wait blocks for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error
}

// NewEnricher creates an Enricher. A negative delay is treated as zero and a
// nil logger uses slog.Default().
func NewEnricher(fetcher fetch.Fetcher, delay time.Duration, logger *slog.Logger) *Enricher {
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		fetcher: fetcher,
		delay:   delay,
		logger:  logger,
		wait:    sleep,
	}
}

// Summary counts the outcome of an enrichment pass.
type Summary struct {
	Fetched int
	Failed  int
	Skipped int
}

// Enrich returns a copy of records with profile attributes filled in.
// Records without a profile link are passed through. A failed fetch or parse
// leaves that record's profile attributes empty and moves on. If ctx is done
// the remaining records are returned unenriched together with ctx.Err().
func (e *Enricher) Enrich(ctx context.Context, records []rumours.Record) ([]rumours.Record, Summary, error) {
	out := make([]rumours.Record, len(records))
	copy(out, records)

	var summary Summary
	fetched := false
	for i, r := range out {
		if r.ProfileLink == "" {
			summary.Skipped++
			continue
		}

		if fetched && e.delay > 0 {
			if err := e.wait(ctx, e.delay); err != nil {
				return out, summary, err
			}
		}
		if err := ctx.Err(); err != nil {
			return out, summary, err
		}
		fetched = true

		profile, err := e.profile(ctx, r.ProfileLink)
		if err != nil {
			e.logger.WarnContext(ctx, "profile enrichment failed",
				"player", r.Player, "url", r.ProfileLink, "error", err)
			out[i] = r.WithProfile(rumours.Profile{})
			summary.Failed++
			continue
		}

		out[i] = r.WithProfile(profile)
		summary.Fetched++
	}

	e.logger.DebugContext(ctx, "profile enrichment finished",
		"fetched", summary.Fetched, "failed", summary.Failed, "skipped", summary.Skipped)
	return out, summary, nil
}

func (e *Enricher) profile(ctx context.Context, url string) (rumours.Profile, error) {
	body, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return rumours.Profile{}, err
	}
	return ParseProfileHTML(body)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
