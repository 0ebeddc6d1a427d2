// Package pipeline runs a full monitoring pass: discover feeds, merge matching
// items into the store and write the digest.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aktagon/feedwatch/internal/config"
	"github.com/aktagon/feedwatch/internal/crawler"
	"github.com/aktagon/feedwatch/internal/digest"
	"github.com/aktagon/feedwatch/internal/fetch"
	"github.com/aktagon/feedwatch/internal/ingest"
	"github.com/aktagon/feedwatch/internal/keywords"
	"github.com/aktagon/feedwatch/internal/logger"
	"github.com/aktagon/feedwatch/internal/store"
)

// Report summarizes one run.
type Report struct {
	RunID string
	// Crawl is nil when feeds were given directly.
	Crawl     *crawler.Result
	Ingest    ingest.Stats
	StoreSize int
	Duration  time.Duration
}

// Option customizes a Runner.
type Option func(*Runner)

// WithHTTPClient sets the client used to download feeds.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runner) { r.client = c }
}

// WithClock sets the time source for the digest timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes pipeline passes with fixed settings.
type Runner struct {
	settings *config.Settings
	matcher  *keywords.Matcher
	log      logger.Logger
	client   *http.Client
	now      func() time.Time
}

// New validates the keyword list and returns a Runner.
func New(settings *config.Settings, log logger.Logger, opts ...Option) (*Runner, error) {
	if log == nil {
		log = logger.NewNop()
	}

	matcher, err := keywords.New(settings.Keywords)
	if err != nil {
		return nil, fmt.Errorf("building keyword matcher: %w", err)
	}

	r := &Runner{
		settings: settings,
		matcher:  matcher,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Discover crawls the configured seeds.
func (r *Runner) Discover(ctx context.Context) (*crawler.Result, error) {
	return r.discover(ctx, r.log)
}

func (r *Runner) discover(ctx context.Context, log logger.Logger) (*crawler.Result, error) {
	c := crawler.New(crawler.Config{
		MaxDepth:   r.settings.Crawl.MaxDepth,
		MaxPages:   r.settings.Crawl.MaxPages,
		SameOrigin: r.settings.Crawl.SameOrigin,
		Timeout:    r.settings.Crawl.Timeout,
		UserAgent:  r.settings.Crawl.UserAgent,
	}, log)

	res, err := c.Discover(ctx, r.settings.Seeds)
	if err != nil {
		return res, fmt.Errorf("discovering feeds: %w", err)
	}
	return res, nil
}

// Run discovers feeds from the seeds and ingests them.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := r.newReport()
	log := r.log.With(logger.String("run_id", report.RunID))
	start := time.Now()

	log.Info("starting run",
		logger.Int("seeds", len(r.settings.Seeds)),
		logger.Int("keywords", len(r.settings.Keywords)),
		logger.Int("max_depth", r.settings.Crawl.MaxDepth),
	)

	res, err := r.discover(ctx, log)
	report.Crawl = res
	if err != nil {
		return report, err
	}

	if err := r.ingest(ctx, log, res.FeedURLs, report); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)

	log.Info("run finished",
		logger.Int("feeds", len(res.FeedURLs)),
		logger.Int("added", report.Ingest.Added),
		logger.Int("store_size", report.StoreSize),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

// RunFeeds ingests feedURLs without crawling.
func (r *Runner) RunFeeds(ctx context.Context, feedURLs []string) (*Report, error) {
	report := r.newReport()
	log := r.log.With(logger.String("run_id", report.RunID))
	start := time.Now()

	if err := r.ingest(ctx, log, feedURLs, report); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)

	log.Info("run finished",
		logger.Int("feeds", len(feedURLs)),
		logger.Int("added", report.Ingest.Added),
		logger.Int("store_size", report.StoreSize),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

func (r *Runner) newReport() *Report {
	return &Report{RunID: uuid.NewString()}
}

// ingest loads the store, merges feedURLs into it, rewrites it in full and
// refreshes the digest.
func (r *Runner) ingest(ctx context.Context, log logger.Logger, feedURLs []string, report *Report) error {
	backend, err := store.Open(r.settings.Store.Driver, r.settings.Store.Path, store.Options{
		BackupCorrupt: r.settings.Store.OnCorrupt == config.OnCorruptBackup,
		Log:           log,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer backend.Close()

	existing, err := backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}
	collection := store.NewCollection(existing)
	log.Debug("store loaded",
		logger.String("path", r.settings.Store.Path),
		logger.Int("entries", collection.Len()),
	)

	fetcher := fetch.New(fetch.Options{
		Timeout:     r.settings.Fetch.Timeout,
		UserAgent:   r.settings.Crawl.UserAgent,
		MinInterval: r.settings.Fetch.MinInterval,
		Client:      r.client,
	})
	stats, err := ingest.New(fetcher, r.matcher, log).Run(ctx, feedURLs, collection)
	report.Ingest = stats
	if err != nil {
		return err
	}

	entries := collection.Entries()
	if err := backend.Save(ctx, entries); err != nil {
		return fmt.Errorf("saving store: %w", err)
	}
	report.StoreSize = len(entries)

	if path := r.settings.Digest.Path; path != "" {
		err := digest.Write(path, entries, digest.Options{
			TemplatePath: r.settings.Digest.TemplatePath,
			Now:          r.now,
		})
		if err != nil {
			return fmt.Errorf("writing digest: %w", err)
		}
		log.Debug("digest written", logger.String("path", path))
	}
	return nil
}
