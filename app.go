package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aktagon/feedwatch/internal/config"
	"github.com/aktagon/feedwatch/internal/logger"
	"github.com/aktagon/feedwatch/internal/pipeline"
)

// settingsPath returns the settings file and whether it must exist. An
// explicit --config path is required; the default location is optional.
func (o *options) settingsPath() (string, bool) {
	if o.configPath != "" {
		return o.configPath, true
	}
	return config.DefaultPath, false
}

// loadSettings loads and validates settings. Seeds are only required by
// commands that crawl.
func (o *options) loadSettings(requireSeeds bool) (*config.Settings, error) {
	path, required := o.settingsPath()

	settings, err := config.Load(path, required)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if err := settings.Validate(requireSeeds); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return settings, nil
}

func (o *options) newLogger(settings *config.Settings) (logger.Logger, error) {
	level := settings.Log.Level
	if o.debug {
		level = "debug"
	}

	log, err := logger.New(logger.Config{
		Level:       level,
		Development: settings.Log.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return log, nil
}

// newRunner loads settings and builds a pipeline runner. The caller syncs
// the returned logger.
func (o *options) newRunner(requireSeeds bool) (*pipeline.Runner, logger.Logger, error) {
	settings, err := o.loadSettings(requireSeeds)
	if err != nil {
		return nil, nil, err
	}

	log, err := o.newLogger(settings)
	if err != nil {
		return nil, nil, err
	}

	runner, err := pipeline.New(settings, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return runner, log, nil
}

// runPipeline performs a full crawl and ingest pass.
func runPipeline(cmd *cobra.Command, opts *options) error {
	runner, log, err := opts.newRunner(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	report, err := runner.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

// printReport writes a human-readable run summary.
func printReport(w io.Writer, r *pipeline.Report) {
	if r.Crawl != nil {
		fmt.Fprintf(w, "Crawled %d pages (%d failed), found %d candidate feeds\n",
			r.Crawl.PagesVisited, r.Crawl.PagesFailed, len(r.Crawl.FeedURLs))
		if r.Crawl.BudgetExhausted {
			fmt.Fprintln(w, "Page budget exhausted, crawl stopped early")
		}
	}

	s := r.Ingest
	fmt.Fprintf(w, "Ingested %d feeds (%d failed): %d items, %d matched, %d new, %d already stored\n",
		s.Feeds, s.FeedsFailed, s.Items, s.Matched, s.Added, s.Duplicates)
	fmt.Fprintf(w, "Store holds %d entries (run %s, %s)\n", r.StoreSize, r.RunID, r.Duration.Round(time.Millisecond))
}
