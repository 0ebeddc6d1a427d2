package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aktagon/feedwatch/internal/config"
	"github.com/aktagon/feedwatch/internal/logger"
	"github.com/aktagon/feedwatch/internal/pipeline"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Crawl the seeds, ingest discovered feeds and update the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}
}

func newDiscoverCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Crawl the seeds and print candidate feed URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, log, err := opts.newRunner(true)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			res, err := runner.Discover(cmd.Context())
			if err != nil {
				return err
			}

			for _, u := range res.FeedURLs {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}

func newIngestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [feed-url...]",
		Short: "Ingest the given feeds without crawling",
		Long: `Ingest fetches each feed URL, keeps keyword-matching items and merges them
into the store. Without arguments, feed URLs are read one per line from
stdin; blank lines and lines starting with # are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			feedURLs := args
			if len(feedURLs) == 0 {
				var err error
				feedURLs, err = readURLs(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			if len(feedURLs) == 0 {
				return errors.New("no feed URLs given")
			}

			runner, log, err := opts.newRunner(false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			report, err := runner.RunFeeds(cmd.Context(), feedURLs)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feed URLs: %w", err)
	}
	return urls, nil
}

func newKeywordsCmd(opts *options) *cobra.Command {
	var rerun bool

	keywordsCmd := &cobra.Command{
		Use:   "keywords",
		Short: "List or edit the configured keywords",
	}
	keywordsCmd.PersistentFlags().BoolVar(&rerun, "run", false, "Run the pipeline after editing")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the configured keywords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, required := opts.settingsPath()
			settings, err := config.LoadFile(path, required)
			if err != nil {
				return err
			}
			for _, kw := range settings.Keywords {
				fmt.Fprintln(cmd.OutOrStdout(), kw)
			}
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <keyword>...",
		Short: "Add keywords to the settings file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editKeywords(cmd, opts, rerun, func(s *config.Settings) (string, []string, error) {
				return "Added", s.AddKeywords(args...), nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <keyword>...",
		Short: "Remove keywords from the settings file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editKeywords(cmd, opts, rerun, func(s *config.Settings) (string, []string, error) {
				removed := s.RemoveKeywords(args...)
				if len(s.Keywords) == 0 {
					return "", nil, errors.New("refusing to remove every keyword")
				}
				return "Removed", removed, nil
			})
		},
	}

	keywordsCmd.AddCommand(listCmd, addCmd, removeCmd)
	return keywordsCmd
}

// editKeywords applies edit to the settings file, saves it when something
// changed, and optionally re-runs the pipeline with the new keyword list.
func editKeywords(cmd *cobra.Command, opts *options, rerun bool, edit func(*config.Settings) (string, []string, error)) error {
	path, required := opts.settingsPath()
	settings, err := config.LoadFile(path, required)
	if err != nil {
		return err
	}

	verb, changed, err := edit(settings)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(changed) == 0 {
		fmt.Fprintln(out, "Keywords unchanged")
	} else {
		if err := config.Save(path, settings); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", verb, strings.Join(changed, ", "))
	}

	if !rerun {
		return nil
	}
	return runPipeline(cmd, opts)
}

func newWatchCmd(opts *options) *cobra.Command {
	var debounce time.Duration

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline, then again whenever the settings file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, required := opts.settingsPath()
			if !required {
				if _, err := config.EnsureExists(path); err != nil {
					return err
				}
			}

			settings, err := opts.loadSettings(true)
			if err != nil {
				return err
			}
			log, err := opts.newLogger(settings)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			rerun := func(ctx context.Context) error {
				settings, err := opts.loadSettings(true)
				if err != nil {
					return err
				}
				runner, err := pipeline.New(settings, log)
				if err != nil {
					return err
				}
				report, err := runner.Run(ctx)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			}

			if err := rerun(cmd.Context()); err != nil {
				log.Error("initial run failed", logger.Error(err))
			}

			watcher, err := newSettingsWatcher(path, debounce, log)
			if err != nil {
				return err
			}
			defer watcher.Close()

			log.Info("watching settings", logger.String("path", path))
			return watcher.Run(cmd.Context(), rerun)
		},
	}

	watchCmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period after a change before re-running")
	return watchCmd
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default settings file if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := opts.settingsPath()
			created, err := config.EnsureExists(path)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			}
			return nil
		},
	}
}
