package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aktagon/feedwatch/internal/config"
)

// options holds the global flags shared by every command.
type options struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "feedwatch",
		Short: "Discover publisher RSS feeds and collect keyword-matching articles",
		Long: `feedwatch crawls publisher pages for RSS/Atom feed links, keeps the feed
items whose title or summary mentions a configured keyword, and merges them
into a deduplicated store plus a Markdown digest.

Running without a subcommand is the same as "feedwatch run".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to settings file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newDiscoverCmd(opts),
		newIngestCmd(opts),
		newKeywordsCmd(opts),
		newWatchCmd(opts),
		newInitCmd(opts),
	)
	return rootCmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
