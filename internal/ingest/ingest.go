// Package ingest fetches feeds, filters their items by keyword and merges
// matches into a store collection.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/aktagon/feedwatch/internal/keywords"
	"github.com/aktagon/feedwatch/internal/logger"
	"github.com/aktagon/feedwatch/internal/store"
)

// httpPrefix marks a GUID usable as a link.
const httpPrefix = "http"

var (
	// ErrFetchFailure wraps network errors, timeouts and non-2xx responses.
	ErrFetchFailure = errors.New("feed fetch failed")
	// ErrParseFailure wraps documents that are not a readable feed.
	ErrParseFailure = errors.New("feed parse failed")
)

// Fetcher downloads a document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Status is the outcome of ingesting one feed.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// FeedResult tracks the outcome of each feed URL.
type FeedResult struct {
	URL     string
	Status  Status
	Items   int
	Matched int
	Added   int
	Error   error
}

// Stats summarizes a Run.
type Stats struct {
	Feeds       int
	FeedsFailed int
	Items       int
	Matched     int
	Added       int
	// Duplicates counts matching items whose link was already stored.
	Duplicates int
	// NoLink counts items skipped because they have neither link nor http GUID.
	NoLink  int
	Results []FeedResult
}

// Ingester merges keyword-matching feed items into a collection.
type Ingester struct {
	fetcher Fetcher
	matcher *keywords.Matcher
	parser  *gofeed.Parser
	log     logger.Logger
}

// New creates an Ingester.
func New(fetcher Fetcher, matcher *keywords.Matcher, log logger.Logger) *Ingester {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ingester{
		fetcher: fetcher,
		matcher: matcher,
		parser:  gofeed.NewParser(),
		log:     log,
	}
}

// Run ingests feedURLs in order, appending new matches to c. A failing feed
// is logged and skipped. The only error is a cancelled context.
func (in *Ingester) Run(ctx context.Context, feedURLs []string, c *store.Collection) (Stats, error) {
	var stats Stats

	for i, url := range feedURLs {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("ingest cancelled: %w", err)
		}

		in.log.Debug("ingesting feed",
			logger.String("url", url),
			logger.Int("index", i+1),
			logger.Int("total", len(feedURLs)),
		)

		res := in.ingestFeed(ctx, url, c, &stats)
		stats.Feeds++
		stats.Items += res.Items
		stats.Matched += res.Matched
		stats.Added += res.Added
		stats.Results = append(stats.Results, res)

		if res.Status == StatusError {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, fmt.Errorf("ingest cancelled: %w", ctxErr)
			}
			stats.FeedsFailed++
			in.log.Warn("skipping feed", logger.String("url", url), logger.Error(res.Error))
		}
	}

	in.log.Info("ingest finished",
		logger.Int("feeds", stats.Feeds),
		logger.Int("feeds_failed", stats.FeedsFailed),
		logger.Int("items", stats.Items),
		logger.Int("matched", stats.Matched),
		logger.Int("added", stats.Added),
	)
	return stats, nil
}

func (in *Ingester) ingestFeed(ctx context.Context, url string, c *store.Collection, stats *Stats) FeedResult {
	res := FeedResult{URL: url, Status: StatusSuccess}

	body, err := in.fetcher.Fetch(ctx, url)
	if err != nil {
		res.Status = StatusError
		res.Error = fmt.Errorf("%w: %w", ErrFetchFailure, err)
		return res
	}

	feed, err := in.parser.Parse(bytes.NewReader(body))
	if err != nil {
		res.Status = StatusError
		res.Error = fmt.Errorf("%w: %s: %w", ErrParseFailure, url, err)
		return res
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		res.Items++

		entry := toEntry(item)
		if entry.Link == "" {
			stats.NoLink++
			in.log.Debug("skipping item without link",
				logger.String("feed", url),
				logger.String("title", entry.Title),
			)
			continue
		}

		matched := in.matcher.Match(entry.Title, entry.Summary)
		if len(matched) == 0 {
			continue
		}
		res.Matched++
		entry.Keywords = matched

		if !c.Add(entry) {
			stats.Duplicates++
			continue
		}
		res.Added++
	}

	return res
}

// toEntry extracts the stored fields from a feed item, applying defaults.
func toEntry(item *gofeed.Item) store.Entry {
	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	published := item.Published
	if strings.TrimSpace(published) == "" {
		published = store.UnknownDate
	}

	return store.Entry{
		Title:     item.Title,
		Summary:   summary,
		Link:      extractLink(item),
		Published: published,
	}
}

// extractLink prefers the item link, falling back to a GUID that looks like
// an HTTP URL.
func extractLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	if guid := strings.TrimSpace(item.GUID); strings.HasPrefix(guid, httpPrefix) {
		return guid
	}
	return ""
}
