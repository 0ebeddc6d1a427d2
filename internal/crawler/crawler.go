// Package crawler discovers candidate feed URLs by walking publisher pages
// breadth-first up to a fixed depth.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	colly "github.com/gocolly/colly/v2"

	"github.com/aktagon/feedwatch/internal/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "feedwatch/1.0"
	// maxBodySize caps a single page download.
	maxBodySize = 5 << 20
)

// Config bounds a crawl.
type Config struct {
	// MaxDepth is the deepest level fetched; seeds are depth 0.
	MaxDepth int
	// MaxPages caps page fetches per Discover call. Zero means unlimited.
	MaxPages int
	// SameOrigin restricts recursion to links on the seed's host. Candidate
	// feed links on other hosts are still collected.
	SameOrigin bool
	Timeout    time.Duration
	UserAgent  string
}

// Result is the outcome of a crawl.
type Result struct {
	// FeedURLs holds each candidate feed link once, in discovery order.
	FeedURLs        []string
	PagesVisited    int
	PagesFailed     int
	BudgetExhausted bool
}

// Contains reports whether u was discovered.
func (r *Result) Contains(u string) bool {
	for _, f := range r.FeedURLs {
		if f == u {
			return true
		}
	}
	return false
}

// Crawler walks seed pages looking for feed links.
type Crawler struct {
	cfg Config
	log logger.Logger
}

// New creates a Crawler.
func New(cfg Config, log logger.Logger) *Crawler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Crawler{cfg: cfg, log: log}
}

// target is a page queued for fetching. origin is the host of the seed it
// was reached from.
type target struct {
	url    string
	origin string
}

// Discover crawls seeds and returns the candidate feed links found within
// MaxDepth. Page failures are logged and skipped; an error is returned only
// for an invalid configuration or a cancelled context, together with the
// partial result.
func (c *Crawler) Discover(ctx context.Context, seeds []string) (*Result, error) {
	if c.cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("invalid max depth %d", c.cfg.MaxDepth)
	}

	result := &Result{}
	found := make(map[string]struct{})
	queued := make(map[string]struct{})

	var pageLinks []string
	collector := c.newCollector(ctx)
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		pageLinks = append(pageLinks, extractLinks(e.Request.URL, e.DOM)...)
	})

	var frontier []target
	for _, seed := range seeds {
		u, ok := normalize(seed)
		if !ok {
			c.log.Warn("skipping invalid seed URL", logger.String("url", seed))
			continue
		}
		if _, dup := queued[u.String()]; dup {
			continue
		}
		queued[u.String()] = struct{}{}
		frontier = append(frontier, target{url: u.String(), origin: u.Host})
	}

	for depth := 0; depth <= c.cfg.MaxDepth && len(frontier) > 0; depth++ {
		var next []target

		for _, t := range frontier {
			if err := ctx.Err(); err != nil {
				return result, fmt.Errorf("crawl cancelled: %w", err)
			}
			if c.cfg.MaxPages > 0 && result.PagesVisited >= c.cfg.MaxPages {
				result.BudgetExhausted = true
				c.log.Warn("page budget exhausted, stopping crawl",
					logger.Int("max_pages", c.cfg.MaxPages),
					logger.Int("depth", depth),
				)
				return result, nil
			}

			pageLinks = pageLinks[:0]
			result.PagesVisited++
			if err := collector.Visit(t.url); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, fmt.Errorf("crawl cancelled: %w", ctxErr)
				}
				result.PagesFailed++
				c.log.Warn("failed to fetch page",
					logger.String("url", t.url),
					logger.Int("depth", depth),
					logger.Error(err),
				)
				continue
			}

			c.log.Debug("crawled page",
				logger.String("url", t.url),
				logger.Int("depth", depth),
				logger.Int("links", len(pageLinks)),
			)

			for _, link := range pageLinks {
				if IsFeedCandidate(link) {
					if _, dup := found[link]; !dup {
						found[link] = struct{}{}
						result.FeedURLs = append(result.FeedURLs, link)
					}
				}

				// children of the deepest level would exceed MaxDepth
				if depth == c.cfg.MaxDepth {
					continue
				}
				if _, dup := queued[link]; dup {
					continue
				}
				if c.cfg.SameOrigin && hostOf(link) != t.origin {
					continue
				}
				queued[link] = struct{}{}
				next = append(next, target{url: link, origin: t.origin})
			}
		}

		frontier = next
	}

	c.log.Info("crawl finished",
		logger.Int("pages_visited", result.PagesVisited),
		logger.Int("pages_failed", result.PagesFailed),
		logger.Int("feeds_found", len(result.FeedURLs)),
	)
	return result, nil
}

// newCollector builds a synchronous colly collector. Revisits are allowed at
// the colly level because Discover deduplicates the queue itself.
func (c *Crawler) newCollector(ctx context.Context) *colly.Collector {
	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(c.cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxBodySize),
	)
	collector.SetRequestTimeout(c.cfg.Timeout)
	return collector
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// normalize parses an absolute http(s) URL and strips its fragment.
func normalize(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, true
}
