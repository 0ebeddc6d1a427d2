package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aktagon/feedwatch/internal/fetch"
	"github.com/aktagon/feedwatch/internal/keywords"
	"github.com/aktagon/feedwatch/internal/store"
)

type item struct {
	title, description, link, pubDate string
}

func rss(items ...item) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>News</title><link>https://example.com</link><description>d</description>`
	for _, it := range items {
		body += "<item>"
		if it.title != "" {
			body += fmt.Sprintf("<title>%s</title>", it.title)
		}
		if it.description != "" {
			body += fmt.Sprintf("<description><![CDATA[%s]]></description>", it.description)
		}
		if it.link != "" {
			body += fmt.Sprintf("<link>%s</link>", it.link)
		}
		if it.pubDate != "" {
			body += fmt.Sprintf("<pubDate>%s</pubDate>", it.pubDate)
		}
		body += "</item>"
	}
	return body + "</channel></rss>"
}

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom News</title>
  <id>urn:feed</id>
  <updated>2025-01-01T00:00:00Z</updated>
  <entry>
    <title>ctDNA assay cleared</title>
    <link href="https://atom.example.com/ctdna"/>
    <id>urn:1</id>
    <updated>2025-01-01T00:00:00Z</updated>
    <published>2025-01-01T00:00:00Z</published>
    <summary>Liquid biopsy news</summary>
  </entry>
</feed>`

// feedServer serves path -> feed body; paths not listed return 500.
func feedServer(t *testing.T, feeds map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := feeds[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newIngester(t *testing.T, server *httptest.Server, words ...string) *Ingester {
	t.Helper()
	m, err := keywords.New(words)
	require.NoError(t, err)
	return New(fetch.New(fetch.Options{Client: server.Client()}), m, nil)
}

func TestRun_ConcreteScenario(t *testing.T) {
	server := feedServer(t, map[string]string{
		"/rss-feeds.xml": rss(item{title: "FDA approval of new CDx test", link: "https://example.com/cdx", pubDate: "Tue, 10 Jun 2025 09:00:00 GMT"}),
	})
	in := newIngester(t, server, "CDx", "FDA approval")
	c := store.NewCollection(nil)

	stats, err := in.Run(context.Background(), []string{server.URL + "/rss-feeds.xml"}, c)
	require.NoError(t, err)

	require.Equal(t, 1, c.Len())
	got := c.Entries()[0]
	assert.Equal(t, "FDA approval of new CDx test", got.Title)
	assert.Equal(t, "https://example.com/cdx", got.Link)
	assert.Equal(t, "", got.Summary)
	assert.Equal(t, "Tue, 10 Jun 2025 09:00:00 GMT", got.Published)
	assert.Equal(t, []string{"CDx", "FDA approval"}, got.Keywords)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, StatusSuccess, stats.Results[0].Status)
}

func TestRun_FiltersAndDefaults(t *testing.T) {
	server := feedServer(t, map[string]string{
		"/feed": rss(
			item{title: "KRASxyz compound", link: "https://example.com/1"},
			item{title: "Quarterly", description: "<p>New <b>KRAS</b> mutation data</p>", link: "https://example.com/2"},
			item{title: "Unrelated", link: "https://example.com/3"},
		),
	})
	in := newIngester(t, server, "KRAS")
	c := store.NewCollection(nil)

	stats, err := in.Run(context.Background(), []string{server.URL + "/feed"}, c)
	require.NoError(t, err)

	require.Equal(t, 1, c.Len())
	got := c.Entries()[0]
	assert.Equal(t, "https://example.com/2", got.Link)
	assert.Equal(t, "<p>New <b>KRAS</b> mutation data</p>", got.Summary)
	assert.Equal(t, store.UnknownDate, got.Published)
	assert.Equal(t, 3, stats.Items)
	assert.Equal(t, 1, stats.Matched)
}

func TestRun_GracefulDegradation(t *testing.T) {
	server := feedServer(t, map[string]string{
		"/a":    rss(item{title: "ctDNA first", link: "https://example.com/a"}),
		"/html": "<html><body>not a feed</body></html>",
		"/c":    rss(item{title: "ctDNA third", link: "https://example.com/c"}),
	})
	in := newIngester(t, server, "ctDNA")
	c := store.NewCollection(nil)

	urls := []string{server.URL + "/a", server.URL + "/down", server.URL + "/html", server.URL + "/c"}
	stats, err := in.Run(context.Background(), urls, c)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Feeds)
	assert.Equal(t, 2, stats.FeedsFailed)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/c"}, links(c))

	assert.ErrorIs(t, stats.Results[1].Error, ErrFetchFailure)
	var httpErr *fetch.HTTPError
	assert.True(t, errors.As(stats.Results[1].Error, &httpErr))
	assert.ErrorIs(t, stats.Results[2].Error, ErrParseFailure)
}

func TestRun_IdempotentMerge(t *testing.T) {
	server := feedServer(t, map[string]string{
		"/a": rss(
			item{title: "PD-L1 one", link: "https://example.com/1"},
			item{title: "PD-L1 two", link: "https://example.com/2"},
		),
	})
	in := newIngester(t, server, "PD-L1")
	urls := []string{server.URL + "/a"}

	c := store.NewCollection(nil)
	_, err := in.Run(context.Background(), urls, c)
	require.NoError(t, err)
	once := c.Entries()

	stats, err := in.Run(context.Background(), urls, c)
	require.NoError(t, err)

	assert.Equal(t, once, c.Entries())
	assert.Zero(t, stats.Added)
	assert.Equal(t, 2, stats.Duplicates)
}

func TestRun_DedupWithinRunAcrossFeeds(t *testing.T) {
	shared := item{title: "NFL biomarker", link: "https://example.com/shared"}
	server := feedServer(t, map[string]string{
		"/a": rss(shared, item{title: "NFL again", link: "https://example.com/shared"}),
		"/b": rss(item{title: "NFL copy", link: "https://example.com/shared"}, item{title: "NFL new", link: "https://example.com/new"}),
	})
	in := newIngester(t, server, "NFL")
	c := store.NewCollection([]store.Entry{{Title: "old", Link: "https://example.com/old", Keywords: []string{"NFL"}}})

	_, err := in.Run(context.Background(), []string{server.URL + "/a", server.URL + "/b"}, c)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/old", "https://example.com/shared", "https://example.com/new"}, links(c))
	assert.Equal(t, "NFL biomarker", c.Entries()[1].Title)
}

func TestRun_LinkFallbacks(t *testing.T) {
	server := feedServer(t, map[string]string{
		"/a": `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>CDx via guid</title><guid>https://example.com/guid</guid></item>
<item><title>CDx without link</title><guid isPermaLink="false">tag:example.com,2025:1</guid></item>
</channel></rss>`,
	})
	in := newIngester(t, server, "CDx")
	c := store.NewCollection(nil)

	stats, err := in.Run(context.Background(), []string{server.URL + "/a"}, c)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/guid"}, links(c))
	assert.Equal(t, 1, stats.NoLink)
}

func TestRun_Atom(t *testing.T) {
	server := feedServer(t, map[string]string{"/atom": atomFeed})
	in := newIngester(t, server, "ctDNA", "liquid biopsy")
	c := store.NewCollection(nil)

	_, err := in.Run(context.Background(), []string{server.URL + "/atom"}, c)
	require.NoError(t, err)

	require.Equal(t, 1, c.Len())
	got := c.Entries()[0]
	assert.Equal(t, "https://atom.example.com/ctdna", got.Link)
	assert.Equal(t, "Liquid biopsy news", got.Summary)
	assert.Equal(t, []string{"ctDNA", "liquid biopsy"}, got.Keywords)
	assert.NotEqual(t, store.UnknownDate, got.Published)
}

func TestRun_CancelledContext(t *testing.T) {
	server := feedServer(t, map[string]string{"/a": rss()})
	in := newIngester(t, server, "CDx")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := in.Run(ctx, []string{server.URL + "/a"}, store.NewCollection(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func links(c *store.Collection) []string {
	var out []string
	for _, e := range c.Entries() {
		out = append(out, e.Link)
	}
	return out
}
