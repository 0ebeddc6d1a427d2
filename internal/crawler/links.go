package crawler

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkSelector matches hyperlink-bearing elements, including feed
// advertisements in the document head.
const linkSelector = `a[href], area[href], link[rel~="alternate"][href]`

// IsFeedCandidate reports whether u plausibly references a feed: it mentions
// "rss" or "feed", or its path ends in ".xml". Matching ignores case.
func IsFeedCandidate(u string) bool {
	lower := strings.ToLower(u)
	if strings.Contains(lower, "rss") || strings.Contains(lower, "feed") {
		return true
	}

	parsed, err := url.Parse(lower)
	if err != nil {
		return strings.HasSuffix(lower, ".xml")
	}
	return path.Ext(parsed.Path) == ".xml"
}

// extractLinks returns the absolute http(s) targets of every link in doc,
// resolved against the page URL (or its <base href>), without fragments.
// Order follows the document; duplicates are kept for the caller to drop.
func extractLinks(pageURL *url.URL, doc *goquery.Selection) []string {
	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = pageURL.ResolveReference(ref)
		}
	}

	var links []string
	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if resolved, ok := resolve(base, href); ok {
			links = append(links, resolved)
		}
	})
	return links
}

// resolve turns href into an absolute http(s) URL relative to base.
// Fragment-only, mailto:, javascript: and similar targets are rejected.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	u, ok := normalize(base.ResolveReference(ref).String())
	if !ok {
		return "", false
	}
	return u.String(), true
}
