// Package store persists matched feed entries, keyed by link.
package store

// UnknownDate is stored when a feed entry carries no publication date.
const UnknownDate = "Unknown Date"

// Entry is one matched feed item. Entries are never mutated after creation.
type Entry struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Link      string   `json:"link"`
	Published string   `json:"published"`
	Keywords  []string `json:"keywords"`
}

// Collection is an ordered set of entries with unique links.
// It is not safe for concurrent use; the merge has a single writer.
type Collection struct {
	entries []Entry
	links   map[string]struct{}
}

// NewCollection builds a collection from entries, dropping later duplicates.
func NewCollection(entries []Entry) *Collection {
	c := &Collection{
		entries: make([]Entry, 0, len(entries)),
		links:   make(map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		c.Add(e)
	}
	return c
}

// Add appends e unless an entry with the same link is already present.
func (c *Collection) Add(e Entry) bool {
	if c.Has(e.Link) {
		return false
	}
	if c.links == nil {
		c.links = make(map[string]struct{})
	}
	c.links[e.Link] = struct{}{}
	c.entries = append(c.entries, e)
	return true
}

// Has reports whether link is already stored.
func (c *Collection) Has(link string) bool {
	_, ok := c.links[link]
	return ok
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries in insertion order.
func (c *Collection) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Dedupe keeps the first entry per link and reports how many were dropped.
func Dedupe(entries []Entry) ([]Entry, int) {
	c := NewCollection(entries)
	return c.Entries(), len(entries) - c.Len()
}
