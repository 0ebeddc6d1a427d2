// Package digest renders the stored entries as a Markdown document.
package digest

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/aktagon/feedwatch/internal/store"
)

// TimeLayout formats the "Last Updated" line.
const TimeLayout = "2006-01-02 15:04:05"

//go:embed digest.md
var defaultTemplate string

// Options configures rendering.
type Options struct {
	// TemplatePath overrides the embedded template when set.
	TemplatePath string
	// Now defaults to time.Now.
	Now func() time.Time
}

type entryView struct {
	Title     string
	Link      string
	Published string
	Keywords  []string
	Summary   string
}

type document struct {
	LastUpdated string
	Entries     []entryView
}

// Render writes the digest of entries to w.
func Render(w io.Writer, entries []store.Entry, opts Options) error {
	tmpl, err := loadTemplate(opts.TemplatePath)
	if err != nil {
		return err
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	converter := md.NewConverter("", true, nil)
	doc := document{LastUpdated: now().Format(TimeLayout)}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, entryView{
			Title:     strings.TrimSpace(e.Title),
			Link:      e.Link,
			Published: e.Published,
			Keywords:  e.Keywords,
			Summary:   summaryMarkdown(converter, e.Summary),
		})
	}

	if err := tmpl.Execute(w, doc); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}
	return nil
}

// Write renders the digest and replaces the file at path atomically.
func Write(path string, entries []store.Entry, opts Options) error {
	var buf bytes.Buffer
	if err := Render(&buf, entries, opts); err != nil {
		return err
	}
	if err := store.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("writing digest: %w", err)
	}
	return nil
}

func loadTemplate(path string) (*template.Template, error) {
	text := defaultTemplate
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading digest template: %w", err)
		}
		text = string(data)
	}

	tmpl, err := template.New("digest").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return tmpl, nil
}

// summaryMarkdown converts an HTML summary to single-paragraph Markdown,
// keeping the raw text if conversion fails.
func summaryMarkdown(converter *md.Converter, summary string) string {
	if strings.TrimSpace(summary) == "" {
		return ""
	}
	out, err := converter.ConvertString(summary)
	if err != nil {
		out = summary
	}
	return strings.Join(strings.Fields(out), " ")
}
