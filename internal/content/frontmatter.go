package content

import (
	"bytes"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
)

// Defaults used when a metadata field is missing or the header cannot
// be parsed at all. A malformed header must never make a post
// unpublishable, so parsing degrades instead of failing.
const (
	DefaultTitle    = "Untitled"
	DefaultReadTime = "5 min read"
	DefaultImage    = "/images/narkins-builders-logo.webp"
)

// Meta is the set of frontmatter keys the site consumes. All keys are
// optional in the source files.
type Meta struct {
	Title    string `yaml:"title"`
	Excerpt  string `yaml:"excerpt"`
	Date     string `yaml:"date"`
	Image    string `yaml:"image"`
	ReadTime string `yaml:"readTime"`
	Keywords string `yaml:"keywords"`
}

// Parsed is a content file split into normalized metadata and body.
type Parsed struct {
	Meta Meta
	Body string
}

// Parse splits raw file text into metadata and body. It never returns
// an error: an unreadable header yields all defaults with the entire
// input as the body. now supplies the fallback for a missing date so
// callers can pin it in tests.
func Parse(raw []byte, now time.Time) Parsed {
	var meta Meta
	body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		meta = Meta{}
		body = raw
	}

	meta.Title = orDefault(meta.Title, DefaultTitle)
	meta.ReadTime = orDefault(meta.ReadTime, DefaultReadTime)
	meta.Image = orDefault(meta.Image, DefaultImage)
	meta.Date = normalizeDate(meta.Date, now)

	return Parsed{Meta: meta, Body: string(body)}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// dateLayouts covers the formats seen in authored frontmatter. Dates
// are normalized to RFC3339 UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
}

func normalizeDate(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
	}
	// Unparseable or absent dates fall back to resolution time. Posts
	// are expected to always carry an authored date, so the resulting
	// drift between resolutions is accepted.
	return now.UTC().Format(time.RFC3339)
}
