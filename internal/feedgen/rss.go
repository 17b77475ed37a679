// Package feedgen renders the blog post list as an RSS 2.0 feed.
package feedgen

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/narkins/contentd/internal/models"
)

// Generator builds RSS 2.0 XML for the site feed.
type Generator struct {
	siteURL     string
	title       string
	description string
	now         func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source used for lastBuildDate.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a feed generator for the given site. siteURL
// should have no trailing slash.
func NewGenerator(siteURL, title, description string, opts ...Option) *Generator {
	g := &Generator{
		siteURL:     strings.TrimRight(siteURL, "/"),
		title:       title,
		description: description,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders the feed. Posts are expected newest-first; their
// order is preserved.
func (g *Generator) Generate(posts []models.Post) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", g.title, 4)
	writeElement(&buf, "link", g.siteURL, 4)
	writeElement(&buf, "description", g.description, 4)

	selfLink := g.siteURL + "/feed.xml"
	buf.WriteString("    <atom:link href=\"")
	xml.EscapeText(&buf, []byte(selfLink))
	buf.WriteString("\" rel=\"self\" type=\"application/rss+xml\" />\n")

	writeElement(&buf, "lastBuildDate", g.now().UTC().Format(time.RFC1123Z), 4)
	writeElement(&buf, "language", "en", 4)

	for _, post := range posts {
		g.writeItem(&buf, post)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *Generator) writeItem(buf *bytes.Buffer, post models.Post) {
	link := g.siteURL + post.URL()

	buf.WriteString("    <item>\n")

	buf.WriteString(`      <guid isPermaLink="true">`)
	xml.EscapeText(buf, []byte(link))
	buf.WriteString("</guid>\n")

	writeElement(buf, "title", post.Title, 6)
	writeElement(buf, "link", link, 6)
	writeElement(buf, "description", post.Excerpt, 6)

	if post.Content != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		// A literal "]]>" in the body would terminate the CDATA
		// section early.
		buf.WriteString(strings.ReplaceAll(post.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	writeElement(buf, "pubDate", post.ParsedDate().UTC().Format(time.RFC1123Z), 6)

	for _, keyword := range strings.Split(post.Keywords, ",") {
		keyword = strings.TrimSpace(keyword)
		if keyword != "" {
			writeElement(buf, "category", keyword, 6)
		}
	}

	buf.WriteString("    </item>\n")
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}
	fmt.Fprintf(buf, "%*s<%s>", indent, "", tag)
	xml.EscapeText(buf, []byte(content))
	fmt.Fprintf(buf, "</%s>\n", tag)
}
