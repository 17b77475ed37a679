package feedgen

import (
	"strings"
	"testing"
	"time"

	"github.com/narkins/contentd/internal/models"
)

func fixedClock() time.Time {
	return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
}

func testGenerator() *Generator {
	return NewGenerator("https://www.narkinsbuilders.com/", "Narkins Builders Blog",
		"Real estate insights from Karachi", WithClock(fixedClock))
}

func TestGenerateChannelMetadata(t *testing.T) {
	out := testGenerator().Generate(nil)

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0"`,
		"<title>Narkins Builders Blog</title>",
		"<link>https://www.narkinsbuilders.com</link>",
		"<description>Real estate insights from Karachi</description>",
		`<atom:link href="https://www.narkinsbuilders.com/feed.xml" rel="self"`,
		"<lastBuildDate>Sat, 01 Feb 2025 12:00:00 +0000</lastBuildDate>",
		"</rss>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q", want)
		}
	}
}

func TestGenerateItems(t *testing.T) {
	posts := []models.Post{
		{
			Slug:     "bahria-town-guide",
			Title:    "Bahria Town <Guide>",
			Excerpt:  "Buying & selling in Bahria Town",
			Date:     "2024-06-15T00:00:00.000Z",
			Content:  "<p>Full body</p>",
			Keywords: "bahria town, investment",
		},
	}

	out := testGenerator().Generate(posts)

	for _, want := range []string{
		`<guid isPermaLink="true">https://www.narkinsbuilders.com/blog/2024/06/bahria-town-guide</guid>`,
		"<title>Bahria Town &lt;Guide&gt;</title>",
		"<link>https://www.narkinsbuilders.com/blog/2024/06/bahria-town-guide</link>",
		"<description>Buying &amp; selling in Bahria Town</description>",
		"<content:encoded><![CDATA[<p>Full body</p>]]></content:encoded>",
		"<pubDate>Sat, 15 Jun 2024 00:00:00 +0000</pubDate>",
		"<category>bahria town</category>",
		"<category>investment</category>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q", want)
		}
	}
}

func TestGenerateOmitsEmptyContent(t *testing.T) {
	posts := []models.Post{
		{Slug: "a", Title: "A", Date: "2024-01-01T00:00:00.000Z"},
	}

	out := testGenerator().Generate(posts)

	if strings.Contains(out, "content:encoded") {
		t.Error("empty content should not emit content:encoded")
	}
	if strings.Contains(out, "<description></description>") {
		t.Error("empty excerpt should omit description element")
	}
}

func TestGenerateEscapesCDATATerminator(t *testing.T) {
	posts := []models.Post{
		{Slug: "a", Title: "A", Date: "2024-01-01T00:00:00.000Z", Content: "before ]]> after"},
	}

	out := testGenerator().Generate(posts)

	if strings.Contains(out, "before ]]> after]]>") {
		t.Error("CDATA terminator in content was not split")
	}
	if !strings.Contains(out, "]]]]><![CDATA[>") {
		t.Error("expected split CDATA sections")
	}
}
