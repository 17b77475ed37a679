package models

import (
	"fmt"
	"sort"
	"time"
)

// Post represents a single blog post resolved from the content set.
// Date and LastModified are RFC3339 strings; Date is always populated,
// LastModified only when the post was read from disk.
type Post struct {
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Excerpt      string `json:"excerpt"`
	Date         string `json:"date"`
	Image        string `json:"image"`
	Content      string `json:"content"`
	ReadTime     string `json:"readTime"`
	Keywords     string `json:"keywords"`
	LastModified string `json:"lastModified,omitempty"`
}

// PostRef is the lightweight shape used for previous/next navigation.
type PostRef struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Date    string `json:"date"`
}

// Adjacent holds the neighbors of a post in date order. Either side is
// nil at the ends of the list, both are nil when the post is unknown.
type Adjacent struct {
	Previous *PostRef `json:"previousPost"`
	Next     *PostRef `json:"nextPost"`
}

// Ref returns the navigation shape of a post.
func (p Post) Ref() *PostRef {
	return &PostRef{Slug: p.Slug, Title: p.Title, Excerpt: p.Excerpt, Date: p.Date}
}

// ParsedDate parses the post date, returning the zero time when the
// stored string is not valid RFC3339.
func (p Post) ParsedDate() time.Time {
	t, err := time.Parse(time.RFC3339, p.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// URL returns the canonical path for a post: /blog/<year>/<month>/<slug>.
func (p Post) URL() string {
	t := p.ParsedDate()
	return fmt.Sprintf("/blog/%04d/%02d/%s", t.Year(), int(t.Month()), p.Slug)
}

// SortByDate orders posts newest first, in place.
func SortByDate(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].ParsedDate().After(posts[j].ParsedDate())
	})
}
