package models

import (
	"encoding/json"
	"testing"
)

func TestPostJSONFieldNames(t *testing.T) {
	post := Post{
		Slug:     "hill-crest-residency",
		Title:    "Hill Crest Residency",
		Excerpt:  "Luxury apartments in Bahria Town",
		Date:     "2024-06-01T00:00:00Z",
		Image:    "/images/hill-crest.webp",
		ReadTime: "7 min read",
		Keywords: "bahria town, karachi",
	}

	data, err := json.Marshal(post)
	if err != nil {
		t.Fatalf("Failed to marshal Post: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	if result["readTime"] != "7 min read" {
		t.Errorf("Expected readTime field to be '7 min read', got %v", result["readTime"])
	}
	if _, ok := result["lastModified"]; ok {
		t.Errorf("Expected lastModified to be omitted when empty, got %v", result["lastModified"])
	}
}

func TestPostURL(t *testing.T) {
	post := Post{Slug: "market-update", Date: "2025-01-15T10:30:00Z"}
	if got := post.URL(); got != "/blog/2025/01/market-update" {
		t.Errorf("URL() = %q, want /blog/2025/01/market-update", got)
	}
}

func TestSortByDate(t *testing.T) {
	posts := []Post{
		{Slug: "a", Date: "2024-01-01T00:00:00Z"},
		{Slug: "c", Date: "2025-01-01T00:00:00Z"},
		{Slug: "b", Date: "2024-06-01T00:00:00Z"},
	}

	SortByDate(posts)

	want := []string{"c", "b", "a"}
	for i, w := range want {
		if posts[i].Slug != w {
			t.Errorf("posts[%d].Slug = %q, want %q", i, posts[i].Slug, w)
		}
	}
}
