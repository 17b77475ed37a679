package search

import (
	"testing"

	"github.com/narkins/contentd/internal/models"
)

func samplePosts() []models.Post {
	return []models.Post{
		{
			Slug:     "bahria-town-investment",
			Title:    "Bahria Town Karachi Investment Guide",
			Excerpt:  "Why Bahria Town remains a strong option for property buyers.",
			Content:  "Bahria Town Karachi offers gated community living with modern amenities.",
			Keywords: "bahria town, investment, karachi",
			Date:     "2025-01-01T00:00:00.000Z",
		},
		{
			Slug:     "hmr-waterfront-launch",
			Title:    "HMR Waterfront Launch Event",
			Excerpt:  "A look at the new waterfront towers.",
			Content:  "The HMR Waterfront project launched its second tower this month.",
			Keywords: "hmr waterfront, luxury apartments",
			Date:     "2024-06-01T00:00:00.000Z",
		},
		{
			Slug:     "mortgage-basics",
			Title:    "Mortgage Basics for First Time Buyers",
			Excerpt:  "Understanding home financing in Pakistan.",
			Content:  "Financing a home purchase requires understanding markup rates and tenure.",
			Keywords: "mortgage, financing",
			Date:     "2024-01-01T00:00:00.000Z",
		},
	}
}

func newIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearchFindsByTitle(t *testing.T) {
	idx := newIndex(t)
	if err := idx.Refresh(samplePosts()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	results, err := idx.Search("waterfront", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Slug != "hmr-waterfront-launch" {
		t.Errorf("top result = %s, want hmr-waterfront-launch", results[0].Slug)
	}
	if results[0].Title == "" || results[0].Score <= 0 {
		t.Errorf("result missing metadata: %+v", results[0])
	}
}

func TestSearchFindsByContent(t *testing.T) {
	idx := newIndex(t)
	if err := idx.Refresh(samplePosts()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	results, err := idx.Search("markup rates", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Slug != "mortgage-basics" {
		t.Errorf("top result = %s, want mortgage-basics", results[0].Slug)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	idx := newIndex(t)
	if err := idx.Refresh(samplePosts()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	results, err := idx.Search("karachi OR waterfront OR mortgage", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) > 1 {
		t.Errorf("got %d results, want at most 1", len(results))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := newIndex(t)

	results, err := idx.Search("anything", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty index, want 0", len(results))
	}
}

func TestRefreshSkipsUnchangedPosts(t *testing.T) {
	idx := newIndex(t)
	posts := samplePosts()
	if err := idx.Refresh(posts); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	first := idx.fingerprint
	if err := idx.Refresh(posts); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if idx.fingerprint != first {
		t.Error("fingerprint changed for identical post list")
	}
}

func TestRefreshPicksUpNewPosts(t *testing.T) {
	idx := newIndex(t)
	posts := samplePosts()
	if err := idx.Refresh(posts[:2]); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	results, err := idx.Search("mortgage", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatal("mortgage post should not be indexed yet")
	}

	if err := idx.Refresh(posts); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	results, err = idx.Search("mortgage", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected mortgage post after refresh")
	}
}
