package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"

	"github.com/narkins/contentd/internal/blogcache"
	"github.com/narkins/contentd/internal/config"
	"github.com/narkins/contentd/internal/feedgen"
	"github.com/narkins/contentd/internal/indexnow"
	"github.com/narkins/contentd/internal/models"
	"github.com/narkins/contentd/internal/precompile"
	"github.com/narkins/contentd/internal/search"
)

const adminKey = "test-admin-key"

func seedContent(t *testing.T, fs afero.Fs) {
	t.Helper()
	files := map[string]string{
		"content/bahria-town-guide.mdx": "---\ntitle: Bahria Town Guide\nexcerpt: Buying in Bahria Town\ndate: 2025-01-01\nkeywords: bahria town, investment\n---\n\n# Guide\n\nBody text.",
		"content/hmr-waterfront.mdx":    "---\ntitle: HMR Waterfront\nexcerpt: Waterfront towers\ndate: 2024-06-01\n---\n\nTower news.",
		"content/market-update.mdx":     "---\ntitle: Market Update\nexcerpt: Quarterly numbers\ndate: 2024-01-01\n---\n\nNumbers.",
	}
	for path, body := range files {
		if err := afero.WriteFile(fs, path, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	fs := afero.NewMemMapFs()
	seedContent(t, fs)

	store := blogcache.NewStore(fs, "cache")
	resolver := blogcache.NewResolver(store, fs, "content")

	idx, err := search.New()
	if err != nil {
		t.Fatalf("search.New: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	cfg := &config.Config{SiteURL: "https://example.com", AdminAPIKey: adminKey}
	feed := feedgen.NewGenerator(cfg.SiteURL, "Test Blog", "Test feed")
	pre := precompile.New(fs, "content", "cache", precompile.WithWorkers(2))
	inow, err := indexnow.NewClient("", "")
	if err != nil {
		t.Fatalf("indexnow.NewClient: %v", err)
	}

	handlers := NewHandlers(cfg, resolver, idx, feed, pre, inow)

	app := fiber.New()
	SetupRoutes(app, handlers, cfg.AdminAPIKey)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, body
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, "GET", "/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("status field = %v", payload["status"])
	}
}

func TestListPosts(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, "GET", "/api/v1/posts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Page     int           `json:"page"`
		PageSize int           `json:"page_size"`
		Total    int           `json:"total"`
		Items    []models.Post `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Total != 3 || len(payload.Items) != 3 {
		t.Fatalf("total = %d, items = %d, want 3", payload.Total, len(payload.Items))
	}
	if payload.Items[0].Slug != "bahria-town-guide" {
		t.Errorf("first slug = %s, want newest first", payload.Items[0].Slug)
	}
	for _, item := range payload.Items {
		if item.Content != "" {
			t.Errorf("list item %s carries content", item.Slug)
		}
	}
}

func TestListPostsPagination(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, "GET", "/api/v1/posts?page=2&page_size=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Total int           `json:"total"`
		Items []models.Post `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Total != 3 {
		t.Errorf("total = %d, want 3", payload.Total)
	}
	if len(payload.Items) != 1 || payload.Items[0].Slug != "market-update" {
		t.Errorf("page 2 items = %+v, want only market-update", payload.Items)
	}
}

func TestGetPost(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, "GET", "/api/v1/posts/hmr-waterfront", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Post models.Post `json:"post"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Post.Title != "HMR Waterfront" {
		t.Errorf("title = %s", payload.Post.Title)
	}
}

func TestGetPostNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doRequest(t, app, "GET", "/api/v1/posts/no-such-post", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetAdjacentPosts(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, "GET", "/api/v1/posts/hmr-waterfront/adjacent", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Previous *models.PostRef `json:"previousPost"`
		Next     *models.PostRef `json:"nextPost"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Previous == nil || payload.Previous.Slug != "market-update" {
		t.Errorf("previousPost = %+v, want market-update", payload.Previous)
	}
	if payload.Next == nil || payload.Next.Slug != "bahria-town-guide" {
		t.Errorf("nextPost = %+v, want bahria-town-guide", payload.Next)
	}
}

func TestGetRelatedPosts(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, "GET", "/api/v1/posts/bahria-town-guide/related", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Items []models.Post `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, item := range payload.Items {
		if item.Slug == "bahria-town-guide" {
			t.Error("related list contains the post itself")
		}
	}
}

func TestSearch(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, "GET", "/api/v1/search?q=waterfront", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Total int             `json:"total"`
		Items []search.Result `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Total == 0 || payload.Items[0].Slug != "hmr-waterfront" {
		t.Errorf("search results = %+v, want hmr-waterfront", payload.Items)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doRequest(t, app, "GET", "/api/v1/search", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFeed(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, "GET", "/feed.xml", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/rss+xml") {
		t.Errorf("content type = %s", ct)
	}
	if !strings.Contains(string(body), "<title>Bahria Town Guide</title>") {
		t.Error("feed missing post title")
	}
}

func TestCacheStats(t *testing.T) {
	app := newTestApp(t)

	doRequest(t, app, "GET", "/api/v1/posts", nil)

	resp, body := doRequest(t, app, "GET", "/api/v1/cache/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var stats blogcache.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.TotalRequests == 0 {
		t.Error("expected recorded requests")
	}
}

func TestAdminRequiresKey(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doRequest(t, app, "POST", "/api/v1/admin/cache/clear", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", resp.StatusCode)
	}

	resp, _ = doRequest(t, app, "POST", "/api/v1/admin/cache/clear",
		map[string]string{"X-API-Key": "wrong"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status with wrong key = %d, want 403", resp.StatusCode)
	}

	resp, _ = doRequest(t, app, "POST", "/api/v1/admin/cache/clear",
		map[string]string{"X-API-Key": adminKey})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundRoute(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doRequest(t, app, "GET", "/api/v1/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
