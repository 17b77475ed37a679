package api

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/narkins/contentd/internal/blogcache"
	"github.com/narkins/contentd/internal/config"
	"github.com/narkins/contentd/internal/feedgen"
	"github.com/narkins/contentd/internal/indexnow"
	"github.com/narkins/contentd/internal/logger"
	"github.com/narkins/contentd/internal/models"
	"github.com/narkins/contentd/internal/precompile"
	"github.com/narkins/contentd/internal/search"
)

type Handlers struct {
	config      *config.Config
	resolver    *blogcache.Resolver
	search      *search.Index
	feed        *feedgen.Generator
	precompiler *precompile.Precompiler
	indexNow    *indexnow.Client

	precompiling atomic.Bool
}

func NewHandlers(cfg *config.Config, resolver *blogcache.Resolver, idx *search.Index,
	feed *feedgen.Generator, pre *precompile.Precompiler, inow *indexnow.Client) *Handlers {
	return &Handlers{
		config:      cfg,
		resolver:    resolver,
		search:      idx,
		feed:        feed,
		precompiler: pre,
		indexNow:    inow,
	}
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": blogcache.ExpectedCacheVersion,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// ListPosts handles GET /api/v1/posts
func (h *Handlers) ListPosts(c *fiber.Ctx) error {
	// Parse pagination parameters
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}

	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	switch {
	case pageSize > 100:
		pageSize = 100
	case pageSize <= 0:
		pageSize = 20
	}

	posts := h.resolver.AllPosts()
	total := len(posts)

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]models.Post, 0, end-start)
	for _, post := range posts[start:end] {
		// List responses carry metadata only
		post.Content = ""
		items = append(items, post)
	}

	return c.JSON(fiber.Map{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
		"items":     items,
	})
}

// GetPost handles GET /api/v1/posts/:slug
func (h *Handlers) GetPost(c *fiber.Ctx) error {
	slug := c.Params("slug")

	post := h.resolver.PostBySlug(slug)
	if post == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	}

	resp := fiber.Map{"post": post}
	if html, ok := h.resolver.CompiledHTML(slug); ok {
		resp["compiledHtml"] = html
	}

	return c.JSON(resp)
}

// GetAdjacentPosts handles GET /api/v1/posts/:slug/adjacent
func (h *Handlers) GetAdjacentPosts(c *fiber.Ctx) error {
	return c.JSON(h.resolver.AdjacentPosts(c.Params("slug")))
}

// GetRelatedPosts handles GET /api/v1/posts/:slug/related
func (h *Handlers) GetRelatedPosts(c *fiber.Ctx) error {
	slug := c.Params("slug")

	post := h.resolver.PostBySlug(slug)
	if post == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	if limit > 10 {
		limit = 10
	}

	related := h.resolver.RelatedPosts(*post, limit)
	items := make([]models.Post, 0, len(related))
	for _, p := range related {
		p.Content = ""
		items = append(items, p)
	}

	return c.JSON(fiber.Map{"items": items})
}

// SearchPosts handles GET /api/v1/search
func (h *Handlers) SearchPosts(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter q is required",
		})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	if limit > 50 {
		limit = 50
	}

	// Reindex lazily so new or recompiled posts are searchable
	if err := h.search.Refresh(h.resolver.AllPosts()); err != nil {
		logger.Get().Error().Err(err).Msg("Search index refresh failed")
	}

	results, err := h.search.Search(query, limit)
	if err != nil {
		logger.Get().Error().Err(err).Str("query", query).Msg("Search failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	return c.JSON(fiber.Map{
		"query": query,
		"total": len(results),
		"items": results,
	})
}

// Feed handles GET /feed.xml
func (h *Handlers) Feed(c *fiber.Ctx) error {
	c.Set("Content-Type", "application/rss+xml; charset=utf-8")
	return c.SendString(h.feed.Generate(h.resolver.AllPosts()))
}

// CacheStats handles GET /api/v1/cache/stats
func (h *Handlers) CacheStats(c *fiber.Ctx) error {
	return c.JSON(h.resolver.Stats())
}

// CacheInfo handles GET /api/v1/cache/info
func (h *Handlers) CacheInfo(c *fiber.Ctx) error {
	return c.JSON(h.resolver.Info())
}

// ClearCache handles POST /api/v1/admin/cache/clear
func (h *Handlers) ClearCache(c *fiber.Ctx) error {
	h.resolver.Clear()
	logger.Get().Info().Str("ip", c.IP()).Msg("Cache cleared via admin API")
	return c.JSON(fiber.Map{"status": "cleared"})
}

// Precompile handles POST /api/v1/admin/precompile. The build runs in
// the background; only one run is allowed at a time.
func (h *Handlers) Precompile(c *fiber.Ctx) error {
	log := logger.Get()

	if !h.precompiling.CompareAndSwap(false, true) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A precompile run is already in progress",
		})
	}

	log.Info().
		Str("ip", c.IP()).
		Msg("Starting background precompile run")

	go func() {
		defer h.precompiling.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		summary, err := h.precompiler.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Precompile run failed")
			return
		}

		log.Info().
			Int("total", summary.Total).
			Int("compiled", summary.Compiled).
			Int("reused", summary.Reused).
			Int("failed", summary.Failed).
			Dur("elapsed", summary.Elapsed).
			Msg("Precompile run finished")

		// Serve the fresh cache immediately
		h.resolver.Clear()

		if h.indexNow != nil && h.indexNow.Enabled() && len(summary.ChangedURLs) > 0 {
			urls := make([]string, 0, len(summary.ChangedURLs))
			for _, u := range summary.ChangedURLs {
				urls = append(urls, h.config.SiteURL+u)
			}
			if err := h.indexNow.Submit(ctx, urls); err != nil {
				log.Error().Err(err).Msg("IndexNow submission failed")
			} else {
				log.Info().Int("urls", len(urls)).Msg("Submitted changed URLs to IndexNow")
			}
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "started",
	})
}
