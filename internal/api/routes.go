package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/narkins/contentd/internal/middleware"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, handlers *Handlers, adminKey string) {
	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	// Site feed lives outside the API prefix
	app.Get("/feed.xml", handlers.Feed)

	// API group with versioning
	api := app.Group("/api/v1")

	// Health check endpoint
	api.Get("/health", handlers.HealthCheck)

	// Post endpoints
	posts := api.Group("/posts")
	{
		posts.Get("", handlers.ListPosts)
		posts.Get("/:slug", handlers.GetPost)
		posts.Get("/:slug/adjacent", handlers.GetAdjacentPosts)
		posts.Get("/:slug/related", handlers.GetRelatedPosts)
	}

	// Search
	api.Get("/search", handlers.SearchPosts)

	// Cache introspection
	cache := api.Group("/cache")
	{
		cache.Get("/stats", handlers.CacheStats)
		cache.Get("/info", handlers.CacheInfo)
	}

	// Admin endpoints
	admin := api.Group("/admin", middleware.AdminOnly(adminKey))
	{
		admin.Post("/precompile", handlers.Precompile)
		admin.Post("/cache/clear", handlers.ClearCache)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
