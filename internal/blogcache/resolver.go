package blogcache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/narkins/contentd/internal/cache"
	"github.com/narkins/contentd/internal/content"
	"github.com/narkins/contentd/internal/models"
	"github.com/narkins/contentd/internal/related"
)

// Default TTLs. Content changes far more often during development.
const (
	DevPostsTTL     = 30 * time.Second
	ProdPostsTTL    = 5 * time.Minute
	DefaultIndexTTL = time.Minute
)

// sharedPostsKey is the shared-cache key for the resolved post list.
const sharedPostsKey = "posts:all"

// Resolver is the read path for blog content: a three-tier
// read-through cache over the in-process list cache, the precompiled
// store, and a live filesystem scan. No error ever crosses an
// operation boundary; callers get a best-effort result, an empty list,
// or not-found.
type Resolver struct {
	store      *Store
	fs         afero.Fs
	contentDir string
	shared     cache.Cache
	now        func() time.Time
	postsTTL   time.Duration
	indexTTL   time.Duration
	log        zerolog.Logger

	mu      sync.Mutex
	posts   []models.Post
	postsAt time.Time
	index   *Index
	indexAt time.Time
	stats   counters
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock injects the time source, for deterministic TTL tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithTTLs overrides the post list and index payload TTLs.
func WithTTLs(posts, index time.Duration) Option {
	return func(r *Resolver) {
		r.postsTTL = posts
		r.indexTTL = index
	}
}

// WithSharedCache adds an optional shared cache consulted between the
// memory tier and the precompiled store, so multiple instances
// converge inside one TTL window.
func WithSharedCache(c cache.Cache) Option {
	return func(r *Resolver) { r.shared = c }
}

// WithLogger sets the resolver's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// NewResolver builds a resolver over the given precompiled store and
// content root.
func NewResolver(store *Store, fsys afero.Fs, contentDir string, opts ...Option) *Resolver {
	r := &Resolver{
		store:      store,
		fs:         fsys,
		contentDir: contentDir,
		now:        time.Now,
		postsTTL:   ProdPostsTTL,
		indexTTL:   DefaultIndexTTL,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AllPosts resolves the full post list, newest first. List entries
// served from the precompiled index carry no body.
func (r *Resolver) AllPosts() []models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.total++
	now := r.now()

	// Tier 1: in-process list cache. Checked first, unconditionally.
	if r.posts != nil && now.Sub(r.postsAt) < r.postsTTL {
		r.stats.hits++
		return copyPosts(r.posts)
	}

	// Tier 1.5: optional shared cache.
	if posts, ok := r.sharedGet(); ok {
		r.stats.hits++
		r.posts = posts
		r.postsAt = now
		return copyPosts(posts)
	}

	// Tier 2: precompiled index.
	switch res := r.loadIndexCached(now); res.Outcome {
	case Hit:
		posts := make([]models.Post, 0, len(res.Index.Posts))
		for _, entry := range res.Index.Posts {
			post := entry.Post()
			post.Content = "" // not needed for list views
			posts = append(posts, post)
		}
		r.stats.hits++
		r.posts = posts
		r.postsAt = now
		r.sharedSet(posts)
		if bs := res.Index.BuildStats; bs != nil {
			r.log.Debug().
				Int("posts", len(posts)).
				Str("build_time", bs.TotalTime).
				Int("workers", bs.WorkersUsed).
				Msg("Loaded posts from precompiled cache")
		}
		return copyPosts(posts)
	case Invalid:
		r.stats.errors++
		r.log.Warn().Str("reason", res.Reason).Msg("Precompiled index rejected, falling back to file system")
	default:
		r.log.Debug().Msg("No precompiled index, using file system")
	}

	// Tier 3: live scan and parse.
	r.stats.fallbacks++
	posts := r.scanAll(now)
	r.posts = posts
	r.postsAt = now
	r.sharedSet(posts)
	return copyPosts(posts)
}

// PostBySlug resolves a single post. When served from the precompiled
// store the raw body is left empty; callers use CompiledHTML for the
// rendered body. The filesystem fallback returns the raw body. Returns
// nil when no content file matches the slug.
func (r *Resolver) PostBySlug(slug string) *models.Post {
	if slug == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.total++

	switch res := r.store.LoadEntry(slug); res.Outcome {
	case Hit:
		r.stats.hits++
		post := res.Entry.Post()
		post.Content = "" // compiled HTML is served instead
		return &post
	case Invalid:
		r.stats.errors++
		r.log.Warn().Str("slug", slug).Str("reason", res.Reason).Msg("Cached post rejected, falling back to file system")
	default:
		r.stats.misses++
	}

	r.stats.fallbacks++
	return r.scanOne(slug, r.now())
}

// CompiledHTML returns the pre-rendered body for a post, when a valid
// precompiled entry exists.
func (r *Resolver) CompiledHTML(slug string) (string, bool) {
	if slug == "" {
		return "", false
	}
	res := r.store.LoadEntry(slug)
	if res.Outcome != Hit {
		return "", false
	}
	return res.Entry.CompiledHTML, true
}

// AdjacentPosts returns the previous/next neighbors of slug in date
// order.
func (r *Resolver) AdjacentPosts(slug string) models.Adjacent {
	if slug == "" {
		return models.Adjacent{}
	}
	return related.Adjacent(r.AllPosts(), slug)
}

// RelatedPosts returns the posts most similar to the given one.
func (r *Resolver) RelatedPosts(post models.Post, limit int) []models.Post {
	return related.Posts(post, r.AllPosts(), limit)
}

// Stats returns a snapshot of the cache counters.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.snapshot()
}

// Info reports the precompiled cache directory state plus counters.
func (r *Resolver) Info() map[string]interface{} {
	return map[string]interface{}{
		"cacheDir": r.store.Info(),
		"stats":    r.Stats(),
	}
}

// Clear drops the in-process caches and resets the counters. The
// shared tier entry is dropped too so other instances refresh.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.posts = nil
	r.postsAt = time.Time{}
	r.index = nil
	r.indexAt = time.Time{}
	r.stats.reset()

	if r.shared != nil {
		if err := r.shared.Delete(context.Background(), sharedPostsKey); err != nil {
			r.log.Warn().Err(err).Msg("Failed to clear shared cache entry")
		}
	}
}

// loadIndexCached memoizes a successfully parsed index for a short
// window, since the index can be regenerated by a concurrent build.
func (r *Resolver) loadIndexCached(now time.Time) IndexResult {
	if r.index != nil && now.Sub(r.indexAt) < r.indexTTL {
		return IndexResult{Outcome: Hit, Index: r.index}
	}

	res := r.store.LoadIndex()
	if res.Outcome == Hit {
		r.index = res.Index
		r.indexAt = now
	}
	return res
}

// scanAll enumerates and parses every content file. Files that cannot
// be read or are empty are logged and skipped; a single bad file must
// never break listing of the rest. A top-level scan failure produces
// an empty list rather than an error.
func (r *Resolver) scanAll(now time.Time) []models.Post {
	files, err := content.FindFiles(r.fs, r.contentDir)
	if err != nil {
		r.log.Error().Err(err).Str("dir", r.contentDir).Msg("Content scan failed")
		return []models.Post{}
	}
	if len(files) == 0 {
		r.log.Warn().Str("dir", r.contentDir).Msg("No content files found")
		return []models.Post{}
	}

	posts := make([]models.Post, 0, len(files))
	seen := make(map[string]string, len(files))

	for _, f := range files {
		// First path in walk order wins a slug collision.
		if prev, dup := seen[f.Slug]; dup {
			r.log.Warn().Str("slug", f.Slug).Str("kept", prev).Str("skipped", f.Path).Msg("Duplicate slug")
			continue
		}

		post, ok := r.readPost(f, now)
		if !ok {
			continue
		}
		seen[f.Slug] = f.Path
		posts = append(posts, post)
	}

	models.SortByDate(posts)
	r.log.Debug().Int("posts", len(posts)).Msg("Loaded posts from file system")
	return posts
}

// scanOne finds and parses the single content file matching slug.
func (r *Resolver) scanOne(slug string, now time.Time) *models.Post {
	f, ok, err := content.FindBySlug(r.fs, r.contentDir, slug)
	if err != nil {
		r.log.Error().Err(err).Str("slug", slug).Msg("Content scan failed")
		return nil
	}
	if !ok {
		r.log.Debug().Str("slug", slug).Msg("Post file not found")
		return nil
	}

	post, ok := r.readPost(f, now)
	if !ok {
		return nil
	}
	return &post
}

func (r *Resolver) readPost(f content.File, now time.Time) (models.Post, bool) {
	raw, err := afero.ReadFile(r.fs, f.Path)
	if err != nil {
		r.log.Warn().Err(err).Str("path", f.Path).Msg("Failed to read content file")
		return models.Post{}, false
	}
	if strings.TrimSpace(string(raw)) == "" {
		r.log.Warn().Str("path", f.Path).Msg("Empty content file")
		return models.Post{}, false
	}

	parsed := content.Parse(raw, now)

	post := models.Post{
		Slug:     f.Slug,
		Title:    parsed.Meta.Title,
		Excerpt:  parsed.Meta.Excerpt,
		Date:     parsed.Meta.Date,
		Image:    parsed.Meta.Image,
		Content:  parsed.Body,
		ReadTime: parsed.Meta.ReadTime,
		Keywords: parsed.Meta.Keywords,
	}
	if info, err := r.fs.Stat(f.Path); err == nil {
		post.LastModified = info.ModTime().UTC().Format(time.RFC3339)
	}
	return post, true
}

// sharedGet consults the optional shared tier. Any failure is a miss.
func (r *Resolver) sharedGet() ([]models.Post, bool) {
	if r.shared == nil {
		return nil, false
	}

	data, err := r.shared.Get(context.Background(), sharedPostsKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.log.Warn().Err(err).Msg("Shared cache read failed")
		}
		return nil, false
	}

	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		r.log.Warn().Err(err).Msg("Shared cache payload invalid")
		return nil, false
	}
	return posts, true
}

func (r *Resolver) sharedSet(posts []models.Post) {
	if r.shared == nil {
		return
	}

	data, err := json.Marshal(posts)
	if err != nil {
		return
	}
	if err := r.shared.Set(context.Background(), sharedPostsKey, data, r.postsTTL); err != nil {
		r.log.Warn().Err(err).Msg("Shared cache write failed")
	}
}

func copyPosts(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	copy(out, posts)
	return out
}
