// Package precompile implements the out-of-band build step that
// produces the precompiled cache directory: one <slug>.json per post
// with the body rendered to HTML, plus an aggregate index.json.
package precompile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/narkins/contentd/internal/blogcache"
	"github.com/narkins/contentd/internal/content"
)

const maxAttempts = 3

// Summary reports what a build did.
type Summary struct {
	Total    int
	Compiled int
	Reused   int
	Failed   int
	Elapsed  time.Duration
	// ChangedURLs holds the canonical paths of posts that were
	// recompiled in this run, for post-build indexing pings.
	ChangedURLs []string
	Errors      []error

	// compiledMs accumulates compile time for this run's fresh
	// compilations only; reused entries keep their old stamps.
	compiledMs int64
}

// Precompiler renders content files into the cache directory using a
// pool of workers. Files whose recorded source hash and cache version
// still match are reused instead of recompiled.
type Precompiler struct {
	fs         afero.Fs
	contentDir string
	cacheDir   string
	workers    int
	now        func() time.Time
	log        zerolog.Logger
}

// Option configures a Precompiler.
type Option func(*Precompiler)

// WithWorkers overrides the adaptive worker count.
func WithWorkers(n int) Option {
	return func(p *Precompiler) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Precompiler) { p.now = now }
}

// WithLogger sets the precompiler's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Precompiler) { p.log = log }
}

// New builds a precompiler over the given content root and cache
// directory.
func New(fsys afero.Fs, contentDir, cacheDir string, opts ...Option) *Precompiler {
	p := &Precompiler{
		fs:         fsys,
		contentDir: contentDir,
		cacheDir:   cacheDir,
		workers:    defaultWorkers(),
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run compiles every content file and writes the cache directory.
// Individual file failures are retried and then reported in the
// summary; only setup problems abort the build.
func (p *Precompiler) Run(ctx context.Context) (*Summary, error) {
	start := p.now()

	files, err := content.FindFiles(p.fs, p.contentDir)
	if err != nil {
		return nil, fmt.Errorf("scan content dir: %w", err)
	}

	if err := p.fs.MkdirAll(p.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	// First path in walk order wins a slug collision.
	seen := make(map[string]string, len(files))
	jobs := make([]content.File, 0, len(files))
	for _, f := range files {
		if prev, dup := seen[f.Slug]; dup {
			p.log.Warn().Str("slug", f.Slug).Str("kept", prev).Str("skipped", f.Path).Msg("Duplicate slug")
			continue
		}
		seen[f.Slug] = f.Path
		jobs = append(jobs, f)
	}

	p.log.Info().
		Int("files", len(jobs)).
		Int("workers", p.workers).
		Msg("Starting precompilation")

	type outcome struct {
		entry  *blogcache.Entry
		reused bool
		err    error
		slug   string
	}

	jobCh := make(chan content.File)
	results := make(chan outcome, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			md := newMarkdown()
			for f := range jobCh {
				entry, reused, err := p.processFile(md, f)
				results <- outcome{entry: entry, reused: reused, err: err, slug: f.Slug}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, f := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- f:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := &Summary{Total: len(jobs)}
	var entries []blogcache.Entry

	for res := range results {
		switch {
		case res.err != nil:
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Errorf("%s: %w", res.slug, res.err))
			p.log.Error().Err(res.err).Str("slug", res.slug).Msg("Failed to precompile")
		case res.reused:
			summary.Reused++
			entries = append(entries, *res.entry)
		default:
			summary.Compiled++
			summary.compiledMs += res.entry.CompileTimeMs
			entries = append(entries, *res.entry)
			summary.ChangedURLs = append(summary.ChangedURLs, res.entry.Post().URL())
			p.log.Debug().Str("slug", res.slug).Int64("compile_ms", res.entry.CompileTimeMs).Msg("Compiled")
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	summary.Elapsed = p.now().Sub(start)

	if err := p.writeIndex(entries, summary); err != nil {
		return summary, fmt.Errorf("write index: %w", err)
	}

	p.log.Info().
		Int("compiled", summary.Compiled).
		Int("reused", summary.Reused).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("Precompilation finished")

	return summary, nil
}

// processFile compiles one content file, reusing the existing cache
// entry when its version and source hash still match.
func (p *Precompiler) processFile(md goldmark.Markdown, f content.File) (*blogcache.Entry, bool, error) {
	raw, err := afero.ReadFile(p.fs, f.Path)
	if err != nil {
		return nil, false, fmt.Errorf("read: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, false, fmt.Errorf("empty content")
	}

	hash := fmt.Sprintf("%016x", xxhash.Sum64(raw))

	if existing := p.reusable(f.Slug, hash); existing != nil {
		return existing, true, nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		entry, err := p.compile(md, f, raw, hash)
		if err == nil {
			return entry, false, nil
		}
		lastErr = err
		p.log.Warn().Err(err).Str("slug", f.Slug).Int("attempt", attempt).Msg("Compile attempt failed")
	}
	return nil, false, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func (p *Precompiler) compile(md goldmark.Markdown, f content.File, raw []byte, hash string) (*blogcache.Entry, error) {
	started := p.now()
	parsed := content.Parse(raw, started)

	var buf bytes.Buffer
	if err := md.Convert([]byte(parsed.Body), &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	if strings.TrimSpace(buf.String()) == "" {
		return nil, fmt.Errorf("rendered body is empty")
	}

	entry := &blogcache.Entry{
		IndexEntry: blogcache.IndexEntry{
			Slug:         f.Slug,
			Title:        parsed.Meta.Title,
			Excerpt:      parsed.Meta.Excerpt,
			Date:         parsed.Meta.Date,
			Image:        parsed.Meta.Image,
			ReadTime:     parsed.Meta.ReadTime,
			Keywords:     parsed.Meta.Keywords,
			CacheVersion: blogcache.ExpectedCacheVersion,
		},
		CompiledHTML:  buf.String(),
		SourceHash:    hash,
		CompileTimeMs: p.now().Sub(started).Milliseconds(),
	}
	if info, err := p.fs.Stat(f.Path); err == nil {
		entry.LastModified = info.ModTime().UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	path := filepath.Join(p.cacheDir, f.Slug+".json")
	if err := afero.WriteFile(p.fs, path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write entry: %w", err)
	}

	return entry, nil
}

// reusable loads an existing cache entry when it was built from the
// same source bytes by the same cache format version.
func (p *Precompiler) reusable(slug, hash string) *blogcache.Entry {
	path := filepath.Join(p.cacheDir, slug+".json")
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil
	}

	var entry blogcache.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	if entry.CacheVersion != blogcache.ExpectedCacheVersion || entry.SourceHash != hash {
		return nil
	}
	return &entry
}

func (p *Precompiler) writeIndex(entries []blogcache.Entry, summary *Summary) error {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Post().ParsedDate().After(entries[j].Post().ParsedDate())
	})

	index := blogcache.Index{
		Posts:        make([]blogcache.IndexEntry, 0, len(entries)),
		LastUpdated:  p.now().UTC().Format(time.RFC3339),
		TotalPosts:   len(entries),
		CacheVersion: blogcache.ExpectedCacheVersion,
		BuildStats: &blogcache.BuildStats{
			TotalTime:   fmt.Sprintf("%.2fs", summary.Elapsed.Seconds()),
			WorkersUsed: p.workers,
			Successful:  summary.Compiled + summary.Reused,
			Failed:      summary.Failed,
		},
	}
	if n := summary.Compiled; n > 0 {
		index.BuildStats.AvgCompileTime = fmt.Sprintf("%dms", summary.compiledMs/int64(n))
	}
	for _, e := range entries {
		index.Posts = append(index.Posts, e.IndexEntry)
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(p.fs, filepath.Join(p.cacheDir, blogcache.IndexFile), data, 0o644)
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// defaultWorkers scales with the machine but stays between 2 and 6;
// compilation is cheap enough that more workers just contend on I/O.
func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 6 {
		n = 6
	}
	if n < 2 {
		n = 2
	}
	return n
}
