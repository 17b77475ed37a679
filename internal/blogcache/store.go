package blogcache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/narkins/contentd/internal/models"
)

// ExpectedCacheVersion is the cache format version this code path can
// serve. Entries produced by a build with a different version are
// treated as absent so a stale on-disk cache is never served after a
// deploy that changed the shape.
const ExpectedCacheVersion = "1.3.0"

// IndexFile is the aggregate file name inside the cache directory.
const IndexFile = "index.json"

// IndexEntry is the lightweight per-post record inside index.json. It
// carries no body.
type IndexEntry struct {
	Slug         string `json:"slug" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Excerpt      string `json:"excerpt"`
	Date         string `json:"date" validate:"required"`
	Image        string `json:"image"`
	ReadTime     string `json:"readTime"`
	Keywords     string `json:"keywords"`
	LastModified string `json:"lastModified,omitempty"`
	CacheVersion string `json:"cacheVersion"`
}

// BuildStats is the diagnostics block the precompiler writes into
// index.json. It is never consumed by the rendering path.
type BuildStats struct {
	TotalTime      string `json:"totalTime"`
	WorkersUsed    int    `json:"workersUsed"`
	Successful     int    `json:"successfulCompilations"`
	Failed         int    `json:"failedCompilations"`
	AvgCompileTime string `json:"avgCompileTime,omitempty"`
}

// Index is the decoded shape of index.json.
type Index struct {
	Posts        []IndexEntry `json:"posts" validate:"required"`
	LastUpdated  string       `json:"lastUpdated"`
	TotalPosts   int          `json:"totalPosts"`
	CacheVersion string       `json:"cacheVersion"`
	BuildStats   *BuildStats  `json:"buildStats,omitempty"`
}

// Entry is the decoded shape of a per-post <slug>.json file. The
// compiled HTML body is the expensive part of the build and is required
// for the entry to count as valid.
type Entry struct {
	IndexEntry
	CompiledHTML  string `json:"compiledHtml" validate:"required"`
	SourceHash    string `json:"sourceHash,omitempty"`
	CompileTimeMs int64  `json:"compileTimeMs,omitempty"`
}

// Post maps an index entry into the resolver's post shape. The body is
// deliberately blank: list views never carry content, detail views use
// the compiled HTML directly.
func (e IndexEntry) Post() models.Post {
	return models.Post{
		Slug:         e.Slug,
		Title:        e.Title,
		Excerpt:      e.Excerpt,
		Date:         e.Date,
		Image:        e.Image,
		ReadTime:     e.ReadTime,
		Keywords:     e.Keywords,
		LastModified: e.LastModified,
	}
}

// Outcome classifies a single cache tier probe. The tier-selection
// logic in the resolver branches on this instead of suppressing
// errors.
type Outcome int

const (
	// Absent means the tier has nothing for the request.
	Absent Outcome = iota
	// Invalid means the tier has data that failed validation and must
	// not be served.
	Invalid
	// Hit means the tier produced valid data.
	Hit
)

// IndexResult is the outcome of probing the aggregate index.
type IndexResult struct {
	Outcome Outcome
	Index   *Index
	Reason  string
}

// EntryResult is the outcome of probing a per-post entry.
type EntryResult struct {
	Outcome Outcome
	Entry   *Entry
	Reason  string
}

// Info describes the cache directory for diagnostics.
type Info struct {
	Exists       bool        `json:"exists"`
	IndexExists  bool        `json:"indexExists"`
	TotalFiles   int         `json:"totalFiles"`
	TotalPosts   int         `json:"totalPosts,omitempty"`
	LastUpdated  string      `json:"lastUpdated,omitempty"`
	CacheVersion string      `json:"cacheVersion,omitempty"`
	BuildStats   *BuildStats `json:"buildStats,omitempty"`
}

// Store reads the precompiled cache directory written by the
// out-of-band build step: one index.json plus one <slug>.json per
// post, each stamped with a cache format version.
type Store struct {
	fs       afero.Fs
	dir      string
	validate *validator.Validate
}

// NewStore opens a store over the given cache directory. The directory
// does not have to exist; probes against a missing directory report
// Absent.
func NewStore(fsys afero.Fs, dir string) *Store {
	return &Store{
		fs:       fsys,
		dir:      dir,
		validate: validator.New(),
	}
}

// Dir returns the cache directory path.
func (s *Store) Dir() string {
	return s.dir
}

// LoadIndex probes index.json. A version mismatch or a structural
// failure invalidates the whole index, not individual entries; entries
// that individually fail validation are dropped from an otherwise
// valid index.
func (s *Store) LoadIndex() IndexResult {
	path := filepath.Join(s.dir, IndexFile)
	exists, err := afero.Exists(s.fs, path)
	if err != nil || !exists {
		return IndexResult{Outcome: Absent}
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return IndexResult{Outcome: Invalid, Reason: fmt.Sprintf("read index: %v", err)}
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return IndexResult{Outcome: Invalid, Reason: fmt.Sprintf("parse index: %v", err)}
	}

	if idx.CacheVersion != ExpectedCacheVersion {
		return IndexResult{
			Outcome: Invalid,
			Reason:  fmt.Sprintf("version mismatch: expected %s, got %s", ExpectedCacheVersion, idx.CacheVersion),
		}
	}

	valid := idx.Posts[:0:0]
	for _, entry := range idx.Posts {
		if s.entryValid(entry) {
			valid = append(valid, entry)
		}
	}
	if len(valid) == 0 {
		return IndexResult{Outcome: Invalid, Reason: "no valid posts in index"}
	}
	idx.Posts = valid

	return IndexResult{Outcome: Hit, Index: &idx}
}

// LoadEntry probes the per-post <slug>.json file.
func (s *Store) LoadEntry(slug string) EntryResult {
	path := filepath.Join(s.dir, slug+".json")
	exists, err := afero.Exists(s.fs, path)
	if err != nil || !exists {
		return EntryResult{Outcome: Absent}
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return EntryResult{Outcome: Invalid, Reason: fmt.Sprintf("read entry: %v", err)}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return EntryResult{Outcome: Invalid, Reason: fmt.Sprintf("parse entry: %v", err)}
	}

	if entry.CacheVersion != ExpectedCacheVersion {
		return EntryResult{
			Outcome: Invalid,
			Reason:  fmt.Sprintf("version mismatch: expected %s, got %s", ExpectedCacheVersion, entry.CacheVersion),
		}
	}

	if err := s.validate.Struct(entry); err != nil {
		return EntryResult{Outcome: Invalid, Reason: fmt.Sprintf("validation failed: %v", err)}
	}

	return EntryResult{Outcome: Hit, Entry: &entry}
}

// entryValid applies the required-field rules to an index entry. The
// per-entry version stamp must also match when present.
func (s *Store) entryValid(entry IndexEntry) bool {
	if err := s.validate.Struct(entry); err != nil {
		return false
	}
	if entry.CacheVersion != "" && entry.CacheVersion != ExpectedCacheVersion {
		return false
	}
	return true
}

// Info reports the state of the cache directory for the diagnostics
// endpoint.
func (s *Store) Info() Info {
	exists, err := afero.DirExists(s.fs, s.dir)
	if err != nil || !exists {
		return Info{}
	}

	info := Info{Exists: true}

	files, err := afero.ReadDir(s.fs, s.dir)
	if err == nil {
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			if f.Name() == IndexFile {
				info.IndexExists = true
				continue
			}
			info.TotalFiles++
		}
	}

	if res := s.LoadIndex(); res.Outcome == Hit {
		info.TotalPosts = res.Index.TotalPosts
		info.LastUpdated = res.Index.LastUpdated
		info.CacheVersion = res.Index.CacheVersion
		info.BuildStats = res.Index.BuildStats
	}

	return info
}
