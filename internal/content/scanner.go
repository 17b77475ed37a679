package content

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Extension of source content files. The filename minus this extension
// is the post slug.
const Extension = ".mdx"

// File is a discovered content file.
type File struct {
	Slug string
	Path string
}

// FindFiles returns every content file under root, recursing through
// arbitrarily nested subdirectories (the content tree uses a
// <year>/<month>/<slug> layout). A missing root yields an empty set.
// Non-content files are skipped silently. Files come back in lexical
// walk order; date ordering is imposed later by the resolver.
func FindFiles(fsys afero.Fs, root string) ([]File, error) {
	exists, err := afero.DirExists(fsys, root)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var files []File
	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), Extension) {
			return nil
		}
		files = append(files, File{
			Slug: strings.TrimSuffix(info.Name(), Extension),
			Path: path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// FindBySlug locates the content file for a single slug, or returns
// ok=false when no file matches anywhere under root.
func FindBySlug(fsys afero.Fs, root, slug string) (File, bool, error) {
	files, err := FindFiles(fsys, root)
	if err != nil {
		return File{}, false, err
	}
	for _, f := range files {
		if f.Slug == slug {
			return f, true, nil
		}
	}
	return File{}, false, nil
}

// Slug derives the post slug from a content file path.
func Slug(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}
