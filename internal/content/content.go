// Package content serves the published site content files that live on
// disk under a single root directory.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// MaxFileSize is the largest file Lookup will read.
const MaxFileSize = 10 << 20

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrNotFound       = errors.New("file not found")
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrTooLarge       = errors.New("file too large")
)

var contentTypes = map[string]string{
	".json": "application/json",
	".txt":  "text/plain",
	".html": "text/html",
	".md":   "text/markdown",
	".csv":  "text/csv",
}

// Allowed reports whether name has an extension the store will serve.
func Allowed(name string) bool {
	_, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Result is what Lookup found. Exactly one of Files (directory) or
// Content is meaningful.
type Result struct {
	IsDir   bool
	Files   []string
	Content string
	Type    string
}

// Data is the response payload for r: the listing for a directory, the
// parsed document for a JSON file, or the raw text and its type otherwise.
func (r *Result) Data() any {
	if r.IsDir {
		return map[string]any{"files": r.Files}
	}
	if r.Type == "application/json" {
		var v any
		if err := json.Unmarshal([]byte(r.Content), &v); err == nil {
			return v
		}
		return map[string]any{"content": r.Content}
	}
	return map[string]any{"content": r.Content, "type": r.Type}
}

type Store struct {
	dir     string
	maxSize int64
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, maxSize: MaxFileSize}
}

// Lookup resolves reqPath under the store root.
func (s *Store) Lookup(reqPath string) (*Result, error) {
	name, err := clean(reqPath)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open content root: %w", err)
	}
	defer root.Close()

	info, err := root.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}

	if info.IsDir() {
		return s.list(root, name)
	}

	ext := strings.ToLower(filepath.Ext(name))
	ctype, ok := contentTypes[ext]
	if !ok {
		return nil, ErrTypeNotAllowed
	}
	if info.Size() > s.maxSize {
		return nil, ErrTooLarge
	}

	f, err := root.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}
	return &Result{Content: string(data), Type: ctype}, nil
}

func (s *Store) list(root *os.Root, name string) (*Result, error) {
	d, err := root.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open dir %s: %w", name, err)
	}
	defer d.Close()

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", name, err)
	}

	files := []string{}
	for _, e := range entries {
		if e.IsDir() || Allowed(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return &Result{IsDir: true, Files: files}, nil
}

// clean strips parent references and returns a root-relative name. Anything
// that still points outside the root is ErrInvalidPath.
func clean(reqPath string) (string, error) {
	p := strings.ReplaceAll(reqPath, `\`, "/")
	for strings.Contains(p, "../") {
		p = strings.ReplaceAll(p, "../", "")
	}
	if p == "" {
		return ".", nil
	}
	if path.IsAbs(p) {
		return "", ErrInvalidPath
	}
	p = path.Clean(p)
	if p == ".." || strings.HasPrefix(p, "../") || !fs.ValidPath(p) {
		return "", ErrInvalidPath
	}
	return filepath.FromSlash(p), nil
}
