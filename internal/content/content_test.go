package content

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func setupContentDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"saints.json":        `{"saints":[{"id":1,"name":"Francis"}]}`,
		"broken.json":        `{"saints":`,
		"about.md":           "# About",
		"notes.txt":          "plain",
		"script.js":          "alert(1)",
		"pages/home.html":    "<h1>Home</h1>",
		"pages/data.csv":     "a,b\n1,2",
		"pages/secret.env":   "KEY=1",
		"pages/nested/x.txt": "x",
	}
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLookupJSON(t *testing.T) {
	s := NewStore(setupContentDir(t))

	r, err := s.Lookup("saints.json")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	data, ok := r.Data().(map[string]any)
	if !ok {
		t.Fatalf("data = %T, want object", r.Data())
	}
	if _, ok := data["saints"]; !ok {
		t.Errorf("expected parsed document, got %v", data)
	}
}

func TestLookupBrokenJSON(t *testing.T) {
	s := NewStore(setupContentDir(t))

	r, err := s.Lookup("broken.json")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := map[string]any{"content": `{"saints":`}
	if got := r.Data(); !reflect.DeepEqual(got, want) {
		t.Errorf("data = %v, want %v", got, want)
	}
}

func TestLookupText(t *testing.T) {
	s := NewStore(setupContentDir(t))

	tests := []struct {
		path, ctype string
	}{
		{"about.md", "text/markdown"},
		{"notes.txt", "text/plain"},
		{"pages/home.html", "text/html"},
		{"pages/data.csv", "text/csv"},
	}
	for _, tt := range tests {
		r, err := s.Lookup(tt.path)
		if err != nil {
			t.Fatalf("lookup %s: %v", tt.path, err)
		}
		data := r.Data().(map[string]any)
		if data["type"] != tt.ctype {
			t.Errorf("%s: type = %v, want %q", tt.path, data["type"], tt.ctype)
		}
		if data["content"] == "" {
			t.Errorf("%s: empty content", tt.path)
		}
	}
}

func TestLookupDirectory(t *testing.T) {
	s := NewStore(setupContentDir(t))

	r, err := s.Lookup("pages")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !r.IsDir {
		t.Fatal("expected directory result")
	}
	want := []string{"data.csv", "home.html", "nested"}
	if !reflect.DeepEqual(r.Files, want) {
		t.Errorf("files = %v, want %v", r.Files, want)
	}
}

func TestLookupRoot(t *testing.T) {
	s := NewStore(setupContentDir(t))

	r, err := s.Lookup("")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := []string{"about.md", "broken.json", "notes.txt", "pages", "saints.json"}
	if !reflect.DeepEqual(r.Files, want) {
		t.Errorf("files = %v, want %v", r.Files, want)
	}
}

func TestLookupErrors(t *testing.T) {
	s := NewStore(setupContentDir(t))

	tests := []struct {
		path string
		want error
	}{
		{"missing.json", ErrNotFound},
		{"script.js", ErrTypeNotAllowed},
		{"pages/secret.env", ErrTypeNotAllowed},
		{"..", ErrInvalidPath},
		{"/etc/passwd", ErrInvalidPath},
	}
	for _, tt := range tests {
		if _, err := s.Lookup(tt.path); !errors.Is(err, tt.want) {
			t.Errorf("Lookup(%q) err = %v, want %v", tt.path, err, tt.want)
		}
	}
}

func TestLookupStripsTraversal(t *testing.T) {
	s := NewStore(setupContentDir(t))

	for _, p := range []string{"../../saints.json", `..\..\saints.json`, "./../saints.json"} {
		r, err := s.Lookup(p)
		if err != nil {
			t.Errorf("Lookup(%q): %v", p, err)
			continue
		}
		if r.IsDir {
			t.Errorf("Lookup(%q) returned a directory", p)
		}
	}
}

func TestLookupTooLarge(t *testing.T) {
	dir := setupContentDir(t)
	s := NewStore(dir)
	s.maxSize = 4

	if _, err := s.Lookup("about.md"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestLookupMissingRoot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	if _, err := s.Lookup("x.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
