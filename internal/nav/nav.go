// Package nav loads the sidebar catalog: which sections exist in the admin
// and user areas, where their data comes from and which actions they offer.
package nav

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Area string

const (
	AreaAdmin Area = "admin"
	AreaUser  Area = "user"
)

// Layouts a section can render with.
const (
	LayoutTable  = "table"
	LayoutRecord = "record"
)

type Catalog struct {
	Admin []Section `yaml:"admin"`
	User  []Section `yaml:"user"`
}

type Section struct {
	Slug     string   `yaml:"slug"`
	Title    string   `yaml:"title"`
	Endpoint string   `yaml:"endpoint"`
	Layout   string   `yaml:"layout"`
	Columns  []Column `yaml:"columns"`
	// Actions apply to one row and are addressed by its id.
	Actions []Action `yaml:"actions"`
	// Forms submit to the section as a whole.
	Forms []Action `yaml:"forms"`
	// Filters become query parameters of the list request.
	Filters []Field `yaml:"filters"`
}

type Column struct {
	Key    string `yaml:"key"`
	Label  string `yaml:"label"`
	Format string `yaml:"format"`
}

type Action struct {
	Name    string  `yaml:"name"`
	Label   string  `yaml:"label"`
	Method  string  `yaml:"method"`
	Path    string  `yaml:"path"`
	Confirm string  `yaml:"confirm"`
	Fields  []Field `yaml:"fields"`
}

type Field struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	// Key is the row key a row action pre-fills the field from. Defaults
	// to Name.
	Key      string   `yaml:"key"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Options  []string `yaml:"options"`
	// Source is a backend endpoint listing the options of a select.
	Source string `yaml:"source"`
	// Default is rendered when there is no stored value.
	Default string `yaml:"default"`
}

// Load parses and validates a catalog.
func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() error {
	for _, area := range []Area{AreaAdmin, AreaUser} {
		sections := c.Sections(area)
		seen := make(map[string]bool, len(sections))
		for i := range sections {
			s := &sections[i]
			if s.Slug == "" || s.Endpoint == "" {
				return fmt.Errorf("%s section %d: slug and endpoint are required", area, i)
			}
			if s.Slug == "dashboard" || strings.ContainsAny(s.Slug, "/ ") {
				return fmt.Errorf("%s section %q: invalid slug", area, s.Slug)
			}
			if seen[s.Slug] {
				return fmt.Errorf("%s section %q: duplicate slug", area, s.Slug)
			}
			seen[s.Slug] = true

			if s.Title == "" {
				s.Title = s.Slug
			}
			switch s.Layout {
			case "":
				s.Layout = LayoutTable
			case LayoutTable, LayoutRecord:
			default:
				return fmt.Errorf("%s section %q: unknown layout %q", area, s.Slug, s.Layout)
			}
			for j := range s.Columns {
				if s.Columns[j].Label == "" {
					s.Columns[j].Label = s.Columns[j].Key
				}
			}
			if err := normalizeActions(s.Actions, http.MethodPut, "{endpoint}/{id}/{action}", true); err != nil {
				return fmt.Errorf("%s section %q: %w", area, s.Slug, err)
			}
			if err := normalizeActions(s.Forms, http.MethodPost, "{endpoint}", false); err != nil {
				return fmt.Errorf("%s section %q: %w", area, s.Slug, err)
			}
			if err := normalizeFields(s.Filters); err != nil {
				return fmt.Errorf("%s section %q: filters: %w", area, s.Slug, err)
			}
		}
	}
	return nil
}

func normalizeActions(actions []Action, method, path string, needsID bool) error {
	seen := make(map[string]bool, len(actions))
	for i := range actions {
		a := &actions[i]
		if a.Name == "" {
			return fmt.Errorf("action %d: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("action %q: duplicate name", a.Name)
		}
		seen[a.Name] = true

		if a.Label == "" {
			a.Label = a.Name
		}
		a.Method = strings.ToUpper(a.Method)
		switch a.Method {
		case "":
			a.Method = method
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return fmt.Errorf("action %q: unsupported method %q", a.Name, a.Method)
		}
		if a.Path == "" {
			a.Path = path
		}
		if needsID && !strings.Contains(a.Path, "{id}") {
			return fmt.Errorf("action %q: path must contain {id}", a.Name)
		}
		if err := normalizeFields(a.Fields); err != nil {
			return fmt.Errorf("action %q: %w", a.Name, err)
		}
	}
	return nil
}

func normalizeFields(fields []Field) error {
	for i := range fields {
		f := &fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		if f.Key == "" {
			f.Key = f.Name
		}
		if f.Type == "" {
			f.Type = "text"
		}
	}
	return nil
}

// Sections returns the sections of area in sidebar order.
func (c *Catalog) Sections(area Area) []Section {
	switch area {
	case AreaAdmin:
		return c.Admin
	case AreaUser:
		return c.User
	}
	return nil
}

func (c *Catalog) Section(area Area, slug string) (Section, bool) {
	for _, s := range c.Sections(area) {
		if s.Slug == slug {
			return s, true
		}
	}
	return Section{}, false
}

func (s Section) Action(name string) (Action, bool) {
	return find(s.Actions, name)
}

func (s Section) Form(name string) (Action, bool) {
	return find(s.Forms, name)
}

func find(actions []Action, name string) (Action, bool) {
	for _, a := range actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Query picks the declared filters out of the request query. Empty values
// are dropped.
func (s Section) Query(get func(string) string) url.Values {
	q := url.Values{}
	for _, f := range s.Filters {
		if v := strings.TrimSpace(get(f.Name)); v != "" {
			q.Set(f.Name, v)
		}
	}
	return q
}

// ListPath is the endpoint the section's rows are fetched from.
func (s Section) ListPath(q url.Values) string {
	if len(q) == 0 {
		return s.Endpoint
	}
	return s.Endpoint + "?" + q.Encode()
}

// Target expands the action path for a section endpoint and row id.
func (a Action) Target(endpoint, id string) string {
	return strings.NewReplacer(
		"{endpoint}", strings.TrimRight(endpoint, "/"),
		"{id}", id,
		"{action}", a.Name,
	).Replace(a.Path)
}

// Body builds the JSON body for the action from submitted form values.
// It returns nil when the action declares no fields.
func (a Action) Body(get func(string) string) (map[string]any, error) {
	if len(a.Fields) == 0 {
		return nil, nil
	}
	body := make(map[string]any, len(a.Fields))
	for _, f := range a.Fields {
		v := strings.TrimSpace(get(f.Name))
		if f.Type == "checkbox" {
			// Unchecked boxes are not submitted at all.
			body[f.Name] = v == "on" || v == "true"
			continue
		}
		if v == "" {
			if f.Required {
				return nil, fmt.Errorf("%s is required", f.Label)
			}
			continue
		}
		if f.Type == "number" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%s must be a number", f.Label)
			}
			body[f.Name] = n
			continue
		}
		if f.Type == "list" {
			items := []string{}
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			body[f.Name] = items
			continue
		}
		body[f.Name] = v
	}
	return body, nil
}
