package handler

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/ssc-dashboards/portal/internal/access"
	"github.com/ssc-dashboards/portal/internal/auth"
	"github.com/ssc-dashboards/portal/internal/nav"
)

// Pages are parsed as per-page sets with the layout to avoid
// {{define "content"}} collisions.
var Pages = []string{"home.html", "login.html", "waiting.html", "dashboard.html", "section.html", "error.html"}

// LoadTemplates parses every page in Pages together with layout.html.
func LoadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(Pages))
	for _, page := range Pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(fsys, "layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		templates[page] = tmpl
	}
	return templates, nil
}

var funcs = template.FuncMap{
	"cell":     cell,
	"rowID":    rowID,
	"lower":    strings.ToLower,
	"humanize": humanizeKey,
	"money":    money,
	"isMap":    isMap,
	"isList":   isList,
	"text":     text,
	"input":    input,
}

// renderer is embedded by the page handlers.
type renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

func (rd renderer) render(w http.ResponseWriter, status int, name string, data map[string]any) {
	tmpl, ok := rd.templates[name]
	if !ok {
		rd.logger.Error("unknown template", "name", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		rd.logger.Error("template error", "name", name, "error", err)
	}
}

func (rd renderer) renderError(w http.ResponseWriter, r *http.Request, status int, heading string) {
	data := pageData(r, heading)
	data["Heading"] = heading
	rd.render(w, status, "error.html", data)
}

// pageData returns the keys every layout render reads.
func pageData(r *http.Request, title string) map[string]any {
	return map[string]any{
		"Title":    title + " | Community Portal",
		"Session":  auth.Session(r.Context()),
		"Area":     "",
		"Active":   "",
		"Sections": nil,
		"Mode":     "",
		"Notice":   "",
		"Error":    "",
	}
}

// areaData adds the sidebar for the given area.
func areaData(r *http.Request, title string, catalog *nav.Catalog, area nav.Area, active string) map[string]any {
	data := pageData(r, title)
	data["Area"] = string(area)
	data["Active"] = active
	data["Sections"] = catalog.Sections(area)
	return data
}

func currentSession(r *http.Request) (access.Session, bool) {
	s := auth.Session(r.Context())
	if s == nil {
		return access.Session{}, false
	}
	return *s, true
}

// envelope is the JSON shape every API answer uses.
type envelope struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{
		Success: status < 300,
		Status:  status,
		Message: message,
		Data:    data,
	})
}

const flashCookie = "portal_flash"

// setFlash stores a one-shot message for the next page render.
func setFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + "|" + msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash moves a pending flash message into data and clears it.
func takeFlash(w http.ResponseWriter, r *http.Request, data map[string]any) {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return
	}
	kind, msg, ok := strings.Cut(raw, "|")
	if !ok || msg == "" {
		return
	}
	if kind == "error" {
		data["Error"] = msg
	} else {
		data["Notice"] = msg
	}
}

// Template helpers.

func cell(row any, col nav.Column) string {
	v := lookup(row, col.Key)
	if v == nil {
		return ""
	}
	switch col.Format {
	case "bool":
		if b, ok := v.(bool); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
	case "date":
		if s, ok := v.(string); ok {
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
				if t, err := time.Parse(layout, s); err == nil {
					return t.Format("Jan 2, 2006")
				}
			}
		}
	case "money":
		return "₹" + money(v)
	case "list":
		if list, ok := v.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, text(item))
			}
			return strings.Join(parts, ", ")
		}
	}
	return text(v)
}

// lookup resolves a dotted key such as "userId.name" in a decoded JSON row.
func lookup(row any, key string) any {
	v := row
	for _, part := range strings.Split(key, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[part]
	}
	return v
}

func rowID(row any) string {
	m, ok := row.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"id", "_id"} {
		if v, ok := m[key]; ok && v != nil {
			return text(v)
		}
	}
	return ""
}

func money(v any) string {
	switch n := v.(type) {
	case float64:
		return humanize.CommafWithDigits(n, 2)
	case int:
		return humanize.Comma(int64(n))
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return humanize.CommafWithDigits(f, 2)
		}
		return n
	default:
		return text(v)
	}
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, key := range []string{"name", "title", "email"} {
			if s, ok := t[key].(string); ok && s != "" {
				return s
			}
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

// humanizeKey turns "pendingApprovals" or "pending_approvals" into
// "Pending Approvals".
func humanizeKey(key string) string {
	var b strings.Builder
	prevLower := false
	for i, r := range key {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteRune(' ')
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// fieldInput is a catalog field with the value it is rendered with.
type fieldInput struct {
	nav.Field
	Value   string
	Options []string
	// Blank labels an empty first option of a select.
	Blank string
}

// input pre-fills f from row, which is nil for section forms.
func input(f nav.Field, row any) fieldInput {
	in := fieldInput{Field: f, Options: f.Options}
	switch v := lookup(row, f.Key).(type) {
	case nil:
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, text(item))
		}
		in.Value = strings.Join(parts, ", ")
	default:
		in.Value = text(v)
	}
	if in.Value == "" {
		in.Value = f.Default
	}
	return in
}

// optionList pulls a list of strings out of an options payload, either a
// bare array or an object holding one.
func optionList(data any) []string {
	var list []any
	switch t := data.(type) {
	case []any:
		list = t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if l, ok := t[k].([]any); ok {
				list = l
				break
			}
		}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if v := text(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// rows pulls the list out of a section payload. Endpoints answer with either
// a bare array or an object holding one.
func rows(data any) []map[string]any {
	var list []any
	switch t := data.(type) {
	case []any:
		list = t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if l, ok := t[k].([]any); ok {
				list = l
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// record pulls a single object out of a section payload, unwrapping one
// level when the object is nested under a single key.
func record(data any) map[string]any {
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	if len(m) == 1 {
		for _, v := range m {
			if inner, ok := v.(map[string]any); ok {
				return inner
			}
		}
	}
	return m
}
