package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ssc-dashboards/portal/internal/backend"
	"github.com/ssc-dashboards/portal/internal/content"
	"github.com/ssc-dashboards/portal/internal/nav"
	"github.com/ssc-dashboards/portal/web"
)

func TestLoadTemplates(t *testing.T) {
	templates, err := LoadTemplates(web.Templates())
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	for _, page := range Pages {
		if templates[page] == nil {
			t.Errorf("missing template %q", page)
		}
	}
}

func TestCell(t *testing.T) {
	row := map[string]any{
		"paid":    true,
		"created": "2024-03-05T10:00:00.000Z",
		"amount":  float64(2500),
		"areas":   []any{"teaching", "events"},
		"user":    map[string]any{"name": "Asha", "email": "asha@example.org"},
		"count":   float64(3),
	}
	tests := []struct {
		col  nav.Column
		want string
	}{
		{nav.Column{Key: "paid", Format: "bool"}, "Yes"},
		{nav.Column{Key: "created", Format: "date"}, "Mar 5, 2024"},
		{nav.Column{Key: "amount", Format: "money"}, "₹2,500"},
		{nav.Column{Key: "areas", Format: "list"}, "teaching, events"},
		{nav.Column{Key: "user"}, "Asha"},
		{nav.Column{Key: "user.email"}, "asha@example.org"},
		{nav.Column{Key: "count"}, "3"},
		{nav.Column{Key: "missing"}, ""},
	}
	for _, tt := range tests {
		if got := cell(row, tt.col); got != tt.want {
			t.Errorf("cell(%s) = %q, want %q", tt.col.Key, got, tt.want)
		}
	}
}

func TestRowID(t *testing.T) {
	if got := rowID(map[string]any{"id": float64(42)}); got != "42" {
		t.Errorf("rowID = %q, want %q", got, "42")
	}
	if got := rowID(map[string]any{"_id": "abc"}); got != "abc" {
		t.Errorf("rowID = %q, want %q", got, "abc")
	}
	if got := rowID("not a row"); got != "" {
		t.Errorf("rowID = %q, want empty", got)
	}
}

func TestHumanizeKey(t *testing.T) {
	tests := map[string]string{
		"pendingApprovals":   "Pending Approvals",
		"total_users":        "Total Users",
		"donationAmount2024": "Donation Amount2024",
		"status":             "Status",
		"élan_vital":         "Élan Vital",
		"total_ümlaut":       "Total Ümlaut",
	}
	for in, want := range tests {
		if got := humanizeKey(in); got != want {
			t.Errorf("humanizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRowsAndRecord(t *testing.T) {
	bare := []any{map[string]any{"id": "1"}, "skipped", map[string]any{"id": "2"}}
	if got := rows(bare); len(got) != 2 {
		t.Errorf("rows(bare) = %d rows, want 2", len(got))
	}

	wrapped := map[string]any{"total": float64(1), "volunteers": []any{map[string]any{"id": "1"}}}
	if got := rows(wrapped); len(got) != 1 {
		t.Errorf("rows(wrapped) = %d rows, want 1", len(got))
	}

	if got := rows(nil); len(got) != 0 {
		t.Errorf("rows(nil) = %d rows, want 0", len(got))
	}

	rec := record(map[string]any{"membership": map[string]any{"membershipType": "GENERAL"}})
	if rec["membershipType"] != "GENERAL" {
		t.Errorf("record = %v", rec)
	}
	flat := record(map[string]any{"name": "Asha", "email": "a@example.org"})
	if flat["name"] != "Asha" {
		t.Errorf("record = %v", flat)
	}
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setFlash(rec, httptest.NewRequest("POST", "/admin/users/1/approve", nil), "error", "Approve failed | try again")

	req := httptest.NewRequest("GET", "/admin/users", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	data := map[string]any{}
	out := httptest.NewRecorder()
	takeFlash(out, req, data)

	if data["Error"] != "Approve failed | try again" {
		t.Errorf("Error = %v", data["Error"])
	}
	cleared := out.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Error("expected the flash cookie to be cleared")
	}
}

func TestContentError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{content.ErrInvalidPath, http.StatusBadRequest, "Invalid path"},
		{content.ErrNotFound, http.StatusNotFound, "File not found"},
		{content.ErrTypeNotAllowed, http.StatusForbidden, "File type not allowed"},
		{content.ErrTooLarge, http.StatusRequestEntityTooLarge, "File too large"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		status, msg := contentError(tt.err)
		if status != tt.status || msg != tt.msg {
			t.Errorf("contentError(%v) = (%d, %q), want (%d, %q)", tt.err, status, msg, tt.status, tt.msg)
		}
	}
}

func TestLoadError(t *testing.T) {
	if got := loadError(&backend.APIError{Status: 400, Message: "Already approved"}, "x"); got != "Already approved" {
		t.Errorf("loadError = %q", got)
	}
	if got := loadError(&backend.APIError{Status: 503}, "x"); got != msgUnavailable {
		t.Errorf("loadError = %q", got)
	}
	if got := loadError(&backend.APIError{Status: 404}, "Failed"); got != "Failed" {
		t.Errorf("loadError = %q", got)
	}
	if got := loadError(errors.New("dial tcp: refused"), "x"); got != msgUnavailable {
		t.Errorf("loadError = %q", got)
	}
}

func TestJSONType(t *testing.T) {
	for ct, want := range map[string]bool{
		"application/json":                true,
		"application/json; charset=utf-8": true,
		"application/problem+json":        true,
		"text/html":                       false,
		"":                                false,
	} {
		if got := jsonType(ct); got != want {
			t.Errorf("jsonType(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestBearer(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/user/profile", nil)
	req.Header.Set("Authorization", "Bearer abc")
	if tok, fromCookie := bearer(req); tok != "abc" || fromCookie {
		t.Errorf("bearer = (%q, %v), want (abc, false)", tok, fromCookie)
	}

	req = httptest.NewRequest("GET", "/api/user/profile", nil)
	req.Header.Set("Authorization", "Basic abc")
	if tok, _ := bearer(req); tok != "" {
		t.Errorf("bearer = %q, want empty for non-bearer scheme", tok)
	}
}

func TestInputPrefill(t *testing.T) {
	row := map[string]any{
		"name":         "Rumi",
		"dates_raw":    "1207-1273",
		"birth_year":   float64(1207),
		"tags":         []any{"poetry", "mysticism"},
		"is_published": false,
	}
	tests := []struct {
		field nav.Field
		want  string
	}{
		{nav.Field{Name: "name", Key: "name"}, "Rumi"},
		{nav.Field{Name: "datesRaw", Key: "dates_raw"}, "1207-1273"},
		{nav.Field{Name: "birthYear", Key: "birth_year", Type: "number"}, "1207"},
		{nav.Field{Name: "tags", Key: "tags", Type: "list"}, "poetry, mysticism"},
		{nav.Field{Name: "isPublished", Key: "is_published", Type: "checkbox", Default: "true"}, "false"},
		{nav.Field{Name: "summary", Key: "summary", Default: "n/a"}, "n/a"},
	}
	for _, tt := range tests {
		if got := input(tt.field, row).Value; got != tt.want {
			t.Errorf("input(%s).Value = %q, want %q", tt.field.Name, got, tt.want)
		}
	}

	blank := input(nav.Field{Name: "isPublished", Key: "isPublished", Default: "true"}, nil)
	if blank.Value != "true" {
		t.Errorf("form default = %q, want %q", blank.Value, "true")
	}
}

func TestOptionList(t *testing.T) {
	if got := optionList(map[string]any{"periods": []any{"Early", "Classical", ""}}); len(got) != 2 || got[1] != "Classical" {
		t.Errorf("optionList(wrapped) = %v", got)
	}
	if got := optionList([]any{"7th", float64(8)}); len(got) != 2 || got[1] != "8" {
		t.Errorf("optionList(bare) = %v", got)
	}
	if got := optionList("nope"); len(got) != 0 {
		t.Errorf("optionList(string) = %v", got)
	}
}
