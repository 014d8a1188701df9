package nav

import (
	"strings"
	"testing"
)

const testCatalog = `
admin:
  - slug: donations
    title: Donations
    endpoint: /api/admin/donations
    columns:
      - { key: amount, label: Amount, format: money }
      - { key: status }
    actions:
      - { name: verify }
      - name: refund
        fields:
          - { name: reason, label: Reason, required: true }
  - slug: conferences
    endpoint: /api/conferences
    actions:
      - { name: delete, method: delete, path: "{endpoint}/{id}" }
    forms:
      - name: create
        fields:
          - { name: name, required: true }
          - { name: maxSubmissions, type: number }
user:
  - slug: profile
    endpoint: /api/user/profile
    layout: record
`

func loadTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(strings.NewReader(testCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := loadTest(t)

	s, ok := c.Section(AreaAdmin, "donations")
	if !ok {
		t.Fatal("donations section missing")
	}
	if s.Layout != LayoutTable {
		t.Errorf("Layout = %q, want %q", s.Layout, LayoutTable)
	}
	if s.Columns[1].Label != "status" {
		t.Errorf("column label = %q, want key as label", s.Columns[1].Label)
	}
	verify, ok := s.Action("verify")
	if !ok {
		t.Fatal("verify action missing")
	}
	if verify.Method != "PUT" {
		t.Errorf("Method = %q, want PUT", verify.Method)
	}
	if got := verify.Target(s.Endpoint, "42"); got != "/api/admin/donations/42/verify" {
		t.Errorf("Target = %q", got)
	}

	conf, _ := c.Section(AreaAdmin, "conferences")
	if conf.Title != "conferences" {
		t.Errorf("Title = %q, want slug", conf.Title)
	}
	del, _ := conf.Action("delete")
	if del.Method != "DELETE" {
		t.Errorf("Method = %q, want DELETE", del.Method)
	}
	if got := del.Target(conf.Endpoint, "7"); got != "/api/conferences/7" {
		t.Errorf("Target = %q", got)
	}
	create, ok := conf.Form("create")
	if !ok {
		t.Fatal("create form missing")
	}
	if create.Method != "POST" {
		t.Errorf("Method = %q, want POST", create.Method)
	}
	if got := create.Target(conf.Endpoint, ""); got != "/api/conferences" {
		t.Errorf("Target = %q", got)
	}
}

func TestSectionLookup(t *testing.T) {
	c := loadTest(t)

	if _, ok := c.Section(AreaUser, "donations"); ok {
		t.Error("admin section leaked into user area")
	}
	if s, ok := c.Section(AreaUser, "profile"); !ok || s.Layout != LayoutRecord {
		t.Errorf("profile = %+v, %v", s, ok)
	}
	if got := len(c.Sections(AreaAdmin)); got != 2 {
		t.Errorf("admin sections = %d, want 2", got)
	}
	if c.Sections(Area("other")) != nil {
		t.Error("expected nil for unknown area")
	}
}

func TestActionBody(t *testing.T) {
	c := loadTest(t)
	s, _ := c.Section(AreaAdmin, "donations")

	refund, _ := s.Action("refund")
	if _, err := refund.Body(func(string) string { return "" }); err == nil {
		t.Error("expected error for missing required field")
	}
	body, err := refund.Body(func(k string) string { return map[string]string{"reason": " duplicate "}[k] })
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["reason"] != "duplicate" {
		t.Errorf("reason = %v, want %q", body["reason"], "duplicate")
	}

	verify, _ := s.Action("verify")
	if body, err := verify.Body(func(string) string { return "x" }); err != nil || body != nil {
		t.Errorf("verify body = %v, %v; want nil, nil", body, err)
	}

	conf, _ := c.Section(AreaAdmin, "conferences")
	create, _ := conf.Form("create")
	vals := map[string]string{"name": "Summit", "maxSubmissions": "50"}
	body, err = create.Body(func(k string) string { return vals[k] })
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["maxSubmissions"] != float64(50) {
		t.Errorf("maxSubmissions = %v (%T), want 50", body["maxSubmissions"], body["maxSubmissions"])
	}
	vals["maxSubmissions"] = "lots"
	if _, err := create.Body(func(k string) string { return vals[k] }); err == nil {
		t.Error("expected error for non-numeric field")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"missing endpoint": "admin:\n  - slug: x\n",
		"duplicate slug":   "admin:\n  - {slug: x, endpoint: /a}\n  - {slug: x, endpoint: /b}\n",
		"reserved slug":    "user:\n  - {slug: dashboard, endpoint: /a}\n",
		"bad layout":       "user:\n  - {slug: x, endpoint: /a, layout: grid}\n",
		"bad method":       "admin:\n  - {slug: x, endpoint: /a, actions: [{name: go, method: GET}]}\n",
		"row without id":   "admin:\n  - {slug: x, endpoint: /a, actions: [{name: go, path: /b}]}\n",
		"unknown field":    "admin:\n  - {slug: x, endpoint: /a, colour: red}\n",
		"unnamed filter":   "admin:\n  - {slug: x, endpoint: /a, filters: [{label: Search}]}\n",
		"unquoted confirm": "admin:\n  - {slug: x, endpoint: /a, actions: [{name: go, confirm: Go on? }]}\n",
	}
	for name, doc := range tests {
		if _, err := Load(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

const filterCatalog = `
admin:
  - slug: saints
    endpoint: /v1/sufi-saints
    filters:
      - { name: search }
      - { name: period, type: select, source: /v1/sufi-saints/periods }
    actions:
      - name: edit
        method: PUT
        path: "{endpoint}/{id}"
        confirm: "Save changes?"
        fields:
          - { name: name, required: true }
          - { name: datesRaw, key: dates_raw }
          - { name: tags, type: list }
          - { name: isPublished, type: checkbox }
`

func TestSectionFilters(t *testing.T) {
	c, err := Load(strings.NewReader(filterCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s, _ := c.Section(AreaAdmin, "saints")

	if got := s.Filters[0]; got.Label != "search" || got.Type != "text" || got.Key != "search" {
		t.Errorf("filter defaults = %+v", got)
	}
	if got := s.Filters[1].Source; got != "/v1/sufi-saints/periods" {
		t.Errorf("Source = %q", got)
	}

	vals := map[string]string{"search": " rumi ", "period": "", "page": "3"}
	q := s.Query(func(k string) string { return vals[k] })
	if got := s.ListPath(q); got != "/v1/sufi-saints?search=rumi" {
		t.Errorf("ListPath = %q, want %q", got, "/v1/sufi-saints?search=rumi")
	}
	if got := s.ListPath(nil); got != "/v1/sufi-saints" {
		t.Errorf("ListPath(nil) = %q", got)
	}

	edit, _ := s.Action("edit")
	if edit.Confirm != "Save changes?" {
		t.Errorf("Confirm = %q", edit.Confirm)
	}
	if got := edit.Fields[1].Key; got != "dates_raw" {
		t.Errorf("Key = %q, want %q", got, "dates_raw")
	}
}

func TestActionBodyListAndCheckbox(t *testing.T) {
	c, err := Load(strings.NewReader(filterCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s, _ := c.Section(AreaAdmin, "saints")
	edit, _ := s.Action("edit")

	vals := map[string]string{"name": "Rumi", "tags": "poetry, , mysticism", "isPublished": "on"}
	body, err := edit.Body(func(k string) string { return vals[k] })
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	tags, ok := body["tags"].([]string)
	if !ok || len(tags) != 2 || tags[0] != "poetry" || tags[1] != "mysticism" {
		t.Errorf("tags = %#v", body["tags"])
	}
	if body["isPublished"] != true {
		t.Errorf("isPublished = %v, want true", body["isPublished"])
	}
	if _, ok := body["datesRaw"]; ok {
		t.Error("empty optional field should be omitted")
	}

	delete(vals, "isPublished")
	body, err = edit.Body(func(k string) string { return vals[k] })
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["isPublished"] != false {
		t.Errorf("unchecked isPublished = %v, want false", body["isPublished"])
	}
}
