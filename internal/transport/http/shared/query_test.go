package shared

import (
	"net/url"
	"testing"
	"time"
)

func TestQueryCollectsIssues(t *testing.T) {
	v := NewValidator()
	q := NewQuery(url.Values{
		"open":   {"maybe"},
		"since":  {"07/01/2025"},
		"limit":  {"-3"},
		"offset": {"x"},
	}, v)
	q.Bool("open")
	q.Date("since")
	page := q.Page(50, 200)
	if page.Limit != 50 || page.Offset != 0 {
		t.Fatalf("bad values should keep defaults, got %+v", page)
	}
	issues := v.Issues()
	if len(issues) != 4 {
		t.Fatalf("expected 4 issues, got %+v", issues)
	}
	if issues[0].Field != "limit" || issues[3].Field != "since" {
		t.Fatalf("issues not sorted by field: %+v", issues)
	}
}

func TestQueryValues(t *testing.T) {
	v := NewValidator()
	q := NewQuery(url.Values{
		"open":  {"true"},
		"since": {"2025-07-01"},
		"limit": {"1000"},
	}, v)
	if !q.Bool("open") {
		t.Fatal("expected open")
	}
	if got := q.Date("since"); !got.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("since = %v", got)
	}
	if page := q.Page(50, 200); page.Limit != 200 {
		t.Fatalf("limit should clamp to 200, got %d", page.Limit)
	}
	if v.HasIssues() {
		t.Fatalf("unexpected issues %+v", v.Issues())
	}
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page := Slice(items, Pagination{Limit: 2, Offset: 3})
	if page.Total != 5 || len(page.Items) != 2 || page.Items[0] != 4 {
		t.Fatalf("unexpected page %+v", page)
	}
	past := Slice(items, Pagination{Limit: 2, Offset: 9})
	if len(past.Items) != 0 || past.Items == nil {
		t.Fatalf("offset past the end should give an empty list, got %+v", past)
	}
}
