package shared

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"evalconsole/internal/transport/http/api"
)

// Query reads typed query parameters and records malformed ones on the
// validator instead of failing on the first.
type Query struct {
	values url.Values
	v      *Validator
}

func NewQuery(values url.Values, v *Validator) *Query {
	return &Query{values: values, v: v}
}

func (q *Query) String(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

func (q *Query) Bool(name string) bool {
	raw := q.String(name)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.v.Add(name, "must be true or false")
	}
	return b
}

func (q *Query) Date(name string) time.Time {
	t, err := ParseDate(q.String(name))
	if err != nil {
		q.v.Add(name, "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	}
	return t
}

// Page reads limit and offset. A missing limit takes def, anything above
// ceiling is clamped to it.
func (q *Query) Page(def, ceiling int) Pagination {
	p := Pagination{Limit: def}
	if raw := q.String("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			q.v.Add("limit", "must be a positive integer")
		} else {
			p.Limit = n
		}
	}
	if raw := q.String("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			q.v.Add("offset", "must be zero or a positive integer")
		} else {
			p.Offset = n
		}
	}
	if ceiling > 0 {
		p.Limit = min(p.Limit, ceiling)
	}
	return p
}

type Pagination struct {
	Limit  int
	Offset int
}

// Slice pages an in-memory result the same way the journal pages in SQL.
func Slice[T any](items []T, p Pagination) api.Page[T] {
	total := len(items)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	return api.NewPage(items[start:end], total, p.Limit, p.Offset)
}

// ParseDate accepts RFC3339 or YYYY-MM-DD. Empty input is the zero time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
