package backend

import (
	"net/url"
	"strconv"
	"strings"
)

// Query describes row filtering, projection and ordering for a table.
// The zero value selects every column of every visible row.
type Query struct {
	columns string
	filters []filter
	order   []string
	limit   int
}

type filter struct {
	column string
	op     string
	value  string
}

// Q starts a new query.
func Q() *Query {
	return &Query{}
}

// Select sets the projected columns, e.g. "id,title" or "slot,equipments(*)".
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq filters column = value.
func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, filter{column, "eq", formatValue(value)})
	return q
}

// Gte filters column >= value.
func (q *Query) Gte(column string, value any) *Query {
	q.filters = append(q.filters, filter{column, "gte", formatValue(value)})
	return q
}

// IsNull filters column IS NULL.
func (q *Query) IsNull(column string) *Query {
	q.filters = append(q.filters, filter{column, "is", "null"})
	return q
}

// Order appends an ordering clause.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = append(q.order, column+"."+dir)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// values encodes the query as PostgREST URL parameters.
func (q *Query) values() url.Values {
	v := url.Values{}
	if q == nil {
		return v
	}
	if q.columns != "" {
		v.Set("select", q.columns)
	}
	for _, f := range q.filters {
		v.Add(f.column, f.op+"."+f.value)
	}
	if len(q.order) > 0 {
		v.Set("order", strings.Join(q.order, ","))
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	return v
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return "null"
	default:
		return ""
	}
}
