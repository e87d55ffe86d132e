// Package query validates and parses the common query-parameter
// grammar shared by the C2's searchable list endpoints:
// /environments, /sessions, /executions. GET /sessions/{id} parses no
// query parameters. Strict validation per spec.md §4.4: unknown
// order_by or negative limit/offset fail with 400.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/secchiware/secchiware/pkg/c2/store"
)

// ErrInvalidParameter is returned for any parameter that fails validation.
type ErrInvalidParameter struct {
	Parameter string
	Reason    string
}

func (e *ErrInvalidParameter) Error() string {
	return fmt.Sprintf("invalid query parameter %q: %s", e.Parameter, e.Reason)
}

// Paging is the order_by/arrange/limit/offset tuple common to every
// searchable endpoint, already validated against an allowed-columns set.
type Paging struct {
	OrderBy string
	Arrange store.Arrange
	Limit   int
	Offset  int
}

// ParsePaging validates order_by against allowedOrderBy and arrange
// against {asc, desc}, and rejects negative limit/offset.
func ParsePaging(values url.Values, allowedOrderBy []string) (Paging, error) {
	p := Paging{Arrange: store.Ascending}

	if orderBy := values.Get("order_by"); orderBy != "" {
		if !contains(allowedOrderBy, orderBy) {
			return Paging{}, &ErrInvalidParameter{"order_by", "unknown column " + orderBy}
		}
		p.OrderBy = orderBy
	}

	if arrange := values.Get("arrange"); arrange != "" {
		switch strings.ToLower(arrange) {
		case "asc":
			p.Arrange = store.Ascending
		case "desc":
			p.Arrange = store.Descending
		default:
			return Paging{}, &ErrInvalidParameter{"arrange", "must be \"asc\" or \"desc\""}
		}
	}

	if limitStr := values.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return Paging{}, &ErrInvalidParameter{"limit", "must be a non-negative integer"}
		}
		p.Limit = limit
	}

	if offsetStr := values.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return Paging{}, &ErrInvalidParameter{"offset", "must be a non-negative integer"}
		}
		p.Offset = offset
	}

	return p, nil
}

// ParseCommaList splits a comma-separated query parameter into a
// trimmed, non-empty list of values. An absent parameter yields nil.
func ParseCommaList(values url.Values, name string) []string {
	raw := values.Get(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseIntList splits a comma-separated query parameter into ints,
// failing with ErrInvalidParameter on any non-integer entry.
func ParseIntList(values url.Values, name string) ([]int, error) {
	raw := ParseCommaList(values, name)
	if raw == nil {
		return nil, nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ErrInvalidParameter{name, "must be a list of integers"}
		}
		out = append(out, n)
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
