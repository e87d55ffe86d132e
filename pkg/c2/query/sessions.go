package query

import (
	"net/url"
	"time"

	"github.com/secchiware/secchiware/pkg/c2/store"
)

var sessionOrderColumns = []string{"session_start", "session_end", "env_ip", "env_port"}

// ParseSessionFilter builds a store.SessionFilter from GET /sessions'
// query parameters: ids, ip, port, system, active_only, start_after,
// start_before, plus the common paging grammar.
func ParseSessionFilter(values url.Values) (store.SessionFilter, error) {
	paging, err := ParsePaging(values, sessionOrderColumns)
	if err != nil {
		return store.SessionFilter{}, err
	}

	ports, err := ParseIntList(values, "port")
	if err != nil {
		return store.SessionFilter{}, err
	}

	filter := store.SessionFilter{
		IDs:         ParseCommaList(values, "ids"),
		IPs:         ParseCommaList(values, "ip"),
		Ports:       ports,
		SystemNames: ParseCommaList(values, "system"),
		ActiveOnly:  values.Get("active_only") == "true",
		OrderBy:     paging.OrderBy,
		Arrange:     paging.Arrange,
		Limit:       paging.Limit,
		Offset:      paging.Offset,
	}

	if v := values.Get("start_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.SessionFilter{}, &ErrInvalidParameter{"start_after", "must be RFC 3339"}
		}
		filter.StartAfter = &t
	}
	if v := values.Get("start_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.SessionFilter{}, &ErrInvalidParameter{"start_before", "must be RFC 3339"}
		}
		filter.StartBefore = &t
	}

	return filter, nil
}

var environmentOrderColumns = []string{"ip", "port", "session_start"}

// EnvironmentFilter narrows GET /environments.
type EnvironmentFilter struct {
	IPs         []string
	Ports       []int
	SystemNames []string
	OrderBy     string
	Arrange     store.Arrange
	Limit       int
	Offset      int
}

// ParseEnvironmentFilter builds an EnvironmentFilter from GET
// /environments' query parameters: ip, port, system, plus the common
// paging grammar.
func ParseEnvironmentFilter(values url.Values) (EnvironmentFilter, error) {
	paging, err := ParsePaging(values, environmentOrderColumns)
	if err != nil {
		return EnvironmentFilter{}, err
	}

	ports, err := ParseIntList(values, "port")
	if err != nil {
		return EnvironmentFilter{}, err
	}

	return EnvironmentFilter{
		IPs:         ParseCommaList(values, "ip"),
		Ports:       ports,
		SystemNames: ParseCommaList(values, "system"),
		OrderBy:     paging.OrderBy,
		Arrange:     paging.Arrange,
		Limit:       paging.Limit,
		Offset:      paging.Offset,
	}, nil
}

var executionOrderColumns = []string{"timestamp_registered"}

// ParseExecutionFilter builds a store.ExecutionFilter from GET /executions'
// query parameters: ids, session_id, registered_after, registered_before,
// plus the common paging grammar.
func ParseExecutionFilter(values url.Values) (store.ExecutionFilter, error) {
	paging, err := ParsePaging(values, executionOrderColumns)
	if err != nil {
		return store.ExecutionFilter{}, err
	}

	filter := store.ExecutionFilter{
		IDs:        ParseCommaList(values, "ids"),
		SessionIDs: ParseCommaList(values, "session_id"),
		OrderBy:    paging.OrderBy,
		Arrange:    paging.Arrange,
		Limit:      paging.Limit,
		Offset:     paging.Offset,
	}

	if v := values.Get("registered_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.ExecutionFilter{}, &ErrInvalidParameter{"registered_after", "must be RFC 3339"}
		}
		filter.RegisteredAfter = &t
	}
	if v := values.Get("registered_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.ExecutionFilter{}, &ErrInvalidParameter{"registered_before", "must be RFC 3339"}
		}
		filter.RegisteredBefore = &t
	}

	return filter, nil
}
