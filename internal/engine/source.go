package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
)

// ScopeRequest describes the rows wanted for one analysis scope. An empty
// URL means the property-wide scope.
type ScopeRequest struct {
	PropertyID string              `json:"property_id"`
	URL        string              `json:"url,omitempty"`
	Metrics    []string            `json:"metrics"`
	Dimensions []string            `json:"dimensions"`
	DateRange  analytics.DateRange `json:"date_range"`
}

// CacheKeyFields returns the request fields that identify a cacheable
// fetch, in a stable order.
func (r ScopeRequest) CacheKeyFields() []string {
	metrics := append([]string(nil), r.Metrics...)
	dims := append([]string(nil), r.Dimensions...)
	sort.Strings(metrics)
	sort.Strings(dims)
	fields := []string{
		r.PropertyID,
		r.URL,
		r.DateRange.Start.Format("2006-01-02"),
		r.DateRange.End.Format("2006-01-02"),
	}
	fields = append(fields, metrics...)
	fields = append(fields, dims...)
	return fields
}

// RowSource is the external data collaborator. Implementations fetch raw
// metric rows for one scope; returning an empty slice means the scope had
// no data, which is not an error.
type RowSource interface {
	FetchRows(ctx context.Context, req ScopeRequest) ([]analytics.Row, error)
}

// FetchError marks a failure reaching the data source for one scope. For
// URL scopes it is recovered at the orchestrator boundary: the scope is
// marked ERROR and the run continues.
type FetchError struct {
	Scope string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching rows for %s: %v", e.Scope, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// BaselineError means property-scope analysis failed. It is fatal: URL
// comparison depends on the property baseline, so the whole run aborts
// with no partial result.
type BaselineError struct {
	PropertyID string
	Err        error
}

func (e *BaselineError) Error() string {
	return fmt.Sprintf("property baseline unavailable for %s: %v", e.PropertyID, e.Err)
}

func (e *BaselineError) Unwrap() error { return e.Err }

// MemorySource is a RowSource over pre-loaded rows, used by the offline
// CLI and in tests. URL rows are keyed by URL; missing keys yield no data.
type MemorySource struct {
	PropertyRows []analytics.Row
	URLRows      map[string][]analytics.Row
}

func (s *MemorySource) FetchRows(_ context.Context, req ScopeRequest) ([]analytics.Row, error) {
	if req.URL == "" {
		return s.PropertyRows, nil
	}
	return s.URLRows[req.URL], nil
}
