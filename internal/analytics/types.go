package analytics

import (
	"fmt"
	"time"
)

// ScopeKind identifies the unit of analysis.
type ScopeKind string

const (
	ScopeProperty ScopeKind = "PROPERTY"
	ScopeURL      ScopeKind = "URL"
)

// DateRange is an inclusive calendar-date range. Start and End are UTC
// midnights; Start must not be after End.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the start ≤ end invariant.
func (r DateRange) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("invalid date range: start %s after end %s",
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return nil
}

// Contains reports whether d falls inside the range (inclusive).
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// MetricPoint is one dated observation of a metric.
type MetricPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// MetricSeries is an ordered per-metric time series. Points are sorted by
// date ascending and dates are unique within one series. A series may be
// empty; callers treat emptiness as a first-class case.
type MetricSeries struct {
	MetricName       string            `json:"metric_name"`
	DimensionContext map[string]string `json:"dimension_context,omitempty"`
	Points           []MetricPoint     `json:"points"`
}

// IsEmpty reports whether the series has no data points.
func (s MetricSeries) IsEmpty() bool { return len(s.Points) == 0 }

// Sum returns the total of all point values.
func (s MetricSeries) Sum() float64 {
	var total float64
	for _, p := range s.Points {
		total += p.Value
	}
	return total
}

// Mean returns the average point value, or 0 for an empty series.
func (s MetricSeries) Mean() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Sum() / float64(len(s.Points))
}

// Breakdown groups one metric's series by the distinct values of a
// categorical dimension (e.g. sessionSource value -> sessions series).
type Breakdown map[string]MetricSeries

// AnalysisScope is the unit of analysis: the whole property or one URL,
// with its per-metric series and dimension breakdowns. Scopes are built
// fresh per run and never mutated after construction.
type AnalysisScope struct {
	ScopeID    string                  `json:"scope_id"`
	ScopeKind  ScopeKind               `json:"scope_kind"`
	DateRange  DateRange               `json:"date_range"`
	Series     map[string]MetricSeries `json:"series"`
	Breakdowns map[string]Breakdown    `json:"breakdowns,omitempty"`
}

// InsightKind classifies a finding.
type InsightKind string

const (
	InsightTrend         InsightKind = "TREND"
	InsightTrafficSource InsightKind = "TRAFFIC_SOURCE"
	InsightComparison    InsightKind = "COMPARISON"
	InsightNoData        InsightKind = "NO_DATA"
)

// Confidence marks whether a finding rests on a solid sample or a
// boundary case.
type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceLow  Confidence = "LOW"
)

// Insight is one structured, typed finding. Finding text is derived
// deterministically from Magnitude and the other fields.
type Insight struct {
	Kind       InsightKind `json:"kind"`
	Metric     string      `json:"metric,omitempty"`
	Finding    string      `json:"finding"`
	Magnitude  *float64    `json:"magnitude,omitempty"`
	Confidence Confidence  `json:"confidence"`
}

// UrlStatus is the terminal state of one URL's analysis.
type UrlStatus string

const (
	StatusSuccess UrlStatus = "SUCCESS"
	StatusNoData  UrlStatus = "NO_DATA"
	StatusError   UrlStatus = "ERROR"
)

// UrlAnalysisRecord is the per-URL outcome: a status, the metric totals
// that were observed, and the insights derived from them.
type UrlAnalysisRecord struct {
	URL             string             `json:"url"`
	Status          UrlStatus          `json:"status"`
	ErrorDetail     string             `json:"error_detail,omitempty"`
	MetricsSnapshot map[string]float64 `json:"metrics_snapshot,omitempty"`
	Insights        []Insight          `json:"insights"`
}

// MetricsSummary holds descriptive statistics for one metric over a scope.
type MetricsSummary struct {
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// AnalysisResult is the terminal value of one engine invocation. It owns
// all contained structures and is read-only once returned.
type AnalysisResult struct {
	PropertyID       string                       `json:"property_id"`
	PropertyName     string                       `json:"property_name"`
	DateRange        DateRange                    `json:"date_range"`
	PropertyInsights []Insight                    `json:"property_insights"`
	MetricsSummary   map[string]MetricsSummary    `json:"metrics_summary,omitempty"`
	URLResults       map[string]UrlAnalysisRecord `json:"url_results"`
}
