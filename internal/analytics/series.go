package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Row is one raw metric row as supplied by the data source: a calendar
// date, the dimension values it was sliced by, and the metric values
// (numbers, or strings holding numbers, as the GA4 Data API returns them).
type Row struct {
	Date       string                 `json:"date"`
	Dimensions map[string]string      `json:"dimensions"`
	Metrics    map[string]interface{} `json:"metrics"`
}

// ParseDate parses the date formats seen in raw rows: ISO "2006-01-02"
// and the GA4 compact "20060102". The result is a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if d, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// NumericValue coerces a raw metric value to a float64. Strings holding
// numbers are converted; anything else is rejected.
func NumericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// BuildSeries builds one per-metric series from raw rows. Rows with an
// unparseable date or a date outside the range are dropped; rows with a
// missing or non-numeric value for this metric are dropped from this
// series only. Values sharing a date are summed. The returned series is
// never nil: a metric with no surviving rows yields an empty series.
func BuildSeries(rows []Row, metric string, dr DateRange) MetricSeries {
	byDate := make(map[time.Time]float64)
	for _, row := range rows {
		d, err := ParseDate(row.Date)
		if err != nil || !dr.Contains(d) {
			continue
		}
		raw, ok := row.Metrics[metric]
		if !ok {
			continue
		}
		v, ok := NumericValue(raw)
		if !ok {
			continue
		}
		byDate[d] += v
	}
	return MetricSeries{MetricName: metric, Points: sortedPoints(byDate)}
}

// BuildBreakdown groups one metric by the distinct values of a dimension,
// producing one dated series per dimension value. Rows missing the
// dimension are dropped from the breakdown (not from plain series).
func BuildBreakdown(rows []Row, metric, dimension string, dr DateRange) Breakdown {
	grouped := make(map[string]map[time.Time]float64)
	for _, row := range rows {
		d, err := ParseDate(row.Date)
		if err != nil || !dr.Contains(d) {
			continue
		}
		dimValue, ok := row.Dimensions[dimension]
		if !ok || dimValue == "" {
			continue
		}
		raw, ok := row.Metrics[metric]
		if !ok {
			continue
		}
		v, ok := NumericValue(raw)
		if !ok {
			continue
		}
		if grouped[dimValue] == nil {
			grouped[dimValue] = make(map[time.Time]float64)
		}
		grouped[dimValue][d] += v
	}

	b := make(Breakdown, len(grouped))
	for dimValue, byDate := range grouped {
		b[dimValue] = MetricSeries{
			MetricName:       metric,
			DimensionContext: map[string]string{dimension: dimValue},
			Points:           sortedPoints(byDate),
		}
	}
	return b
}

// BuildScope assembles an AnalysisScope from raw rows: one series per
// requested metric (empty series included) and one breakdown of the
// breakdown metric per requested dimension.
func BuildScope(scopeID string, kind ScopeKind, dr DateRange, rows []Row, metrics []string, breakdownMetric string, breakdownDims []string) AnalysisScope {
	scope := AnalysisScope{
		ScopeID:   scopeID,
		ScopeKind: kind,
		DateRange: dr,
		Series:    make(map[string]MetricSeries, len(metrics)),
	}
	for _, m := range metrics {
		scope.Series[m] = BuildSeries(rows, m, dr)
	}
	if len(breakdownDims) > 0 {
		scope.Breakdowns = make(map[string]Breakdown, len(breakdownDims))
		for _, dim := range breakdownDims {
			if dim == "" {
				continue
			}
			scope.Breakdowns[dim] = BuildBreakdown(rows, breakdownMetric, dim, dr)
		}
	}
	return scope
}

func sortedPoints(byDate map[time.Time]float64) []MetricPoint {
	points := make([]MetricPoint, 0, len(byDate))
	for d, v := range byDate {
		points = append(points, MetricPoint{Date: d, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}
