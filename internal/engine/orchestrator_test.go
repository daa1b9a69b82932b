package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
)

// fakeSource scripts per-scope outcomes and records observed concurrency.
type fakeSource struct {
	propertyRows []analytics.Row
	propertyErr  error
	urlRows      map[string][]analytics.Row
	urlErrs      map[string]error
	delay        time.Duration

	inFlight    int64
	maxInFlight int64
}

func (f *fakeSource) FetchRows(ctx context.Context, req ScopeRequest) ([]analytics.Row, error) {
	cur := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt64(&f.maxInFlight)
		if cur <= prev || atomic.CompareAndSwapInt64(&f.maxInFlight, prev, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	if req.URL == "" {
		return f.propertyRows, f.propertyErr
	}
	if err := f.urlErrs[req.URL]; err != nil {
		return nil, err
	}
	return f.urlRows[req.URL], nil
}

func rowsWithSessions(perDay ...float64) []analytics.Row {
	rows := make([]analytics.Row, 0, len(perDay))
	for i, v := range perDay {
		rows = append(rows, analytics.Row{
			Date:       fmt.Sprintf("2025-03-%02d", i+1),
			Dimensions: map[string]string{"sessionSource": "google"},
			Metrics:    map[string]interface{}{"sessions": v, "keyEvents": v / 10},
		})
	}
	return rows
}

func testRange() analytics.DateRange {
	return analytics.DateRange{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func testOptions() Options {
	return Options{
		Metrics:     []string{"sessions", "keyEvents"},
		Dimensions:  []string{"sessionSource"},
		RateMetrics: map[string]bool{},
	}
}

func TestRunPropertyInsights(t *testing.T) {
	src := &fakeSource{propertyRows: rowsWithSessions(100, 100, 150, 150)}
	o := New(src, testOptions())

	result, err := o.Run(context.Background(), "prop-1", "Example Site", nil, testRange())
	require.NoError(t, err)

	assert.Equal(t, "prop-1", result.PropertyID)
	assert.Equal(t, "Example Site", result.PropertyName)
	require.NotEmpty(t, result.PropertyInsights)

	trend := result.PropertyInsights[0]
	assert.Equal(t, analytics.InsightTrend, trend.Kind)
	require.NotNil(t, trend.Magnitude)
	assert.Equal(t, 50.0, *trend.Magnitude)
	assert.Contains(t, trend.Finding, "increased by 50.0%")

	require.Contains(t, result.MetricsSummary, "sessions")
	assert.Equal(t, 500.0, result.MetricsSummary["sessions"].Total)
}

func TestRunPropertyFetchFailureIsFatal(t *testing.T) {
	src := &fakeSource{propertyErr: errors.New("quota exceeded")}
	o := New(src, testOptions())

	result, err := o.Run(context.Background(), "prop-1", "Example", []string{"/a"}, testRange())
	require.Error(t, err)
	assert.Nil(t, result)

	var baseErr *BaselineError
	require.ErrorAs(t, err, &baseErr)
	assert.Equal(t, "prop-1", baseErr.PropertyID)
}

func TestRunFailureIsolation(t *testing.T) {
	urls := []string{"/a", "/b", "/c", "/d", "/e"}
	src := &fakeSource{
		propertyRows: rowsWithSessions(100, 100, 100, 100),
		urlRows: map[string][]analytics.Row{
			"/a": rowsWithSessions(10, 10),
			"/b": rowsWithSessions(20, 20),
			"/d": {}, // no data
			"/e": rowsWithSessions(5, 5),
		},
		urlErrs: map[string]error{"/c": errors.New("connection reset")},
	}
	o := New(src, testOptions())

	result, err := o.Run(context.Background(), "prop-1", "Example", urls, testRange())
	require.NoError(t, err)
	require.Len(t, result.URLResults, 5)

	assert.Equal(t, analytics.StatusSuccess, result.URLResults["/a"].Status)
	assert.Equal(t, analytics.StatusSuccess, result.URLResults["/b"].Status)
	assert.Equal(t, analytics.StatusError, result.URLResults["/c"].Status)
	assert.Contains(t, result.URLResults["/c"].ErrorDetail, "connection reset")
	assert.Equal(t, analytics.StatusNoData, result.URLResults["/d"].Status)
	assert.Equal(t, analytics.StatusSuccess, result.URLResults["/e"].Status)
}

func TestRunNoDataURL(t *testing.T) {
	src := &fakeSource{
		propertyRows: rowsWithSessions(100, 100),
		urlRows:      map[string][]analytics.Row{},
	}
	o := New(src, testOptions())

	result, err := o.Run(context.Background(), "prop-1", "Example", []string{"/missing"}, testRange())
	require.NoError(t, err)

	rec := result.URLResults["/missing"]
	assert.Equal(t, analytics.StatusNoData, rec.Status)
	assert.Empty(t, rec.Insights)
	assert.Empty(t, rec.ErrorDetail)
}

func TestRunComparisonInsight(t *testing.T) {
	// URL converts at 2.5x the property rate.
	src := &fakeSource{
		propertyRows: []analytics.Row{
			{Date: "2025-03-01", Metrics: map[string]interface{}{"sessions": 1000.0, "keyEvents": 40.0}},
			{Date: "2025-03-02", Metrics: map[string]interface{}{"sessions": 1000.0, "keyEvents": 40.0}},
		},
		urlRows: map[string][]analytics.Row{
			"/landing": {
				{Date: "2025-03-01", Metrics: map[string]interface{}{"sessions": 100.0, "keyEvents": 10.0}},
				{Date: "2025-03-02", Metrics: map[string]interface{}{"sessions": 100.0, "keyEvents": 10.0}},
			},
		},
	}
	o := New(src, testOptions())

	result, err := o.Run(context.Background(), "prop-1", "Example", []string{"/landing"}, testRange())
	require.NoError(t, err)

	rec := result.URLResults["/landing"]
	require.Equal(t, analytics.StatusSuccess, rec.Status)
	assert.Equal(t, 10.0, rec.MetricsSnapshot["conversionRate"])

	var comparison *analytics.Insight
	for i := range rec.Insights {
		if rec.Insights[i].Kind == analytics.InsightComparison && rec.Insights[i].Metric == "conversionRate" {
			comparison = &rec.Insights[i]
		}
	}
	require.NotNil(t, comparison)
	require.NotNil(t, comparison.Magnitude)
	assert.Equal(t, 2.5, *comparison.Magnitude)
	assert.Contains(t, comparison.Finding, "high-performing")
}

func TestRunInsightOrdering(t *testing.T) {
	src := &fakeSource{
		propertyRows: rowsWithSessions(100, 100, 150, 150),
		urlRows: map[string][]analytics.Row{
			"/a": rowsWithSessions(1, 1, 2, 2),
		},
	}
	o := New(src, testOptions())

	result, err := o.Run(context.Background(), "prop-1", "Example", []string{"/a"}, testRange())
	require.NoError(t, err)

	lastRank := -1
	ranks := map[analytics.InsightKind]int{
		analytics.InsightTrend:         0,
		analytics.InsightTrafficSource: 1,
		analytics.InsightComparison:    2,
		analytics.InsightNoData:        3,
	}
	for _, in := range result.URLResults["/a"].Insights {
		r := ranks[in.Kind]
		assert.GreaterOrEqual(t, r, lastRank)
		lastRank = r
	}
}

func TestRunIdempotent(t *testing.T) {
	newSource := func() *fakeSource {
		return &fakeSource{
			propertyRows: rowsWithSessions(100, 120, 150, 180),
			urlRows: map[string][]analytics.Row{
				"/a": rowsWithSessions(10, 12),
				"/b": rowsWithSessions(50, 5),
			},
		}
	}
	urls := []string{"/a", "/b"}

	run := func() []byte {
		o := New(newSource(), testOptions())
		result, err := o.Run(context.Background(), "prop-1", "Example", urls, testRange())
		require.NoError(t, err)
		data, err := json.Marshal(result)
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, run(), run())
}

func TestRunBoundedConcurrency(t *testing.T) {
	urls := make([]string, 12)
	urlRows := make(map[string][]analytics.Row, len(urls))
	for i := range urls {
		urls[i] = fmt.Sprintf("/page-%d", i)
		urlRows[urls[i]] = rowsWithSessions(1, 2)
	}
	src := &fakeSource{
		propertyRows: rowsWithSessions(100, 100),
		urlRows:      urlRows,
		delay:        10 * time.Millisecond,
	}

	opts := testOptions()
	opts.MaxConcurrentFetches = 3
	o := New(src, opts)

	result, err := o.Run(context.Background(), "prop-1", "Example", urls, testRange())
	require.NoError(t, err)
	assert.Len(t, result.URLResults, len(urls))
	assert.LessOrEqual(t, src.maxInFlight, int64(3))
}

func TestRunURLTimeout(t *testing.T) {
	src := &fakeSource{
		propertyRows: rowsWithSessions(100, 100),
		urlRows:      map[string][]analytics.Row{"/slow": rowsWithSessions(1)},
		delay:        200 * time.Millisecond,
	}

	opts := testOptions()
	opts.URLTimeout = 20 * time.Millisecond
	o := New(src, opts)

	// Property fetch shares the delay but has no per-URL timeout.
	result, err := o.Run(context.Background(), "prop-1", "Example", []string{"/slow"}, testRange())
	require.NoError(t, err)

	rec := result.URLResults["/slow"]
	assert.Equal(t, analytics.StatusError, rec.Status)
	assert.Contains(t, rec.ErrorDetail, "timed out")
}

func TestRunInvalidDateRange(t *testing.T) {
	o := New(&fakeSource{}, testOptions())
	dr := analytics.DateRange{
		Start: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := o.Run(context.Background(), "prop-1", "Example", nil, dr)
	assert.Error(t, err)
}

func TestRunPropertyZeroRows(t *testing.T) {
	src := &fakeSource{
		urlRows: map[string][]analytics.Row{"/a": rowsWithSessions(10, 10)},
	}
	o := New(src, testOptions())

	result, err := o.Run(context.Background(), "prop-1", "Example", []string{"/a"}, testRange())
	require.NoError(t, err)

	// Every requested metric reports NO_DATA for the property...
	require.Len(t, result.PropertyInsights, 2)
	for _, in := range result.PropertyInsights {
		assert.Equal(t, analytics.InsightNoData, in.Kind)
	}
	// ...and URL comparison is skipped (no baseline rate to divide by),
	// but URL analysis itself still succeeds.
	rec := result.URLResults["/a"]
	assert.Equal(t, analytics.StatusSuccess, rec.Status)
	for _, in := range rec.Insights {
		assert.NotEqual(t, analytics.InsightComparison, in.Kind)
	}
}
