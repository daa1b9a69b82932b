package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
)

// Options carries the per-run analysis settings. Thresholds and metric
// lists come from configuration; the orchestrator never hard-codes them.
type Options struct {
	Metrics                []string
	Dimensions             []string
	RateMetrics            map[string]bool
	TrafficSourceDimension string
	DeviceDimension        string
	BreakdownMetric        string
	Thresholds             analytics.ComparisonThresholds
	CloseSecondPoints      float64
	MaxConcurrentFetches   int
	URLTimeout             time.Duration
}

func (o *Options) applyDefaults() {
	if o.TrafficSourceDimension == "" {
		o.TrafficSourceDimension = "sessionSource"
	}
	if o.BreakdownMetric == "" {
		o.BreakdownMetric = analytics.MetricSessions
	}
	if o.Thresholds.High == 0 {
		o.Thresholds.High = 1.5
	}
	if o.Thresholds.Low == 0 {
		o.Thresholds.Low = 0.5
	}
	if o.CloseSecondPoints == 0 {
		o.CloseSecondPoints = 5.0
	}
	if o.MaxConcurrentFetches <= 0 {
		o.MaxConcurrentFetches = 4
	}
	if o.URLTimeout <= 0 {
		o.URLTimeout = 30 * time.Second
	}
}

// Orchestrator drives one analysis run: property baseline first, then the
// requested URL scopes through a bounded worker pool with per-URL failure
// isolation.
type Orchestrator struct {
	source RowSource
	opts   Options
}

// New creates an Orchestrator. Zero-valued options fall back to defaults.
func New(source RowSource, opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{source: source, opts: opts}
}

// Run analyzes the property and each requested URL, returning the
// completed AnalysisResult. A property-scope failure aborts the run
// (BaselineError); per-URL failures are recorded on that URL's entry and
// never abort the batch.
func (o *Orchestrator) Run(ctx context.Context, propertyID, propertyName string, urls []string, dr analytics.DateRange) (*analytics.AnalysisResult, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	log.Printf("[Orchestrator] Starting analysis for property %s (%d URLs, %s to %s)",
		propertyID, len(urls), dr.Start.Format("2006-01-02"), dr.End.Format("2006-01-02"))

	// Property baseline runs first and fail-fast: URL comparison
	// depends on it.
	propertyScope, err := o.buildPropertyScope(ctx, propertyID, dr)
	if err != nil {
		return nil, &BaselineError{PropertyID: propertyID, Err: err}
	}
	propertySnapshot := analytics.Snapshot(propertyScope)

	result := &analytics.AnalysisResult{
		PropertyID:       propertyID,
		PropertyName:     propertyName,
		DateRange:        dr,
		PropertyInsights: o.analyzeScope(propertyScope),
		MetricsSummary:   analytics.Summarize(propertyScope),
		URLResults:       make(map[string]analytics.UrlAnalysisRecord, len(urls)),
	}

	// URL scopes share nothing mutable but the finalized baseline, so
	// fetches run through a bounded pool. Records are slotted by input
	// index: aggregation order never depends on completion order.
	records := make([]analytics.UrlAnalysisRecord, len(urls))
	sem := make(chan struct{}, o.opts.MaxConcurrentFetches)
	var wg sync.WaitGroup

	for i := range urls {
		select {
		case <-ctx.Done():
			records[i] = errorRecord(urls[i], fmt.Errorf("run canceled: %w", ctx.Err()))
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			defer func() { <-sem }()
			records[i] = o.analyzeURL(ctx, propertyID, url, dr, propertySnapshot)
		}(i, urls[i])
	}
	wg.Wait()

	errCount := 0
	for _, rec := range records {
		result.URLResults[rec.URL] = rec
		if rec.Status == analytics.StatusError {
			errCount++
		}
	}

	log.Printf("[Orchestrator] Analysis complete for property %s in %v (%d/%d URLs failed)",
		propertyID, time.Since(started), errCount, len(urls))
	return result, nil
}

func (o *Orchestrator) buildPropertyScope(ctx context.Context, propertyID string, dr analytics.DateRange) (analytics.AnalysisScope, error) {
	rows, err := o.source.FetchRows(ctx, ScopeRequest{
		PropertyID: propertyID,
		Metrics:    o.opts.Metrics,
		Dimensions: o.opts.Dimensions,
		DateRange:  dr,
	})
	if err != nil {
		return analytics.AnalysisScope{}, &FetchError{Scope: "property " + propertyID, Err: err}
	}
	return analytics.BuildScope(propertyID, analytics.ScopeProperty, dr, rows,
		o.opts.Metrics, o.opts.BreakdownMetric, o.breakdownDims()), nil
}

// analyzeURL runs the full per-URL pipeline under a timeout. Every
// outcome becomes a record; nothing escapes to abort the batch.
func (o *Orchestrator) analyzeURL(ctx context.Context, propertyID, url string, dr analytics.DateRange, propertySnapshot map[string]float64) analytics.UrlAnalysisRecord {
	fetchCtx, cancel := context.WithTimeout(ctx, o.opts.URLTimeout)
	defer cancel()

	rows, err := o.source.FetchRows(fetchCtx, ScopeRequest{
		PropertyID: propertyID,
		URL:        url,
		Metrics:    o.opts.Metrics,
		Dimensions: o.opts.Dimensions,
		DateRange:  dr,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || fetchCtx.Err() == context.DeadlineExceeded {
			log.Printf("[Orchestrator] URL %s timed out after %v", url, o.opts.URLTimeout)
			return errorRecord(url, fmt.Errorf("fetch timed out after %v: %w", o.opts.URLTimeout, err))
		}
		log.Printf("[Orchestrator] URL %s fetch failed: %v", url, err)
		return errorRecord(url, &FetchError{Scope: "url " + url, Err: err})
	}

	if len(rows) == 0 {
		// Zero matching rows is a result, not a failure.
		return analytics.UrlAnalysisRecord{
			URL:      url,
			Status:   analytics.StatusNoData,
			Insights: []analytics.Insight{},
		}
	}

	scope := analytics.BuildScope(url, analytics.ScopeURL, dr, rows,
		o.opts.Metrics, o.opts.BreakdownMetric, o.breakdownDims())
	snapshot := analytics.Snapshot(scope)

	insights := o.analyzeScope(scope)
	insights = append(insights,
		analytics.CompareToBaseline(o.rateSnapshot(snapshot), propertySnapshot, o.opts.Thresholds)...)

	return analytics.UrlAnalysisRecord{
		URL:             url,
		Status:          analytics.StatusSuccess,
		MetricsSnapshot: snapshot,
		Insights:        analytics.AssembleInsights(insights),
	}
}

// analyzeScope produces the trend and breakdown insights shared by the
// property and URL pipelines, visiting metrics in the configured order.
func (o *Orchestrator) analyzeScope(scope analytics.AnalysisScope) []analytics.Insight {
	var insights []analytics.Insight
	for _, metric := range o.opts.Metrics {
		series := scope.Series[metric]
		if series.IsEmpty() {
			insights = append(insights, analytics.NoDataInsight(metric))
			continue
		}
		if trend := analytics.AnalyzeTrend(series, o.opts.RateMetrics[metric]); trend != nil {
			insights = append(insights, *trend)
		}
	}
	for _, dim := range o.breakdownDims() {
		insights = append(insights,
			analytics.AnalyzeBreakdown(dim, o.opts.BreakdownMetric, scope.Breakdowns[dim], o.opts.CloseSecondPoints)...)
	}
	return analytics.AssembleInsights(insights)
}

// rateSnapshot filters a snapshot down to rate metrics. Raw counts are
// never compared across scopes: a single URL's session total against the
// whole property would always classify as problematic.
func (o *Orchestrator) rateSnapshot(snap map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(snap))
	for metric, v := range snap {
		if analytics.IsDerivedRate(metric) || o.opts.RateMetrics[metric] {
			out[metric] = v
		}
	}
	return out
}

func (o *Orchestrator) breakdownDims() []string {
	dims := []string{o.opts.TrafficSourceDimension}
	if o.opts.DeviceDimension != "" {
		dims = append(dims, o.opts.DeviceDimension)
	}
	return dims
}

func errorRecord(url string, err error) analytics.UrlAnalysisRecord {
	return analytics.UrlAnalysisRecord{
		URL:         url,
		Status:      analytics.StatusError,
		ErrorDetail: err.Error(),
		Insights:    []analytics.Insight{},
	}
}
