package analytics

// Derived rate metric names computed from raw totals when their inputs
// are present in a snapshot.
const (
	MetricSessions        = "sessions"
	MetricEngagedSessions = "engagedSessions"
	MetricPageViews       = "screenPageViews"
	MetricKeyEvents       = "keyEvents"
	MetricEngagementRate  = "engagementRate"
	MetricConversionRate  = "conversionRate"
	MetricViewsPerSession = "pageviewsPerSession"
)

// derivedRates lists the snapshot metrics that are rates rather than raw
// counts. Only rates are meaningful to compare across scopes of very
// different traffic volume.
var derivedRates = map[string]bool{
	MetricEngagementRate:  true,
	MetricConversionRate:  true,
	MetricViewsPerSession: true,
}

// IsDerivedRate reports whether a snapshot metric is one of the rates
// computed by Snapshot.
func IsDerivedRate(name string) bool { return derivedRates[name] }

// Snapshot collapses a scope's series into per-metric totals and adds the
// derived rates (engagement rate, conversion rate, pageviews per session)
// when their inputs were observed. Property and URL snapshots are computed
// identically so comparisons are like-for-like.
func Snapshot(scope AnalysisScope) map[string]float64 {
	snap := make(map[string]float64, len(scope.Series))
	for name, series := range scope.Series {
		if series.IsEmpty() {
			continue
		}
		snap[name] = series.Sum()
	}

	sessions := snap[MetricSessions]
	if sessions > 0 {
		if engaged, ok := snap[MetricEngagedSessions]; ok && engaged > 0 {
			snap[MetricEngagementRate] = engaged / sessions * 100
		}
		if views, ok := snap[MetricPageViews]; ok && views > 0 {
			snap[MetricViewsPerSession] = views / sessions
		}
		if keyEvents, ok := snap[MetricKeyEvents]; ok && keyEvents > 0 {
			snap[MetricConversionRate] = keyEvents / sessions * 100
		}
	}
	return snap
}

// Summarize computes descriptive statistics per metric over a scope.
// Empty series are skipped; emptiness is reported through NO_DATA
// insights instead.
func Summarize(scope AnalysisScope) map[string]MetricsSummary {
	out := make(map[string]MetricsSummary, len(scope.Series))
	for name, series := range scope.Series {
		if series.IsEmpty() {
			continue
		}
		s := MetricsSummary{Min: series.Points[0].Value, Max: series.Points[0].Value}
		for _, p := range series.Points {
			s.Total += p.Value
			if p.Value < s.Min {
				s.Min = p.Value
			}
			if p.Value > s.Max {
				s.Max = p.Value
			}
		}
		s.Average = s.Total / float64(len(series.Points))
		out[name] = s
	}
	return out
}
