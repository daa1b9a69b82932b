package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleInsightsOrder(t *testing.T) {
	insights := []Insight{
		{Kind: InsightNoData, Metric: "keyEvents"},
		{Kind: InsightComparison, Metric: "conversionRate"},
		{Kind: InsightTrend, Metric: "sessions"},
		{Kind: InsightTrafficSource, Metric: "sessions"},
		{Kind: InsightTrend, Metric: "screenPageViews"},
	}

	ordered := AssembleInsights(insights)
	require.Len(t, ordered, 5)
	assert.Equal(t, InsightTrend, ordered[0].Kind)
	assert.Equal(t, InsightTrend, ordered[1].Kind)
	assert.Equal(t, InsightTrafficSource, ordered[2].Kind)
	assert.Equal(t, InsightComparison, ordered[3].Kind)
	assert.Equal(t, InsightNoData, ordered[4].Kind)

	// Stable within a kind.
	assert.Equal(t, "sessions", ordered[0].Metric)
	assert.Equal(t, "screenPageViews", ordered[1].Metric)
}

func TestAssembleInsightsNilBecomesEmpty(t *testing.T) {
	out := AssembleInsights(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestNoDataInsight(t *testing.T) {
	in := NoDataInsight("screenPageViews")
	assert.Equal(t, InsightNoData, in.Kind)
	assert.Contains(t, in.Finding, "page views")
	assert.Nil(t, in.Magnitude)
}

func TestSnapshotDerivedRates(t *testing.T) {
	scope := AnalysisScope{
		ScopeID:   "u1",
		ScopeKind: ScopeURL,
		DateRange: testRange,
		Series: map[string]MetricSeries{
			"sessions":        seriesOf("sessions", 100, 100),
			"engagedSessions": seriesOf("engagedSessions", 60, 40),
			"screenPageViews": seriesOf("screenPageViews", 300, 300),
			"keyEvents":       seriesOf("keyEvents", 5, 5),
			"eventCount":      {MetricName: "eventCount"},
		},
	}

	snap := Snapshot(scope)
	assert.Equal(t, 200.0, snap["sessions"])
	assert.Equal(t, 50.0, snap["engagementRate"])
	assert.Equal(t, 3.0, snap["pageviewsPerSession"])
	assert.Equal(t, 5.0, snap["conversionRate"])
	// Empty series contribute nothing.
	_, ok := snap["eventCount"]
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	scope := AnalysisScope{
		Series: map[string]MetricSeries{
			"sessions":  seriesOf("sessions", 10, 20, 30),
			"keyEvents": {MetricName: "keyEvents"},
		},
	}

	summary := Summarize(scope)
	require.Contains(t, summary, "sessions")
	s := summary["sessions"]
	assert.Equal(t, 60.0, s.Total)
	assert.Equal(t, 20.0, s.Average)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 30.0, s.Max)
	assert.NotContains(t, summary, "keyEvents")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "page views", DisplayName("screenPageViews"))
	assert.Equal(t, "sessions", DisplayName("sessions"))
	assert.Equal(t, "custom funnel step", DisplayName("customFunnelStep"))
}
