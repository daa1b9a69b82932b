package analytics

import (
	"fmt"
	"sort"
)

// Presentation order downstream consumers rely on: trends first, then
// traffic sources, comparisons, and no-data findings last.
var kindOrder = map[InsightKind]int{
	InsightTrend:         0,
	InsightTrafficSource: 1,
	InsightComparison:    2,
	InsightNoData:        3,
}

// AssembleInsights applies the stable presentation ordering to a scope's
// insights. Relative order within a kind is preserved, so identical input
// always yields identical output.
func AssembleInsights(insights []Insight) []Insight {
	if insights == nil {
		return []Insight{}
	}
	sort.SliceStable(insights, func(i, j int) bool {
		return kindOrder[insights[i].Kind] < kindOrder[insights[j].Kind]
	})
	return insights
}

// NoDataInsight reports that a requested metric had zero data points in
// the analyzed period.
func NoDataInsight(metric string) Insight {
	return Insight{
		Kind:       InsightNoData,
		Metric:     metric,
		Finding:    fmt.Sprintf("no %s data was recorded in the analyzed period", DisplayName(metric)),
		Confidence: ConfidenceHigh,
	}
}
