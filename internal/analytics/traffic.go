package analytics

import (
	"fmt"
	"sort"
)

// groupShare is one breakdown group's contribution to the total.
type groupShare struct {
	key   string
	sum   float64
	share float64
}

// AnalyzeBreakdown ranks a breakdown's groups by share of the metric
// total. When the total is positive it emits exactly one TRAFFIC_SOURCE
// insight for the top group, plus a low-concentration insight when the
// runner-up is within closeSecondPoints percentage points of the top.
func AnalyzeBreakdown(dimension, metric string, b Breakdown, closeSecondPoints float64) []Insight {
	var total float64
	groups := make([]groupShare, 0, len(b))
	for key, series := range b {
		sum := series.Sum()
		total += sum
		groups = append(groups, groupShare{key: key, sum: sum})
	}
	if total <= 0 {
		return nil
	}
	for i := range groups {
		groups[i].share = groups[i].sum / total * 100
	}
	// Rank by share descending; lexicographic tie-break keeps the
	// ordering deterministic across runs.
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].share != groups[j].share {
			return groups[i].share > groups[j].share
		}
		return groups[i].key < groups[j].key
	})

	top := groups[0]
	topShare := round1(top.share)
	insights := []Insight{{
		Kind:   InsightTrafficSource,
		Metric: metric,
		Finding: fmt.Sprintf("the top %s is '%s' accounting for %.1f%% of %s",
			DisplayName(dimension), top.key, topShare, DisplayName(metric)),
		Magnitude:  &topShare,
		Confidence: ConfidenceHigh,
	}}

	if len(groups) > 1 && top.share-groups[1].share <= closeSecondPoints {
		second := groups[1]
		secondShare := round1(second.share)
		insights = append(insights, Insight{
			Kind:   InsightTrafficSource,
			Metric: metric,
			Finding: fmt.Sprintf("%s is not concentrated: '%s' is a close second at %.1f%% of %s",
				DisplayName(dimension), second.key, secondShare, DisplayName(metric)),
			Magnitude:  &secondShare,
			Confidence: ConfidenceLow,
		})
	}
	return insights
}
