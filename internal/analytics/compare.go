package analytics

import (
	"fmt"
	"sort"
)

// PerformanceBand classifies a URL's metric rate relative to the property
// baseline.
type PerformanceBand string

const (
	BandHighPerforming PerformanceBand = "HIGH_PERFORMING"
	BandProblematic    PerformanceBand = "PROBLEMATIC"
	BandNominal        PerformanceBand = "NOMINAL"
)

// ComparisonThresholds are the ratio cutoffs for the performance bands.
// High and Low come from configuration; they are never hard-coded at
// call sites.
type ComparisonThresholds struct {
	High float64
	Low  float64
}

// Classify places a URL/property rate ratio into a performance band.
func Classify(ratio float64, t ComparisonThresholds) PerformanceBand {
	switch {
	case ratio >= t.High:
		return BandHighPerforming
	case ratio <= t.Low:
		return BandProblematic
	default:
		return BandNominal
	}
}

// CompareToBaseline compares a URL's metric snapshot against the property
// snapshot. Metrics with a zero or missing property rate are skipped (no
// division by zero); NOMINAL ratios emit nothing to avoid noise on
// unremarkable URLs. Metrics are visited in sorted order for determinism.
func CompareToBaseline(urlSnap, propertySnap map[string]float64, t ComparisonThresholds) []Insight {
	metrics := make([]string, 0, len(urlSnap))
	for m := range urlSnap {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var insights []Insight
	for _, metric := range metrics {
		propertyRate := propertySnap[metric]
		if propertyRate <= 0 {
			continue
		}
		band := Classify(urlSnap[metric]/propertyRate, t)
		if band == BandNominal {
			continue
		}
		ratio := round2(urlSnap[metric] / propertyRate)
		label := "high-performing"
		if band == BandProblematic {
			label = "problematic"
		}
		insights = append(insights, Insight{
			Kind:   InsightComparison,
			Metric: metric,
			Finding: fmt.Sprintf("%s for this URL is %.2fx the property average (%s)",
				DisplayName(metric), ratio, label),
			Magnitude:  &ratio,
			Confidence: ConfidenceHigh,
		})
	}
	return insights
}
