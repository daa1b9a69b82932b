package analytics

import (
	"fmt"
	"math"
)

// AnalyzeTrend computes the directional change of one series across the
// midpoint of its observed date span. Counts are summed per half; rate
// metrics are averaged. Returns nil when no meaningful trend exists
// (fewer than two points, or both halves zero).
func AnalyzeTrend(series MetricSeries, isRate bool) *Insight {
	if len(series.Points) < 2 {
		return nil
	}

	first := series.Points[0].Date
	last := series.Points[len(series.Points)-1].Date
	midpoint := first.Add(last.Sub(first) / 2)

	var earlier, later []MetricPoint
	for _, p := range series.Points {
		if !p.Date.After(midpoint) {
			earlier = append(earlier, p)
		} else {
			later = append(later, p)
		}
	}
	if len(earlier) == 0 || len(later) == 0 {
		return nil
	}

	startValue := aggregate(earlier, isRate)
	endValue := aggregate(later, isRate)
	name := DisplayName(series.MetricName)

	if startValue == 0 {
		if endValue == 0 {
			return nil
		}
		// Percentage change is undefined when dividing by zero.
		return &Insight{
			Kind:       InsightTrend,
			Metric:     series.MetricName,
			Finding:    fmt.Sprintf("%s newly appeared in the later part of the period", name),
			Confidence: ConfidenceLow,
		}
	}

	magnitude := round1((endValue - startValue) / startValue * 100)
	direction := "increased"
	if magnitude < 0 {
		direction = "decreased"
	}
	confidence := ConfidenceHigh
	if len(earlier) < 2 || len(later) < 2 {
		confidence = ConfidenceLow
	}
	return &Insight{
		Kind:       InsightTrend,
		Metric:     series.MetricName,
		Finding:    fmt.Sprintf("%s %s by %.1f%% over the period", name, direction, math.Abs(magnitude)),
		Magnitude:  &magnitude,
		Confidence: confidence,
	}
}

func aggregate(points []MetricPoint, isRate bool) float64 {
	var total float64
	for _, p := range points {
		total += p.Value
	}
	if isRate && len(points) > 0 {
		return total / float64(len(points))
	}
	return total
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
