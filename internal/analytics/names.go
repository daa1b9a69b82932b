package analytics

import (
	"strings"
	"unicode"
)

// metricDisplayNames maps GA4 API metric names to the wording used in
// finding text.
var metricDisplayNames = map[string]string{
	"sessions":               "sessions",
	"activeUsers":            "active users",
	"totalUsers":             "total users",
	"screenPageViews":        "page views",
	"engagedSessions":        "engaged sessions",
	"eventCount":             "events",
	"keyEvents":              "key events",
	"bounceRate":             "bounce rate",
	"engagementRate":         "engagement rate",
	"conversionRate":         "conversion rate",
	"averageSessionDuration": "average session duration",
	"pageviewsPerSession":    "pageviews per session",
	"sessionSource":          "traffic source",
	"sessionMedium":          "traffic medium",
	"deviceCategory":         "device category",
}

// DisplayName returns the human wording for a metric or dimension name,
// falling back to splitting camelCase into lowercase words.
func DisplayName(name string) string {
	if mapped, ok := metricDisplayNames[name]; ok {
		return mapped
	}
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
