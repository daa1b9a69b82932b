// Command analyze runs one offline analysis over an exported rows file
// and prints the insights, optionally writing the full result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
	"github.com/ignite/ga4-insight-engine/internal/config"
	"github.com/ignite/ga4-insight-engine/internal/engine"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	rowsPath := flag.String("rows", "", "path to exported rows JSON (overrides config)")
	outPath := flag.String("out", "", "write the full result JSON to this file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Analysis.PropertyID == "" {
		log.Fatal("analysis.property_id must be configured")
	}
	path := cfg.Analysis.RowsPath
	if *rowsPath != "" {
		path = *rowsPath
	}

	source, err := engine.LoadRowsFile(path)
	if err != nil {
		log.Fatalf("Failed to load rows: %v", err)
	}

	dr, err := cfg.Analysis.DateRange()
	if err != nil {
		log.Fatalf("Invalid date range: %v", err)
	}

	orchestrator := engine.New(source, engine.Options{
		Metrics:                cfg.Analysis.Metrics,
		Dimensions:             cfg.Analysis.Dimensions,
		RateMetrics:            cfg.Analysis.RateMetricSet(),
		TrafficSourceDimension: cfg.Analysis.TrafficSourceDimension,
		DeviceDimension:        cfg.Analysis.DeviceDimension,
		Thresholds:             cfg.Analysis.ComparisonThresholds.Thresholds(),
		CloseSecondPoints:      cfg.Analysis.TrafficCloseSecondPoints,
		MaxConcurrentFetches:   cfg.Analysis.MaxConcurrentFetches,
		URLTimeout:             cfg.Analysis.URLTimeout(),
	})

	result, err := orchestrator.Run(context.Background(),
		cfg.Analysis.PropertyID, cfg.Analysis.PropertyName, cfg.Analysis.URLs, dr)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	printResult(result)

	if *outPath != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		if err := os.WriteFile(*outPath, data, 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", *outPath, err)
		}
		log.Printf("Result written to %s", *outPath)
	}
}

func printResult(result *analytics.AnalysisResult) {
	fmt.Printf("Property %s (%s to %s)\n",
		result.PropertyName,
		result.DateRange.Start.Format("2006-01-02"),
		result.DateRange.End.Format("2006-01-02"))

	for _, insight := range result.PropertyInsights {
		printInsight("  ", insight)
	}

	urls := make([]string, 0, len(result.URLResults))
	for url := range result.URLResults {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	for _, url := range urls {
		rec := result.URLResults[url]
		fmt.Printf("\n%s [%s]\n", url, rec.Status)
		if rec.ErrorDetail != "" {
			fmt.Printf("  error: %s\n", rec.ErrorDetail)
		}
		for _, insight := range rec.Insights {
			printInsight("  ", insight)
		}
	}
}

func printInsight(indent string, insight analytics.Insight) {
	fmt.Printf("%s[%s/%s] %s\n", indent, insight.Kind, insight.Confidence, insight.Finding)
}
