package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
	"github.com/ignite/ga4-insight-engine/internal/config"
)

// Storage archives AnalysisResults as JSON documents, locally or in S3,
// and keeps the most recent result per property in memory for the API.
type Storage struct {
	cfg config.StorageConfig
	aws *AWSStorage

	mu     sync.RWMutex
	latest map[string]*analytics.AnalysisResult
}

// New creates a Storage instance. For the s3 type the AWS client is
// initialized eagerly so credential problems surface at startup.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	s := &Storage{
		cfg:    cfg,
		latest: make(map[string]*analytics.AnalysisResult),
	}
	if cfg.Type == "s3" {
		aws, err := NewAWSStorage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.AWSProfile)
		if err != nil {
			return nil, fmt.Errorf("initializing S3 storage: %w", err)
		}
		s.aws = aws
	} else {
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}
	return s, nil
}

// SaveResult archives one run's result under its run ID and returns the
// file path or object key it was written to.
func (s *Storage) SaveResult(ctx context.Context, runID string, result *analytics.AnalysisResult) (string, error) {
	name := fmt.Sprintf("%s_%s_analysis.json", safeName(result.PropertyName), runID)

	if s.aws != nil {
		key := "results/" + name
		if err := s.aws.PutJSON(ctx, key, result); err != nil {
			return "", err
		}
		s.remember(result)
		return key, nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}
	path := filepath.Join(s.cfg.LocalPath, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing result file: %w", err)
	}
	s.remember(result)
	return path, nil
}

// LoadResult reads an archived result back by the path or key SaveResult
// returned.
func (s *Storage) LoadResult(ctx context.Context, ref string) (*analytics.AnalysisResult, error) {
	result := &analytics.AnalysisResult{}
	if s.aws != nil {
		if err := s.aws.GetJSON(ctx, ref, result); err != nil {
			return nil, err
		}
		return result, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("reading result file: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("parsing result file: %w", err)
	}
	return result, nil
}

// Latest returns the most recent in-memory result for a property.
func (s *Storage) Latest(propertyID string) (*analytics.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[propertyID]
	return r, ok
}

// ListLocal returns the archived result files for local storage, sorted
// by name. Returns nil for S3-backed storage.
func (s *Storage) ListLocal() ([]string, error) {
	if s.aws != nil {
		return nil, nil
	}
	entries, err := os.ReadDir(s.cfg.LocalPath)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "_analysis.json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Storage) remember(result *analytics.AnalysisResult) {
	s.mu.Lock()
	s.latest[result.PropertyID] = result
	s.mu.Unlock()
}

// safeName makes a property name usable as a filename fragment.
func safeName(name string) string {
	if name == "" {
		return "property"
	}
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_")
	return r.Replace(name)
}
