package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
)

// RowsFile is the on-disk export format: one property-wide row set plus
// per-URL row sets keyed by URL path.
type RowsFile struct {
	PropertyRows []analytics.Row            `json:"property_rows"`
	URLRows      map[string][]analytics.Row `json:"url_rows"`
}

// LoadRowsFile reads an export file into an in-memory source.
func LoadRowsFile(path string) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rows file: %w", err)
	}
	var f RowsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rows file %s: %w", path, err)
	}
	return &MemorySource{PropertyRows: f.PropertyRows, URLRows: f.URLRows}, nil
}

// FileSource serves rows from an export file, re-reading it on every
// fetch so a refreshed export is picked up without a restart. Put a
// cache in front when the file is large.
type FileSource struct {
	path string
}

// NewFileSource creates a source over the export at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) FetchRows(ctx context.Context, req ScopeRequest) ([]analytics.Row, error) {
	src, err := LoadRowsFile(s.path)
	if err != nil {
		return nil, err
	}
	return src.FetchRows(ctx, req)
}
