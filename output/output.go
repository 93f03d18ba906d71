// Package output writes extracted records to disk.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/harvest/models"
)

// Format represents output format types.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Extension returns the file extension for the format, with dot.
func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Encode writes v to w in the given format.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// RunDocument combines the outcome of a run over several sources.
type RunDocument struct {
	GeneratedAt time.Time                      `json:"generatedAt" yaml:"generatedAt"`
	Results     map[string]models.Record       `json:"results" yaml:"results"`
	Failures    map[string]*models.ErrorDetail `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// NewRunDocument creates an empty run document stamped with at.
func NewRunDocument(at time.Time) *RunDocument {
	return &RunDocument{
		GeneratedAt: at.UTC(),
		Results:     make(map[string]models.Record),
	}
}

// Add records a successful extraction.
func (d *RunDocument) Add(sourceID string, rec models.Record) {
	d.Results[sourceID] = rec
}

// Fail records a failed extraction.
func (d *RunDocument) Fail(sourceID string, detail *models.ErrorDetail) {
	if d.Failures == nil {
		d.Failures = make(map[string]*models.ErrorDetail)
	}
	d.Failures[sourceID] = detail
}

// Store writes records as files under a directory.
type Store struct {
	dir    string
	format Format
}

// NewStore creates a Store. The directory is created on first write.
func NewStore(dir string, format Format) *Store {
	return &Store{dir: dir, format: format}
}

// RecordPath returns the file a record of the given kind is written to.
func (s *Store) RecordPath(sourceID string, kind models.RecordKind) string {
	name := sourceID + "_results"
	if kind == models.KindPagedListing {
		name = sourceID + "_pages"
	}
	return filepath.Join(s.dir, name+s.format.Extension())
}

// RunPath returns the file the combined run document is written to.
func (s *Store) RunPath() string {
	return filepath.Join(s.dir, "final_results"+s.format.Extension())
}

// WriteRecord writes a single record and returns its path.
func (s *Store) WriteRecord(rec models.Record) (string, error) {
	path := s.RecordPath(rec.SourceID(), rec.Kind())
	if err := s.write(path, rec); err != nil {
		return "", err
	}
	slog.Info("record saved", "source", rec.SourceID(), "kind", rec.Kind(), "path", path)
	return path, nil
}

// WriteRun writes the combined run document and returns its path.
func (s *Store) WriteRun(doc *RunDocument) (string, error) {
	path := s.RunPath()
	if err := s.write(path, doc); err != nil {
		return "", err
	}
	slog.Info("run saved", "results", len(doc.Results), "failures", len(doc.Failures), "path", path)
	return path, nil
}

func (s *Store) write(path string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("output: create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create file: %w", err)
	}
	if err := Encode(f, s.format, v); err != nil {
		f.Close()
		return fmt.Errorf("output: encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
