package sources

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a sources file.
type File struct {
	Sources []*Source `yaml:"sources"`
}

// LoadFile reads and validates the sources declared in a YAML file.
func LoadFile(path string) ([]*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	srcs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return srcs, nil
}

// Parse decodes and validates sources from YAML. Unknown keys are rejected
// so that typos in strategy definitions do not silently disable a field.
func Parse(data []byte) ([]*Source, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Sources))
	for i, s := range f.Sources {
		if s == nil {
			return nil, fmt.Errorf("sources[%d]: empty entry", i)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("source %q declared twice", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return f.Sources, nil
}
