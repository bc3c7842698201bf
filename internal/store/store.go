package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/passbi/corridor_router/internal/models"
)

// Source yields an already-normalized dataset bundle
type Source interface {
	LoadBundle(ctx context.Context) (models.Bundle, error)
}

// FileSource reads a bundle from a JSON file
type FileSource struct {
	Path string
}

// LoadBundle reads and decodes the file on every call, so a refresh sees edits
func (s FileSource) LoadBundle(_ context.Context) (models.Bundle, error) {
	return LoadBundleFile(s.Path)
}

// LoadBundleFile decodes a JSON bundle
func LoadBundleFile(path string) (models.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Bundle{}, fmt.Errorf("failed to read bundle %s: %w", path, err)
	}

	var bundle models.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return models.Bundle{}, fmt.Errorf("failed to parse bundle %s: %w", path, err)
	}

	log.Printf("Loaded bundle %s: %d cities, %d lines, %d path entries, %d carriers",
		path, len(bundle.Cities), len(bundle.Lines), len(bundle.LinePaths), len(bundle.Carriers))
	return bundle, nil
}

// WriteBundleFile encodes a bundle as indented JSON
func WriteBundleFile(path string, bundle models.Bundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write bundle %s: %w", path, err)
	}
	return nil
}
