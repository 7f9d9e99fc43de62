// Package corpus reads commentary entries from the embedded seed or from a
// content file on disk.
package corpus

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eslsoft/tafsirnet/internal/entity"
)

//go:embed seed/tafsir_saadi.yaml
var seedYAML []byte

// Format identifies the encoding of a corpus file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Seed returns the built-in sample corpus.
func Seed() ([]*entity.CommentaryEntry, error) {
	entries, err := Decode(bytes.NewReader(seedYAML), FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("decode embedded seed: %w", err)
	}
	return entries, nil
}

// LoadFile reads a YAML or JSON corpus file; the format follows the extension.
func LoadFile(path string) ([]*entity.CommentaryEntry, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open corpus file: %w", err)
	}
	defer f.Close()

	entries, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return entries, nil
}

// FormatFromPath maps a file extension to a Format.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported corpus file extension %q", filepath.Ext(path))
	}
}

// Decode reads a list of entries from r.
func Decode(r io.Reader, format Format) ([]*entity.CommentaryEntry, error) {
	var entries []*entity.CommentaryEntry
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
			return nil, err
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", format)
	}
	for i, e := range entries {
		if e == nil {
			return nil, fmt.Errorf("%w: entry %d is empty", entity.ErrInvalidEntry, i)
		}
		e.Commentary = strings.TrimSpace(e.Commentary)
		e.Translation = strings.TrimSpace(e.Translation)
	}
	return entries, nil
}

// Encode writes entries to w.
func Encode(w io.Writer, format Format, entries []*entity.CommentaryEntry) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		return fmt.Errorf("unsupported corpus format %q", format)
	}
}
