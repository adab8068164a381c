package convert

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// Format is a file encoding for persisted graphs.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Anything other than
// .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode reads a persisted graph.
func Decode(r io.Reader, format Format) (PersistedGraph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return PersistedGraph{}, fmt.Errorf("failed to read graph: %w", err)
	}

	var pg PersistedGraph
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &pg); err != nil {
			return PersistedGraph{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatJSON, "":
		if err := sonic.ConfigStd.Unmarshal(data, &pg); err != nil {
			return PersistedGraph{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return PersistedGraph{}, fmt.Errorf("unsupported format %q", format)
	}
	return pg, nil
}

// Encode writes pg in format.
func Encode(w io.Writer, pg PersistedGraph, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(pg)
	case FormatJSON, "":
		data, err = sonic.ConfigStd.MarshalIndent(pg, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	_, err = w.Write(data)
	return err
}
