package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"alcyxob/workout-sync/internal/domain"
)

// print writes v in the configured format.
func (o *RootOptions) print(w io.Writer, v any) error {
	switch o.Format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	}
}

// readWorkout decodes a workout tree from a YAML (or JSON) file; "-" reads stdin.
func readWorkout(path string, stdin io.Reader) (*domain.Workout, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workout file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var w domain.Workout
	if err := yaml.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to parse workout file: %w", err)
	}
	return &w, nil
}
