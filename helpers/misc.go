package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

func TempEnvVars(vars map[string]string) (reset func()) {
	current := map[string]string{}
	for key, val := range vars {
		current[key] = os.Getenv(key)
		os.Setenv(key, val)
	}
	return func() {
		for key, val := range current {
			os.Setenv(key, val)
		}
	}
}

func Ptr[T any](v T) *T {
	return &v
}

// WriteJSON writes v indented, followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("error encoding JSON output:\n>>> %w", err)
	}
	return nil
}
