package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONWriter saves result payloads as indented JSON files
type JSONWriter struct{}

// Save serializes payload to folder/name.json, creating folder if needed. An
// existing file of the same name is replaced.
func (JSONWriter) Save(folder, name string, payload any) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	data, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	path := filepath.Join(folder, fileName(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// LoadOutput reads a file written by Save.
func LoadOutput[T any](path string) (T, error) {
	var data T

	raw, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read output: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return data, nil
}

// fileName keeps labels such as "#go" or "a/b" inside the folder.
func fileName(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		name = "result"
	}
	return name + ".json"
}
