package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mealcal/internal/meal"
)

// Encode renders the schedule with two-space indentation. HTML characters
// in titles are written as-is.
func Encode(s *meal.WeeklySchedule) ([]byte, error) {
	if s == nil {
		return nil, errors.New("schedule is nil")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile replaces path with the encoded schedule.
//
// Implementation details:
//   - Encodes fully in memory first, so an encoding error leaves any
//     previous file untouched.
//   - Writes a temp file in the same directory, then renames it over path.
//   - Final permissions are 0644.
func WriteFile(path string, s *meal.WeeklySchedule) error {
	if path == "" {
		return errors.New("output path is empty")
	}
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mealcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// ReadFile loads a schedule previously written by WriteFile.
func ReadFile(path string) (*meal.WeeklySchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s meal.WeeklySchedule
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &s, nil
}
