package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mealcal/internal/meal"
)

func sample() *meal.WeeklySchedule {
	s := meal.NewWeeklySchedule()
	s.Set(0, meal.SlotBreakfast, "Granola & yogurt")
	s.Set(2, meal.SlotLunch, "Soup")
	s.Set(6, meal.SlotDinner, "Roast <chicken>")
	s.WithToday(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	return s
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meal.json")
	want := sample()

	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got.Days != want.Days {
		t.Errorf("days = %+v, want %+v", got.Days, want.Days)
	}
	if got.Today == nil || *got.Today != *want.Today {
		t.Errorf("today = %+v, want %+v", got.Today, want.Today)
	}
}

func TestEncodeFormat(t *testing.T) {
	data, err := Encode(sample())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	text := string(data)

	wantPrefix := "{\n  \"0\": {\n    \"breakfast\": \"Granola & yogurt\",\n    \"lunch\": \"\",\n    \"dinner\": \"\"\n  },\n"
	if !strings.HasPrefix(text, wantPrefix) {
		t.Errorf("unexpected layout:\n%s", text)
	}
	if !strings.Contains(text, "\"dinner\": \"Roast <chicken>\"") {
		t.Errorf("HTML characters should not be escaped:\n%s", text)
	}
	wantToday := "  \"today\": {\n    \"breakfast\": \"\",\n    \"lunch\": \"Soup\",\n    \"dinner\": \"\",\n    \"Date\": \"October, 14, 2026\"\n  }\n}\n"
	if !strings.HasSuffix(text, wantToday) {
		t.Errorf("unexpected today entry:\n%s", text)
	}
	if strings.Index(text, "\"6\"") > strings.Index(text, "\"today\"") {
		t.Errorf("day keys should precede today")
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meal.json")
	if err := os.WriteFile(path, []byte(strings.Repeat("stale content ", 500)), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteFile(path, meal.NewWeeklySchedule()); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "stale") {
		t.Errorf("old content survived:\n%s", data)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got.Today != nil {
		t.Errorf("today should be absent")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriteFileErrors(t *testing.T) {
	if err := WriteFile("", sample()); err == nil {
		t.Error("expected error for empty path")
	}
	if err := WriteFile(filepath.Join(t.TempDir(), "meal.json"), nil); err == nil {
		t.Error("expected error for nil schedule")
	}
	if err := WriteFile(filepath.Join(t.TempDir(), "missing", "meal.json"), sample()); err == nil {
		t.Error("expected error for missing directory")
	}
}
