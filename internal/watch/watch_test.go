package watch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mealcal/internal/config"
	"mealcal/internal/ics"
	"mealcal/internal/meal"
	"mealcal/internal/pipeline"
	"mealcal/internal/web"
)

const feed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:1\r\nSUMMARY:Porridge\r\nDTSTART:20261012T153000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(feed), nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.FeedURL = "https://calendar.example.com/basic.ics"
	cfg.Output = filepath.Join(t.TempDir(), "meal.json")
	cfg.Normalize()
	return cfg
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 14, 16, 0, 0, 0, time.UTC)
}

func TestRunOncePublishesSchedule(t *testing.T) {
	cfg := testConfig(t)
	srv := web.NewServer(cfg)
	f := &countingFetcher{}
	w := New(cfg, pipeline.Options{Fetcher: f, Now: fixedNow}, srv)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	sched, _ := srv.Schedule()
	if sched == nil || sched.Days[0].Breakfast != "Porridge" {
		t.Fatalf("published schedule = %+v", sched)
	}
	st := w.Status()
	if st.Runs != 1 || st.Failures != 0 || st.Last == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestRunOnceFailureKeepsPreviousSchedule(t *testing.T) {
	cfg := testConfig(t)
	srv := web.NewServer(cfg)
	prev := meal.NewWeeklySchedule()
	prev.Set(1, meal.SlotLunch, "Leftovers")
	srv.SetSchedule(prev, time.Now())

	w := New(cfg, pipeline.Options{Fetcher: &countingFetcher{err: ics.ErrNetwork}, Now: fixedNow}, srv)
	if err := w.RunOnce(context.Background()); !errors.Is(err, ics.ErrNetwork) {
		t.Fatalf("RunOnce() error = %v, want ErrNetwork", err)
	}

	sched, _ := srv.Schedule()
	if sched != prev {
		t.Error("previous schedule was replaced after a failed run")
	}
	if st := w.Status(); st.Failures != 1 || st.LastErr == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestRunReturnsConfigurationError(t *testing.T) {
	cfg := testConfig(t)
	cfg.FeedURL = ""
	f := &countingFetcher{}
	w := New(cfg, pipeline.Options{Fetcher: f, Now: fixedNow}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.Run(ctx); !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("Run() error = %v, want ErrConfiguration", err)
	}
	if f.calls.Load() != 0 {
		t.Errorf("fetcher called %d times", f.calls.Load())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	f := &countingFetcher{err: ics.ErrNetwork}
	w := New(cfg, pipeline.Options{Fetcher: f, Now: fixedNow}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("initial run never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunServesOverHTTP(t *testing.T) {
	cfg := testConfig(t)
	srv := web.NewServer(cfg)
	w := New(cfg, pipeline.Options{Fetcher: &countingFetcher{}, Now: fixedNow}, srv)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/meals", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}
