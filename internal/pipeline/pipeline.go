package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mealcal/internal/config"
	"mealcal/internal/ics"
	appLog "mealcal/internal/log"
	"mealcal/internal/meal"
	"mealcal/internal/output"
)

// expandPadDays widens the recurrence expansion window on both sides of the
// local week.
const expandPadDays = 2

// FeedFetcher retrieves the raw feed body. *ics.Fetcher implements it.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options carries the collaborators of a run. Zero values select the
// production defaults.
type Options struct {
	Fetcher FeedFetcher
	Now     func() time.Time
	Rule    *meal.SlotRule
}

// Result summarizes a successful run.
type Result struct {
	RunID       string
	Output      string
	Schedule    *meal.WeeklySchedule
	Week        meal.Week
	Events      int
	Occurrences int
	Truncated   []string
	Stats       meal.FoldStats
}

// Run executes fetch → parse → expand → classify+fold → write once.
//
// The configuration is validated before anything else, so a missing feed
// URL fails with config.ErrConfiguration without touching the network or
// the output file. The file is written last and only when every earlier
// step succeeded.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", config.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rule := meal.DefaultSlotRule
	if opts.Rule != nil {
		rule = *opts.Rule
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = ics.NewFetcher(cfg.HTTPTimeout)
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	runID := uuid.NewString()
	now := nowFn()
	started := time.Now()
	appLog.Info("meal extraction start", "run_id", runID, "timezone", cfg.Timezone, "output", cfg.Output)

	body, err := fetcher.Fetch(ctx, cfg.FetchURL())
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	events, err := ics.ParseICS(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	// The week is taken from the local clock but checked against dates in
	// the reference zone, and two zones can be up to 26h apart. The week
	// filter proper runs after zone normalization in meal.Fold.
	week := meal.CurrentWeek(now)
	expanded, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		RangeStart: week.Start.AddDate(0, 0, -expandPadDays),
		RangeEnd:   week.End.AddDate(0, 0, expandPadDays),
		Recurrence: cfg.ShouldExpandRecurrence(),
	})
	if err != nil {
		return nil, fmt.Errorf("expand events: %w", err)
	}

	classifier := meal.NewClassifier(rule, cfg.Location(), now)
	sched, stats := meal.Fold(expanded.Occurrences, classifier)
	if cfg.ShouldIncludeToday() {
		sched.WithToday(now)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := output.WriteFile(cfg.Output, sched); err != nil {
		return nil, fmt.Errorf("write %s: %w", cfg.Output, err)
	}

	appLog.Info("meal extraction completed",
		"run_id", runID,
		"events", len(events),
		"occurrences", len(expanded.Occurrences),
		"placed", stats.Placed,
		"outside_week", stats.OutsideWeek,
		"no_slot", stats.NoSlot,
		"duplicates", stats.Duplicates,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	return &Result{
		RunID:       runID,
		Output:      cfg.Output,
		Schedule:    sched,
		Week:        week,
		Events:      len(events),
		Occurrences: len(expanded.Occurrences),
		Truncated:   expanded.TruncatedEvents,
		Stats:       stats,
	}, nil
}

// ExitCode maps a Run error to a process exit status: 2 for configuration
// problems, 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrConfiguration):
		return 2
	default:
		return 1
	}
}
