// Package scraper orchestrates fetching every Whoop data category for a date
// window and persisting it. Categories run sequentially and failures are
// isolated per category so one bad endpoint never aborts the run.
package scraper

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"whoopsync/whoop"
)

// Category names used as keys in the run results.
const (
	CategoryUserProfile     = "user_profile"
	CategoryBodyMeasurement = "body_measurement"
	CategoryCycles          = "cycles"
	CategoryRecovery        = "recovery"
	CategorySleep           = "sleep"
	CategoryWorkouts        = "workouts"
)

// APIClient is the fetch surface the orchestrator needs. Implemented by
// *whoop.Client.
type APIClient interface {
	UserProfile(ctx context.Context) (*whoop.UserProfile, error)
	BodyMeasurement(ctx context.Context) (*whoop.BodyMeasurement, error)
	Cycles(ctx context.Context, w whoop.Window) ([]whoop.Cycle, error)
	Recoveries(ctx context.Context, w whoop.Window) ([]whoop.Recovery, error)
	Sleeps(ctx context.Context, w whoop.Window) ([]whoop.Sleep, error)
	Workouts(ctx context.Context, w whoop.Window) ([]whoop.Workout, error)
}

// MetricStore is the persistence surface the orchestrator needs. Implemented
// by *db.Store.
type MetricStore interface {
	UpsertUserProfile(ctx context.Context, profile *whoop.UserProfile) error
	UpsertBodyMeasurement(ctx context.Context, m *whoop.BodyMeasurement) error
	UpsertCycles(ctx context.Context, records []whoop.Cycle) (int, error)
	UpsertRecoveries(ctx context.Context, records []whoop.Recovery) (int, error)
	UpsertSleeps(ctx context.Context, records []whoop.Sleep) (int, error)
	UpsertWorkouts(ctx context.Context, records []whoop.Workout) (int, error)
}

// Result is the outcome of one category.
type Result struct {
	Success bool
	Records int
	Error   string
}

// Results maps category name to outcome.
type Results map[string]Result

// Failed reports whether any category failed.
func (r Results) Failed() bool {
	for _, res := range r {
		if !res.Success {
			return true
		}
	}
	return false
}

// TotalRecords sums record counts across successful categories.
func (r Results) TotalRecords() int {
	total := 0
	for _, res := range r {
		if res.Success {
			total += res.Records
		}
	}
	return total
}

// Scraper sequences per-category fetch and upsert for one date window.
type Scraper struct {
	client APIClient
	store  MetricStore
	window whoop.Window
}

// New creates a scraper for the given window.
func New(client APIClient, store MetricStore, window whoop.Window) *Scraper {
	return &Scraper{client: client, store: store, window: window}
}

// Window returns the scrape window.
func (s *Scraper) Window() whoop.Window {
	return s.window
}

// Run scrapes all categories in order and returns per-category results. A
// failure in one category is recorded and does not abort the rest.
func (s *Scraper) Run(ctx context.Context) Results {
	runLog := log.With().
		Str("run_id", uuid.NewString()).
		Str("start", s.window.StartDate()).
		Str("end", s.window.EndDate()).
		Logger()
	runLog.Info().Msg("Starting scrape")

	results := Results{
		CategoryUserProfile:     s.scrape(ctx, runLog, CategoryUserProfile, s.scrapeUserProfile),
		CategoryBodyMeasurement: s.scrape(ctx, runLog, CategoryBodyMeasurement, s.scrapeBodyMeasurement),
		CategoryCycles:          s.scrape(ctx, runLog, CategoryCycles, s.scrapeCycles),
		CategoryRecovery:        s.scrape(ctx, runLog, CategoryRecovery, s.scrapeRecovery),
		CategorySleep:           s.scrape(ctx, runLog, CategorySleep, s.scrapeSleep),
		CategoryWorkouts:        s.scrape(ctx, runLog, CategoryWorkouts, s.scrapeWorkouts),
	}

	runLog.Info().Int("total_records", results.TotalRecords()).Bool("failed", results.Failed()).
		Msg("Scrape completed")
	return results
}

func (s *Scraper) scrape(ctx context.Context, runLog zerolog.Logger, category string, fn func(ctx context.Context) (int, error)) Result {
	runLog.Info().Str("category", category).Msg("Scraping")
	count, err := fn(ctx)
	if err != nil {
		runLog.Error().Err(err).Str("category", category).Msg("Scrape failed")
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Records: count}
}

func (s *Scraper) scrapeUserProfile(ctx context.Context) (int, error) {
	profile, err := s.client.UserProfile(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpsertUserProfile(ctx, profile); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Scraper) scrapeBodyMeasurement(ctx context.Context) (int, error) {
	measurement, err := s.client.BodyMeasurement(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpsertBodyMeasurement(ctx, measurement); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Scraper) scrapeCycles(ctx context.Context) (int, error) {
	records, err := s.client.Cycles(ctx, s.window)
	if err != nil {
		return 0, err
	}
	return s.store.UpsertCycles(ctx, records)
}

func (s *Scraper) scrapeRecovery(ctx context.Context) (int, error) {
	records, err := s.client.Recoveries(ctx, s.window)
	if err != nil {
		return 0, err
	}
	return s.store.UpsertRecoveries(ctx, records)
}

func (s *Scraper) scrapeSleep(ctx context.Context) (int, error) {
	records, err := s.client.Sleeps(ctx, s.window)
	if err != nil {
		return 0, err
	}
	return s.store.UpsertSleeps(ctx, records)
}

func (s *Scraper) scrapeWorkouts(ctx context.Context) (int, error) {
	records, err := s.client.Workouts(ctx, s.window)
	if err != nil {
		return 0, err
	}
	return s.store.UpsertWorkouts(ctx, records)
}
