package whoop

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Window is an inclusive calendar-date range for time-series queries. It has
// no persisted identity and is recomputed per run.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFromDays returns a window covering the last N days ending today.
func WindowFromDays(days int) Window {
	end := NowTimeFunc().UTC().Truncate(24 * time.Hour)
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// ParseWindow builds a window from explicit YYYY-MM-DD dates.
func ParseWindow(startDate, endDate string) (Window, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	return Window{Start: start, End: end}, nil
}

// StartDate returns the start as YYYY-MM-DD.
func (w Window) StartDate() string { return w.Start.Format(dateLayout) }

// EndDate returns the end as YYYY-MM-DD.
func (w Window) EndDate() string { return w.End.Format(dateLayout) }

// startParam is the inclusive start instant in the API's timestamp format.
func (w Window) startParam() string {
	return w.StartDate() + "T00:00:00.000Z"
}

// endParam is the inclusive end instant in the API's timestamp format.
func (w Window) endParam() string {
	return w.EndDate() + "T23:59:59.999Z"
}

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now
