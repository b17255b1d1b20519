package portfolio

import (
	"time"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// Default settlement lag thresholds, in days from the start of a bucket.
const (
	DefaultQuarterLagDays = 31
	DefaultYearLagDays    = 61
)

// Window limits the reported dates. A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the window is unbounded on both sides.
func (w Window) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// Contains reports whether d lies inside the window, bounds included.
func (w Window) Contains(d time.Time) bool {
	if !w.From.IsZero() && d.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && d.After(w.To) {
		return false
	}
	return true
}

func yearStart(y int) time.Time {
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func yearEnd(y int) time.Time {
	return time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// dirtyBuckets tracks the years and quarters whose rate has to be solved again.
type dirtyBuckets struct {
	years    map[int]bool
	quarters map[model.QuarterKey]bool
}

func newDirtyBuckets() *dirtyBuckets {
	return &dirtyBuckets{years: map[int]bool{}, quarters: map[model.QuarterKey]bool{}}
}

// markEvent dirties the buckets of an event date. An event in the first quarterLag days
// of its quarter also dirties the previous quarter, and one in the first yearLag days of
// its year also dirties the previous year: settlements near a boundary are attributed
// to the period they close.
func (b *dirtyBuckets) markEvent(d time.Time, quarterLag, yearLag int) {
	q := model.QuarterOf(d)
	b.quarters[q] = true
	if int(d.Sub(q.Start()).Hours()/24) < quarterLag {
		b.quarters[q.Prev()] = true
	}

	b.years[d.Year()] = true
	if d.YearDay()-1 < yearLag {
		b.years[d.Year()-1] = true
	}
}

// markFrom dirties every bucket that ends on or after from, up to last.
func (b *dirtyBuckets) markFrom(from, last time.Time) {
	for y := from.Year(); y <= last.Year(); y++ {
		b.years[y] = true
	}
	for q := model.QuarterOf(from); !q.Start().After(last); q = next(q) {
		b.quarters[q] = true
	}
}

func next(q model.QuarterKey) model.QuarterKey {
	if q.Quarter == 4 {
		return model.QuarterKey{Year: q.Year + 1, Quarter: 1}
	}
	return model.QuarterKey{Year: q.Year, Quarter: q.Quarter + 1}
}
