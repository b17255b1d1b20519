package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ndewijer/investment-ledger/internal/model"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestDirtyBuckets_MarkEvent tests the settlement lag rule at bucket boundaries.
//
// WHY: Events shortly after a boundary are re-attributed to the closing period when
// deciding what to solve again. The thresholds are configurable and must be applied
// exactly, not rounded to month boundaries.
func TestDirtyBuckets_MarkEvent(t *testing.T) {
	q := func(y, n int) model.QuarterKey { return model.QuarterKey{Year: y, Quarter: n} }

	tests := []struct {
		name         string
		event        string
		wantQuarters []model.QuarterKey
		wantYears    []int
	}{
		{"early in the year dirties the previous quarter and year", "2024-01-15", []model.QuarterKey{q(2024, 1), q(2023, 4)}, []int{2024, 2023}},
		{"past the quarter lag but inside the year lag", "2024-02-15", []model.QuarterKey{q(2024, 1)}, []int{2024, 2023}},
		{"first day past the year lag", "2024-03-02", []model.QuarterKey{q(2024, 1)}, []int{2024}},
		{"early in a later quarter", "2024-04-30", []model.QuarterKey{q(2024, 2), q(2024, 1)}, []int{2024}},
		{"first day past the quarter lag", "2024-05-02", []model.QuarterKey{q(2024, 2)}, []int{2024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newDirtyBuckets()
			b.markEvent(date(tt.event), DefaultQuarterLagDays, DefaultYearLagDays)

			assert.Len(t, b.quarters, len(tt.wantQuarters))
			for _, k := range tt.wantQuarters {
				assert.True(t, b.quarters[k], "quarter %s", k)
			}
			assert.Len(t, b.years, len(tt.wantYears))
			for _, y := range tt.wantYears {
				assert.True(t, b.years[y], "year %d", y)
			}
		})
	}

	t.Run("zero lag only dirties the own bucket", func(t *testing.T) {
		b := newDirtyBuckets()
		b.markEvent(date("2024-01-01"), 0, 0)

		assert.Equal(t, map[model.QuarterKey]bool{q(2024, 1): true}, b.quarters)
		assert.Equal(t, map[int]bool{2024: true}, b.years)
	})
}

func TestDirtyBuckets_MarkFrom(t *testing.T) {
	b := newDirtyBuckets()
	b.markFrom(date("2023-11-20"), date("2024-04-01"))

	assert.Equal(t, map[int]bool{2023: true, 2024: true}, b.years)
	assert.Len(t, b.quarters, 3)
	assert.True(t, b.quarters[model.QuarterKey{Year: 2023, Quarter: 4}])
	assert.True(t, b.quarters[model.QuarterKey{Year: 2024, Quarter: 2}])
}

func TestWindow(t *testing.T) {
	w := Window{From: date("2024-01-01"), To: date("2024-12-31")}

	assert.True(t, w.Contains(date("2024-01-01")))
	assert.True(t, w.Contains(date("2024-12-31")))
	assert.False(t, w.Contains(date("2023-12-31")))
	assert.True(t, Window{}.Contains(date("1999-01-01")))
	assert.True(t, Window{}.IsZero())
}
