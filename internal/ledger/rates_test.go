package ledger_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// TestBuildFlows tests how matched lots become dated cash flows.
//
// WHY: The solver only sees flows. A buy or share dividend must never appear as an
// event, and an event that matched no lot has nothing to grow and would pin the
// residual to its proceeds.
func TestBuildFlows(t *testing.T) {
	rows := []model.Transaction{
		model.Buy(day("2023-01-01"), 1000, 100),
		model.ShareDividend(day("2023-03-01"), 10),
		model.Buy(day("2023-06-01"), 500, 40),
		model.Sell(day("2024-01-01"), 1500, 120),
	}

	flows := ledger.BuildFlows(rows, ledger.MatchLots(rows))
	require.Len(t, flows, 1)

	f := flows[0]
	assert.Equal(t, 3, f.Event)
	assert.Equal(t, day("2024-01-01"), f.Date)
	assert.InDelta(t, 1500, f.Proceeds, 1e-12)
	require.Len(t, f.Lots, 2)
	assert.Equal(t, day("2023-01-01"), f.Lots[0].Date)
	assert.Equal(t, day("2023-06-01"), f.Lots[1].Date)
	assert.InDelta(t, 1000+500*10.0/40, f.Cost(), 1e-9)

	t.Run("ledger without events has no flows", func(t *testing.T) {
		rows := []model.Transaction{model.Buy(day("2023-01-01"), 1000, 100)}
		assert.Empty(t, ledger.BuildFlows(rows, ledger.MatchLots(rows)))
	})
}

// TestSolver_EventRate tests the per-event rate.
//
// WHY: Single-lot events skip the loop entirely, so the closed form and the secant
// fallback have to agree on what a root is.
func TestSolver_EventRate(t *testing.T) {
	s := ledger.DefaultSolver()

	t.Run("single lot over a year", func(t *testing.T) {
		f := ledger.EventFlows{
			Date:     day("2024-01-01"),
			Proceeds: 1100,
			Lots:     []ledger.LotFlow{{Date: day("2023-01-01"), Amount: 1000}},
		}

		sol, err := s.EventRate(f, 0)
		require.NoError(t, err)
		assert.InDelta(t, 0.1, sol.Rate, 1e-12)
		assert.Zero(t, sol.Iterations)
	})

	t.Run("same day sale falls back to the loop", func(t *testing.T) {
		f := ledger.EventFlows{
			Date:     day("2023-01-01"),
			Proceeds: 1000,
			Lots:     []ledger.LotFlow{{Date: day("2023-01-01"), Amount: 1000}},
		}

		sol, err := s.EventRate(f, 0.05)
		require.NoError(t, err)
		assert.InDelta(t, 0.05, sol.Rate, 1e-12)
		assert.Equal(t, 1, sol.Iterations)
	})

	t.Run("two lots solve to a zero residual", func(t *testing.T) {
		f := ledger.EventFlows{
			Date:     day("2024-01-01"),
			Proceeds: 1700,
			Lots: []ledger.LotFlow{
				{Date: day("2023-01-01"), Amount: 1000},
				{Date: day("2023-07-01"), Amount: 500},
			},
		}

		sol, err := s.EventRate(f, 0)
		require.NoError(t, err)
		assert.Greater(t, sol.Rate, 0.0)
		assert.Less(t, math.Abs(f.Residual(sol.Rate)), s.Tolerance)
	})
}

// TestSolver_AverageRate tests the joint rate over several events.
func TestSolver_AverageRate(t *testing.T) {
	s := ledger.DefaultSolver()
	one := ledger.EventFlows{
		Date:     day("2024-01-01"),
		Proceeds: 1200,
		Lots:     []ledger.LotFlow{{Date: day("2023-01-01"), Amount: 1000}},
	}
	two := ledger.EventFlows{
		Date:     day("2024-07-01"),
		Proceeds: 450,
		Lots:     []ledger.LotFlow{{Date: day("2023-07-01"), Amount: 500}},
	}

	t.Run("no events is undefined", func(t *testing.T) {
		sol, err := s.AverageRate(nil, nil)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(sol.Rate))
	})

	t.Run("one event is its own rate", func(t *testing.T) {
		sol, err := s.AverageRate([]ledger.EventFlows{one}, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.2, sol.Rate, 1e-12)
	})

	t.Run("several events solve jointly", func(t *testing.T) {
		flows := []ledger.EventFlows{one, two}

		sol, err := s.AverageRate(flows, nil)
		require.NoError(t, err)
		assert.Less(t, math.Abs(ledger.Residual(flows, sol.Rate)), s.Tolerance)
		assert.InDelta(t, newtonAverage(flows), sol.Rate, 1e-8)
	})

	t.Run("NaN seed starts from zero", func(t *testing.T) {
		flows := []ledger.EventFlows{one, two}
		nan := math.NaN()

		fromNaN, err := s.AverageRate(flows, &nan)
		require.NoError(t, err)
		fromNil, err := s.AverageRate(flows, nil)
		require.NoError(t, err)
		assert.Equal(t, fromNil, fromNaN)
	})

	t.Run("exhausted budget is a convergence error", func(t *testing.T) {
		tight := ledger.Solver{MaxIterations: 1, StepSize: 0.1, Tolerance: 1e-10}

		_, err := tight.AverageRate([]ledger.EventFlows{one, two}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrConvergence))
	})
}
