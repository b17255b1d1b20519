package ledger

import (
	"errors"
	"math"
	"time"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// Config holds the engine options. Build it once at startup and validate it there.
type Config struct {
	Solver Solver
	// RoundingDigits rounds running share balances; -1 disables rounding.
	RoundingDigits int
}

// DefaultConfig returns the default engine options.
func DefaultConfig() Config {
	return Config{Solver: DefaultSolver(), RoundingDigits: DefaultRoundingDigits}
}

// Validate rejects invalid engine options.
func (c Config) Validate() error {
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if c.RoundingDigits < -1 {
		return errors.New("rounding digits must be -1 (disabled) or non-negative")
	}
	return nil
}

// Previous carries rates from an earlier computation of the same ledger. They only seed
// the solver; results never depend on them beyond convergence speed.
type Previous struct {
	Rates   []float64 // per row, NaN on non-event rows
	Average *float64
}

// Result is everything derived from one ledger.
type Result struct {
	Positions []Position
	Matrix    LotMatrix
	Flows     []EventFlows
	// Rates holds the per-event annualized rate by row; NaN on non-event rows.
	Rates   []float64
	Average model.RateResult
}

// Held returns the position after the last row.
func (r *Result) Held() Position {
	if r == nil || len(r.Positions) == 0 {
		return Position{HoldingPrice: math.NaN()}
	}
	return r.Positions[len(r.Positions)-1]
}

// Previous returns the rates of this result as seeds for the next computation.
func (r *Result) Previous() *Previous {
	if r == nil {
		return nil
	}
	return &Previous{Rates: append([]float64(nil), r.Rates...), Average: r.Average.Seed()}
}

// Compute runs the whole pipeline on a validated ledger: Track, MatchLots, then a rate
// per event and the average rate.
//
// Validation and business rule errors return a nil Result. A ConvergenceError returns
// the partial Result alongside the error: Positions, Matrix and Flows stay valid, rates
// that could not be solved are NaN and every other rate is still solved. The error lists
// the rate cell of every failing event.
func Compute(l model.Ledger, cfg Config, prev *Previous) (*Result, error) {
	positions, err := Track(l.Rows, cfg.RoundingDigits)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Positions: positions,
		Matrix:    MatchLots(l.Rows),
		Rates:     make([]float64, len(l.Rows)),
		Average:   model.Undefined(l.AssetID),
	}
	for i := range res.Rates {
		res.Rates[i] = math.NaN()
	}
	res.Flows = BuildFlows(l.Rows, res.Matrix)
	for i := range res.Flows {
		res.Flows[i].AssetID = l.AssetID
	}

	// Each rate is its own request: a failure leaves that rate NaN and the rest are still solved.
	var failed *apperrors.LedgerError
	fail := func(err error, locations ...apperrors.Rect) error {
		le, ok := apperrors.AsLedgerError(err)
		if !ok {
			return err
		}
		if failed == nil {
			failed = le
		} else if len(locations) > 0 {
			failed.Message = "some rates of return were not found"
		}
		failed.Locations = append(failed.Locations, locations...)
		return nil
	}

	for _, f := range res.Flows {
		seed := 0.0
		if prev != nil && f.Event < len(prev.Rates) && !math.IsNaN(prev.Rates[f.Event]) {
			seed = prev.Rates[f.Event]
		}
		sol, err := cfg.Solver.EventRate(f, seed)
		if err != nil {
			if err := fail(err, apperrors.Cell(model.ColRate, f.Event)); err != nil {
				return res, err
			}
			continue
		}
		res.Rates[f.Event] = sol.Rate
	}

	var seed *float64
	if prev != nil {
		seed = prev.Average
	}
	sol, err := cfg.Solver.AverageRate(res.Flows, seed)
	if err != nil {
		if err := fail(err); err != nil {
			return res, err
		}
	} else {
		res.Average = model.RateResult{
			Key:        l.AssetID,
			Rate:       sol.Rate,
			Valid:      !math.IsNaN(sol.Rate),
			Iterations: sol.Iterations,
		}
	}

	if failed != nil {
		return res, failed
	}
	return res, nil
}

// MarkToMarket extends the ledger with a synthetic sale of every held share at date for
// holdingAmount, turning unrealized value into a terminal cash flow. The ledger is
// returned unchanged (as a copy) when nothing is held.
func MarkToMarket(l model.Ledger, held Position, date time.Time, holdingAmount float64) model.Ledger {
	out := l.Clone()
	if held.HoldingShare <= 0 {
		return out
	}
	out.Rows = append(out.Rows, model.Sell(date, holdingAmount, held.HoldingShare))
	return out
}
