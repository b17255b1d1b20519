package ledger

import (
	"fmt"
	"math"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
)

// Default solver options.
const (
	DefaultMaxIterations  = 4096
	DefaultStepSize       = 0.1
	DefaultTolerance      = 1e-10
	DefaultRoundingDigits = 2
)

// Solver finds the rate at which a residual function of the rate becomes zero,
// using the secant method.
type Solver struct {
	MaxIterations int
	// StepSize is the fixed rate step taken when the secant is degenerate.
	StepSize float64
	// Tolerance is the largest absolute residual accepted as a root.
	Tolerance float64
}

// Solution is a converged rate and the number of residual evaluations it took.
// Iterations is zero for closed-form solutions.
type Solution struct {
	Rate       float64
	Iterations int
}

// DefaultSolver returns a Solver with the default options.
func DefaultSolver() Solver {
	return Solver{
		MaxIterations: DefaultMaxIterations,
		StepSize:      DefaultStepSize,
		Tolerance:     DefaultTolerance,
	}
}

// Validate rejects options the secant loop cannot work with.
func (s Solver) Validate() error {
	if s.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", s.MaxIterations)
	}
	if !(s.StepSize > 0 && s.StepSize < 1) {
		return fmt.Errorf("step size must be in the range of (0,1), got %g", s.StepSize)
	}
	if !(s.Tolerance > 0) || math.IsInf(s.Tolerance, 0) {
		return fmt.Errorf("tolerance must be positive, got %g", s.Tolerance)
	}
	return nil
}

// Growth is the value factor of one unit invested at rate for days days:
// sign(1+rate)*|1+rate|^(days/365). Rates below -100% give a negative factor instead
// of a complex one.
func Growth(rate, days float64) float64 {
	sign := 1.0
	if rate < -1 {
		sign = -1
	}
	return sign * math.Pow(math.Abs(1+rate), days/365)
}

// Solve runs the secant loop from seed until |residual(rate)| < Tolerance.
//
// Each step uses rate' = r/(rPrev-r)*(rate-ratePrev) + rate. When the residual or the
// rate did not move since the previous step the secant is undefined and the rate is
// advanced by StepSize instead. The previous point starts at (0, 0).
//
// Returns a ConvergenceError when MaxIterations evaluations pass without a root,
// or as soon as the residual is NaN.
func (s Solver) Solve(residual func(rate float64) float64, seed float64) (Solution, error) {
	rate := seed
	var ratePrev, resPrev float64

	for i := 1; i <= s.MaxIterations; i++ {
		res := residual(rate)
		if math.IsNaN(res) {
			return Solution{Rate: rate, Iterations: i}, convergenceError(fmt.Sprintf("residual is NaN at rate %g", rate))
		}
		if math.Abs(res) < s.Tolerance {
			return Solution{Rate: rate, Iterations: i}, nil
		}

		var next float64
		if res == resPrev || rate == ratePrev {
			next = rate + s.StepSize
		} else {
			next = res/(resPrev-res)*(rate-ratePrev) + rate
		}
		ratePrev, resPrev, rate = rate, res, next
	}
	return Solution{Rate: rate, Iterations: s.MaxIterations},
		convergenceError(fmt.Sprintf("no rate of return found in %d rounds", s.MaxIterations))
}

func convergenceError(msg string) *apperrors.LedgerError {
	err := apperrors.NewLedgerError(apperrors.ErrConvergence, nil)
	err.Message = msg
	return err
}
