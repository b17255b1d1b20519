package ledger

import (
	"math"
	"time"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// LotFlow is the cost of a lot matched to an event, dated at the buy.
type LotFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// EventFlows holds the cash flows of one sell or cash dividend: what it returned and
// the lot costs it realized.
type EventFlows struct {
	AssetID  string    `json:"assetId,omitempty"`
	Event    int       `json:"event"`
	Date     time.Time `json:"date"`
	Proceeds float64   `json:"proceeds"`
	Lots     []LotFlow `json:"lots"`
}

// Cost is the matched lot cost of the event.
func (e EventFlows) Cost() float64 {
	var sum float64
	for _, l := range e.Lots {
		sum += l.Amount
	}
	return sum
}

// Residual is proceeds minus every matched lot cost grown at rate up to the event date.
func (e EventFlows) Residual(rate float64) float64 {
	res := e.Proceeds
	for _, l := range e.Lots {
		res -= l.Amount * Growth(rate, Days(l.Date, e.Date))
	}
	return res
}

// Residual sums the residuals of all events at one candidate rate.
func Residual(flows []EventFlows, rate float64) float64 {
	var res float64
	for _, f := range flows {
		res += f.Residual(rate)
	}
	return res
}

// Days counts whole calendar days from a to b.
func Days(a, b time.Time) float64 {
	return math.Round(b.Sub(a).Hours() / 24)
}

// BuildFlows collects the cash flows of every sell and cash dividend in rows.
// Events with no matched lot carry no cost to grow and are left out.
func BuildFlows(rows []model.Transaction, m LotMatrix) []EventFlows {
	var flows []EventFlows
	for i, row := range rows {
		if !row.Kind.IsEvent() {
			continue
		}
		cells := m.Column(i)
		if len(cells) == 0 {
			continue
		}
		f := EventFlows{Event: i, Date: row.Date, Proceeds: row.Amount, Lots: make([]LotFlow, len(cells))}
		for j, c := range cells {
			f.Lots[j] = LotFlow{Date: rows[c.Lot].Date, Amount: c.Amount}
		}
		flows = append(flows, f)
	}
	return flows
}

// EventRate solves the annualized rate of a single event.
//
// An event matched to exactly one lot held for at least a day has the closed form
// sign(ratio)*|ratio|^(365/days) - 1 with ratio = proceeds/cost, which is used directly.
// Everything else goes through the secant loop from seed.
func (s Solver) EventRate(f EventFlows, seed float64) (Solution, error) {
	if len(f.Lots) == 1 {
		if days := Days(f.Lots[0].Date, f.Date); days > 0 && f.Lots[0].Amount != 0 {
			ratio := f.Proceeds / f.Lots[0].Amount
			sign := 1.0
			if ratio < 0 {
				sign = -1
			}
			return Solution{Rate: sign*math.Pow(math.Abs(ratio), 365/days) - 1}, nil
		}
	}
	return s.Solve(f.Residual, seed)
}

// AverageRate solves the single rate that explains all events jointly.
//
// No events give an undefined rate (NaN) without error. A single event gives that
// event's own rate. Otherwise the summed residual is solved from seed, or from zero when
// no previous rate is known.
func (s Solver) AverageRate(flows []EventFlows, seed *float64) (Solution, error) {
	start := 0.0
	if seed != nil && !math.IsNaN(*seed) && !math.IsInf(*seed, 0) {
		start = *seed
	}
	switch len(flows) {
	case 0:
		return Solution{Rate: math.NaN()}, nil
	case 1:
		return s.EventRate(flows[0], start)
	}
	return s.Solve(func(rate float64) float64 { return Residual(flows, rate) }, start)
}
