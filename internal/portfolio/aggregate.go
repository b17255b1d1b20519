// Package portfolio combines the computed ledgers of many assets into a dated portfolio
// series with year and quarter rates, recomputing only what changed since the previous
// snapshot.
package portfolio

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// AssetInput is one asset's contribution to the aggregate.
type AssetInput struct {
	Asset  model.Asset
	Ledger model.Ledger
	// Result is the computed ledger; nil for an asset without transactions.
	Result *ledger.Result
	// Valuation is the aligned valuation, newest first.
	Valuation []model.ValuationPoint
	// Digest is AssetDigest of the above. Computed when empty.
	Digest string
}

// Input selects what to aggregate. An empty Class selects every asset.
type Input struct {
	Class  string
	Window Window
	Assets []AssetInput
}

// Options tunes the aggregator.
type Options struct {
	Solver         ledger.Solver
	QuarterLagDays int
	YearLagDays    int
	Now            func() time.Time
}

// DefaultOptions returns the default aggregator options.
func DefaultOptions() Options {
	return Options{
		Solver:         ledger.DefaultSolver(),
		QuarterLagDays: DefaultQuarterLagDays,
		YearLagDays:    DefaultYearLagDays,
		Now:            time.Now,
	}
}

// Output is the result of one aggregation.
type Output struct {
	Snapshot *model.PortfolioSnapshot
	// Skipped is set when the watermark matched and the previous snapshot was reused.
	Skipped bool
	// ChangedFrom is the earliest recomputed date; zero when nothing was recomputed.
	ChangedFrom time.Time
	// Recomputed counts the dates whose rate was solved again.
	Recomputed int
	// Failures counts dates and buckets whose rate did not converge. Their rate is NaN.
	Failures      int
	DirtyYears    []int
	DirtyQuarters []model.QuarterKey
}

type asset struct {
	in     AssetInput
	points []model.ValuationPoint // oldest first
	cursor int                    // next point to apply
	row    int                    // next ledger row to hash
	flow   int                    // next flow to realize
	held   model.ValuationPoint   // latest applied point
}

type holding struct {
	asset  int
	share  float64
	amount float64
}

type day struct {
	date    time.Time
	point   model.SnapshotPoint
	history int // flows realized up to and including this date
	held    []holding
	emit    bool
}

// Aggregate builds the portfolio snapshot of the selected assets.
//
// For every date of the union of the assets' valuation dates it sums holding and invest
// amounts, accumulates realized profit (proceeds minus matched cost) of every event up to
// that date, and solves the average rate of all those events together with a
// mark-to-market sale of whatever is still held on that date.
//
// prev is the snapshot from the previous run, or nil. When the watermark (XOR of the asset
// digests) matches prev, prev is returned as is. Otherwise only dates from the newest
// back to the last date whose chained digest still matches prev are solved again; older
// rates are copied. Year and quarter buckets touched by those dates are solved again from
// the events inside them plus a mark-to-market at the bucket end, seeded with their
// stored rate.
//
// Aggregate does not modify prev or its inputs.
func Aggregate(in Input, prev *model.PortfolioSnapshot, opts Options) (Output, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	assets := selectAssets(in)
	digests := make(map[string]string, len(assets))
	parts := make([]string, 0, len(assets)+1)
	for _, a := range assets {
		d := a.in.Digest
		if d == "" {
			d = AssetDigest(a.in.Asset, a.in.Ledger, a.in.Valuation)
		}
		digests[a.in.Asset.ID] = d
		parts = append(parts, d)
	}
	if w := windowDigest(in.Window); w != "" {
		parts = append(parts, w)
	}
	watermark := Watermark(parts...)

	if prev != nil && prev.Digest == watermark {
		return Output{Snapshot: prev.Clone(), Skipped: true}, nil
	}

	days, history := walk(assets, in.Window)

	snap := &model.PortfolioSnapshot{
		Class:        in.Class,
		Digest:       watermark,
		AssetDigests: digests,
		Years:        map[int]model.RateResult{},
		Quarters:     map[model.QuarterKey]model.RateResult{},
		CalculatedAt: opts.Now().UTC(),
	}
	out := Output{Snapshot: snap}

	emitted := make([]*day, 0, len(days))
	for i := range days {
		if days[i].emit {
			emitted = append(emitted, &days[i])
		}
	}
	if len(emitted) == 0 {
		return out, nil
	}

	previous := map[int64]model.SnapshotPoint{}
	if prev != nil {
		for _, p := range prev.Points {
			previous[dayOf(p.Date).Unix()] = p
		}
	}
	prevRate := func(d time.Time) float64 {
		if p, ok := previous[d.Unix()]; ok {
			return p.Rate
		}
		return math.NaN()
	}

	// Walk back from the newest date while the chained digest differs.
	first := len(emitted)
	for first > 0 {
		p, ok := previous[emitted[first-1].date.Unix()]
		if ok && p.Digest == emitted[first-1].point.Digest {
			break
		}
		first--
	}

	seed := math.NaN()
	for i, d := range emitted {
		if i < first {
			d.point.Rate = prevRate(d.date)
			seed = d.point.Rate
			continue
		}
		s := seed
		if math.IsNaN(s) {
			s = prevRate(d.date)
		}
		rate, err := solve(opts.Solver, assets, history[:d.history], d.held, d.date, s)
		if err != nil {
			out.Failures++
		}
		d.point.Rate = rate
		if !math.IsNaN(rate) {
			seed = rate
		}
		out.Recomputed++
	}
	if first < len(emitted) {
		out.ChangedFrom = emitted[first].date
	}

	last := emitted[len(emitted)-1].date
	dirty := newDirtyBuckets()
	if prev == nil {
		dirty.markFrom(emitted[0].date, last)
	} else if first < len(emitted) {
		dirty.markFrom(out.ChangedFrom, last)
		for _, f := range history {
			if !dayOf(f.Date).Before(out.ChangedFrom) && in.Window.Contains(dayOf(f.Date)) {
				dirty.markEvent(dayOf(f.Date), opts.QuarterLagDays, opts.YearLagDays)
			}
		}
	}

	for y := emitted[0].date.Year(); y <= last.Year(); y++ {
		key := BucketKey(in.Class, "year", strconv.Itoa(y))
		old, ok := yearRate(prev, y)
		if ok && !dirty.years[y] {
			snap.Years[y] = old
			continue
		}
		start, end := clamp(yearStart(y), yearEnd(y), emitted[0].date, last)
		r, err := solveBucket(opts.Solver, assets, history, days, start, end, key, old.Seed())
		if err != nil {
			out.Failures++
		}
		snap.Years[y] = r
		out.DirtyYears = append(out.DirtyYears, y)
	}

	for q := model.QuarterOf(emitted[0].date); !q.Start().After(last); q = next(q) {
		key := BucketKey(in.Class, "quarter", q.String())
		old, ok := quarterRate(prev, q)
		if ok && !dirty.quarters[q] {
			snap.Quarters[q] = old
			continue
		}
		start, end := clamp(q.Start(), q.End(), emitted[0].date, last)
		r, err := solveBucket(opts.Solver, assets, history, days, start, end, key, old.Seed())
		if err != nil {
			out.Failures++
		}
		snap.Quarters[q] = r
		out.DirtyQuarters = append(out.DirtyQuarters, q)
	}

	snap.Points = make([]model.SnapshotPoint, len(emitted))
	for i, d := range emitted {
		snap.Points[len(emitted)-1-i] = d.point
	}
	return out, nil
}

func selectAssets(in Input) []*asset {
	var out []*asset
	for _, a := range in.Assets {
		if in.Class != "" && a.Asset.Class != in.Class {
			continue
		}
		pts := make([]model.ValuationPoint, len(a.Valuation))
		for i, p := range a.Valuation {
			p.Date = dayOf(p.Date)
			pts[len(a.Valuation)-1-i] = p
		}
		out = append(out, &asset{in: a, points: pts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].in.Asset.ID < out[j].in.Asset.ID })
	return out
}

// walk visits the union of valuation dates oldest first and builds the per-date sums and
// chained digests. It returns the days and every realized event flow in date order.
func walk(assets []*asset, w Window) ([]day, []ledger.EventFlows) {
	dateSet := map[time.Time]bool{}
	for _, a := range assets {
		for _, p := range a.points {
			dateSet[p.Date] = true
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var history []ledger.EventFlows
	var realized float64
	days := make([]day, len(dates))
	chain := ""

	for i, date := range dates {
		h := sha256.New()
		writeString(h, chain)
		writeTime(h, date)

		var invest, holdingAmount float64
		var held []holding
		for ai, a := range assets {
			for a.cursor < len(a.points) && !a.points[a.cursor].Date.After(date) {
				a.held = a.points[a.cursor]
				a.cursor++
			}
			holdingAmount += a.held.HoldingAmount
			invest += a.held.InvestAmount()
			if a.held.HoldingShare > 0 {
				held = append(held, holding{asset: ai, share: a.held.HoldingShare, amount: a.held.HoldingAmount})
			}

			writeString(h, a.in.Asset.ID)
			writeFloat(h, a.held.HoldingShare)
			writeFloat(h, a.held.HoldingAmount)
			writeFloat(h, a.held.HoldingPrice)
			rows := a.in.Ledger.Rows
			for a.row < len(rows) && !dayOf(rows[a.row].Date).After(date) {
				t := rows[a.row]
				writeUint(h, uint64(t.Kind))
				writeFloat(h, t.Amount)
				writeFloat(h, t.Share)
				a.row++
			}
			if a.in.Result != nil {
				flows := a.in.Result.Flows
				for a.flow < len(flows) && !dayOf(flows[a.flow].Date).After(date) {
					f := flows[a.flow]
					realized += f.Proceeds - f.Cost()
					history = append(history, f)
					a.flow++
				}
			}
		}

		chain = hex.EncodeToString(h.Sum(nil))[:16]
		days[i] = day{
			date: date,
			point: model.SnapshotPoint{
				Date:              date,
				InvestAmount:      invest,
				HoldingAmount:     holdingAmount,
				AccumulatedProfit: realized + holdingAmount - invest,
				ProfitRate:        profitRate(holdingAmount, invest),
				Rate:              math.NaN(),
				Digest:            chain,
			},
			history: len(history),
			held:    held,
			emit:    w.Contains(date),
		}
	}
	return days, history
}

// profitRate is the unrealized gain of the holdings relative to what they cost, NaN when
// nothing is invested.
func profitRate(holding, invest float64) float64 {
	if invest == 0 {
		return math.NaN()
	}
	return holding/invest - 1
}

// solve finds the average rate of the realized flows plus a mark-to-market sale of every
// holding on date.
func solve(s ledger.Solver, assets []*asset, realized []ledger.EventFlows, held []holding, date time.Time, seed float64) (float64, error) {
	flows := append([]ledger.EventFlows(nil), realized...)
	for _, h := range held {
		if f, ok := markFlow(assets[h.asset].in, date, h.share, h.amount); ok {
			flows = append(flows, f)
		}
	}
	if flat(flows) {
		return math.NaN(), nil
	}
	var sp *float64
	if !math.IsNaN(seed) {
		sp = &seed
	}
	sol, err := s.AverageRate(flows, sp)
	if err != nil {
		return math.NaN(), err
	}
	return sol.Rate, nil
}

// solveBucket solves the rate of the events dated within [start, end] plus a
// mark-to-market of the holdings on the last valued date not after end.
func solveBucket(s ledger.Solver, assets []*asset, history []ledger.EventFlows, days []day, start, end time.Time, key string, seed *float64) (model.RateResult, error) {
	var flows []ledger.EventFlows
	for _, f := range history {
		d := dayOf(f.Date)
		if !d.Before(start) && !d.After(end) {
			flows = append(flows, f)
		}
	}

	i := sort.Search(len(days), func(i int) bool { return days[i].date.After(end) }) - 1
	if i >= 0 && !days[i].date.Before(start) {
		for _, h := range days[i].held {
			if f, ok := markFlow(assets[h.asset].in, days[i].date, h.share, h.amount); ok {
				flows = append(flows, f)
			}
		}
	}

	if flat(flows) {
		return model.Undefined(key), nil
	}
	sol, err := s.AverageRate(flows, seed)
	if err != nil {
		return model.Undefined(key), err
	}
	return model.RateResult{Key: key, Rate: sol.Rate, Valid: !math.IsNaN(sol.Rate), Iterations: sol.Iterations}, nil
}

// flat reports whether no lot in flows is held across a day. The residual of such flows
// does not depend on the rate, so there is no rate to solve.
func flat(flows []ledger.EventFlows) bool {
	for _, f := range flows {
		for _, l := range f.Lots {
			if ledger.Days(l.Date, f.Date) != 0 {
				return false
			}
		}
	}
	return true
}

// markFlow is the cash flow of selling every held share of the asset on date.
func markFlow(a AssetInput, date time.Time, share, amount float64) (ledger.EventFlows, bool) {
	marked := ledger.MarkToMarket(a.Ledger.Truncate(endOfDay(date)), ledger.Position{HoldingShare: share}, date, amount)
	last := len(marked.Rows) - 1
	if last < 0 {
		return ledger.EventFlows{}, false
	}
	flows := ledger.BuildFlows(marked.Rows, ledger.MatchLots(marked.Rows))
	if len(flows) == 0 || flows[len(flows)-1].Event != last {
		return ledger.EventFlows{}, false
	}
	f := flows[len(flows)-1]
	f.AssetID = a.Asset.ID
	return f, true
}

// BucketKey is the cache key of a year or quarter rate: class:<class>:<kind>:<id>, with
// class "all" for the unfiltered portfolio.
func BucketKey(class, kind, id string) string {
	if class == "" {
		class = "all"
	}
	return fmt.Sprintf("class:%s:%s:%s", class, kind, id)
}

func yearRate(s *model.PortfolioSnapshot, y int) (model.RateResult, bool) {
	if s == nil {
		return model.RateResult{}, false
	}
	r, ok := s.Years[y]
	return r, ok
}

func quarterRate(s *model.PortfolioSnapshot, q model.QuarterKey) (model.RateResult, bool) {
	if s == nil {
		return model.RateResult{}, false
	}
	r, ok := s.Quarters[q]
	return r, ok
}

func clamp(start, end, lo, hi time.Time) (time.Time, time.Time) {
	if start.Before(lo) {
		start = lo
	}
	if end.After(hi) {
		end = hi
	}
	return start, end
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return dayOf(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
