package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Asset classes accepted by the portfolio aggregator. An empty class filter selects all of them.
const (
	ClassFund  = "fund"
	ClassStock = "stock"
	ClassBond  = "bond"
	ClassCash  = "cash"
	ClassOther = "other"
)

// AssetClasses contains the allowed asset class values.
var AssetClasses = map[string]bool{
	ClassFund: true, ClassStock: true, ClassBond: true, ClassCash: true, ClassOther: true,
}

// Asset is a tracked investment. Code is the external identifier (fund code, ticker),
// unique within its class.
type Asset struct {
	ID        string    `json:"id"`
	Class     string    `json:"class"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// RateResult is a solved annualized rate. Valid is false when the rate is undefined
// (no sell or dividend events), in which case Rate is NaN.
type RateResult struct {
	Key        string  `json:"key"`
	Rate       float64 `json:"rate"`
	Valid      bool    `json:"valid"`
	Iterations int     `json:"iterations"`
}

// Undefined returns the RateResult used when there is nothing to solve.
func Undefined(key string) RateResult {
	return RateResult{Key: key, Rate: math.NaN()}
}

// Seed returns the stored rate as a solver seed, or nil when it is undefined.
func (r RateResult) Seed() *float64 {
	if !r.Valid || math.IsNaN(r.Rate) || math.IsInf(r.Rate, 0) {
		return nil
	}
	v := r.Rate
	return &v
}

// rateJSON is the wire form of a rate; undefined rates travel as null.
type rateJSON struct {
	Key        string   `json:"key"`
	Rate       *float64 `json:"rate"`
	Valid      bool     `json:"valid"`
	Iterations int      `json:"iterations"`
}

// MarshalJSON encodes an undefined rate as null.
func (r RateResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(rateJSON{Key: r.Key, Rate: Finite(r.Rate), Valid: r.Valid, Iterations: r.Iterations})
}

// UnmarshalJSON decodes a null rate as NaN.
func (r *RateResult) UnmarshalJSON(b []byte) error {
	var w rateJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = RateResult{Key: w.Key, Rate: orNaN(w.Rate), Valid: w.Valid, Iterations: w.Iterations}
	return nil
}

// Finite returns a pointer to v, or nil when v is NaN or infinite.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// QuarterKey identifies a calendar quarter.
type QuarterKey struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"` // 1..4
}

func (q QuarterKey) String() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Quarter)
}

// MarshalText encodes the key as "2024Q3" so it can key a JSON object.
func (q QuarterKey) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText parses the "2024Q3" form.
func (q *QuarterKey) UnmarshalText(b []byte) error {
	year, quarter, ok := strings.Cut(string(b), "Q")
	if !ok {
		return fmt.Errorf("invalid quarter key %q", b)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return fmt.Errorf("invalid quarter key %q: %w", b, err)
	}
	n, err := strconv.Atoi(quarter)
	if err != nil || n < 1 || n > 4 {
		return fmt.Errorf("invalid quarter key %q", b)
	}
	*q = QuarterKey{Year: y, Quarter: n}
	return nil
}

// Start returns the first day of the quarter.
func (q QuarterKey) Start() time.Time {
	return time.Date(q.Year, time.Month(3*(q.Quarter-1)+1), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the quarter.
func (q QuarterKey) End() time.Time {
	return q.Start().AddDate(0, 3, -1)
}

// Prev returns the preceding quarter.
func (q QuarterKey) Prev() QuarterKey {
	if q.Quarter == 1 {
		return QuarterKey{Year: q.Year - 1, Quarter: 4}
	}
	return QuarterKey{Year: q.Year, Quarter: q.Quarter - 1}
}

// QuarterOf returns the calendar quarter containing d.
func QuarterOf(d time.Time) QuarterKey {
	return QuarterKey{Year: d.Year(), Quarter: (int(d.Month())-1)/3 + 1}
}

// SnapshotPoint is the aggregate of the selected assets on one date. ProfitRate is
// HoldingAmount/InvestAmount - 1 and NaN when nothing is invested. Rate is NaN while
// there is nothing to value. Digest chains the inputs of this date onto the digest of the
// previous date, so equal digests mean equal history up to here.
type SnapshotPoint struct {
	Date              time.Time
	InvestAmount      float64
	HoldingAmount     float64
	AccumulatedProfit float64
	ProfitRate        float64
	Rate              float64
	Digest            string
}

type snapshotPointJSON struct {
	Date              time.Time `json:"date"`
	InvestAmount      float64   `json:"investAmount"`
	HoldingAmount     float64   `json:"holdingAmount"`
	AccumulatedProfit float64   `json:"accumulatedProfit"`
	ProfitRate        *float64  `json:"profitRate"`
	Rate              *float64  `json:"rate"`
	Digest            string    `json:"digest,omitempty"`
}

func (p SnapshotPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotPointJSON{
		Date:              p.Date,
		InvestAmount:      p.InvestAmount,
		HoldingAmount:     p.HoldingAmount,
		AccumulatedProfit: p.AccumulatedProfit,
		ProfitRate:        Finite(p.ProfitRate),
		Rate:              Finite(p.Rate),
		Digest:            p.Digest,
	})
}

func (p *SnapshotPoint) UnmarshalJSON(b []byte) error {
	var w snapshotPointJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = SnapshotPoint{
		Date:              w.Date,
		InvestAmount:      w.InvestAmount,
		HoldingAmount:     w.HoldingAmount,
		AccumulatedProfit: w.AccumulatedProfit,
		ProfitRate:        orNaN(w.ProfitRate),
		Rate:              orNaN(w.Rate),
		Digest:            w.Digest,
	}
	return nil
}

// PortfolioSnapshot is the materialized aggregate for one asset class filter.
// Points are ordered by date descending. Digest is the XOR watermark of the per-asset
// digests the snapshot was computed from.
type PortfolioSnapshot struct {
	Class        string                    `json:"class"`
	Digest       string                    `json:"digest"`
	AssetDigests map[string]string         `json:"assetDigests"`
	Points       []SnapshotPoint           `json:"points"`
	Years        map[int]RateResult        `json:"years"`
	Quarters     map[QuarterKey]RateResult `json:"quarters"`
	CalculatedAt time.Time                 `json:"calculatedAt"`
}

// Clone returns a deep copy so a published snapshot is never mutated by a later refresh.
func (s *PortfolioSnapshot) Clone() *PortfolioSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Points = append([]SnapshotPoint(nil), s.Points...)
	c.AssetDigests = make(map[string]string, len(s.AssetDigests))
	for k, v := range s.AssetDigests {
		c.AssetDigests[k] = v
	}
	c.Years = make(map[int]RateResult, len(s.Years))
	for k, v := range s.Years {
		c.Years[k] = v
	}
	c.Quarters = make(map[QuarterKey]RateResult, len(s.Quarters))
	for k, v := range s.Quarters {
		c.Quarters[k] = v
	}
	return &c
}

// AssetSummary is the per-asset overview row: what is invested, what it is worth, and how
// it performed.
type AssetSummary struct {
	Asset
	InvestAmount      float64  `json:"investAmount"`
	HoldingAmount     float64  `json:"holdingAmount"`
	CurrentRate       *float64 `json:"currentRate,omitempty"`
	AccumulatedProfit float64  `json:"accumulatedProfit"`
	AverageRate       *float64 `json:"averageRate,omitempty"`
}

// AssetRateKey is the rate cache key of an asset's average rate.
func AssetRateKey(assetID string) string {
	return "asset:" + assetID
}

// EventRateKey is the rate cache key of the per-event rate of one ledger row.
func EventRateKey(assetID string, row int) string {
	return AssetRateKey(assetID) + ":event:" + strconv.Itoa(row)
}

// ClassRefresh reports what one refresh did for one class filter.
type ClassRefresh struct {
	Class         string       `json:"class"`
	Skipped       bool         `json:"skipped"`
	Recomputed    int          `json:"recomputed"`
	ChangedFrom   *time.Time   `json:"changedFrom,omitempty"`
	Failures      int          `json:"failures"`
	DirtyYears    []int        `json:"dirtyYears,omitempty"`
	DirtyQuarters []QuarterKey `json:"dirtyQuarters,omitempty"`
}

// RefreshReport summarizes a portfolio refresh.
type RefreshReport struct {
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Assets    int       `json:"assets"`
	// ChangedAssets lists the assets whose digest differs from the previous refresh.
	ChangedAssets []string       `json:"changedAssets,omitempty"`
	Classes       []ClassRefresh `json:"classes"`
}
