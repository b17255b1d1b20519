// Package valuation lines a computed ledger up with the market valuation series of its
// asset, and derives the per-asset summary from the result.
package valuation

import (
	"sort"
	"time"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// FillGaps returns the series sorted ascending with every missing calendar day between
// the first and last date filled with the previous day's values. Duplicate dates keep
// the last occurrence.
func FillGaps(nav []model.NAVPoint) []model.NAVPoint {
	if len(nav) == 0 {
		return nil
	}
	sorted := append([]model.NAVPoint(nil), nav...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make([]model.NAVPoint, 0, int(ledger.Days(sorted[0].Date, sorted[len(sorted)-1].Date))+1)
	for _, p := range sorted {
		p.Date = truncate(p.Date)
		if n := len(out); n > 0 {
			last := out[n-1]
			if p.Date.Equal(last.Date) {
				out[n-1] = p
				continue
			}
			for d := last.Date.AddDate(0, 0, 1); d.Before(p.Date); d = d.AddDate(0, 0, 1) {
				fill := last
				fill.Date = d
				out = append(out, fill)
			}
		}
		out = append(out, p)
	}
	return out
}

// Align evaluates the ledger against the valuation series: for every date of the
// gap-filled series it records what was held, at what cost, and what it was worth.
// Points are returned newest first.
//
// Every ledger date must exist in the filled series; otherwise a BusinessRuleError with
// ErrTransactionDateMissing is returned located at each offending date cell.
//
// AdjustedPrice is the holding price of the latest buy plus the gap between the net value
// factor and the unit value on that buy date. It stays unset after the holding was sold
// out until the next buy.
func Align(l model.Ledger, positions []ledger.Position, nav []model.NAVPoint) ([]model.ValuationPoint, error) {
	series := FillGaps(nav)
	index := make(map[time.Time]int, len(series))
	for i, p := range series {
		index[p.Date] = i
	}

	var missing []apperrors.Rect
	for i, row := range l.Rows {
		if _, ok := index[truncate(row.Date)]; !ok {
			missing = append(missing, apperrors.Cell(model.ColDate, i))
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewLedgerError(apperrors.ErrBusinessRule, apperrors.ErrTransactionDateMissing, missing...)
	}

	points := make([]model.ValuationPoint, len(series))
	row := -1
	var adjusted *float64
	for i, p := range series {
		vp := model.ValuationPoint{Date: p.Date, UnitValue: p.UnitValue, NetValue: p.NetValue}

		var amount, share float64
		traded := false
		for row+1 < len(l.Rows) && truncate(l.Rows[row+1].Date).Equal(p.Date) {
			row++
			t := l.Rows[row]
			switch t.Kind {
			case model.KindBuy:
				amount += t.Amount
				share += t.Share
				traded = true
			case model.KindSell:
				amount -= t.Amount
				share -= t.Share
				traded = true
			}
		}

		if row >= 0 {
			pos := positions[row]
			vp.HoldingShare = pos.HoldingShare
			if pos.HoldingShare > 0 {
				vp.HoldingPrice = pos.HoldingPrice
			}
			vp.HoldingAmount = p.UnitValue * pos.HoldingShare

			if traded && share > 0 {
				v := pos.HoldingPrice + p.NetValue - p.UnitValue
				adjusted = &v
			} else if pos.HoldingShare == 0 {
				adjusted = nil
			}
			if adjusted != nil {
				v := *adjusted
				vp.AdjustedPrice = &v
			}
		}
		if traded {
			vp.TransactionAmount = &amount
			vp.TransactionShare = &share
		}
		points[len(series)-1-i] = vp
	}
	return points, nil
}

func truncate(d time.Time) time.Time {
	y, m, dd := d.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}
