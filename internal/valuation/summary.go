package valuation

import (
	"math"
	"sort"

	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// Summarize builds the overview row of an asset from its ledger, computed result and
// aligned valuation (newest first).
//
// The current rate is the rate of a synthetic sale of the whole holding at the latest
// valuation date, and the average rate includes that sale. When nothing is held both come
// from the ledger alone. Accumulated profit is the holding amount plus everything sold or
// paid out minus everything bought.
//
// A ConvergenceError is returned together with the amounts, which stay valid.
func Summarize(asset model.Asset, l model.Ledger, res *ledger.Result, points []model.ValuationPoint, cfg ledger.Config) (model.AssetSummary, error) {
	s := model.AssetSummary{Asset: asset}
	if len(l.Rows) == 0 || len(points) == 0 || res == nil {
		return s, nil
	}

	latest := points[0]
	s.InvestAmount = latest.InvestAmount()
	s.HoldingAmount = latest.HoldingAmount
	s.AccumulatedProfit = latest.HoldingAmount
	for _, t := range l.Rows {
		switch t.Kind {
		case model.KindBuy:
			s.AccumulatedProfit -= t.Amount
		case model.KindSell, model.KindCashDividend:
			s.AccumulatedProfit += t.Amount
		}
	}

	held := res.Held()
	if held.HoldingShare <= 0 {
		s.AverageRate = model.Finite(res.Average.Rate)
		return s, nil
	}

	marked := ledger.MarkToMarket(l, held, latest.Date, latest.HoldingAmount)
	current, err := ledger.Compute(marked, cfg, res.Previous())
	if current == nil {
		return s, err
	}
	s.CurrentRate = model.Finite(current.Rates[len(current.Rates)-1])
	s.AverageRate = model.Finite(current.Average.Rate)
	return s, err
}

// SortSummaries orders summaries by holding amount, class and code, all descending.
func SortSummaries(s []model.AssetSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i], s[j]
		if a.HoldingAmount != b.HoldingAmount {
			return a.HoldingAmount > b.HoldingAmount || math.IsNaN(b.HoldingAmount)
		}
		if a.Class != b.Class {
			return a.Class > b.Class
		}
		return a.Code > b.Code
	})
}
