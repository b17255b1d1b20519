package valuation_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/valuation"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func nav(date string, unit, net float64) model.NAVPoint {
	return model.NAVPoint{Date: day(date), UnitValue: unit, NetValue: net}
}

func TestFillGaps(t *testing.T) {
	t.Run("fills missing days forward and sorts", func(t *testing.T) {
		got := valuation.FillGaps([]model.NAVPoint{
			nav("2024-01-04", 1.3, 1.4),
			nav("2024-01-01", 1.0, 1.1),
		})

		require.Len(t, got, 4)
		assert.Equal(t, day("2024-01-01"), got[0].Date)
		assert.Equal(t, nav("2024-01-02", 1.0, 1.1), got[1])
		assert.Equal(t, nav("2024-01-03", 1.0, 1.1), got[2])
		assert.Equal(t, nav("2024-01-04", 1.3, 1.4), got[3])
	})

	t.Run("empty series stays empty", func(t *testing.T) {
		assert.Empty(t, valuation.FillGaps(nil))
	})
}

// TestAlign tests alignment of a ledger to its valuation series.
//
// WHY: The aggregator only sees aligned points. Holdings must change exactly on ledger
// dates, and a ledger date the series does not cover must be rejected instead of being
// silently valued at the wrong price.
func TestAlign(t *testing.T) {
	l := model.Ledger{Rows: []model.Transaction{
		model.Buy(day("2024-01-02"), 100, 100),
		model.Sell(day("2024-01-04"), 60, 50),
	}}
	positions, err := ledger.Track(l.Rows, 2)
	require.NoError(t, err)

	t.Run("holdings follow the ledger newest first", func(t *testing.T) {
		series := []model.NAVPoint{
			nav("2024-01-01", 1.0, 1.0),
			nav("2024-01-02", 1.0, 1.05),
			nav("2024-01-03", 1.1, 1.15),
			nav("2024-01-05", 1.3, 1.35),
		}

		points, err := valuation.Align(l, positions, series)
		require.NoError(t, err)
		require.Len(t, points, 5)

		assert.Equal(t, day("2024-01-05"), points[0].Date)
		assert.Equal(t, 50.0, points[0].HoldingShare)
		assert.InDelta(t, 65.0, points[0].HoldingAmount, 1e-9)
		assert.InDelta(t, 50.0, points[0].InvestAmount(), 1e-9)
		assert.Nil(t, points[0].TransactionAmount)

		sell := points[1]
		assert.Equal(t, day("2024-01-04"), sell.Date)
		require.NotNil(t, sell.TransactionAmount)
		assert.Equal(t, -60.0, *sell.TransactionAmount)
		assert.Equal(t, -50.0, *sell.TransactionShare)
		assert.InDelta(t, 1.1*50, sell.HoldingAmount, 1e-9, "gap day valued at the previous unit value")

		buy := points[3]
		assert.Equal(t, day("2024-01-02"), buy.Date)
		assert.Equal(t, 100.0, *buy.TransactionAmount)
		require.NotNil(t, buy.AdjustedPrice)
		assert.InDelta(t, 1.05, *buy.AdjustedPrice, 1e-12)
		require.NotNil(t, points[0].AdjustedPrice)
		assert.InDelta(t, 1.05, *points[0].AdjustedPrice, 1e-12)

		before := points[4]
		assert.Zero(t, before.HoldingShare)
		assert.Zero(t, before.HoldingAmount)
		assert.Nil(t, before.AdjustedPrice)
	})

	t.Run("ledger dates outside the series are rejected", func(t *testing.T) {
		series := []model.NAVPoint{nav("2024-01-03", 1.0, 1.0), nav("2024-01-05", 1.0, 1.0)}

		_, err := valuation.Align(l, positions, series)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrTransactionDateMissing))

		le, ok := apperrors.AsLedgerError(err)
		require.True(t, ok)
		assert.Equal(t, []apperrors.Rect{apperrors.Cell(model.ColDate, 0)}, le.Locations)
	})
}

func TestSummarize(t *testing.T) {
	cfg := ledger.DefaultConfig()
	asset := model.Asset{ID: "a1", Class: model.ClassFund, Code: "000001"}

	t.Run("open holding is marked to market at the latest date", func(t *testing.T) {
		l := model.Ledger{Rows: []model.Transaction{model.Buy(day("2023-01-01"), 1000, 100)}}
		res, err := ledger.Compute(l, cfg, nil)
		require.NoError(t, err)
		points, err := valuation.Align(l, res.Positions, []model.NAVPoint{
			nav("2023-01-01", 10, 10),
			nav("2024-01-01", 11, 11),
		})
		require.NoError(t, err)

		s, err := valuation.Summarize(asset, l, res, points, cfg)
		require.NoError(t, err)

		assert.InDelta(t, 1000.0, s.InvestAmount, 1e-9)
		assert.InDelta(t, 1100.0, s.HoldingAmount, 1e-9)
		assert.InDelta(t, 100.0, s.AccumulatedProfit, 1e-9)
		require.NotNil(t, s.CurrentRate)
		assert.InDelta(t, 0.1, *s.CurrentRate, 1e-9)
		require.NotNil(t, s.AverageRate)
		assert.InDelta(t, 0.1, *s.AverageRate, 1e-9)
	})

	t.Run("closed holding has no current rate", func(t *testing.T) {
		l := model.Ledger{Rows: []model.Transaction{
			model.Buy(day("2023-01-01"), 1000, 100),
			model.Sell(day("2024-01-01"), 1200, 100),
		}}
		res, err := ledger.Compute(l, cfg, nil)
		require.NoError(t, err)
		points, err := valuation.Align(l, res.Positions, []model.NAVPoint{
			nav("2023-01-01", 10, 10),
			nav("2024-01-01", 12, 12),
		})
		require.NoError(t, err)

		s, err := valuation.Summarize(asset, l, res, points, cfg)
		require.NoError(t, err)

		assert.Nil(t, s.CurrentRate)
		assert.Zero(t, s.HoldingAmount)
		assert.InDelta(t, 200.0, s.AccumulatedProfit, 1e-9)
		require.NotNil(t, s.AverageRate)
		assert.InDelta(t, 0.2, *s.AverageRate, 1e-12)
	})

	t.Run("cash dividends count towards accumulated profit", func(t *testing.T) {
		l := model.Ledger{Rows: []model.Transaction{
			model.Buy(day("2023-01-01"), 1000, 100),
			model.CashDividend(day("2023-07-01"), 50, 5),
		}}
		res, err := ledger.Compute(l, cfg, nil)
		require.NoError(t, err)
		points, err := valuation.Align(l, res.Positions, []model.NAVPoint{
			nav("2023-01-01", 10, 10),
			nav("2024-01-01", 11, 11),
		})
		require.NoError(t, err)

		s, err := valuation.Summarize(asset, l, res, points, cfg)
		require.NoError(t, err)

		assert.InDelta(t, 1100.0, s.HoldingAmount, 1e-9)
		assert.InDelta(t, 1100.0+50-1000, s.AccumulatedProfit, 1e-9)
	})

	t.Run("summaries sort by holding amount descending", func(t *testing.T) {
		s := []model.AssetSummary{
			{Asset: model.Asset{Code: "a"}, HoldingAmount: 10},
			{Asset: model.Asset{Code: "b"}, HoldingAmount: 30},
			{Asset: model.Asset{Code: "c"}, HoldingAmount: 10},
		}

		valuation.SortSummaries(s)

		assert.Equal(t, []string{"b", "c", "a"}, []string{s[0].Code, s[1].Code, s[2].Code})
	})
}
