package validation

import (
	"math"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// LedgerOptions tunes ledger validation.
type LedgerOptions struct {
	// AllowPendingTail downgrades a date-order violation confined to the last row
	// to a soft error. The last row is treated as still being composed.
	AllowPendingTail bool
}

// ValidateTable validates an imported ledger table: its column titles first, then its rows.
// See ValidateLedger for the row checks.
func ValidateTable(columns []string, rows []model.RawRow, opts LedgerOptions) (model.Ledger, error) {
	if err := validateColumns(columns); err != nil {
		return model.Ledger{}, err
	}
	return ValidateLedger(rows, opts)
}

// ValidateLedger checks raw rows and converts them into a ledger of tagged transactions.
//
// Checks run in order and the first failing rule is returned with every location that
// violates it:
//  1. row indexes form the dense sequence 0..N-1 (IndexError)
//  2. every row has a date (TypeError)
//  3. dates are non-decreasing (BusinessRuleError, soft when only the pending tail row is out of order)
//  4. every present number is finite (TypeError)
//  5. each row holds exactly one of buy, sell and dividend with paired amount and share (BusinessRuleError)
//  6. amount/share divides to a finite number (BusinessRuleError)
//
// Duplicate dates are legal. The input is never modified.
//
// On a soft error the returned ledger holds the committed rows (all but the tail)
// and the error has Soft set; callers may ignore it.
func ValidateLedger(rows []model.RawRow, opts LedgerOptions) (model.Ledger, error) {
	if len(rows) == 0 {
		return model.Ledger{}, nil
	}

	for i, r := range rows {
		if r.Index != i {
			return model.Ledger{}, apperrors.NewLedgerError(apperrors.ErrIndex, nil, apperrors.Cell(-1, i))
		}
	}

	var missing []apperrors.Rect
	for i, r := range rows {
		if r.Date == nil || r.Date.IsZero() {
			missing = append(missing, apperrors.Cell(model.ColDate, i))
		}
	}
	if len(missing) > 0 {
		return model.Ledger{}, apperrors.NewLedgerError(apperrors.ErrType, apperrors.ErrMissingDate, missing...)
	}

	var soft *apperrors.LedgerError
	for i := 1; i < len(rows); i++ {
		if rows[i].Date.Before(*rows[i-1].Date) {
			err := apperrors.NewLedgerError(apperrors.ErrBusinessRule, apperrors.ErrNonAscendingDates,
				apperrors.Cell(model.ColDate, i))
			if i == len(rows)-1 && opts.AllowPendingTail {
				err.Soft = true
				soft = err
				break
			}
			return model.Ledger{}, err
		}
	}

	if err := checkRows(rows); err != nil {
		return model.Ledger{}, err
	}

	committed := rows
	if soft != nil {
		committed = rows[:len(rows)-1]
	}
	ledger := model.Ledger{Rows: make([]model.Transaction, 0, len(committed))}
	for _, r := range committed {
		ledger.Rows = append(ledger.Rows, toTransaction(r))
	}
	if soft != nil {
		return ledger, soft
	}
	return ledger, nil
}

var numericColumns = []int{
	model.ColBuyAmount, model.ColBuyShare,
	model.ColSellAmount, model.ColSellShare,
	model.ColDividendAmount, model.ColDividendShare,
}

// rule collects the locations violating one check.
type rule struct {
	kind, cause error
	locs        []apperrors.Rect
}

func (r *rule) add(loc apperrors.Rect) { r.locs = append(r.locs, loc) }

func (r *rule) err() error {
	if len(r.locs) == 0 {
		return nil
	}
	return apperrors.NewLedgerError(r.kind, r.cause, r.locs...)
}

func checkRows(rows []model.RawRow) error {
	finite := rule{kind: apperrors.ErrType, cause: apperrors.ErrNonFinite}
	for i, r := range rows {
		for _, col := range numericColumns {
			if v := r.Field(col); v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
				finite.add(apperrors.Cell(col, i))
			}
		}
	}
	if err := finite.err(); err != nil {
		return err
	}

	single := rule{kind: apperrors.ErrBusinessRule, cause: apperrors.ErrMixedTransaction}
	for i, r := range rows {
		n := 0
		for _, v := range []*float64{r.BuyShare, r.SellShare, r.DividendShare} {
			if v != nil {
				n++
			}
		}
		if n != 1 {
			single.add(apperrors.Rect{Col: model.ColBuyAmount, Row: i, Width: model.ColDividendShare, Height: 1})
		}
	}
	if err := single.err(); err != nil {
		return err
	}

	missingShare := rule{kind: apperrors.ErrBusinessRule, cause: apperrors.ErrMissingShare}
	for i, r := range rows {
		if r.DividendAmount != nil && r.DividendShare == nil {
			missingShare.add(apperrors.Rect{Col: model.ColDividendAmount, Row: i, Width: 2, Height: 1})
		}
	}
	if err := missingShare.err(); err != nil {
		return err
	}

	for _, pair := range [][2]int{{model.ColBuyAmount, model.ColBuyShare}, {model.ColSellAmount, model.ColSellShare}} {
		if err := checkPair(rows, pair[0], pair[1]); err != nil {
			return err
		}
	}

	negative := rule{kind: apperrors.ErrBusinessRule, cause: apperrors.ErrNegativeShare}
	for i, r := range rows {
		if r.DividendShare != nil && *r.DividendShare < 0 {
			negative.add(apperrors.Cell(model.ColDividendShare, i))
		}
	}
	if err := negative.err(); err != nil {
		return err
	}

	amounts := rule{kind: apperrors.ErrBusinessRule, cause: apperrors.ErrNegativeAmount}
	for i, r := range rows {
		for _, col := range []int{model.ColBuyAmount, model.ColSellAmount, model.ColDividendAmount} {
			if v := r.Field(col); v != nil && *v < 0 {
				amounts.add(apperrors.Cell(col, i))
			}
		}
	}
	if err := amounts.err(); err != nil {
		return err
	}

	ratio := rule{kind: apperrors.ErrBusinessRule, cause: apperrors.ErrNonFiniteRatio}
	for i, r := range rows {
		for _, col := range []int{model.ColBuyAmount, model.ColSellAmount, model.ColDividendAmount} {
			amount, share := r.Field(col), r.Field(col+1)
			if amount == nil || share == nil {
				continue
			}
			q := *amount / *share
			if math.IsNaN(q) || math.IsInf(q, 0) {
				ratio.add(apperrors.Rect{Col: col, Row: i, Width: 2, Height: 1})
			}
		}
	}
	return ratio.err()
}

// checkPair checks a buy or sell column pair: both present or both absent, and a positive share.
func checkPair(rows []model.RawRow, amountCol, shareCol int) error {
	paired := rule{kind: apperrors.ErrBusinessRule, cause: apperrors.ErrMissingAmountOrShare}
	for i, r := range rows {
		if (r.Field(amountCol) == nil) != (r.Field(shareCol) == nil) {
			paired.add(apperrors.Rect{Col: amountCol, Row: i, Width: 2, Height: 1})
		}
	}
	if err := paired.err(); err != nil {
		return err
	}

	positive := rule{kind: apperrors.ErrBusinessRule, cause: apperrors.ErrNonPositiveShare}
	for i, r := range rows {
		if v := r.Field(shareCol); v != nil && *v <= 0 {
			positive.add(apperrors.Cell(shareCol, i))
		}
	}
	return positive.err()
}

func validateColumns(columns []string) error {
	want := model.InputColumns
	full := append(append([]string(nil), model.InputColumns...), model.DerivedColumns...)
	if len(columns) > len(want) {
		want = full
	}

	var locs []apperrors.Rect
	n := min(len(columns), len(want))
	for i := 0; i < n; i++ {
		if columns[i] != want[i] {
			locs = append(locs, apperrors.Cell(i, -1))
		}
	}
	switch {
	case len(columns) > len(want):
		locs = append(locs, apperrors.Rect{Col: n, Row: -1, Width: len(columns) - n, Height: 1})
	case len(columns) < len(model.InputColumns):
		locs = append(locs, apperrors.Rect{Col: 0, Row: -1, Width: len(columns), Height: 1})
	case len(columns) > len(model.InputColumns) && len(columns) < len(full):
		locs = append(locs, apperrors.Rect{Col: len(model.InputColumns), Row: -1, Width: len(columns) - len(model.InputColumns), Height: 1})
	}
	if len(locs) > 0 {
		return apperrors.NewLedgerError(apperrors.ErrSchema, apperrors.ErrColumnTitle, locs...)
	}
	return nil
}

func toTransaction(r model.RawRow) model.Transaction {
	date := *r.Date
	switch {
	case r.BuyShare != nil:
		return model.Buy(date, *r.BuyAmount, *r.BuyShare)
	case r.SellShare != nil:
		return model.Sell(date, *r.SellAmount, *r.SellShare)
	case r.DividendAmount != nil:
		return model.CashDividend(date, *r.DividendAmount, *r.DividendShare)
	default:
		return model.ShareDividend(date, *r.DividendShare)
	}
}
