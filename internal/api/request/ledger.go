package request

import (
	"time"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// LedgerRow is one row of an imported ledger table. Dates travel as strings so a malformed
// date can be reported at its cell instead of failing the whole body.
type LedgerRow struct {
	Index          *int     `json:"index,omitempty" yaml:"index,omitempty"`
	Date           *string  `json:"date,omitempty" yaml:"date,omitempty"`
	BuyAmount      *float64 `json:"buyAmount,omitempty" yaml:"buyAmount,omitempty"`
	BuyShare       *float64 `json:"buyShare,omitempty" yaml:"buyShare,omitempty"`
	SellAmount     *float64 `json:"sellAmount,omitempty" yaml:"sellAmount,omitempty"`
	SellShare      *float64 `json:"sellShare,omitempty" yaml:"sellShare,omitempty"`
	DividendAmount *float64 `json:"dividendAmount,omitempty" yaml:"dividendAmount,omitempty"`
	DividendShare  *float64 `json:"dividendShare,omitempty" yaml:"dividendShare,omitempty"`
}

// PutLedgerRequest represents the request body replacing an asset's ledger.
// Columns may be omitted, in which case the standard input columns are assumed.
type PutLedgerRequest struct {
	Columns []string    `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows    []LedgerRow `json:"rows" yaml:"rows"`
	// AllowPendingTail accepts a ledger whose only problem is an out of order last row.
	AllowPendingTail bool `json:"allowPendingTail,omitempty" yaml:"allowPendingTail,omitempty"`
}

// TableColumns returns the declared columns, or the standard input columns when none were sent.
func (r PutLedgerRequest) TableColumns() []string {
	if len(r.Columns) == 0 {
		return append([]string(nil), model.InputColumns...)
	}
	return r.Columns
}

// RawRows converts the request rows to unvalidated ledger rows. A row without an explicit
// index takes its position. Unparseable dates are reported as a type error at their cells.
func (r PutLedgerRequest) RawRows() ([]model.RawRow, error) {
	rows := make([]model.RawRow, len(r.Rows))
	var bad []apperrors.Rect

	for i, in := range r.Rows {
		row := model.RawRow{
			Index:          i,
			BuyAmount:      in.BuyAmount,
			BuyShare:       in.BuyShare,
			SellAmount:     in.SellAmount,
			SellShare:      in.SellShare,
			DividendAmount: in.DividendAmount,
			DividendShare:  in.DividendShare,
		}
		if in.Index != nil {
			row.Index = *in.Index
		}
		if in.Date != nil && *in.Date != "" {
			d, err := parseDate(*in.Date)
			if err != nil {
				bad = append(bad, apperrors.Cell(model.ColDate, i))
			} else {
				row.Date = &d
			}
		}
		rows[i] = row
	}

	if len(bad) > 0 {
		return nil, apperrors.NewLedgerError(apperrors.ErrType, apperrors.ErrInvalidDate, bad...)
	}
	return rows, nil
}

// parseDate accepts "2006-01-02" or RFC3339 and keeps only the calendar day.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
