package model

import (
	"fmt"
	"time"
)

// Ledger column titles and positions. Locations in validation errors refer to these columns.
const (
	ColDate = iota
	ColBuyAmount
	ColBuyShare
	ColSellAmount
	ColSellShare
	ColDividendAmount
	ColDividendShare
	ColHoldingShare
	ColHoldingPrice
	ColRate
)

// InputColumns are the raw ledger columns in order. DerivedColumns may follow them
// in imported tables and are recomputed, never trusted.
var (
	InputColumns = []string{
		"Date",
		"Buying Amount",
		"Buying Share",
		"Selling Amount",
		"Selling Share",
		"Dividend Amount",
		"Dividend Share",
	}
	DerivedColumns = []string{
		"Holding Share",
		"Holding Price",
		"Rate of Return",
	}
)

// Kind tags the single event a ledger row records.
type Kind int

const (
	KindBuy Kind = iota
	KindSell
	KindCashDividend
	KindShareDividend
)

func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	case KindCashDividend:
		return "cash_dividend"
	case KindShareDividend:
		return "share_dividend"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "buy":
		*k = KindBuy
	case "sell":
		*k = KindSell
	case "cash_dividend":
		*k = KindCashDividend
	case "share_dividend":
		*k = KindShareDividend
	default:
		return fmt.Errorf("unknown transaction kind %q", b)
	}
	return nil
}

// IsEvent reports whether the row is a sell or dividend that realizes value.
// Share dividends only dilute cost and carry no cash, so they are not events.
func (k Kind) IsEvent() bool {
	return k == KindSell || k == KindCashDividend
}

// Transaction is a validated ledger row. Exactly one event kind per row is guaranteed by
// construction; Amount is zero for share dividends. For a cash dividend Share is the
// dividend's share equivalent, which drives lot pro-ration.
type Transaction struct {
	Date   time.Time `json:"date" yaml:"date"`
	Kind   Kind      `json:"kind" yaml:"kind"`
	Amount float64   `json:"amount" yaml:"amount"`
	Share  float64   `json:"share" yaml:"share"`
}

// Buy creates a buy row.
func Buy(date time.Time, amount, share float64) Transaction {
	return Transaction{Date: date, Kind: KindBuy, Amount: amount, Share: share}
}

// Sell creates a sell row.
func Sell(date time.Time, amount, share float64) Transaction {
	return Transaction{Date: date, Kind: KindSell, Amount: amount, Share: share}
}

// CashDividend creates a cash dividend row.
func CashDividend(date time.Time, amount, share float64) Transaction {
	return Transaction{Date: date, Kind: KindCashDividend, Amount: amount, Share: share}
}

// ShareDividend creates a reinvestment row that adds shares at zero cost.
func ShareDividend(date time.Time, share float64) Transaction {
	return Transaction{Date: date, Kind: KindShareDividend, Share: share}
}

// Ledger is the ordered transaction history of exactly one asset.
type Ledger struct {
	AssetID string        `json:"assetId" yaml:"assetId"`
	Rows    []Transaction `json:"rows" yaml:"rows"`
}

// Clone returns a deep copy, so callers can extend a ledger without aliasing the original rows.
func (l Ledger) Clone() Ledger {
	rows := make([]Transaction, len(l.Rows))
	copy(rows, l.Rows)
	return Ledger{AssetID: l.AssetID, Rows: rows}
}

// Truncate returns the rows dated on or before date.
func (l Ledger) Truncate(date time.Time) Ledger {
	n := 0
	for n < len(l.Rows) && !l.Rows[n].Date.After(date) {
		n++
	}
	rows := make([]Transaction, n)
	copy(rows, l.Rows[:n])
	return Ledger{AssetID: l.AssetID, Rows: rows}
}

// RawRow is an unvalidated ledger row as it arrives from import or user edits.
// Nil pointers mean "absent"; NaN and Inf are representable so validation can reject them.
type RawRow struct {
	Index          int        `json:"index" yaml:"index"`
	Date           *time.Time `json:"date,omitempty" yaml:"date,omitempty"`
	BuyAmount      *float64   `json:"buyAmount,omitempty" yaml:"buyAmount,omitempty"`
	BuyShare       *float64   `json:"buyShare,omitempty" yaml:"buyShare,omitempty"`
	SellAmount     *float64   `json:"sellAmount,omitempty" yaml:"sellAmount,omitempty"`
	SellShare      *float64   `json:"sellShare,omitempty" yaml:"sellShare,omitempty"`
	DividendAmount *float64   `json:"dividendAmount,omitempty" yaml:"dividendAmount,omitempty"`
	DividendShare  *float64   `json:"dividendShare,omitempty" yaml:"dividendShare,omitempty"`
}

// Field returns the numeric field stored in the given column, or nil.
func (r RawRow) Field(col int) *float64 {
	switch col {
	case ColBuyAmount:
		return r.BuyAmount
	case ColBuyShare:
		return r.BuyShare
	case ColSellAmount:
		return r.SellAmount
	case ColSellShare:
		return r.SellShare
	case ColDividendAmount:
		return r.DividendAmount
	case ColDividendShare:
		return r.DividendShare
	default:
		return nil
	}
}

// RawFromTransaction converts a validated row back to its tabular form for export.
func RawFromTransaction(index int, t Transaction) RawRow {
	date := t.Date
	amount, share := t.Amount, t.Share
	row := RawRow{Index: index, Date: &date}
	switch t.Kind {
	case KindBuy:
		row.BuyAmount, row.BuyShare = &amount, &share
	case KindSell:
		row.SellAmount, row.SellShare = &amount, &share
	case KindCashDividend:
		row.DividendAmount, row.DividendShare = &amount, &share
	case KindShareDividend:
		row.DividendShare = &share
	}
	return row
}

// LedgerRowResponse is a ledger row with its derived columns for API responses.
type LedgerRowResponse struct {
	RawRow
	Kind         Kind     `json:"kind"`
	HoldingShare float64  `json:"holdingShare"`
	HoldingPrice *float64 `json:"holdingPrice,omitempty"`
	Rate         *float64 `json:"rate,omitempty"`
}

// LedgerResponse is a stored ledger with its derived columns.
type LedgerResponse struct {
	AssetID string              `json:"assetId"`
	Columns []string            `json:"columns"`
	Rows    []LedgerRowResponse `json:"rows"`
	Average RateResult          `json:"average"`
}

// AssetRates holds the per-event rates of a ledger, keyed "asset:<id>:event:<row>", and
// its average rate, keyed "asset:<id>".
type AssetRates struct {
	AssetID string       `json:"assetId"`
	Events  []RateResult `json:"events"`
	Average RateResult   `json:"average"`
}
