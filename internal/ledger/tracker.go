package ledger

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// Position is the holding state after a ledger row.
type Position struct {
	HoldingShare float64 `json:"holdingShare"`
	// HoldingPrice is the cost per held share, NaN when nothing is held.
	HoldingPrice float64 `json:"holdingPrice"`
	// CostBasis is the money amount attributed to the held shares.
	CostBasis float64 `json:"costBasis"`
}

// InvestAmount is the cost of the held shares, zero when nothing is held.
func (p Position) InvestAmount() float64 {
	if p.HoldingShare == 0 {
		return 0
	}
	return p.CostBasis
}

// Track walks the ledger once and returns the running holding share and cost basis
// after every row.
//
// Transaction Processing Logic:
//   - Buy: shares and cost basis grow by the bought share and amount
//   - Sell: shares shrink; the cost basis is written down in proportion to the shares left
//   - Cash dividend: the amount is taken off the cost basis, which must stay positive
//   - Share dividend: shares grow at zero cost, diluting the holding price
//
// When digits is non-negative the running share balance is rounded to that many decimal
// places before the non-negativity check, so floating noise never looks like overselling.
//
// Returns a BusinessRuleError located at the offending cell on overselling or when a
// dividend exceeds the cost basis.
func Track(rows []model.Transaction, digits int) ([]Position, error) {
	positions := make([]Position, len(rows))
	var shares, basis float64

	for i, row := range rows {
		switch row.Kind {
		case model.KindBuy:
			shares = roundShare(shares+row.Share, digits)
			basis += row.Amount
		case model.KindSell:
			shares = roundShare(shares-row.Share, digits)
			if shares < 0 {
				return nil, apperrors.NewLedgerError(apperrors.ErrBusinessRule, apperrors.ErrOverselling,
					apperrors.Cell(model.ColSellShare, i))
			}
			basis *= shares / (shares + row.Share)
		case model.KindCashDividend:
			shares = roundShare(shares, digits)
			basis -= row.Amount
			if basis <= 0 {
				return nil, apperrors.NewLedgerError(apperrors.ErrBusinessRule, apperrors.ErrDividendExceedsBasis,
					apperrors.Cell(model.ColDividendAmount, i))
			}
		case model.KindShareDividend:
			shares = roundShare(shares+row.Share, digits)
		}

		price := math.NaN()
		if shares > 0 {
			price = basis / shares
		}
		positions[i] = Position{HoldingShare: shares, HoldingPrice: price, CostBasis: basis}
	}
	return positions, nil
}

func roundShare(v float64, digits int) float64 {
	if digits < 0 {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(digits)).InexactFloat64()
}
