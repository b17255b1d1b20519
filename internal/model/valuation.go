package model

import "time"

// NAVPoint is one date of the market valuation series supplied by the valuation provider.
// UnitValue is the net asset value per unit; NetValue is the accumulated value factor
// (unit value with distributions added back).
type NAVPoint struct {
	Date      time.Time `json:"date" yaml:"date"`
	UnitValue float64   `json:"unitValue" yaml:"unitValue"`
	NetValue  float64   `json:"netValue" yaml:"netValue"`
}

// ValuationPoint is a NAV date aligned with the ledger: what was held on that date and
// at what cost. TransactionAmount and TransactionShare are set only on dates with a ledger
// event (buy amounts positive, sell amounts negative).
type ValuationPoint struct {
	Date              time.Time `json:"date"`
	UnitValue         float64   `json:"unitValue"`
	NetValue          float64   `json:"netValue"`
	HoldingAmount     float64   `json:"holdingAmount"`
	HoldingShare      float64   `json:"holdingShare"`
	HoldingPrice      float64   `json:"holdingPrice"`
	AdjustedPrice     *float64  `json:"adjustedPrice,omitempty"`
	TransactionAmount *float64  `json:"transactionAmount,omitempty"`
	TransactionShare  *float64  `json:"transactionShare,omitempty"`
}

// InvestAmount is the cost of the shares held on this date.
func (p ValuationPoint) InvestAmount() float64 {
	if p.HoldingShare == 0 {
		return 0
	}
	return p.HoldingPrice * p.HoldingShare
}
