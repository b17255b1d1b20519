package request

import (
	"fmt"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// NAVPoint is one date of a pushed valuation series.
type NAVPoint struct {
	Date      string  `json:"date" yaml:"date"`
	UnitValue float64 `json:"unitValue" yaml:"unitValue"`
	NetValue  float64 `json:"netValue" yaml:"netValue"`
}

// PutValuationRequest represents the request body replacing an asset's valuation series.
type PutValuationRequest struct {
	Points []NAVPoint `json:"points" yaml:"points"`
}

// NAV converts the request to a valuation series. Dates must parse; values are checked by
// validation.ValidateNAV.
func (r PutValuationRequest) NAV() ([]model.NAVPoint, error) {
	nav := make([]model.NAVPoint, len(r.Points))
	for i, p := range r.Points {
		d, err := parseDate(p.Date)
		if err != nil {
			return nil, fmt.Errorf("points[%d].date: %q is not a valid date", i, p.Date)
		}
		nav[i] = model.NAVPoint{Date: d, UnitValue: p.UnitValue, NetValue: p.NetValue}
	}
	return nav, nil
}
