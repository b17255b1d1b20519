package validation

import (
	"fmt"
	"math"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// ValidateNAV checks a valuation series: at least one point, and every unit value and
// net value finite with a positive unit value.
func ValidateNAV(nav []model.NAVPoint) error {
	errors := make(map[string]string)

	if len(nav) == 0 {
		errors["points"] = "at least one point is required"
	}
	for i, p := range nav {
		if math.IsNaN(p.UnitValue) || math.IsInf(p.UnitValue, 0) || p.UnitValue <= 0 {
			errors[fmt.Sprintf("points[%d].unitValue", i)] = "unit value must be a positive number"
		}
		if math.IsNaN(p.NetValue) || math.IsInf(p.NetValue, 0) {
			errors[fmt.Sprintf("points[%d].netValue", i)] = "net value must be a finite number"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
