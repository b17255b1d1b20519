package request

import (
	"fmt"
	"time"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// PortfolioQuery holds the parsed query parameters of a portfolio request.
// Zero dates leave that side of the window open.
type PortfolioQuery struct {
	Class     string
	StartDate time.Time
	EndDate   time.Time
}

// ParsePortfolioQuery parses the class, start_date and end_date query parameters.
// An empty class selects every asset class.
func ParsePortfolioQuery(class, startDate, endDate string) (PortfolioQuery, error) {
	q := PortfolioQuery{Class: class}

	if class != "" && !model.AssetClasses[class] {
		return PortfolioQuery{}, fmt.Errorf("%w: %s", apperrors.ErrInvalidAssetClass, class)
	}

	var err error
	if startDate != "" {
		if q.StartDate, err = parseDate(startDate); err != nil {
			return PortfolioQuery{}, fmt.Errorf("%w: start_date: %v", apperrors.ErrInvalidDate, err)
		}
	}
	if endDate != "" {
		if q.EndDate, err = parseDate(endDate); err != nil {
			return PortfolioQuery{}, fmt.Errorf("%w: end_date: %v", apperrors.ErrInvalidDate, err)
		}
	}

	if !q.StartDate.IsZero() && !q.EndDate.IsZero() && q.StartDate.After(q.EndDate) {
		return PortfolioQuery{}, apperrors.ErrInvalidDateRange
	}
	return q, nil
}
