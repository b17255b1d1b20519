package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// ratesCmd represents the rates command
var ratesCmd = &cobra.Command{
	Use:   "rates <ledger-file>",
	Short: "Compute holdings and annualized rates of a ledger",
	Long: `Validate a ledger file, then compute the running holding after every row, the
annualized rate of every sale and dividend, and the average rate of the ledger.

Rates that do not converge are reported as null and the command exits non-zero.

Examples:
  ledgerctl rates ledger.yaml
  SOLVER_MAX_ITERATIONS=100000 ledgerctl rates ledger.json -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runRates,
}

func init() {
	rootCmd.AddCommand(ratesCmd)
}

// RatesReport is the output of the rates command.
type RatesReport struct {
	Rows    []RateRow          `json:"rows" yaml:"rows"`
	Average *float64           `json:"average" yaml:"average"`
	Error   *LedgerErrorReport `json:"error,omitempty" yaml:"error,omitempty"`
}

// RateRow is one ledger row with its derived columns.
type RateRow struct {
	Date         time.Time  `json:"date" yaml:"date"`
	Kind         model.Kind `json:"kind" yaml:"kind"`
	Amount       float64    `json:"amount" yaml:"amount"`
	Share        float64    `json:"share" yaml:"share"`
	HoldingShare float64    `json:"holdingShare" yaml:"holdingShare"`
	HoldingPrice *float64   `json:"holdingPrice,omitempty" yaml:"holdingPrice,omitempty"`
	Rate         *float64   `json:"rate,omitempty" yaml:"rate,omitempty"`
}

func runRates(cmd *cobra.Command, args []string) error {
	l, err := loadLedger(args[0], false)
	if le, ok := apperrors.AsLedgerError(err); ok && le.Soft {
		logger.Warn().Err(err).Msg("pending tail row ignored")
	} else if err != nil {
		return err
	}
	l.AssetID = args[0]

	res, err := ledger.Compute(l, cfg.Engine, nil)
	if res == nil {
		return err
	}

	report := ratesReport(l, res)
	if le, ok := apperrors.AsLedgerError(err); ok {
		report.Error = errorReport(le)
		logger.Warn().Err(err).Msg("some rates did not converge")
	}
	if werr := writeOutput(cmd.OutOrStdout(), report); werr != nil {
		return werr
	}
	return err
}

func ratesReport(l model.Ledger, res *ledger.Result) RatesReport {
	report := RatesReport{Rows: make([]RateRow, len(l.Rows)), Average: model.Finite(res.Average.Rate)}
	for i, t := range l.Rows {
		p := res.Positions[i]
		report.Rows[i] = RateRow{
			Date:         t.Date,
			Kind:         t.Kind,
			Amount:       t.Amount,
			Share:        t.Share,
			HoldingShare: p.HoldingShare,
			HoldingPrice: model.Finite(p.HoldingPrice),
			Rate:         model.Finite(res.Rates[i]),
		}
	}
	return report
}
