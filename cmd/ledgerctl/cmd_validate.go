package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/validation"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <ledger-file>",
	Short: "Validate a ledger table",
	Long: `Validate a ledger table the way the server does on import and report the first
failing rule with every cell that violates it.

The file holds the body of PUT /api/assets/{assetId}/ledger in JSON or YAML:

  columns: [Date, Buy Amount, Buy Share, Sell Amount, Sell Share, Dividend Amount, Dividend Share]
  rows:
    - {date: 2024-01-02, buyAmount: 1000, buyShare: 100}
    - {date: 2024-06-03, sellAmount: 600, sellShare: 50}

Examples:
  ledgerctl validate ledger.yaml
  ledgerctl validate --allow-pending-tail ledger.json -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var validatePendingTail bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validatePendingTail, "allow-pending-tail", false, "Accept an out of order last row with a warning")
}

// ValidationReport is the output of the validate command.
type ValidationReport struct {
	Valid   bool                `json:"valid" yaml:"valid"`
	Rows    int                 `json:"rows" yaml:"rows"`
	Error   *LedgerErrorReport  `json:"error,omitempty" yaml:"error,omitempty"`
	Warning *LedgerErrorReport  `json:"warning,omitempty" yaml:"warning,omitempty"`
	Ledger  []model.Transaction `json:"ledger,omitempty" yaml:"ledger,omitempty"`
}

// LedgerErrorReport describes a rejected ledger.
type LedgerErrorReport struct {
	Kind      string           `json:"kind" yaml:"kind"`
	Message   string           `json:"message" yaml:"message"`
	Locations []apperrors.Rect `json:"locations,omitempty" yaml:"locations,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	l, err := loadLedger(args[0], validatePendingTail)

	report := ValidationReport{Valid: err == nil, Rows: len(l.Rows), Ledger: l.Rows}
	if le, ok := apperrors.AsLedgerError(err); ok {
		r := errorReport(le)
		if le.Soft {
			report.Valid = true
			report.Warning = r
		} else {
			report.Error = r
		}
	} else if err != nil {
		return err
	}

	if err := writeOutput(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("ledger %s is invalid", args[0])
	}
	return nil
}

// loadLedger reads and validates a ledger file. On a soft error the committed rows are
// returned with the error.
func loadLedger(path string, allowPendingTail bool) (model.Ledger, error) {
	var req request.PutLedgerRequest
	if err := decodeFile(path, &req); err != nil {
		return model.Ledger{}, err
	}
	return validateRequest(req, allowPendingTail || req.AllowPendingTail)
}

func validateRequest(req request.PutLedgerRequest, allowPendingTail bool) (model.Ledger, error) {
	rows, err := req.RawRows()
	if err != nil {
		return model.Ledger{}, err
	}
	l, err := validation.ValidateTable(req.TableColumns(), rows, validation.LedgerOptions{AllowPendingTail: allowPendingTail})
	if le, ok := apperrors.AsLedgerError(err); err != nil && (!ok || !le.Soft) {
		return l, err
	}

	// Overselling and dividends beyond the cost basis only show up while tracking.
	digits := ledger.DefaultRoundingDigits
	if cfg != nil {
		digits = cfg.Engine.RoundingDigits
	}
	if _, trackErr := ledger.Track(l.Rows, digits); trackErr != nil {
		return l, trackErr
	}
	return l, err
}

func errorReport(le *apperrors.LedgerError) *LedgerErrorReport {
	return &LedgerErrorReport{
		Kind:      apperrors.KindName(le.Kind),
		Message:   le.Error(),
		Locations: le.Locations,
	}
}
