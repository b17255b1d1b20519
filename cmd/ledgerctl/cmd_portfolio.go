package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/portfolio"
	"github.com/ndewijer/investment-ledger/internal/validation"
	"github.com/ndewijer/investment-ledger/internal/valuation"
)

// portfolioCmd represents the portfolio command
var portfolioCmd = &cobra.Command{
	Use:   "portfolio <asset-file>...",
	Short: "Aggregate assets into a portfolio series",
	Long: `Aggregate one or more asset files into the dated portfolio series with its year
and quarter rates, the way the server's refresh does.

Each asset file holds the asset, its ledger and its valuation series:

  class: fund
  code: "110011"
  name: Growth Fund
  ledger:
    rows:
      - {date: 2024-01-02, buyAmount: 1000, buyShare: 100}
  valuation:
    points:
      - {date: 2024-01-02, unitValue: 10, netValue: 10}

Examples:
  ledgerctl portfolio fund.yaml stock.yaml
  ledgerctl portfolio --class fund --from 2024-01-01 --to 2024-06-30 *.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPortfolio,
}

var (
	portfolioClass  string
	portfolioFrom   string
	portfolioTo     string
	portfolioPoints int
)

func init() {
	rootCmd.AddCommand(portfolioCmd)

	portfolioCmd.Flags().StringVar(&portfolioClass, "class", "", "Only aggregate assets of this class")
	portfolioCmd.Flags().StringVar(&portfolioFrom, "from", "", "First date of the window (YYYY-MM-DD)")
	portfolioCmd.Flags().StringVar(&portfolioTo, "to", "", "Last date of the window (YYYY-MM-DD)")
	portfolioCmd.Flags().IntVar(&portfolioPoints, "points", 10, "Number of latest dates to print; 0 prints all")
}

// PortfolioReport is the output of the portfolio command.
type PortfolioReport struct {
	Class    string              `json:"class" yaml:"class"`
	Assets   int                 `json:"assets" yaml:"assets"`
	Failures int                 `json:"failures" yaml:"failures"`
	Points   []PortfolioPoint    `json:"points" yaml:"points"`
	Years    map[string]*float64 `json:"years" yaml:"years"`
	Quarters map[string]*float64 `json:"quarters" yaml:"quarters"`
}

// PortfolioPoint is one date of the portfolio series.
type PortfolioPoint struct {
	Date              string   `json:"date" yaml:"date"`
	InvestAmount      float64  `json:"investAmount" yaml:"investAmount"`
	HoldingAmount     float64  `json:"holdingAmount" yaml:"holdingAmount"`
	AccumulatedProfit float64  `json:"accumulatedProfit" yaml:"accumulatedProfit"`
	ProfitRate        *float64 `json:"profitRate" yaml:"profitRate"`
	Rate              *float64 `json:"rate" yaml:"rate"`
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	if portfolioClass != "" && !model.AssetClasses[portfolioClass] {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidAssetClass, portfolioClass)
	}
	window, err := parseWindow(portfolioFrom, portfolioTo)
	if err != nil {
		return err
	}

	inputs := make([]portfolio.AssetInput, 0, len(args))
	for _, path := range args {
		in, err := loadAsset(path, cfg.Engine)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
	}

	out, err := portfolio.Aggregate(portfolio.Input{Class: portfolioClass, Window: window, Assets: inputs}, nil, cfg.AggregateOptions())
	if err != nil {
		return err
	}
	if out.Failures > 0 {
		logger.Warn().Int("failures", out.Failures).Msg("some portfolio rates did not converge")
	}

	return writeOutput(cmd.OutOrStdout(), portfolioReport(out, len(inputs), portfolioPoints))
}

// loadAsset reads an asset file and computes everything the aggregator needs from it.
func loadAsset(path string, engine ledger.Config) (portfolio.AssetInput, error) {
	var f AssetFile
	if err := decodeFile(path, &f); err != nil {
		return portfolio.AssetInput{}, err
	}
	if !model.AssetClasses[f.Class] {
		return portfolio.AssetInput{}, fmt.Errorf("%s: %w: %q", path, apperrors.ErrInvalidAssetClass, f.Class)
	}
	asset := f.Asset()

	l, err := validateRequest(f.Ledger, f.Ledger.AllowPendingTail)
	if le, ok := apperrors.AsLedgerError(err); ok && le.Soft {
		logger.Warn().Str("file", path).Err(err).Msg("pending tail row ignored")
	} else if err != nil {
		return portfolio.AssetInput{}, fmt.Errorf("%s: %w", path, err)
	}
	l.AssetID = asset.ID

	in := portfolio.AssetInput{Asset: asset, Ledger: l}
	if len(l.Rows) > 0 {
		res, err := ledger.Compute(l, engine, nil)
		if res == nil {
			return portfolio.AssetInput{}, fmt.Errorf("%s: %w", path, err)
		}
		if err != nil {
			logger.Warn().Str("file", path).Err(err).Msg("ledger rates did not converge")
		}
		in.Result = res
	}

	if len(f.Valuation.Points) > 0 {
		nav, err := f.Valuation.NAV()
		if err != nil {
			return portfolio.AssetInput{}, fmt.Errorf("%s: %w", path, err)
		}
		if err := validation.ValidateNAV(nav); err != nil {
			return portfolio.AssetInput{}, fmt.Errorf("%s: %w", path, err)
		}
		var positions []ledger.Position
		if in.Result != nil {
			positions = in.Result.Positions
		}
		if in.Valuation, err = valuation.Align(l, positions, nav); err != nil {
			return portfolio.AssetInput{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return in, nil
}

func parseWindow(from, to string) (portfolio.Window, error) {
	var w portfolio.Window
	var err error
	if from != "" {
		if w.From, err = validation.ParseTime(from); err != nil {
			return w, fmt.Errorf("%w: --from: %v", apperrors.ErrInvalidDate, err)
		}
	}
	if to != "" {
		if w.To, err = validation.ParseTime(to); err != nil {
			return w, fmt.Errorf("%w: --to: %v", apperrors.ErrInvalidDate, err)
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.From.After(w.To) {
		return w, apperrors.ErrInvalidDateRange
	}
	return w, nil
}

func portfolioReport(out portfolio.Output, assets, limit int) PortfolioReport {
	snap := out.Snapshot
	report := PortfolioReport{
		Class:    snap.Class,
		Assets:   assets,
		Failures: out.Failures,
		Years:    make(map[string]*float64, len(snap.Years)),
		Quarters: make(map[string]*float64, len(snap.Quarters)),
	}
	if report.Class == "" {
		report.Class = "all"
	}

	points := snap.Points
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	for _, p := range points {
		report.Points = append(report.Points, PortfolioPoint{
			Date:              p.Date.Format(time.DateOnly),
			InvestAmount:      p.InvestAmount,
			HoldingAmount:     p.HoldingAmount,
			AccumulatedProfit: p.AccumulatedProfit,
			ProfitRate:        model.Finite(p.ProfitRate),
			Rate:              model.Finite(p.Rate),
		})
	}

	for y, r := range snap.Years {
		report.Years[fmt.Sprint(y)] = model.Finite(r.Rate)
	}
	for q, r := range snap.Quarters {
		report.Quarters[q.String()] = model.Finite(r.Rate)
	}
	return report
}
