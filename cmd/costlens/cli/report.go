package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/odyssey-erp/costlens/internal/analytics"
	"github.com/odyssey-erp/costlens/internal/analytics/export"
	"github.com/odyssey-erp/costlens/internal/fx"
	"github.com/odyssey-erp/costlens/internal/ingest"
)

// ReportCLI prints headline views of a source file without a server.
type ReportCLI struct {
	logger *slog.Logger
}

// NewReportCLI constructs the report helper. A nil logger discards
// ingestion logs.
func NewReportCLI(logger *slog.Logger) *ReportCLI {
	if logger == nil {
		logger = quietLogger()
	}
	return &ReportCLI{logger: logger}
}

// ReportOptions defines available flags for the report command.
type ReportOptions struct {
	File         string
	RatesFile    string
	StatusFilter bool
	Accounts     []string
	Countries    []string
	TableN       int
	JSONOutput   bool
	Stdout       io.Writer
	Stderr       io.Writer
}

// ReportSummary is the JSON output of the report command.
type ReportSummary struct {
	Dataset    string                       `json:"dataset"`
	Totals     analytics.Totals             `json:"totals"`
	Difference []analytics.AccountAggregate `json:"difference"`
	Problems   analytics.ProblemReport      `json:"problems"`
	Notices    map[ingest.NoticeKind]int    `json:"notices"`
}

// ReportCommand ingests the file and prints totals, the difference table
// and the problem account summary.
func (c *ReportCLI) ReportCommand(ctx context.Context, opts ReportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	rates, err := fx.LoadRateFile(opts.RatesFile)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return 1
	}
	analyticsOpts := analytics.DefaultOptions()
	analyticsOpts.Rates = rates
	analyticsOpts.StatusFilter = opts.StatusFilter
	if opts.TableN > 0 {
		analyticsOpts.TableN = opts.TableN
	}
	svc, err := analytics.NewService(ingest.NewStore(), nil, analyticsOpts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return 1
	}
	svc.WithLogger(c.logger)

	ds, err := loadSource(ctx, c.logger, opts.File, rates, opts.StatusFilter)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return 1
	}
	if err := svc.Activate(ctx, ds); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return 1
	}

	filter := analytics.Filter{Accounts: opts.Accounts, Countries: opts.Countries}
	summary := ReportSummary{Dataset: ds.Source, Notices: ds.Diagnostics.Counts()}
	if summary.Totals, err = svc.Totals(ctx, filter); err == nil {
		if summary.Difference, err = svc.DifferenceTable(ctx, filter); err == nil {
			summary.Problems, err = svc.Problems(ctx, filter)
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		return 1
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "report: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	renderReportHuman(opts.Stdout, summary)
	return 0
}

func renderReportHuman(out io.Writer, s ReportSummary) {
	t := s.Totals
	_, _ = fmt.Fprintf(out, "Cost report for %s\n", s.Dataset)
	_, _ = fmt.Fprintf(out, "Orders: %d  Accounts: %d (%d active)\n", t.Orders, t.UniqueAccounts, t.ActiveAccounts)
	_, _ = fmt.Fprintf(out, "Total cost: %s  NET: %s  Difference: %s  Average cost: %s\n",
		export.FormatMoney(t.Sums.Total), export.FormatMoney(t.Sums.Net),
		export.FormatMoney(t.Difference), export.FormatMoney(t.AverageCost))

	if len(s.Difference) > 0 {
		_, _ = fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for i, col := range export.AccountSummaryHeader {
			if i > 0 {
				_, _ = fmt.Fprint(tw, "\t")
			}
			_, _ = fmt.Fprint(tw, col)
		}
		_, _ = fmt.Fprintln(tw)
		for _, agg := range s.Difference {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				agg.AccountID, agg.AccountName,
				export.FormatMoney(agg.Sums.Total), export.FormatMoney(agg.Sums.Net),
				agg.Orders, export.FormatMoney(agg.Margin), export.FormatPercent(agg.MarginPct))
		}
		_ = tw.Flush()
	}

	p := s.Problems
	_, _ = fmt.Fprintf(out, "\nProblem accounts: %d out of %d, total loss %s on cost %s\n",
		p.Count, p.TotalAccounts, export.FormatMoney(p.TotalLoss), export.FormatMoney(p.TotalCost))
	for kind, count := range s.Notices {
		if count > 0 {
			_, _ = fmt.Fprintf(out, "notice %s: %d\n", kind, count)
		}
	}
}
