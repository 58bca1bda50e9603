package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/costlens/cmd/costlens/cli"
	"github.com/odyssey-erp/costlens/internal/app"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func runReport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	file := fs.String("file", "", "CSV or XLSX order export")
	rates := fs.String("rates", os.Getenv("RATES_FILE"), "YAML rate table (defaults to the built-in rates)")
	allStatuses := fs.Bool("all-statuses", false, "keep rows of every status instead of billed only")
	tableN := fs.Int("n", 15, "rows in the difference table")
	jsonOut := fs.Bool("json", false, "print JSON")
	var accounts, countries listFlag
	fs.Var(&accounts, "account", "restrict to an account name (repeatable)")
	fs.Var(&countries, "country", "restrict to a pickup country (repeatable)")
	_ = fs.Parse(args)

	return cli.NewReportCLI(nil).ReportCommand(ctx, cli.ReportOptions{
		File:         *file,
		RatesFile:    *rates,
		StatusFilter: !*allStatuses,
		Accounts:     accounts,
		Countries:    countries,
		TableN:       *tableN,
		JSONOutput:   *jsonOut,
	})
}

func runRates(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] != "validate" {
		fmt.Fprintln(os.Stderr, "usage: costlens rates validate --file <path> [--rates <yaml>] [--json]")
		return 2
	}
	fs := flag.NewFlagSet("rates validate", flag.ExitOnError)
	file := fs.String("file", "", "CSV or XLSX order export")
	rates := fs.String("rates", os.Getenv("RATES_FILE"), "YAML rate table (defaults to the built-in rates)")
	allStatuses := fs.Bool("all-statuses", false, "check rows of every status instead of billed only")
	jsonOut := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args[1:])

	return cli.NewRatesCLI(nil).ValidateCommand(ctx, cli.RatesValidateOptions{
		File:         *file,
		RatesFile:    *rates,
		StatusFilter: !*allStatuses,
		JSONOutput:   *jsonOut,
	})
}

func runJobs(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: costlens jobs <trigger|stats> [options]")
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ExitOnError)
		path := fs.String("path", cfg.RefreshSource, "source file the worker should ingest")
		_ = fs.Parse(args[1:])
		info, err := jobsCLI.TriggerRefresh(ctx, *path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s (%s) on queue %s\n", info.ID, info.Type, info.Queue)
		return 0
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		_ = json.NewEncoder(os.Stdout).Encode(stats)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs command: %s\n", args[0])
		return 2
	}
}
