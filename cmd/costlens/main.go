package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/costlens/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := "serve", []string{}
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	switch cmd {
	case "serve":
		os.Exit(runServe(ctx, args))
	case "report":
		os.Exit(runReport(ctx, args))
	case "rates":
		os.Exit(runRates(ctx, args))
	case "jobs":
		os.Exit(runJobs(ctx, args))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println("costlens: logistics cost analysis")
	fmt.Println("\nUsage:")
	fmt.Println("  costlens <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  serve           Run the HTTP API (default)")
	fmt.Println("  report          Print totals and the account difference table for a file")
	fmt.Println("  rates validate  List currencies in a file that have no conversion rate")
	fmt.Println("  jobs trigger    Enqueue a dataset refresh")
	fmt.Println("  jobs stats      Show queue statistics")
	fmt.Println("\nRun 'costlens <command> -h' for more information on a command.")
}
