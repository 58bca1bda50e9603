// Package cli implements the costlens subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/odyssey-erp/costlens/internal/fx"
	"github.com/odyssey-erp/costlens/internal/ingest"
)

// loadSource ingests the file at path with the given rate table.
func loadSource(ctx context.Context, logger *slog.Logger, path string, rates *fx.RateTable, statusFilter bool) (*ingest.Dataset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	ingester := ingest.NewIngester(ingest.Options{StatusFilter: statusFilter, Rates: rates}, logger, nil)
	return ingester.Ingest(ctx, ingest.Source{Name: filepath.Base(path), Reader: f})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
