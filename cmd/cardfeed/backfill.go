package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"google.golang.org/api/sheets/v4"

	"github.com/lchiayu/cardfeed/pkg/client"
	"github.com/lchiayu/cardfeed/pkg/config"
	"github.com/lchiayu/cardfeed/pkg/normalize"
	"github.com/lchiayu/cardfeed/pkg/parser"
	sheetsstore "github.com/lchiayu/cardfeed/pkg/store/sheets"
)

// runBackfill fills the blank flow cells of existing credit-card rows with
// the expense default. One-off maintenance for rows appended before the flow
// column was defaulted on insert.
func runBackfill(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to optional JSON config file")
	secretsPath := fs.String("secrets", config.ClientSecretFile, "path to Google OAuth credentials")
	flow := fs.String("flow", "支出", "flow value to fill into blank cells")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.StoreBackend != "sheets" {
		return fmt.Errorf("backfill supports the sheets backend only, configured %q", cfg.StoreBackend)
	}

	httpClient, err := client.New(*secretsPath, config.TokenFile, sheets.SpreadsheetsScope)
	if err != nil {
		return fmt.Errorf("creating http client: %w", err)
	}

	ctx := context.Background()
	st, err := sheetsstore.New(ctx, httpClient, sheetsstore.Config{
		SpreadsheetID: cfg.SpreadsheetID,
		SheetName:     cfg.SheetName,
		Header:        cfg.Header(),
		Location:      normalize.Location(cfg.TZ),
	}, logger.With("component", "sheet_store"))
	if err != nil {
		return fmt.Errorf("opening sheet: %w", err)
	}

	updated, err := st.Backfill(ctx, []string{parser.BankFubon, parser.BankCathay}, *flow)
	if err != nil {
		return err
	}

	fmt.Printf("Backfill done. updated=%d\n", updated)
	return nil
}
