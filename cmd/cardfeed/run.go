package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"

	"github.com/lchiayu/cardfeed/pkg/api"
	"github.com/lchiayu/cardfeed/pkg/client"
	"github.com/lchiayu/cardfeed/pkg/config"
	"github.com/lchiayu/cardfeed/pkg/dedup"
	"github.com/lchiayu/cardfeed/pkg/lock"
	"github.com/lchiayu/cardfeed/pkg/normalize"
	"github.com/lchiayu/cardfeed/pkg/parser"
	"github.com/lchiayu/cardfeed/pkg/pipeline"
	gmailreader "github.com/lchiayu/cardfeed/pkg/reader/gmail"
	"github.com/lchiayu/cardfeed/pkg/store"
	postgresstore "github.com/lchiayu/cardfeed/pkg/store/postgres"
	sheetsstore "github.com/lchiayu/cardfeed/pkg/store/sheets"
)

// lockWait bounds how long a run waits for the advisory lock before
// proceeding anyway.
const lockWait = 20 * time.Second

// runCardfeed executes the ingestion pipeline once, or repeatedly with -every.
func runCardfeed(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to optional JSON config file")
	secretsPath := fs.String("secrets", config.ClientSecretFile, "path to Google OAuth credentials")
	every := fs.Duration("every", 0, "rerun interval; 0 runs once and exits")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	loc := normalize.Location(cfg.TZ)

	logger.Info("configuration loaded",
		"tz", cfg.TZ,
		"store", cfg.StoreBackend,
		"window_days", cfg.WindowDays,
	)

	httpClient, err := client.New(
		*secretsPath,
		config.TokenFile,
		gmail.GmailReadonlyScope,
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return fmt.Errorf("creating http client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	fetcher, err := gmailreader.New(httpClient, logger.With("component", "gmail_fetcher"))
	if err != nil {
		return fmt.Errorf("creating gmail fetcher: %w", err)
	}

	st, closeStore, err := newStore(ctx, cfg, httpClient, loc, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer closeStore()

	keyer := dedup.NewKeyer(loc)
	pipe := pipeline.New(fetcher, keyer, logger.With("component", "pipeline"))
	sources := buildSources(cfg, loc)

	if err := runOnce(ctx, cfg, pipe, sources, st, keyer, loc, logger); err != nil {
		return err
	}
	if *every <= 0 {
		return nil
	}

	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := runOnce(ctx, cfg, pipe, sources, st, keyer, loc, logger); err != nil {
				logger.Error("run failed", "error", err)
			}
		}
	}
}

func runOnce(
	ctx context.Context,
	cfg *config.Config,
	pipe *pipeline.Pipeline,
	sources []api.Source,
	st store.Store,
	keyer *dedup.Keyer,
	loc *time.Location,
	logger *slog.Logger,
) error {
	// Best effort only: overlapping runs waste API quota but cannot
	// duplicate rows thanks to the seeded index.
	release, ok, err := lock.Acquire(ctx, cfg.LockFile, lockWait)
	if err != nil {
		logger.Warn("lock acquisition errored, continuing", "error", err)
	} else if !ok {
		logger.Warn("another run holds the lock, continuing anyway")
	}
	if release != nil {
		defer release()
	}

	idx, err := pipeline.SeedIndex(ctx, st, keyer)
	if err != nil {
		return err
	}

	window := pipeline.LastDays(time.Now(), cfg.WindowDays, loc)
	logger.Info("ingestion window", "start", window.Start, "end", window.End)

	rows, err := pipe.Run(ctx, sources, window, idx)
	if err != nil {
		return err
	}

	if len(rows) > 0 {
		if err := st.Append(ctx, rows); err != nil {
			return err
		}
		if ss, isSheet := st.(*sheetsstore.Store); isSheet {
			if err := ss.Groom(ctx); err != nil {
				logger.Warn("failed to groom sheet", "error", err)
			}
		}
	}

	logger.Info("run complete", "inserted", len(rows))
	return nil
}

func newStore(
	ctx context.Context,
	cfg *config.Config,
	httpClient *http.Client,
	loc *time.Location,
	logger *slog.Logger,
) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		ps, err := postgresstore.New(ctx, postgresstore.Config{
			Host:     cfg.PGHost,
			Port:     cfg.PGPort,
			Database: cfg.PGDatabase,
			User:     cfg.PGUser,
			Password: cfg.PGPassword,
			SSLMode:  cfg.PGSSLMode,
		}, logger.With("component", "postgres_store"))
		if err != nil {
			return nil, nil, err
		}
		return ps, ps.Close, nil
	case "sheets":
		ss, err := sheetsstore.New(ctx, httpClient, sheetsstore.Config{
			SpreadsheetID: cfg.SpreadsheetID,
			SheetName:     cfg.SheetName,
			Header:        cfg.Header(),
			Location:      loc,
		}, logger.With("component", "sheet_store"))
		if err != nil {
			return nil, nil, err
		}
		return ss, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// buildSources wires the three notification channels. Only the transfer
// source uses the message-id short-circuit and the loose key check, matching
// how cross-channel transfer notices can repeat the same transaction.
func buildSources(cfg *config.Config, loc *time.Location) []api.Source {
	return []api.Source{
		{
			Name:       "fubon-consumption",
			Query:      cfg.FubonQuerySubject,
			Parser:     parser.NewFubon(loc),
			MaxResults: 500,
		},
		{
			Name:       "cathay-consumption",
			Query:      fmt.Sprintf(`label:"%s" subject:"%s"`, cfg.CathayLabel, cfg.CathaySubject),
			Parser:     parser.NewCathayConsumption(loc),
			MaxResults: 200,
		},
		{
			Name:             "cathay-transfer",
			Query:            cfg.CathayTransferQuery,
			Parser:           parser.NewCathayTransfer(loc),
			SkipSeenMessages: true,
			LooseCheck:       true,
			MaxResults:       100,
		},
	}
}
