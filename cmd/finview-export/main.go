package main

import (
	"context"
	"flag"
	"os"
	"time"

	"finview/internal/analytics"
	"finview/internal/backend"
	"finview/internal/cli"
	"finview/internal/log"
	"finview/internal/services"
	"finview/internal/sheets/google"
	"finview/internal/sheets/memory"
)

// historyReplacer rewrites the whole exported history.
type historyReplacer interface {
	ReplaceHistory(ctx context.Context, entries []analytics.HistoryEntry) (int, error)
}

func main() {
	dryRun := flag.Bool("dry-run", false, "build rows without writing to Google Sheets")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall export timeout")
	flag.Parse()

	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger("info", "text")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentSheets)

	if !*dryRun && !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required unless -dry-run is set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	_, engine, err := cli.BuildEngine(cfg, logger)
	if err != nil {
		logger.Error("Failed to build analytics engine", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.AMQPURL = ""

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	entries, err := services.NewDashboardService(res.Store, engine).History(ctx)
	if err != nil {
		logger.Error("Failed to load history", log.FieldError, err)
		os.Exit(1)
	}

	var sink historyReplacer
	if *dryRun {
		sink = memory.New()
	} else {
		client, err := google.New(ctx, google.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		sink = client
	}

	n, err := sink.ReplaceHistory(ctx, entries)
	if err != nil {
		logger.Error("History export failed", log.FieldError, err, log.FieldOperation, log.OpExport)
		os.Exit(1)
	}
	logger.Info("History exported",
		log.FieldOperation, log.OpExport,
		log.FieldCount, n,
		"dry_run", *dryRun)
}
