package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finview/internal/amqp"
	"finview/internal/backend"
	"finview/internal/cli"
	"finview/internal/config"
	"finview/internal/log"
	"finview/internal/ports"
	"finview/internal/sheets/google"
	"finview/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger("info", "text")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	logger.Info("Starting finview worker",
		log.FieldOperation, log.OpStartup,
		"queue", cfg.AMQPQueue,
		"sqlite_db", cfg.SQLiteDBPath,
		"sheets", cfg.SheetsEnabled())

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
	// The worker consumes the outbox into the local snapshot; it never publishes.
	backendCfg.Type = backend.SQLiteBackend
	backendCfg.AMQPURL = ""

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open snapshot", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	exporter, err := newExporter(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize history exporter", log.FieldError, err)
		_ = errors.Join(client.Close(), res.Close())
		os.Exit(1)
	}

	outbox := worker.NewOutboxWorker(res.Store, exporter, engine, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Failed to close snapshot", log.FieldError, err)
		}
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- client.ConsumeTransactionCreated(ctx, outbox.Handle)
	}()

	select {
	case err := <-errChan:
		if err != nil && ctx.Err() == nil {
			logger.Error("Consumer stopped", log.FieldError, err, log.FieldOperation, log.OpConsume)
			_ = errors.Join(client.Close(), res.Close())
			os.Exit(1)
		}
		cli.WaitForShutdown(ctx, done)
	case <-done:
	}
}

// newExporter returns nil when Google Sheets export is not configured.
func newExporter(cfg *config.Config, logger *log.Logger) (ports.HistoryExporter, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	client, err := google.New(context.Background(), google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger.WithComponent(log.ComponentSheets))
	if err != nil {
		return nil, err
	}
	return client, nil
}
