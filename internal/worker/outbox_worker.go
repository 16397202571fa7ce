package worker

import (
	"context"
	"fmt"

	"finview/internal/amqp"
	"finview/internal/analytics"
	"finview/internal/core"
	"finview/internal/log"
	"finview/internal/ports"
)

// OutboxWorker applies transaction.created messages to the local snapshot
// and optionally mirrors each record to a history sink.
type OutboxWorker struct {
	store    ports.TransactionWriter
	exporter ports.HistoryExporter
	engine   *analytics.Engine
	logger   *log.Logger
}

// NewOutboxWorker wires the worker. exporter may be nil.
func NewOutboxWorker(store ports.TransactionWriter, exporter ports.HistoryExporter, engine *analytics.Engine, logger *log.Logger) *OutboxWorker {
	if engine == nil {
		engine = analytics.NewEngine(nil)
	}
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &OutboxWorker{
		store:    store,
		exporter: exporter,
		engine:   engine,
		logger:   logger,
	}
}

// Handle upserts the announced record. Redelivery of the same message
// rewrites the same (kind, id) row, so handling is idempotent.
func (w *OutboxWorker) Handle(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	tx := msg.Transaction

	if _, err := w.store.SaveTransaction(ctx, msg.Kind, tx); err != nil {
		return fmt.Errorf("apply %s %s: %w", msg.Kind, tx.ID, err)
	}
	w.logger.InfoContext(ctx, "Transaction applied to snapshot",
		log.FieldOperation, log.OpConsume,
		log.FieldMessageID, msg.MessageID,
		log.FieldKind, string(msg.Kind),
		log.FieldTxID, tx.ID.String())

	if w.exporter == nil {
		return nil
	}
	entries := w.entries(msg.Kind, tx)
	n, err := w.exporter.ExportHistory(ctx, entries)
	if err != nil {
		return fmt.Errorf("export %s %s: %w", msg.Kind, tx.ID, err)
	}
	w.logger.DebugContext(ctx, "History row exported",
		log.FieldOperation, log.OpExport,
		log.FieldTxID, tx.ID.String(),
		log.FieldCount, n)
	return nil
}

func (w *OutboxWorker) entries(kind core.Kind, tx core.Transaction) []analytics.HistoryEntry {
	one := []core.Transaction{tx}
	if kind == core.KindIncome {
		return w.engine.Merge(nil, one)
	}
	return w.engine.Merge(one, nil)
}
