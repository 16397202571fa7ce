package services

import (
	"context"
	"fmt"
	"time"

	"finview/internal/amqp"
	"finview/internal/core"
	"finview/internal/dates"
	"finview/internal/log"
	"finview/internal/ports"
)

// Publisher announces accepted transactions.
type Publisher interface {
	PublishTransactionCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error
}

// TransactionService orchestrates the create flow across the store and AMQP
type TransactionService struct {
	store     ports.TransactionWriter
	publisher Publisher
	norm      *dates.Normalizer
	logger    *log.Logger
}

// NewTransactionService wires the create flow. publisher may be nil, in
// which case nothing is announced.
func NewTransactionService(store ports.TransactionWriter, publisher Publisher, norm *dates.Normalizer, logger *log.Logger) *TransactionService {
	if norm == nil {
		norm = dates.Default()
	}
	if logger == nil {
		logger = log.Default(log.ComponentSubmit)
	}
	return &TransactionService{
		store:     store,
		publisher: publisher,
		norm:      norm,
		logger:    logger,
	}
}

// Create validates in, stamps its date in the backend wire format, saves it
// and publishes a created message. A failed publish is logged only: the
// record is already stored.
func (s *TransactionService) Create(ctx context.Context, kind core.Kind, in core.NewTransaction) (core.Transaction, error) {
	if !kind.Valid() {
		return core.Transaction{}, core.ErrUnknownKind
	}
	in = in.Normalized()
	now := s.norm.Now()
	if err := in.ValidateAt(s.norm, now); err != nil {
		return core.Transaction{}, err
	}

	raw := in.CreateDate
	if raw.IsZero() {
		raw = dates.FromTime(now)
	}
	at := s.norm.NormalizeAt(raw, now)
	wire := s.norm.ToBackendISOWithOffset(dates.FromTime(time.UnixMilli(at)))

	tx := core.Transaction{
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		CreateDate:  dates.FromString(wire),
	}
	id, err := s.store.SaveTransaction(ctx, kind, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save %s: %w", kind, err)
	}
	tx.ID = id

	fields := log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(string(kind), id.String(), tx.Amount.String(), tx.Category)
	s.logger.InfoContext(ctx, "Transaction created", fields.ToSlice()...)

	if err := s.publish(ctx, kind, tx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction created message",
			log.FieldOperation, log.OpPublish,
			log.FieldTxID, id.String(),
			log.FieldError, err)
	}
	return tx, nil
}

func (s *TransactionService) publish(ctx context.Context, kind core.Kind, tx core.Transaction) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping created message")
		return nil
	}
	return s.publisher.PublishTransactionCreated(ctx, amqp.NewTransactionCreatedMessage(kind, tx))
}
