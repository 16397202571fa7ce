package backend

import (
	"context"
	"errors"
	"fmt"

	"finview/internal/amqp"
	"finview/internal/core"
	"finview/internal/log"
	"finview/internal/storage"
	"finview/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(res, config)
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger.WithComponent(log.ComponentStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.SeedDir != "" {
		if err := f.seedSnapshot(ctx, repo, config.SeedDir); err != nil {
			return nil, errors.Join(err, repo.Close())
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

// seedSnapshot imports the seed files into a snapshot that has never been
// written to.
func (f *DefaultFactory) seedSnapshot(ctx context.Context, repo *storage.SQLiteRepository, dir string) error {
	version, err := repo.Version(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot version: %w", err)
	}
	if version != 0 {
		f.logger.Debug("Snapshot already populated, skipping seed", "version", version)
		return nil
	}

	seed, err := memory.NewFromFiles(dir)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	for _, kind := range core.Kinds() {
		txs, err := seed.ListTransactions(ctx, kind)
		if err != nil {
			return err
		}
		if err := repo.ReplaceAll(ctx, kind, txs); err != nil {
			return fmt.Errorf("seed %s: %w", kind, err)
		}
		f.logger.Info("Seeded snapshot", log.FieldKind, string(kind), log.FieldCount, len(txs))
	}
	return nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	if config.SeedDir == "" {
		f.logger.Info("Initialized memory backend")
		return &Result{Store: memory.New()}, nil
	}

	store, err := memory.NewFromFiles(config.SeedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_dir", config.SeedDir)
	return &Result{Store: store}, nil
}

// attachPublisher connects to AMQP when configured. A broker that cannot be
// reached leaves the backend usable without announcements.
func (f *DefaultFactory) attachPublisher(res *Result, config Config) {
	if config.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without publishing", log.FieldError, err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	res.Publisher = client
	storeCleanup := res.Cleanup
	res.Cleanup = func() error {
		err := client.Close()
		if storeCleanup != nil {
			err = errors.Join(err, storeCleanup())
		}
		return err
	}
}
