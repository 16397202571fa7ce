package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finview/internal/core"
	"finview/internal/dates"
	"finview/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the local snapshot of the remote collections. Raw
// dates are stored verbatim so that interpretation stays in the dates
// package.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("SQLite snapshot ready",
		"db_path", dbPath,
		"schema_version", version)

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const listQuery = `
SELECT id, amount, category, description, create_date_kind, create_date_raw
FROM transactions
WHERE kind = ?
ORDER BY seq`

// ListTransactions implements ports.TransactionLister
func (r *SQLiteRepository) ListTransactions(ctx context.Context, kind core.Kind) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, listQuery, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s transactions: %w", kind, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			id, amount, category, description string
			dateKind, dateRaw                 string
		)
		if err := rows.Scan(&id, &amount, &category, &description, &dateKind, &dateRaw); err != nil {
			return nil, fmt.Errorf("scan %s transaction: %w", kind, err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("decode amount of %s %s: %w", kind, id, err)
		}
		out = append(out, core.Transaction{
			ID:          core.ID(id),
			Amount:      value,
			Category:    category,
			Description: description,
			CreateDate:  dates.Decode(dates.Kind(dateKind), dateRaw),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s transactions: %w", kind, err)
	}
	return out, nil
}

const upsertQuery = `
INSERT INTO transactions (kind, id, amount, category, description, create_date_kind, create_date_raw)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (kind, id) DO UPDATE SET
    amount = excluded.amount,
    category = excluded.category,
    description = excluded.description,
    create_date_kind = excluded.create_date_kind,
    create_date_raw = excluded.create_date_raw,
    updated_at = CURRENT_TIMESTAMP`

const bumpVersionQuery = `UPDATE snapshot_meta SET value = value + 1 WHERE key = 'version'`

// SaveTransaction implements ports.TransactionWriter
func (r *SQLiteRepository) SaveTransaction(ctx context.Context, kind core.Kind, t core.Transaction) (core.ID, error) {
	if !kind.Valid() {
		return "", core.ErrUnknownKind
	}
	if t.ID == "" {
		t.ID = core.ID(uuid.NewString())
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsert(ctx, tx, kind, t); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, bumpVersionQuery)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("save %s %s: %w", kind, t.ID, err)
	}

	r.logger.DebugContext(ctx, "Transaction saved to snapshot",
		log.FieldKind, string(kind),
		log.FieldTxID, t.ID.String(),
		log.FieldAmount, t.Amount.String())
	return t.ID, nil
}

// ReplaceAll swaps the stored collection of kind for txs in one
// transaction, keeping the given order.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, kind core.Kind, txs []core.Transaction) error {
	if !kind.Valid() {
		return core.ErrUnknownKind
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE kind = ?`, string(kind)); err != nil {
			return err
		}
		for _, t := range txs {
			if t.ID == "" {
				t.ID = core.ID(uuid.NewString())
			}
			if err := upsert(ctx, tx, kind, t); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, bumpVersionQuery)
		return err
	})
	if err != nil {
		return fmt.Errorf("replace %s snapshot: %w", kind, err)
	}

	r.logger.InfoContext(ctx, "Snapshot replaced",
		log.FieldKind, string(kind),
		log.FieldCount, len(txs))
	return nil
}

// Categories implements ports.CategoryLister: the defaults followed by any
// other category seen in the snapshot, in first-seen order.
func (r *SQLiteRepository) Categories(ctx context.Context, kind core.Kind) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category FROM transactions WHERE kind = ? AND category <> '' GROUP BY category ORDER BY MIN(seq)`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s categories: %w", kind, err)
	}
	defer rows.Close()

	var seen []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		seen = append(seen, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return core.MergeCategories(core.DefaultCategories(kind), seen), nil
}

// Version implements ports.Versioner
func (r *SQLiteRepository) Version(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = 'version'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read snapshot version: %w", err)
	}
	return v, nil
}

func upsert(ctx context.Context, tx *sql.Tx, kind core.Kind, t core.Transaction) error {
	_, err := tx.ExecContext(ctx, upsertQuery,
		string(kind),
		t.ID.String(),
		t.Amount.String(),
		t.Category,
		t.Description,
		string(t.CreateDate.Kind()),
		t.CreateDate.String())
	return err
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
