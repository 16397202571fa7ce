package ports

import (
	"context"

	"finview/internal/analytics"
	"finview/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionLister returns one collection in the order the data layer
	// delivered it.
	TransactionLister interface {
		ListTransactions(ctx context.Context, kind core.Kind) ([]core.Transaction, error)
	}

	// TransactionWriter upserts a record by (kind, ID). An empty ID is
	// assigned by the store and returned.
	TransactionWriter interface {
		SaveTransaction(ctx context.Context, kind core.Kind, tx core.Transaction) (core.ID, error)
	}

	// CategoryLister returns the selectable categories for a kind.
	CategoryLister interface {
		Categories(ctx context.Context, kind core.Kind) ([]string, error)
	}

	// Versioner reports a counter that changes on every write, used to key
	// memoized aggregates.
	Versioner interface {
		Version(ctx context.Context) (int64, error)
	}

	// TransactionStore is everything the services need from a store.
	TransactionStore interface {
		TransactionLister
		TransactionWriter
		CategoryLister
		Versioner
	}

	// HistoryExporter writes merged history rows to an external sink and
	// returns the number of rows written.
	HistoryExporter interface {
		ExportHistory(ctx context.Context, entries []analytics.HistoryEntry) (int, error)
	}
)
