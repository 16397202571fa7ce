package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finview/internal/analytics"
	"finview/internal/cache"
	"finview/internal/core"
	"finview/internal/dates"
	"finview/internal/log"
	"finview/internal/storage/memory"
)

// countingStore counts list calls on top of the memory store.
type countingStore struct {
	*memory.Store
	lists atomic.Int32
}

func (c *countingStore) ListTransactions(ctx context.Context, kind core.Kind) ([]core.Transaction, error) {
	c.lists.Add(1)
	return c.Store.ListTransactions(ctx, kind)
}

// listOnly hides the Versioner so nothing can be cached.
type listOnly struct {
	inner *countingStore
}

func (l listOnly) ListTransactions(ctx context.Context, kind core.Kind) ([]core.Transaction, error) {
	return l.inner.ListTransactions(ctx, kind)
}

type brokenLister struct{}

func (brokenLister) ListTransactions(context.Context, core.Kind) ([]core.Transaction, error) {
	return nil, errors.New("connection refused")
}

func seededStore(t *testing.T) *countingStore {
	t.Helper()
	s := &countingStore{Store: memory.New()}
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.ReplaceAll(ctx, core.KindExpense, []core.Transaction{
		{ID: "1", Amount: decimal.NewFromInt(200), Category: "Продукты", CreateDate: dates.FromString("2025-05-09T10:00:00+03:00")},
		{ID: "2", Amount: decimal.NewFromInt(50), Category: "Кафе", CreateDate: dates.FromString("2025-05-10T09:00:00+03:00")},
		{ID: "3", Amount: decimal.NewFromInt(999), Category: "Старое", CreateDate: dates.FromString("2024-01-01T10:00:00+03:00")},
	}))
	must(s.ReplaceAll(ctx, core.KindIncome, []core.Transaction{
		{ID: "1", Amount: decimal.NewFromInt(1000), Category: "Зарплата", CreateDate: dates.FromString("2025-05-08T12:00:00+03:00")},
	}))
	return s
}

func newDashboardService(store interface {
	ListTransactions(context.Context, core.Kind) ([]core.Transaction, error)
}) *DashboardService {
	engine := analytics.NewEngine(fixedNormalizer())
	return NewDashboardService(store, engine,
		WithDashboardCache(cache.NewLRUCache[analytics.Dashboard](8, time.Hour)),
		WithHistoryCache(cache.NewLRUCache[[]analytics.HistoryEntry](8, time.Hour)),
		WithDashboardLogger(log.Discard()))
}

func TestDashboardService_Dashboard(t *testing.T) {
	svc := newDashboardService(seededStore(t))

	d, err := svc.Dashboard(context.Background(), core.PeriodWeek)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if !d.Expenses.Total.Equal(decimal.NewFromInt(250)) {
		t.Errorf("expense total = %s, want 250", d.Expenses.Total)
	}
	if !d.Incomes.Total.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("income total = %s, want 1000", d.Incomes.Total)
	}
	if !d.Balance.Equal(decimal.NewFromInt(750)) {
		t.Errorf("balance = %s, want 750", d.Balance)
	}
	if len(d.Expenses.ByCategory) != 2 || d.Expenses.ByCategory[0].Label != "Продукты" {
		t.Errorf("byCategory = %+v", d.Expenses.ByCategory)
	}
	if d.Expenses.Series.Len() != 7 {
		t.Errorf("series length = %d, want 7", d.Expenses.Series.Len())
	}
}

func TestDashboardService_InvalidPeriodFallsBackToWeek(t *testing.T) {
	svc := newDashboardService(seededStore(t))
	d, err := svc.Dashboard(context.Background(), core.Period("decade"))
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.Period != core.PeriodWeek {
		t.Errorf("period = %s, want week", d.Period)
	}
}

func TestDashboardService_CachesUntilVersionChanges(t *testing.T) {
	store := seededStore(t)
	svc := newDashboardService(store)
	ctx := context.Background()

	if _, err := svc.Dashboard(ctx, core.PeriodMonth); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Dashboard(ctx, core.PeriodMonth); err != nil {
		t.Fatal(err)
	}
	if got := store.lists.Load(); got != 2 {
		t.Fatalf("list calls = %d, want 2 (one load for two kinds)", got)
	}

	if _, err := store.SaveTransaction(ctx, core.KindExpense, core.Transaction{
		Amount:     decimal.NewFromInt(1),
		Category:   "Кафе",
		CreateDate: dates.FromString("2025-05-10T10:00:00+03:00"),
	}); err != nil {
		t.Fatal(err)
	}
	d, err := svc.Dashboard(ctx, core.PeriodMonth)
	if err != nil {
		t.Fatal(err)
	}
	if got := store.lists.Load(); got != 4 {
		t.Fatalf("list calls after write = %d, want 4", got)
	}
	if !d.Expenses.Total.Equal(decimal.NewFromInt(251)) {
		t.Errorf("expense total after write = %s, want 251", d.Expenses.Total)
	}
}

func TestDashboardService_NoCacheWithoutVersion(t *testing.T) {
	store := seededStore(t)
	svc := newDashboardService(listOnly{inner: store})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Dashboard(ctx, core.PeriodWeek); err != nil {
			t.Fatal(err)
		}
	}
	if got := store.lists.Load(); got != 4 {
		t.Fatalf("list calls = %d, want 4", got)
	}
}

func TestDashboardService_History(t *testing.T) {
	store := seededStore(t)
	svc := newDashboardService(store)

	h, err := svc.History(context.Background())
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	wantIDs := []string{"expense_2", "expense_1", "income_1", "expense_3"}
	if len(h) != len(wantIDs) {
		t.Fatalf("history length = %d, want %d", len(h), len(wantIDs))
	}
	for i, id := range wantIDs {
		if h[i].ID != id {
			t.Errorf("history[%d] = %s, want %s", i, h[i].ID, id)
		}
	}
	if !h[2].SignedAmount.Equal(decimal.NewFromInt(1000)) || !h[0].SignedAmount.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("signed amounts = %s, %s", h[2].SignedAmount, h[0].SignedAmount)
	}

	if _, err := svc.History(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := store.lists.Load(); got != 2 {
		t.Errorf("list calls = %d, want 2", got)
	}
}

func TestDashboardService_LoadError(t *testing.T) {
	svc := newDashboardService(brokenLister{})
	if _, err := svc.Dashboard(context.Background(), core.PeriodWeek); err == nil {
		t.Error("expected error from Dashboard")
	}
	if _, err := svc.History(context.Background()); err == nil {
		t.Error("expected error from History")
	}
}
