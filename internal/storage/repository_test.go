package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finview/internal/core"
	"finview/internal/dates"
	"finview/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "snapshot.db"), log.Discard())
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 1 || v2 != 1 {
		t.Fatalf("versions = %d, %d, want 1, 1", v1, v2)
	}
}

func TestReplaceAllAndListPreserveRawDates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := []core.Transaction{
		{ID: "1", Amount: decimal.RequireFromString("200.50"), Category: "Продукты", CreateDate: dates.FromString("2025-05-01T12:00:00Z")},
		{ID: "2", Amount: decimal.NewFromInt(15), Category: "Кафе", Description: "обед", CreateDate: dates.FromSeconds(1746100800)},
		{ID: "3", Amount: decimal.NewFromInt(7), Category: "Другое", CreateDate: dates.FromTime(time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC))},
		{ID: "4", Amount: decimal.NewFromInt(1), Category: "Другое"},
	}
	if err := repo.ReplaceAll(ctx, core.KindExpense, in); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := repo.ListTransactions(ctx, core.KindExpense)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d records, want %d", len(got), len(in))
	}
	norm := &dates.Normalizer{Location: time.UTC, Logger: log.Discard()}
	for i := range in {
		if got[i].ID != in[i].ID {
			t.Errorf("record %d id = %s, want %s", i, got[i].ID, in[i].ID)
		}
		if !got[i].Amount.Equal(in[i].Amount) {
			t.Errorf("record %d amount = %s, want %s", i, got[i].Amount, in[i].Amount)
		}
		if got[i].CreateDate.Kind() != in[i].CreateDate.Kind() {
			t.Errorf("record %d date kind = %s, want %s", i, got[i].CreateDate.Kind(), in[i].CreateDate.Kind())
		}
		if i < 3 {
			a, _ := norm.Parse(got[i].CreateDate)
			b, _ := norm.Parse(in[i].CreateDate)
			if a != b {
				t.Errorf("record %d instant changed: %d != %d", i, a, b)
			}
		}
	}
	if got[1].Description != "обед" {
		t.Errorf("description = %q", got[1].Description)
	}

	incomes, err := repo.ListTransactions(ctx, core.KindIncome)
	if err != nil || len(incomes) != 0 {
		t.Fatalf("incomes = %v, err = %v", incomes, err)
	}

	if err := repo.ReplaceAll(ctx, core.KindExpense, in[:1]); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, _ = repo.ListTransactions(ctx, core.KindExpense)
	if len(got) != 1 {
		t.Fatalf("replace must drop old rows, got %d", len(got))
	}
}

func TestSaveTransactionUpsertsAndBumpsVersion(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v0, err := repo.Version(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}

	id, err := repo.SaveTransaction(ctx, core.KindIncome, core.Transaction{
		Amount:     decimal.NewFromInt(100),
		Category:   "Зарплата",
		CreateDate: dates.FromString("2025-05-01T10:00:00+03:00"),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	_, err = repo.SaveTransaction(ctx, core.KindIncome, core.Transaction{
		ID:       id,
		Amount:   decimal.NewFromInt(150),
		Category: "Зарплата",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, _ := repo.ListTransactions(ctx, core.KindIncome)
	if len(got) != 1 || !got[0].Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("upsert result = %+v", got)
	}

	v2, _ := repo.Version(ctx)
	if v2 != v0+2 {
		t.Fatalf("version = %d, want %d", v2, v0+2)
	}

	if _, err := repo.SaveTransaction(ctx, core.Kind("transfer"), core.Transaction{}); !errors.Is(err, core.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestCategoriesMergeDefaultsAndSeen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.ReplaceAll(ctx, core.KindExpense, []core.Transaction{
		{ID: "1", Amount: decimal.NewFromInt(1), Category: "Кафе"},
		{ID: "2", Amount: decimal.NewFromInt(1), Category: "Продукты"},
		{ID: "3", Amount: decimal.NewFromInt(1), Category: "Такси"},
		{ID: "4", Amount: decimal.NewFromInt(1), Category: "Кафе"},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	cats, err := repo.Categories(ctx, core.KindExpense)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	want := []string{"Продукты", "Развлечения", "Медицина", "Подарки", "Другое", "Кафе", "Такси"}
	if len(cats) != len(want) {
		t.Fatalf("categories = %v, want %v", cats, want)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Fatalf("categories = %v, want %v", cats, want)
		}
	}
}
