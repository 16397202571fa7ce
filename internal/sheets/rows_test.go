package sheets

import (
	"testing"

	"github.com/shopspring/decimal"

	"finview/internal/analytics"
	"finview/internal/core"
)

func TestHistoryRows(t *testing.T) {
	entries := []analytics.HistoryEntry{
		{ID: "expense_1", Kind: core.KindExpense, DisplayDate: "10.05.2025", Category: "Кафе", Description: "обед", SignedAmount: decimal.RequireFromString("-50.5")},
		{ID: "income_1", Kind: core.KindIncome, DisplayDate: "08.05.2025", Category: "Зарплата", SignedAmount: decimal.NewFromInt(1000)},
	}

	rows := HistoryRows(entries)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	want := [][]any{
		{"10.05.2025", "expense", "Кафе", "обед", "-50.50"},
		{"08.05.2025", "income", "Зарплата", "", "1000.00"},
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("rows[%d][%d] = %v, want %v", i, j, rows[i][j], want[i][j])
			}
		}
	}

	all := WithHeader(rows)
	if len(all) != 3 || all[0][0] != "Date" {
		t.Errorf("WithHeader() = %v", all)
	}
	if len(HistoryRows(nil)) != 0 {
		t.Error("nil entries must yield no rows")
	}
}
