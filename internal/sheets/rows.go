// Package sheets turns merged history into spreadsheet rows. Adapters in
// subpackages write those rows somewhere.
package sheets

import (
	"finview/internal/analytics"
)

// Header is the first row of an exported history sheet.
var Header = []any{"Date", "Kind", "Category", "Description", "Amount"}

// HistoryRows renders entries in the order given, one row each. Amounts are
// signed with two decimals so the sheet can sum a column directly.
func HistoryRows(entries []analytics.HistoryEntry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			e.DisplayDate,
			string(e.Kind),
			e.Category,
			e.Description,
			e.SignedAmount.StringFixed(2),
		})
	}
	return rows
}

// WithHeader prepends Header to rows.
func WithHeader(rows [][]any) [][]any {
	return append([][]any{Header}, rows...)
}
