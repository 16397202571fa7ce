// Package analytics turns raw transaction collections into the aggregates the
// dashboard and history views render: period-filtered subsets, category
// totals, fixed-length time series and a merged history.
//
// Every function is pure. The current time is passed in, inputs are never
// modified and an Engine holds only immutable configuration, so one Engine
// can serve concurrent callers.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finview/internal/core"
	"finview/internal/dates"
)

// FallbackCategory labels records without a category.
const FallbackCategory = "Other"

// MonthBuckets selects the bucket shape of the month period.
type MonthBuckets string

const (
	MonthDaily  MonthBuckets = "daily"
	MonthWeekly MonthBuckets = "weekly"
)

// CategoryTotal is one slice of the category pie. ID always equals Label.
type CategoryTotal struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
	ID    string          `json:"id"`
}

// Series holds parallel chart axes, oldest bucket first.
type Series struct {
	Labels []string          `json:"labels"`
	Values []decimal.Decimal `json:"values"`
}

// Len returns the number of buckets.
func (s Series) Len() int {
	return len(s.Labels)
}

// HistoryEntry is one row of the unified history list.
type HistoryEntry struct {
	ID           string          `json:"id"`
	Kind         core.Kind       `json:"kind"`
	Instant      int64           `json:"instant"`
	DisplayDate  string          `json:"displayDate"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	SignedAmount decimal.Decimal `json:"signedAmount"`
}

// Engine evaluates period filters, category groups, series and history.
type Engine struct {
	norm   *dates.Normalizer
	labels Labeler
	month  MonthBuckets
}

// Option configures an Engine.
type Option func(*Engine)

// WithLabeler sets the chart label renderer.
func WithLabeler(l Labeler) Option {
	return func(e *Engine) {
		if l != nil {
			e.labels = l
		}
	}
}

// WithMonthBuckets picks daily (default) or weekly month buckets.
func WithMonthBuckets(m MonthBuckets) Option {
	return func(e *Engine) {
		if m == MonthWeekly {
			e.month = MonthWeekly
		} else {
			e.month = MonthDaily
		}
	}
}

// NewEngine returns an Engine that interprets dates with norm. A nil norm
// uses dates.Default().
func NewEngine(norm *dates.Normalizer, opts ...Option) *Engine {
	if norm == nil {
		norm = dates.Default()
	}
	e := &Engine{
		norm:   norm,
		labels: LabelerFor("ru"),
		month:  MonthDaily,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Normalizer returns the normalizer every operation routes dates through.
func (e *Engine) Normalizer() *dates.Normalizer {
	return e.norm
}

// StrategyFor resolves the registered strategy for period. Unknown periods
// use the week shape.
func (e *Engine) StrategyFor(period core.Period) PeriodStrategy {
	key := StrategyWeek
	switch period {
	case core.PeriodMonth:
		key = StrategyMonthDaily
		if e.month == MonthWeekly {
			key = StrategyMonthWeekly
		}
	case core.PeriodYear:
		key = StrategyYear
	}
	s, err := GetPeriodStrategy(key)
	if err != nil {
		return DailyStrategy{WindowDays: 7, Days: 7}
	}
	return s
}

func (e *Engine) instant(tx core.Transaction, now time.Time) time.Time {
	return time.UnixMilli(e.norm.NormalizeAt(tx.CreateDate, now)).In(e.norm.Loc())
}

// FilterByPeriod returns the records whose normalized date is at or after
// the period's lower bound: local midnight 7, 30 or 365 days before now.
// Unparseable dates resolve to now and are kept.
func (e *Engine) FilterByPeriod(records []core.Transaction, period core.Period, now time.Time) []core.Transaction {
	now = now.In(e.norm.Loc())
	lower := e.StrategyFor(period).LowerBound(now)
	out := make([]core.Transaction, 0, len(records))
	for _, tx := range records {
		if !e.instant(tx, now).Before(lower) {
			out = append(out, tx)
		}
	}
	return out
}

// GroupByCategory sums amounts per category in first-seen order. Blank
// categories are reported as FallbackCategory.
func (e *Engine) GroupByCategory(records []core.Transaction) []CategoryTotal {
	out := make([]CategoryTotal, 0)
	index := make(map[string]int)
	for _, tx := range records {
		label := strings.TrimSpace(tx.Category)
		if label == "" {
			label = FallbackCategory
		}
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, CategoryTotal{Label: label, Value: decimal.Zero, ID: label})
		}
		out[i].Value = out[i].Value.Add(tx.Amount)
	}
	return out
}

// TotalAmount sums every record's amount.
func (e *Engine) TotalAmount(records []core.Transaction) decimal.Decimal {
	return core.Sum(records)
}

// Bucket spreads records over the period's fixed slots. Empty slots are
// zero and records outside every slot are ignored.
func (e *Engine) Bucket(records []core.Transaction, period core.Period, now time.Time) Series {
	now = now.In(e.norm.Loc())
	slots := e.StrategyFor(period).Slots(now, e.labels)

	series := Series{
		Labels: make([]string, len(slots)),
		Values: make([]decimal.Decimal, len(slots)),
	}
	for i, s := range slots {
		series.Labels[i] = s.Label
		series.Values[i] = decimal.Zero
	}

	for _, tx := range records {
		at := e.instant(tx, now)
		i := sort.Search(len(slots), func(i int) bool { return at.Before(slots[i].End) })
		if i < len(slots) && slots[i].contains(at) {
			series.Values[i] = series.Values[i].Add(tx.Amount)
		}
	}
	return series
}

// Merge combines both collections into one history, newest first.
// Unparseable dates fall back to the normalizer's clock.
func (e *Engine) Merge(expenses, incomes []core.Transaction) []HistoryEntry {
	return e.MergeAt(expenses, incomes, e.norm.Now())
}

// MergeAt is Merge with an explicit fallback instant.
func (e *Engine) MergeAt(expenses, incomes []core.Transaction, now time.Time) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(expenses)+len(incomes))
	out = e.appendEntries(out, core.KindExpense, expenses, now)
	out = e.appendEntries(out, core.KindIncome, incomes, now)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Instant > out[j].Instant
	})
	return out
}

func (e *Engine) appendEntries(out []HistoryEntry, kind core.Kind, records []core.Transaction, now time.Time) []HistoryEntry {
	for _, tx := range records {
		ms := e.norm.NormalizeAt(tx.CreateDate, now)
		out = append(out, HistoryEntry{
			ID:           string(kind) + "_" + tx.ID.String(),
			Kind:         kind,
			Instant:      ms,
			DisplayDate:  e.norm.DisplayInstant(ms),
			Category:     tx.Category,
			Description:  tx.Description,
			SignedAmount: tx.Amount.Mul(kind.Sign()),
		})
	}
	return out
}
