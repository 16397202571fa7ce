// This file implements the Strategy Pattern for period windows and buckets.
// Each period shape (week, month by day, month by week, year) owns its filter
// lower bound and its bucket layout.

package analytics

import (
	"fmt"
	"sync"
	"time"
)

// Slot is one chart bucket. A local time t belongs to it when
// Start <= t < End.
type Slot struct {
	Start time.Time
	End   time.Time
	Label string
}

func (s Slot) contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// PeriodStrategy is the strategy interface for one period shape.
// now is already in the engine's location.
type PeriodStrategy interface {
	// LowerBound is the earliest instant kept by the period filter.
	LowerBound(now time.Time) time.Time
	// Slots returns the contiguous buckets, oldest first. The last one
	// contains now.
	Slots(now time.Time, labels Labeler) []Slot
}

// StrategyKey names a registered PeriodStrategy.
type StrategyKey string

const (
	StrategyWeek        StrategyKey = "week"
	StrategyMonthDaily  StrategyKey = "month-daily"
	StrategyMonthWeekly StrategyKey = "month-weekly"
	StrategyYear        StrategyKey = "year"
)

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysAgo is local midnight of the calendar day n days before now.
func daysAgo(now time.Time, n int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-n, 0, 0, 0, 0, now.Location())
}

// DailyStrategy keeps the last WindowDays days and draws Days daily buckets
// ending today.
type DailyStrategy struct {
	WindowDays int
	Days       int
}

func (s DailyStrategy) LowerBound(now time.Time) time.Time {
	return daysAgo(now, s.WindowDays)
}

func (s DailyStrategy) Slots(now time.Time, labels Labeler) []Slot {
	slots := make([]Slot, 0, s.Days)
	for i := s.Days - 1; i >= 0; i-- {
		start := daysAgo(now, i)
		slots = append(slots, Slot{
			Start: start,
			End:   daysAgo(now, i-1),
			Label: labels.Day(start),
		})
	}
	return slots
}

// WeeklyStrategy keeps the last WindowDays days and draws Weeks
// Monday-anchored buckets, the last one holding the current week.
type WeeklyStrategy struct {
	WindowDays int
	Weeks      int
}

func (s WeeklyStrategy) LowerBound(now time.Time) time.Time {
	return daysAgo(now, s.WindowDays)
}

func (s WeeklyStrategy) Slots(now time.Time, labels Labeler) []Slot {
	sinceMonday := (int(now.Weekday()) + 6) % 7
	slots := make([]Slot, 0, s.Weeks)
	for i := s.Weeks - 1; i >= 0; i-- {
		start := daysAgo(now, sinceMonday+7*i)
		end := daysAgo(now, sinceMonday+7*i-7)
		last := daysAgo(now, sinceMonday+7*i-6)
		slots = append(slots, Slot{
			Start: start,
			End:   end,
			Label: labels.Range(start, last),
		})
	}
	return slots
}

// MonthlyStrategy keeps the last WindowDays days and draws Months monthly
// buckets ending with the current month.
type MonthlyStrategy struct {
	WindowDays int
	Months     int
}

func (s MonthlyStrategy) LowerBound(now time.Time) time.Time {
	return daysAgo(now, s.WindowDays)
}

func (s MonthlyStrategy) Slots(now time.Time, labels Labeler) []Slot {
	y, m, _ := now.Date()
	slots := make([]Slot, 0, s.Months)
	for i := s.Months - 1; i >= 0; i-- {
		start := time.Date(y, m-time.Month(i), 1, 0, 0, 0, 0, now.Location())
		slots = append(slots, Slot{
			Start: start,
			End:   time.Date(y, m-time.Month(i)+1, 1, 0, 0, 0, 0, now.Location()),
			Label: labels.Month(start),
		})
	}
	return slots
}

// periodStrategies maps strategy keys to their implementations.
var (
	strategiesMu     sync.RWMutex
	periodStrategies = map[StrategyKey]PeriodStrategy{
		StrategyWeek:        DailyStrategy{WindowDays: 7, Days: 7},
		StrategyMonthDaily:  DailyStrategy{WindowDays: 30, Days: 30},
		StrategyMonthWeekly: WeeklyStrategy{WindowDays: 30, Weeks: 4},
		StrategyYear:        MonthlyStrategy{WindowDays: 365, Months: 12},
	}
)

// GetPeriodStrategy returns the strategy registered under key.
func GetPeriodStrategy(key StrategyKey) (PeriodStrategy, error) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := periodStrategies[key]
	if !ok {
		return nil, fmt.Errorf("unknown period strategy: %s", key)
	}
	return s, nil
}

// RegisterPeriodStrategy adds or replaces a strategy.
func RegisterPeriodStrategy(key StrategyKey, s PeriodStrategy) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	periodStrategies[key] = s
}
