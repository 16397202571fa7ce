package analytics

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finview/internal/core"
)

// PeriodSummary is everything one dashboard card needs for a kind.
type PeriodSummary struct {
	Total      decimal.Decimal `json:"total"`
	ByCategory []CategoryTotal `json:"byCategory"`
	Series     Series          `json:"series"`
	// Axis holds the compact tick label of each series value.
	Axis []string `json:"axis"`
	// HasData is false when every bucket is zero and the chart shows a
	// placeholder instead.
	HasData bool `json:"hasData"`
}

// Dashboard aggregates both kinds for one period.
type Dashboard struct {
	Period   core.Period     `json:"period"`
	Expenses PeriodSummary   `json:"expenses"`
	Incomes  PeriodSummary   `json:"incomes"`
	Balance  decimal.Decimal `json:"balance"`
}

// Summarize filters records to the period and aggregates the subset.
func (e *Engine) Summarize(records []core.Transaction, period core.Period, now time.Time) PeriodSummary {
	inPeriod := e.FilterByPeriod(records, period, now)
	series := e.Bucket(inPeriod, period, now)
	hasData := false
	axis := make([]string, len(series.Values))
	for i, v := range series.Values {
		if !v.IsZero() {
			hasData = true
		}
		axis[i] = FormatCompact(v)
	}
	return PeriodSummary{
		Total:      e.TotalAmount(inPeriod),
		ByCategory: e.GroupByCategory(inPeriod),
		Series:     series,
		Axis:       axis,
		HasData:    hasData,
	}
}

// Dashboard builds both summaries and the period balance.
func (e *Engine) Dashboard(expenses, incomes []core.Transaction, period core.Period, now time.Time) Dashboard {
	if !period.Valid() {
		period = core.PeriodWeek
	}
	exp := e.Summarize(expenses, period, now)
	inc := e.Summarize(incomes, period, now)
	return Dashboard{
		Period:   period,
		Expenses: exp,
		Incomes:  inc,
		Balance:  inc.Total.Sub(exp.Total),
	}
}

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

// FormatCompact renders a chart axis value: 1500 -> "1.5K", 2000000 -> "2M".
// Values below a thousand are printed as is.
func FormatCompact(v decimal.Decimal) string {
	abs := v.Abs()
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	var unit decimal.Decimal
	var suffix string
	switch {
	case abs.GreaterThanOrEqual(million):
		unit, suffix = million, "M"
	case abs.GreaterThanOrEqual(thousand):
		unit, suffix = thousand, "K"
	default:
		return v.String()
	}
	num := abs.Div(unit)
	s := num.String()
	if !num.Equal(num.Truncate(0)) {
		s = strings.Replace(num.StringFixed(1), ".0", "", 1)
	}
	return sign + s + suffix
}
