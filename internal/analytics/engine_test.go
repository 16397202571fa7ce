package analytics

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finview/internal/core"
	"finview/internal/dates"
	"finview/internal/log"
)

var msk = time.FixedZone("MSK", 3*60*60)

// now is Saturday 10 May 2025, 15:30 Moscow time.
var now = time.Date(2025, 5, 10, 15, 30, 0, 0, msk)

func testEngine(opts ...Option) *Engine {
	norm := &dates.Normalizer{
		Location: msk,
		Clock:    func() time.Time { return now },
		Logger:   log.Discard(),
	}
	return NewEngine(norm, opts...)
}

func tx(id string, amount int64, category string, raw dates.RawDate) core.Transaction {
	return core.Transaction{
		ID:         core.ID(id),
		Amount:     decimal.NewFromInt(amount),
		Category:   category,
		CreateDate: raw,
	}
}

func iso(t time.Time) dates.RawDate {
	return dates.FromString(t.UTC().Format(time.RFC3339))
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID.String()
	}
	return out
}

func TestFilterByPeriod_MonthScenario(t *testing.T) {
	e := testEngine()
	old := tx("old", 10, "A", iso(now.Add(-40*24*time.Hour)))
	recent := tx("recent", 10, "A", iso(now.Add(-10*24*time.Hour)))

	if got := e.FilterByPeriod([]core.Transaction{old}, core.PeriodMonth, now); len(got) != 0 {
		t.Fatalf("40 days old record must be outside the month window, got %v", ids(got))
	}
	got := e.FilterByPeriod([]core.Transaction{recent}, core.PeriodMonth, now)
	if len(got) != 1 || got[0].ID != "recent" {
		t.Fatalf("10 days old record must be inside the month window, got %v", ids(got))
	}
}

func TestFilterByPeriod_Bounds(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name   string
		period core.Period
		raw    dates.RawDate
		want   bool
	}{
		{"week lower bound is local midnight", core.PeriodWeek, dates.FromString("2025-05-03T00:00:00+03:00"), true},
		{"week just before bound", core.PeriodWeek, dates.FromString("2025-05-02T23:59:59+03:00"), false},
		{"week plain date on bound day", core.PeriodWeek, dates.FromString("2025-05-03"), true},
		{"month lower bound", core.PeriodMonth, dates.FromString("2025-04-10T00:00:00+03:00"), true},
		{"month before bound", core.PeriodMonth, dates.FromString("2025-04-09T23:00:00+03:00"), false},
		{"year lower bound", core.PeriodYear, dates.FromString("2024-05-10"), true},
		{"year before bound", core.PeriodYear, dates.FromString("2024-05-09"), false},
		{"future records are kept", core.PeriodWeek, dates.FromString("2025-06-01"), true},
		{"unparseable dates are kept", core.PeriodWeek, dates.FromString("not a date"), true},
		{"missing dates are kept", core.PeriodYear, dates.RawDate{}, true},
		{"seconds timestamp", core.PeriodWeek, dates.FromSeconds(float64(now.Add(-2 * 24 * time.Hour).Unix())), true},
		{"unknown period uses week window", core.Period("decade"), dates.FromString("2025-04-01"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.FilterByPeriod([]core.Transaction{tx("1", 1, "A", tt.raw)}, tt.period, now)
			if (len(got) == 1) != tt.want {
				t.Errorf("included = %v, want %v", len(got) == 1, tt.want)
			}
		})
	}
}

func TestFilterByPeriod_PreservesOrderAndInput(t *testing.T) {
	e := testEngine()
	in := []core.Transaction{
		tx("a", 1, "A", dates.FromString("2025-05-09")),
		tx("b", 1, "A", dates.FromString("2020-01-01")),
		tx("c", 1, "A", dates.FromString("2025-05-01")),
	}
	got := e.FilterByPeriod(in, core.PeriodMonth, now)
	if fmt.Sprint(ids(got)) != "[a c]" {
		t.Fatalf("got %v, want [a c]", ids(got))
	}
	if fmt.Sprint(ids(in)) != "[a b c]" {
		t.Fatalf("input modified: %v", ids(in))
	}
}

func TestGroupByCategory_Scenario(t *testing.T) {
	e := testEngine()
	got := e.GroupByCategory([]core.Transaction{
		tx("1", 100, "A", dates.RawDate{}),
		tx("2", 50, "A", dates.RawDate{}),
		tx("3", 20, "B", dates.RawDate{}),
	})
	want := []CategoryTotal{
		{Label: "A", Value: decimal.NewFromInt(150), ID: "A"},
		{Label: "B", Value: decimal.NewFromInt(20), ID: "B"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d groups, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Label != want[i].Label || got[i].ID != want[i].ID || !got[i].Value.Equal(want[i].Value) {
			t.Errorf("group %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGroupByCategory_FirstSeenOrderAndFallback(t *testing.T) {
	e := testEngine()
	got := e.GroupByCategory([]core.Transaction{
		tx("1", 1, "small", dates.RawDate{}),
		tx("2", 1000, "big", dates.RawDate{}),
		tx("3", 5, "", dates.RawDate{}),
		tx("4", 5, "  ", dates.RawDate{}),
		tx("5", 1, "small", dates.RawDate{}),
	})
	labels := make([]string, len(got))
	for i, g := range got {
		labels[i] = g.Label
	}
	if fmt.Sprint(labels) != fmt.Sprint([]string{"small", "big", FallbackCategory}) {
		t.Fatalf("labels = %v", labels)
	}
	if !got[2].Value.Equal(decimal.NewFromInt(10)) {
		t.Errorf("fallback total = %s, want 10", got[2].Value)
	}
}

func TestGroupByCategory_SumsToTotal(t *testing.T) {
	e := testEngine()
	r := rand.New(rand.NewSource(42))
	categories := []string{"Продукты", "Транспорт", "", "Кафе"}
	for round := 0; round < 50; round++ {
		n := r.Intn(20)
		records := make([]core.Transaction, n)
		for i := range records {
			amount := decimal.New(r.Int63n(1_000_000), -2)
			records[i] = core.Transaction{
				ID:       core.ID(fmt.Sprint(i)),
				Amount:   amount,
				Category: categories[r.Intn(len(categories))],
			}
		}
		sum := decimal.Zero
		for _, g := range e.GroupByCategory(records) {
			sum = sum.Add(g.Value)
		}
		if total := e.TotalAmount(records); !sum.Equal(total) {
			t.Fatalf("round %d: group sum %s != total %s", round, sum, total)
		}
	}
}

func TestBucket_Year(t *testing.T) {
	e := testEngine()

	empty := e.Bucket(nil, core.PeriodYear, now)
	if len(empty.Labels) != 12 || len(empty.Values) != 12 {
		t.Fatalf("year series must have 12 buckets, got %d/%d", len(empty.Labels), len(empty.Values))
	}
	for i, v := range empty.Values {
		if !v.IsZero() {
			t.Errorf("bucket %d = %s, want 0", i, v)
		}
	}
	wantLabels := []string{"июнь", "июль", "авг.", "сент.", "окт.", "нояб.", "дек.", "янв.", "февр.", "март", "апр.", "май"}
	if fmt.Sprint(empty.Labels) != fmt.Sprint(wantLabels) {
		t.Errorf("labels = %v, want %v", empty.Labels, wantLabels)
	}

	s := e.Bucket([]core.Transaction{
		tx("1", 100, "A", dates.FromString("2024-06-15")),
		tx("2", 5, "A", dates.FromString("2025-05-01T12:00:00Z")),
		tx("3", 7, "A", dates.FromString("2025-04-30T22:00:00Z")), // already May in Moscow
		tx("4", 999, "A", dates.FromString("2024-05-31")),         // before the first bucket
		tx("5", 3, "A", dates.FromString("2025-01-31")),
	}, core.PeriodYear, now)
	checkValues(t, s, map[int]int64{0: 100, 7: 3, 11: 12})
}

func TestBucket_Week(t *testing.T) {
	e := testEngine()
	s := e.Bucket([]core.Transaction{
		tx("1", 10, "A", dates.FromString("2025-05-04T10:00:00+03:00")),
		tx("2", 20, "A", dates.FromString("2025-05-09")),
		tx("3", 30, "A", dates.FromString("2025-05-09T22:30:00Z")), // 01:30 on the 10th in Moscow
		tx("4", 40, "A", dates.FromString("2025-05-03T23:59:59+03:00")),
		tx("5", 50, "A", dates.FromString("garbage")), // falls back to now
	}, core.PeriodWeek, now)

	if s.Len() != 7 {
		t.Fatalf("week series must have 7 buckets, got %d", s.Len())
	}
	if s.Labels[0] != "4 мая" || s.Labels[6] != "10 мая" {
		t.Errorf("labels = %v", s.Labels)
	}
	checkValues(t, s, map[int]int64{0: 10, 5: 20, 6: 80})
}

func TestBucket_MonthDaily(t *testing.T) {
	e := testEngine()
	s := e.Bucket([]core.Transaction{
		tx("1", 10, "A", dates.FromString("2025-04-11")),
		tx("2", 20, "A", dates.FromString("2025-04-10")),
		tx("3", 30, "A", dates.FromString("2025-05-10")),
	}, core.PeriodMonth, now)

	if s.Len() != 30 {
		t.Fatalf("month series must have 30 buckets, got %d", s.Len())
	}
	if s.Labels[0] != "11 апр." || s.Labels[29] != "10 мая" {
		t.Errorf("first/last labels = %q/%q", s.Labels[0], s.Labels[29])
	}
	checkValues(t, s, map[int]int64{0: 10, 29: 30})
}

func TestBucket_MonthWeekly(t *testing.T) {
	e := testEngine(WithMonthBuckets(MonthWeekly))
	s := e.Bucket([]core.Transaction{
		tx("1", 10, "A", dates.FromString("2025-04-14")),
		tx("2", 20, "A", dates.FromString("2025-05-04")),
		tx("3", 30, "A", dates.FromString("2025-05-05T00:00:00+03:00")),
		tx("4", 40, "A", dates.FromString("2025-04-13")),
	}, core.PeriodMonth, now)

	wantLabels := []string{"14-20 апр.", "21-27 апр.", "28 апр.-4 мая", "5-11 мая"}
	if fmt.Sprint(s.Labels) != fmt.Sprint(wantLabels) {
		t.Fatalf("labels = %v, want %v", s.Labels, wantLabels)
	}
	checkValues(t, s, map[int]int64{0: 10, 2: 20, 3: 30})
}

func TestBucket_UnknownPeriodUsesWeekShape(t *testing.T) {
	e := testEngine()
	s := e.Bucket(nil, core.Period("fortnight"), now)
	if s.Len() != 7 || len(s.Values) != 7 {
		t.Fatalf("unknown period must produce 7 buckets, got %d", s.Len())
	}
}

func TestBucket_DSTDayIsOneBucket(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	norm := &dates.Normalizer{Location: berlin, Logger: log.Discard()}
	e := NewEngine(norm, WithLabeler(LabelerFor("en")))
	at := time.Date(2025, 3, 31, 12, 0, 0, 0, berlin)

	s := e.Bucket([]core.Transaction{
		tx("1", 1, "A", dates.FromString("2025-03-30T00:30:00+01:00")),
		tx("2", 2, "A", dates.FromString("2025-03-30T23:30:00+02:00")),
		tx("3", 4, "A", dates.FromString("2025-03-31T00:00:00+02:00")),
	}, core.PeriodWeek, at)

	if s.Labels[5] != "Mar 30" {
		t.Fatalf("labels = %v", s.Labels)
	}
	checkValues(t, s, map[int]int64{5: 3, 6: 4})
}

func TestBucket_Deterministic(t *testing.T) {
	e := testEngine()
	records := []core.Transaction{
		tx("1", 10, "A", dates.FromString("2025-05-04")),
		tx("2", 20, "B", dates.FromString("bad")),
	}
	a := e.Bucket(records, core.PeriodMonth, now)
	b := e.Bucket(records, core.PeriodMonth, now)
	if fmt.Sprint(a.Labels) != fmt.Sprint(b.Labels) {
		t.Fatal("labels differ between identical calls")
	}
	for i := range a.Values {
		if !a.Values[i].Equal(b.Values[i]) {
			t.Fatalf("value %d differs between identical calls", i)
		}
	}
}

func TestMerge_Scenario(t *testing.T) {
	e := testEngine()
	expenses := []core.Transaction{
		{ID: "1", Amount: decimal.NewFromInt(200), Category: "Продукты", CreateDate: dates.FromString("2025-05-01T12:00:00Z")},
	}
	incomes := []core.Transaction{
		{ID: "1", Amount: decimal.NewFromInt(30000), Category: "Зарплата", CreateDate: dates.FromString("2025-04-22T09:00:00Z")},
	}

	got := e.Merge(expenses, incomes)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Kind != core.KindExpense || !got[0].SignedAmount.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].Kind != core.KindIncome || !got[1].SignedAmount.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("second entry = %+v", got[1])
	}
	if got[0].ID != "expense_1" || got[1].ID != "income_1" {
		t.Errorf("ids = %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].DisplayDate != "01.05.2025" || got[1].DisplayDate != "22.04.2025" {
		t.Errorf("display dates = %s, %s", got[0].DisplayDate, got[1].DisplayDate)
	}
	if got[0].Category != "Продукты" {
		t.Errorf("category = %s", got[0].Category)
	}
}

func TestMerge_LengthOrderAndStability(t *testing.T) {
	e := testEngine()
	same := dates.FromString("2025-05-05T10:00:00Z")
	expenses := []core.Transaction{
		tx("e1", 1, "A", same),
		tx("e2", 1, "A", dates.FromString("2025-01-01")),
		tx("e3", 1, "A", same),
	}
	incomes := []core.Transaction{
		tx("i1", 1, "A", same),
		tx("i2", 1, "A", dates.FromSeconds(float64(time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC).Unix()))),
	}

	got := e.Merge(expenses, incomes)
	if len(got) != len(expenses)+len(incomes) {
		t.Fatalf("len = %d, want %d", len(got), len(expenses)+len(incomes))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Instant > got[i-1].Instant {
			t.Fatalf("entries not sorted descending at %d", i)
		}
	}
	order := make([]string, len(got))
	for i, h := range got {
		order[i] = h.ID
	}
	want := "[income_i2 expense_e1 expense_e3 income_i1 expense_e2]"
	if fmt.Sprint(order) != want {
		t.Fatalf("order = %v, want %s", order, want)
	}
}

func TestMerge_FallbackUsesInjectedNow(t *testing.T) {
	e := testEngine()
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	got := e.MergeAt([]core.Transaction{tx("1", 1, "A", dates.FromString("??"))}, nil, at)
	if got[0].Instant != at.UnixMilli() {
		t.Fatalf("instant = %d, want %d", got[0].Instant, at.UnixMilli())
	}
}

func TestNilInputsBehaveAsEmpty(t *testing.T) {
	e := testEngine()
	if got := e.FilterByPeriod(nil, core.PeriodWeek, now); len(got) != 0 {
		t.Errorf("FilterByPeriod(nil) = %v", got)
	}
	if got := e.GroupByCategory(nil); len(got) != 0 {
		t.Errorf("GroupByCategory(nil) = %v", got)
	}
	if got := e.TotalAmount(nil); !got.IsZero() {
		t.Errorf("TotalAmount(nil) = %s", got)
	}
	if got := e.Merge(nil, nil); len(got) != 0 {
		t.Errorf("Merge(nil, nil) = %v", got)
	}
	s := e.Bucket(nil, core.PeriodMonth, now)
	if s.Len() != 30 {
		t.Errorf("Bucket(nil) len = %d", s.Len())
	}
}

func checkValues(t *testing.T, s Series, want map[int]int64) {
	t.Helper()
	for i, v := range s.Values {
		w := decimal.NewFromInt(want[i])
		if !v.Equal(w) {
			t.Errorf("bucket %d (%s) = %s, want %s", i, s.Labels[i], v, w)
		}
	}
}
