package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"finview/internal/dates"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

const (
	MaxDescriptionLength = 50
	MaxCategoryLength    = 128
)

type (
	// Kind tells which collection a transaction came from.
	Kind string

	// Period selects both the filter window and the bucket shape.
	Period string

	// ID identifies a transaction within its kind. The remote API sends
	// either integers or strings.
	ID string

	// Transaction is a record as delivered by the data layer. It is read-only
	// to the aggregation code.
	Transaction struct {
		ID          ID              `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description,omitempty"`
		CreateDate  dates.RawDate   `json:"createDate"`
	}

	// NewTransaction is the user input of the create flow.
	NewTransaction struct {
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		CreateDate  dates.RawDate   `json:"createDate"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyCategory      = errors.New("empty category")
	ErrCategoryTooLong    = errors.New("category too long (max 128 characters)")
	ErrDescriptionTooLong = errors.New("description too long (max 50 characters)")
	ErrFutureDate         = errors.New("date is in the future")
	ErrUnknownKind        = errors.New("unknown transaction kind")
)

// Kinds lists every kind in display order.
func Kinds() []Kind {
	return []Kind{KindExpense, KindIncome}
}

// ParseKind accepts "expense"/"income" and their plural route forms.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "expenses":
		return KindExpense, nil
	case "income", "incomes":
		return KindIncome, nil
	}
	return "", ErrUnknownKind
}

func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// Sign returns -1 for expenses and +1 for incomes.
func (k Kind) Sign() decimal.Decimal {
	if k == KindExpense {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// ParsePeriod maps a selector to a Period. The dashboard toggle values
// left/center/right are accepted too. Anything else is a week.
func ParsePeriod(s string) Period {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month", "center":
		return PeriodMonth
	case "year", "right":
		return PeriodYear
	default:
		return PeriodWeek
	}
}

func (p Period) Valid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Validate checks the input fields that do not depend on time.
func (t NewTransaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	category := strings.TrimSpace(t.Category)
	if category == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(category) > MaxCategoryLength {
		return ErrCategoryTooLong
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// ValidateAt runs Validate and rejects dates whose local calendar day is
// after now's. Unparseable dates resolve to now and pass.
func (t NewTransaction) ValidateAt(n *dates.Normalizer, now time.Time) error {
	if err := t.Validate(); err != nil {
		return err
	}
	loc := n.Loc()
	at := time.UnixMilli(n.NormalizeAt(t.CreateDate, now)).In(loc)
	today := now.In(loc)
	y1, m1, d1 := at.Date()
	y2, m2, d2 := today.Date()
	if time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC).After(time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)) {
		return ErrFutureDate
	}
	return nil
}

// Normalized returns a copy with trimmed text fields.
func (t NewTransaction) Normalized() NewTransaction {
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)
	return t
}

var defaultCategories = map[Kind][]string{
	KindExpense: {"Продукты", "Развлечения", "Медицина", "Подарки", "Другое"},
	KindIncome:  {"Зарплата", "Переводы"},
}

// DefaultCategories returns the built-in category list for kind.
func DefaultCategories(kind Kind) []string {
	return append([]string(nil), defaultCategories[kind]...)
}

// MergeCategories concatenates lists, dropping blanks and repeats while
// keeping first-seen order.
func MergeCategories(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
