package analytics

import (
	"fmt"
	"strings"
	"time"
)

// Labeler renders bucket labels for charts.
type Labeler interface {
	// Day labels a single calendar day, e.g. "6 дек.".
	Day(t time.Time) string
	// Month labels a calendar month, e.g. "дек.".
	Month(t time.Time) string
	// Range labels an inclusive span of days.
	Range(from, to time.Time) string
}

// monthLabels is a Labeler driven by fixed month-name tables.
type monthLabels struct {
	// inflected is used next to a day number.
	inflected [12]string
	// standalone is used for whole-month buckets.
	standalone [12]string
	// monthFirst puts the month before the day ("Dec 6").
	monthFirst bool
}

var russian = monthLabels{
	inflected: [12]string{
		"янв.", "февр.", "мар.", "апр.", "мая", "июн.",
		"июл.", "авг.", "сент.", "окт.", "нояб.", "дек.",
	},
	standalone: [12]string{
		"янв.", "февр.", "март", "апр.", "май", "июнь",
		"июль", "авг.", "сент.", "окт.", "нояб.", "дек.",
	},
}

var english = monthLabels{
	inflected: [12]string{
		"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
	},
	standalone: [12]string{
		"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
	},
	monthFirst: true,
}

var locales = map[string]Labeler{
	"ru": russian,
	"en": english,
}

// LabelerFor returns the labeler for a locale ("ru", "en", "ru-RU", ...).
// Unknown locales get Russian labels.
func LabelerFor(locale string) Labeler {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	if l, ok := locales[locale]; ok {
		return l
	}
	return russian
}

func (m monthLabels) Day(t time.Time) string {
	name := m.inflected[t.Month()-1]
	if m.monthFirst {
		return fmt.Sprintf("%s %d", name, t.Day())
	}
	return fmt.Sprintf("%d %s", t.Day(), name)
}

func (m monthLabels) Month(t time.Time) string {
	return m.standalone[t.Month()-1]
}

func (m monthLabels) Range(from, to time.Time) string {
	if from.Year() == to.Year() && from.Month() == to.Month() {
		name := m.inflected[from.Month()-1]
		if m.monthFirst {
			return fmt.Sprintf("%s %d-%d", name, from.Day(), to.Day())
		}
		return fmt.Sprintf("%d-%d %s", from.Day(), to.Day(), name)
	}
	return m.Day(from) + "-" + m.Day(to)
}
