// Package dates is the single place where raw transaction dates are
// interpreted. Every other package routes through a Normalizer so one raw
// value always maps to one instant.
package dates

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finview/internal/log"
)

// maxMillis bounds the representable range to ±100,000,000 days around the
// epoch, the same range browsers accept for a date value.
const maxMillis = 8.64e15

const (
	displayLayout = "02.01.2006"
	backendLayout = "2006-01-02T15:04:05-07:00"
)

var (
	numericOnly = regexp.MustCompile(`^\d+$`)
	plainDate   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	zoneSuffix  = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)
)

// isoLayouts are tried in order for strings containing 'T' once a zone
// marker is guaranteed.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z0700",
}

// looseLayouts are tried, in the normalizer's location, for anything the
// earlier rules did not claim.
var looseLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RubyDate,
	time.UnixDate,
	time.ANSIC,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon Jan 2 2006",
}

// Normalizer converts RawDate values into instants (epoch milliseconds).
// The zero value is usable: it reads local time, the wall clock and the
// default logger.
type Normalizer struct {
	// Location is the "local" zone for calendar rules. Defaults to time.Local.
	Location *time.Location
	// Clock supplies the fallback instant. Defaults to time.Now.
	Clock func() time.Time
	// Logger receives a warning for every fallback.
	Logger *log.Logger
}

// Default returns a Normalizer bound to the host zone and wall clock.
func Default() *Normalizer {
	return &Normalizer{}
}

// In returns a Normalizer sharing n's clock and logger but using loc.
func (n *Normalizer) In(loc *time.Location) *Normalizer {
	return &Normalizer{Location: loc, Clock: n.Clock, Logger: n.Logger}
}

// Loc returns the location used for local calendar fields.
func (n *Normalizer) Loc() *time.Location {
	if n == nil || n.Location == nil {
		return time.Local
	}
	return n.Location
}

// Now returns the normalizer's current instant.
func (n *Normalizer) Now() time.Time {
	if n == nil || n.Clock == nil {
		return time.Now()
	}
	return n.Clock()
}

func (n *Normalizer) logger() *log.Logger {
	if n == nil || n.Logger == nil {
		return log.Default(log.ComponentDates)
	}
	return n.Logger
}

// Normalize returns the instant for raw in epoch milliseconds. It never
// fails: unparseable input yields the current instant and a warning.
func (n *Normalizer) Normalize(raw RawDate) int64 {
	return n.NormalizeAt(raw, n.Now())
}

// NormalizeAt is Normalize with an explicit fallback instant, so callers
// that already hold "now" stay deterministic.
func (n *Normalizer) NormalizeAt(raw RawDate, now time.Time) int64 {
	if ms, ok := n.parse(raw); ok {
		return ms
	}
	n.logger().Warn("Unparseable transaction date, using current time",
		log.FieldRawDate, raw.String(),
		log.FieldRawDateKind, string(raw.Kind()),
		log.FieldOperation, log.OpNormalize)
	return now.UnixMilli()
}

// Parse reports the instant for raw and whether it was understood,
// without falling back.
func (n *Normalizer) Parse(raw RawDate) (int64, bool) {
	return n.parse(raw)
}

// Time returns the normalized instant as a time in the normalizer's location.
func (n *Normalizer) Time(raw RawDate) time.Time {
	return time.UnixMilli(n.Normalize(raw)).In(n.Loc())
}

// ToSortKey is the ordering key for raw; it equals Normalize.
func (n *Normalizer) ToSortKey(raw RawDate) int64 {
	return n.Normalize(raw)
}

// ToDisplayDate renders raw as DD.MM.YYYY using local calendar fields.
func (n *Normalizer) ToDisplayDate(raw RawDate) string {
	return n.Time(raw).Format(displayLayout)
}

// DisplayInstant renders an already normalized instant as DD.MM.YYYY.
func (n *Normalizer) DisplayInstant(ms int64) string {
	return time.UnixMilli(ms).In(n.Loc()).Format(displayLayout)
}

// ToBackendISOWithOffset renders raw as YYYY-MM-DDTHH:mm:ss±HH:MM with the
// local offset in effect at that instant. This is the createDate wire
// format for new records.
func (n *Normalizer) ToBackendISOWithOffset(raw RawDate) string {
	return n.Time(raw).Format(backendLayout)
}

func (n *Normalizer) parse(raw RawDate) (int64, bool) {
	switch raw.Kind() {
	case KindNumber:
		return secondsToMillis(raw.num)
	case KindTime:
		if raw.t.IsZero() {
			return 0, false
		}
		return checked(raw.t.UnixMilli())
	case KindString:
		return n.parseString(strings.TrimSpace(raw.str))
	default:
		return 0, false
	}
}

func (n *Normalizer) parseString(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}

	if numericOnly.MatchString(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return secondsToMillis(float64(sec))
	}

	if strings.Contains(s, "T") {
		iso := s
		if !zoneSuffix.MatchString(iso) {
			iso += "Z"
		}
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, iso); err == nil {
				return checked(t.UnixMilli())
			}
		}
		// Strings like RFC 1123 contain a 'T' too; let the loose rules try.
	}

	if m := plainDate.FindStringSubmatch(s); m != nil {
		return n.localNoon(m[1], m[2], m[3])
	}

	loc := n.Loc()
	for _, layout := range looseLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return checked(t.UnixMilli())
		}
	}
	return 0, false
}

// localNoon builds the local calendar day at 12:00 so that zone shifts of
// up to ±12h never move the date to a neighbouring day.
func (n *Normalizer) localNoon(ys, ms, ds string) (int64, bool) {
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)
	t := time.Date(y, time.Month(m), d, 12, 0, 0, 0, n.Loc())
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return 0, false
	}
	return checked(t.UnixMilli())
}

func secondsToMillis(sec float64) (int64, bool) {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return 0, false
	}
	ms := math.Round(sec * 1000)
	if math.Abs(ms) > maxMillis {
		return 0, false
	}
	return int64(ms), true
}

func checked(ms int64) (int64, bool) {
	if math.Abs(float64(ms)) > maxMillis {
		return 0, false
	}
	return ms, true
}
