// Package datetime canonicalizes the calendar widget's date and time strings.
package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

// DateLayout is the wire format for slot dates, e.g. "December 04, 2025".
const DateLayout = "January 02, 2006"

var (
	headerLayouts = []string{"January 2006", "Jan 2006", "January, 2006", "01/2006"}
	labelLayouts  = []string{
		"January 2, 2006",
		"January 02, 2006",
		"Monday, January 2, 2006",
		"Mon, January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2006-01-02",
	}
	spaceRun = regexp.MustCompile(`\s+`)
)

// Normalizer resolves calendar header and day labels against a clock.
type Normalizer struct {
	now    func() time.Time
	logger *logging.Logger
}

// NewNormalizer returns a Normalizer. A nil now uses time.Now.
func NewNormalizer(now func() time.Time, logger *logging.Logger) *Normalizer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Normalizer{now: now, logger: logger}
}

// Today returns the clock's current civil date.
func (n *Normalizer) Today() time.Time {
	return Civil(n.now())
}

// ParseHeaderToMonth reads a header such as "November 2025". When the text is
// not a month/year it falls back to the clock's month and reports ok=false.
func (n *Normalizer) ParseHeaderToMonth(header string) (int, time.Month, bool) {
	text := squash(header)
	for _, layout := range headerLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Year(), t.Month(), true
		}
	}

	now := n.now()
	n.logger.Warn("calendar header unresolved, assuming current month", "header", header, "year", now.Year(), "month", now.Month().String())
	return now.Year(), now.Month(), false
}

// ResolveDayLabel prefers the accessible label of a day control and falls
// back to the numeric day text within the known year and month.
func (n *Normalizer) ResolveDayLabel(ariaLabel, dayText string, year int, month time.Month) (time.Time, bool) {
	if d, ok := ParseDate(ariaLabel); ok {
		return d, true
	}

	day, err := strconv.Atoi(strings.TrimSpace(dayText))
	if err != nil || day < 1 || day > DaysIn(year, month) {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

// IsWithinHorizon reports whether date <= today + horizonDays. The boundary
// day is included; a zero date is never within.
func IsWithinHorizon(date, today time.Time, horizonDays int) bool {
	if date.IsZero() {
		return false
	}
	cutoff := Civil(today).AddDate(0, 0, horizonDays)
	return !Civil(date).After(cutoff)
}

// ParseDate accepts the label layouts the widget is known to render.
func ParseDate(s string) (time.Time, bool) {
	text := squash(s)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range labelLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return Civil(t), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a civil date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Civil truncates t to its calendar day in UTC.
func Civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func squash(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// MonthLabel is used in log lines.
func MonthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", month, year)
}
