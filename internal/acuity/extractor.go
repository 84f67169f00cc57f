package acuity

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/internal/engine"
)

var (
	selectWord   = regexp.MustCompile(`(?i)select`)
	spotsPattern = regexp.MustCompile(`(?i)(\d+)\s*spots?\s*left`)
	valueLayouts = []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02T15:04:05"}
)

// ParseCandidate turns a time entry into a slot on date. Entries without a
// recognizable clock time are not bookable and return ok=false.
func ParseCandidate(c Candidate, date time.Time) (availability.Slot, bool) {
	source := c.Text
	if c.Tag == "input" {
		source = c.Value
		if clock, ok := clockFromTimestamp(source); ok {
			return availability.Slot{Date: date, Time: clock, Spots: spotsLeft(c.Text)}, true
		}
	}
	source = strings.TrimSpace(selectWord.ReplaceAllString(source, ""))

	clock, ok := datetime.ParseClock(source)
	if !ok {
		return availability.Slot{}, false
	}
	return availability.Slot{Date: date, Time: clock, Spots: spotsLeft(c.Text)}, true
}

// spotsLeft reads "<N> spot(s) left" from the entry's full text.
func spotsLeft(text string) *int {
	m := spotsPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// clockFromTimestamp handles inputs whose value is a full timestamp.
func clockFromTimestamp(value string) (datetime.Clock, bool) {
	for _, layout := range valueLayouts {
		t, err := time.Parse(layout, strings.TrimSpace(value))
		if err != nil {
			continue
		}
		return datetime.ParseClock(t.Format("3:04 PM"))
	}
	return datetime.Clock{}, false
}

// ExtractMonth collects the slots of every enabled day in the rendered month
// view. Day controls are re-queried by index before each click because a
// click re-renders the widget and invalidates earlier handles.
func (s *Scraper) ExtractMonth(ctx context.Context, year int, month time.Month) ([]availability.Slot, error) {
	days, err := s.eng.QueryAll(ctx, XPathEnabledDays)
	if err != nil {
		return nil, fmt.Errorf("acuity: list days: %w", err)
	}
	count := len(days)
	s.logger.Info("found active days in month view", "count", count, "month", datetime.MonthLabel(year, month))

	var slots []availability.Slot
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return slots, err
		}
		daySlots, err := s.extractDay(ctx, i, year, month)
		if err != nil {
			if engine.IsUnusable(err) {
				return slots, err
			}
			s.logger.Warn("day extraction failed", "index", i, "error", err)
			continue
		}
		slots = append(slots, daySlots...)
	}
	return slots, nil
}

func (s *Scraper) extractDay(ctx context.Context, index, year int, month time.Month) ([]availability.Slot, error) {
	days, err := s.eng.QueryAll(ctx, XPathEnabledDays)
	if err != nil {
		return nil, fmt.Errorf("acuity: re-query days: %w", err)
	}
	if index >= len(days) {
		return nil, nil
	}
	day := days[index]

	label, _, err := day.Attribute(ctx, "aria-label")
	if err != nil {
		return nil, fmt.Errorf("acuity: day label: %w", err)
	}
	text, err := day.Text(ctx)
	if err != nil {
		return nil, fmt.Errorf("acuity: day text: %w", err)
	}
	date, ok := s.norm.ResolveDayLabel(label, text, year, month)
	if !ok {
		s.logger.Warn("unresolvable day control, skipping", "aria_label", label, "text", strings.TrimSpace(text))
		return nil, nil
	}

	if err := day.Click(ctx); err != nil {
		return nil, fmt.Errorf("acuity: click %s: %w", datetime.FormatDate(date), err)
	}
	s.settle(ctx, s.waits.DayIdle, s.waits.DayFallback)

	candidates, strategy, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("day time entries", "date", datetime.FormatDate(date), "entries", len(candidates), "strategy", strategy)

	var slots []availability.Slot
	for _, c := range candidates {
		slot, ok := ParseCandidate(c, date)
		if !ok {
			continue
		}
		if slot.Spots != nil {
			s.logger.Debug("added slot", "date", datetime.FormatDate(date), "time", slot.Time.String(), "spots", *slot.Spots)
		} else {
			s.logger.Debug("added slot", "date", datetime.FormatDate(date), "time", slot.Time.String())
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// candidates runs the strategies in order and returns the first non-empty
// result with the name of the strategy that produced it.
func (s *Scraper) candidates(ctx context.Context) ([]Candidate, string, error) {
	for _, strategy := range s.strategies {
		found, err := strategy.Candidates(ctx, s.eng)
		if err != nil {
			if engine.IsUnusable(err) {
				return nil, strategy.Name(), err
			}
			s.logger.Debug("extraction strategy failed", "strategy", strategy.Name(), "error", err)
			continue
		}
		if len(found) > 0 {
			return found, strategy.Name(), nil
		}
	}
	return nil, "none", nil
}
