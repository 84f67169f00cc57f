package acuity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/internal/engine"
	"github.com/wolfman30/spa-availability/internal/poll"
)

// AwaitCalendar polls for the month header. When it never shows up the
// scraper takes a last-chance pause, saves a diagnostic capture and reports
// false; callers continue with a best-effort scan.
func (s *Scraper) AwaitCalendar(ctx context.Context) bool {
	res, err := s.waits.Calendar.Run(ctx, s.present(XPathMonthHeader), poll.WithSleeper(s.sleep))
	if err != nil {
		s.logger.Warn("calendar wait interrupted", "error", err)
		return false
	}
	if res == poll.Found {
		s.logger.Info("calendar loaded")
		return true
	}
	s.logger.Warn("calendar not detected within wait window")
	s.capture(ctx, "debug_calendar_fail", true)
	return false
}

// ScanVisibleMonths extracts the current month view and then follows the
// next-month control until maxMonths views were read or the control is
// missing, which marks the end of the published schedule.
func (s *Scraper) ScanVisibleMonths(ctx context.Context, maxMonths int) ([]availability.Slot, error) {
	var all []availability.Slot
	for view := 0; view < maxMonths; view++ {
		if view > 0 {
			advanced, err := s.nextMonth(ctx)
			if err != nil {
				return all, err
			}
			if !advanced {
				break
			}
		}

		year, month := s.readHeader(ctx)
		s.logger.Info("scanning month view", "view", view+1, "month", datetime.MonthLabel(year, month))

		slots, err := s.ExtractMonth(ctx, year, month)
		all = append(all, slots...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

func (s *Scraper) nextMonth(ctx context.Context) (bool, error) {
	next, err := s.eng.QueryOne(ctx, XPathNextMonth)
	if err != nil {
		return false, fmt.Errorf("acuity: find next month: %w", err)
	}
	if next == nil {
		s.logger.Info("no next month button, end of published schedule")
		return false, nil
	}
	if disabled, ok, _ := next.Attribute(ctx, "disabled"); ok && disabled != "false" {
		s.logger.Info("next month button disabled, end of published schedule")
		return false, nil
	}

	s.logger.Info("clicking next month")
	if err := next.Click(ctx); err != nil {
		if engine.IsUnusable(err) {
			return false, err
		}
		s.logger.Warn("next month click failed", "error", err)
		return false, nil
	}
	s.settle(ctx, s.waits.NextIdle, s.waits.NextFallback)
	return true, nil
}

// readHeader resolves the year and month of the rendered view, falling back
// to the current month when the header is missing or unreadable.
func (s *Scraper) readHeader(ctx context.Context) (int, time.Month) {
	header, err := s.eng.QueryOne(ctx, XPathMonthHeader)
	if err != nil || header == nil {
		s.logger.Warn("calendar header missing, assuming current month", "error", err)
		s.capture(ctx, "debug_missing_header", true)
		now := s.norm.Today()
		return now.Year(), now.Month()
	}

	text, err := header.Text(ctx)
	if err != nil {
		s.logger.Warn("calendar header unreadable", "error", err)
	}
	year, month, ok := s.norm.ParseHeaderToMonth(strings.TrimSpace(text))
	if ok {
		s.logger.Info("identified calendar view", "header", strings.TrimSpace(text))
	}
	return year, month
}
