package acuity

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/poll"
)

// ErrPassNotListed means the product's Select button never appeared.
var ErrPassNotListed = errors.New("acuity: pass product not listed")

// ScanPass selects a pass product on its category page and scans the
// calendar that opens.
func (s *Scraper) ScanPass(ctx context.Context, category availability.ServiceCategory) ([]availability.Slot, error) {
	s.logger.Info("navigating to pass category page", "category", category.Label, "url", category.URL)
	if err := s.eng.Navigate(ctx, category.URL); err != nil {
		return nil, err
	}

	xpath := XPathPassSelect(category.PassName)
	res, err := s.waits.Element.Run(ctx, s.present(xpath), poll.WithSleeper(s.sleep))
	if err != nil {
		return nil, err
	}
	if res != poll.Found {
		s.logger.Error("select button for pass not found", "pass", category.PassName)
		s.capture(ctx, "debug_spa_pass_select_fail", false)
		return nil, fmt.Errorf("%w: %s", ErrPassNotListed, category.PassName)
	}

	btn, err := s.eng.QueryOne(ctx, xpath)
	if err != nil {
		return nil, fmt.Errorf("acuity: find pass select: %w", err)
	}
	if btn == nil {
		return nil, fmt.Errorf("%w: %s", ErrPassNotListed, category.PassName)
	}
	s.logger.Info("found select button for pass, clicking", "pass", category.PassName)
	if err := btn.Click(ctx); err != nil {
		return nil, fmt.Errorf("acuity: click pass select: %w", err)
	}

	s.AwaitCalendar(ctx)
	return s.ScanVisibleMonths(ctx, s.maxMonths)
}

// PassProvider describes a pass category as a provider.
func PassProvider(category availability.ServiceCategory) availability.Provider {
	return availability.Provider{
		DisplayName: category.Label,
		RawName:     category.PassName,
		ImageURL:    availability.StringPtr(category.ImageURL),
		Description: availability.StringPtr(category.Description),
		BookingURL:  category.URL,
		RemoteID:    category.TypeID,
		Category:    category.Key,
	}
}
