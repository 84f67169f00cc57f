package acuity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/poll"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

var (
	// ErrBusinessConfigMissing means the page never exposed window.BUSINESS.
	ErrBusinessConfigMissing = errors.New("acuity: business config missing")
	// ErrAppointmentTypeNotFound means the category's type id is not offered.
	ErrAppointmentTypeNotFound = errors.New("acuity: appointment type not found")
)

// BusinessConfig is the subset of window.BUSINESS the scanner reads.
type BusinessConfig struct {
	AppointmentTypes map[string][]AppointmentType `json:"appointmentTypes"`
	Calendars        map[string][]Calendar        `json:"calendars"`
}

// AppointmentType is an offered service and the calendars that can take it.
type AppointmentType struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	CalendarIDs []int  `json:"calendarIDs"`
}

// Calendar is a bookable resource, usually a staff member. Thumbnail and
// Description are nil when the page omits them and are otherwise passed
// through as-is, empty strings included.
type Calendar struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Thumbnail   *string `json:"thumbnail"`
	Description *string `json:"description"`
}

// DiscoverProviders opens the category page, reads the embedded business
// config and resolves the providers that can be booked for the category.
func (s *Scraper) DiscoverProviders(ctx context.Context, category availability.ServiceCategory, allow []string) ([]availability.Provider, error) {
	s.logger.Info("navigating to category page", "category", category.Label, "url", category.URL)
	if err := s.eng.Navigate(ctx, category.URL); err != nil {
		return nil, err
	}

	ready := func(ctx context.Context) (bool, error) {
		var ok bool
		err := s.eng.Evaluate(ctx, ExprBusinessReady, &ok)
		return ok, err
	}
	if _, err := s.waits.Element.Run(ctx, ready, poll.WithSleeper(s.sleep)); err != nil {
		return nil, err
	}

	// lazy sections only render once scrolled into view
	if err := s.eng.Evaluate(ctx, exprScrollBottom, nil); err != nil {
		s.logger.Debug("scroll failed", "error", err)
	}
	_ = s.sleep(ctx, s.waits.ScrollSettle)

	var cfg *BusinessConfig
	if err := s.eng.Evaluate(ctx, ExprBusiness, &cfg); err != nil {
		return nil, fmt.Errorf("acuity: read business config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w for %s", ErrBusinessConfigMissing, category.Label)
	}
	return ResolveProviders(cfg, category, allow, s.logger)
}

// ResolveProviders maps the category's calendar ids onto calendar records.
// Ids without a record are skipped; the remote data is occasionally
// inconsistent and one missing mapping must not drop the category.
func ResolveProviders(cfg *BusinessConfig, category availability.ServiceCategory, allow []string, logger *logging.Logger) ([]availability.Provider, error) {
	if logger == nil {
		logger = logging.Default()
	}
	apptType, ok := cfg.findType(category.TypeID)
	if !ok {
		return nil, fmt.Errorf("%w: %d (%s)", ErrAppointmentTypeNotFound, category.TypeID, category.Label)
	}
	logger.Info("found valid calendars", "category", category.Label, "count", len(apptType.CalendarIDs))

	lookup := cfg.calendarsByID()
	var providers []availability.Provider
	for _, id := range apptType.CalendarIDs {
		cal, ok := lookup[id]
		if !ok {
			logger.Warn("calendar id missing from business config, skipping", "category", category.Label, "calendar_id", id)
			continue
		}
		if len(allow) > 0 && !MatchAny(cal.Name, allow) {
			logger.Info("skipping provider not in allow-list", "name", cal.Name)
			continue
		}

		p := availability.Provider{
			DisplayName: fmt.Sprintf("%s (%s)", cal.Name, category.Label),
			RawName:     cal.Name,
			ImageURL:    absoluteURL(cal.Thumbnail),
			Description: cal.Description,
			BookingURL:  fmt.Sprintf("%s&calendarID=%d", category.URL, id),
			RemoteID:    id,
			Category:    category.Key,
		}
		logger.Info("discovered provider", "provider", p.DisplayName)
		providers = append(providers, p)
	}
	return providers, nil
}

// MatchAny reports whether name contains any fragment, ignoring case. This
// is a loose filter: "ann" matches "Joanna".
func MatchAny(name string, fragments []string) bool {
	lower := strings.ToLower(name)
	for _, f := range fragments {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

func (c *BusinessConfig) findType(id int) (AppointmentType, bool) {
	for _, group := range sortedKeys(c.AppointmentTypes) {
		for _, t := range c.AppointmentTypes[group] {
			if t.ID == id {
				return t, true
			}
		}
	}
	return AppointmentType{}, false
}

func (c *BusinessConfig) calendarsByID() map[int]Calendar {
	out := map[int]Calendar{}
	for _, location := range sortedKeys(c.Calendars) {
		for _, cal := range c.Calendars[location] {
			if _, seen := out[cal.ID]; !seen {
				out[cal.ID] = cal
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// absoluteURL rewrites protocol-relative thumbnails to https.
func absoluteURL(u *string) *string {
	if u == nil || !strings.HasPrefix(*u, "//") {
		return u
	}
	abs := "https:" + *u
	return &abs
}
