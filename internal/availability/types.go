// Package availability contains the scan data model and the appointments
// JSON wire format consumed by the static site.
package availability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfman30/spa-availability/internal/datetime"
)

// CategoryKind tells the scanner how a category's providers are found.
type CategoryKind string

const (
	// KindStaff categories list staff calendars in the business config.
	KindStaff CategoryKind = "staff"
	// KindPass categories are a single product picked from a category page.
	KindPass CategoryKind = "pass"
)

// ServiceCategory is a bookable grouping on the scheduling site.
type ServiceCategory struct {
	Key         string       `json:"key"`
	Label       string       `json:"label"`
	Kind        CategoryKind `json:"kind"`
	TypeID      int          `json:"typeId,omitempty"`
	URL         string       `json:"url"`
	PassName    string       `json:"passName,omitempty"`
	Description string       `json:"description,omitempty"`
	ImageURL    string       `json:"imageUrl,omitempty"`
}

// Provider is a bookable staff member or pass product.
type Provider struct {
	DisplayName string
	RawName     string
	ImageURL    *string
	Description *string
	BookingURL  string
	RemoteID    int
	Category    string
}

// Slot is one bookable date and time.
type Slot struct {
	Date  time.Time
	Time  datetime.Clock
	Spots *int
}

// Key identifies a slot within a provider.
func (s Slot) Key() string {
	return datetime.FormatDate(s.Date) + " " + s.Time.String()
}

// MarshalJSON encodes the slot as [date, time, spots|null].
func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{datetime.FormatDate(s.Date), s.Time.String(), s.Spots})
}

// UnmarshalJSON decodes the [date, time, spots|null] tuple.
func (s *Slot) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("availability: slot tuple: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("availability: slot tuple has %d elements", len(tuple))
	}

	var dateText, timeText string
	if err := json.Unmarshal(tuple[0], &dateText); err != nil {
		return fmt.Errorf("availability: slot date: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &timeText); err != nil {
		return fmt.Errorf("availability: slot time: %w", err)
	}
	date, ok := datetime.ParseDate(dateText)
	if !ok {
		return fmt.Errorf("availability: unparseable slot date %q", dateText)
	}
	clock, ok := datetime.ParseClock(timeText)
	if !ok {
		return fmt.Errorf("availability: unparseable slot time %q", timeText)
	}

	var spots *int
	if err := json.Unmarshal(tuple[2], &spots); err != nil {
		return fmt.Errorf("availability: slot spots: %w", err)
	}

	*s = Slot{Date: date, Time: clock, Spots: spots}
	return nil
}

// ScanResult is the published availability of one provider.
type ScanResult struct {
	ImageURL    *string `json:"image_url"`
	Description *string `json:"description"`
	BookingURL  string  `json:"booking_url"`
	Slots       []Slot  `json:"slots"`
}

// MarshalJSON keeps an empty slot list as [] rather than null.
func (r ScanResult) MarshalJSON() ([]byte, error) {
	type wire ScanResult
	if r.Slots == nil {
		r.Slots = []Slot{}
	}
	return marshalNoEscape(wire(r))
}

// marshalNoEscape keeps "&" in booking URLs literal.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ResultFor builds the result shell for a provider.
func ResultFor(p Provider, slots []Slot) ScanResult {
	return ScanResult{
		ImageURL:    p.ImageURL,
		Description: p.Description,
		BookingURL:  p.BookingURL,
		Slots:       slots,
	}
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
