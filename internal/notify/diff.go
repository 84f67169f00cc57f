package notify

import (
	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/datetime"
)

// NewSlot is a slot that was not bookable in the previous publish.
type NewSlot struct {
	Provider   string
	Date       string
	Time       string
	Spots      *int
	BookingURL string
}

// Key identifies the slot across runs.
func (s NewSlot) Key() string {
	return s.Provider + "|" + s.Date + "|" + s.Time
}

// Diff lists slots in next that prev did not have, in next's order. A nil
// prev yields nothing: the first publish is a baseline, not news.
func Diff(prev, next *availability.Aggregate) []NewSlot {
	if prev == nil || next == nil {
		return nil
	}

	seen := make(map[string]struct{})
	for _, name := range prev.Names() {
		res, _ := prev.Get(name)
		for _, slot := range res.Slots {
			seen[slotKey(name, slot)] = struct{}{}
		}
	}

	var out []NewSlot
	for _, name := range next.Names() {
		res, _ := next.Get(name)
		for _, slot := range res.Slots {
			if _, ok := seen[slotKey(name, slot)]; ok {
				continue
			}
			out = append(out, NewSlot{
				Provider:   name,
				Date:       datetime.FormatDate(slot.Date),
				Time:       slot.Time.String(),
				Spots:      slot.Spots,
				BookingURL: res.BookingURL,
			})
		}
	}
	return out
}

func slotKey(provider string, slot availability.Slot) string {
	return provider + "|" + datetime.FormatDate(slot.Date) + "|" + slot.Time.String()
}
