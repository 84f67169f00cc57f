package acuity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/internal/engine"
	"github.com/wolfman30/spa-availability/internal/engine/enginetest"
)

const bookingURL = "https://sensea.as.me/?appointmentType=12789613&calendarID=42"

type wantSlot struct {
	Date  string
	Time  string
	Spots *int
}

func flatten(slots []availability.Slot) []wantSlot {
	out := make([]wantSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, wantSlot{Date: datetime.FormatDate(s.Date), Time: s.Time.String(), Spots: s.Spots})
	}
	return out
}

func TestScanCalendar_SingleMonthSingleSlot(t *testing.T) {
	day := dayTile("", "30")
	current := monthView("November 2025", day)
	selected := current.Clone().Set(XPathTimeEntries, timeLabel("Select 1:20 PM 7 spots left"))
	day.OnClickShow(selected)

	fake := enginetest.New().AddPage(bookingURL, current)
	s, _ := newTestScraper(fake)

	slots, err := s.ScanCalendar(context.Background(), bookingURL)
	require.NoError(t, err)

	want := []wantSlot{{Date: "November 30, 2025", Time: "1:20 PM", Spots: intPtr(7)}}
	if diff := cmp.Diff(want, flatten(slots)); diff != "" {
		t.Fatalf("slots mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{bookingURL}, fake.Navigations)
	assert.Equal(t, []string{"30"}, fake.Clicks)
	assert.Empty(t, fake.Captures)
}

func TestExtractMonth_ReacquiresDaysAfterEachClick(t *testing.T) {
	d1 := dayTile("December 4, 2025", "4")
	d2 := dayTile("December 5, 2025", "5")
	d3 := dayTile("", "6")
	base := monthView("December 2025", d1, d2, d3)

	after1 := base.Clone().Set(XPathTimeEntries, timeLabel("10:00 AM"), timeLabel("11:00 AM 2 spots left"))
	after2 := base.Clone().Set(XPathParagraphs, enginetest.El("p", "Choose a time"), enginetest.El("p", "3:30 PM"))
	after3 := base.Clone()
	d1.OnClickShow(after1)
	d2.OnClickShow(after2)
	d3.OnClickShow(after3)

	fake := enginetest.New()
	fake.Show(base)
	s, _ := newTestScraper(fake)

	slots, err := s.ExtractMonth(context.Background(), 2025, time.December)
	require.NoError(t, err)

	want := []wantSlot{
		{Date: "December 04, 2025", Time: "10:00 AM"},
		{Date: "December 04, 2025", Time: "11:00 AM", Spots: intPtr(2)},
		{Date: "December 05, 2025", Time: "3:30 PM"},
	}
	if diff := cmp.Diff(want, flatten(slots)); diff != "" {
		t.Fatalf("slots mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"December 4, 2025", "December 5, 2025", "6"}, fake.Clicks)
}

func TestExtractMonth_SnapshotStrategyWhenLiveQueriesEmpty(t *testing.T) {
	day := dayTile("", "12")
	base := monthView("December 2025", day)
	day.OnClickShow(base.Clone().SetHTML(`<div><button class="time-selection">4:00 PM 3 spots left</button></div>`))

	fake := enginetest.New()
	fake.Show(base)
	s, _ := newTestScraper(fake)

	slots, err := s.ExtractMonth(context.Background(), 2025, time.December)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "4:00 PM", slots[0].Time.String())
	assert.Equal(t, 3, *slots[0].Spots)
}

func TestExtractMonth_NoEnabledDays(t *testing.T) {
	fake := enginetest.New()
	fake.Show(monthView("December 2025"))
	s, _ := newTestScraper(fake)

	slots, err := s.ExtractMonth(context.Background(), 2025, time.December)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Empty(t, fake.Clicks)
}

func TestScanVisibleMonths_FollowsNextUntilLimit(t *testing.T) {
	novDay := dayTile("", "28")
	decDay := dayTile("December 2, 2025", "2")
	janNext := enginetest.El("button", "›")

	dec := monthView("December 2025", decDay).Set(XPathNextMonth, janNext)
	decDay.OnClickShow(dec.Clone().Set(XPathTimeEntries, timeLabel("9:00 AM")))

	nextBtn := enginetest.El("button", "›").OnClickShow(dec)
	nov := monthView("November 2025", novDay).Set(XPathNextMonth, nextBtn)
	novDay.OnClickShow(nov.Clone().Set(XPathTimeEntries, timeLabel("5:00 PM")))

	fake := enginetest.New()
	fake.Show(nov)
	s, _ := newTestScraper(fake)

	slots, err := s.ScanVisibleMonths(context.Background(), MaxMonths)
	require.NoError(t, err)

	want := []wantSlot{
		{Date: "November 28, 2025", Time: "5:00 PM"},
		{Date: "December 02, 2025", Time: "9:00 AM"},
	}
	if diff := cmp.Diff(want, flatten(slots)); diff != "" {
		t.Fatalf("slots mismatch (-want +got):\n%s", diff)
	}
	// only one next click: the limit is two views
	assert.Equal(t, []string{"28", "›", "December 2, 2025"}, fake.Clicks)
}

func TestScanVisibleMonths_StopsWithoutNextControl(t *testing.T) {
	day := dayTile("", "30")
	current := monthView("November 2025", day)
	day.OnClickShow(current.Clone().Set(XPathTimeEntries, timeLabel("10:00 AM")))

	fake := enginetest.New()
	fake.Show(current)
	s, logs := newTestScraper(fake)

	slots, err := s.ScanVisibleMonths(context.Background(), MaxMonths)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
	assert.Contains(t, logs.String(), "end of published schedule")
}

func TestScanVisibleMonths_DisabledNextControl(t *testing.T) {
	next := enginetest.El("button", "›").WithAttr("disabled", "")
	fake := enginetest.New()
	fake.Show(monthView("November 2025").Set(XPathNextMonth, next))
	s, _ := newTestScraper(fake)

	_, err := s.ScanVisibleMonths(context.Background(), MaxMonths)
	require.NoError(t, err)
	assert.Empty(t, fake.Clicks)
}

func TestScanCalendar_MissingCalendarDegradesToEmpty(t *testing.T) {
	fake := enginetest.New().AddPage(bookingURL, enginetest.NewView())
	s, logs := newTestScraper(fake)

	slots, err := s.ScanCalendar(context.Background(), bookingURL)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Equal(t, []string{
		"dbg/debug_calendar_fail.png", "dbg/debug_calendar_fail.html",
		"dbg/debug_missing_header.png", "dbg/debug_missing_header.html",
	}, fake.Captures)
	assert.Contains(t, logs.String(), "calendar not detected")
}

func TestScanVisibleMonths_UnusableEngineIsReturned(t *testing.T) {
	fake := enginetest.New()
	fake.QueryErr = engine.Unusable(errors.New("target closed"))
	s, _ := newTestScraper(fake, WithDebugDir(""))

	_, err := s.ScanVisibleMonths(context.Background(), MaxMonths)
	require.Error(t, err)
	assert.True(t, engine.IsUnusable(err))
}

func TestScanPass(t *testing.T) {
	category := availability.ServiceCategory{
		Key: "spa_pass", Label: "Spa Pass", Kind: availability.KindPass,
		URL: "https://sensea.as.me/schedule/1e0cc157/category/Spa%2520pass", PassName: "Spa Pass",
	}

	t.Run("selects product and scans calendar", func(t *testing.T) {
		day := dayTile("", "21")
		cal := monthView("November 2025", day)
		day.OnClickShow(cal.Clone().Set(XPathTimeEntries, enginetest.El("button", "9:00 AM 12 spots left")))

		listing := enginetest.NewView().Set(XPathPassSelect("Spa Pass"), enginetest.El("button", "Select").OnClickShow(cal))
		fake := enginetest.New().AddPage(category.URL, listing)
		s, _ := newTestScraper(fake)

		slots, err := s.ScanPass(context.Background(), category)
		require.NoError(t, err)
		want := []wantSlot{{Date: "November 21, 2025", Time: "9:00 AM", Spots: intPtr(12)}}
		if diff := cmp.Diff(want, flatten(slots)); diff != "" {
			t.Fatalf("slots mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing product dumps html", func(t *testing.T) {
		fake := enginetest.New().AddPage(category.URL, enginetest.NewView())
		s, _ := newTestScraper(fake)

		_, err := s.ScanPass(context.Background(), category)
		require.ErrorIs(t, err, ErrPassNotListed)
		assert.Equal(t, []string{"dbg/debug_spa_pass_select_fail.html"}, fake.Captures)
	})
}

func TestPassProvider(t *testing.T) {
	p := PassProvider(availability.ServiceCategory{
		Key: "spa_pass", Label: "Spa Pass", URL: "https://x/category", PassName: "Spa Pass",
		Description: "Access to the Nordic Spa facilities.",
	})
	assert.Equal(t, "Spa Pass", p.DisplayName)
	assert.Nil(t, p.ImageURL)
	require.NotNil(t, p.Description)
	assert.Equal(t, "Access to the Nordic Spa facilities.", *p.Description)
	assert.Equal(t, "https://x/category", p.BookingURL)
}
