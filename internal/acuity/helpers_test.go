package acuity

import (
	"bytes"
	"context"
	"time"

	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/internal/engine/enginetest"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testClock() time.Time { return time.Date(2025, time.November, 20, 10, 0, 0, 0, time.UTC) }

func newTestScraper(eng *enginetest.Fake, opts ...Option) (*Scraper, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("debug", &buf)
	norm := datetime.NewNormalizer(testClock, logger)
	opts = append([]Option{WithSleeper(noSleep), WithDebugDir("dbg")}, opts...)
	return NewScraper(eng, norm, logger, opts...), &buf
}

func dayTile(label, text string) *enginetest.Element {
	el := enginetest.El("button", text)
	if label != "" {
		el.WithAttr("aria-label", label)
	}
	return el
}

func monthView(header string, days ...*enginetest.Element) *enginetest.View {
	v := enginetest.NewView().Set(XPathEnabledDays, days...)
	if header != "" {
		v.Set(XPathMonthHeader, enginetest.El("button", header))
	}
	return v
}

func timeLabel(text string) *enginetest.Element {
	return enginetest.El("label", text)
}
