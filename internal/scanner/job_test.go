package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-availability/internal/acuity"
	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/engine"
	"github.com/wolfman30/spa-availability/internal/engine/enginetest"
	"github.com/wolfman30/spa-availability/internal/events"
	"github.com/wolfman30/spa-availability/internal/history"
	"github.com/wolfman30/spa-availability/internal/notify"
	"github.com/wolfman30/spa-availability/internal/output"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

type fakeLedger struct {
	mu       sync.Mutex
	started  []history.Run
	finished []history.Run
}

func (l *fakeLedger) Start(_ context.Context, run history.Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, run)
	return nil
}

func (l *fakeLedger) Finish(_ context.Context, run history.Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, run)
	return nil
}

type fakeArchive struct {
	runs []string
}

func (a *fakeArchive) SaveSnapshot(_ context.Context, runID string, _ *availability.Aggregate) error {
	a.runs = append(a.runs, runID)
	return nil
}

type fakeNotifier struct {
	batches [][]notify.NewSlot
}

func (n *fakeNotifier) NotifyNewSlots(_ context.Context, slots []notify.NewSlot) error {
	n.batches = append(n.batches, slots)
	return nil
}

type fakeEvents struct {
	published []events.ScanCompletedV1
}

func (f *fakeEvents) Publish(_ context.Context, evt events.Event) error {
	f.published = append(f.published, evt.(events.ScanCompletedV1))
	return nil
}

type jobHarness struct {
	job      *Job
	ledger   *fakeLedger
	archive  *fakeArchive
	notifier *fakeNotifier
	events   *fakeEvents
	redis    *output.RedisSink
	engines  []*enginetest.Fake
	// categories is read by every run's request.
	categories []availability.ServiceCategory
}

// newJobHarness wires a Job whose runs consume the given fakes in order.
func newJobHarness(t *testing.T, fakes ...*enginetest.Fake) *jobHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := &jobHarness{
		ledger:   &fakeLedger{},
		archive:  &fakeArchive{},
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
		redis:    output.NewRedisSink(client),
		engines:  fakes,

		categories: []availability.ServiceCategory{deepTissue},
	}

	var mu sync.Mutex
	next := 0
	open := func(context.Context) (engine.Engine, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(h.engines) {
			return nil, errors.New("no engine left")
		}
		eng := h.engines[next]
		next++
		return eng, nil
	}

	logger := logging.Discard()
	s := New(open, logger,
		WithClock(func() time.Time { return testNow }),
		WithRateLimit(0),
		WithScraperOptions(acuity.WithSleeper(noSleep), acuity.WithDebugDir(t.TempDir())),
	)
	pub := output.NewPublisher(logger, []output.Sink{h.redis}, output.WithHashSource(h.redis))
	request := func() Request {
		return Request{Categories: h.categories, Horizon: 30}
	}
	h.job = NewJob(s, request, pub, logger,
		WithPrevious(h.redis),
		WithLedger(h.ledger),
		WithArchive(h.archive),
		WithNotifier(h.notifier),
		WithEvents(h.events),
	)
	return h
}

func staffSite(times ...string) *enginetest.Fake {
	return enginetest.New().
		AddPage(deepTissue.URL, categoryPage(business(1))).
		AddPage(bookingURL(1), calendarPage("21", times...))
}

func TestJob_PublishesAndNotifiesOnlyNewSlots(t *testing.T) {
	h := newJobHarness(t,
		staffSite("9:00 AM"),
		staffSite("9:00 AM", "1:20 PM"),
		staffSite("9:00 AM", "1:20 PM"),
	)
	ctx := context.Background()

	first, err := h.job.Run(ctx)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Empty(t, first.NewSlots, "first publish is the baseline")

	second, err := h.job.Run(ctx)
	require.NoError(t, err)
	assert.True(t, second.Changed)
	require.Len(t, second.NewSlots, 1)
	assert.Equal(t, "Anna (Deep Tissue)|November 21, 2025|1:20 PM", second.NewSlots[0].Key())

	third, err := h.job.Run(ctx)
	require.NoError(t, err)
	assert.False(t, third.Changed)
	assert.Empty(t, third.NewSlots)

	require.Len(t, h.notifier.batches, 1)
	assert.Len(t, h.archive.runs, 3)
	require.Len(t, h.events.published, 3)
	assert.False(t, h.events.published[2].Changed)
	assert.Equal(t, 2, h.events.published[1].SlotCount)
	assert.Equal(t, second.Artifact.MD5, h.events.published[1].MD5)

	require.Len(t, h.ledger.started, 3)
	require.Len(t, h.ledger.finished, 3)
	assert.Equal(t, h.ledger.started[0].ID, h.ledger.finished[0].ID)
	assert.Equal(t, StatusCompleted, h.ledger.finished[0].Status)
	assert.Equal(t, []string{"Deep Tissue"}, h.ledger.started[0].Categories)

	hash, err := h.redis.LastHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, third.Artifact.MD5, hash)
}

func TestJob_AbortedRunPublishesNothing(t *testing.T) {
	broken := staffSite("9:00 AM")
	broken.QueryErr = engine.Unusable(errors.New("browser crashed"))
	h := newJobHarness(t, broken)

	_, err := h.job.Run(context.Background())
	require.ErrorIs(t, err, ErrAborted)

	latest, err := h.redis.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
	assert.Empty(t, h.events.published)
	assert.Empty(t, h.archive.runs)
	require.Len(t, h.ledger.finished, 1)
	assert.Equal(t, StatusAborted, h.ledger.finished[0].Status)
	assert.NotEmpty(t, h.ledger.finished[0].Error)
}

func TestJob_EmptySelectionKeepsLastInventory(t *testing.T) {
	h := newJobHarness(t, staffSite("9:00 AM"), staffSite("9:00 AM"))
	ctx := context.Background()

	first, err := h.job.Run(ctx)
	require.NoError(t, err)

	h.categories = nil
	_, err = h.job.Run(ctx)
	require.ErrorIs(t, err, ErrNoCategories)

	hash, err := h.redis.LastHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Artifact.MD5, hash)
	latest, err := h.redis.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, []string{"Anna (Deep Tissue)"}, latest.Names())

	assert.Len(t, h.events.published, 1)
	assert.Len(t, h.engines[1].Navigations, 0, "no browser work for an empty selection")
}

func TestJob_RejectsOverlappingRuns(t *testing.T) {
	h := newJobHarness(t, staffSite("9:00 AM"))
	h.job.mu.Lock()

	_, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, h.job.TryStart(context.Background()))

	h.job.mu.Unlock()
	_, err = h.job.Run(context.Background())
	assert.NoError(t, err)
}

func TestJob_TryStartRunsInBackground(t *testing.T) {
	h := newJobHarness(t, staffSite("9:00 AM"))

	require.True(t, h.job.TryStart(context.Background()))
	require.Eventually(t, func() bool {
		if !h.job.mu.TryLock() {
			return false
		}
		h.job.mu.Unlock()
		h.ledger.mu.Lock()
		defer h.ledger.mu.Unlock()
		return len(h.ledger.finished) == 1
	}, 5*time.Second, 10*time.Millisecond)
}
