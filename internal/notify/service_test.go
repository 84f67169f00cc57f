package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

func slot(t *testing.T, day int, clock string) availability.Slot {
	t.Helper()
	c, ok := datetime.ParseClock(clock)
	require.True(t, ok)
	return availability.Slot{Date: time.Date(2025, time.November, day, 0, 0, 0, 0, time.UTC), Time: c}
}

func TestDiff(t *testing.T) {
	prev := availability.NewAggregate()
	prev.Record("Anna", availability.ScanResult{Slots: []availability.Slot{slot(t, 21, "9:00 AM")}})
	prev.Record("Ben", availability.ScanResult{Slots: []availability.Slot{slot(t, 21, "1:20 PM")}})

	next := availability.NewAggregate()
	next.Record("Anna", availability.ScanResult{
		BookingURL: "https://sensea.as.me/?calendarID=1",
		Slots:      []availability.Slot{slot(t, 21, "9:00 AM"), slot(t, 22, "9:00 AM")},
	})
	next.Record("Ben", availability.ScanResult{})
	next.Record("Cara", availability.ScanResult{Slots: []availability.Slot{slot(t, 21, "9:00 AM")}})

	got := Diff(prev, next)
	want := []NewSlot{
		{Provider: "Anna", Date: "November 22, 2025", Time: "9:00 AM", BookingURL: "https://sensea.as.me/?calendarID=1"},
		{Provider: "Cara", Date: "November 21, 2025", Time: "9:00 AM"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Diff mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Anna|November 22, 2025|9:00 AM", got[0].Key())
}

func TestDiffWithoutBaseline(t *testing.T) {
	next := availability.NewAggregate()
	next.Record("Anna", availability.ScanResult{Slots: []availability.Slot{slot(t, 21, "9:00 AM")}})
	assert.Empty(t, Diff(nil, next))
}

func TestFormatSlotsCapsLines(t *testing.T) {
	var slots []NewSlot
	for i := 0; i < MaxLines+5; i++ {
		slots = append(slots, NewSlot{Provider: fmt.Sprintf("P%d", i), Date: "November 21, 2025", Time: "9:00 AM"})
	}
	slots[0].Spots = availability.IntPtr(3)

	out := FormatSlots(slots)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, MaxLines+1)
	assert.Equal(t, "P0: November 21, 2025 9:00 AM (3 spots left)", lines[0])
	assert.Equal(t, "... and 5 more", lines[MaxLines])
}

type recordingNotifier struct {
	name     string
	err      error
	subjects []string
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(_ context.Context, d Digest) error {
	r.subjects = append(r.subjects, d.Subject)
	return r.err
}

func TestServiceFansOutDespiteFailures(t *testing.T) {
	broken := &recordingNotifier{name: "broken", err: errors.New("down")}
	ok := &recordingNotifier{name: "ok"}
	svc := NewService(logging.Discard(), broken, ok)

	err := svc.NotifyNewSlots(context.Background(), []NewSlot{{Provider: "Anna", Date: "November 21, 2025", Time: "9:00 AM"}})
	require.Error(t, err)
	require.Len(t, ok.subjects, 1)
	assert.Equal(t, "1 new spa appointment(s) available", ok.subjects[0])
	assert.Len(t, broken.subjects, 1)
	assert.Equal(t, []string{"broken", "ok"}, svc.Channels())
}

func TestServiceSkipsEmptyAndDisabled(t *testing.T) {
	n := &recordingNotifier{name: "ok"}
	svc := NewService(nil, n)
	require.NoError(t, svc.NotifyNewSlots(context.Background(), nil))
	assert.Empty(t, n.subjects)

	assert.False(t, NewService(nil).Enabled())
	require.NoError(t, NewService(nil).NotifyNewSlots(context.Background(), []NewSlot{{Provider: "x"}}))
}

type fakeBot struct {
	sent []tgbotapi.Chattable
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTelegramNotifier(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegramNotifier(bot, 4242, logging.Discard())
	require.NotNil(t, n)

	d := Digest{Subject: "subject", Slots: []NewSlot{{Provider: "Anna", Date: "November 21, 2025", Time: "9:00 AM"}}}
	require.NoError(t, n.Notify(context.Background(), d))
	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(4242), msg.ChatID)
	assert.Equal(t, "subject\n\nAnna: November 21, 2025 9:00 AM\n", msg.Text)

	assert.Nil(t, NewTelegramNotifier(bot, 0, nil))
}
