package notify

import (
	"context"
	"errors"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

// Notifier delivers a digest to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, d Digest) error
}

// Service fans new slots out to every notifier.
type Service struct {
	notifiers []Notifier
	logger    *logging.Logger
}

// NewService creates a notification service. Nil notifiers are dropped.
func NewService(logger *logging.Logger, notifiers ...Notifier) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
	return s
}

// Enabled reports whether any channel is configured.
func (s *Service) Enabled() bool {
	return s != nil && len(s.notifiers) > 0
}

// Channels lists the configured channel names.
func (s *Service) Channels() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.notifiers))
	for _, n := range s.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// NotifyNewSlots sends one digest per channel. Channel failures are logged
// and joined; one failing channel does not stop the others.
func (s *Service) NotifyNewSlots(ctx context.Context, slots []NewSlot) error {
	if !s.Enabled() || len(slots) == 0 {
		return nil
	}
	digest := NewDigest(slots)

	var errs []error
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, digest); err != nil {
			s.logger.Error("notify: channel failed", "channel", n.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("notify: new slots announced", "channel", n.Name(), "count", len(slots))
	}
	return errors.Join(errs...)
}
