package notify

import (
	"context"
	"errors"
	"fmt"

	"tablequeue/internal/domain"
	"tablequeue/internal/metrics"

	"github.com/rs/zerolog"
)

type target struct {
	name     string
	notifier domain.Notifier
}

// Fanout publishes every event to all registered transports.
type Fanout struct {
	targets []target
	logger  *zerolog.Logger
}

var _ domain.Notifier = (*Fanout)(nil)

func NewFanout(logger *zerolog.Logger) *Fanout {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Fanout{logger: logger}
}

// Add registers a transport under name.
func (f *Fanout) Add(name string, n domain.Notifier) *Fanout {
	f.targets = append(f.targets, target{name: name, notifier: n})
	return f
}

// Transports lists registered transport names in order.
func (f *Fanout) Transports() []string {
	names := make([]string, 0, len(f.targets))
	for _, t := range f.targets {
		names = append(names, t.name)
	}
	return names
}

// PublishError lists the transports that failed one publish.
type PublishError struct {
	Failed []string
	err    error
}

func (e *PublishError) Error() string { return e.err.Error() }

func (e *PublishError) Unwrap() error { return e.err }

// Publish tries every transport; one failing does not stop the others.
// A failure is reported as *PublishError.
func (f *Fanout) Publish(ctx context.Context, channel, eventType string, payload any) error {
	return f.publish(ctx, f.targets, channel, eventType, payload)
}

// PublishTo delivers only to the named transports, so a caller can retry
// the ones a previous Publish reported without repeating the rest.
func (f *Fanout) PublishTo(ctx context.Context, transports []string, channel, eventType string, payload any) error {
	selected := make([]target, 0, len(transports))
	for _, t := range f.targets {
		for _, name := range transports {
			if t.name == name {
				selected = append(selected, t)
				break
			}
		}
	}
	return f.publish(ctx, selected, channel, eventType, payload)
}

func (f *Fanout) publish(ctx context.Context, targets []target, channel, eventType string, payload any) error {
	var (
		errs   []error
		failed []string
	)
	for _, t := range targets {
		err := t.notifier.Publish(ctx, channel, eventType, payload)
		metrics.ObserveNotification(t.name, err)
		if err != nil {
			f.logger.Warn().Err(err).Str("transport", t.name).Str("channel", channel).Str("event", eventType).Msg("notification transport failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
			failed = append(failed, t.name)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &PublishError{Failed: failed, err: errors.Join(errs...)}
}
