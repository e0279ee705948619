package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablequeue/internal/domain"
	"tablequeue/internal/events"
	"tablequeue/internal/models"
	"tablequeue/internal/notify"

	"github.com/rs/zerolog"
)

// NearbyChecker is the part of the queue engine the reminder worker drives.
type NearbyChecker interface {
	CheckNearby(ctx context.Context, shopID string) ([]*models.NearbyQueue, error)
	MarkNotified(ctx context.Context, queueID string) error
}

type ShopLister interface {
	List(ctx context.Context) ([]*models.Shop, error)
}

// NearbyWorker periodically tells waiting customers that their turn is close.
type NearbyWorker struct {
	queues   NearbyChecker
	shops    ShopLister
	notifier domain.Notifier
	interval time.Duration
	retry    RetryPolicy
	logger   *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewNearbyWorker(
	queues NearbyChecker,
	shops ShopLister,
	notifier domain.Notifier,
	interval time.Duration,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *NearbyWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NearbyWorker{
		queues:   queues,
		shops:    shops,
		notifier: notifier,
		interval: interval,
		retry:    retry,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start runs a round every interval until ctx is done.
func (w *NearbyWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("nearby worker started")
	defer w.logger.Info().Msg("nearby worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("nearby round failed")
			}
		}
	}
}

// RunOnce checks every shop and returns how many customers were notified.
// A shop that fails does not stop the round.
func (w *NearbyWorker) RunOnce(ctx context.Context) (int, error) {
	shops, err := w.shops.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list shops: %w", err)
	}

	total := 0
	for _, shop := range shops {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := w.runShop(ctx, shop.ID)
		total += n
		if err != nil {
			w.logger.Warn().Err(err).Str("shop_id", shop.ID).Msg("nearby check failed")
		}
	}
	return total, nil
}

func (w *NearbyWorker) runShop(ctx context.Context, shopID string) (int, error) {
	nearby, err := w.queues.CheckNearby(ctx, shopID)
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, q := range nearby {
		if !q.ShouldNotify {
			continue
		}
		event := models.QueueNearbyEvent{
			QueueID:     q.ID,
			ShopID:      q.ShopID,
			TableTypeID: q.TableTypeID,
			QueueNumber: q.QueueNumber,
		}
		if err := w.publishWithRetry(ctx, events.CustomerChannel(q.CustomerID), event); err != nil {
			// Left unmarked so the next round tries again.
			w.logger.Error().Err(err).Str("queue_id", q.ID).Msg("nearby notification failed")
			continue
		}
		if err := w.queues.MarkNotified(ctx, q.ID); err != nil {
			w.logger.Error().Err(err).Str("queue_id", q.ID).Msg("mark notified failed")
			continue
		}
		notified++
	}
	return notified, nil
}

// selectivePublisher can resend to a subset of its transports.
type selectivePublisher interface {
	PublishTo(ctx context.Context, transports []string, channel, eventType string, payload any) error
}

// publishWithRetry retries only the transports that failed, so customers
// do not get the reminder twice on the channels that already delivered it.
func (w *NearbyWorker) publishWithRetry(ctx context.Context, channel string, event models.QueueNearbyEvent) error {
	var pending []string
	return w.retry.Do(ctx, w.sleep,
		func() error {
			var err error
			if sp, ok := w.notifier.(selectivePublisher); ok && pending != nil {
				err = sp.PublishTo(ctx, pending, channel, events.EventQueueNearby, event)
			} else {
				err = w.notifier.Publish(ctx, channel, events.EventQueueNearby, event)
			}
			var pubErr *notify.PublishError
			if errors.As(err, &pubErr) {
				pending = pubErr.Failed
			}
			return err
		},
		func(attempt int, delay time.Duration, err error) {
			w.logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Strs("transports", pending).Str("channel", channel).Msg("retrying nearby notification")
		},
	)
}
