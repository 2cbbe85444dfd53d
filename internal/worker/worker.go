package worker

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const restockDedupTTL = 24 * time.Hour

// SubscriberIndex finds the sessions waiting on a product
type SubscriberIndex interface {
	Subscribers(ctx context.Context, productID int64) ([]string, error)
	RemoveSubscriber(ctx context.Context, productID int64, sessionID string) error
}

// Deduper claims an event id once. A claim is released when the event could
// not be fanned out, so a redelivery gets another try.
type Deduper interface {
	SetIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Notifier delivers a back-in-stock message over the subscription's channels
type Notifier interface {
	NotifyRestock(ctx context.Context, sessionID string, sub models.NotificationSubscription) error
}

// LogNotifier only logs. Email and LINE delivery live outside this service.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

func (n *LogNotifier) NotifyRestock(_ context.Context, sessionID string, sub models.NotificationSubscription) error {
	n.logger.Info("Back-in-stock notification",
		zap.String("session_id", sessionID),
		zap.Int64("product_id", sub.ProductID),
		zap.Bool("email", sub.Email != ""),
		zap.Bool("line", sub.Line != ""))
	return nil
}

// RestockWorker fans PRODUCT_RESTOCKED events out to subscribed wishlists
type RestockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	sessions     *session.Registry
	index        SubscriberIndex
	dedup        Deduper
	notifier     Notifier
	logger       *zap.Logger
}

// NewRestockWorker creates a new restock worker
func NewRestockWorker(
	consumer *broker.Consumer,
	sessions *session.Registry,
	index SubscriberIndex,
	dedup Deduper,
	notifier Notifier,
) *RestockWorker {
	w := &RestockWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		sessions:     sessions,
		index:        index,
		dedup:        dedup,
		notifier:     notifier,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnProductRestocked(w.HandleProductRestocked)
	return w
}

// Start consumes until ctx is done
func (w *RestockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting restock worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *RestockWorker) Stop() error {
	w.logger.Info("Stopping restock worker")
	return w.consumer.Close()
}

// HandleProductRestocked marks every pending subscription for the product as
// notified and hands it to the notifier. Each subscription is notified once
// until the visitor subscribes again.
func (w *RestockWorker) HandleProductRestocked(ctx context.Context, event *models.ProductRestockedEvent) error {
	ctx, span := util.StartSpan(ctx, "RestockWorker.HandleProductRestocked")
	defer span.End()

	if event.Available <= 0 {
		return nil
	}

	dedupKey := ""
	if event.EventID != "" && w.dedup != nil {
		dedupKey = "restock:" + event.EventID
		claimed, err := w.dedup.SetIdempotencyKey(ctx, dedupKey, restockDedupTTL)
		if err != nil {
			return fmt.Errorf("failed to claim restock event: %w", err)
		}
		if !claimed {
			w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}
	}

	sessionIDs, err := w.index.Subscribers(ctx, event.ProductID)
	if err != nil {
		if dedupKey != "" {
			if rerr := w.dedup.ReleaseIdempotencyKey(context.WithoutCancel(ctx), dedupKey); rerr != nil {
				w.logger.Error("Failed to release restock event claim",
					zap.String("event_id", event.EventID),
					zap.Error(rerr))
			}
		}
		return fmt.Errorf("failed to list subscribers: %w", err)
	}

	notified := 0
	for _, sid := range sessionIDs {
		wl := w.sessions.Get(ctx, sid).Wishlist

		if _, ok := wl.Subscription(event.ProductID); !ok {
			if err := w.index.RemoveSubscriber(ctx, event.ProductID, sid); err != nil {
				w.logger.Warn("Failed to drop stale subscriber", zap.String("session_id", sid), zap.Error(err))
			}
			continue
		}

		sub, pending := wl.MarkNotified(event.ProductID)
		if !pending {
			continue
		}

		if err := w.notifier.NotifyRestock(ctx, sid, sub); err != nil {
			w.logger.Error("Failed to deliver restock notification",
				zap.String("session_id", sid),
				zap.Int64("product_id", event.ProductID),
				zap.Error(err))
			continue
		}
		util.RestockNotificationsTotal.Inc()
		notified++
	}

	w.logger.Info("Restock processed",
		zap.Int64("product_id", event.ProductID),
		zap.Int("subscribers", len(sessionIDs)),
		zap.Int("notified", notified))
	return nil
}

// SessionJanitor evicts idle sessions from memory on a fixed interval
type SessionJanitor struct {
	sessions *session.Registry
	idle     time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewSessionJanitor(sessions *session.Registry, idle, interval time.Duration) *SessionJanitor {
	return &SessionJanitor{
		sessions: sessions,
		idle:     idle,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs until ctx is done
func (j *SessionJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Stopping session janitor")
			return
		case <-ticker.C:
			j.sessions.Evict(j.idle)
		}
	}
}
