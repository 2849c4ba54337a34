package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// Alerter implements domain.Alerter on top of a Notifier. Delivery is
// best-effort: send failures are logged and never propagated, so a broken
// notification channel can never crash the monitor. When an AlertStore and
// Publisher are configured, every alert is also recorded for audit and
// published to the dashboard.
type Alerter struct {
	notifier *Notifier
	store    domain.AlertStore // optional
	pub      domain.Publisher  // optional
	logger   *slog.Logger
}

// NewAlerter creates an Alerter. store and pub may be nil.
func NewAlerter(notifier *Notifier, store domain.AlertStore, pub domain.Publisher, logger *slog.Logger) *Alerter {
	return &Alerter{
		notifier: notifier,
		store:    store,
		pub:      pub,
		logger:   logger.With(slog.String("component", "alerter")),
	}
}

// Alert sends a notification and records it. All failures are swallowed
// after logging.
func (a *Alerter) Alert(ctx context.Context, event, title, message string) {
	if err := a.notifier.Notify(ctx, event, title, message); err != nil {
		a.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}

	rec := domain.Alert{
		ID:        uuid.New().String(),
		Event:     event,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if a.store != nil {
		if err := a.store.Create(ctx, rec); err != nil {
			a.logger.WarnContext(ctx, "alert audit write failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}

	if a.pub != nil {
		if err := a.pub.Publish(ctx, "alerts", rec); err != nil {
			a.logger.DebugContext(ctx, "alert publish failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Compile-time interface check.
var _ domain.Alerter = (*Alerter)(nil)
