package notify

import (
	"context"
	"log/slog"
	"time"

	"suitcase-link/internal/domain"
)

const defaultNotifyTimeout = 10 * time.Second

// Dispatcher forwards alert events from the bus to a notifier.
type Dispatcher struct {
	notifier domain.Notifier
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. timeout bounds each delivery.
func NewDispatcher(notifier domain.Notifier, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Dispatcher{notifier: notifier, timeout: timeout, logger: logger}
}

// Attach subscribes to alert events. The returned function detaches.
func (d *Dispatcher) Attach(bus domain.EventBus) func() {
	return bus.Subscribe(domain.EventAlertFired, d.handle)
}

func (d *Dispatcher) handle(ctx context.Context, e domain.Event) {
	alert, err := domain.DecodePayload[domain.Alert](e)
	if err != nil {
		d.logger.Error("decode alert event", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, alert); err != nil {
		d.logger.Error("alert delivery failed", "alert_id", alert.ID, "notifier", d.notifier.Name(), "error", err)
	}
}
