package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"suitcase-link/internal/domain"
)

// Throttled drops alerts that exceed a token-bucket rate, so a suitcase
// flapping around its allowance cannot flood the traveller.
type Throttled struct {
	inner   domain.Notifier
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewThrottled allows burst alerts at once and one more every per.
func NewThrottled(inner domain.Notifier, per time.Duration, burst int, logger *slog.Logger) *Throttled {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if per > 0 {
		limit = rate.Every(per)
	}
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Name implements domain.Notifier.
func (t *Throttled) Name() string { return t.inner.Name() }

// Notify implements domain.Notifier. A throttled alert is logged and
// reported as delivered.
func (t *Throttled) Notify(ctx context.Context, a domain.Alert) error {
	if !t.limiter.Allow() {
		t.logger.Info("alert throttled", "notifier", t.inner.Name(), "alert_id", a.ID)
		return nil
	}
	return t.inner.Notify(ctx, a)
}

var _ domain.Notifier = (*Throttled)(nil)
