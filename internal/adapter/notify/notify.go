// Package notify delivers overweight alerts to the traveller.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"suitcase-link/internal/domain"
)

// LogNotifier writes alerts to the structured log. It stands in for the
// handset's local notification.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Name implements domain.Notifier.
func (n *LogNotifier) Name() string { return "log" }

// Notify implements domain.Notifier.
func (n *LogNotifier) Notify(_ context.Context, a domain.Alert) error {
	n.logger.Warn(a.Title,
		"alert_id", a.ID,
		"body", a.Body,
		"pounds", a.Pounds,
		"threshold", a.Threshold,
		"class", string(a.Class),
	)
	return nil
}

// Multi fans an alert out to several notifiers. Every notifier is tried;
// failures are joined.
type Multi []domain.Notifier

// Name implements domain.Notifier.
func (m Multi) Name() string { return "multi" }

// Notify implements domain.Notifier.
func (m Multi) Notify(ctx context.Context, a domain.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, domain.WrapOp(n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Compile-time interface checks.
var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Notifier = Multi(nil)
)
