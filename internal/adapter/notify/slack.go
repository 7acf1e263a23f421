package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/slack-go/slack"

	"suitcase-link/internal/domain"
)

// SlackNotifier posts alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
}

// NewSlackNotifier creates a notifier for webhookURL. channel may be empty
// to use the webhook's default.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, channel: channel}
}

// Name implements domain.Notifier.
func (n *SlackNotifier) Name() string { return "slack" }

// Notify implements domain.Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, a domain.Alert) error {
	msg := &slack.WebhookMessage{
		Channel: n.channel,
		Text:    fmt.Sprintf(":warning: *%s*\n%s", a.Title, a.Body),
		Attachments: []slack.Attachment{{
			Color: "danger",
			Fields: []slack.AttachmentField{
				{Title: "Weight", Value: strconv.FormatFloat(a.Pounds, 'f', 2, 64) + " lbs", Short: true},
				{Title: "Limit", Value: strconv.FormatFloat(a.Threshold, 'f', -1, 64) + " lbs", Short: true},
				{Title: "Class", Value: a.Class.Title(), Short: true},
			},
			Footer: a.ID,
		}},
	}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

var _ domain.Notifier = (*SlackNotifier)(nil)
