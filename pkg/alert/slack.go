package alert

import (
	"context"
	"fmt"
	"net/http"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: defaultTimeout},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	// Block Kit message.
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("⚠️ %s", n.Title),
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s*\n%d opinionated comments\n<%s|Open on YouTube>", n.Summary(), n.Opinionated, n.URL),
			},
		},
	}
	if n.ThumbnailURL != "" {
		blocks[1]["accessory"] = map[string]any{
			"type":      "image",
			"image_url": n.ThumbnailURL,
			"alt_text":  n.Title,
		}
	}

	status, err := postJSON(ctx, s.client, s.webhookURL, map[string]any{"blocks": blocks}, nil)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", status)
	}
	return nil
}
