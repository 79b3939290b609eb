package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
	now        func() time.Time
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: defaultTimeout},
		webhookURL: webhookURL,
		now:        time.Now,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	embed := map[string]any{
		"title":       n.Title,
		"url":         n.URL,
		"description": fmt.Sprintf("**%s**\n%d opinionated comments", n.Summary(), n.Opinionated),
		"color":       0xCC0000,
		"timestamp":   d.now().UTC().Format(time.RFC3339),
	}
	if n.ThumbnailURL != "" {
		embed["thumbnail"] = map[string]any{"url": n.ThumbnailURL}
	}

	status, err := postJSON(ctx, d.client, d.webhookURL, map[string]any{"embeds": []map[string]any{embed}}, nil)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("discord webhook status %d", status)
	}
	return nil
}
