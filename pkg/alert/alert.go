// Package alert delivers low-rating notifications to chat and webhook
// destinations.
package alert

import (
	"context"
	"errors"
	"fmt"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	VideoID      string   `json:"video_id"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Rating       float64  `json:"rating"`
	Threshold    float64  `json:"threshold"`
	Previous     *float64 `json:"previous,omitempty"`
	Opinionated  int      `json:"opinionated"`
}

// Summary is the one-line text every chat notifier shows.
func (n *Notification) Summary() string {
	s := fmt.Sprintf("Rating %.2f is below %.2f", n.Rating, n.Threshold)
	if n.Previous != nil {
		s += fmt.Sprintf(" (was %.2f)", *n.Previous)
	}
	return s
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to every notifier, even after one fails.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
