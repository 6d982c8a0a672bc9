// Package notify delivers alert notifications on a best-effort basis.
// Delivery never feeds back into the alert that triggered it.
package notify

import (
	"context"
	"log/slog"
)

// Notification is the user-facing rendering of a privacy alert.
type Notification struct {
	Title   string
	Body    string
	AppID   string
	AlertID string
}

// Notifier sends one notification synchronously.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Sink accepts notifications without blocking the caller. It reports whether
// the notification was accepted for delivery.
type Sink interface {
	Enqueue(n Notification) bool
}

// LogNotifier writes notifications to the log. It is the notifier used when
// no push URLs are configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("privacy alert", "title", n.Title, "body", n.Body, "app_id", n.AppID, "alert_id", n.AlertID)
	return nil
}
