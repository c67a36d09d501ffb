package services

import (
	"context"

	"realty_watch/logging"
	"realty_watch/models"
)

// Notifier is told about new listings on monitors with a notification email.
type Notifier interface {
	Notify(ctx context.Context, m *models.MonitorConfig, newListings []models.Listing) error
}

// LogNotifier only logs; there is no delivery.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, m *models.MonitorConfig, newListings []models.Listing) error {
	logging.Infof("Monitor %s: would notify %s of %d new listings", m.ID, m.NotificationEmail, len(newListings))
	return nil
}
