package services

import (
	"time"

	"realty_watch/models"
)

// runThreshold is the minimum time between two polls of a monitor.
func runThreshold(f models.Frequency) time.Duration {
	switch f {
	case models.FrequencyRealtime:
		return 15 * time.Minute
	case models.FrequencyWeekly:
		return 168 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ShouldRun reports whether a monitor is due at now. A monitor that was
// never checked is always due.
func ShouldRun(m *models.MonitorConfig, now time.Time) bool {
	if m.LastChecked == nil {
		return true
	}
	elapsedHours := now.Sub(*m.LastChecked).Hours()
	return elapsedHours >= runThreshold(m.Frequency).Hours()
}

// NextRun is the time the monitor becomes due again after a poll at now.
func NextRun(f models.Frequency, now time.Time) time.Time {
	switch f {
	case models.FrequencyRealtime:
		return now.Add(15 * time.Minute)
	case models.FrequencyWeekly:
		return now.AddDate(0, 0, 7)
	default:
		return now.AddDate(0, 0, 1)
	}
}

// FindNew returns the listings of current that were not in previous, in
// current's order. Listings without a url are always new.
func FindNew(current, previous []models.Listing) []models.Listing {
	if len(previous) == 0 {
		out := make([]models.Listing, len(current))
		copy(out, current)
		return out
	}

	seen := make(map[string]struct{}, len(previous))
	for _, l := range previous {
		if l.URL != "" {
			seen[l.URL] = struct{}{}
		}
	}

	out := []models.Listing{}
	for _, l := range current {
		if l.URL == "" {
			out = append(out, l)
			continue
		}
		if _, ok := seen[l.URL]; !ok {
			out = append(out, l)
		}
	}
	return out
}
