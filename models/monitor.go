package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MonitorCriteria is SearchCriteria without maxResults and source; monitors
// always search every source with the default result cap.
type MonitorCriteria struct {
	Location      string       `json:"location"`
	MinPrice      *int         `json:"minPrice,omitempty"`
	MaxPrice      *int         `json:"maxPrice,omitempty"`
	PropertyType  PropertyType `json:"propertyType,omitempty"`
	Bedrooms      *int         `json:"bedrooms,omitempty"`
	Bathrooms     *int         `json:"bathrooms,omitempty"`
	ForceFallback bool         `json:"forceFallback,omitempty"`
}

func (m MonitorCriteria) Search() SearchCriteria {
	return SearchCriteria{
		Location:      m.Location,
		MinPrice:      m.MinPrice,
		MaxPrice:      m.MaxPrice,
		PropertyType:  m.PropertyType,
		Bedrooms:      m.Bedrooms,
		Bathrooms:     m.Bathrooms,
		ForceFallback: m.ForceFallback,
		MaxResults:    DefaultMaxResults,
		Source:        SourceAny,
	}
}

type MonitorConfig struct {
	ID                string            `json:"id"`
	CreatedAt         time.Time         `json:"createdAt"`
	Criteria          MonitorCriteria   `json:"criteria"`
	Frequency         Frequency         `json:"frequency"`
	NotificationEmail string            `json:"notificationEmail,omitempty"`
	LastChecked       *time.Time        `json:"lastChecked"`
	LastResults       *ExtractionResult `json:"lastResults"`
	NextRun           *time.Time        `json:"nextRun"`
}

// Validate checks caller-supplied monitor fields. Frequency may be empty.
func (m *MonitorConfig) Validate() error {
	if _, err := m.Criteria.Search().Normalize(); err != nil {
		return err
	}
	switch m.Frequency {
	case "", FrequencyRealtime, FrequencyDaily, FrequencyWeekly:
	default:
		return &ValidationError{Field: "frequency", Message: fmt.Sprintf("unknown value %q", m.Frequency)}
	}
	if email := strings.TrimSpace(m.NotificationEmail); email != "" && !emailRegex.MatchString(email) {
		return &ValidationError{Field: "notificationEmail", Message: fmt.Sprintf("%q is not an email address", email)}
	}
	return nil
}
