package models

import (
	"fmt"
	"strings"
)

type PropertyType string

const (
	PropertyHouse     PropertyType = "house"
	PropertyApartment PropertyType = "apartment"
	PropertyCondo     PropertyType = "condo"
	PropertyTownhouse PropertyType = "townhouse"
	PropertyLand      PropertyType = "land"
	PropertyAny       PropertyType = "any"
)

type Source string

const (
	SourceZillow  Source = "zillow"
	SourceRealtor Source = "realtor"
	SourceRedfin  Source = "redfin"
	SourceAny     Source = "any"
)

const DefaultMaxResults = 10

// SearchCriteria is the normalized search request every tier works from.
type SearchCriteria struct {
	Location      string       `json:"location"`
	MinPrice      *int         `json:"minPrice,omitempty"`
	MaxPrice      *int         `json:"maxPrice,omitempty"`
	PropertyType  PropertyType `json:"propertyType,omitempty"`
	Bedrooms      *int         `json:"bedrooms,omitempty"`
	Bathrooms     *int         `json:"bathrooms,omitempty"`
	MaxResults    int          `json:"maxResults,omitempty"`
	Source        Source       `json:"source,omitempty"`
	ForceFallback bool         `json:"forceFallback,omitempty"`
}

// ValidationError reports malformed caller input. No tier runs when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Normalize fills defaults and validates. The receiver is not modified.
func (c SearchCriteria) Normalize() (SearchCriteria, error) {
	c.Location = strings.TrimSpace(c.Location)
	if c.PropertyType == "" {
		c.PropertyType = PropertyAny
	}
	if c.Source == "" {
		c.Source = SourceAny
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if err := c.Validate(); err != nil {
		return SearchCriteria{}, err
	}
	return c, nil
}

func (c SearchCriteria) Validate() error {
	if c.Location == "" {
		return &ValidationError{Field: "location", Message: "is required"}
	}
	bounds := []struct {
		name string
		v    *int
	}{
		{"minPrice", c.MinPrice},
		{"maxPrice", c.MaxPrice},
		{"bedrooms", c.Bedrooms},
		{"bathrooms", c.Bathrooms},
	}
	for _, b := range bounds {
		if b.v != nil && *b.v < 0 {
			return &ValidationError{Field: b.name, Message: "cannot be negative"}
		}
	}
	if c.MinPrice != nil && c.MaxPrice != nil && *c.MinPrice > *c.MaxPrice {
		return &ValidationError{Field: "minPrice", Message: "cannot exceed maxPrice"}
	}
	if c.MaxResults <= 0 {
		return &ValidationError{Field: "maxResults", Message: "must be positive"}
	}
	switch c.PropertyType {
	case PropertyHouse, PropertyApartment, PropertyCondo, PropertyTownhouse, PropertyLand, PropertyAny:
	default:
		return &ValidationError{Field: "propertyType", Message: fmt.Sprintf("unknown value %q", c.PropertyType)}
	}
	switch c.Source {
	case SourceZillow, SourceRealtor, SourceRedfin, SourceAny:
	default:
		return &ValidationError{Field: "source", Message: fmt.Sprintf("unknown value %q", c.Source)}
	}
	return nil
}

// IntPtr is a convenience for building criteria literals.
func IntPtr(v int) *int {
	return &v
}
