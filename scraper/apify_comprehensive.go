package scraper

import (
	"encoding/json"

	"realty_watch/extract"
	"realty_watch/models"
)

// ComprehensiveAdapter handles the multi-site actor used when no source is
// requested. Items keep the site they came from as their source tag.
type ComprehensiveAdapter struct{}

func (a *ComprehensiveAdapter) SourceID() string {
	return "comprehensive"
}

func (a *ComprehensiveAdapter) BuildRequest(c models.SearchCriteria) map[string]interface{} {
	input := map[string]interface{}{
		"location":   c.Location,
		"sites":      []string{"zillow", "realtor", "redfin"},
		"maxResults": maxItems(c),
	}
	criteriaInput(input, c, "minPrice", "maxPrice", "bedrooms", "bathrooms")
	if c.PropertyType != "" {
		input["propertyType"] = string(c.PropertyType)
	}
	return input
}

var siteField = extract.Field{"source", "site", "platform"}

func (a *ComprehensiveAdapter) MapItems(items []json.RawMessage) ([]models.Listing, error) {
	decoded, err := decodeItems(items)
	if err != nil {
		return nil, err
	}
	listings := make([]models.Listing, 0, len(decoded))
	for _, item := range decoded {
		listings = append(listings, mapItem(item, defaultFields, siteField.Or(item, a.SourceID()), ""))
	}
	return listings, nil
}
