package scraper

import (
	"encoding/json"

	"realty_watch/extract"
	"realty_watch/models"
)

// RedfinAdapter handles the redfin search actor
type RedfinAdapter struct{}

func (a *RedfinAdapter) SourceID() string {
	return "redfin"
}

func (a *RedfinAdapter) BuildRequest(c models.SearchCriteria) map[string]interface{} {
	input := map[string]interface{}{
		"searchTerms": []string{c.Location},
		"maxItems":    maxItems(c),
	}
	criteriaInput(input, c, "min_price", "max_price", "min_beds", "min_baths")
	if c.PropertyType != "" && c.PropertyType != models.PropertyAny {
		input["property_type"] = string(c.PropertyType)
	}
	return input
}

var redfinFields = fieldSet{
	Title:       extract.Field{"title", "streetLine.value", "streetLine"},
	Price:       extract.Field{"price.value", "price"},
	Address:     extract.Field{"address", "streetLine.value", "streetLine"},
	Bedrooms:    extract.Field{"beds", "bedrooms"},
	Bathrooms:   extract.Field{"baths", "bathrooms"},
	SquareFeet:  extract.Field{"sqFt.value", "sqFt", "squareFeet"},
	Description: extract.Field{"listingRemarks", "description"},
	URL:         extract.Field{"url", "link"},
	Image:       extract.Field{"photoUrl", "imageUrl"},
	Agent:       extract.Field{"listingAgent.name", "listingAgent"},
	Status:      extract.Field{"mlsStatus", "status"},
}

func (a *RedfinAdapter) MapItems(items []json.RawMessage) ([]models.Listing, error) {
	return mapAll(items, redfinFields, a.SourceID(), "https://www.redfin.com")
}
