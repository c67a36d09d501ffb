package scraper

import (
	"encoding/json"

	"realty_watch/extract"
	"realty_watch/models"
)

// RealtorAdapter handles the realtor.com search actor
type RealtorAdapter struct{}

func (a *RealtorAdapter) SourceID() string {
	return "realtor"
}

var realtorPropertyTypes = map[models.PropertyType]string{
	models.PropertyHouse:     "single_family",
	models.PropertyApartment: "multi_family",
	models.PropertyCondo:     "condo",
	models.PropertyTownhouse: "townhome",
	models.PropertyLand:      "land",
}

func (a *RealtorAdapter) BuildRequest(c models.SearchCriteria) map[string]interface{} {
	input := map[string]interface{}{
		"location": c.Location,
		"mode":     "BUY",
		"maxItems": maxItems(c),
	}
	criteriaInput(input, c, "priceMin", "priceMax", "bedsMin", "bathsMin")
	if pt, ok := realtorPropertyTypes[c.PropertyType]; ok {
		input["propertyType"] = pt
	}
	return input
}

var realtorFields = fieldSet{
	Title:       extract.Field{"title", "location.address.line"},
	Price:       extract.Field{"list_price", "listPrice", "price"},
	Address:     extract.Field{"location.address", "address"},
	Bedrooms:    extract.Field{"description.beds", "beds", "bedrooms"},
	Bathrooms:   extract.Field{"description.baths", "baths", "bathrooms"},
	SquareFeet:  extract.Field{"description.sqft", "sqft", "squareFeet"},
	Description: extract.Field{"description.text", "remarks", "description"},
	URL:         extract.Field{"permalink", "href", "url"},
	Image:       extract.Field{"primary_photo.href", "photo", "imageUrl"},
	Agent:       extract.Field{"advertisers.name", "agent", "listingAgent"},
	Status:      extract.Field{"status", "listingStatus"},
}

func (a *RealtorAdapter) MapItems(items []json.RawMessage) ([]models.Listing, error) {
	return mapAll(items, realtorFields, a.SourceID(), "https://www.realtor.com")
}
