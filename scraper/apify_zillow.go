package scraper

import (
	"encoding/json"

	"realty_watch/extract"
	"realty_watch/models"
)

// ZillowAdapter handles the zillow search actor
type ZillowAdapter struct{}

func (a *ZillowAdapter) SourceID() string {
	return "zillow"
}

var zillowHomeTypes = map[models.PropertyType]string{
	models.PropertyHouse:     "SINGLE_FAMILY",
	models.PropertyApartment: "APARTMENT",
	models.PropertyCondo:     "CONDO",
	models.PropertyTownhouse: "TOWNHOUSE",
	models.PropertyLand:      "LOT",
}

func (a *ZillowAdapter) BuildRequest(c models.SearchCriteria) map[string]interface{} {
	input := map[string]interface{}{
		"search":   c.Location,
		"type":     "sale",
		"maxItems": maxItems(c),
	}
	criteriaInput(input, c, "minPrice", "maxPrice", "minBeds", "minBaths")
	if homeType, ok := zillowHomeTypes[c.PropertyType]; ok {
		input["homeTypes"] = []string{homeType}
	}
	return input
}

// zillowFields reads the search-card shape first, then the detail shape.
var zillowFields = fieldSet{
	Title:       extract.Field{"title", "hdpData.homeInfo.streetAddress"},
	Price:       extract.Field{"unformattedPrice", "price", "hdpData.homeInfo.price"},
	Address:     extract.Field{"address", "addressStreet", "hdpData.homeInfo.streetAddress"},
	Bedrooms:    extract.Field{"beds", "bedrooms", "hdpData.homeInfo.bedrooms"},
	Bathrooms:   extract.Field{"baths", "bathrooms", "hdpData.homeInfo.bathrooms"},
	SquareFeet:  extract.Field{"area", "livingArea", "hdpData.homeInfo.livingArea"},
	Description: extract.Field{"description", "flexFieldText"},
	URL:         extract.Field{"detailUrl", "url"},
	Image:       extract.Field{"imgSrc", "imageUrl"},
	Agent:       extract.Field{"brokerName", "listingAgent"},
	Status:      extract.Field{"statusText", "statusType", "hdpData.homeInfo.homeStatus"},
}

func (a *ZillowAdapter) MapItems(items []json.RawMessage) ([]models.Listing, error) {
	return mapAll(items, zillowFields, a.SourceID(), "https://www.zillow.com")
}
