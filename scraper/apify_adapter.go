package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"realty_watch/extract"
	"realty_watch/models"
)

// SourceAdapter converts criteria into one actor's input and the actor's
// dataset items back into listings.
type SourceAdapter interface {
	SourceID() string
	BuildRequest(c models.SearchCriteria) map[string]interface{}
	MapItems(items []json.RawMessage) ([]models.Listing, error)
}

// GetSourceAdapter returns the adapter for sourceID. "any" maps to the
// comprehensive actor.
func GetSourceAdapter(sourceID string) (SourceAdapter, error) {
	switch sourceID {
	case "zillow":
		return &ZillowAdapter{}, nil
	case "realtor":
		return &RealtorAdapter{}, nil
	case "redfin":
		return &RedfinAdapter{}, nil
	case "any", "comprehensive":
		return &ComprehensiveAdapter{}, nil
	default:
		return nil, fmt.Errorf("unknown source: %s", sourceID)
	}
}

// BuildRequest builds the upstream input for sourceID.
func BuildRequest(c models.SearchCriteria, sourceID string) (map[string]interface{}, error) {
	adapter, err := GetSourceAdapter(sourceID)
	if err != nil {
		return nil, err
	}
	return adapter.BuildRequest(c), nil
}

// MapItems maps raw upstream items for sourceID into listings.
func MapItems(items []json.RawMessage, sourceID string) ([]models.Listing, error) {
	adapter, err := GetSourceAdapter(sourceID)
	if err != nil {
		return nil, err
	}
	return adapter.MapItems(items)
}

// fieldSet is the synonym table one upstream is read with.
type fieldSet struct {
	Title, Price, Address, Bedrooms, Bathrooms, SquareFeet extract.Field
	Description, URL, Image, Agent, Status                 extract.Field
}

var defaultFields = fieldSet{
	Title:       extract.TitleField,
	Price:       extract.PriceField,
	Address:     extract.AddressField,
	Bedrooms:    extract.BedroomsField,
	Bathrooms:   extract.BathroomsField,
	SquareFeet:  extract.SquareFeetField,
	Description: extract.DescriptionField,
	URL:         extract.URLField,
	Image:       extract.ImageField,
	Agent:       extract.AgentField,
	Status:      extract.StatusField,
}

// decodeItems fails on the first item that is not a JSON object.
func decodeItems(items []json.RawMessage) ([]map[string]interface{}, error) {
	decoded := make([]map[string]interface{}, 0, len(items))
	for i, raw := range items {
		var item map[string]interface{}
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if item == nil {
			return nil, fmt.Errorf("item %d: not an object", i)
		}
		decoded = append(decoded, item)
	}
	return decoded, nil
}

func mapItem(item map[string]interface{}, fs fieldSet, source, baseURL string) models.Listing {
	address := fs.Address.Or(item, models.AddressNotSpecified)
	title := fs.Title.Or(item, "")
	if title == "" {
		title = "Property at " + address
		if address == models.AddressNotSpecified {
			title = "Property listing"
		}
	}

	return models.Listing{
		Title:         title,
		Price:         extract.FormatPrice(fs.Price.Or(item, models.PriceNotSpecified)),
		Address:       address,
		Bedrooms:      fs.Bedrooms.Or(item, models.NotSpecified),
		Bathrooms:     fs.Bathrooms.Or(item, models.NotSpecified),
		SquareFeet:    fs.SquareFeet.Or(item, models.NotSpecified),
		Description:   fs.Description.Or(item, models.NotSpecified),
		URL:           absoluteURL(baseURL, fs.URL.Or(item, "")),
		Source:        source,
		ImageURL:      fs.Image.Or(item, ""),
		ListingAgent:  fs.Agent.Or(item, ""),
		ListingStatus: fs.Status.Or(item, ""),
	}
}

func mapAll(items []json.RawMessage, fs fieldSet, source, baseURL string) ([]models.Listing, error) {
	decoded, err := decodeItems(items)
	if err != nil {
		return nil, err
	}
	listings := make([]models.Listing, 0, len(decoded))
	for _, item := range decoded {
		listings = append(listings, mapItem(item, fs, source, baseURL))
	}
	return listings, nil
}

func absoluteURL(baseURL, href string) string {
	if href == "" || baseURL == "" || !strings.HasPrefix(href, "/") {
		return href
	}
	return strings.TrimSuffix(baseURL, "/") + href
}

// criteriaInput fills the filter keys most actors share, using the given names.
func criteriaInput(input map[string]interface{}, c models.SearchCriteria, minPrice, maxPrice, beds, baths string) {
	if c.MinPrice != nil {
		input[minPrice] = *c.MinPrice
	}
	if c.MaxPrice != nil {
		input[maxPrice] = *c.MaxPrice
	}
	if c.Bedrooms != nil {
		input[beds] = *c.Bedrooms
	}
	if c.Bathrooms != nil {
		input[baths] = *c.Bathrooms
	}
}

func maxItems(c models.SearchCriteria) int {
	if c.MaxResults > 0 {
		return c.MaxResults
	}
	return models.DefaultMaxResults
}
