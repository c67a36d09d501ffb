package models

// Placeholders used instead of empty values when a source omits a field.
const (
	NotSpecified            = "Not specified"
	PriceNotSpecified       = "Price not specified"
	AddressNotSpecified     = "Address not specified"
	NotSpecifiedInSimpleRun = "Not specified in simple parsing"
)

// Listing is the common record every source and tier is mapped into.
// Price, room counts and area stay free-form strings; sources disagree on formats.
type Listing struct {
	Title         string `json:"title"`
	Price         string `json:"price"`
	Address       string `json:"address"`
	Bedrooms      string `json:"bedrooms"`
	Bathrooms     string `json:"bathrooms"`
	SquareFeet    string `json:"squareFeet"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	Source        string `json:"source"`
	ImageURL      string `json:"imageUrl,omitempty"`
	ListingAgent  string `json:"listingAgent,omitempty"`
	ListingStatus string `json:"listingStatus,omitempty"`
}

type ExtractionResult struct {
	Count    int       `json:"count"`
	Listings []Listing `json:"listings"`
	Note     string    `json:"note,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// NewResult builds a result whose Count always matches its listings.
func NewResult(listings []Listing, note string) ExtractionResult {
	if listings == nil {
		listings = []Listing{}
	}
	return ExtractionResult{Count: len(listings), Listings: listings, Note: note}
}

// FailedResult is the terminal shape returned once every tier is exhausted.
func FailedResult(errMsg string) ExtractionResult {
	return ExtractionResult{Count: 0, Listings: []Listing{}, Error: errMsg}
}

func (r ExtractionResult) Failed() bool {
	return r.Error != ""
}
