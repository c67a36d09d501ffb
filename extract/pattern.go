package extract

import (
	"fmt"
	"regexp"

	"realty_watch/models"
)

var (
	PriceRegex   = regexp.MustCompile(`\$\s?\d+(?:,\d{3})*(?:\.\d+)?(?:[KkMm]\b)?`)
	addressRegex = regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Za-z][A-Za-z0-9.'-]*\s+){0,4}?(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct|Place|Pl|Circle|Cir|Parkway|Pkwy|Terrace|Ter|Highway|Hwy)\b\.?(?:,\s*[A-Za-z][A-Za-z .]*,\s*[A-Z]{2}(?:\s+\d{5})?)?`)
	bedsRegex    = regexp.MustCompile(`(?i)\b(\d+)\s*(?:bedrooms?|beds?|bds?|br)\b`)
	bathsRegex   = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:bathrooms?|baths?|ba)\b`)
	sqftRegex    = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+)\s*(?:sq\.?\s?ft\.?|sqft|square\s+feet)`)
)

// minFieldSpan is the floor applied to each secondary token count before it
// bounds the number of zipped listings.
const minFieldSpan = 10

// Tokens holds the independently matched token lists for one page.
type Tokens struct {
	Prices    []string
	Addresses []string
	Bedrooms  []string
	Bathrooms []string
	SqFt      []string
}

func ScanTokens(text string) Tokens {
	return Tokens{
		Prices:    PriceRegex.FindAllString(text, -1),
		Addresses: addressRegex.FindAllString(text, -1),
		Bedrooms:  submatches(bedsRegex, text),
		Bathrooms: submatches(bathsRegex, text),
		SqFt:      submatches(sqftRegex, text),
	}
}

func submatches(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// Count is min(prices, max(addresses,10), max(beds,10), max(baths,10), max(sqft,10)).
func (t Tokens) Count() int {
	n := len(t.Prices)
	for _, l := range [][]string{t.Addresses, t.Bedrooms, t.Bathrooms, t.SqFt} {
		n = min(n, max(len(l), minFieldSpan))
	}
	return n
}

// PatternListings zips the token lists by position. The i-th price is paired
// with the i-th address and so on, which can mis-associate fields when a page
// omits a value for one card; the output is approximate by construction.
func PatternListings(text, sourceTag string) []models.Listing {
	tokens := ScanTokens(text)
	n := tokens.Count()
	listings := make([]models.Listing, 0, n)
	for i := 0; i < n; i++ {
		address := at(tokens.Addresses, i)
		title := fmt.Sprintf("Property listing %d", i+1)
		if address != models.NotSpecified {
			title = "Property at " + address
		}
		listings = append(listings, models.Listing{
			Title:       title,
			Price:       tokens.Prices[i],
			Address:     address,
			Bedrooms:    at(tokens.Bedrooms, i),
			Bathrooms:   at(tokens.Bathrooms, i),
			SquareFeet:  at(tokens.SqFt, i),
			Description: "Extracted from page text by pattern matching",
			Source:      sourceTag,
		})
	}
	return listings
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return models.NotSpecified
}
