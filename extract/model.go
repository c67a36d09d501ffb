package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"realty_watch/models"
)

// MaxPromptText is how much rendered page text is sent to the model.
const MaxPromptText = 12000

var (
	fencedBlockRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

	ErrNoJSON = errors.New("no JSON array in model response")
)

// BuildPrompt renders the criteria as an instruction followed by page text.
func BuildPrompt(c models.SearchCriteria, pageText string) string {
	if len(pageText) > MaxPromptText {
		pageText = truncateUTF8(pageText, MaxPromptText)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extract real estate listings for %s from the page text below.\n", c.Location)
	if c.PropertyType != "" && c.PropertyType != models.PropertyAny {
		fmt.Fprintf(&b, "Only include %s properties.\n", c.PropertyType)
	}
	switch {
	case c.MinPrice != nil && c.MaxPrice != nil:
		fmt.Fprintf(&b, "Price between $%d and $%d.\n", *c.MinPrice, *c.MaxPrice)
	case c.MinPrice != nil:
		fmt.Fprintf(&b, "Price at least $%d.\n", *c.MinPrice)
	case c.MaxPrice != nil:
		fmt.Fprintf(&b, "Price at most $%d.\n", *c.MaxPrice)
	}
	if c.Bedrooms != nil {
		fmt.Fprintf(&b, "At least %d bedrooms.\n", *c.Bedrooms)
	}
	if c.Bathrooms != nil {
		fmt.Fprintf(&b, "At least %d bathrooms.\n", *c.Bathrooms)
	}
	if c.MaxResults > 0 {
		fmt.Fprintf(&b, "Return at most %d listings.\n", c.MaxResults)
	}
	b.WriteString("Respond with a JSON array of objects with the fields: ")
	b.WriteString("title, address, price, bedrooms, bathrooms, squareFeet, description, url. ")
	b.WriteString("Use an empty string when a field is not on the page. Respond with JSON only.\n\n")
	b.WriteString("Page text:\n")
	b.WriteString(pageText)
	return b.String()
}

func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// ParseModelResponse pulls a JSON array of objects out of free model text.
// A fenced code block wins over a bare array; an array that was cut off
// before its closing bracket gets one appended.
func ParseModelResponse(text string) ([]map[string]interface{}, error) {
	source := text
	if m := fencedBlockRegex.FindStringSubmatch(text); m != nil {
		source = m[1]
	}
	candidate := bareArray(source)
	if candidate == "" {
		return nil, ErrNoJSON
	}

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &items); err != nil {
		return nil, fmt.Errorf("decode model JSON: %w", err)
	}
	return items, nil
}

// bareArray returns the first top-level JSON array in text. Brackets inside
// string values do not count. An array cut off while only the outer array is
// open gets its closing bracket appended.
func bareArray(text string) string {
	start := strings.Index(text, "[")
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	body := strings.TrimRight(text[start:], " \t\r\n,")
	if depth == 1 && !inString {
		return body + "]"
	}
	return body
}

// ModelListings maps decoded model objects into listings tagged with sourceTag.
func ModelListings(items []map[string]interface{}, sourceTag string) []models.Listing {
	listings := make([]models.Listing, 0, len(items))
	for _, item := range items {
		address := AddressField.Or(item, models.AddressNotSpecified)
		listings = append(listings, models.Listing{
			Title:       TitleField.Or(item, titleFor(address)),
			Price:       FormatPrice(PriceField.Or(item, models.PriceNotSpecified)),
			Address:     address,
			Bedrooms:    BedroomsField.Or(item, models.NotSpecified),
			Bathrooms:   BathroomsField.Or(item, models.NotSpecified),
			SquareFeet:  SquareFeetField.Or(item, models.NotSpecified),
			Description: DescriptionField.Or(item, ""),
			URL:         URLField.Or(item, ""),
			Source:      sourceTag,
		})
	}
	return listings
}

func titleFor(address string) string {
	if address == models.AddressNotSpecified {
		return "Property listing"
	}
	return "Property at " + address
}
