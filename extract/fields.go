// Package extract turns raw items and unstructured page text into listings.
// Nothing here performs I/O.
package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is an ordered list of candidate keys for one logical attribute.
// Keys may be dotted paths into nested objects ("address.streetAddress").
type Field []string

var (
	TitleField       = Field{"title", "name", "headline"}
	PriceField       = Field{"price", "listPrice", "list_price", "unformattedPrice", "cost"}
	AddressField     = Field{"address", "fullAddress", "streetAddress", "location"}
	BedroomsField    = Field{"bedrooms", "beds", "bed", "bedroomCount"}
	BathroomsField   = Field{"bathrooms", "baths", "bath", "bathroomCount"}
	SquareFeetField  = Field{"squareFeet", "livingArea", "sqft", "sqFt", "square_feet", "area"}
	DescriptionField = Field{"description", "desc", "summary", "remarks"}
	URLField         = Field{"url", "detailUrl", "link", "href", "permalink"}
	ImageField       = Field{"imageUrl", "imgSrc", "image", "photo"}
	AgentField       = Field{"listingAgent", "agentName", "brokerName", "agent"}
	StatusField      = Field{"listingStatus", "statusText", "status"}
)

// Lookup resolves the field against item, first present non-empty key wins.
func (f Field) Lookup(item map[string]interface{}) (string, bool) {
	for _, key := range f {
		v, ok := lookupPath(item, key)
		if !ok {
			continue
		}
		if s := Stringify(v); s != "" {
			return s, true
		}
	}
	return "", false
}

// Or returns the resolved value or def when no key is present.
func (f Field) Or(item map[string]interface{}, def string) string {
	if v, ok := f.Lookup(item); ok {
		return v
	}
	return def
}

func lookupPath(item map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = item
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Stringify renders a decoded JSON value as display text. Objects are
// flattened by joining their string leaves so nested address shapes still read.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case map[string]interface{}:
		var parts []string
		for _, k := range []string{"streetAddress", "line", "street", "city", "state", "zipcode", "postalCode", "value"} {
			if s := Stringify(val[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []interface{}:
		if len(val) == 0 {
			return ""
		}
		return Stringify(val[0])
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatPrice renders a bare non-negative number as a dollar amount and
// leaves anything else as-is.
func FormatPrice(raw string) string {
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n >= math.MaxInt64 {
		return raw
	}
	whole := strconv.FormatInt(int64(n), 10)
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return "$" + b.String()
}
