package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"realty_watch/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestPatternListings_BoundedByPriceCount(t *testing.T) {
	text := loadFixture(t, "seattle_results.txt")

	tokens := ScanTokens(text)
	if len(tokens.Prices) != 3 {
		t.Fatalf("expected 3 price tokens, got %d: %v", len(tokens.Prices), tokens.Prices)
	}
	if len(tokens.Addresses) != 5 {
		t.Fatalf("expected 5 address tokens, got %d: %v", len(tokens.Addresses), tokens.Addresses)
	}
	if len(tokens.Bedrooms) != 0 {
		t.Fatalf("expected no bedroom tokens, got %v", tokens.Bedrooms)
	}

	listings := PatternListings(text, "zillow (pattern extraction)")
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}
	for i, l := range listings {
		if l.Bedrooms != models.NotSpecified {
			t.Fatalf("listing %d: expected bedrooms %q, got %q", i, models.NotSpecified, l.Bedrooms)
		}
		if l.Source != "zillow (pattern extraction)" {
			t.Fatalf("listing %d: unexpected source %q", i, l.Source)
		}
		if l.URL != "" {
			t.Fatalf("listing %d: pattern listings carry no url, got %q", i, l.URL)
		}
	}
}

// Positional zipping is approximate: this only pins the pairing the heuristic
// produces for a page whose cards list address then price.
func TestPatternListings_PositionalZip(t *testing.T) {
	listings := PatternListings(loadFixture(t, "seattle_results.txt"), "redfin (pattern extraction)")

	if listings[0].Address != "123 Main St, Seattle, WA 98101" {
		t.Fatalf("unexpected first address %q", listings[0].Address)
	}
	if listings[0].Price != "$750,000" {
		t.Fatalf("unexpected first price %q", listings[0].Price)
	}
	if listings[1].Address != "456 Oak Avenue" || listings[1].Price != "$1,200,000" {
		t.Fatalf("unexpected second listing %+v", listings[1])
	}
	if !strings.HasPrefix(listings[2].Title, "Property at 789 Pine Rd") {
		t.Fatalf("unexpected third title %q", listings[2].Title)
	}
}

func TestPatternListings_SecondaryFieldsFloorAtTen(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("$500,000\n")
	}

	listings := PatternListings(b.String(), "zillow (pattern extraction)")
	if len(listings) != 10 {
		t.Fatalf("expected 10 listings, got %d", len(listings))
	}
	if listings[0].Address != models.NotSpecified {
		t.Fatalf("expected placeholder address, got %q", listings[0].Address)
	}
	if listings[0].Title != "Property listing 1" {
		t.Fatalf("unexpected title %q", listings[0].Title)
	}
}

func TestPatternListings_NoPrices(t *testing.T) {
	listings := PatternListings("123 Main St\n3 beds 2 baths", "zillow (pattern extraction)")
	if len(listings) != 0 {
		t.Fatalf("expected no listings without prices, got %d", len(listings))
	}
}

func TestScanTokens_RoomsAndArea(t *testing.T) {
	text := "$649,900 | 3 bds | 2.5 ba | 1,850 sqft\n$1.2M 4 Bedrooms 3 Bathrooms 2400 sq ft"
	tokens := ScanTokens(text)

	cases := []struct {
		name string
		got  []string
		want []string
	}{
		{"prices", tokens.Prices, []string{"$649,900", "$1.2M"}},
		{"bedrooms", tokens.Bedrooms, []string{"3", "4"}},
		{"bathrooms", tokens.Bathrooms, []string{"2.5", "3"}},
		{"sqft", tokens.SqFt, []string{"1,850", "2400"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if strings.Join(tc.got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestPatternListings_Deterministic(t *testing.T) {
	text := loadFixture(t, "seattle_results.txt")
	first := PatternListings(text, "zillow (pattern extraction)")
	second := PatternListings(text, "zillow (pattern extraction)")
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("listing %d differs between runs", i)
		}
	}
}
