package extract

import (
	"errors"
	"strings"
	"testing"

	"realty_watch/models"
)

func TestParseModelResponse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{
			name: "fenced block",
			text: "Here you go:\n```json\n[{\"title\":\"A\"},{\"title\":\"B\"}]\n```\nLet me know.",
			want: 2,
		},
		{
			name: "fenced block wins over bare array",
			text: "[1, 2]\n```\n[{\"title\":\"A\"}]\n```",
			want: 1,
		},
		{
			name: "bare array in prose",
			text: "I found these listings: [{\"title\":\"A\"}] hope it helps",
			want: 1,
		},
		{
			name: "unterminated array",
			text: "[{\"title\":\"A\"},{\"title\":\"B\"},\n",
			want: 2,
		},
		{
			name: "object wrapping array",
			text: "```json\n{\"listings\": [{\"title\":\"A\"}]}\n```",
			want: 1,
		},
		{
			name: "unterminated with bracket inside a string",
			text: "[{\"title\":\"Unit [A] at 1 Main St\",\"price\":\"$500,000\"},{\"title\":\"B\",\"price\":\"$600,000\"},",
			want: 2,
		},
		{
			name: "unterminated with nested arrays",
			text: "[{\"title\":\"A\",\"photos\":[\"a.jpg\",\"b.jpg\"]},{\"title\":\"B\",\"photos\":[]}",
			want: 2,
		},
		{
			name: "escaped quote before bracket",
			text: "Result: [{\"title\":\"The \\\"Loft]\\\" unit\"}] done",
			want: 1,
		},
		{name: "no json", text: "Sorry, I could not find any listings.", wantErr: true},
		{name: "truncated object", text: "[{\"title\":\"A\"}, {\"title\": \"B", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseModelResponse(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d items", len(items))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != tt.want {
				t.Fatalf("got %d items, want %d", len(items), tt.want)
			}
		})
	}
}

func TestParseModelResponse_NoJSONSentinel(t *testing.T) {
	_, err := ParseModelResponse("nothing here")
	if !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}

func TestModelListings_Synonyms(t *testing.T) {
	items, err := ParseModelResponse(`[
		{"name": "Craftsman bungalow", "location": "12 Elm St, Austin, TX", "listPrice": 750000,
		 "beds": 3, "baths": 2.5, "sqft": "1,850", "summary": "Updated kitchen", "link": "https://example.com/a"},
		{"title": "Lot", "price": "$95,000"}
	]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	listings := ModelListings(items, "redfin (model extraction)")
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.Title != "Craftsman bungalow" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Price != "$750,000" {
		t.Errorf("price = %q", first.Price)
	}
	if first.Bedrooms != "3" || first.Bathrooms != "2.5" || first.SquareFeet != "1,850" {
		t.Errorf("rooms = %q/%q/%q", first.Bedrooms, first.Bathrooms, first.SquareFeet)
	}
	if first.URL != "https://example.com/a" {
		t.Errorf("url = %q", first.URL)
	}
	if first.Source != "redfin (model extraction)" {
		t.Errorf("source = %q", first.Source)
	}

	second := listings[1]
	if second.Address != models.AddressNotSpecified {
		t.Errorf("address = %q", second.Address)
	}
	if second.Bedrooms != models.NotSpecified {
		t.Errorf("bedrooms = %q", second.Bedrooms)
	}
	if second.Price != "$95,000" {
		t.Errorf("price = %q", second.Price)
	}
}

func TestBuildPrompt(t *testing.T) {
	c := models.SearchCriteria{
		Location:     "Seattle, WA",
		MinPrice:     models.IntPtr(700000),
		MaxPrice:     models.IntPtr(1200000),
		Bedrooms:     models.IntPtr(3),
		PropertyType: models.PropertyHouse,
		MaxResults:   5,
	}
	page := strings.Repeat("x", MaxPromptText+500)

	prompt := BuildPrompt(c, page)
	for _, want := range []string{"Seattle, WA", "$700000 and $1200000", "At least 3 bedrooms", "house", "squareFeet", "at most 5"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Count(prompt, "x") > MaxPromptText+20 {
		t.Fatalf("page text was not truncated")
	}
}
