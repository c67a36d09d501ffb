package extract

import "testing"

func TestFieldLookup_FirstPresentWins(t *testing.T) {
	item := map[string]interface{}{
		"beds":     "4",
		"bedrooms": "",
		"address": map[string]interface{}{
			"streetAddress": "9 Lake Dr",
			"city":          "Boise",
			"state":         "ID",
		},
		"hdpData": map[string]interface{}{
			"homeInfo": map[string]interface{}{"livingArea": 2100.0},
		},
	}

	if got := BedroomsField.Or(item, "none"); got != "4" {
		t.Fatalf("bedrooms = %q, want 4 (empty values are skipped)", got)
	}
	if got := AddressField.Or(item, "none"); got != "9 Lake Dr, Boise, ID" {
		t.Fatalf("address = %q", got)
	}
	if got := (Field{"hdpData.homeInfo.livingArea"}).Or(item, "none"); got != "2100" {
		t.Fatalf("nested area = %q", got)
	}
	if got := BathroomsField.Or(item, "none"); got != "none" {
		t.Fatalf("bathrooms = %q, want default", got)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[string]string{
		"750000":     "$750,000",
		"1200000":    "$1,200,000",
		"999":        "$999",
		"$1,100,000": "$1,100,000",
		"Contact":    "Contact",
		"NaN":        "NaN",
		"Inf":        "Inf",
		"-150":       "-150",
		"1e30":       "1e30",
		"0":          "$0",
	}
	for in, want := range cases {
		if got := FormatPrice(in); got != want {
			t.Errorf("FormatPrice(%q) = %q, want %q", in, got, want)
		}
	}
}
