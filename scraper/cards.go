package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"realty_watch/config"
	"realty_watch/extract"
	"realty_watch/models"
)

const maxCardTitle = 120

// ParseCards reads listing cards out of static search-page HTML. Only the
// title, a price and the link are trusted; everything else is a placeholder.
func ParseCards(html string, src *config.SourceConfig, sourceTag string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var listings []models.Listing
	doc.Find(src.CardSelector).Each(func(i int, card *goquery.Selection) {
		title := cleanText(card.Find(src.TitleSelector).First().Text())
		if title == "" {
			title = cleanText(card.Find("h1, h2, h3, h4").First().Text())
		}

		price := cleanText(card.Find(src.PriceSelector).First().Text())
		if price == "" {
			price = extract.PriceRegex.FindString(card.Text())
		}

		if title == "" && price == "" {
			return
		}
		if title == "" {
			title = fmt.Sprintf("Property listing %d", len(listings)+1)
		}
		if price == "" {
			price = models.PriceNotSpecified
		}

		href, _ := card.Find(src.LinkSelector).First().Attr("href")
		if href == "" {
			href, _ = card.Attr("href")
		}

		listings = append(listings, models.Listing{
			Title:       truncate(title, maxCardTitle),
			Price:       price,
			Address:     models.NotSpecifiedInSimpleRun,
			Bedrooms:    models.NotSpecifiedInSimpleRun,
			Bathrooms:   models.NotSpecifiedInSimpleRun,
			SquareFeet:  models.NotSpecifiedInSimpleRun,
			Description: models.NotSpecifiedInSimpleRun,
			URL:         resolveLink(src.BaseURL, href),
			Source:      sourceTag,
		})
	})

	return listings, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func resolveLink(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return href
	}
	return base.ResolveReference(ref).String()
}
