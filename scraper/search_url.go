package scraper

import (
	"net/url"
	"strconv"

	"realty_watch/config"
	"realty_watch/models"
)

// fallbackSource picks the site whose page templates the render, model,
// pattern and simple tiers use. "any" has no page of its own.
func fallbackSource(c models.SearchCriteria) string {
	switch c.Source {
	case models.SourceRealtor, models.SourceRedfin, models.SourceZillow:
		return string(c.Source)
	default:
		return string(models.SourceZillow)
	}
}

// BuildSearchURL renders the criteria into the source's search page URL.
// Query parameters are encoded in key order so equal criteria give equal URLs.
func BuildSearchURL(src *config.SourceConfig, c models.SearchCriteria) string {
	q := url.Values{}
	set := func(param string, v *int) {
		name := src.Params[param]
		if name == "" || v == nil {
			return
		}
		q.Set(name, strconv.Itoa(*v))
	}

	if name := src.Params[config.ParamLocation]; name != "" {
		q.Set(name, c.Location)
	}
	set(config.ParamMinPrice, c.MinPrice)
	set(config.ParamMaxPrice, c.MaxPrice)
	set(config.ParamBedrooms, c.Bedrooms)
	set(config.ParamBathrooms, c.Bathrooms)

	if len(q) == 0 {
		return src.SearchURL
	}
	return src.SearchURL + "?" + q.Encode()
}
