package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"realty_watch/config"
	"realty_watch/logging"
)

type Clients struct {
	Scraping *http.Client // proxied when PROXY_URL is set, for listing sites
	API      *http.Client // direct, for Apify and the model endpoint
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	return &Clients{
		Scraping: &http.Client{
			Timeout:   15 * time.Second,
			Transport: ScrapingTransport(proxyCfg),
		},
		API: &http.Client{Timeout: 60 * time.Second},
	}
}

// ScrapingTransport returns the transport used against listing sites.
// HTTP/2 is disabled; several sites fingerprint it.
func ScrapingTransport(proxyCfg *config.ProxyConfig) *http.Transport {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	if proxyCfg != nil && proxyCfg.URL != "" {
		proxyURL, err := url.Parse(proxyCfg.URL)
		if err != nil {
			logging.Warnf("Ignoring invalid PROXY_URL: %v", err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return transport
}
