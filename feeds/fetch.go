package feeds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"spothunter/spot"
)

// Default feed endpoints.
var DefaultURLs = map[spot.Source]string{
	spot.SourcePOTA:     "https://api.pota.app/v1/spots",
	spot.SourceSOTA:     "https://api-db2.sota.org.uk/api/spots/-2/all/all",
	spot.SourceDXSummit: "http://www.dxsummit.fi/api/v1/spots",
	spot.SourceDXHeat:   "https://dxheat.com/source/spots/?a=65&b=15&b=40&m=CW&m=PHONE&m=DIGI&valid=1&spam=1",
}

// Fetcher performs the HTTP GET for a feed. Requests are not retried; the
// next poll cycle is the retry.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a fetcher whose requests give up after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "spothunter/1.0")
	return &Fetcher{client: client}
}

// Fetch returns the response body of url. Any status other than 200 is an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("feeds: fetch %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("feeds: %s returned status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}
