package geocache

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

// DefaultRegionURL is the SOTA database region endpoint.
const DefaultRegionURL = "https://api-db2.sota.org.uk/api/regions"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RegionClient fetches region listings over HTTP.
type RegionClient struct {
	client  *resty.Client
	baseURL string
}

// NewRegionClient creates a client for baseURL with a fixed request timeout.
func NewRegionClient(baseURL string, timeout time.Duration) *RegionClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultRegionURL
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	return &RegionClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type regionResponse struct {
	Summits []Entry `json:"summits"`
}

// FetchRegion returns every summit listed for region.
func (c *RegionClient) FetchRegion(ctx context.Context, region Region) ([]Entry, error) {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, region.Association, region.Name)
	resp, err := c.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("geocache: fetch region %s: %w", region.Key(), err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("geocache: region %s returned status %d", region.Key(), resp.StatusCode())
	}
	return parseRegionResponse(resp.Body())
}

func parseRegionResponse(body []byte) ([]Entry, error) {
	var payload regionResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("geocache: decode region: %w", err)
	}
	out := make([]Entry, 0, len(payload.Summits))
	for _, e := range payload.Summits {
		e.Code = normalizeCode(e.Code)
		if e.Code == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
