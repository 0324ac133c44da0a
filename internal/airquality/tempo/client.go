// Package tempo provides an air quality provider for a NASA TEMPO derived
// AQI endpoint that returns a ready-made index per coordinate.
package tempo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/breatheroute/aqiguard/internal/airquality"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/provider/resilience"
)

// ProviderName identifies this provider.
const ProviderName = "tempo"

// ClientConfig holds configuration for the TEMPO client.
type ClientConfig struct {
	// Endpoint is the full URL of the AQI lookup.
	Endpoint   string
	APIKey     string
	HTTPClient resilience.HTTPDoer
	Registry   *resilience.Registry
}

// Client queries the TEMPO AQI endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient resilience.HTTPDoer
}

// NewClient creates a new TEMPO client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}
	return &Client{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, httpClient: httpClient}
}

// Name implements airquality.Provider.
func (c *Client) Name() string {
	return ProviderName
}

type aqiResponse struct {
	AQI *float64 `json:"aqi"`
}

// FetchNearestReadings returns a single synthetic station at the query
// point. TEMPO is gridded, so radius and limit do not apply.
func (c *Client) FetchNearestReadings(ctx context.Context, lat, lon float64, _, _ int) ([]airquality.StationReading, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tempo aqi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from tempo", resp.StatusCode)
	}

	var body aqiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode tempo response: %w", err)
	}
	if body.AQI == nil {
		return nil, airquality.ErrNoReading
	}

	return []airquality.StationReading{{
		Station: airquality.Station{ID: ProviderName, Name: "NASA TEMPO", Lat: lat, Lon: lon},
		Measurements: []airquality.Measurement{{
			Pollutant:  aqi.PollutantIndex,
			Value:      *body.AQI,
			MeasuredAt: time.Now().UTC(),
		}},
	}}, nil
}
