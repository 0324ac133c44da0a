// Package openaq provides an air quality provider backed by the OpenAQ v3 API.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/breatheroute/aqiguard/internal/airquality"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ API.
	DefaultBaseURL = "https://api.openaq.org"

	// ProviderName identifies this provider.
	ProviderName = "openaq"

	// latestConcurrency bounds parallel /latest calls per lookup.
	latestConcurrency = 4
)

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	BaseURL string
	APIKey  string

	// HTTPClient executes requests. If nil a resilient client is created.
	HTTPClient resilience.HTTPDoer

	// Registry receives the default client for health reporting.
	Registry *resilience.Registry
}

// Client is an OpenAQ API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient resilience.HTTPDoer
}

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = 5 * time.Second
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// Name implements airquality.Provider.
func (c *Client) Name() string {
	return ProviderName
}

type locationsResponse struct {
	Results []locationData `json:"results"`
}

type locationData struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Coordinates coordinates  `json:"coordinates"`
	Distance    float64      `json:"distance"`
	Sensors     []sensorData `json:"sensors"`
}

type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type sensorData struct {
	ID        int64 `json:"id"`
	Parameter struct {
		Name  string `json:"name"`
		Units string `json:"units"`
	} `json:"parameter"`
}

type latestResponse struct {
	Results []latestData `json:"results"`
}

type latestData struct {
	Datetime struct {
		UTC string `json:"utc"`
	} `json:"datetime"`
	Value     *float64 `json:"value"`
	SensorsID int64    `json:"sensorsId"`
}

// FetchNearestReadings looks up stations around the point and attaches
// each station's latest measurements.
func (c *Client) FetchNearestReadings(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]airquality.StationReading, error) {
	locations, err := c.fetchLocations(ctx, lat, lon, airquality.ClampRadius(radiusMeters), limit)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}

	readings := make([]airquality.StationReading, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(latestConcurrency)
	for i := range locations {
		loc := locations[i]
		g.Go(func() error {
			measurements, err := c.fetchLatest(gctx, loc)
			if err != nil {
				return err
			}
			readings[i] = airquality.StationReading{
				Station: airquality.Station{
					ID:   strconv.FormatInt(loc.ID, 10),
					Name: loc.Name,
					Lat:  loc.Coordinates.Latitude,
					Lon:  loc.Coordinates.Longitude,
				},
				Measurements:   measurements,
				DistanceMeters: loc.Distance,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return readings, nil
}

func (c *Client) fetchLocations(ctx context.Context, lat, lon float64, radius, limit int) ([]locationData, error) {
	q := url.Values{}
	q.Set("coordinates", fmt.Sprintf("%.6f,%.6f", lat, lon))
	q.Set("radius", strconv.Itoa(radius))
	q.Set("limit", strconv.Itoa(limit))

	var result locationsResponse
	if err := c.get(ctx, "/v3/locations?"+q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("fetch locations: %w", err)
	}
	return result.Results, nil
}

func (c *Client) fetchLatest(ctx context.Context, loc locationData) ([]airquality.Measurement, error) {
	var result latestResponse
	if err := c.get(ctx, fmt.Sprintf("/v3/locations/%d/latest", loc.ID), &result); err != nil {
		return nil, fmt.Errorf("fetch latest for location %d: %w", loc.ID, err)
	}

	sensors := make(map[int64]sensorData, len(loc.Sensors))
	for _, s := range loc.Sensors {
		sensors[s.ID] = s
	}

	measurements := make([]airquality.Measurement, 0, len(result.Results))
	for _, r := range result.Results {
		sensor, ok := sensors[r.SensorsID]
		if !ok || r.Value == nil || *r.Value < 0 {
			continue
		}
		measuredAt, _ := time.Parse(time.RFC3339, r.Datetime.UTC)
		measurements = append(measurements, airquality.Measurement{
			Pollutant:  aqi.ParsePollutant(sensor.Parameter.Name),
			Value:      *r.Value,
			Unit:       sensor.Parameter.Units,
			MeasuredAt: measuredAt,
		})
	}
	return measurements, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
