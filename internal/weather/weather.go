package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plant-keeper/internal/config"
)

// Observation is the current weather for a location, as shown by the plant
// list widget.
type Observation struct {
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		Condition struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"current"`
}

// Client fetches current weather conditions. There are no retries; the
// widget simply stays empty on failure.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new weather client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.WeatherAPIURL, "/"),
		apiKey:  cfg.WeatherAPIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Current returns the current conditions for the given location.
func (c *Client) Current(ctx context.Context, location string) (*Observation, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", location)
	params.Set("lang", "es")

	req, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/current.json?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("weather api error: status %d", resp.StatusCode)
	}

	var obs Observation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &obs, nil
}
