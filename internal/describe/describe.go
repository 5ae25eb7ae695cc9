package describe

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

const descriptionPath = "/api/v1/plant-description"

// Generator produces a care description for an identified plant. Enrichment
// is best-effort: callers substitute Fallback on any error instead of
// surfacing it.
type Generator interface {
	Describe(ctx context.Context, plantName string) (string, error)
}

// Fallback returns the deterministic templated description used whenever the
// enrichment service is unavailable. It always contains the plant's name.
func Fallback(plantName string) string {
	return fmt.Sprintf("This is a %s. It is a common plant that needs moderate sunlight "+
		"and regular watering. It typically grows best in well-drained soil.", plantName)
}

// httpGenerator fetches descriptions from the plant-description endpoint.
type httpGenerator struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPGenerator creates a Generator backed by the description API.
func NewHTTPGenerator(cfg *config.Config) Generator {
	return &httpGenerator{
		baseURL: strings.TrimRight(cfg.DescriptionAPIURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Describe fetches a description for the given plant name.
func (g *httpGenerator) Describe(ctx context.Context, plantName string) (string, error) {
	endpoint := fmt.Sprintf("%s%s?plant_name=%s", g.baseURL, descriptionPath, url.QueryEscape(plantName))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("description api error: status %d", resp.StatusCode)
	}

	var body struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if strings.TrimSpace(body.Description) == "" {
		return "", fmt.Errorf("no description generated")
	}
	return body.Description, nil
}
