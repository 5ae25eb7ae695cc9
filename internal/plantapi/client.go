package plantapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plant-keeper/internal/config"
	"plant-keeper/internal/image"
)

const (
	identifyPath = "/api/v1/identify/"
	diagnosePath = "/api/v1/diagnose"

	// organsHint tells the service which plant organ is shown. The backend
	// contract fixes it to "auto".
	organsHint = "auto"

	// maxUploadBytes is the upload limit the identification endpoint enforces.
	maxUploadBytes = 10_000_000
)

var (
	// ErrPayloadTooLarge is returned for images over the upload limit.
	ErrPayloadTooLarge = errors.New("image exceeds the 10MB upload limit")
	// ErrEmptyResponse is returned when the service answered with a success
	// status but the payload is unusable.
	ErrEmptyResponse = errors.New("empty response")
	// ErrConnection wraps transport and parse failures.
	ErrConnection = errors.New("connection error")
)

// ServerError is a non-success answer from the plant service.
type ServerError struct {
	Code int
	Body string
}

func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server error (%d): %s", e.Code, e.Body)
	}
	return fmt.Sprintf("server error (%d)", e.Code)
}

// Diagnosis is the health assessment returned by the diagnose endpoint. The
// JSON field names are part of the backend contract.
type Diagnosis struct {
	Diseases []Disease `json:"enfermedades"`
	Health   Health    `json:"salud"`
	IsPlant  IsPlant   `json:"es_planta"`
}

// Disease is one candidate detection with its independent probability.
type Disease struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// Health carries the service's health verdict. Healthy is trusted as-is; the
// threshold is reported but never recomputed client-side.
type Health struct {
	Probability      float64 `json:"probabilidad"`
	HealthyThreshold float64 `json:"umbral_saludable"`
	Healthy          bool    `json:"es_saludable"`
}

// IsPlant indicates whether the image shows a plant at all.
type IsPlant struct {
	Probability float64 `json:"probabilidad"`
	Confirmed   bool    `json:"confirmado"`
}

// identifyResponse is the identify endpoint's body.
type identifyResponse struct {
	PlantName string `json:"plant_name"`
}

// Client talks to the remote plant identification and diagnosis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new plant service client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.PlantAPIURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Identify uploads the image and returns the identified plant name.
// The file is checked before any network call: unreadable or empty files fail
// with ErrFileProcessing, files over the upload limit with ErrPayloadTooLarge.
func (c *Client) Identify(ctx context.Context, filePath string) (string, error) {
	size, err := checkFile(filePath)
	if err != nil {
		return "", err
	}
	if size > maxUploadBytes {
		return "", ErrPayloadTooLarge
	}

	resp, err := c.postImage(ctx, identifyPath, "image", filePath)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ServerError{Code: resp.StatusCode}
	}

	var identified identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&identified); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrConnection, err)
	}

	if strings.TrimSpace(identified.PlantName) == "" {
		return "", fmt.Errorf("%w: could not identify the plant", ErrEmptyResponse)
	}
	return identified.PlantName, nil
}

// Diagnose uploads the image and returns the service's health assessment.
// The image part is named "file" here, not "image"; the backend contract is
// asymmetric between the two endpoints.
func (c *Client) Diagnose(ctx context.Context, filePath string) (*Diagnosis, error) {
	if _, err := checkFile(filePath); err != nil {
		return nil, err
	}

	resp, err := c.postImage(ctx, diagnosePath, "file", filePath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep the error payload so the failure can be logged upstream.
		body, _ := io.ReadAll(resp.Body)
		return nil, &ServerError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrConnection, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: no diagnosis obtained", ErrEmptyResponse)
	}

	var diagnosis Diagnosis
	if err := json.Unmarshal(body, &diagnosis); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrConnection, err)
	}
	return &diagnosis, nil
}

// postImage builds the multipart request (image part with content-type
// image/jpeg plus the fixed organs hint) and executes it.
func (c *Client) postImage(ctx context.Context, path, imageField, filePath string) (*http.Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, imageField, filepath.Base(filePath)))
	header.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart body: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", image.ErrFileProcessing, err)
	}
	_, copyErr := io.Copy(part, f)
	f.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("%w: %v", image.ErrFileProcessing, copyErr)
	}

	if err := writer.WriteField("organs", organsHint); err != nil {
		return nil, fmt.Errorf("failed to write organs field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return resp, nil
}

// checkFile rejects unreadable or empty image files before any network call.
func checkFile(filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", image.ErrFileProcessing, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: empty image file", image.ErrFileProcessing)
	}
	return info.Size(), nil
}
