package plantapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"plant-keeper/internal/config"
	"plant-keeper/internal/image"
)

func writeTempImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plant.jpg")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write temp image: %v", err)
	}
	return path
}

func newTestClient(baseURL string) *Client {
	return NewClient(&config.Config{PlantAPIURL: baseURL})
}

func TestIdentify_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/identify/" {
			t.Errorf("Expected path /api/v1/identify/, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("organs"); got != "auto" {
			t.Errorf("Expected organs=auto, got %q", got)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("Expected an 'image' part: %v", err)
		}
		file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Expected image part content-type image/jpeg, got %q", ct)
		}
		w.Write([]byte(`{"plant_name": "Ficus Lyrata"}`))
	}))
	defer ts.Close()

	name, err := newTestClient(ts.URL).Identify(context.Background(), writeTempImage(t, []byte("jpeg")))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if name != "Ficus Lyrata" {
		t.Errorf("Expected 'Ficus Lyrata', got %q", name)
	}
}

func TestIdentify_BlankNameIsEmptyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plant_name": "  "}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Identify(context.Background(), writeTempImage(t, []byte("jpeg")))
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse for a blank plant_name, got %v", err)
	}
}

func TestIdentify_ServerErrorCarriesCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Identify(context.Background(), writeTempImage(t, []byte("jpeg")))
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected a *ServerError, got %v", err)
	}
	if serverErr.Code != http.StatusBadGateway {
		t.Errorf("Expected code 502, got %d", serverErr.Code)
	}
}

func TestIdentify_ConnectionError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // Refuse connections

	_, err := newTestClient(ts.URL).Identify(context.Background(), writeTempImage(t, []byte("jpeg")))
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Expected ErrConnection, got %v", err)
	}
}

func TestIdentify_FileChecksSkipNetwork(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer ts.Close()
	client := newTestClient(ts.URL)

	t.Run("EmptyFile", func(t *testing.T) {
		_, err := client.Identify(context.Background(), writeTempImage(t, nil))
		if !errors.Is(err, image.ErrFileProcessing) {
			t.Errorf("Expected ErrFileProcessing for an empty file, got %v", err)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := client.Identify(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
		if !errors.Is(err, image.ErrFileProcessing) {
			t.Errorf("Expected ErrFileProcessing for a missing file, got %v", err)
		}
	})

	t.Run("OversizedFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "huge.jpg")
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
		if err := f.Truncate(10_000_001); err != nil {
			t.Fatalf("Failed to grow file: %v", err)
		}
		f.Close()

		_, idErr := client.Identify(context.Background(), path)
		if !errors.Is(idErr, ErrPayloadTooLarge) {
			t.Errorf("Expected ErrPayloadTooLarge, got %v", idErr)
		}
	})

	if hits != 0 {
		t.Errorf("Expected no network calls for rejected files, got %d", hits)
	}
}

func TestDiagnose_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/diagnose" {
			t.Errorf("Expected path /api/v1/diagnose, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("organs"); got != "auto" {
			t.Errorf("Expected organs=auto, got %q", got)
		}
		// The diagnose endpoint names the image part "file", not "image".
		if file, _, err := r.FormFile("file"); err != nil {
			t.Fatalf("Expected a 'file' part: %v", err)
		} else {
			file.Close()
		}
		w.Write([]byte(`{
			"enfermedades": [{"name": "mildew", "probability": 62.5}],
			"salud": {"probabilidad": 35.0, "umbral_saludable": 50.0, "es_saludable": false},
			"es_planta": {"probabilidad": 99.1, "confirmado": true}
		}`))
	}))
	defer ts.Close()

	diagnosis, err := newTestClient(ts.URL).Diagnose(context.Background(), writeTempImage(t, []byte("jpeg")))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(diagnosis.Diseases) != 1 || diagnosis.Diseases[0].Name != "mildew" {
		t.Errorf("Unexpected diseases: %+v", diagnosis.Diseases)
	}
	if diagnosis.Health.Healthy {
		t.Error("Expected the server's unhealthy verdict to be kept as-is")
	}
	if diagnosis.Health.HealthyThreshold != 50.0 {
		t.Errorf("Expected threshold 50.0, got %v", diagnosis.Health.HealthyThreshold)
	}
	if !diagnosis.IsPlant.Confirmed {
		t.Error("Expected es_planta.confirmado to be true")
	}
}

func TestDiagnose_EmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Diagnose(context.Background(), writeTempImage(t, []byte("jpeg")))
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse for an empty diagnosis body, got %v", err)
	}
}

func TestDiagnose_ServerErrorIncludesPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "model offline"}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Diagnose(context.Background(), writeTempImage(t, []byte("jpeg")))
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected a *ServerError, got %v", err)
	}
	if serverErr.Code != http.StatusInternalServerError {
		t.Errorf("Expected code 500, got %d", serverErr.Code)
	}
	if serverErr.Body != `{"detail": "model offline"}` {
		t.Errorf("Expected the error payload to be kept, got %q", serverErr.Body)
	}
}

func TestDiagnose_NoSizeLimit(t *testing.T) {
	// Unlike identification, diagnosis does not enforce the 10MB cap.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"enfermedades": [], "salud": {"probabilidad": 90, "umbral_saludable": 50, "es_saludable": true}, "es_planta": {"probabilidad": 95, "confirmado": true}}`))
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "huge.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := f.Truncate(10_000_001); err != nil {
		t.Fatalf("Failed to grow file: %v", err)
	}
	f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := newTestClient(ts.URL).Diagnose(ctx, path); err != nil {
		t.Errorf("Expected oversized diagnosis upload to succeed, got %v", err)
	}
}
