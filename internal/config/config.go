package config

import (
	"fmt"
	"os"
)

const (
	defaultPlantAPIURL   = "https://backlord.prod.dtt.tja.ucb.edu.bo"
	defaultWeatherAPIURL = "https://api.weatherapi.com/v1"
	defaultDBPath        = "data/plant-keeper.db"
	defaultBlobPath      = "data/blobs"
	defaultSessionPath   = "data/session"
	defaultMediaDir      = "data/pictures"
)

// Config holds the configuration for the application.
type Config struct {
	PlantAPIURL       string
	DescriptionAPIURL string
	WeatherAPIURL     string
	WeatherAPIKey     string
	GeminiAPIKey      string

	AuthSecret  string
	SessionPath string

	DBPath        string
	BlobPath      string
	BlobPublicURL string
	MediaDir      string
	CacheDir      string
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	authSecret := os.Getenv("AUTH_SECRET")
	if authSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET environment variable not set")
	}

	plantAPIURL := os.Getenv("PLANT_API_URL")
	if plantAPIURL == "" {
		plantAPIURL = defaultPlantAPIURL
	}

	descriptionAPIURL := os.Getenv("DESCRIPTION_API_URL")
	if descriptionAPIURL == "" {
		// The description service lives behind the same host as the plant API
		descriptionAPIURL = plantAPIURL
	}

	weatherAPIURL := os.Getenv("WEATHER_API_URL")
	if weatherAPIURL == "" {
		weatherAPIURL = defaultWeatherAPIURL
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	blobPath := os.Getenv("BLOB_STORAGE_PATH")
	if blobPath == "" {
		blobPath = defaultBlobPath
	}

	blobPublicURL := os.Getenv("BLOB_PUBLIC_URL")
	if blobPublicURL == "" {
		blobPublicURL = "file://" + blobPath
	}

	sessionPath := os.Getenv("SESSION_PATH")
	if sessionPath == "" {
		sessionPath = defaultSessionPath
	}

	mediaDir := os.Getenv("MEDIA_DIR")
	if mediaDir == "" {
		mediaDir = defaultMediaDir
	}

	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}

	return &Config{
		PlantAPIURL:       plantAPIURL,
		DescriptionAPIURL: descriptionAPIURL,
		WeatherAPIURL:     weatherAPIURL,
		WeatherAPIKey:     os.Getenv("WEATHER_API_KEY"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		AuthSecret:        authSecret,
		SessionPath:       sessionPath,
		DBPath:            dbPath,
		BlobPath:          blobPath,
		BlobPublicURL:     blobPublicURL,
		MediaDir:          mediaDir,
		CacheDir:          cacheDir,
	}, nil
}
