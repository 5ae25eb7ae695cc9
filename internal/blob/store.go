package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"plant-keeper/internal/auth"
	"plant-keeper/internal/config"

	"github.com/google/uuid"
)

// Store is a file-backed blob store for plant images. Objects live under
// users/{uid}/plant_images/{randomId} so one user's images are never mixed
// with another's, and the returned URL is durable.
type Store struct {
	basePath  string
	publicURL string
	identity  auth.Identity
}

// NewStore creates a new Store and ensures the base directory exists.
func NewStore(cfg *config.Config, identity auth.Identity) (*Store, error) {
	if err := os.MkdirAll(cfg.BlobPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", cfg.BlobPath, err)
	}
	return &Store{
		basePath:  cfg.BlobPath,
		publicURL: strings.TrimRight(cfg.BlobPublicURL, "/"),
		identity:  identity,
	}, nil
}

// Upload copies the local file into the current user's image area and
// returns its download URL.
func (s *Store) Upload(ctx context.Context, localPath string) (string, error) {
	uid, ok := s.identity.CurrentUserID(ctx)
	if !ok {
		return "", auth.ErrUnauthenticated
	}

	objectPath := path.Join("users", uid, "plant_images", uuid.NewString())

	dstPath := filepath.Join(s.basePath, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}

	_, err = io.Copy(dst, src)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return s.publicURL + "/" + objectPath, nil
}
