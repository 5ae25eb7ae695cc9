package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrFileProcessing is returned when the bytes behind a handle cannot be
// turned into a usable local file (unreadable source, empty copy).
var ErrFileProcessing = errors.New("failed to process image file")

// Handle is an opaque reference to image bytes before they are copied into a
// local file for upload. The URI is not guaranteed to stay readable, which is
// why callers materialize it before uploading.
type Handle struct {
	URI string
}

// Camera is a platform capture device. It writes the captured image to the
// target handle, or fails.
type Camera interface {
	Capture(ctx context.Context, target Handle) error
}

// Gallery is a platform picker for existing assets. A nil handle with a nil
// error means the user cancelled; that is not an error.
type Gallery interface {
	Pick(ctx context.Context) (*Handle, error)
}

// Acquirer normalizes the capture and gallery paths into a single addressable
// handle plus a temporary file copy suitable for upload.
type Acquirer struct {
	camera   Camera
	gallery  Gallery
	mediaDir string
	cacheDir string
}

// NewAcquirer creates a new Acquirer.
func NewAcquirer(camera Camera, gallery Gallery, mediaDir, cacheDir string) *Acquirer {
	return &Acquirer{
		camera:   camera,
		gallery:  gallery,
		mediaDir: mediaDir,
		cacheDir: cacheDir,
	}
}

// AcquireFromCapture allocates a writable target in the media directory and
// hands it to the capture device. On failure the target is discarded and no
// partial handle is exposed.
func (a *Acquirer) AcquireFromCapture(ctx context.Context) (*Handle, error) {
	if err := os.MkdirAll(a.mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	target := Handle{URI: filepath.Join(a.mediaDir, generateFileName())}
	if err := a.camera.Capture(ctx, target); err != nil {
		os.Remove(target.URI)
		return nil, fmt.Errorf("capture failed: %w", err)
	}
	return &target, nil
}

// AcquireFromGallery asks the picker for an existing asset. A nil handle
// means the user made no selection.
func (a *Acquirer) AcquireFromGallery(ctx context.Context) (*Handle, error) {
	return a.gallery.Pick(ctx)
}

// MaterializeToLocalFile copies the bytes behind the handle into a private
// temporary file and returns its path. The caller owns the file and must
// delete it once the upload attempt completes. A source that cannot be opened
// or that yields a zero-byte copy fails with ErrFileProcessing, and any
// partially-written file is deleted before returning.
func (a *Acquirer) MaterializeToLocalFile(h Handle) (string, error) {
	src, err := os.Open(strings.TrimPrefix(h.URI, "file://"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileProcessing, err)
	}
	defer src.Close()

	dstPath := filepath.Join(a.cacheDir, fmt.Sprintf("upload_image_%d.jpg", time.Now().UnixNano()))
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileProcessing, err)
	}

	written, err := io.Copy(dst, src)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil || written == 0 {
		os.Remove(dstPath)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrFileProcessing, err)
		}
		return "", fmt.Errorf("%w: empty image file", ErrFileProcessing)
	}

	return dstPath, nil
}

func generateFileName() string {
	return fmt.Sprintf("IMG_%s.jpg", time.Now().Format("20060102_150405"))
}
