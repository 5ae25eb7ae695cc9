package image

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// --- Mocks ---

type mockCamera struct {
	Payload     []byte
	ShouldError bool
	Captured    *Handle
}

func (m *mockCamera) Capture(ctx context.Context, target Handle) error {
	if m.ShouldError {
		return errors.New("shutter jammed")
	}
	m.Captured = &target
	return os.WriteFile(target.URI, m.Payload, 0644)
}

type mockGallery struct {
	Selection *Handle
	Err       error
}

func (m *mockGallery) Pick(ctx context.Context) (*Handle, error) {
	return m.Selection, m.Err
}

func newTestAcquirer(t *testing.T, camera Camera, gallery Gallery) *Acquirer {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "image_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return NewAcquirer(camera, gallery, filepath.Join(tempDir, "media"), tempDir)
}

// --- Tests ---

func TestAcquireFromCapture(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		cam := &mockCamera{Payload: []byte("jpeg-bytes")}
		a := newTestAcquirer(t, cam, &mockGallery{})

		h, err := a.AcquireFromCapture(context.Background())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if h == nil || h.URI == "" {
			t.Fatal("Expected a valid handle")
		}
		if _, err := os.Stat(h.URI); err != nil {
			t.Errorf("Expected captured file to exist: %v", err)
		}
	})

	t.Run("CaptureFailure", func(t *testing.T) {
		cam := &mockCamera{ShouldError: true}
		a := newTestAcquirer(t, cam, &mockGallery{})

		h, err := a.AcquireFromCapture(context.Background())
		if err == nil {
			t.Fatal("Expected an error from a failed capture")
		}
		if h != nil {
			t.Error("Expected no partial handle on capture failure")
		}
	})
}

func TestAcquireFromGallery(t *testing.T) {
	t.Run("Cancelled", func(t *testing.T) {
		a := newTestAcquirer(t, &mockCamera{}, &mockGallery{})

		h, err := a.AcquireFromGallery(context.Background())
		if err != nil {
			t.Fatalf("Cancellation must not be an error, got %v", err)
		}
		if h != nil {
			t.Error("Expected no handle when the user cancels")
		}
	})

	t.Run("Selected", func(t *testing.T) {
		want := &Handle{URI: "/photos/fern.jpg"}
		a := newTestAcquirer(t, &mockCamera{}, &mockGallery{Selection: want})

		h, err := a.AcquireFromGallery(context.Background())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if h == nil || h.URI != want.URI {
			t.Errorf("Expected handle %v, got %v", want, h)
		}
	})
}

func TestMaterializeToLocalFile(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		a := newTestAcquirer(t, &mockCamera{}, &mockGallery{})
		src := filepath.Join(t.TempDir(), "src.jpg")
		if err := os.WriteFile(src, []byte("jpeg-bytes"), 0644); err != nil {
			t.Fatalf("Failed to write source: %v", err)
		}

		path, err := a.MaterializeToLocalFile(Handle{URI: src})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		defer os.Remove(path)

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read copy: %v", err)
		}
		if string(data) != "jpeg-bytes" {
			t.Errorf("Expected copy to match source, got %q", data)
		}
	})

	t.Run("FileURIScheme", func(t *testing.T) {
		a := newTestAcquirer(t, &mockCamera{}, &mockGallery{})
		src := filepath.Join(t.TempDir(), "src.jpg")
		if err := os.WriteFile(src, []byte("jpeg-bytes"), 0644); err != nil {
			t.Fatalf("Failed to write source: %v", err)
		}

		path, err := a.MaterializeToLocalFile(Handle{URI: "file://" + src})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		os.Remove(path)
	})

	t.Run("UnreadableSource", func(t *testing.T) {
		a := newTestAcquirer(t, &mockCamera{}, &mockGallery{})

		_, err := a.MaterializeToLocalFile(Handle{URI: "/does/not/exist.jpg"})
		if !errors.Is(err, ErrFileProcessing) {
			t.Errorf("Expected ErrFileProcessing, got %v", err)
		}
	})

	t.Run("EmptySource", func(t *testing.T) {
		a := newTestAcquirer(t, &mockCamera{}, &mockGallery{})
		src := filepath.Join(t.TempDir(), "empty.jpg")
		if err := os.WriteFile(src, nil, 0644); err != nil {
			t.Fatalf("Failed to write source: %v", err)
		}

		_, err := a.MaterializeToLocalFile(Handle{URI: src})
		if !errors.Is(err, ErrFileProcessing) {
			t.Fatalf("Expected ErrFileProcessing, got %v", err)
		}

		// The partial copy must not be left behind.
		matches, globErr := filepath.Glob(filepath.Join(a.cacheDir, "upload_image_*.jpg"))
		if globErr != nil {
			t.Fatalf("Glob failed: %v", globErr)
		}
		if len(matches) != 0 {
			t.Errorf("Expected no leftover temp files, found %v", matches)
		}
	})
}
