package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"plant-keeper/internal/catalog"
	"plant-keeper/internal/describe"
	"plant-keeper/internal/image"
)

var (
	// ErrValidation is returned when required user input is missing.
	ErrValidation = errors.New("validation error")
	// ErrBusy is returned when a step is already in flight for this instance.
	ErrBusy = errors.New("another step is already in progress")
)

// Identifier identifies a plant from a local image file.
type Identifier interface {
	Identify(ctx context.Context, filePath string) (string, error)
}

// Uploader stores a local image durably and returns its download URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// PlantStore persists finished plant records.
type PlantStore interface {
	Create(ctx context.Context, plant catalog.Plant) error
}

// Materializer turns an image handle into an uploadable local file.
type Materializer interface {
	MaterializeToLocalFile(h image.Handle) (string, error)
}

// State is the observable status of one add-plant workflow instance.
type State struct {
	Name        string
	Description string
	HasImage    bool

	Identifying bool
	Describing  bool
	Saving      bool
	Created     bool

	// Err is the dismissible message shown to the user; empty means no error.
	Err string
}

// Workflow runs the add-plant sequence for a single screen instance: image →
// identify → describe → submit. Steps are strictly sequential; while one is
// in flight, submission and image replacement are rejected with ErrBusy.
type Workflow struct {
	identifier Identifier
	describer  describe.Generator
	uploader   Uploader
	plants     PlantStore
	images     Materializer

	mu     sync.Mutex
	busy   bool
	handle *image.Handle
	state  State
}

// New creates a Workflow with its collaborators injected.
func New(identifier Identifier, describer describe.Generator, uploader Uploader, plants PlantStore, images Materializer) *Workflow {
	return &Workflow{
		identifier: identifier,
		describer:  describer,
		uploader:   uploader,
		plants:     plants,
		images:     images,
	}
}

// State returns a snapshot of the current workflow state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Busy reports whether a step is currently in flight.
func (w *Workflow) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// SetImage supplies the image handle for this workflow instance. Replacing
// the image is rejected while a step is in flight.
func (w *Workflow) SetImage(h image.Handle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.handle = &h
	w.state.HasImage = true
	w.state.Created = false
	return nil
}

// SetName sets the plant name, typically typed by the user when
// identification failed.
func (w *Workflow) SetName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Name = name
}

// SetDescription sets the plant description.
func (w *Workflow) SetDescription(description string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Description = description
}

// ClearError dismisses the current error message.
func (w *Workflow) ClearError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Err = ""
}

// Identify runs the identification step and, when a name was obtained, the
// best-effort description enrichment. Identification failure is not fatal to
// the workflow: it only skips the pre-fill, and the user may enter a name
// manually.
func (w *Workflow) Identify(ctx context.Context) error {
	if !w.begin(func(st *State) {
		st.Identifying = true
		st.Err = ""
	}) {
		return ErrBusy
	}
	defer w.end(func(st *State) {
		st.Identifying = false
		st.Describing = false
	})

	handle := w.currentHandle()
	if handle == nil {
		err := fmt.Errorf("%w: an image must be selected first", ErrValidation)
		w.setError("Select or capture an image first.")
		return err
	}

	filePath, err := w.images.MaterializeToLocalFile(*handle)
	if err != nil {
		w.setError("Could not process the image file.")
		return err
	}
	defer os.Remove(filePath)

	name, err := w.identifier.Identify(ctx, filePath)
	if err != nil {
		w.setError("Could not identify the plant. Try again or enter the name manually.")
		return err
	}

	w.update(func(st *State) {
		st.Name = name
		st.Identifying = false
		st.Describing = true
	})

	description, err := w.describer.Describe(ctx, name)
	if err != nil || strings.TrimSpace(description) == "" {
		// Enrichment must never block or fail the workflow.
		if err != nil {
			log.Printf("description enrichment failed for %q: %v", name, err)
		}
		description = describe.Fallback(name)
	}
	w.update(func(st *State) {
		st.Description = description
	})
	return nil
}

// Submit uploads the image and persists the plant record. Any failure is
// surfaced as a dismissible message and leaves the workflow ready to submit
// again without re-acquiring the image.
func (w *Workflow) Submit(ctx context.Context) error {
	if !w.begin(func(st *State) {
		st.Saving = true
		st.Err = ""
	}) {
		return ErrBusy
	}
	defer w.end(func(st *State) {
		st.Saving = false
	})

	snapshot := w.State()
	if strings.TrimSpace(snapshot.Name) == "" {
		err := fmt.Errorf("%w: plant name is required", ErrValidation)
		w.setError("Enter a name for the plant.")
		return err
	}

	handle := w.currentHandle()
	if handle == nil {
		err := fmt.Errorf("%w: an image is required", ErrValidation)
		w.setError("Select or capture an image first.")
		return err
	}

	filePath, err := w.images.MaterializeToLocalFile(*handle)
	if err != nil {
		w.setError("Could not process the image file.")
		return err
	}
	defer os.Remove(filePath)

	imageURL, err := w.uploader.Upload(ctx, filePath)
	if err != nil {
		w.setError(fmt.Sprintf("Failed to save the plant: %v", err))
		return err
	}

	plant := catalog.Plant{
		Name:        snapshot.Name,
		Description: snapshot.Description,
		ImageURL:    imageURL,
	}
	if err := w.plants.Create(ctx, plant); err != nil {
		w.setError(fmt.Sprintf("Failed to save the plant: %v", err))
		return err
	}

	w.update(func(st *State) {
		st.Created = true
	})
	return nil
}

// begin marks the workflow busy and applies the state mutation, or reports
// false when a step is already in flight.
func (w *Workflow) begin(mut func(*State)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return false
	}
	w.busy = true
	mut(&w.state)
	return true
}

func (w *Workflow) end(mut func(*State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	mut(&w.state)
}

func (w *Workflow) update(mut func(*State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	mut(&w.state)
}

func (w *Workflow) setError(msg string) {
	w.update(func(st *State) {
		st.Err = msg
	})
}

func (w *Workflow) currentHandle() *image.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handle
}
