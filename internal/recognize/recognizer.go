// Package recognize runs structure-recognition models against images and
// hands their output back to the editor.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"molina/internal/exchange"
	"molina/internal/imaging"
)

var (
	// ErrUnknownModel is returned when selecting a model that is not registered.
	ErrUnknownModel = errors.New("unknown model")

	// ErrNoModel is returned when predicting with nothing registered.
	ErrNoModel = errors.New("no recognition model configured")
)

// Recognizer predicts atoms and bonds for an image. Returned coordinates may
// be fractional or in pixels; callers normalize with exchange.Normalize.
type Recognizer interface {
	Name() string
	Predict(ctx context.Context, pic *imaging.Picture) (exchange.Document, error)
}

// Predict runs rec and normalizes its output to fractional coordinates.
func Predict(ctx context.Context, rec Recognizer, pic *imaging.Picture) (exchange.Document, error) {
	doc, err := rec.Predict(ctx, pic)
	if err != nil {
		return exchange.Document{}, fmt.Errorf("%s: %w", rec.Name(), err)
	}
	size := pic.Size()
	doc, err = exchange.Normalize(doc, size.Width, size.Height)
	if err != nil {
		return exchange.Document{}, fmt.Errorf("%s: %w", rec.Name(), err)
	}
	if err := exchange.Validate(doc); err != nil {
		return exchange.Document{}, fmt.Errorf("%s returned an invalid document: %w", rec.Name(), err)
	}
	return doc, nil
}

// Registry holds the available models and which one is selected.
type Registry struct {
	mu      sync.RWMutex
	models  map[string]Recognizer
	current string
}

// NewRegistry creates a registry. The first recognizer registered becomes
// the current one.
func NewRegistry(recs ...Recognizer) *Registry {
	r := &Registry{models: make(map[string]Recognizer)}
	for _, rec := range recs {
		r.Register(rec)
	}
	return r
}

// Register adds or replaces a recognizer by name.
func (r *Registry) Register(rec Recognizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[rec.Name()] = rec
	if r.current == "" {
		r.current = rec.Name()
	}
}

// Select makes name the current model.
func (r *Registry) Select(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	r.current = name
	return nil
}

// Current returns the selected recognizer.
func (r *Registry) Current() (Recognizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.models[r.current]
	if !ok {
		return nil, ErrNoModel
	}
	return rec, nil
}

// CurrentName returns the selected model name, or "".
func (r *Registry) CurrentName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
