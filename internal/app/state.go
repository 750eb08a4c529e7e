// Package app provides application state, editing entry points, and events.
package app

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"molina/internal/annotation"
	"molina/internal/dataset"
	"molina/internal/exchange"
	"molina/internal/hittest"
	"molina/internal/keymap"
	"molina/internal/recognize"
	"molina/pkg/geometry"
)

var (
	// ErrBusy is returned by every edit while a prediction is running.
	ErrBusy = recognize.ErrBusy

	// ErrNoImage is returned when no image is open.
	ErrNoImage = dataset.ErrNoImage

	// ErrImageChanged is reported when a prediction finishes after the user
	// switched images; its result is discarded.
	ErrImageChanged = errors.New("image changed during prediction")
)

// EventType identifies different application events.
type EventType int

const (
	EventImageLoaded       EventType = iota // data: *dataset.Entry
	EventAnnotationChanged                  // data: exchange.Document
	EventPredictionStarted                  // data: image path
	EventPredictionFinished                 // data: recognize.Result
	EventPredictionFailed                   // data: error
	EventSaved                              // data: annotation path
	EventModified                           // data: bool
	EventModelChanged                       // data: model name
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Config sizes the per-image stores and the image cache.
type Config struct {
	HistoryLimit int
	CacheSize    int
	Strict       bool
}

// State is the editor's single point of mutation. Every edit goes through
// it so that edits can be refused while a prediction is in flight.
type State struct {
	mu sync.RWMutex

	dataset    *dataset.Dataset
	models     *recognize.Registry
	keys       *keymap.Map
	runner     *recognize.Runner
	predicting bool

	listenersMu sync.RWMutex
	listeners   map[EventType][]EventListener
}

// NewState creates a new application state.
func NewState(cfg Config, models *recognize.Registry, keys *keymap.Map) (*State, error) {
	opts := annotation.Options{HistoryLimit: cfg.HistoryLimit, Strict: cfg.Strict}
	ds, err := dataset.New(cfg.CacheSize, opts)
	if err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}
	if models == nil {
		models = recognize.NewRegistry()
	}
	if keys == nil {
		keys = keymap.Default()
	}
	return &State{
		dataset:   ds,
		models:    models,
		keys:      keys,
		runner:    recognize.NewRunner(),
		listeners: make(map[EventType][]EventListener),
	}, nil
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.listenersMu.RLock()
	listeners := s.listeners[event]
	s.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Keymap returns the active key bindings.
func (s *State) Keymap() *keymap.Map {
	return s.keys
}

// Models returns the recognizer registry.
func (s *State) Models() *recognize.Registry {
	return s.models
}

// SelectModel changes the recognizer used by Predict.
func (s *State) SelectModel(name string) error {
	if err := s.models.Select(name); err != nil {
		return err
	}
	s.Emit(EventModelChanged, name)
	return nil
}

// Busy reports whether a prediction is in flight.
func (s *State) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predicting
}

// Current returns the open image, or nil.
func (s *State) Current() *dataset.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset.Current()
}

// Recent returns recently opened image paths, most recent first.
func (s *State) Recent() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset.Recent()
}

// SetRecent restores the recent list.
func (s *State) SetRecent(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset.SetRecent(paths)
}

// Unsaved returns the paths of open images with unsaved changes.
func (s *State) Unsaved() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset.Modified()
}

// OpenImage makes path the current image.
func (s *State) OpenImage(path string) error {
	s.mu.Lock()
	if s.predicting {
		s.mu.Unlock()
		return ErrBusy
	}
	entry, err := s.dataset.Open(path)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.Emit(EventImageLoaded, entry)
	s.emitAnnotation()
	return nil
}

// OpenPrevious reopens the least recently used image from the recent list.
func (s *State) OpenPrevious() error {
	s.mu.RLock()
	path, ok := s.dataset.Back()
	s.mu.RUnlock()
	if !ok {
		return ErrNoImage
	}
	return s.OpenImage(path)
}

// Save writes the current annotation. Nothing is written for images without
// atoms.
func (s *State) Save() error {
	s.mu.Lock()
	entry := s.dataset.Current()
	saved, err := s.dataset.Save()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if saved {
		log.Printf("Saved %s", entry.AnnotationPath)
		s.Emit(EventSaved, entry.AnnotationPath)
		s.Emit(EventModified, false)
	}
	return nil
}

// SaveAll writes every modified open annotation.
func (s *State) SaveAll() error {
	s.mu.Lock()
	err := s.dataset.SaveAll()
	s.mu.Unlock()
	if err == nil {
		s.Emit(EventModified, false)
	}
	return err
}

// Document returns the current annotation in fractional coordinates.
func (s *State) Document() (exchange.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.dataset.Current()
	if entry == nil {
		return exchange.Document{}, ErrNoImage
	}
	return entry.Document()
}

// Snapshot returns the live atoms and bonds in image pixels.
func (s *State) Snapshot() ([]annotation.Atom, []annotation.Bond) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.dataset.Current()
	if entry == nil {
		return nil, nil
	}
	return entry.Store.ExportLive()
}

// Tolerances returns the hit-test and drawing tolerances of the current
// image.
func (s *State) Tolerances() hittest.Tolerances {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.dataset.Current()
	if entry == nil {
		return hittest.ForImage(geometry.NewSize(0, 0))
	}
	return hittest.ForImage(entry.Picture.Size())
}

// edit runs fn against the current store unless a prediction is running,
// then notifies listeners when the store changed.
func (s *State) edit(fn func(st *annotation.Store, tol hittest.Tolerances) error) error {
	s.mu.Lock()
	if s.predicting {
		s.mu.Unlock()
		return ErrBusy
	}
	entry := s.dataset.Current()
	if entry == nil {
		s.mu.Unlock()
		return ErrNoImage
	}
	before := entry.Store.Revision()
	err := fn(entry.Store, hittest.ForImage(entry.Picture.Size()))
	changed := entry.Store.Revision() != before
	modified := entry.Modified()
	s.mu.Unlock()

	if changed {
		s.emitAnnotation()
		s.Emit(EventModified, modified)
	}
	return err
}

// AddAtom places an atom at image coordinates (x, y).
func (s *State) AddAtom(symbol string, x, y float64) error {
	return s.edit(func(st *annotation.Store, _ hittest.Tolerances) error {
		st.AddAtom(symbol, x, y)
		return nil
	})
}

// ConnectLine turns a drawn line into a bond when both of its ends land on
// distinct atoms. zoom is the display scale the line was drawn at.
func (s *State) ConnectLine(t annotation.BondType, line geometry.Segment, zoom float64) (bool, error) {
	var ok bool
	err := s.edit(func(st *annotation.Store, tol hittest.Tolerances) error {
		var err error
		_, ok, err = st.ConnectLine(t, line, hittest.ImageSpace(tol.AtomThreshold, zoom))
		return err
	})
	return ok, err
}

// DeleteNear removes the atom or bond under p.
func (s *State) DeleteNear(p geometry.Point2D, zoom float64) (annotation.Hit, error) {
	hit := annotation.HitNone
	err := s.edit(func(st *annotation.Store, tol hittest.Tolerances) error {
		var err error
		hit, err = st.DeleteNear(p,
			hittest.ImageSpace(tol.AtomThreshold, zoom),
			hittest.ImageSpace(tol.BondSpacing, zoom))
		return err
	})
	return hit, err
}

// AtomNear returns the display index of the atom under p.
func (s *State) AtomNear(p geometry.Point2D, zoom float64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.dataset.Current()
	if entry == nil {
		return -1, false
	}
	tol := hittest.ForImage(entry.Picture.Size())
	return entry.Store.AtomNear(p, hittest.ImageSpace(tol.AtomThreshold, zoom))
}

// MoveAtom moves the atom at a display index.
func (s *State) MoveAtom(index int, x, y float64) error {
	return s.edit(func(st *annotation.Store, _ hittest.Tolerances) error {
		return st.UpdateAtomPosition(index, x, y)
	})
}

// ClearAll removes every atom and bond of the current image.
func (s *State) ClearAll() error {
	return s.edit(func(st *annotation.Store, _ hittest.Tolerances) error {
		st.ClearAll()
		return nil
	})
}

// Undo reverts the last edit of the current image.
func (s *State) Undo() (bool, error) {
	var undone bool
	err := s.edit(func(st *annotation.Store, _ hittest.Tolerances) error {
		var err error
		undone, err = st.Undo()
		return err
	})
	return undone, err
}

// Predict runs the selected model on the current image in the background.
// Edits are refused until it finishes.
func (s *State) Predict() error {
	rec, err := s.models.Current()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.predicting {
		s.mu.Unlock()
		return ErrBusy
	}
	entry := s.dataset.Current()
	if entry == nil {
		s.mu.Unlock()
		return ErrNoImage
	}
	if err := s.runner.Start(rec, entry.Picture, s.finishPrediction); err != nil {
		s.mu.Unlock()
		return err
	}
	s.predicting = true
	s.mu.Unlock()

	log.Printf("Predicting %s with %s", filepath.Base(entry.Path()), rec.Name())
	s.Emit(EventPredictionStarted, entry.Path())
	return nil
}

// CancelPrediction aborts a running prediction.
func (s *State) CancelPrediction() {
	s.runner.Cancel()
}

func (s *State) finishPrediction(res recognize.Result) {
	s.mu.Lock()
	err := res.Err
	if err == nil {
		entry := s.dataset.Current()
		switch {
		case entry == nil || entry.Path() != res.Path:
			err = ErrImageChanged
		default:
			err = entry.Apply(res.Doc)
		}
	}
	s.predicting = false
	s.mu.Unlock()

	if err != nil {
		s.Emit(EventPredictionFailed, err)
		return
	}
	s.Emit(EventPredictionFinished, res)
	s.emitAnnotation()
	s.Emit(EventModified, true)
}

func (s *State) emitAnnotation() {
	doc, err := s.Document()
	if err != nil {
		return
	}
	s.Emit(EventAnnotationChanged, doc)
}

// Close cancels any running prediction and waits for it to stop.
func (s *State) Close() {
	s.runner.Close()
}
