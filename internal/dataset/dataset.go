// Package dataset tracks the images opened in the editor: a bounded cache of
// decoded images with their annotation stores, the annotation file paired
// with each image, and the recently opened list.
package dataset

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"

	"molina/internal/annotation"
	"molina/internal/exchange"
	"molina/internal/imaging"
)

// DefaultCapacity is how many images stay decoded at once.
const DefaultCapacity = 10

// ErrNoImage is returned when an operation needs a current image.
var ErrNoImage = errors.New("no image open")

// Entry is one open image and its annotation.
type Entry struct {
	Picture        *imaging.Picture
	Store          *annotation.Store
	AnnotationPath string

	savedRevision uint64
}

// Path returns the image path.
func (e *Entry) Path() string {
	return e.Picture.Path
}

// Modified reports whether the store changed since it was loaded or saved.
func (e *Entry) Modified() bool {
	return e.Store.Revision() != e.savedRevision
}

// Document returns the live annotation in fractional coordinates.
func (e *Entry) Document() (exchange.Document, error) {
	atoms, bonds := e.Store.ExportLive()
	size := e.Picture.Size()
	return exchange.ToPersisted(atoms, bonds, size.Width, size.Height)
}

// Apply replaces the annotation with doc, which must be in fractional
// coordinates. The undo history is cleared.
func (e *Entry) Apply(doc exchange.Document) error {
	size := e.Picture.Size()
	atoms, bonds, err := exchange.FromPersisted(doc, size.Width, size.Height)
	if err != nil {
		return err
	}
	return e.Store.LoadBulk(atoms, bonds)
}

// Save writes the annotation file. Images without atoms are not written;
// saved reports whether a file was produced.
func (e *Entry) Save() (saved bool, err error) {
	if e.Store.Len() == 0 {
		return false, nil
	}
	doc, err := e.Document()
	if err != nil {
		return false, err
	}
	if err := exchange.Save(e.AnnotationPath, doc); err != nil {
		return false, fmt.Errorf("save annotation: %w", err)
	}
	e.savedRevision = e.Store.Revision()
	return true, nil
}

// Dataset owns the open images. It is not safe for concurrent use.
type Dataset struct {
	cache    *lru.Cache[string, *Entry]
	current  *Entry
	recent   []string
	storeOpt annotation.Options
}

// New creates a dataset keeping at most capacity images decoded. Modified
// images are saved when they fall out of the cache.
func New(capacity int, opts annotation.Options) (*Dataset, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.NewWithEvict[string, *Entry](capacity, func(path string, e *Entry) {
		if !e.Modified() {
			return
		}
		if _, err := e.Save(); err != nil {
			log.Printf("Failed to save evicted annotation %s: %v", path, err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Dataset{cache: cache, storeOpt: opts}, nil
}

// Open makes path the current image, decoding it and loading its annotation
// file when it is not cached.
func (d *Dataset) Open(path string) (*Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if e, ok := d.cache.Get(abs); ok {
		d.touchRecent(abs)
		d.current = e
		return e, nil
	}

	pic, err := imaging.Load(abs)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Picture:        pic,
		Store:          annotation.NewStore(d.storeOpt),
		AnnotationPath: exchange.AnnotationPath(abs),
	}

	doc, err := exchange.Load(e.AnnotationPath)
	switch {
	case err == nil:
		if err := e.Apply(doc); err != nil {
			return nil, fmt.Errorf("load annotation %s: %w", e.AnnotationPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	e.savedRevision = e.Store.Revision()

	d.cache.Add(abs, e)
	d.touchRecent(abs)
	d.current = e
	log.Printf("Opened %s (%dx%d, %d atoms)", filepath.Base(abs), pic.Width(), pic.Height(), e.Store.Len())
	return e, nil
}

// Current returns the current image, or nil.
func (d *Dataset) Current() *Entry {
	return d.current
}

// Cached reports whether path is decoded in the cache.
func (d *Dataset) Cached(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return d.cache.Contains(abs)
}

// Save writes the current image's annotation.
func (d *Dataset) Save() (bool, error) {
	if d.current == nil {
		return false, ErrNoImage
	}
	return d.current.Save()
}

// SaveAll writes every modified cached annotation.
func (d *Dataset) SaveAll() error {
	var errs []error
	for _, e := range d.cache.Values() {
		if !e.Modified() {
			continue
		}
		if _, err := e.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Modified returns the paths of cached images with unsaved changes.
func (d *Dataset) Modified() []string {
	var paths []string
	for _, e := range d.cache.Values() {
		if e.Modified() {
			paths = append(paths, e.Path())
		}
	}
	sort.Strings(paths)
	return paths
}

// Recent returns recently opened paths, most recent first.
func (d *Dataset) Recent() []string {
	return append([]string(nil), d.recent...)
}

// SetRecent replaces the recent list, for restoring it from preferences.
func (d *Dataset) SetRecent(paths []string) {
	d.recent = lo.Uniq(paths)
}

// Back returns the least recently opened path. Opening it moves it to the
// front, so repeated calls cycle through the recent list.
func (d *Dataset) Back() (string, bool) {
	if len(d.recent) == 0 {
		return "", false
	}
	return d.recent[len(d.recent)-1], true
}

func (d *Dataset) touchRecent(path string) {
	d.recent = append([]string{path}, lo.Without(d.recent, path)...)
}

// RecentLabels returns display names for paths: the base name, or
// parent/base when two paths share a base name.
func RecentLabels(paths []string) []string {
	counts := lo.CountValuesBy(paths, filepath.Base)
	return lo.Map(paths, func(p string, _ int) string {
		base := filepath.Base(p)
		if counts[base] > 1 {
			return filepath.Join(filepath.Base(filepath.Dir(p)), base)
		}
		return base
	})
}

// ListImages returns the supported images in dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return filepath.Join(dir, e.Name()), !e.IsDir() && imaging.IsSupportedFormat(e.Name())
	})
	sort.Strings(paths)
	return paths, nil
}
