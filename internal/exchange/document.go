// Package exchange converts between the in-memory annotation and the
// persisted per-image JSON document, and normalizes recognizer output.
package exchange

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"molina/internal/annotation"
	"molina/pkg/geometry"
)

// ErrImageSize is returned when scaling against a non-positive image size.
var ErrImageSize = errors.New("image size must be positive")

// Document is the persisted annotation of one image. Coordinates are
// fractions of the image width and height; atom order defines display index.
type Document struct {
	Atoms []AtomRecord `json:"atoms"`
	Bonds []BondRecord `json:"bonds"`
}

// AtomRecord is one persisted atom.
type AtomRecord struct {
	Symbol     string                `json:"atom_symbol"`
	X          float64               `json:"x"`
	Y          float64               `json:"y"`
	Confidence annotation.Confidence `json:"confidence"`
}

// BondRecord is one persisted bond. Endpoints index Document.Atoms.
type BondRecord struct {
	Type       annotation.BondType   `json:"bond_type"`
	Endpoints  [2]int                `json:"endpoint_atoms"`
	Confidence annotation.Confidence `json:"confidence"`
}

// Empty reports whether the document has no atoms.
func (d Document) Empty() bool {
	return len(d.Atoms) == 0
}

// ToPersisted converts live atoms and bonds in pixel space to a document in
// fractional space. Ids and deletion flags are not persisted.
func ToPersisted(atoms []annotation.Atom, bonds []annotation.Bond, width, height float64) (Document, error) {
	if width <= 0 || height <= 0 {
		return Document{}, fmt.Errorf("to persisted %vx%v: %w", width, height, ErrImageSize)
	}
	live := lo.Filter(atoms, func(a annotation.Atom, _ int) bool { return !a.Deleted })
	doc := Document{
		Atoms: lo.Map(live, func(a annotation.Atom, _ int) AtomRecord {
			return AtomRecord{
				Symbol:     a.Symbol,
				X:          a.Pos.X / width,
				Y:          a.Pos.Y / height,
				Confidence: a.Confidence,
			}
		}),
		Bonds: lo.FilterMap(bonds, func(b annotation.Bond, _ int) (BondRecord, bool) {
			return BondRecord{
				Type:       b.Type,
				Endpoints:  [2]int{b.Start, b.End},
				Confidence: b.Confidence,
			}, !b.Deleted
		}),
	}
	return doc, nil
}

// FromPersisted scales a document back to pixel space. The returned atoms and
// bonds carry sequential ids and display indices matching their array order;
// bond Start and End index the returned atoms, as Store.LoadBulk expects.
func FromPersisted(doc Document, width, height float64) ([]annotation.Atom, []annotation.Bond, error) {
	if width <= 0 || height <= 0 {
		return nil, nil, fmt.Errorf("from persisted %vx%v: %w", width, height, ErrImageSize)
	}
	if err := Validate(doc); err != nil {
		return nil, nil, err
	}
	atoms := lo.Map(doc.Atoms, func(r AtomRecord, i int) annotation.Atom {
		return annotation.Atom{
			ID:         i,
			Index:      i,
			Symbol:     r.Symbol,
			Pos:        geometry.NewPoint2D(r.X*width, r.Y*height),
			Confidence: r.Confidence,
		}
	})
	bonds := lo.Map(doc.Bonds, func(r BondRecord, i int) annotation.Bond {
		return annotation.Bond{
			ID:         i,
			Index:      i,
			Type:       r.Type,
			Start:      r.Endpoints[0],
			End:        r.Endpoints[1],
			Confidence: r.Confidence,
		}
	})
	return atoms, bonds, nil
}

// Validate checks that every bond addresses two distinct atoms of the
// document and has a known type.
func Validate(doc Document) error {
	for i, b := range doc.Bonds {
		s, e := b.Endpoints[0], b.Endpoints[1]
		if s < 0 || s >= len(doc.Atoms) || e < 0 || e >= len(doc.Atoms) {
			return fmt.Errorf("bond %d: endpoints [%d, %d] out of range for %d atoms: %w",
				i, s, e, len(doc.Atoms), annotation.ErrInvalidBond)
		}
		if s == e {
			return fmt.Errorf("bond %d: both endpoints are atom %d: %w", i, s, annotation.ErrInvalidBond)
		}
		if !b.Type.Valid() {
			return fmt.Errorf("bond %d: unknown type: %w", i, annotation.ErrInvalidBond)
		}
	}
	for i, a := range doc.Atoms {
		if math.IsNaN(a.X) || math.IsNaN(a.Y) || math.IsInf(a.X, 0) || math.IsInf(a.Y, 0) {
			return fmt.Errorf("atom %d: non-finite coordinates", i)
		}
	}
	return nil
}

// Normalize converts recognizer output to fractional coordinates. Models may
// report either fractions or pixels; a document with any coordinate above 1
// is taken to be in pixel space and divided by the image size.
func Normalize(doc Document, width, height float64) (Document, error) {
	pixel := lo.SomeBy(doc.Atoms, func(a AtomRecord) bool { return a.X > 1 || a.Y > 1 })
	if !pixel {
		return doc, nil
	}
	if width <= 0 || height <= 0 {
		return Document{}, fmt.Errorf("normalize %vx%v: %w", width, height, ErrImageSize)
	}
	out := Document{
		Atoms: lo.Map(doc.Atoms, func(a AtomRecord, _ int) AtomRecord {
			a.X /= width
			a.Y /= height
			return a
		}),
		Bonds: append([]BondRecord(nil), doc.Bonds...),
	}
	return out, nil
}
