// Package annotation holds the authoritative atoms and bonds drawn on the
// active image, keeps their display numbering dense, and undoes edits.
package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"molina/pkg/geometry"
)

// BondType identifies how a bond is drawn and what chemistry it encodes.
type BondType int

const (
	BondSingle BondType = iota + 1
	BondDouble
	BondTriple
	BondAromatic
	BondSolidWedge
	BondSolidWedgeInverse // Solid wedge drawn from the end atom back to the start
	BondDashedWedge
)

var bondTypeNames = map[BondType]string{
	BondSingle:            "single",
	BondDouble:            "double",
	BondTriple:            "triple",
	BondAromatic:          "aromatic",
	BondSolidWedge:        "solid wedge",
	BondSolidWedgeInverse: "solid unwedge",
	BondDashedWedge:       "dashed wedge",
}

// BondTypes lists every valid bond type in hotkey order.
var BondTypes = []BondType{
	BondSingle, BondDouble, BondTriple, BondAromatic,
	BondSolidWedge, BondSolidWedgeInverse, BondDashedWedge,
}

func (t BondType) String() string {
	if name, ok := bondTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is one of the defined bond types.
func (t BondType) Valid() bool {
	_, ok := bondTypeNames[t]
	return ok
}

// ParseBondType maps a persisted bond type name back to its value.
func ParseBondType(name string) (BondType, error) {
	for t, n := range bondTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown bond type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t BondType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid bond type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *BondType) UnmarshalText(text []byte) error {
	parsed, err := ParseBondType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// legacyNotComputed is how older annotation files marked user-drawn entities.
const legacyNotComputed = "not_modeling"

// Confidence is a model score that may be absent. The zero value means "not
// computed", which is distinct from a computed score of 0.
type Confidence struct {
	Value    float64
	Computed bool
}

// NotComputed returns the marker used for user-drawn atoms and bonds.
func NotComputed() Confidence {
	return Confidence{}
}

// Score wraps a model-provided confidence.
func Score(v float64) Confidence {
	return Confidence{Value: v, Computed: true}
}

func (c Confidence) String() string {
	if !c.Computed {
		return "not computed"
	}
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// MarshalJSON writes a number, or null when not computed.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if !c.Computed {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON accepts a number, null, or the legacy "not_modeling" string.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = NotComputed()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != legacyNotComputed {
			return fmt.Errorf("invalid confidence %q", s)
		}
		*c = NotComputed()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid confidence: %w", err)
	}
	*c = Score(v)
	return nil
}

// Atom is a labelled point on the image.
type Atom struct {
	ID         int              // Stable id, never reused within a Store
	Index      int              // Dense position among live atoms
	Symbol     string           // Element or group label
	Pos        geometry.Point2D // Unscaled image coordinates
	Confidence Confidence
	Deleted    bool
}

// Bond is a typed line between two atoms. Start and End are the display
// indices of its endpoint atoms at the time the view was taken.
type Bond struct {
	ID         int
	Index      int
	Type       BondType
	Start      int
	End        int
	Confidence Confidence
	Deleted    bool
}
