// Package molfile writes annotations as MDL V2000 molblocks.
package molfile

import (
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"molina/internal/annotation"
	"molina/internal/exchange"
)

// DefaultScale maps fractional image coordinates to molblock units.
const DefaultScale = 10.0

// RGroupSymbols are labels written as R-group pseudo atoms.
var RGroupSymbols = []string{
	"R", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8", "R9", "R10", "R11", "R12",
	"Ra", "Rb", "Rc", "Rd", "X", "Y", "Z", "Q", "A", "E", "Ar",
}

// Options controls molblock output.
type Options struct {
	Name  string  // First header line
	Scale float64 // Non-positive selects DefaultScale
}

type atomLine struct {
	symbol string
	alias  string
	rgroup int
	x, y   float64
}

// Write encodes doc as a V2000 molblock. Image y grows downward, so it is
// flipped. Labels that are not element symbols become R atoms carrying the
// label as an alias.
func Write(w io.Writer, doc exchange.Document, opts Options) error {
	if err := exchange.Validate(doc); err != nil {
		return err
	}
	if len(doc.Atoms) > 999 || len(doc.Bonds) > 999 {
		return fmt.Errorf("molfile: %d atoms and %d bonds exceed the V2000 limit", len(doc.Atoms), len(doc.Bonds))
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}

	atoms := lo.Map(doc.Atoms, func(a exchange.AtomRecord, _ int) atomLine {
		l := classify(a.Symbol)
		l.x = a.X * scale
		l.y = -a.Y * scale
		return l
	})

	var sb strings.Builder
	sb.WriteString(opts.Name + "\n")
	sb.WriteString("  molina\n")
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(atoms), len(doc.Bonds))
	for _, a := range atoms {
		fmt.Fprintf(&sb, "%10.4f%10.4f%10.4f %-3s 0  0  0  0  0  0  0  0  0  0  0  0\n",
			a.x, a.y, 0.0, a.symbol)
	}
	for _, b := range doc.Bonds {
		first, second := b.Endpoints[0]+1, b.Endpoints[1]+1
		order, stereo := bondCodes(b.Type)
		if b.Type == annotation.BondSolidWedgeInverse {
			first, second = second, first
		}
		fmt.Fprintf(&sb, "%3d%3d%3d%3d\n", first, second, order, stereo)
	}
	for i, a := range atoms {
		if a.alias != "" {
			fmt.Fprintf(&sb, "A  %3d\n%s\n", i+1, a.alias)
		}
	}
	rgroups := lo.Filter(lo.Range(len(atoms)), func(i, _ int) bool { return atoms[i].rgroup > 0 })
	for _, chunk := range lo.Chunk(rgroups, 8) {
		fmt.Fprintf(&sb, "M  RGP%3d", len(chunk))
		for _, i := range chunk {
			fmt.Fprintf(&sb, " %3d %3d", i+1, atoms[i].rgroup)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("M  END\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// Molblock returns doc encoded as a V2000 molblock.
func Molblock(doc exchange.Document, opts Options) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, doc, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func classify(label string) atomLine {
	symbol := strings.Trim(label, "[]")
	if lo.Contains(RGroupSymbols, symbol) {
		l := atomLine{symbol: "R#", alias: symbol}
		var n int
		if _, err := fmt.Sscanf(symbol, "R%d", &n); err == nil && n > 0 {
			l.rgroup = n
		} else {
			l.symbol = "R"
		}
		return l
	}
	if isElement(symbol) {
		return atomLine{symbol: symbol}
	}
	// Abbreviation or condensed formula.
	return atomLine{symbol: "R", alias: symbol}
}

func bondCodes(t annotation.BondType) (order, stereo int) {
	switch t {
	case annotation.BondDouble:
		return 2, 0
	case annotation.BondTriple:
		return 3, 0
	case annotation.BondAromatic:
		return 4, 0
	case annotation.BondSolidWedge, annotation.BondSolidWedgeInverse:
		return 1, 1
	case annotation.BondDashedWedge:
		return 1, 6
	default:
		return 1, 0
	}
}
