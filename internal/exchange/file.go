package exchange

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Extension is the suffix of annotation files.
const Extension = ".json"

// AnnotationPath returns the annotation file that belongs to an image: same
// directory, same stem.
func AnnotationPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + Extension
}

// Load reads an annotation document.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := Validate(doc); err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Save writes an annotation document as indented JSON.
func Save(path string, doc Document) error {
	if doc.Atoms == nil {
		doc.Atoms = []AtomRecord{}
	}
	if doc.Bonds == nil {
		doc.Bonds = []BondRecord{}
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Pretty renders a document for the annotation text panel. Confidences that
// were never computed are left out.
func Pretty(doc Document) string {
	const tab = "        "
	var sb strings.Builder
	field := func(key, value string) {
		sb.WriteString(tab)
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(value)
		sb.WriteByte('\n')
	}

	sb.WriteString("atoms:\n")
	for _, a := range doc.Atoms {
		field("atom_symbol", a.Symbol)
		field("x", formatFloat(a.X))
		field("y", formatFloat(a.Y))
		if a.Confidence.Computed {
			field("confidence", formatFloat(a.Confidence.Value))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("bonds:\n")
	for _, b := range doc.Bonds {
		field("bond_type", b.Type.String())
		field("endpoint_atoms", fmt.Sprintf("[%d, %d]", b.Endpoints[0], b.Endpoints[1]))
		if b.Confidence.Computed {
			field("confidence", formatFloat(b.Confidence.Value))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
