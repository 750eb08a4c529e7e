// Package keymap maps single keys to drawing tools: an atom symbol to place
// or a bond type to draw.
package keymap

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"molina/internal/annotation"
)

// Mode is the drawing tool a key selects.
type Mode int

const (
	ModePoint Mode = iota // Click places an atom
	ModeLine              // Drag draws a bond
)

func (m Mode) String() string {
	switch m {
	case ModePoint:
		return "point"
	case ModeLine:
		return "line"
	default:
		return "unknown"
	}
}

// Binding is the action bound to a key.
type Binding struct {
	Mode  Mode
	Value string // Atom symbol or bond type name
}

// BondType returns the bond type of a line binding.
func (b Binding) BondType() (annotation.BondType, error) {
	if b.Mode != ModeLine {
		return 0, fmt.Errorf("binding %q is not a bond", b.Value)
	}
	return annotation.ParseBondType(b.Value)
}

var defaults = map[string]Binding{
	"C": {ModePoint, "C"},
	"N": {ModePoint, "N"},
	"O": {ModePoint, "O"},
	"I": {ModePoint, "I"},
	"S": {ModePoint, "S"},
	"F": {ModePoint, "F"},
	"K": {ModePoint, "K"},
	"L": {ModePoint, "L"},
	"R": {ModePoint, "Ru"},
	"Y": {ModePoint, "Y"},
	"P": {ModePoint, "P"},
	"A": {ModePoint, "A"},
	"G": {ModePoint, "Ga"},
	"Z": {ModePoint, "Zn"},
	"V": {ModePoint, "V"},
	"B": {ModePoint, "B"},
	"M": {ModePoint, "Mn"},
	"1": {ModeLine, "single"},
	"2": {ModeLine, "double"},
	"3": {ModeLine, "triple"},
	"4": {ModeLine, "aromatic"},
	"5": {ModeLine, "solid wedge"},
	"6": {ModeLine, "solid unwedge"},
	"7": {ModeLine, "dashed wedge"},
}

// Map is a set of key bindings. Keys are upper-case single characters.
type Map struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

// Default returns a map with the stock bindings.
func Default() *Map {
	m := &Map{bindings: make(map[string]Binding, len(defaults))}
	for k, b := range defaults {
		m.bindings[k] = b
	}
	return m
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Lookup returns the binding for key.
func (m *Map) Lookup(key string) (Binding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[normalizeKey(key)]
	return b, ok
}

// SetValue rebinds key to a new symbol or bond type. A key keeps its mode;
// line keys only accept bond type names.
func (m *Map) SetValue(key, value string) error {
	key = normalizeKey(key)
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("key %s: empty value", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[key]
	if !ok {
		return fmt.Errorf("key %s is not bound", key)
	}
	if b.Mode == ModeLine {
		if _, err := annotation.ParseBondType(value); err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
	}
	b.Value = value
	m.bindings[key] = b
	return nil
}

// Apply rebinds every key in overrides, stopping at the first error.
func (m *Map) Apply(overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := m.SetValue(k, overrides[k]); err != nil {
			return err
		}
	}
	return nil
}

// Overrides returns the bindings that differ from the defaults, as stored in
// preferences.
func (m *Map) Overrides() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	for k, b := range m.bindings {
		if defaults[k] != b {
			out[k] = b.Value
		}
	}
	return out
}

// Keys returns the bound keys, digits first.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.bindings))
	for k := range m.bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Help returns one line per binding, for the help dialog.
func (m *Map) Help() string {
	var sb strings.Builder
	for _, k := range m.Keys() {
		b, _ := m.Lookup(k)
		fmt.Fprintf(&sb, "%s  %-5s %s\n", k, b.Mode, b.Value)
	}
	return sb.String()
}
