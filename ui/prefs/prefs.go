// Package prefs provides JSON-based application preferences.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const prefsFile = "preferences.json"

// Preference keys.
const (
	KeyHistoryLimit = "history_limit" // Undo depth per image
	KeyModelCommand = "model_command" // External recognizer command line
	KeyModelName    = "model_name"    // Selected recognizer
	KeyKeymap       = "keymap"        // Key -> symbol or bond type overrides
	KeyLastDir      = "last_dir"
	KeyRecent       = "recent"
)

// Prefs stores application preferences as a key-value map.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// Load reads preferences from ~/.config/molina/preferences.json.
// Returns a Prefs with defaults if the file doesn't exist.
func Load() *Prefs {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return LoadFrom(filepath.Join(configDir, "molina", prefsFile))
}

// LoadFrom reads preferences from path.
func LoadFrom(path string) *Prefs {
	p := &Prefs{
		values: make(map[string]interface{}),
		path:   path,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p.values)
	return p
}

// Path returns the preferences file location.
func (p *Prefs) Path() string {
	return p.path
}

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// Int returns an int preference, or fallback if not set.
func (p *Prefs) Int(key string, fallback int) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return fallback
}

// SetInt stores an int preference.
func (p *Prefs) SetInt(key string, val int) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// String returns a string preference, or "" if not set.
func (p *Prefs) String(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetString stores a string preference.
func (p *Prefs) SetString(key string, val string) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// StringMap returns a string-to-string preference, or an empty map.
func (p *Prefs) StringMap(key string) map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string)
	switch m := p.values[key].(type) {
	case map[string]interface{}:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// SetStringMap stores a string-to-string preference.
func (p *Prefs) SetStringMap(key string, val map[string]string) {
	cp := make(map[string]string, len(val))
	for k, v := range val {
		cp[k] = v
	}
	p.mu.Lock()
	p.values[key] = cp
	p.mu.Unlock()
}

// Strings returns a string list preference, or nil.
func (p *Prefs) Strings(key string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	switch l := p.values[key].(type) {
	case []interface{}:
		for _, v := range l {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, l...)
	}
	return out
}

// SetStrings stores a string list preference.
func (p *Prefs) SetStrings(key string, val []string) {
	p.mu.Lock()
	p.values[key] = append([]string(nil), val...)
	p.mu.Unlock()
}
