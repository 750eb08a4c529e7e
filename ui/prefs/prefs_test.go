package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "molina", prefsFile)

	p := LoadFrom(path)
	assert.Equal(t, 15, p.Int(KeyHistoryLimit, 15))
	assert.Empty(t, p.String(KeyModelCommand))
	assert.Empty(t, p.StringMap(KeyKeymap))

	p.SetInt(KeyHistoryLimit, 30)
	p.SetString(KeyModelCommand, "molscribe-cli {image}")
	p.SetStringMap(KeyKeymap, map[string]string{"C": "Cl"})
	p.SetStrings(KeyRecent, []string{"/a.png", "/b.png"})
	require.NoError(t, p.Save())

	q := LoadFrom(path)
	assert.Equal(t, 30, q.Int(KeyHistoryLimit, 15))
	assert.Equal(t, "molscribe-cli {image}", q.String(KeyModelCommand))
	assert.Equal(t, map[string]string{"C": "Cl"}, q.StringMap(KeyKeymap))
	assert.Equal(t, []string{"/a.png", "/b.png"}, q.Strings(KeyRecent))
}

func TestCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefsFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	p := LoadFrom(path)
	assert.Equal(t, 7, p.Int(KeyHistoryLimit, 7))
	assert.Equal(t, path, p.Path())
}
