package dataset

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"molina/internal/annotation"
	"molina/internal/exchange"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
	return path
}

func newDataset(t *testing.T, capacity int) *Dataset {
	t.Helper()
	d, err := New(capacity, annotation.DefaultOptions())
	require.NoError(t, err)
	return d
}

func TestOpenLoadsAnnotation(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "mol.png", 200, 100)
	doc := exchange.Document{
		Atoms: []exchange.AtomRecord{
			{Symbol: "C", X: 0.5, Y: 0.5, Confidence: annotation.Score(0.7)},
			{Symbol: "O", X: 0.25, Y: 0.1},
		},
		Bonds: []exchange.BondRecord{{Type: annotation.BondDouble, Endpoints: [2]int{0, 1}}},
	}
	require.NoError(t, exchange.Save(filepath.Join(dir, "mol.json"), doc))

	d := newDataset(t, 0)
	e, err := d.Open(img)
	require.NoError(t, err)
	assert.Same(t, e, d.Current())
	assert.False(t, e.Modified())
	assert.False(t, e.Store.CanUndo())

	atoms := e.Store.Atoms()
	require.Len(t, atoms, 2)
	assert.Equal(t, 100.0, atoms[0].Pos.X)
	assert.Equal(t, 50.0, atoms[0].Pos.Y)
	assert.Equal(t, 50.0, atoms[1].Pos.X)
	assert.Equal(t, 1, e.Store.BondLen())

	got, err := e.Document()
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestSaveSkipsEmpty(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "empty.png", 10, 10)

	d := newDataset(t, 0)
	_, err := d.Save()
	assert.ErrorIs(t, err, ErrNoImage)

	e, err := d.Open(img)
	require.NoError(t, err)
	saved, err := d.Save()
	require.NoError(t, err)
	assert.False(t, saved)
	assert.NoFileExists(t, e.AnnotationPath)

	e.Store.AddAtom("N", 5, 5)
	assert.True(t, e.Modified())
	assert.Equal(t, []string{img}, d.Modified())
	saved, err = d.Save()
	require.NoError(t, err)
	assert.True(t, saved)
	assert.False(t, e.Modified())
	assert.Empty(t, d.Modified())

	loaded, err := exchange.Load(e.AnnotationPath)
	require.NoError(t, err)
	require.Len(t, loaded.Atoms, 1)
	assert.Equal(t, 0.5, loaded.Atoms[0].X)
}

func TestCacheEvictionSavesModified(t *testing.T) {
	dir := t.TempDir()
	d := newDataset(t, 2)

	paths := make([]string, 3)
	for i := range paths {
		paths[i] = writePNG(t, dir, fmt.Sprintf("m%d.png", i), 20, 20)
	}

	first, err := d.Open(paths[0])
	require.NoError(t, err)
	first.Store.AddAtom("S", 10, 10)

	_, err = d.Open(paths[1])
	require.NoError(t, err)
	_, err = d.Open(paths[2])
	require.NoError(t, err)

	assert.False(t, d.Cached(paths[0]))
	assert.True(t, d.Cached(paths[2]))
	assert.FileExists(t, exchange.AnnotationPath(paths[0]))

	// Reopening decodes again and picks up the saved annotation.
	again, err := d.Open(paths[0])
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	assert.Equal(t, 1, again.Store.Len())
}

func TestRecent(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", 4, 4)
	b := writePNG(t, dir, "b.png", 4, 4)
	c := writePNG(t, dir, "c.png", 4, 4)

	d := newDataset(t, 0)
	_, ok := d.Back()
	assert.False(t, ok)

	for _, p := range []string{a, b, c, a} {
		_, err := d.Open(p)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{a, c, b}, d.Recent())

	back, ok := d.Back()
	require.True(t, ok)
	assert.Equal(t, b, back)
	_, err := d.Open(back)
	require.NoError(t, err)
	back, _ = d.Back()
	assert.Equal(t, c, back)

	_, err = d.Open(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
	assert.Len(t, d.Recent(), 3)
}

func TestRecentLabels(t *testing.T) {
	got := RecentLabels([]string{"/x/one/mol.png", "/x/two/mol.png", "/x/two/other.png"})
	assert.Equal(t, []string{filepath.Join("one", "mol.png"), filepath.Join("two", "mol.png"), "other.png"}, got)
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "b.png", 2, 2)
	writePNG(t, dir, "a.PNG", 2, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	got, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PNG"), filepath.Join(dir, "b.png")}, got)
}
