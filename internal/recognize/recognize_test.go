package recognize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"molina/internal/annotation"
	"molina/internal/exchange"
	"molina/internal/imaging"
)

type fakeRecognizer struct {
	name    string
	doc     exchange.Document
	err     error
	release chan struct{} // When set, Predict waits for it or ctx
	started chan struct{}
}

func (f *fakeRecognizer) Name() string { return f.name }

func (f *fakeRecognizer) Predict(ctx context.Context, _ *imaging.Picture) (exchange.Document, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return exchange.Document{}, ctx.Err()
		}
	}
	return f.doc, f.err
}

func picture(path string, w, h int) *imaging.Picture {
	return &imaging.Picture{Path: path, Image: image.NewGray(image.Rect(0, 0, w, h))}
}

func TestPredictNormalizes(t *testing.T) {
	rec := &fakeRecognizer{name: "fake", doc: exchange.Document{
		Atoms: []exchange.AtomRecord{{Symbol: "C", X: 50, Y: 20}, {Symbol: "O", X: 100, Y: 40}},
		Bonds: []exchange.BondRecord{{Type: annotation.BondSingle, Endpoints: [2]int{0, 1}}},
	}}
	doc, err := Predict(context.Background(), rec, picture("m.png", 100, 40))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, doc.Atoms[0].X, 1e-12)
	assert.InDelta(t, 1.0, doc.Atoms[1].Y, 1e-12)

	rec.doc.Bonds[0].Endpoints = [2]int{0, 7}
	_, err = Predict(context.Background(), rec, picture("m.png", 100, 40))
	assert.ErrorIs(t, err, annotation.ErrInvalidBond)

	rec.err = errors.New("boom")
	_, err = Predict(context.Background(), rec, picture("m.png", 100, 40))
	assert.ErrorContains(t, err, "fake: boom")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Current()
	assert.ErrorIs(t, err, ErrNoModel)

	r.Register(&fakeRecognizer{name: "b"})
	r.Register(&fakeRecognizer{name: "a"})
	assert.Equal(t, "b", r.CurrentName())
	assert.Equal(t, []string{"a", "b"}, r.Names())

	require.NoError(t, r.Select("a"))
	rec, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Name())
	assert.ErrorIs(t, r.Select("zzz"), ErrUnknownModel)
}

func TestRunnerBusyAndResult(t *testing.T) {
	rec := &fakeRecognizer{
		name:    "slow",
		doc:     exchange.Document{Atoms: []exchange.AtomRecord{{Symbol: "N", X: 0.5, Y: 0.5}}},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	r := NewRunner()
	defer r.Close()

	results := make(chan Result, 1)
	require.NoError(t, r.Start(rec, picture("a.png", 10, 10), func(res Result) { results <- res }))
	<-rec.started
	assert.True(t, r.Busy())
	assert.ErrorIs(t, r.Start(rec, picture("b.png", 10, 10), func(Result) {}), ErrBusy)

	close(rec.release)
	select {
	case res := <-results:
		require.NoError(t, res.Err)
		assert.Equal(t, "a.png", res.Path)
		assert.Equal(t, "slow", res.Model)
		assert.Len(t, res.Doc.Atoms, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("prediction did not finish")
	}
	assert.False(t, r.Busy())
}

func TestRunnerCloseCancels(t *testing.T) {
	rec := &fakeRecognizer{name: "stuck", release: make(chan struct{}), started: make(chan struct{})}
	r := NewRunner()

	results := make(chan Result, 1)
	require.NoError(t, r.Start(rec, picture("a.png", 10, 10), func(res Result) { results <- res }))
	<-rec.started

	r.Close()
	res := <-results
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.False(t, r.Busy())
	assert.ErrorIs(t, r.Start(rec, picture("a.png", 10, 10), func(Result) {}), ErrClosed)
}

func TestRunnerCancel(t *testing.T) {
	rec := &fakeRecognizer{name: "stuck", release: make(chan struct{}), started: make(chan struct{})}
	r := NewRunner()
	defer r.Close()

	results := make(chan Result, 1)
	require.NoError(t, r.Start(rec, picture("a.png", 10, 10), func(res Result) { results <- res }))
	<-rec.started
	r.Cancel()
	assert.ErrorIs(t, (<-results).Err, context.Canceled)
}

// TestHelperProcess is not a real test. It acts as an external model for
// the Command tests.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv("MOLINA_HELPER_MODE")
	if mode == "" {
		return
	}
	switch mode {
	case "stdin":
		data, _ := io.ReadAll(os.Stdin)
		if len(data) < 8 || string(data[1:4]) != "PNG" {
			fmt.Fprintln(os.Stderr, "expected png on stdin")
			os.Exit(3)
		}
		fmt.Print(`{"atoms":[{"atom_symbol":"C","x":0.1,"y":0.2,"confidence":0.5}],"bonds":[]}`)
	case "path":
		fmt.Printf(`{"atoms":[{"atom_symbol":%q,"x":0.1,"y":0.2,"confidence":null}],"bonds":[]}`, os.Args[len(os.Args)-1])
	case "fail":
		fmt.Fprintln(os.Stderr, "model exploded")
		os.Exit(2)
	case "sleep":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperCommand(mode string, extra ...string) *Command {
	return &Command{
		Label: "helper",
		Path:  os.Args[0],
		Args:  append([]string{"-test.run=TestHelperProcess", "--"}, extra...),
		Env:   []string{"MOLINA_HELPER_MODE=" + mode},
	}
}

func TestCommandRecognizer(t *testing.T) {
	pic := picture("/data/mol.png", 8, 8)

	doc, err := helperCommand("stdin").Predict(context.Background(), pic)
	require.NoError(t, err)
	require.Len(t, doc.Atoms, 1)
	assert.Equal(t, annotation.Score(0.5), doc.Atoms[0].Confidence)

	doc, err = helperCommand("path", "file="+ImagePlaceholder).Predict(context.Background(), pic)
	require.NoError(t, err)
	assert.Equal(t, "file=/data/mol.png", doc.Atoms[0].Symbol)

	_, err = helperCommand("fail").Predict(context.Background(), pic)
	assert.ErrorContains(t, err, "model exploded")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = helperCommand("sleep").Predict(ctx, pic)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseCommand(t *testing.T) {
	c, err := ParseCommand("molscribe", "  python3 predict.py --image {image} ")
	require.NoError(t, err)
	assert.Equal(t, "python3", c.Path)
	assert.Equal(t, []string{"predict.py", "--image", "{image}"}, c.Args)
	assert.Equal(t, "molscribe", c.Name())

	_, err = ParseCommand("x", "   ")
	assert.Error(t, err)
}
