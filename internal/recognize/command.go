package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"molina/internal/exchange"
	"molina/internal/imaging"
)

// ImagePlaceholder in Command.Args is replaced by the image path. Without it
// the image is written to stdin as PNG.
const ImagePlaceholder = "{image}"

// Command is a recognizer backed by an external program, such as a wrapper
// around a MolScribe checkpoint. The program must print one annotation
// document as JSON on stdout.
type Command struct {
	Label string
	Path  string
	Args  []string
	Env   []string // Extra environment, appended to the editor's own
}

// ParseCommand builds a Command from a shell-like line split on whitespace.
func ParseCommand(label, line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("model %q: empty command", label)
	}
	return &Command{Label: label, Path: fields[0], Args: fields[1:]}, nil
}

// Name implements Recognizer.
func (c *Command) Name() string {
	return c.Label
}

// Predict implements Recognizer. The process is killed when ctx is done.
func (c *Command) Predict(ctx context.Context, pic *imaging.Picture) (exchange.Document, error) {
	args := make([]string, len(c.Args))
	usesPath := false
	for i, a := range c.Args {
		if strings.Contains(a, ImagePlaceholder) {
			usesPath = true
			a = strings.ReplaceAll(a, ImagePlaceholder, pic.Path)
		}
		args[i] = a
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	if !usesPath {
		data, err := pic.PNG()
		if err != nil {
			return exchange.Document{}, err
		}
		cmd.Stdin = bytes.NewReader(data)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return exchange.Document{}, fmt.Errorf("model canceled: %w", ctx.Err())
		}
		return exchange.Document{}, fmt.Errorf("model failed: %w\nOutput: %s", err, strings.TrimSpace(stderr.String()))
	}

	var doc exchange.Document
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return exchange.Document{}, fmt.Errorf("parse model output: %w", err)
	}
	return doc, nil
}
