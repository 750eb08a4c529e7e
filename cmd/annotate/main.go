// Command annotate runs recognition models over molecule images and prints
// or converts their annotation files without opening the editor.
//
// Usage: annotate predict --command "molscribe-cli {image}" images/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"molina/internal/dataset"
	"molina/internal/exchange"
	"molina/internal/imaging"
	"molina/internal/molfile"
	"molina/internal/ocr"
	"molina/internal/recognize"
	"molina/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "annotate",
		Short:         "Batch tools for molecule image annotations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newPredictCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newMolfileCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

type predictOptions struct {
	command   string
	useOCR    bool
	jobs      int
	overwrite bool
}

func newPredictCommand() *cobra.Command {
	var opts predictOptions

	cmd := &cobra.Command{
		Use:   "predict [flags] <image-or-dir>...",
		Short: "Predict annotations and write them next to each image",
		Example: `  annotate predict --command "molscribe-cli {image}" scans/
  annotate predict --ocr -j 2 page1.png page2.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, cleanup, err := opts.recognizer()
			if err != nil {
				return err
			}
			defer cleanup()

			paths, err := expandImages(args)
			if err != nil {
				return err
			}
			written, err := predictFiles(cmd.Context(), rec, paths, opts)
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d images annotated\n", written, len(paths))
			return err
		},
	}

	cmd.Flags().StringVar(&opts.command, "command", "", "External model command line; "+recognize.ImagePlaceholder+" is replaced by the image path")
	cmd.Flags().BoolVar(&opts.useOCR, "ocr", false, "Find atom labels with tesseract instead of a model")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 2, "Images predicted in parallel")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing annotation files")
	return cmd
}

func (o predictOptions) recognizer() (recognize.Recognizer, func(), error) {
	o.command = strings.TrimSpace(o.command)
	switch {
	case o.command != "" && o.useOCR:
		return nil, nil, errors.New("--command and --ocr are mutually exclusive")
	case o.command != "":
		label := filepath.Base(strings.Fields(o.command)[0])
		rec, err := recognize.ParseCommand(label, o.command)
		return rec, func() {}, err
	case o.useOCR:
		engine, err := ocr.NewEngine()
		if err != nil {
			return nil, nil, err
		}
		return &ocr.Labels{Engine: engine, MinConfidence: ocr.DefaultMinConfidence}, func() { engine.Close() }, nil
	default:
		return nil, nil, errors.New("one of --command or --ocr is required")
	}
}

// expandImages replaces directories with the images they contain.
func expandImages(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		images, err := dataset.ListImages(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, images...)
	}
	return paths, nil
}

// predictFiles runs rec over paths with at most opts.jobs predictions at a
// time. Failures are logged and joined; the remaining images still run.
func predictFiles(ctx context.Context, rec recognize.Recognizer, paths []string, opts predictOptions) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	jobs := opts.jobs
	if jobs < 1 {
		jobs = 1
	}

	var (
		mu      sync.Mutex
		errs    []error
		written int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, path := range paths {
		g.Go(func() error {
			ok, err := predictFile(ctx, rec, path, opts.overwrite)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("%s: %v", path, err)
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			}
			if ok {
				written++
			}
			return nil
		})
	}
	_ = g.Wait()
	return written, errors.Join(errs...)
}

func predictFile(ctx context.Context, rec recognize.Recognizer, path string, overwrite bool) (bool, error) {
	out := exchange.AnnotationPath(path)
	if !overwrite {
		if _, err := os.Stat(out); err == nil {
			log.Printf("Skipping %s: %s exists", path, filepath.Base(out))
			return false, nil
		}
	}
	pic, err := imaging.Load(path)
	if err != nil {
		return false, err
	}
	doc, err := recognize.Predict(ctx, rec, pic)
	if err != nil {
		return false, err
	}
	if err := exchange.Save(out, doc); err != nil {
		return false, err
	}
	log.Printf("Wrote %s: %d atoms, %d bonds", out, len(doc.Atoms), len(doc.Bonds))
	return true, nil
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <image-or-annotation>...",
		Short: "Print annotations in the editor's text layout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				doc, err := loadAnnotation(arg)
				if err != nil {
					return err
				}
				if len(args) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "== %s\n", arg)
				}
				fmt.Fprint(cmd.OutOrStdout(), exchange.Pretty(doc))
			}
			return nil
		},
	}
}

func newMolfileCommand() *cobra.Command {
	var output string
	var scale float64

	cmd := &cobra.Command{
		Use:   "molfile <image-or-annotation>",
		Short: "Convert an annotation to an MDL molblock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadAnnotation(args[0])
			if err != nil {
				return err
			}
			name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			return writeMolfile(cmd.OutOrStdout(), output, doc, molfile.Options{Name: name, Scale: scale})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().Float64Var(&scale, "scale", molfile.DefaultScale, "Molblock units per image width")
	return cmd
}

func writeMolfile(stdout io.Writer, output string, doc exchange.Document, opts molfile.Options) error {
	if output == "" {
		return molfile.Write(stdout, doc, opts)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := molfile.Write(f, doc, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// loadAnnotation accepts either an annotation file or the image it belongs
// to.
func loadAnnotation(path string) (exchange.Document, error) {
	if !strings.EqualFold(filepath.Ext(path), exchange.Extension) {
		path = exchange.AnnotationPath(path)
	}
	return exchange.Load(path)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "annotate %s\n", version.String())
		},
	}
}
