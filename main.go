// Package main provides the entry point for the Molina annotation editor.
package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	fyneapp "fyne.io/fyne/v2/app"

	"molina/internal/annotation"
	"molina/internal/app"
	"molina/internal/dataset"
	"molina/internal/keymap"
	"molina/internal/ocr"
	"molina/internal/recognize"
	"molina/internal/version"
	"molina/ui/mainwindow"
	"molina/ui/prefs"
)

const appID = "io.github.molina"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting Molina %s", version.String())

	appPrefs := prefs.Load()

	models, closeModels := loadModels(appPrefs)
	defer closeModels()

	keys := keymap.Default()
	if err := keys.Apply(appPrefs.StringMap(prefs.KeyKeymap)); err != nil {
		log.Printf("Ignoring key bindings from %s: %v", appPrefs.Path(), err)
		keys = keymap.Default()
	}

	state, err := app.NewState(app.Config{
		HistoryLimit: appPrefs.Int(prefs.KeyHistoryLimit, annotation.DefaultOptions().HistoryLimit),
		CacheSize:    dataset.DefaultCapacity,
	}, models, keys)
	if err != nil {
		log.Fatalf("Failed to create state: %v", err)
	}
	state.SetRecent(appPrefs.Strings(prefs.KeyRecent))

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(&app.MolinaTheme{})

	win := mainwindow.New(a, state, appPrefs)

	// Handle command line arguments
	if len(os.Args) > 1 {
		win.OpenImage(os.Args[1])
	} else if recent := state.Recent(); len(recent) > 0 {
		win.OpenImage(recent[0])
	}

	win.ShowAndRun()
}

// loadModels registers the configured external model and, when tesseract
// is available, the OCR label finder. The returned func releases them.
func loadModels(p *prefs.Prefs) (*recognize.Registry, func()) {
	models := recognize.NewRegistry()
	cleanup := func() {}

	if line := strings.TrimSpace(p.String(prefs.KeyModelCommand)); line != "" {
		label := filepath.Base(strings.Fields(line)[0])
		cmd, err := recognize.ParseCommand(label, line)
		if err != nil {
			log.Printf("Skipping model command: %v", err)
		} else {
			models.Register(cmd)
		}
	}

	engine, err := ocr.NewEngine()
	if err != nil {
		log.Printf("OCR labels unavailable: %v", err)
	} else {
		models.Register(&ocr.Labels{Engine: engine, MinConfidence: ocr.DefaultMinConfidence})
		cleanup = func() { engine.Close() }
	}

	if name := p.String(prefs.KeyModelName); name != "" {
		if err := models.Select(name); err != nil {
			log.Printf("Preferred model unavailable: %v", err)
		}
	}
	log.Printf("Models: %s", strings.Join(models.Names(), ", "))
	return models, cleanup
}
