// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"molina/internal/app"
	"molina/internal/dataset"
	"molina/internal/exchange"
	"molina/internal/imaging"
	"molina/internal/molfile"
	"molina/internal/recognize"
	"molina/internal/version"
	"molina/ui/canvas"
	"molina/ui/prefs"
)

const appTitle = "Molina"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app    fyne.App
	state  *app.State
	prefs  *prefs.Prefs
	canvas *canvas.AnnotationCanvas

	statusBar   *widget.Label
	toolLabel   *widget.Label
	progress    *widget.ProgressBarInfinite
	annotation  *widget.Label
	recentList  *widget.List
	recent      []string
	modelSelect *widget.Select

	// Menu items that need state tracking
	fitToWindowItem *fyne.MenuItem
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()
	mw.SetCloseIntercept(mw.onClose)
	mw.Resize(fyne.NewSize(1200, 800))

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	ctrl := canvas.NewController(mw.state, mw.state.Keymap())
	mw.canvas = canvas.NewAnnotationCanvas(mw.state, ctrl)
	ctrl.OnChange(mw.onToolChanged)
	ctrl.OnError(mw.showEditError)

	mw.statusBar = widget.NewLabel("Ready")
	mw.toolLabel = widget.NewLabel(ctrl.Tool())
	mw.progress = widget.NewProgressBarInfinite()
	mw.progress.Hide()

	mw.annotation = widget.NewLabel("")
	mw.annotation.TextStyle = fyne.TextStyle{Monospace: true}

	mw.recentList = widget.NewList(
		func() int { return len(mw.recent) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			labels := dataset.RecentLabels(mw.recent)
			obj.(*widget.Label).SetText(labels[id])
		},
	)
	mw.recentList.OnSelected = func(id widget.ListItemID) {
		if id < len(mw.recent) {
			mw.openImage(mw.recent[id])
		}
		mw.recentList.UnselectAll()
	}

	side := container.NewVSplit(
		container.NewBorder(widget.NewLabelWithStyle("Recent", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			nil, nil, nil, mw.recentList),
		container.NewBorder(widget.NewLabelWithStyle("Annotation", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			nil, nil, nil, container.NewScroll(mw.annotation)),
	)
	side.SetOffset(0.3)

	canvasArea := container.NewBorder(
		mw.createToolbar(),    // top
		nil,                   // bottom
		nil,                   // left
		nil,                   // right
		mw.canvas.Container(), // center
	)

	split := container.NewHSplit(canvasArea, side)
	split.SetOffset(0.75)

	status := container.NewBorder(nil, nil, nil, container.NewHBox(mw.progress, mw.toolLabel), mw.statusBar)
	content := container.NewBorder(
		nil,                         // top
		container.NewPadded(status), // bottom
		nil,                         // left
		nil,                         // right
		split,                       // center
	)

	mw.SetContent(content)
	mw.canvas.SetFitToWindow(true)
	mw.refreshRecent()
}

// createToolbar creates the toolbar with file, model, and zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	mw.modelSelect = widget.NewSelect(mw.state.Models().Names(), func(name string) {
		if err := mw.state.SelectModel(name); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	})
	if name := mw.state.Models().CurrentName(); name != "" {
		mw.modelSelect.SetSelected(name)
	}

	return container.NewHBox(
		widget.NewButton("Open", mw.onOpenImage),
		widget.NewButton("Back", mw.onBack),
		widget.NewButton("Save", mw.onSave),
		widget.NewSeparator(),
		widget.NewButton("Undo", mw.canvas.Controller().Undo),
		widget.NewButton("Clear", mw.onClearAll),
		widget.NewSeparator(),
		mw.modelSelect,
		widget.NewButton("Predict", mw.onPredict),
		widget.NewSeparator(),
		widget.NewLabel("Zoom:"),
		widget.NewButton("-", mw.onZoomOut),
		widget.NewButton("+", mw.onZoomIn),
		widget.NewButton("Fit", mw.onToggleFitToWindow),
		widget.NewButton("1:1", mw.onActualSize),
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItem("Previous Image", mw.onBack),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save", mw.onSave),
		fyne.NewMenuItem("Save All", mw.onSaveAll),
		fyne.NewMenuItem("Export Molfile...", mw.onExportMolfile),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", mw.canvas.Controller().Undo),
		fyne.NewMenuItem("Clear All", mw.onClearAll),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Rebind Key...", mw.onRebindKey),
	)

	mw.fitToWindowItem = fyne.NewMenuItem("✓ Fit to Window", mw.onToggleFitToWindow)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		mw.fitToWindowItem,
		fyne.NewMenuItem("Actual Size", mw.onActualSize),
	)

	modelMenu := fyne.NewMenu("Model",
		fyne.NewMenuItem("Predict", mw.onPredict),
		fyne.NewMenuItem("Cancel Prediction", mw.state.CancelPrediction),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("Hotkeys", mw.onHotkeys),
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, modelMenu, helpMenu))
}

// setupShortcuts routes typed keys to the canvas and binds the editing
// shortcuts.
func (mw *MainWindow) setupShortcuts() {
	c := mw.Canvas()
	c.SetOnTypedKey(mw.canvas.TypedKey)
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.canvas.Controller().Undo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onSave() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onOpenImage() })
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventImageLoaded, func(data interface{}) {
		entry, ok := data.(*dataset.Entry)
		if !ok {
			return
		}
		mw.canvas.SetImage(entry.Picture.Image)
		mw.setTitle(entry.Path(), entry.Modified())
		mw.refreshRecent()
		mw.updateStatus(fmt.Sprintf("Loaded %s (%dx%d)", filepath.Base(entry.Path()),
			entry.Picture.Width(), entry.Picture.Height()))
	})

	mw.state.On(app.EventAnnotationChanged, func(data interface{}) {
		if doc, ok := data.(exchange.Document); ok {
			mw.annotation.SetText(exchange.Pretty(doc))
		}
		mw.canvas.Refresh()
	})

	mw.state.On(app.EventModified, func(data interface{}) {
		if entry := mw.state.Current(); entry != nil {
			modified, _ := data.(bool)
			mw.setTitle(entry.Path(), modified)
		}
	})

	mw.state.On(app.EventSaved, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.updateStatus("Saved " + path)
		}
	})

	mw.state.On(app.EventPredictionStarted, func(data interface{}) {
		mw.progress.Show()
		mw.progress.Start()
		mw.updateStatus("Predicting...")
	})

	mw.state.On(app.EventPredictionFinished, func(data interface{}) {
		mw.stopProgress()
		if res, ok := data.(recognize.Result); ok {
			mw.updateStatus(fmt.Sprintf("%s: %d atoms, %d bonds in %v",
				res.Model, len(res.Doc.Atoms), len(res.Doc.Bonds), res.Elapsed.Round(time.Millisecond)))
		}
	})

	mw.state.On(app.EventPredictionFailed, func(data interface{}) {
		mw.stopProgress()
		err, _ := data.(error)
		switch {
		case errors.Is(err, context.Canceled):
			mw.updateStatus("Prediction cancelled")
		case errors.Is(err, app.ErrImageChanged):
			mw.updateStatus("Prediction discarded: image changed")
		default:
			mw.updateStatus("Prediction failed")
			dialog.ShowError(err, mw.Window)
		}
	})

	mw.state.On(app.EventModelChanged, func(data interface{}) {
		if name, ok := data.(string); ok {
			mw.prefs.SetString(prefs.KeyModelName, name)
			mw.updateStatus("Model: " + name)
		}
	})
}

func (mw *MainWindow) stopProgress() {
	mw.progress.Stop()
	mw.progress.Hide()
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) setTitle(path string, modified bool) {
	title := appTitle + " - " + filepath.Base(path)
	if modified {
		title += " *"
	}
	mw.SetTitle(title)
}

func (mw *MainWindow) refreshRecent() {
	mw.recent = mw.state.Recent()
	mw.prefs.SetStrings(prefs.KeyRecent, mw.recent)
	mw.recentList.Refresh()
}

func (mw *MainWindow) onToolChanged() {
	mw.toolLabel.SetText(mw.canvas.Controller().Tool())
	mw.canvas.Refresh()
}

// showEditError reports a refused edit. A running prediction only earns a
// status message.
func (mw *MainWindow) showEditError(err error) {
	switch {
	case errors.Is(err, app.ErrBusy):
		mw.updateStatus("Prediction in progress, edits are locked")
	case errors.Is(err, app.ErrNoImage):
		mw.updateStatus("Open an image first")
	default:
		dialog.ShowError(err, mw.Window)
	}
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(filePath))
}

// OpenImage opens path, reporting failures in a dialog.
func (mw *MainWindow) OpenImage(path string) {
	mw.openImage(path)
}

func (mw *MainWindow) openImage(path string) {
	if err := mw.state.OpenImage(path); err != nil {
		mw.showEditError(fmt.Errorf("open %s: %w", filepath.Base(path), err))
		return
	}
	mw.saveLastDir(path)
}

// Menu action handlers

func (mw *MainWindow) onOpenImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.openImage(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(imaging.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onBack() {
	if err := mw.state.OpenPrevious(); err != nil {
		mw.showEditError(err)
	}
}

func (mw *MainWindow) onSave() {
	if err := mw.state.Save(); err != nil {
		mw.showEditError(err)
	}
}

func (mw *MainWindow) onSaveAll() {
	if err := mw.state.SaveAll(); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.updateStatus("Saved all images")
}

func (mw *MainWindow) onClearAll() {
	if err := mw.state.ClearAll(); err != nil {
		mw.showEditError(err)
	}
}

func (mw *MainWindow) onPredict() {
	if err := mw.state.Predict(); err != nil {
		mw.showEditError(err)
	}
}

func (mw *MainWindow) onExportMolfile() {
	doc, err := mw.state.Document()
	if err != nil {
		mw.showEditError(err)
		return
	}
	name := strings.TrimSuffix(filepath.Base(mw.state.Current().Path()), filepath.Ext(mw.state.Current().Path()))

	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		if err := molfile.Write(writer, doc, molfile.Options{Name: name}); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		log.Printf("Exported %s", writer.URI().Path())
		mw.updateStatus("Exported " + writer.URI().Path())
	}, mw.Window)
	fd.SetFileName(name + ".mol")
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onRebindKey() {
	key := widget.NewEntry()
	key.SetPlaceHolder("C")
	value := widget.NewEntry()
	value.SetPlaceHolder("Cl or double")

	items := []*widget.FormItem{
		widget.NewFormItem("Key", key),
		widget.NewFormItem("Symbol or bond", value),
	}
	dialog.ShowForm("Rebind Key", "Bind", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		keys := mw.state.Keymap()
		if err := keys.SetValue(key.Text, value.Text); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.prefs.SetStringMap(prefs.KeyKeymap, keys.Overrides())
		mw.updateStatus(fmt.Sprintf("%s bound to %s", strings.ToUpper(key.Text), value.Text))
	}, mw.Window)
}

func (mw *MainWindow) onZoomIn() {
	mw.disableFitToWindow()
	mw.canvas.ZoomIn()
}

func (mw *MainWindow) onZoomOut() {
	mw.disableFitToWindow()
	mw.canvas.ZoomOut()
}

func (mw *MainWindow) onToggleFitToWindow() {
	enabled := !mw.fitEnabled()
	mw.canvas.SetFitToWindow(enabled)
	mw.setFitLabel(enabled)
}

func (mw *MainWindow) onActualSize() {
	mw.disableFitToWindow()
	mw.canvas.SetZoom(1.0)
}

func (mw *MainWindow) fitEnabled() bool {
	return strings.HasPrefix(mw.fitToWindowItem.Label, "✓")
}

func (mw *MainWindow) setFitLabel(enabled bool) {
	if enabled {
		mw.fitToWindowItem.Label = "✓ Fit to Window"
	} else {
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) disableFitToWindow() {
	if mw.fitEnabled() {
		mw.canvas.SetFitToWindow(false)
		mw.setFitLabel(false)
	}
}

func (mw *MainWindow) onHotkeys() {
	help := mw.state.Keymap().Help() +
		"\nAny key leaves the current mode first.\n" +
		"Left click places an atom; drag draws a bond or moves an atom.\n" +
		"Right click deletes the nearest atom or bond. Ctrl+Z undoes."
	label := widget.NewLabel(help)
	label.TextStyle = fyne.TextStyle{Monospace: true}
	dialog.ShowCustom("Hotkeys", "Close", container.NewScroll(label), mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Annotate atoms and bonds on molecule images.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

// onClose offers to save unsaved images, stops any prediction, and writes
// preferences before closing.
func (mw *MainWindow) onClose() {
	finish := func() {
		mw.state.Close()
		if err := mw.prefs.Save(); err != nil {
			log.Printf("Failed to save preferences: %v", err)
		}
		mw.Window.Close()
	}

	unsaved := mw.state.Unsaved()
	if len(unsaved) == 0 {
		finish()
		return
	}
	msg := fmt.Sprintf("Save changes to %d image(s)?\n\n%s", len(unsaved),
		strings.Join(dataset.RecentLabels(unsaved), "\n"))
	dialog.ShowConfirm("Unsaved Changes", msg, func(save bool) {
		if save {
			if err := mw.state.SaveAll(); err != nil {
				log.Printf("Failed to save on exit: %v", err)
			}
		}
		finish()
	}, mw.Window)
}
