// Package mainwindow provides the main application window.
package mainwindow

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"measuretool/internal/measure"
	"measuretool/internal/project"
	"measuretool/internal/session"
	"measuretool/internal/version"
	"measuretool/ui/canvas"
	"measuretool/ui/dialogs"
	"measuretool/ui/panels"
	"measuretool/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	prefKeyLastDir  = "lastDirectory"
	prefKeyLastUnit = "lastUnit"

	projectExt = ".measproj"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	session   *session.Session
	prefs     *prefs.Prefs
	canvas    *canvas.MeasureCanvas
	sidePanel *panels.SidePanel
	statusBar *widget.Label
	zoomLabel *widget.Label

	sessionPath     string
	fitToWindowItem *fyne.MenuItem
}

// New creates the main window around the session.
func New(fyneApp fyne.App, s *session.Session, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("Measure")

	mw := &MainWindow{
		Window:  win,
		app:     fyneApp,
		session: s,
		prefs:   p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupKeys()
	mw.setupEventHandlers()

	win.Resize(fyne.NewSize(1100, 750))
	return mw
}

// setupUI creates the main layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.New(mw.session)
	mw.canvas.OnZoomChange(func(zoom float64) {
		mw.zoomLabel.SetText(fmt.Sprintf("%.0f%%", zoom*100))
	})

	mw.sidePanel = panels.New(mw.session)
	mw.sidePanel.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Ready")
	mw.zoomLabel = widget.NewLabel("100%")

	toolbar := mw.createToolbar()

	canvasArea := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		mw.canvas.Container(),
	)

	split := container.NewHSplit(
		mw.sidePanel.Container(),
		canvasArea,
	)
	split.SetOffset(0.25)

	statusRow := container.NewBorder(nil, nil, nil, mw.zoomLabel,
		container.NewPadded(mw.statusBar))
	content := container.NewBorder(
		nil,
		statusRow,
		nil,
		nil,
		split,
	)

	mw.SetContent(content)
}

// createToolbar builds the measurement tool buttons plus the zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	toolBtn := func(label string, kind measure.Kind) *widget.Button {
		return widget.NewButton(label, func() { mw.session.StartTool(kind) })
	}

	return container.NewHBox(
		toolBtn("Cal", measure.KindCalibration),
		toolBtn("Dist", measure.KindDistance),
		toolBtn("Caliper", measure.KindCaliper),
		toolBtn("Poly", measure.KindPolyline),
		toolBtn("Spline", measure.KindSpline),
		toolBtn("Circle", measure.KindCircle),
		toolBtn("Angle", measure.KindAngle),
		widget.NewSeparator(),
		widget.NewButton("Edit", mw.session.StartEdit),
		widget.NewButton("Copy", mw.session.StartCopy),
		widget.NewButton("Del", mw.session.StartDelete),
		widget.NewSeparator(),
		widget.NewButton("-", mw.onZoomOut),
		widget.NewButton("+", mw.onZoomIn),
		widget.NewButton("Fit", mw.onToggleFitToWindow),
		widget.NewButton("1:1", mw.onActualSize),
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Add Images...", mw.onAddImages),
		fyne.NewMenuItem("Remove Image", mw.onRemoveImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Session...", mw.onOpenSession),
		fyne.NewMenuItem("Save Session", mw.onSaveSession),
		fyne.NewMenuItem("Save Session As...", mw.onSaveSessionAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export CSV...", mw.onExportCSV),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	measureMenu := fyne.NewMenu("Measure",
		fyne.NewMenuItem("Calibrate (c)", func() { mw.session.StartTool(measure.KindCalibration) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Distance (d)", func() { mw.session.StartTool(measure.KindDistance) }),
		fyne.NewMenuItem("Caliper (l)", func() { mw.session.StartTool(measure.KindCaliper) }),
		fyne.NewMenuItem("Polyline (p)", func() { mw.session.StartTool(measure.KindPolyline) }),
		fyne.NewMenuItem("Spline (s)", func() { mw.session.StartTool(measure.KindSpline) }),
		fyne.NewMenuItem("Circle (o)", func() { mw.session.StartTool(measure.KindCircle) }),
		fyne.NewMenuItem("Angle (a)", func() { mw.session.StartTool(measure.KindAngle) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Edit Points (e)", mw.session.StartEdit),
		fyne.NewMenuItem("Copy Measurement (space)", mw.session.StartCopy),
		fyne.NewMenuItem("Delete Measurement (del)", mw.session.StartDelete),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Cancel (esc)", mw.session.Cancel),
	)

	mw.fitToWindowItem = fyne.NewMenuItem("  Fit to Window", mw.onToggleFitToWindow)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		mw.fitToWindowItem,
		fyne.NewMenuItem("Actual Size", mw.onActualSize),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Zoom-Select Placement (z)", func() { mw.session.KeyDown("z") }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Next Image", mw.session.NextImage),
		fyne.NewMenuItem("Previous Image", mw.session.PrevImage),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, measureMenu, viewMenu, helpMenu))
}

// setupKeys routes key presses into the session's key bindings.
func (mw *MainWindow) setupKeys() {
	mw.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case ' ':
			mw.session.KeyDown("space")
		default:
			mw.session.KeyDown(string(r))
		}
	})
	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyEscape:
			mw.session.KeyDown("escape")
		case fyne.KeyDelete:
			mw.session.KeyDown("delete")
		case fyne.KeyBackspace:
			mw.session.KeyDown("backspace")
		case fyne.KeyUp:
			mw.session.KeyDown("up")
		case fyne.KeyDown:
			mw.session.KeyDown("down")
		}
	})
}

// setupEventHandlers registers for session events.
func (mw *MainWindow) setupEventHandlers() {
	mw.session.On(session.EventStatus, func(data interface{}) {
		if text, ok := data.(string); ok {
			mw.statusBar.SetText(text)
		}
	})
	mw.session.On(session.EventRedraw, func(interface{}) {
		mw.canvas.Refresh()
	})
	mw.session.On(session.EventSelectionChanged, func(interface{}) {
		mw.canvas.Refresh()
	})
	mw.session.On(session.EventCalibrationPrompt, func(interface{}) {
		lastUnit := mw.prefs.String(prefKeyLastUnit)
		dialogs.ShowCalibration(mw.Window, lastUnit,
			func(length float64, unit string) {
				mw.prefs.SetString(prefKeyLastUnit, unit)
				mw.session.ConfirmCalibrationLength(length, unit)
			},
			mw.session.CancelCalibrationPrompt,
		)
	})
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir remembers the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefKeyLastDir, filepath.Dir(filePath))
}

// Menu action handlers

func (mw *MainWindow) onAddImages() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		mw.session.AddImages([]string{path})
		mw.canvas.Refresh()
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(
		[]string{".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onRemoveImage() {
	if idx := mw.session.SelectedIndex(); idx >= 0 {
		mw.session.RemoveImages([]int{idx})
	}
}

func (mw *MainWindow) onOpenSession() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)

		f, err := project.Load(path)
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.session.FromPortable(f)
		mw.sessionPath = path
		mw.SetTitle("Measure - " + filepath.Base(path))
		mw.canvas.Refresh()
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{projectExt}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSaveSession() {
	if mw.sessionPath == "" {
		mw.onSaveSessionAs()
		return
	}
	if err := mw.session.ToPortable().Save(mw.sessionPath); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.statusBar.SetText("Session saved: " + mw.sessionPath)
}

func (mw *MainWindow) onSaveSessionAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != projectExt {
			path += projectExt
		}
		mw.saveLastDir(path)
		if err := mw.session.ToPortable().Save(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.sessionPath = path
		mw.SetTitle("Measure - " + filepath.Base(path))
		mw.statusBar.SetText("Session saved: " + path)
	}, mw.Window)
	fd.SetFileName("session" + projectExt)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExportCSV() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != ".csv" {
			path += ".csv"
		}
		mw.saveLastDir(path)
		if err := writeCSV(path, mw.session.ExportTable()); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.statusBar.SetText("Exported: " + path)
	}, mw.Window)
	fd.SetFileName("measurements.csv")
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// writeCSV renders the measurement table as a CSV file.
func writeCSV(path string, rows []session.TableRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"image", "index", "kind", "value_px", "value", "unit", "filename"}); err != nil {
		return err
	}
	for _, row := range rows {
		rec := []string{
			strconv.Itoa(row.ImageIndex + 1),
			strconv.Itoa(row.MeasurementIndex + 1),
			row.Kind.String(),
			strconv.FormatFloat(row.ValuePixels, 'f', -1, 64),
			strconv.FormatFloat(row.ValueUnits, 'f', -1, 64),
			row.Unit,
			row.Filename,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
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
	enabled := !mw.canvas.GetFitToWindow()
	mw.canvas.SetFitToWindow(enabled)

	if enabled {
		mw.fitToWindowItem.Label = "✓ Fit to Window"
	} else {
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) onActualSize() {
	mw.disableFitToWindow()
	mw.canvas.SetZoom(1.0)
}

func (mw *MainWindow) disableFitToWindow() {
	if mw.canvas.GetFitToWindow() {
		mw.canvas.SetFitToWindow(false)
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Measure",
		fmt.Sprintf("Measure v%s\n\n"+
			"Point-and-click measurement on raster images:\n"+
			"calibrate against a known length, then measure\n"+
			"distances, paths, circles, and angles.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

// SavePreferences flushes the preference file to disk.
func (mw *MainWindow) SavePreferences() {
	if err := mw.prefs.Save(); err != nil {
		mw.statusBar.SetText("Saving preferences failed: " + err.Error())
	}
}
