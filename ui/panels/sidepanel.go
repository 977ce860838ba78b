// Package panels provides the side panel of the main window: the image list,
// the measurement list for the selected image, and the session settings.
package panels

import (
	"fmt"
	"path/filepath"
	"strconv"

	"measuretool/internal/session"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// SidePanel shows the loaded images and the selected image's measurements.
type SidePanel struct {
	session *session.Session
	window  fyne.Window

	imageList   *widget.List
	measList    *widget.List
	calLabel    *widget.Label
	tabs        *container.AppTabs
	root        fyne.CanvasObject
	suppressSel bool
}

// New creates the side panel bound to the session.
func New(s *session.Session) *SidePanel {
	sp := &SidePanel{session: s}
	sp.buildImageList()
	sp.buildMeasurementList()

	sp.calLabel = widget.NewLabel("uncalibrated")
	sp.calLabel.Wrapping = fyne.TextWrapWord

	imagesTab := container.NewBorder(
		nil,
		container.NewVBox(sp.calLabel, sp.imageButtons()),
		nil, nil,
		sp.imageList,
	)
	measureTab := container.NewBorder(nil, nil, nil, nil, sp.measList)

	sp.tabs = container.NewAppTabs(
		container.NewTabItem("Images", imagesTab),
		container.NewTabItem("Measurements", measureTab),
		container.NewTabItem("Settings", sp.settingsForm()),
	)
	sp.root = sp.tabs

	sp.subscribe()
	return sp
}

// SetWindow attaches the parent window for dialogs.
func (sp *SidePanel) SetWindow(win fyne.Window) {
	sp.window = win
}

// Container returns the panel for embedding in layouts.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.root
}

func (sp *SidePanel) buildImageList() {
	sp.imageList = widget.NewList(
		func() int { return len(sp.session.Images()) },
		func() fyne.CanvasObject {
			return widget.NewLabel("image name")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			images := sp.session.Images()
			if id < 0 || int(id) >= len(images) {
				return
			}
			im := images[id]
			text := filepath.Base(im.Filename)
			if im.Calibrated() {
				text += fmt.Sprintf("  [%s]", im.DisplayUnit())
			}
			obj.(*widget.Label).SetText(text)
		},
	)
	sp.imageList.OnSelected = func(id widget.ListItemID) {
		if sp.suppressSel {
			return
		}
		sp.session.SelectImage(int(id))
	}
}

func (sp *SidePanel) buildMeasurementList() {
	sp.measList = widget.NewList(
		func() int {
			im := sp.session.SelectedImage()
			if im == nil {
				return 0
			}
			return len(im.Measurements)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("kind = value")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			im := sp.session.SelectedImage()
			if im == nil || int(id) >= len(im.Measurements) {
				return
			}
			m := im.Measurements[id]
			obj.(*widget.Label).SetText(
				fmt.Sprintf("%s = %s", m.Kind, sp.session.FormatValue(im, m)))
		},
	)
}

func (sp *SidePanel) imageButtons() fyne.CanvasObject {
	removeBtn := widget.NewButton("Remove", func() {
		if idx := sp.session.SelectedIndex(); idx >= 0 {
			sp.session.RemoveImages([]int{idx})
		}
	})
	clearCalBtn := widget.NewButton("Clear Cal", func() {
		if idx := sp.session.SelectedIndex(); idx >= 0 {
			sp.session.ClearCalibration([]int{idx})
		}
	})
	applyCalBtn := widget.NewButton("Cal to All", func() {
		src := sp.session.SelectedIndex()
		if src < 0 {
			return
		}
		var targets []int
		for i := range sp.session.Images() {
			if i != src {
				targets = append(targets, i)
			}
		}
		if err := sp.session.ApplyCalibration(src, targets); err != nil && sp.window != nil {
			dialog.ShowError(err, sp.window)
		}
	})
	return container.NewHBox(removeBtn, clearCalBtn, applyCalBtn)
}

// settingsForm builds the session options editor.
func (sp *SidePanel) settingsForm() fyne.CanvasObject {
	opts := sp.session.Options()

	formatEntry := widget.NewEntry()
	formatEntry.SetText(opts.NumberFormat)

	maxPointsEntry := widget.NewEntry()
	maxPointsEntry.SetText(strconv.Itoa(opts.MaxPoints))

	splineEntry := widget.NewEntry()
	splineEntry.SetText(strconv.Itoa(opts.SplineSamples))

	autoEditCheck := widget.NewCheck("Edit after placing", nil)
	autoEditCheck.SetChecked(opts.AutoEdit)

	applyBtn := widget.NewButton("Apply", func() {
		o := sp.session.Options()
		o.NumberFormat = formatEntry.Text
		if n, err := strconv.Atoi(maxPointsEntry.Text); err == nil {
			o.MaxPoints = n
		}
		if n, err := strconv.Atoi(splineEntry.Text); err == nil {
			o.SplineSamples = n
		}
		o.AutoEdit = autoEditCheck.Checked
		if err := sp.session.SetOptions(o); err != nil && sp.window != nil {
			dialog.ShowError(err, sp.window)
		}
	})

	form := widget.NewForm(
		widget.NewFormItem("Number format", formatEntry),
		widget.NewFormItem("Max points (0 = off)", maxPointsEntry),
		widget.NewFormItem("Spline samples", splineEntry),
	)
	return container.NewVBox(form, autoEditCheck, applyBtn)
}

// subscribe keeps the lists in sync with the session.
func (sp *SidePanel) subscribe() {
	refreshAll := func(interface{}) {
		sp.imageList.Refresh()
		sp.measList.Refresh()
		sp.updateCalLabel()
	}
	sp.session.On(session.EventImageAdded, refreshAll)
	sp.session.On(session.EventImageRemoved, refreshAll)
	sp.session.On(session.EventMeasurementAdded, refreshAll)
	sp.session.On(session.EventMeasurementDeleted, refreshAll)
	sp.session.On(session.EventCalibrationChanged, refreshAll)
	sp.session.On(session.EventRedraw, func(interface{}) {
		sp.measList.Refresh()
	})
	sp.session.On(session.EventSelectionChanged, func(data interface{}) {
		idx, ok := data.(int)
		if !ok {
			return
		}
		sp.suppressSel = true
		if idx >= 0 {
			sp.imageList.Select(widget.ListItemID(idx))
		} else {
			sp.imageList.UnselectAll()
		}
		sp.suppressSel = false
		sp.measList.Refresh()
		sp.updateCalLabel()
	})
}

// updateCalLabel summarizes the selected image's calibration.
func (sp *SidePanel) updateCalLabel() {
	im := sp.session.SelectedImage()
	if im == nil {
		sp.calLabel.SetText("no image")
		return
	}
	if !im.Calibrated() {
		sp.calLabel.SetText("uncalibrated")
		return
	}
	ps := im.PixelSize
	source := "own calibration"
	if im.Cal != sp.session.SelectedIndex()+1 {
		source = fmt.Sprintf("from image %d", im.Cal)
	}
	sp.calLabel.SetText(fmt.Sprintf("%g %s per px (%s)",
		ps.UnitsPerPixel, im.Unit, source))
}
