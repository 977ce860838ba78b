// Package dialogs provides the modal dialogs of the measurement tool.
package dialogs

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// commonUnits are offered in the calibration unit selector. The entry is
// editable, so anything else can be typed in.
var commonUnits = []string{"mm", "cm", "m", "in", "mil", "um"}

// ShowCalibration opens the calibration prompt: the user enters the real
// length of the reference object they are about to click. onConfirm receives
// the parsed length and unit; onCancel fires when the dialog is dismissed.
//
// Point collection is suspended while the prompt is open, so the callbacks
// must route back into the session to resume it.
func ShowCalibration(win fyne.Window, lastUnit string, onConfirm func(length float64, unit string), onCancel func()) {
	lengthEntry := widget.NewEntry()
	lengthEntry.SetPlaceHolder("50.0")
	lengthEntry.Validator = func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		if v <= 0 {
			return strconv.ErrRange
		}
		return nil
	}

	unitEntry := widget.NewSelectEntry(commonUnits)
	if lastUnit != "" {
		unitEntry.SetText(lastUnit)
	} else {
		unitEntry.SetText("mm")
	}

	items := []*widget.FormItem{
		widget.NewFormItem("Known length", lengthEntry),
		widget.NewFormItem("Unit", unitEntry),
	}

	d := dialog.NewForm("Calibrate", "Start", "Cancel", items,
		func(confirmed bool) {
			if !confirmed {
				if onCancel != nil {
					onCancel()
				}
				return
			}
			length, err := strconv.ParseFloat(lengthEntry.Text, 64)
			if err != nil || length <= 0 {
				if onCancel != nil {
					onCancel()
				}
				return
			}
			unit := unitEntry.Text
			if unit == "" {
				unit = "mm"
			}
			if onConfirm != nil {
				onConfirm(length, unit)
			}
		}, win)
	d.Resize(fyne.NewSize(320, 180))
	d.Show()
}
