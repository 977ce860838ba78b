// Package main provides the entry point for the measurement application.
package main

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"measuretool/internal/app"
	"measuretool/internal/project"
	"measuretool/internal/session"
	"measuretool/internal/version"
	"measuretool/ui/mainwindow"
	"measuretool/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

const appTitle = "Measure"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", appTitle, version.Version)

	fyneApp := fyneapp.NewWithID("measuretool")
	fyneApp.Settings().SetTheme(&app.MeasureTheme{})

	sess := session.New()
	appPrefs := prefs.Load()

	win := mainwindow.New(fyneApp, sess, appPrefs)
	win.SetTitle(appTitle)

	// Command line arguments: a session file or loose images.
	if len(os.Args) > 1 {
		if filepath.Ext(os.Args[1]) == ".measproj" {
			if f, err := project.Load(os.Args[1]); err != nil {
				log.Printf("Failed to load session %s: %v", os.Args[1], err)
			} else {
				sess.FromPortable(f)
			}
		} else {
			sess.AddImages(os.Args[1:])
		}
	}

	setupHotReload(win)

	win.ShowAndRun()
}

// setupHotReload watches the binary for a rebuild and offers a restart.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		log.Println("Hot reload: unable to determine executable path")
		return
	}

	log.Printf("Hot reload: watching %s (modified %s)",
		reloader.ExecPath(), reloader.Baseline().Format("15:04:05"))

	reloader.OnTick(func() {
		win.SavePreferences()
	})

	reloader.OnNewBinary(func() {
		log.Println("Hot reload: newer binary detected")
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated.\nRestart now?",
			func(restart bool) {
				if restart {
					log.Println("Hot reload: saving preferences before restart")
					win.SavePreferences()
					if err := reloader.Restart(); err != nil {
						log.Printf("Hot reload: restart failed: %v", err)
					}
					return
				}
				reloader.ResetBaseline()
				reloader.Start()
			}, win.Window)
	})

	reloader.Start()
}
