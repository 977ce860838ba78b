// Package app provides application-level plumbing shared by the entry point:
// the development hot reloader and the UI theme.
package app

import (
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// HotReloader watches the running binary for changes and invokes a callback
// when a newer build appears on disk. During development this lets the app
// offer a restart right after recompilation. It also ticks periodically so
// callers can piggyback housekeeping (preference autosave) on the same timer.
type HotReloader struct {
	execPath      string
	baseline      time.Time
	checkInterval time.Duration
	stopCh        chan struct{}

	onNewBinary func()
	onTick      func()
}

// NewHotReloader creates a reloader watching the current executable.
// Returns nil if the executable path cannot be determined.
func NewHotReloader(checkInterval time.Duration) *HotReloader {
	execPath, err := os.Executable()
	if err != nil {
		return nil
	}

	// go build may replace the file behind a symlink; watch the target.
	if realPath, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = realPath
	}

	info, err := os.Stat(execPath)
	if err != nil {
		return nil
	}

	return &HotReloader{
		execPath:      execPath,
		baseline:      info.ModTime(),
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
	}
}

// OnNewBinary sets the callback invoked when a newer binary is detected.
// The callback runs on a background goroutine; marshal UI work accordingly.
func (h *HotReloader) OnNewBinary(callback func()) {
	h.onNewBinary = callback
}

// OnTick sets a callback invoked on every check interval.
func (h *HotReloader) OnTick(callback func()) {
	h.onTick = callback
}

// Start begins watching in a background goroutine.
func (h *HotReloader) Start() {
	h.stopCh = make(chan struct{})
	go h.watchLoop()
}

// Stop stops the watcher goroutine.
func (h *HotReloader) Stop() {
	close(h.stopCh)
}

func (h *HotReloader) watchLoop() {
	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			if h.onTick != nil {
				h.onTick()
			}
			if h.newerBinary() && h.onNewBinary != nil {
				h.onNewBinary()
				// Fire once per baseline.
				return
			}
		}
	}
}

// newerBinary reports whether the binary changed since the baseline.
func (h *HotReloader) newerBinary() bool {
	info, err := os.Stat(h.execPath)
	if err != nil {
		return false
	}
	return info.ModTime().After(h.baseline)
}

// ExecPath returns the path to the watched executable.
func (h *HotReloader) ExecPath() string {
	return h.execPath
}

// Baseline returns the binary modification time the watcher compares against.
func (h *HotReloader) Baseline() time.Time {
	return h.baseline
}

// ResetBaseline adopts the current binary's modification time. Call when the
// user declines a restart so the prompt does not repeat.
func (h *HotReloader) ResetBaseline() {
	if info, err := os.Stat(h.execPath); err == nil {
		h.baseline = info.ModTime()
	}
}

// Restart replaces the current process with a fresh instance of the binary,
// preserving arguments and environment. Does not return on success.
func (h *HotReloader) Restart() error {
	return syscall.Exec(h.execPath, os.Args, os.Environ())
}
