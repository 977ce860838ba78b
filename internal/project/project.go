// Package project provides the portable session file handling and persistence.
package project

import (
	"encoding/json"
	"os"
	"time"

	"measuretool/pkg/geometry"
)

// File represents a measurement session file (.measproj).
type File struct {
	Version  int       `json:"version"`
	Created  time.Time `json:"created,omitempty"`
	Modified time.Time `json:"modified,omitempty"`

	// Images in display order. Calibration source indices are 1-based
	// positions into this list; 0 means uncalibrated.
	Images []ImageRecord `json:"images"`
}

// ImageRecord is the persisted form of one loaded image.
type ImageRecord struct {
	Filename string `json:"filename"`

	// PixelSize holds (units per pixel, calibrated length, calibrated
	// length in pixels), or is empty for uncalibrated images.
	PixelSize []float64 `json:"pixel_size,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Cal       int       `json:"cal"`

	Measurements []MeasurementRecord `json:"measurements"`
}

// MeasurementRecord is the persisted form of one measurement. The pixel value
// is stored for readability but derived fields are recomputed on load.
type MeasurementRecord struct {
	Kind        string             `json:"kind"`
	Points      []geometry.Point2D `json:"points"`
	ValuePixels float64            `json:"value_px"`
}

// New creates an empty session file.
func New() *File {
	now := time.Now()
	return &File{Version: 1, Created: now, Modified: now}
}

// Load reads a session file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Save writes the session file to disk.
func (f *File) Save(path string) error {
	f.Modified = time.Now()
	if f.Created.IsZero() {
		f.Created = f.Modified
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
