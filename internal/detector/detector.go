// Package detector provides face presence detection for training frames.
package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect returns the bounding boxes of faces found in frame.
	// Returns an empty slice if no faces are detected.
	Detect(frame *gocv.Mat) ([]image.Rectangle, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// CascadePath is the Haar cascade XML file to load.
	CascadePath string

	// ScaleFactor is how much the image shrinks at each scale (default: 1.1).
	ScaleFactor float64

	// MinNeighbors is how many overlapping hits a candidate needs (default: 4).
	MinNeighbors int

	// MinSize is the smallest face side in pixels (default: 60).
	MinSize int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		CascadePath:  "haarcascade_frontalface_default.xml",
		ScaleFactor:  1.1,
		MinNeighbors: 4,
		MinSize:      60,
	}
}

// HasFace reports whether d finds at least one face in frame.
func HasFace(d Detector, frame *gocv.Mat) (bool, error) {
	faces, err := d.Detect(frame)
	if err != nil {
		return false, err
	}
	return len(faces) > 0, nil
}
