package detector

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// ErrCascadeNotFound is returned when no cascade file can be located.
var ErrCascadeNotFound = errors.New("face cascade file not found")

// CascadeDetector finds frontal faces with an OpenCV Haar cascade.
type CascadeDetector struct {
	config     Config
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
}

// NewCascadeDetector loads the cascade named in config.
func NewCascadeDetector(config Config) (*CascadeDetector, error) {
	def := DefaultConfig()
	if config.CascadePath == "" {
		config.CascadePath = def.CascadePath
	}
	if config.ScaleFactor <= 1 {
		config.ScaleFactor = def.ScaleFactor
	}
	if config.MinNeighbors <= 0 {
		config.MinNeighbors = def.MinNeighbors
	}
	if config.MinSize <= 0 {
		config.MinSize = def.MinSize
	}

	path := findCascade(config.CascadePath)
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrCascadeNotFound, config.CascadePath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("load face cascade %s", path)
	}
	config.CascadePath = path

	return &CascadeDetector{
		config:     config,
		classifier: classifier,
	}, nil
}

// Detect runs the cascade on an equalized grayscale copy of frame.
func (d *CascadeDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.EqualizeHist(gray, &gray)

	d.mu.Lock()
	defer d.mu.Unlock()

	minSize := image.Pt(d.config.MinSize, d.config.MinSize)
	return d.classifier.DetectMultiScaleWithParams(
		gray, d.config.ScaleFactor, d.config.MinNeighbors, 0, minSize, image.Point{},
	), nil
}

// Close releases the cascade.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

// findCascade resolves name against the working directory, the executable's
// directory and ~/.handsoff/models. Returns "" if none exists.
func findCascade(name string) string {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name
		}
		return ""
	}

	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		name,
		filepath.Join("models", name),
		filepath.Join(execDir, "models", name),
		filepath.Join(os.Getenv("HOME"), ".handsoff", "models", name),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
