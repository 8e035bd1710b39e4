// Package training captures labeled examples from the camera into the classifier.
package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/embedding"
	"github.com/ayusman/handsoff/internal/knn"
)

// Training defaults.
const (
	DefaultIterations = 50
	DefaultDelay      = 100 * time.Millisecond
)

var (
	// ErrNoFace aborts a session when a frame contains no face.
	ErrNoFace = errors.New("no face found, keep your face in view of the camera")
	// ErrInvalidLabel is returned for an empty label.
	ErrInvalidLabel = errors.New("invalid label")
)

// Saver persists the classifier dataset.
type Saver interface {
	Save(ctx context.Context) error
}

// ProgressFunc receives the completion percentage after every example.
type ProgressFunc func(label string, percent float64)

// Config holds the collaborators and tuning for a Trainer.
type Config struct {
	Camera     capture.Camera
	Extractor  embedding.Extractor
	Classifier *knn.Classifier
	Saver      Saver
	// Detector enables the per-frame face check when set.
	Detector   detector.Detector
	Iterations int
	Delay      time.Duration
	Progress   ProgressFunc
}

// Result summarizes a completed session.
type Result struct {
	Label    string        `json:"label"`
	Examples int           `json:"examples"`
	Total    int           `json:"total"` // examples stored under Label afterwards
	Duration time.Duration `json:"duration"`
}

// Trainer runs capture sessions. Sessions must not overlap.
type Trainer struct {
	config  Config
	session *Session
}

// New creates a Trainer, filling zero Iterations and Delay with defaults.
func New(config Config) *Trainer {
	if config.Iterations <= 0 {
		config.Iterations = DefaultIterations
	}
	if config.Delay < 0 {
		config.Delay = 0
	} else if config.Delay == 0 {
		config.Delay = DefaultDelay
	}
	return &Trainer{config: config, session: NewSession()}
}

// Session returns the per-label completion state.
func (t *Trainer) Session() *Session {
	return t.session
}

// Train captures Iterations examples under label. If any iteration fails
// the classifier is restored to its state before the call. On success the
// dataset is saved once and the label is marked complete; a save failure
// is returned but the examples stay in memory.
func (t *Trainer) Train(ctx context.Context, label string) (Result, error) {
	if label == "" {
		return Result{}, ErrInvalidLabel
	}

	start := time.Now()
	snapshot := t.config.Classifier.Dataset()
	n := t.config.Iterations

	log.Printf("Training %q: capturing %d examples", label, n)

	for i := 0; i < n; i++ {
		if err := t.step(ctx, label); err != nil {
			if restoreErr := t.config.Classifier.SetDataset(snapshot); restoreErr != nil {
				log.Printf("Failed to roll back classifier: %v", restoreErr)
			}
			log.Printf("Training %q aborted after %d examples: %v", label, i, err)
			return Result{}, err
		}

		if t.config.Progress != nil {
			t.config.Progress(label, float64(i+1)/float64(n)*100)
		}

		if i < n-1 {
			if err := t.wait(ctx); err != nil {
				if restoreErr := t.config.Classifier.SetDataset(snapshot); restoreErr != nil {
					log.Printf("Failed to roll back classifier: %v", restoreErr)
				}
				return Result{}, err
			}
		}
	}

	result := Result{
		Label:    label,
		Examples: n,
		Total:    t.config.Classifier.Count(label),
		Duration: time.Since(start),
	}

	if t.config.Saver != nil {
		if err := t.config.Saver.Save(ctx); err != nil {
			return result, fmt.Errorf("save dataset: %w", err)
		}
	}

	t.session.MarkComplete(label)
	log.Printf("Training %q complete: %d examples in %s", label, n, result.Duration.Round(time.Millisecond))
	return result, nil
}

func (t *Trainer) step(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := t.config.Camera.ReadFrame()
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	if t.config.Detector != nil {
		ok, err := detector.HasFace(t.config.Detector, frame)
		if err != nil {
			return fmt.Errorf("detect face: %w", err)
		}
		if !ok {
			return ErrNoFace
		}
	}

	vec, err := t.config.Extractor.Embed(ctx, frame)
	if err != nil {
		return fmt.Errorf("embed frame: %w", err)
	}

	if err := t.config.Classifier.AddExample(vec, label); err != nil {
		return fmt.Errorf("add example: %w", err)
	}
	return nil
}

func (t *Trainer) wait(ctx context.Context) error {
	timer := time.NewTimer(t.config.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
