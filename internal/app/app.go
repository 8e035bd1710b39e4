// Package app wires the camera, models, classifier and alerter together and
// exposes the operations the control surfaces call.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/embedding"
	"github.com/ayusman/handsoff/internal/knn"
	"github.com/ayusman/handsoff/internal/persist"
	"github.com/ayusman/handsoff/internal/state"
	"github.com/ayusman/handsoff/internal/training"
)

// Inference defaults.
const (
	DefaultInterval = 200 * time.Millisecond
)

var (
	// ErrNotEnoughData is returned by Run when fewer than two labels are trained.
	ErrNotEnoughData = errors.New("not enough training data, train both labels first")
	// ErrBusy is returned when training and running would overlap.
	ErrBusy = errors.New("another operation is in progress")
)

// Labels accepted by Train.
var Labels = []string{alert.NotTouchLabel, alert.TouchLabel}

// Config holds the collaborators and tuning for an App.
type Config struct {
	Camera    capture.Camera
	Extractor embedding.Extractor
	// Detector enables the face check during training when set.
	Detector detector.Detector
	KV       persist.KV
	Alerter  *alert.Alerter

	Iterations int
	TrainDelay time.Duration
	K          int
	Threshold  float64
	Interval   time.Duration
}

// Prediction is the outcome of the latest inference cycle.
type Prediction struct {
	Label       string             `json:"label"`
	Confidences map[string]float64 `json:"confidences"`
	Touching    bool               `json:"touching"`
	At          time.Time          `json:"at"`
}

// Status is a point-in-time view of the application.
type Status struct {
	state.Snapshot
	Classes        map[string]int `json:"classes"`
	Running        bool           `json:"running"`
	Busy           bool           `json:"busy"`
	LastPrediction *Prediction    `json:"last_prediction,omitempty"`
}

// App is the face-touch detector. Training and running are mutually exclusive.
type App struct {
	config     Config
	classifier *knn.Classifier
	persist    *persist.Adapter
	trainer    *training.Trainer
	state      *state.Machine
	alerter    *alert.Alerter

	mu     sync.Mutex
	busy   bool
	stopCh chan struct{}
	done   chan struct{}

	// predMu guards lastPred. The loop must not take mu, which StopRun
	// holds while waiting for the loop to exit.
	predMu   sync.Mutex
	lastPred *Prediction
}

// New creates an App. Nothing touches the camera until Init.
func New(config Config) *App {
	if config.K <= 0 {
		config.K = knn.DefaultK
	}
	if config.Threshold <= 0 {
		config.Threshold = alert.DefaultThreshold
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Alerter == nil {
		config.Alerter = alert.New(nil, nil)
	}

	a := &App{
		config:     config,
		classifier: knn.New(Labels...),
		state:      state.New(alert.NotTouchLabel, alert.TouchLabel),
		alerter:    config.Alerter,
	}
	a.persist = persist.New(config.KV, a.classifier, config.Extractor.Dim())
	a.trainer = training.New(training.Config{
		Camera:     config.Camera,
		Extractor:  config.Extractor,
		Detector:   config.Detector,
		Classifier: a.classifier,
		Saver:      a.persist,
		Iterations: config.Iterations,
		Delay:      config.TrainDelay,
		Progress: func(label string, percent float64) {
			if err := a.state.Progress(percent); err != nil {
				log.Printf("Progress update rejected: %v", err)
			}
		},
	})
	return a
}

// Init opens the camera and restores the saved dataset. A camera failure
// is fatal. A corrupt dataset is discarded and ErrCorruptDataset returned,
// but the App is initialized and usable.
func (a *App) Init(ctx context.Context) error {
	if err := a.config.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	_, loadErr := a.persist.Load(ctx)
	if loadErr != nil && !errors.Is(loadErr, persist.ErrCorruptDataset) {
		return fmt.Errorf("load dataset: %w", loadErr)
	}

	for _, label := range a.classifier.Classes() {
		a.trainer.Session().MarkComplete(label)
	}

	if err := a.state.Initialized(a.classifier.Classes()); err != nil {
		return err
	}

	log.Printf("Initialized with %d trained classes", a.classifier.NumClasses())
	return loadErr
}

// Train captures examples for label, which must be one of Labels.
func (a *App) Train(ctx context.Context, label string) (training.Result, error) {
	if !validLabel(label) {
		return training.Result{}, fmt.Errorf("%w: %q", training.ErrInvalidLabel, label)
	}

	a.mu.Lock()
	if a.busy || a.stopCh != nil {
		a.mu.Unlock()
		return training.Result{}, ErrBusy
	}
	if err := a.state.TrainingStarted(label); err != nil {
		a.mu.Unlock()
		return training.Result{}, err
	}
	a.busy = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.busy = false
		a.mu.Unlock()
	}()

	res, err := a.trainer.Train(ctx, label)
	if finishErr := a.state.TrainingFinished(label, err == nil); finishErr != nil {
		log.Printf("Training finish rejected: %v", finishErr)
	}
	return res, err
}

// Run starts the inference loop. Calling Run while running is a no-op.
func (a *App) Run() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.busy {
		return ErrBusy
	}
	if a.classifier.NumClasses() < 2 {
		a.alerter.Reset()
		return ErrNotEnoughData
	}
	if err := a.state.RunStarted(); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runLoop(a.stopCh, a.done)

	log.Println("Inference loop started")
	return nil
}

// StopRun ends the inference loop and waits for the current cycle to finish.
// Calling StopRun when not running is a no-op.
func (a *App) StopRun() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked()
}

func (a *App) stopLocked() error {
	if a.stopCh == nil {
		return nil
	}

	close(a.stopCh)
	<-a.done
	a.stopCh = nil
	a.done = nil

	a.alerter.NotTouching()
	if err := a.state.RunStopped(); err != nil {
		return err
	}

	log.Println("Inference loop stopped")
	return nil
}

// Running reports whether the inference loop is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// Clear stops the loop, removes all examples from memory and storage and
// returns to the first training phase.
func (a *App) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.busy {
		return ErrBusy
	}
	if err := a.stopLocked(); err != nil {
		return err
	}

	a.predMu.Lock()
	a.lastPred = nil
	a.predMu.Unlock()

	a.trainer.Session().Reset()
	a.alerter.Reset()
	if err := a.persist.Clear(ctx); err != nil {
		return err
	}
	return a.state.Cleared()
}

// Close stops the loop, waits for pending alerts and releases the camera and models.
func (a *App) Close() error {
	if err := a.StopRun(); err != nil {
		log.Printf("Error stopping inference: %v", err)
	}
	a.alerter.Wait()

	var errs []error
	if err := a.config.Camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if err := a.config.Extractor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close extractor: %w", err))
	}
	if a.config.Detector != nil {
		if err := a.config.Detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Status returns the current application status.
func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	classes := make(map[string]int)
	for _, label := range a.classifier.Classes() {
		classes[label] = a.classifier.Count(label)
	}

	var last *Prediction
	a.predMu.Lock()
	if a.lastPred != nil {
		p := *a.lastPred
		last = &p
	}
	a.predMu.Unlock()

	return Status{
		Snapshot:       a.state.Snapshot(),
		Classes:        classes,
		Running:        a.stopCh != nil,
		Busy:           a.busy,
		LastPrediction: last,
	}
}

// State returns the application state machine.
func (a *App) State() *state.Machine {
	return a.state
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.config.Camera
}

// Classifier returns the example classifier.
func (a *App) Classifier() *knn.Classifier {
	return a.classifier
}

// Alerter returns the alerter.
func (a *App) Alerter() *alert.Alerter {
	return a.alerter
}

func validLabel(label string) bool {
	for _, l := range Labels {
		if l == label {
			return true
		}
	}
	return false
}
