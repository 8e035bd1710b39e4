// Package alert decides when a prediction means the user touched their face
// and delivers the resulting sound, notification and history record.
package alert

import (
	"context"
	"log"
	"sync"

	"github.com/ayusman/handsoff/internal/knn"
)

// Canonical labels.
const (
	NotTouchLabel = "not_touch"
	TouchLabel    = "touched"
)

// DefaultThreshold is the confidence a touch prediction must exceed.
const DefaultThreshold = 0.8

// Notification text.
const (
	Title = "Hands off!"
	Body  = "You just touched your face!"
)

// Decide reports whether pred counts as touching. Any class other than the
// first also counts, so a dataset trained under different label names
// still alerts on its second class.
func Decide(pred knn.Prediction, threshold float64) bool {
	if pred.Label != TouchLabel && pred.ClassIndex == 0 {
		return false
	}
	return pred.Confidences[pred.Label] > threshold
}

// SoundPlayer plays the alert sound. Play blocks until playback ends.
type SoundPlayer interface {
	Play(ctx context.Context) error
}

// Notifier raises a desktop notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Recorder stores fired alerts.
type Recorder interface {
	Record(ctx context.Context, label string, confidence float64) error
}

// Alerter owns the touched state and the sound debounce flag. A new alert
// fires only when no previous sound is still playing.
type Alerter struct {
	player   SoundPlayer
	notifier Notifier
	recorder Recorder

	mu      sync.Mutex
	touched bool
	playing bool
	wg      sync.WaitGroup
}

// New creates an Alerter. Nil player or notifier disable that channel.
func New(player SoundPlayer, notifier Notifier) *Alerter {
	if player == nil {
		player = NopPlayer{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Alerter{player: player, notifier: notifier}
}

// SetRecorder sets where fired alerts are recorded.
func (a *Alerter) SetRecorder(r Recorder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorder = r
}

// Touching marks the user as touching and fires an alert unless the last
// sound is still playing. It reports whether an alert fired.
func (a *Alerter) Touching(ctx context.Context, label string, confidence float64) bool {
	a.mu.Lock()
	a.touched = true
	if a.playing {
		a.mu.Unlock()
		return false
	}
	a.playing = true
	recorder := a.recorder
	a.mu.Unlock()

	// Delivery outlives the inference cycle that triggered it.
	bg := context.WithoutCancel(ctx)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.player.Play(bg); err != nil {
			log.Printf("Alert sound failed: %v", err)
		}
		a.mu.Lock()
		a.playing = false
		a.mu.Unlock()
	}()
	go func() {
		defer a.wg.Done()
		if err := a.notifier.Notify(bg, Title, Body); err != nil {
			log.Printf("Alert notification failed: %v", err)
		}
	}()

	if recorder != nil {
		if err := recorder.Record(bg, label, confidence); err != nil {
			log.Printf("Failed to record alert: %v", err)
		}
	}

	log.Printf("Face touch detected (%s, %.2f)", label, confidence)
	return true
}

// NotTouching clears the touched state.
func (a *Alerter) NotTouching() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched = false
}

// Reset clears the touched state.
func (a *Alerter) Reset() {
	a.NotTouching()
}

// Touched reports the current touched state.
func (a *Alerter) Touched() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.touched
}

// Playing reports whether an alert sound is in progress.
func (a *Alerter) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// Wait blocks until every in-flight sound and notification has finished.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

// NopPlayer plays nothing.
type NopPlayer struct{}

// Play returns immediately.
func (NopPlayer) Play(context.Context) error { return nil }

// NopNotifier shows nothing.
type NopNotifier struct{}

// Notify returns immediately.
func (NopNotifier) Notify(context.Context, string, string) error { return nil }
