package app

import (
	"context"
	"log"
	"time"

	"github.com/ayusman/handsoff/internal/alert"
)

// runLoop classifies one frame per cycle and waits Interval between cycles
// until stopCh is closed.
func (a *App) runLoop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}

		a.cycle(ctx)
		timer.Reset(a.config.Interval)
	}
}

// cycle runs one capture-embed-predict-alert step. Errors are logged and
// the cycle skipped.
func (a *App) cycle(ctx context.Context) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		log.Printf("Error reading frame: %v", err)
		return
	}
	vec, err := a.config.Extractor.Embed(ctx, frame)
	frame.Close()
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Error embedding frame: %v", err)
		}
		return
	}

	pred, err := a.classifier.Predict(vec, a.config.K)
	if err != nil {
		log.Printf("Error predicting: %v", err)
		return
	}

	touching := alert.Decide(pred, a.config.Threshold)
	if touching {
		a.alerter.Touching(ctx, pred.Label, pred.Confidences[pred.Label])
	} else {
		a.alerter.NotTouching()
	}
	a.state.SetTouched(touching)

	a.predMu.Lock()
	a.lastPred = &Prediction{
		Label:       pred.Label,
		Confidences: pred.Confidences,
		Touching:    touching,
		At:          time.Now(),
	}
	a.predMu.Unlock()
}
