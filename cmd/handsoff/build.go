package main

import (
	"errors"
	"fmt"
	"image/color"
	"log"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/detector"
	"github.com/ayusman/handsoff/internal/embedding"
	"github.com/ayusman/handsoff/internal/plugin"
	"github.com/ayusman/handsoff/internal/store"
)

// mockFrameColor is the synthetic camera's fill color.
var mockFrameColor = color.RGBA{R: 90, G: 120, B: 160, A: 255}

// components holds everything built from the config. Close releases the store;
// the app releases the camera, extractor and detector.
type components struct {
	store *store.Store
	app   *app.App
}

func (c *components) Close() error {
	return errors.Join(c.app.Close(), c.store.Close())
}

// build wires the application described by cfg. It does not open the camera.
func build(cfg *config.Config) (*components, error) {
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	var face detector.Detector
	if cfg.Face.Enabled && !cfg.Camera.Mock {
		face, err = newDetector(cfg)
		if errors.Is(err, detector.ErrCascadeNotFound) {
			log.Printf("Warning: %v; training will not check for a face", err)
			face, err = nil, nil
		}
		if err != nil {
			extractor.Close()
			st.Close()
			return nil, err
		}
	}

	a := app.New(app.Config{
		Camera:     newCamera(cfg),
		Extractor:  extractor,
		Detector:   face,
		KV:         st.KV(),
		Alerter:    newAlerter(cfg, st),
		Iterations: cfg.Training.Iterations,
		TrainDelay: cfg.Training.Delay,
		K:          cfg.Inference.K,
		Threshold:  cfg.Inference.Threshold,
		Interval:   cfg.Inference.Interval,
	})
	return &components{store: st, app: a}, nil
}

func newCamera(cfg *config.Config) capture.Camera {
	if cfg.Camera.Mock {
		log.Println("Using synthetic camera")
		return capture.NewSolidMockCamera(cfg.Camera.Width, cfg.Camera.Height, mockFrameColor)
	}
	return capture.NewCameraWithConfig(capture.Config{
		DeviceID: cfg.Camera.DeviceID,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.FPS,
	})
}

func newExtractor(cfg *config.Config) (embedding.Extractor, error) {
	switch cfg.Embedding.Backend {
	case config.BackendDNN:
		dnn := embedding.DefaultDNNConfig()
		dnn.ModelPath = cfg.Embedding.ModelPath
		dnn.Dim = cfg.Embedding.Dim
		e, err := embedding.NewDNNExtractor(dnn)
		if err != nil {
			return nil, fmt.Errorf("embedding model: %w", err)
		}
		return e, nil
	case config.BackendHTTP:
		return embedding.NewHTTPExtractor(cfg.Embedding.URL, cfg.Embedding.Dim), nil
	case config.BackendSubprocess:
		e, err := embedding.NewSubprocessExtractor(cfg.Embedding.Dim)
		if err != nil {
			return nil, fmt.Errorf("embedding service: %w", err)
		}
		return e, nil
	case config.BackendMock:
		return embedding.NewMockExtractor(cfg.Embedding.Dim), nil
	}
	return nil, fmt.Errorf("unknown embedding backend %q", cfg.Embedding.Backend)
}

// newDetector loads the face cascade. It returns detector.ErrCascadeNotFound
// when no cascade file can be located.
func newDetector(cfg *config.Config) (detector.Detector, error) {
	dc := detector.DefaultConfig()
	dc.CascadePath = cfg.Face.CascadePath

	d, err := detector.NewCascadeDetector(dc)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newAlerter(cfg *config.Config, st *store.Store) *alert.Alerter {
	plugins := plugin.NewManager(cfg.PluginDir)
	if err := plugins.Discover(); err != nil {
		log.Printf("Warning: plugin discovery failed: %v", err)
	}
	if _, err := plugins.Get(alert.NotifierPlugin); err != nil {
		log.Printf("Warning: %s plugin not installed in %s; alerts will be silent", alert.NotifierPlugin, cfg.PluginDir)
	}
	executor := plugin.NewExecutor(cfg.Alert.PluginTimeout)

	a := alert.New(
		alert.NewPluginPlayer(plugins, executor, cfg.Alert.SoundFile),
		alert.NewCooldownNotifier(alert.NewPluginNotifier(plugins, executor), cfg.Alert.Cooldown),
	)
	a.SetRecorder(alert.NewStoreRecorder(st))
	return a
}
