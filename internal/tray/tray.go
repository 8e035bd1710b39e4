// Package tray provides a system tray control surface for handsoff.
package tray

import (
	"context"
	"log"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/state"
	"github.com/ayusman/handsoff/internal/training"
)

// Controller is the part of the application the tray menu drives.
type Controller interface {
	Train(ctx context.Context, label string) (training.Result, error)
	Run() error
	StopRun() error
	Clear(ctx context.Context) error
	State() *state.Machine
}

// Tray represents the system tray application.
type Tray struct {
	ctl        Controller
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuTrain1 *systray.MenuItem
	menuTrain2 *systray.MenuItem
	menuRun    *systray.MenuItem
	menuStop   *systray.MenuItem
	menuClear  *systray.MenuItem
}

// New creates a new Tray driving ctl.
func New(ctl Controller) *Tray {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tray{ctl: ctl, ctx: ctx, cancel: cancel}
}

// OnSettings sets the callback function to be called when the control panel menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called or the quit item is clicked.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Hands off")
	systray.SetTooltip("Hands off: face touch detection")

	t.menuStatus = systray.AddMenuItem("Starting...", "Current state")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuTrain1 = systray.AddMenuItem("Train: not touching", "Record examples without touching your face")
	t.menuTrain2 = systray.AddMenuItem("Train: touching", "Record examples while touching your face")
	t.menuRun = systray.AddMenuItem("Run", "Start watching")
	t.menuStop = systray.AddMenuItem("Stop", "Stop watching")
	t.menuClear = systray.AddMenuItem("Clear", "Forget all training examples")
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Control Panel...", "Open the control panel in a browser")
	menuQuit := systray.AddMenuItem("Quit", "Quit handsoff")

	updates, unsubscribe := t.ctl.State().Subscribe()
	go func() {
		for snap := range updates {
			t.apply(viewFor(snap))
		}
	}()

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-t.menuTrain1.ClickedCh:
				t.train(alert.NotTouchLabel)
			case <-t.menuTrain2.ClickedCh:
				t.train(alert.TouchLabel)
			case <-t.menuRun.ClickedCh:
				t.report("run", t.ctl.Run())
			case <-t.menuStop.ClickedCh:
				t.report("stop", t.ctl.StopRun())
			case <-t.menuClear.ClickedCh:
				t.report("clear", t.ctl.Clear(t.ctx))
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			case <-t.ctx.Done():
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.cancel()
}

// train runs a session in the background; the state subscription
// disables the controls until it finishes.
func (t *Tray) train(label string) {
	go func() {
		res, err := t.ctl.Train(t.ctx, label)
		if err != nil {
			t.report("train "+label, err)
			return
		}
		log.Printf("Trained %s: %d examples (%d total)", label, res.Examples, res.Total)
	}()
}

func (t *Tray) report(action string, err error) {
	if err == nil {
		return
	}
	log.Printf("Tray %s failed: %v", action, err)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuStatus != nil {
		t.menuStatus.SetTitle("Error: " + err.Error())
	}
}

func (t *Tray) apply(v view) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	systray.SetTitle(v.Title)
	t.menuStatus.SetTitle(v.Status)
	setEnabled(t.menuTrain1, v.Controls.Train1)
	setEnabled(t.menuTrain2, v.Controls.Train2)
	setEnabled(t.menuRun, v.Controls.Run)
	setEnabled(t.menuStop, v.Controls.Stop)
	setEnabled(t.menuClear, v.Controls.Clear)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	t.cancel()
	if callback != nil {
		callback()
	}

	systray.Quit()
}
