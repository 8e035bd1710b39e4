package state

import (
	"errors"
	"testing"
	"time"
)

var (
	onlyFirst  = []string{"not_touch"}
	onlySecond = []string{"touched"}
	both       = []string{"not_touch", "touched"}
)

func newMachine() *Machine {
	return New("not_touch", "touched")
}

func TestMachine_FullLifecycle(t *testing.T) {
	m := newMachine()
	steps := []struct {
		name  string
		event func() error
		want  Phase
	}{
		{"initialized without data", func() error { return m.Initialized(nil) }, AwaitingLabel1Training},
		{"train first label", func() error { return m.TrainingStarted("not_touch") }, AwaitingLabel1Training},
		{"first label done", func() error { return m.TrainingFinished("not_touch", true) }, AwaitingLabel2Training},
		{"train second label", func() error { return m.TrainingStarted("touched") }, AwaitingLabel2Training},
		{"second label done", func() error { return m.TrainingFinished("touched", true) }, ReadyIdle},
		{"run", m.RunStarted, Running},
		{"stop", m.RunStopped, ReadyIdle},
		{"clear", m.Cleared, AwaitingLabel1Training},
	}

	for _, s := range steps {
		if err := s.event(); err != nil {
			t.Fatalf("%s: unexpected error: %v", s.name, err)
		}
		if got := m.Phase(); got != s.want {
			t.Fatalf("%s: phase = %s, want %s", s.name, got, s.want)
		}
	}
}

func TestMachine_Initialized(t *testing.T) {
	tests := []struct {
		classes []string
		want    Phase
	}{
		{nil, AwaitingLabel1Training},
		{onlyFirst, AwaitingLabel2Training},
		{onlySecond, AwaitingLabel1Training},
		{both, ReadyIdle},
		{[]string{"touched", "extra", "not_touch"}, ReadyIdle},
	}

	for _, tt := range tests {
		m := newMachine()
		if err := m.Initialized(tt.classes); err != nil {
			t.Fatalf("classes=%v: %v", tt.classes, err)
		}
		if m.Phase() != tt.want {
			t.Errorf("classes=%v: phase = %s, want %s", tt.classes, m.Phase(), tt.want)
		}
	}
}

func TestMachine_SecondLabelTwiceNeverReady(t *testing.T) {
	m := newMachine()
	m.Initialized(nil)

	for _i := 0; _i < 2; _i++ {
		if err := m.TrainingStarted("touched"); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	}
	snap := m.Snapshot()
	if snap.Phase != AwaitingLabel1Training || snap.Controls.Run {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Machine)
		event func(m *Machine) error
	}{
		{"run before init", func(m *Machine) {}, (*Machine).RunStarted},
		{"train before init", func(m *Machine) {}, func(m *Machine) error { return m.TrainingStarted("x") }},
		{"clear before init", func(m *Machine) {}, (*Machine).Cleared},
		{"init twice", func(m *Machine) { m.Initialized(nil) }, func(m *Machine) error { return m.Initialized(nil) }},
		{"run without data", func(m *Machine) { m.Initialized(nil) }, (*Machine).RunStarted},
		{"run with one label", func(m *Machine) { m.Initialized(onlyFirst) }, (*Machine).RunStarted},
		{"stop when idle", func(m *Machine) { m.Initialized(both) }, (*Machine).RunStopped},
		{"run while running", func(m *Machine) { m.Initialized(both); m.RunStarted() }, (*Machine).RunStarted},
		{"train while running", func(m *Machine) { m.Initialized(both); m.RunStarted() }, func(m *Machine) error { return m.TrainingStarted("x") }},
		{"train while training", func(m *Machine) { m.Initialized(both); m.TrainingStarted("not_touch") }, func(m *Machine) error { return m.TrainingStarted("touched") }},
		{"finish other label", func(m *Machine) { m.Initialized(nil); m.TrainingStarted("not_touch") }, func(m *Machine) error { return m.TrainingFinished("touched", true) }},
		{"finish without start", func(m *Machine) { m.Initialized(nil) }, func(m *Machine) error { return m.TrainingFinished("not_touch", true) }},
		{"clear while training", func(m *Machine) { m.Initialized(nil); m.TrainingStarted("not_touch") }, (*Machine).Cleared},
		{"run while training", func(m *Machine) { m.Initialized(both); m.TrainingStarted("touched") }, (*Machine).RunStarted},
		{"second label first", func(m *Machine) { m.Initialized(nil) }, func(m *Machine) error { return m.TrainingStarted("touched") }},
		{"first label again", func(m *Machine) { m.Initialized(onlyFirst) }, func(m *Machine) error { return m.TrainingStarted("not_touch") }},
		{"unknown label when ready", func(m *Machine) { m.Initialized(both) }, func(m *Machine) error { return m.TrainingStarted("nose") }},
		{"progress when idle", func(m *Machine) { m.Initialized(both) }, func(m *Machine) error { return m.Progress(50) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine()
			tt.setup(m)
			before := m.Snapshot()

			err := tt.event(m)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if after := m.Snapshot(); after != before {
				t.Errorf("state changed on rejected event: %+v -> %+v", before, after)
			}
		})
	}
}

func TestMachine_FailedTrainingKeepsPhase(t *testing.T) {
	m := newMachine()
	m.Initialized(nil)
	m.TrainingStarted("not_touch")
	m.Progress(40)

	if err := m.TrainingFinished("not_touch", false); err != nil {
		t.Fatal(err)
	}
	snap := m.Snapshot()
	if snap.Phase != AwaitingLabel1Training || snap.Training != "" || snap.Progress != 0 {
		t.Errorf("unexpected snapshot after failed training: %+v", snap)
	}
}

func TestMachine_RetrainingWhenReady(t *testing.T) {
	m := newMachine()
	m.Initialized(both)

	if err := m.TrainingStarted("touched"); err != nil {
		t.Fatal(err)
	}
	if err := m.TrainingFinished("touched", true); err != nil {
		t.Fatal(err)
	}
	if m.Phase() != ReadyIdle {
		t.Errorf("expected to stay ReadyIdle, got %s", m.Phase())
	}
}

func TestMachine_Controls(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Machine)
		want  Controls
	}{
		{"initializing", func(m *Machine) {}, Controls{}},
		{"awaiting first", func(m *Machine) { m.Initialized(nil) }, Controls{Train1: true, Clear: true}},
		{"awaiting second", func(m *Machine) { m.Initialized(onlyFirst) }, Controls{Train2: true, Clear: true}},
		{"ready", func(m *Machine) { m.Initialized(both) }, Controls{Train1: true, Train2: true, Run: true, Clear: true}},
		{"running", func(m *Machine) { m.Initialized(both); m.RunStarted() }, Controls{Stop: true}},
		{"training", func(m *Machine) { m.Initialized(nil); m.TrainingStarted("not_touch") }, Controls{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine()
			tt.setup(m)
			if got := m.Snapshot().Controls; got != tt.want {
				t.Errorf("Controls = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMachine_TouchedResets(t *testing.T) {
	m := newMachine()
	m.Initialized(both)
	m.RunStarted()
	m.SetTouched(true)
	if !m.Snapshot().Touched {
		t.Fatal("expected touched")
	}

	m.RunStopped()
	if m.Snapshot().Touched {
		t.Error("expected stop to clear touched")
	}

	m.SetTouched(true)
	m.Cleared()
	if m.Snapshot().Touched {
		t.Error("expected clear to clear touched")
	}
}

func TestMachine_Subscribe(t *testing.T) {
	m := newMachine()
	ch, cancel := m.Subscribe()

	next := func() Snapshot {
		t.Helper()
		select {
		case s := <-ch:
			return s
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for snapshot")
			return Snapshot{}
		}
	}

	if s := next(); s.Phase != Initializing {
		t.Errorf("expected initial snapshot, got %+v", s)
	}

	m.Initialized(nil)
	if s := next(); s.Phase != AwaitingLabel1Training {
		t.Errorf("expected awaiting_label1_training, got %s", s.Phase)
	}

	m.TrainingStarted("not_touch")
	next()
	m.Progress(50)
	if s := next(); s.Progress != 50 || s.Training != "not_touch" {
		t.Errorf("unexpected progress snapshot %+v", s)
	}

	// Unchanged touched flag does not publish.
	m.SetTouched(false)
	select {
	case s := <-ch:
		t.Errorf("unexpected snapshot %+v", s)
	default:
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}

	// Publishing after cancel must not panic.
	m.Progress(60)
}
