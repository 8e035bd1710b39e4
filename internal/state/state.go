// Package state tracks which phase the application is in and which
// controls are available to the user.
package state

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Phase is the main application state.
type Phase string

// Phases in the order a fresh install moves through them.
const (
	Initializing           Phase = "initializing"
	AwaitingLabel1Training Phase = "awaiting_label1_training"
	AwaitingLabel2Training Phase = "awaiting_label2_training"
	ReadyIdle              Phase = "ready_idle"
	Running                Phase = "running"
)

// ErrInvalidTransition is returned when an event is not allowed in the current phase.
var ErrInvalidTransition = errors.New("invalid state transition")

// Controls lists which user controls are currently usable.
type Controls struct {
	Train1 bool `json:"train1"`
	Train2 bool `json:"train2"`
	Run    bool `json:"run"`
	Stop   bool `json:"stop"`
	Clear  bool `json:"clear"`
}

// Snapshot is an immutable copy of the machine's state.
type Snapshot struct {
	Phase    Phase    `json:"phase"`
	Training string   `json:"training,omitempty"` // label being trained, if any
	Progress float64  `json:"progress"`           // training progress in percent
	Touched  bool     `json:"touched"`
	Controls Controls `json:"controls"`
}

// Machine is the application state machine. It is safe for concurrent use.
type Machine struct {
	first  string // label trained in AwaitingLabel1Training
	second string // label trained in AwaitingLabel2Training

	mu       sync.Mutex
	phase    Phase
	training string
	progress float64
	touched  bool

	subs   map[int]chan Snapshot
	nextID int
}

// New returns a machine in the Initializing phase. first and second are
// the labels the two training phases accept.
func New(first, second string) *Machine {
	return &Machine{
		first:  first,
		second: second,
		phase:  Initializing,
		subs:   make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:    m.phase,
		Training: m.training,
		Progress: m.progress,
		Touched:  m.touched,
		Controls: m.controlsLocked(),
	}
}

// controlsLocked gates the controls: nothing is usable
// while a label is training, the second button only appears once the first
// label is done, and run/stop swap places.
func (m *Machine) controlsLocked() Controls {
	if m.training != "" || m.phase == Initializing {
		return Controls{}
	}
	switch m.phase {
	case AwaitingLabel1Training:
		return Controls{Train1: true, Clear: true}
	case AwaitingLabel2Training:
		return Controls{Train2: true, Clear: true}
	case ReadyIdle:
		return Controls{Train1: true, Train2: true, Run: true, Clear: true}
	case Running:
		return Controls{Stop: true}
	}
	return Controls{}
}

// Initialized ends initialization. classes are the labels restored from
// storage; the phase resumes at the first label still missing.
func (m *Machine) Initialized(classes []string) error {
	return m.apply(func() error {
		if m.phase != Initializing {
			return m.invalid("initialized")
		}
		hasFirst := slices.Contains(classes, m.first)
		hasSecond := slices.Contains(classes, m.second)
		switch {
		case hasFirst && hasSecond:
			m.phase = ReadyIdle
		case hasFirst:
			m.phase = AwaitingLabel2Training
		default:
			m.phase = AwaitingLabel1Training
		}
		return nil
	})
}

// TrainingStarted sets the training sub-flag for label. Each awaiting phase
// accepts only its own label; ReadyIdle accepts either.
func (m *Machine) TrainingStarted(label string) error {
	return m.apply(func() error {
		if m.training != "" {
			return m.invalid("training started")
		}
		var ok bool
		switch m.phase {
		case AwaitingLabel1Training:
			ok = label == m.first
		case AwaitingLabel2Training:
			ok = label == m.second
		case ReadyIdle:
			ok = label == m.first || label == m.second
		}
		if !ok {
			return m.invalid(fmt.Sprintf("training %q started", label))
		}
		m.training = label
		m.progress = 0
		return nil
	})
}

// Progress records training progress in percent.
func (m *Machine) Progress(percent float64) error {
	return m.apply(func() error {
		if m.training == "" {
			return m.invalid("progress")
		}
		m.progress = percent
		return nil
	})
}

// TrainingFinished clears the training sub-flag. On success an awaiting
// phase advances to the next one; a failed session leaves it unchanged.
func (m *Machine) TrainingFinished(label string, ok bool) error {
	return m.apply(func() error {
		if m.training == "" || m.training != label {
			return m.invalid("training finished")
		}
		m.training = ""
		if !ok {
			m.progress = 0
			return nil
		}
		m.progress = 100
		switch m.phase {
		case AwaitingLabel1Training:
			m.phase = AwaitingLabel2Training
		case AwaitingLabel2Training:
			m.phase = ReadyIdle
		}
		return nil
	})
}

// RunStarted enters Running.
func (m *Machine) RunStarted() error {
	return m.apply(func() error {
		if m.phase != ReadyIdle || m.training != "" {
			return m.invalid("run started")
		}
		m.phase = Running
		return nil
	})
}

// RunStopped returns to ReadyIdle.
func (m *Machine) RunStopped() error {
	return m.apply(func() error {
		if m.phase != Running {
			return m.invalid("run stopped")
		}
		m.phase = ReadyIdle
		m.touched = false
		return nil
	})
}

// Cleared returns to AwaitingLabel1Training from any settled phase.
func (m *Machine) Cleared() error {
	return m.apply(func() error {
		if m.phase == Initializing || m.training != "" {
			return m.invalid("cleared")
		}
		m.phase = AwaitingLabel1Training
		m.progress = 0
		m.touched = false
		return nil
	})
}

// SetTouched updates the presentation-only touched flag. Subscribers are
// notified only when the value changes.
func (m *Machine) SetTouched(touched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touched == touched {
		return
	}
	m.touched = touched
	m.publishLocked()
}

func (m *Machine) apply(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	m.publishLocked()
	return nil
}

func (m *Machine) invalid(event string) error {
	if m.training != "" {
		return fmt.Errorf("%w: %s while %s (training %s)", ErrInvalidTransition, event, m.phase, m.training)
	}
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, event, m.phase)
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current state, and a function that ends the subscription.
// Slow subscribers miss intermediate snapshots rather than block the machine.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Snapshot, 8)
	ch <- m.snapshotLocked()
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *Machine) publishLocked() {
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
