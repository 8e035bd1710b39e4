package tray

import (
	"fmt"

	"github.com/ayusman/handsoff/internal/state"
)

// view is what the menu shows for one state snapshot.
type view struct {
	Title    string
	Status   string
	Controls state.Controls
}

func viewFor(snap state.Snapshot) view {
	v := view{Title: "Hands off", Controls: snap.Controls}

	switch {
	case snap.Training != "":
		v.Status = fmt.Sprintf("Training %s... %.0f%%", snap.Training, snap.Progress)
	case snap.Phase == state.Initializing:
		v.Status = "Starting..."
	case snap.Phase == state.AwaitingLabel1Training:
		v.Status = "Step 1: train without touching"
	case snap.Phase == state.AwaitingLabel2Training:
		v.Status = "Step 2: train while touching"
	case snap.Phase == state.ReadyIdle:
		v.Status = "Ready"
	case snap.Phase == state.Running && snap.Touched:
		v.Status = "Hands off!"
		v.Title = "✋ Hands off!"
	case snap.Phase == state.Running:
		v.Status = "Watching"
		v.Title = "👀 Hands off"
	default:
		v.Status = string(snap.Phase)
	}
	return v
}
