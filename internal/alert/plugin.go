package alert

import (
	"context"
	"encoding/json"

	"github.com/ayusman/handsoff/internal/plugin"
)

// NotifierPlugin is the plugin that delivers sounds and notifications.
const NotifierPlugin = "notifier"

// PluginPlayer plays the alert sound through the notifier plugin.
type PluginPlayer struct {
	manager  *plugin.Manager
	executor *plugin.Executor
	file     string
}

// NewPluginPlayer creates a player. An empty file uses the plugin's default sound.
func NewPluginPlayer(m *plugin.Manager, e *plugin.Executor, file string) *PluginPlayer {
	return &PluginPlayer{manager: m, executor: e, file: file}
}

// Play runs the play-sound action and returns when the plugin exits.
func (p *PluginPlayer) Play(ctx context.Context) error {
	params, err := json.Marshal(map[string]string{"file": p.file})
	if err != nil {
		return err
	}
	_, err = p.executor.Call(ctx, p.manager, NotifierPlugin, &plugin.Request{
		Action: "play-sound",
		Event:  TouchLabel,
		Params: params,
	})
	return err
}

// PluginNotifier raises notifications through the notifier plugin.
type PluginNotifier struct {
	manager  *plugin.Manager
	executor *plugin.Executor
}

// NewPluginNotifier creates a notifier.
func NewPluginNotifier(m *plugin.Manager, e *plugin.Executor) *PluginNotifier {
	return &PluginNotifier{manager: m, executor: e}
}

// Notify runs the notify action.
func (n *PluginNotifier) Notify(ctx context.Context, title, body string) error {
	params, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		return err
	}
	_, err = n.executor.Call(ctx, n.manager, NotifierPlugin, &plugin.Request{
		Action: "notify",
		Event:  TouchLabel,
		Params: params,
	})
	return err
}
