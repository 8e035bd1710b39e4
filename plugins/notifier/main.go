// Package main provides the notifier plugin: desktop notifications and an
// alert sound, via osascript/afplay on macOS and notify-send/paplay on Linux.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type notifyParams struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type soundParams struct {
	File string `json:"file"`
}

// Default alert sounds per platform.
var defaultSounds = map[string]string{
	"darwin": "/System/Library/Sounds/Sosumi.aiff",
	"linux":  "/usr/share/sounds/freedesktop/stereo/bell.oga",
}

// run executes a command; replaced in tests.
var run = func(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func main() {
	json.NewEncoder(os.Stdout).Encode(handle(os.Stdin, runtime.GOOS))
}

func handle(r io.Reader, goos string) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	var err error
	switch req.Action {
	case "notify":
		err = notify(goos, req.Params)
	case "play-sound":
		err = playSound(goos, req.Params)
	default:
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}
	if err != nil {
		return Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
	}
	return Response{Success: true}
}

func notify(goos string, raw json.RawMessage) error {
	var p notifyParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("invalid params: %w", err)
		}
	}
	if p.Title == "" {
		return errors.New("title is required")
	}

	switch goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", quote(p.Body), quote(p.Title))
		return run("osascript", "-e", script)
	case "linux":
		return run("notify-send", "--urgency=critical", p.Title, p.Body)
	default:
		return fmt.Errorf("notifications not supported on %s", goos)
	}
}

func playSound(goos string, raw json.RawMessage) error {
	var p soundParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("invalid params: %w", err)
		}
	}
	if p.File == "" {
		p.File = defaultSounds[goos]
	}

	// Both players block until playback ends.
	switch goos {
	case "darwin":
		return run("afplay", p.File)
	case "linux":
		return run("paplay", p.File)
	default:
		return fmt.Errorf("sound not supported on %s", goos)
	}
}

// quote renders s as an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
