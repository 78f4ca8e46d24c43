// Package main is a slide_changed hook that forwards navigation to the
// frontmost presentation app as arrow, Home and End key presses on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

type request struct {
	Event  string `json:"event"`
	Intent string `json:"intent"`
	Source string `json:"source"`
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// keyCodes are macOS virtual key codes.
var keyCodes = map[string]int{
	"next":     124, // right arrow
	"previous": 123, // left arrow
	"first":    115, // home
	"last":     119, // end
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		reply(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	reply(handle(req, runAppleScript))
}

func handle(req request, run func(string) error) error {
	if req.Event != "slide_changed" {
		return fmt.Errorf("unknown event: %s", req.Event)
	}
	// Keyboard-driven changes already reached the presentation app.
	if req.Source == "keyboard" || req.Source == "deck" {
		return nil
	}

	code, ok := keyCodes[req.Intent]
	if !ok {
		return fmt.Errorf("unmapped intent: %q", req.Intent)
	}
	return run(fmt.Sprintf(`tell application "System Events" to key code %d`, code))
}

func reply(err error) {
	resp := response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func runAppleScript(script string) error {
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
