package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/karanbalaji/spatial-presenter/internal/capture"
	"github.com/karanbalaji/spatial-presenter/internal/detector"
	"github.com/karanbalaji/spatial-presenter/internal/gesture"
	"github.com/karanbalaji/spatial-presenter/internal/nav"
	"github.com/karanbalaji/spatial-presenter/internal/plugin"
	"github.com/karanbalaji/spatial-presenter/internal/speech"
)

type fakeDeck struct {
	mu    sync.Mutex
	n     int
	hooks []func()
}

func (d *fakeDeck) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

func (d *fakeDeck) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

func (d *fakeDeck) set(n int) {
	d.mu.Lock()
	d.n = n
	hooks := append([]func(){}, d.hooks...)
	d.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, n int, mutate func(*Config)) (*App, *fakeDeck) {
	t.Helper()
	deck := &fakeDeck{n: n}
	cfg := Config{
		Deck:       deck,
		Controller: nav.New(deck, nav.Options{Logger: quietLogger(), OnOutcome: ObserveOutcome}),
		Logger:     quietLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a := New(cfg)
	t.Cleanup(a.Stop)
	return a, deck
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestApp_ManualOnly(t *testing.T) {
	a, _ := newTestApp(t, 3, nil)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st := a.Status()
	if st.GestureActive || st.VoiceActive || st.GestureError != "" {
		t.Errorf("Status() = %+v, want no pipelines", st)
	}

	if _, ok := a.Navigate(nav.SourceKeyboard, nav.Last); !ok {
		t.Fatal("Navigate(Last) should apply")
	}
	if got := a.Controller().Current(); got != 2 {
		t.Errorf("Current() = %d, want 2", got)
	}

	a.Stop()
	a.Stop()
}

func TestApp_StartRequiresController(t *testing.T) {
	a := New(Config{Logger: quietLogger()})
	if err := a.Start(context.Background()); err == nil {
		t.Error("expected error without a controller")
	}
}

func TestApp_HandleGesture(t *testing.T) {
	tests := []struct {
		name    string
		event   gesture.Event
		applied bool
		last    string
	}{
		{name: "open palm advances", event: gesture.Event{Label: gesture.LabelOpenPalm, Confidence: 0.9}, applied: true, last: gesture.LabelOpenPalm},
		{name: "low confidence is ignored", event: gesture.Event{Label: gesture.LabelOpenPalm, Confidence: 0.5}, last: gesture.LabelOpenPalm},
		{name: "unmapped label", event: gesture.Event{Label: "Thumb_Up", Confidence: 0.99}, last: "Thumb_Up"},
		{name: "empty event", event: gesture.Event{}},
		{name: "NaN confidence is dropped", event: gesture.Event{Label: gesture.LabelVictory, Confidence: math.NaN()}},
		{name: "confidence above one is dropped", event: gesture.Event{Label: gesture.LabelVictory, Confidence: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, 5, nil)

			tr, applied := a.HandleGesture(tt.event)
			if applied != tt.applied {
				t.Fatalf("applied = %v, want %v", applied, tt.applied)
			}
			if applied && (tr.Source != nav.SourceGesture || tr.To != 1) {
				t.Errorf("transition = %+v", tr)
			}
			if got := a.Status().LastGesture; got != tt.last {
				t.Errorf("LastGesture = %q, want %q", got, tt.last)
			}
		})
	}
}

func TestApp_HandleTranscript(t *testing.T) {
	a, _ := newTestApp(t, 5, nil)

	if _, ok := a.HandleTranscript("go to the last slide"); !ok {
		t.Fatal("transcript should apply")
	}
	if got := a.Controller().Current(); got != 4 {
		t.Errorf("Current() = %d, want 4", got)
	}
	if _, ok := a.HandleTranscript("thank you everyone"); ok {
		t.Error("unrelated transcript should not apply")
	}
	if got := a.Status().LastTranscript; got != "thank you everyone" {
		t.Errorf("LastTranscript = %q", got)
	}
}

func TestApp_DeckChangeSyncsController(t *testing.T) {
	a, deck := newTestApp(t, 5, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var got []nav.Transition
	var mu sync.Mutex
	a.Controller().Subscribe(func(tr nav.Transition) {
		mu.Lock()
		got = append(got, tr)
		mu.Unlock()
	})

	a.Navigate(nav.SourceManual, nav.Last)
	deck.set(2)

	if cur := a.Controller().Current(); cur != 1 {
		t.Errorf("Current() = %d, want 1", cur)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[1].Source != nav.SourceDeck {
		t.Errorf("transitions = %+v, want a deck clamp", got)
	}
}

func TestApp_CameraFailureKeepsManualNavigation(t *testing.T) {
	cam := capture.NewMockCamera(nil, false)
	cam.FailOpen(errors.New("no webcam"))
	det := detector.NewMockDetector()

	a, _ := newTestApp(t, 3, func(c *Config) {
		c.Camera = cam
		c.Detector = det
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st := a.Status()
	if st.GestureActive || !strings.Contains(st.GestureError, "no webcam") {
		t.Errorf("Status() = %+v", st)
	}
	if _, ok := a.Navigate(nav.SourceManual, nav.Next); !ok {
		t.Error("manual navigation should still work")
	}
}

func TestApp_GesturePipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	det := detector.NewMockDetector()
	det.SetHands([]detector.Hand{detector.OpenPalm()})

	a, _ := newTestApp(t, 3, func(c *Config) {
		c.Camera = cam
		c.Detector = det
		c.FPS = 50
	})
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !a.Status().GestureActive {
		t.Fatalf("Status() = %+v, want gesture active", a.Status())
	}

	waitFor(t, "open palm to reach the last slide", func() bool { return a.Controller().Current() == 2 })
	if got := a.Status().LastGesture; got != gesture.LabelOpenPalm {
		t.Errorf("LastGesture = %q", got)
	}
	if _, seq := a.LatestFrame(); seq == 0 {
		t.Error("no preview frame published")
	}

	a.SetGestureEnabled(false)
	calls := det.Calls()
	time.Sleep(100 * time.Millisecond)
	if det.Calls() > calls+1 {
		t.Errorf("detector called %d times while disabled", det.Calls()-calls)
	}

	a.Stop()
	if opens, closes := cam.Counts(); opens != 1 || closes != 1 {
		t.Errorf("camera opens/closes = %d/%d, want 1/1", opens, closes)
	}
	if !det.Closed() {
		t.Error("detector not closed")
	}
}

func TestApp_DetectorErrorRecorded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	det := detector.NewMockDetector()
	det.SetError(errors.New("recognizer exited"))

	a, _ := newTestApp(t, 3, func(c *Config) {
		c.Camera = capture.NewMockCamera([]*gocv.Mat{&frame}, true)
		c.Detector = det
		c.FPS = 50
	})
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "detector error in status", func() bool { return a.Status().GestureError != "" })

	det.SetError(nil)
	waitFor(t, "detector error to clear", func() bool { return a.Status().GestureError == "" })
}

// hungDetector blocks in Detect until Close, like a recognizer service that
// stopped answering.
type hungDetector struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	enter   sync.Once
}

func newHungDetector() *hungDetector {
	return &hungDetector{entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *hungDetector) Detect(*gocv.Mat) ([]detector.Hand, error) {
	d.enter.Do(func() { close(d.entered) })
	<-d.release
	return nil, errors.New("recognizer killed")
}

func (d *hungDetector) Close() error {
	d.once.Do(func() { close(d.release) })
	return nil
}

func TestApp_StopInterruptsHungDetector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	det := newHungDetector()

	a, _ := newTestApp(t, 3, func(c *Config) {
		c.Camera = cam
		c.Detector = det
		c.FPS = 50
	})
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-det.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline never reached the detector")
	}

	done := make(chan struct{})
	go func() {
		a.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop() blocked on a hung detector")
	}

	if opens, closes := cam.Counts(); opens != 1 || closes != 1 {
		t.Errorf("camera opens/closes = %d/%d, want 1/1", opens, closes)
	}
	if st := a.Status(); st.GestureActive || st.GestureError != "" {
		t.Errorf("Status() after Stop = %+v", st)
	}
}

func TestApp_Speech(t *testing.T) {
	rec := speech.RecognizerFunc(func(ctx context.Context, emit func(string)) error {
		emit("next slide please")
		<-ctx.Done()
		return ctx.Err()
	})
	a, _ := newTestApp(t, 3, func(c *Config) { c.Speech = rec })

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "voice next", func() bool { return a.Controller().Current() == 1 })
	if !a.Status().VoiceActive {
		t.Error("VoiceActive should be true while listening")
	}

	done := make(chan struct{})
	go func() {
		a.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
}

func TestApp_SpeechUnsupported(t *testing.T) {
	rec := speech.RecognizerFunc(func(context.Context, func(string)) error {
		return speech.ErrUnsupported
	})
	a, _ := newTestApp(t, 3, func(c *Config) { c.Speech = rec })

	var mu sync.Mutex
	var seen []Status
	a.WatchStatus(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "voice to stop", func() bool {
		st := a.Status()
		return !st.VoiceActive && st.VoiceError != ""
	})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Error("status watcher was not called")
	}
}

func TestApp_HooksReceiveTransitions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	root := t.TempDir()
	dir := filepath.Join(root, "recorder")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","executable":"run.sh","events":["slide_changed"]}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >> requests.log\necho >> requests.log\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	mgr := plugin.NewManager(root, quietLogger())
	if err := mgr.Discover(); err != nil {
		t.Fatal(err)
	}
	hooks := plugin.NewHooks(mgr, plugin.NewExecutor(5*time.Second), quietLogger())

	a, _ := newTestApp(t, 3, func(c *Config) { c.Hooks = hooks })
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.Navigate(nav.SourceKeyboard, nav.Next)

	logPath := filepath.Join(dir, "requests.log")
	waitFor(t, "plugin to record the request", func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), `"index":1`)
	})

	data, _ := os.ReadFile(logPath)
	for _, want := range []string{`"intent":"next"`, `"source":"keyboard"`, `"count":3`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("request %s missing %s", data, want)
		}
	}
}
