// Package app wires the input pipelines to the navigation controller for one
// presenting session.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/karanbalaji/spatial-presenter/internal/capture"
	"github.com/karanbalaji/spatial-presenter/internal/command"
	"github.com/karanbalaji/spatial-presenter/internal/detector"
	"github.com/karanbalaji/spatial-presenter/internal/gesture"
	"github.com/karanbalaji/spatial-presenter/internal/nav"
	"github.com/karanbalaji/spatial-presenter/internal/plugin"
	"github.com/karanbalaji/spatial-presenter/internal/speech"
)

// Deck is the slide collection the session navigates.
type Deck interface {
	nav.Deck
	OnChange(fn func())
}

// Config holds the collaborators of an App. Camera, Detector, Speech and
// Hooks are optional; a missing one disables that feature.
type Config struct {
	Deck       Deck
	Controller *nav.Controller
	Camera     capture.Camera
	Detector   detector.Detector
	Classifier *gesture.Classifier
	Speech     speech.Recognizer
	Hooks      *plugin.Hooks

	FPS int
	// MotionThreshold is the percentage of changed pixels that wakes the
	// detector. Zero runs the detector on every frame.
	MotionThreshold float64
	MotionHold      int
	// SpeechBackoff overrides the restart delays of the speech supervisor.
	SpeechBackoff *backoff.ExponentialBackOff

	Logger *slog.Logger
	Now    func() time.Time
}

// Status reports which input pipelines are running.
type Status struct {
	GestureActive  bool   `json:"gesture_active"`
	GestureEnabled bool   `json:"gesture_enabled"`
	VoiceActive    bool   `json:"voice_active"`
	GestureError   string `json:"gesture_error,omitempty"`
	VoiceError     string `json:"voice_error,omitempty"`
	LastGesture    string `json:"last_gesture,omitempty"`
	LastTranscript string `json:"last_transcript,omitempty"`
	SpeechRestarts int64  `json:"speech_restarts"`
}

// App is a running presenter session.
type App struct {
	cfg        Config
	log        *slog.Logger
	classifier *gesture.Classifier
	gate       *capture.MotionGate

	mu         sync.RWMutex
	status     Status
	running    bool
	cancel     context.CancelFunc
	release    func() error
	unsub      func()
	supervisor *speech.Supervisor
	frame      []byte
	frameSeq   uint64
	watchers   map[int]func(Status)
	nextID     int

	deckOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an App. Gesture detection starts enabled.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.MotionHold <= 0 {
		cfg.MotionHold = capture.DefaultHoldFrames
	}

	a := &App{
		cfg:        cfg,
		log:        cfg.Logger,
		classifier: cfg.Classifier,
		watchers:   make(map[int]func(Status)),
	}
	if a.classifier == nil {
		a.classifier = gesture.NewClassifier()
	}
	a.status.GestureEnabled = true
	return a
}

// Start subscribes the session to the controller and launches the gesture
// pipeline, the speech supervisor and the hook worker. A camera or detector
// failure is recorded in Status and does not fail Start.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.Controller == nil {
		return errors.New("app: controller is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true

	a.unsub = a.cfg.Controller.Subscribe(a.onTransition)
	a.deckOnce.Do(func() {
		if a.cfg.Deck == nil {
			return
		}
		slidesGauge.Set(float64(a.cfg.Deck.Len()))
		a.cfg.Deck.OnChange(func() {
			slidesGauge.Set(float64(a.cfg.Deck.Len()))
			a.cfg.Controller.Sync()
		})
	})

	if a.cfg.Hooks != nil {
		a.wg.Go(func() { a.cfg.Hooks.Run(ctx) })
	}

	a.startGestureLocked(ctx)
	a.startSpeechLocked(ctx)

	a.log.Info("session started",
		slog.Bool("gesture", a.status.GestureActive),
		slog.Bool("voice", a.status.VoiceActive),
	)
	return nil
}

func (a *App) startGestureLocked(ctx context.Context) {
	switch {
	case a.cfg.Camera == nil:
		return
	case a.cfg.Detector == nil:
		a.status.GestureError = "no hand detector configured"
		a.log.Error("gesture control unavailable", slog.String("error", a.status.GestureError))
		return
	}

	a.cfg.Camera.SetFPS(a.cfg.FPS)
	release, err := capture.Acquire(a.cfg.Camera)
	if err != nil {
		a.status.GestureError = err.Error()
		a.log.Error("gesture control unavailable", slog.String("error", err.Error()))
		return
	}
	a.release = release
	a.gate = capture.NewMotionGate(a.cfg.MotionThreshold, a.cfg.MotionHold)
	a.status.GestureActive = true
	a.status.GestureError = ""

	gate := a.gate
	a.wg.Go(func() { a.runPipeline(ctx, gate) })
}

func (a *App) startSpeechLocked(ctx context.Context) {
	if a.cfg.Speech == nil {
		return
	}

	sup := &speech.Supervisor{
		Recognizer:   a.cfg.Speech,
		OnTranscript: func(text string) { a.HandleTranscript(text) },
		OnError:      a.onSpeechError,
		OnRestart: func(time.Duration) {
			speechRestartsTotal.Inc()
		},
		Backoff: a.cfg.SpeechBackoff,
		Logger:  a.log.With(slog.String("component", "speech")),
	}
	a.supervisor = sup
	a.status.VoiceActive = true
	a.status.VoiceError = ""

	a.wg.Go(func() {
		err := sup.Run(ctx)
		if errors.Is(err, speech.ErrUnsupported) {
			a.updateStatus(func(s *Status) { s.VoiceActive = false })
		}
	})
}

func (a *App) onSpeechError(err error) {
	a.updateStatus(func(s *Status) {
		s.VoiceError = err.Error()
		if errors.Is(err, speech.ErrUnsupported) {
			s.VoiceActive = false
		}
	})
}

func (a *App) onTransition(t nav.Transition) {
	if a.cfg.Hooks != nil {
		a.cfg.Hooks.Notify(t)
	}
	a.log.Info("slide changed",
		slog.Int("from", t.From),
		slog.Int("to", t.To),
		slog.Int("count", t.Count),
		slog.String("source", string(t.Source)),
	)
}

// Stop cancels the pipelines, closes the detector, waits for the pipelines and
// releases the camera. Calling Stop more than once is safe.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel, release, unsub, gate := a.cancel, a.release, a.unsub, a.gate
	a.cancel, a.release, a.unsub, a.gate = nil, nil, nil, nil
	a.mu.Unlock()

	cancel()
	// A Detect stuck on a hung service only returns once the detector is closed.
	if a.cfg.Detector != nil {
		if err := a.cfg.Detector.Close(); err != nil {
			a.log.Error("close detector", slog.String("error", err.Error()))
		}
	}
	a.wg.Wait()

	if unsub != nil {
		unsub()
	}
	if release != nil {
		if err := release(); err != nil {
			a.log.Error("close camera", slog.String("error", err.Error()))
		}
	}
	if gate != nil {
		gate.Close()
	}

	a.updateStatus(func(s *Status) {
		s.GestureActive = false
		s.VoiceActive = false
	})
	a.log.Info("session stopped")
}

// HandleGesture applies a classified gesture from any feed. Malformed events
// are dropped with a warning.
func (a *App) HandleGesture(ev gesture.Event) (nav.Transition, bool) {
	if err := ev.Validate(); err != nil {
		a.log.Warn("dropping malformed gesture", slog.String("label", ev.Label), slog.String("error", err.Error()))
		return nav.Transition{}, false
	}
	if !ev.Empty() {
		a.updateStatus(func(s *Status) {
			if s.LastGesture != ev.Label {
				s.LastGesture = ev.Label
			}
		})
	}

	intent := command.FromGesture(ev)
	if intent == nav.None {
		return nav.Transition{}, false
	}
	return a.cfg.Controller.Apply(nav.SourceGesture, intent, a.cfg.Now())
}

// HandleTranscript applies a finalised voice utterance.
func (a *App) HandleTranscript(text string) (nav.Transition, bool) {
	intent := command.FromTranscript(text)
	a.log.Debug("transcript", slog.String("text", text), slog.String("intent", intent.String()))
	a.updateStatus(func(s *Status) { s.LastTranscript = text })

	if intent == nav.None {
		return nav.Transition{}, false
	}
	return a.cfg.Controller.Apply(nav.SourceVoice, intent, a.cfg.Now())
}

// Navigate applies an intent from a keyboard or on-screen control.
func (a *App) Navigate(source nav.Source, intent nav.Intent) (nav.Transition, bool) {
	return a.cfg.Controller.Apply(source, intent, a.cfg.Now())
}

// Controller returns the navigation controller of the session.
func (a *App) Controller() *nav.Controller {
	return a.cfg.Controller
}

// SetGestureEnabled pauses or resumes the webcam pipeline without releasing the camera.
func (a *App) SetGestureEnabled(enabled bool) {
	a.updateStatus(func(s *Status) { s.GestureEnabled = enabled })
}

// GestureEnabled reports whether the webcam pipeline is processing frames.
func (a *App) GestureEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status.GestureEnabled
}

// Status returns a snapshot of the session state.
func (a *App) Status() Status {
	a.mu.RLock()
	s := a.status
	sup := a.supervisor
	a.mu.RUnlock()

	if sup != nil {
		s.SpeechRestarts = sup.Restarts()
	}
	return s
}

// WatchStatus registers fn to be called after every status change and
// returns a func that removes it.
func (a *App) WatchStatus(fn func(Status)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.watchers[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.watchers, id)
	}
}

// LatestFrame returns the most recent JPEG preview frame and its sequence
// number. The sequence is zero until the first frame arrives.
func (a *App) LatestFrame() ([]byte, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frame, a.frameSeq
}

func (a *App) updateStatus(fn func(*Status)) {
	a.mu.Lock()
	before := a.status
	fn(&a.status)
	after := a.status
	watchers := make([]func(Status), 0, len(a.watchers))
	for _, w := range a.watchers {
		watchers = append(watchers, w)
	}
	a.mu.Unlock()

	if before == after {
		return
	}
	for _, w := range watchers {
		w(after)
	}
}
