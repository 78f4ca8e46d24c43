package app

import (
	"context"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/karanbalaji/spatial-presenter/internal/capture"
)

const (
	// IdleFPS is the frame rate while nobody is moving in front of the camera.
	IdleFPS = 5
	// IdleTimeout is how long the scene must stay still before dropping to IdleFPS.
	IdleTimeout = 2 * time.Second
)

// runPipeline reads frames at the configured rate, skips still scenes, and
// feeds detected hands through the classifier into the controller. After
// IdleTimeout without motion the loop slows to IdleFPS until motion returns.
func (a *App) runPipeline(ctx context.Context, gate *capture.MotionGate) {
	activeInterval := time.Second / time.Duration(a.cfg.FPS)
	idleInterval := time.Second / time.Duration(IdleFPS)

	ticker := time.NewTicker(activeInterval)
	defer ticker.Stop()

	idle := false
	lastMotion := time.Now()
	readFailing, detectFailing := false, false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !a.GestureEnabled() {
			continue
		}

		frame, err := a.cfg.Camera.ReadFrame()
		if err != nil {
			if !readFailing {
				a.log.Error("read frame", slog.String("error", err.Error()))
				readFailing = true
			}
			continue
		}
		readFailing = false
		gestureFramesTotal.Inc()
		a.publishFrame(frame)

		moving, changed := gate.Allow(frame)
		if moving {
			lastMotion = time.Now()
			if idle {
				idle = false
				a.cfg.Camera.SetFPS(a.cfg.FPS)
				ticker.Reset(activeInterval)
				a.log.Debug("gesture pipeline active", slog.Float64("changed_pct", changed))
			}
		} else if !idle && IdleFPS < a.cfg.FPS && time.Since(lastMotion) > IdleTimeout {
			idle = true
			a.cfg.Camera.SetFPS(IdleFPS)
			ticker.Reset(idleInterval)
			a.log.Debug("gesture pipeline idle")
		}
		if !moving {
			frame.Close()
			continue
		}

		hands, err := a.cfg.Detector.Detect(frame)
		frame.Close()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !detectFailing {
				a.log.Error("detect hands", slog.String("error", err.Error()))
				a.updateStatus(func(s *Status) { s.GestureError = err.Error() })
				detectFailing = true
			}
			continue
		}
		if detectFailing {
			detectFailing = false
			a.updateStatus(func(s *Status) { s.GestureError = "" })
		}

		a.HandleGesture(a.classifier.Classify(hands))
	}
}

// publishFrame stores frame as the JPEG served to preview clients.
func (a *App) publishFrame(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.mu.Lock()
	a.frame = data
	a.frameSeq++
	a.mu.Unlock()
}
