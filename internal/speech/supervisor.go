package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second

	// DefaultResetAfter is how long a listener must survive before the
	// restart delay drops back to its initial value.
	DefaultResetAfter = 30 * time.Second
)

// NewBackoff returns an exponential backoff between initial and max.
func NewBackoff(initial, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	if max > 0 {
		b.MaxInterval = max
	}
	b.Reset()
	return b
}

// Supervisor restarts a Recognizer whenever it terminates.
type Supervisor struct {
	Recognizer   Recognizer
	OnTranscript func(string)
	OnError      func(error)
	// OnRestart is called before each restart delay.
	OnRestart  func(delay time.Duration)
	Backoff    *backoff.ExponentialBackOff
	ResetAfter time.Duration
	Logger     *slog.Logger

	restarts atomic.Int64
}

// Run blocks until ctx is cancelled or the recognizer reports ErrUnsupported.
func (s *Supervisor) Run(ctx context.Context) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	b := s.Backoff
	if b == nil {
		b = NewBackoff(DefaultInitialDelay, DefaultMaxDelay)
	}
	resetAfter := s.ResetAfter
	if resetAfter <= 0 {
		resetAfter = DefaultResetAfter
	}
	emit := func(text string) {
		if s.OnTranscript != nil {
			s.OnTranscript(text)
		}
	}

	for {
		started := time.Now()
		err := s.Recognizer.Listen(ctx, emit)
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, ErrUnsupported) {
			log.Warn("voice control unavailable", slog.String("error", err.Error()))
			s.reportError(err)
			return err
		}
		if err != nil {
			log.Error("speech listener failed", slog.String("error", err.Error()))
			s.reportError(err)
		}

		if time.Since(started) >= resetAfter {
			b.Reset()
		}
		delay := b.NextBackOff()
		s.restarts.Add(1)
		if s.OnRestart != nil {
			s.OnRestart(delay)
		}
		log.Debug("restarting speech listener", slog.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Restarts returns how many times the listener has been restarted.
func (s *Supervisor) Restarts() int64 {
	return s.restarts.Load()
}

func (s *Supervisor) reportError(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}
