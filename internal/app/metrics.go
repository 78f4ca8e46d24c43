package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/karanbalaji/spatial-presenter/internal/nav"
)

var (
	intentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_intents_total",
		Help: "Navigation intents by source, intent and outcome.",
	}, []string{"source", "intent", "outcome"})

	slidesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_slides",
		Help: "Number of slides in the deck.",
	})

	speechRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spatial_speech_restarts_total",
		Help: "Times the speech listener was restarted.",
	})

	gestureFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spatial_gesture_frames_total",
		Help: "Camera frames read by the gesture pipeline.",
	})
)

// ObserveOutcome records one controller decision. It matches nav.Options.OnOutcome.
func ObserveOutcome(source nav.Source, intent nav.Intent, outcome nav.Outcome) {
	intentsTotal.WithLabelValues(string(source), intent.String(), string(outcome)).Inc()
}
