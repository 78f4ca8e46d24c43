// Package api provides the HTTP handlers behind the presenter view.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/karanbalaji/spatial-presenter/internal/app"
	"github.com/karanbalaji/spatial-presenter/internal/deck"
	"github.com/karanbalaji/spatial-presenter/internal/gesture"
	"github.com/karanbalaji/spatial-presenter/internal/ingest"
	"github.com/karanbalaji/spatial-presenter/internal/nav"
	"github.com/karanbalaji/spatial-presenter/internal/store"
)

// Deck is the slide collection served by the API.
type Deck interface {
	Len() int
	Get(i int) (deck.Record, bool)
	List() []deck.Record
	Data(id string) (*store.Slide, error)
	Add(pages []ingest.Page) (int, []deck.Record, error)
	Remove(id string) error
	Move(from, to int) error
	Clear() error
}

// Session routes input into the navigation controller.
type Session interface {
	Navigate(source nav.Source, intent nav.Intent) (nav.Transition, bool)
	HandleGesture(ev gesture.Event) (nav.Transition, bool)
	HandleTranscript(text string) (nav.Transition, bool)
	Controller() *nav.Controller
	Status() app.Status
}

type errorResponse struct {
	Error string `json:"error"`
}

// navResponse reports the result of an input.
type navResponse struct {
	Applied bool `json:"applied"`
	Index   int  `json:"index"`
	Count   int  `json:"count"`
}

func resultOf(s Session, applied bool) navResponse {
	st := s.Controller().Snapshot()
	return navResponse{Applied: applied, Index: st.Index, Count: st.Count}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON decodes a request body of at most 1 MiB into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}
