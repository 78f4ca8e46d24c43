package api

import (
	"net/http"
	"strings"

	"github.com/karanbalaji/spatial-presenter/internal/gesture"
)

// InputHandler accepts classifier and speech results produced in the browser.
type InputHandler struct {
	session Session
}

// NewInputHandler creates an InputHandler.
func NewInputHandler(s Session) *InputHandler {
	return &InputHandler{session: s}
}

type voiceRequest struct {
	Transcript string `json:"transcript"`
}

// ServeHTTP handles POST /api/input/gesture and POST /api/input/voice.
func (h *InputHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/input"), "/")
	if kind != "gesture" && kind != "voice" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if kind == "gesture" {
		var ev gesture.Event
		if !decodeJSON(w, r, &ev) {
			return
		}
		if err := ev.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		_, applied := h.session.HandleGesture(ev)
		writeJSON(w, http.StatusOK, resultOf(h.session, applied))
		return
	}

	var req voiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	_, applied := h.session.HandleTranscript(strings.ToLower(strings.TrimSpace(req.Transcript)))
	writeJSON(w, http.StatusOK, resultOf(h.session, applied))
}
