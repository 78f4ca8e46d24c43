package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/karanbalaji/spatial-presenter/internal/nav"
)

// NavigationHandler handles /api/navigation and /api/navigation/{intent}.
type NavigationHandler struct {
	session Session
	deck    Deck
}

// NewNavigationHandler creates a NavigationHandler.
func NewNavigationHandler(s Session, d Deck) *NavigationHandler {
	return &NavigationHandler{session: s, deck: d}
}

type navigationState struct {
	Index    int            `json:"index"`
	Count    int            `json:"count"`
	WindowMS int64          `json:"window_ms"`
	Slide    *slideResponse `json:"slide"`
}

type navigateRequest struct {
	Source string `json:"source"`
	Intent string `json:"intent"`
}

// ServeHTTP routes navigation requests.
func (h *NavigationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/navigation")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.state(w, r)
		case http.MethodPost:
			h.navigate(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	intent, err := nav.ParseIntent(path)
	if err != nil || !intent.Valid() {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	source := nav.SourceManual
	if q := r.URL.Query().Get("source"); q != "" {
		if source, err = nav.ParseSource(q); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	_, applied := h.session.Navigate(source, intent)
	writeJSON(w, http.StatusOK, resultOf(h.session, applied))
}

func (h *NavigationHandler) state(w http.ResponseWriter, r *http.Request) {
	st := h.session.Controller().Snapshot()
	resp := navigationState{
		Index:    st.Index,
		Count:    st.Count,
		WindowMS: st.Window.Milliseconds(),
	}
	if rec, ok := h.deck.Get(st.Index); ok {
		slide := toSlideResponse(rec, st.Index)
		resp.Slide = &slide
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *NavigationHandler) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	source := nav.SourceManual
	if req.Source != "" {
		var err error
		if source, err = nav.ParseSource(req.Source); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	intent, _ := nav.ParseIntent(req.Intent)
	if !intent.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown intent %q", req.Intent))
		return
	}

	_, applied := h.session.Navigate(source, intent)
	writeJSON(w, http.StatusOK, resultOf(h.session, applied))
}
