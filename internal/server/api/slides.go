package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/karanbalaji/spatial-presenter/internal/deck"
	"github.com/karanbalaji/spatial-presenter/internal/ingest"
	"github.com/karanbalaji/spatial-presenter/internal/store"
)

// MaxUploadSize bounds a multipart upload request.
const MaxUploadSize = 256 << 20

// SlidesHandler handles /api/slides and /api/slides/{id}[/image|/thumbnail|/move].
type SlidesHandler struct {
	deck Deck
	log  *slog.Logger
}

// NewSlidesHandler creates a SlidesHandler over d.
func NewSlidesHandler(d Deck, logger *slog.Logger) *SlidesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlidesHandler{deck: d, log: logger}
}

type slideResponse struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	Filename  string `json:"filename"`
	MIMEType  string `json:"mime_type"`
	Kind      string `json:"kind"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	CreatedAt string `json:"created_at"`
}

type listSlidesResponse struct {
	Slides []slideResponse `json:"slides"`
	Count  int             `json:"count"`
}

type uploadError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type uploadResponse struct {
	Added  []slideResponse `json:"added"`
	Errors []uploadError   `json:"errors"`
}

type moveRequest struct {
	To *int `json:"to"`
}

func toSlideResponse(r deck.Record, index int) slideResponse {
	return slideResponse{
		ID:        r.ID,
		Index:     index,
		Filename:  r.Filename,
		MIMEType:  r.MIMEType,
		Kind:      r.Kind,
		Size:      r.Size,
		SizeHuman: humanize.Bytes(uint64(r.Size)),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

// ServeHTTP routes slide requests.
func (h *SlidesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/slides")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.upload(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	id, action, _ := strings.Cut(path, "/")
	switch {
	case action == "" && r.Method == http.MethodDelete:
		h.remove(w, r, id)
	case action == "image" && r.Method == http.MethodGet:
		h.image(w, r, id)
	case action == "thumbnail" && r.Method == http.MethodGet:
		h.thumbnail(w, r, id)
	case action == "move" && r.Method == http.MethodPost:
		h.move(w, r, id)
	case action == "" || action == "image" || action == "thumbnail" || action == "move":
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SlidesHandler) list(w http.ResponseWriter, r *http.Request) {
	records := h.deck.List()
	resp := listSlidesResponse{
		Slides: make([]slideResponse, 0, len(records)),
		Count:  len(records),
	}
	for i, rec := range records {
		resp.Slides = append(resp.Slides, toSlideResponse(rec, i))
	}
	writeJSON(w, http.StatusOK, resp)
}

// upload processes every file independently; one bad file does not reject the rest.
func (h *SlidesHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	resp := uploadResponse{Added: []slideResponse{}, Errors: []uploadError{}}
	for _, fh := range files {
		start, records, err := h.ingest(fh)
		if err != nil {
			h.log.Warn("upload rejected", slog.String("filename", fh.Filename), slog.String("error", err.Error()))
			resp.Errors = append(resp.Errors, uploadError{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		for i, rec := range records {
			resp.Added = append(resp.Added, toSlideResponse(rec, start+i))
		}
	}

	status := http.StatusCreated
	if len(resp.Added) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// ingest returns the deck index of the first added slide and the new records.
func (h *SlidesHandler) ingest(fh *multipart.FileHeader) (int, []deck.Record, error) {
	filename := fh.Filename
	f, err := fh.Open()
	if err != nil {
		return 0, nil, err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return 0, nil, fmt.Errorf("read upload: %w", err)
	}

	pages, err := ingest.Process(filename, data, func(done, total int) {
		h.log.Debug("rendering", slog.String("filename", filename), slog.Int("page", done), slog.Int("pages", total))
	})
	if err != nil {
		return 0, nil, err
	}
	return h.deck.Add(pages)
}

func (h *SlidesHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.deck.Clear(); err != nil {
		h.log.Error("clear deck", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to clear slides")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SlidesHandler) remove(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.deck.Remove(id); err != nil {
		h.storeError(w, err, "Failed to delete slide")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SlidesHandler) image(w http.ResponseWriter, r *http.Request, id string) {
	slide, err := h.deck.Data(id)
	if err != nil {
		h.storeError(w, err, "Failed to load slide")
		return
	}
	w.Header().Set("Content-Type", slide.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(slide.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(slide.Data)
}

func (h *SlidesHandler) thumbnail(w http.ResponseWriter, r *http.Request, id string) {
	width := ingest.DefaultThumbnailWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid width")
			return
		}
		width = n
	}

	slide, err := h.deck.Data(id)
	if err != nil {
		h.storeError(w, err, "Failed to load slide")
		return
	}
	page := ingest.Page{Filename: slide.Filename, MIMEType: slide.MIMEType, Data: slide.Data}
	data, err := ingest.Thumbnail(page, width)
	if err != nil {
		h.log.Error("thumbnail", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to render thumbnail")
		return
	}

	contentType := "image/png"
	if slide.MIMEType == "image/svg+xml" {
		contentType = slide.MIMEType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (h *SlidesHandler) move(w http.ResponseWriter, r *http.Request, id string) {
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.To == nil {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	from := -1
	for i, rec := range h.deck.List() {
		if rec.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		writeError(w, http.StatusNotFound, "Slide not found")
		return
	}

	if err := h.deck.Move(from, *req.To); err != nil {
		h.storeError(w, err, "Failed to move slide")
		return
	}
	h.list(w, r)
}

func (h *SlidesHandler) storeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Slide not found")
	case errors.Is(err, store.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, "Position out of range")
	default:
		h.log.Error(msg, slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, msg)
	}
}
