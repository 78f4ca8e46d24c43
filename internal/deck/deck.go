// Package deck owns the ordered slide collection shared by every surface.
package deck

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/karanbalaji/spatial-presenter/internal/ingest"
	"github.com/karanbalaji/spatial-presenter/internal/store"
)

// InitialisedKey marks that the demo deck has been seeded for this session.
const InitialisedKey = "deck.initialised"

// SlideStore persists slides in order.
type SlideStore interface {
	Append(slides []*store.Slide) error
	List() ([]*store.Slide, error)
	Get(id string) (*store.Slide, error)
	Delete(id string) error
	Move(from, to int) error
	Clear() error
}

// SettingStore persists small string settings.
type SettingStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Record is slide metadata without image bytes.
type Record struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MIMEType  string    `json:"mime_type"`
	Kind      string    `json:"kind"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func recordOf(s *store.Slide) Record {
	return Record{
		ID:        s.ID,
		Filename:  s.Filename,
		MIMEType:  s.MIMEType,
		Kind:      s.Kind,
		Size:      s.Size,
		CreatedAt: s.CreatedAt,
	}
}

// Deck is an in-memory index over the persisted slides.
type Deck struct {
	repo     SlideStore
	settings SettingStore
	log      *slog.Logger

	// writeMu serialises mutations so the cache always matches the store.
	writeMu sync.Mutex

	mu     sync.RWMutex
	slides []Record

	hooksMu sync.Mutex
	hooks   []func()
}

// New creates an empty deck. Call Load before use.
func New(repo SlideStore, settings SettingStore, logger *slog.Logger) *Deck {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deck{repo: repo, settings: settings, log: logger}
}

// Load reads the deck from storage, seeding the demo slides if this is a
// fresh session.
func (d *Deck) Load() error {
	if err := d.load(); err != nil {
		return err
	}
	d.notify()
	return nil
}

func (d *Deck) load() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	_, err := d.settings.Get(InitialisedKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := d.seed(); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("read %s: %w", InitialisedKey, err)
	}

	return d.refresh()
}

func (d *Deck) seed() error {
	if err := d.repo.Clear(); err != nil {
		return fmt.Errorf("clear slides: %w", err)
	}
	demo := demoDeck()
	if err := d.repo.Append(demo); err != nil {
		return fmt.Errorf("seed demo slides: %w", err)
	}
	if err := d.settings.Set(InitialisedKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write %s: %w", InitialisedKey, err)
	}
	d.log.Info("seeded demo deck", slog.Int("slides", len(demo)))
	return nil
}

func (d *Deck) refresh() error {
	rows, err := d.repo.List()
	if err != nil {
		return fmt.Errorf("list slides: %w", err)
	}
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = recordOf(r)
	}

	d.mu.Lock()
	d.slides = records
	d.mu.Unlock()
	return nil
}

// Len returns the number of slides.
func (d *Deck) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.slides)
}

// Get returns the slide at index i.
func (d *Deck) Get(i int) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 || i >= len(d.slides) {
		return Record{}, false
	}
	return d.slides[i], true
}

// List returns a copy of every slide in order.
func (d *Deck) List() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Record(nil), d.slides...)
}

// Data loads a slide including its image bytes.
func (d *Deck) Data(id string) (*store.Slide, error) {
	return d.repo.Get(id)
}

// Add appends pages to the end of the deck. It returns the index of the
// first added slide.
func (d *Deck) Add(pages []ingest.Page) (int, []Record, error) {
	if len(pages) == 0 {
		return d.Len(), nil, nil
	}

	slides := make([]*store.Slide, len(pages))
	var total int64
	for i, p := range pages {
		slides[i] = &store.Slide{
			ID:       "slide-" + uuid.NewString(),
			Filename: p.Filename,
			MIMEType: p.MIMEType,
			Kind:     store.KindUpload,
			Data:     p.Data,
		}
		total += int64(len(p.Data))
	}
	added := make([]Record, len(slides))
	for i, s := range slides {
		added[i] = recordOf(s)
	}

	d.writeMu.Lock()
	if err := d.repo.Append(slides); err != nil {
		d.writeMu.Unlock()
		return 0, nil, fmt.Errorf("append slides: %w", err)
	}
	d.mu.Lock()
	start := len(d.slides)
	d.slides = append(d.slides, added...)
	d.mu.Unlock()
	d.writeMu.Unlock()

	d.log.Info("slides added",
		slog.Int("count", len(added)),
		slog.String("size", humanize.Bytes(uint64(total))))
	d.notify()
	return start, added, nil
}

// Remove deletes the slide with id.
func (d *Deck) Remove(id string) error {
	if err := d.mutate(func() error { return d.repo.Delete(id) }); err != nil {
		return err
	}
	d.notify()
	return nil
}

// Move reorders the slide at index from to index to.
func (d *Deck) Move(from, to int) error {
	if err := d.mutate(func() error { return d.repo.Move(from, to) }); err != nil {
		return err
	}
	d.notify()
	return nil
}

// mutate runs op and reloads the cache under writeMu.
func (d *Deck) mutate(op func() error) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if err := op(); err != nil {
		return err
	}
	return d.refresh()
}

// Clear starts a new session: every slide is removed and the next Load
// seeds the demo deck again.
func (d *Deck) Clear() error {
	d.writeMu.Lock()
	if err := d.repo.Clear(); err != nil {
		d.writeMu.Unlock()
		return fmt.Errorf("clear slides: %w", err)
	}
	d.mu.Lock()
	d.slides = nil
	d.mu.Unlock()
	err := d.settings.Delete(InitialisedKey)
	d.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("delete %s: %w", InitialisedKey, err)
	}

	d.log.Info("deck cleared")
	d.notify()
	return nil
}

// OnChange registers fn to run after every mutation.
func (d *Deck) OnChange(fn func()) {
	d.hooksMu.Lock()
	defer d.hooksMu.Unlock()
	d.hooks = append(d.hooks, fn)
}

func (d *Deck) notify() {
	d.hooksMu.Lock()
	hooks := append([]func(){}, d.hooks...)
	d.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
