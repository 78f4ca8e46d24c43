package deck

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/karanbalaji/spatial-presenter/internal/ingest"
	"github.com/karanbalaji/spatial-presenter/internal/store"
)

func newTestDeck(t *testing.T) (*Deck, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "deck.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s.Slides(), s.Settings(), nil), s
}

func pages(names ...string) []ingest.Page {
	out := make([]ingest.Page, len(names))
	for i, n := range names {
		out[i] = ingest.Page{Filename: n, MIMEType: "image/png", Data: []byte(n)}
	}
	return out
}

func filenames(d *Deck) string {
	var parts []string
	for _, r := range d.List() {
		parts = append(parts, r.Filename)
	}
	return strings.Join(parts, ",")
}

func TestDeck_LoadSeedsDemo(t *testing.T) {
	d, s := newTestDeck(t)

	if err := d.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := filenames(d); got != "Welcome,How to Upload,Gestures,File Formats,Tips" {
		t.Errorf("demo deck = %q", got)
	}
	if _, err := s.Settings().Get(InitialisedKey); err != nil {
		t.Errorf("initialised flag not written: %v", err)
	}

	for _, r := range d.List() {
		if r.Kind != store.KindDemo || r.MIMEType != "image/svg+xml" {
			t.Errorf("demo slide %s has kind %q mime %q", r.ID, r.Kind, r.MIMEType)
		}
		sl, err := d.Data(r.ID)
		if err != nil {
			t.Fatalf("Data(%s) error = %v", r.ID, err)
		}
		if _, err := ingest.Process(r.Filename+".svg", sl.Data, nil); err != nil {
			t.Errorf("demo slide %s is not valid svg: %v", r.ID, err)
		}
	}
}

func TestDeck_LoadKeepsUserSlides(t *testing.T) {
	d, s := newTestDeck(t)
	d.Load()

	if _, _, err := d.Add(pages("a.png")); err != nil {
		t.Fatal(err)
	}

	reloaded := New(s.Slides(), s.Settings(), nil)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Len() != 6 {
		t.Errorf("Len() after reload = %d, want 6", reloaded.Len())
	}
}

func TestDeck_Add(t *testing.T) {
	d, _ := newTestDeck(t)
	d.Load()

	start, added, err := d.Add(pages("x.png", "y.png"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if start != 5 {
		t.Errorf("start = %d, want 5", start)
	}
	if len(added) != 2 {
		t.Fatalf("expected 2 records, got %d", len(added))
	}
	if !strings.HasPrefix(added[0].ID, "slide-") || added[0].ID == added[1].ID {
		t.Errorf("unexpected ids %q %q", added[0].ID, added[1].ID)
	}
	if added[0].Kind != store.KindUpload || added[0].Size != 5 {
		t.Errorf("record = %+v", added[0])
	}

	if d.Len() != 7 {
		t.Errorf("Len() = %d, want 7", d.Len())
	}
	last, ok := d.Get(6)
	if !ok || last.Filename != "y.png" {
		t.Errorf("Get(6) = %+v, %v", last, ok)
	}
	if _, ok := d.Get(7); ok {
		t.Error("Get(7) should be out of range")
	}

	if start, recs, err := d.Add(nil); err != nil || recs != nil || start != 7 {
		t.Errorf("Add(nil) = %d, %v, %v", start, recs, err)
	}
}

func TestDeck_RemoveAndMove(t *testing.T) {
	d, _ := newTestDeck(t)
	d.Load()
	d.Clear()
	_, added, _ := d.Add(pages("a", "b", "c"))

	if err := d.Move(0, 2); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if got := filenames(d); got != "b,c,a" {
		t.Errorf("after move = %q", got)
	}

	if err := d.Remove(added[2].ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := filenames(d); got != "a,b" {
		t.Errorf("after remove = %q", got)
	}

	if err := d.Remove("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Remove(missing) error = %v", err)
	}
	if err := d.Move(0, 5); !errors.Is(err, store.ErrOutOfRange) {
		t.Errorf("Move(0,5) error = %v", err)
	}
}

func TestDeck_ClearStartsNewSession(t *testing.T) {
	d, _ := newTestDeck(t)
	d.Load()
	d.Add(pages("a.png"))

	if err := d.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if d.Len() != 0 {
		t.Errorf("Len() after Clear = %d", d.Len())
	}

	if err := d.Load(); err != nil {
		t.Fatal(err)
	}
	if d.Len() != len(demoSlides) {
		t.Errorf("Len() after reload = %d, want demo deck", d.Len())
	}
}

func TestDeck_OnChange(t *testing.T) {
	d, _ := newTestDeck(t)

	var lens []int
	d.OnChange(func() { lens = append(lens, d.Len()) })

	d.Load()
	_, added, _ := d.Add(pages("a"))
	d.Move(0, 1)
	d.Remove(added[0].ID)
	d.Clear()

	want := []int{5, 6, 6, 5, 0}
	if len(lens) != len(want) {
		t.Fatalf("hook calls = %v, want %v", lens, want)
	}
	for i := range want {
		if lens[i] != want[i] {
			t.Errorf("call %d saw Len %d, want %d", i, lens[i], want[i])
		}
	}
}

func TestDeck_FailedMutationDoesNotNotify(t *testing.T) {
	d, _ := newTestDeck(t)
	d.Load()

	calls := 0
	d.OnChange(func() { calls++ })

	d.Remove("missing")
	d.Move(-1, 0)
	if calls != 0 {
		t.Errorf("hook called %d times on failed mutations", calls)
	}
}

func TestDeck_ConcurrentMutationsMatchStore(t *testing.T) {
	d, s := newTestDeck(t)
	d.Load()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Go(func() {
			for i := 0; i < 10; i++ {
				_, added, err := d.Add(pages(fmt.Sprintf("g%d-%d.png", g, i)))
				if err != nil {
					t.Errorf("Add() error = %v", err)
					return
				}
				if i%2 == 0 {
					if err := d.Remove(added[0].ID); err != nil {
						t.Errorf("Remove() error = %v", err)
					}
				}
			}
		})
		wg.Go(func() {
			for i := 0; i < 10; i++ {
				d.Move(0, d.Len()-1)
			}
		})
	}
	wg.Wait()

	rows, err := s.Slides().List()
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != len(rows) || d.Len() != 5+4*5 {
		t.Fatalf("Len() = %d, store has %d, want %d", d.Len(), len(rows), 5+4*5)
	}
	for i, r := range d.List() {
		if r.ID != rows[i].ID {
			t.Errorf("slide %d: cache %s, store %s", i, r.ID, rows[i].ID)
		}
	}
}

func TestEscape(t *testing.T) {
	if got := escape(`<Tom & "Jerry">`); got != "&lt;Tom &amp; &#34;Jerry&#34;&gt;" {
		t.Errorf("escape() = %q", got)
	}
}
