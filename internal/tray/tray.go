// Package tray provides the menu-bar controls of the presenter.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/karanbalaji/spatial-presenter/internal/nav"
)

// Tray is the menu-bar icon with a slide counter and navigation controls.
type Tray struct {
	onNavigate func(intent nav.Intent)
	onToggle   func(enabled bool)
	onOpen     func()
	onQuit     func()

	mu          sync.RWMutex
	enabled     bool
	index       int
	count       int
	lastGesture string

	menuCounter     *systray.MenuItem
	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a Tray with gestures enabled.
func New() *Tray {
	return &Tray{enabled: true}
}

// OnNavigate sets the callback for the Next, Previous, First and Last items.
func (t *Tray) OnNavigate(fn func(intent nav.Intent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNavigate = fn
}

// OnToggle sets the callback for the gestures toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for Open Presenter.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for Quit.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run blocks on the main thread until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Spatial")
	systray.SetTooltip("Spatial Presenter")

	t.mu.Lock()
	t.menuCounter = systray.AddMenuItem(counterLabel(t.index, t.count), "Current slide")
	t.menuCounter.Disable()
	systray.AddSeparator()

	next := systray.AddMenuItem("Next", "Next slide")
	prev := systray.AddMenuItem("Previous", "Previous slide")
	first := systray.AddMenuItem("First", "First slide")
	last := systray.AddMenuItem("Last", "Last slide")
	systray.AddSeparator()

	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle gesture control")
	t.menuLastGesture = systray.AddMenuItem(gestureLabel(t.lastGesture), "Last detected gesture")
	t.menuLastGesture.Disable()
	systray.AddSeparator()

	open := systray.AddMenuItem("Open Presenter", "Open the presenter in a browser")
	quit := systray.AddMenuItem("Quit", "Quit Spatial Presenter")
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-next.ClickedCh:
				t.handleNavigate(nav.Next)
			case <-prev.ClickedCh:
				t.handleNavigate(nav.Previous)
			case <-first.ClickedCh:
				t.handleNavigate(nav.First)
			case <-last.ClickedCh:
				t.handleNavigate(nav.Last)
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-open.ClickedCh:
				t.handleOpen()
			case <-quit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleNavigate(intent nav.Intent) {
	t.mu.RLock()
	callback := t.onNavigate
	t.mu.RUnlock()

	if callback != nil {
		callback(intent)
	}
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Outside the lock so the callback may call back into the tray.
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// SetSlide updates the counter item.
func (t *Tray) SetSlide(index, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.index, t.count = index, count
	if t.menuCounter != nil {
		t.menuCounter.SetTitle(counterLabel(index, count))
	}
}

// SetLastGesture updates the last gesture item.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastGesture = name
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(gestureLabel(name))
	}
}

// IsEnabled reports whether gestures are enabled.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// counterLabel renders a zero-based index as "3 / 10".
func counterLabel(index, count int) string {
	if count == 0 {
		return "No slides"
	}
	return fmt.Sprintf("%d / %d", index+1, count)
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Gestures enabled"
	}
	return "○ Gestures disabled"
}

func gestureLabel(name string) string {
	if name == "" {
		return "Last gesture: none"
	}
	return "Last gesture: " + name
}
