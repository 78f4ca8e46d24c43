package nav

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultWindow is the debounce window applied uniformly to every source.
const DefaultWindow = 300 * time.Millisecond

// Deck is the read-only view of the slide collection the controller bounds against.
type Deck interface {
	Len() int
}

// Transition describes an accepted index change.
type Transition struct {
	From   int       `json:"from"`
	To     int       `json:"to"`
	Count  int       `json:"count"`
	Source Source    `json:"source"`
	Intent Intent    `json:"-"`
	At     time.Time `json:"at"`
}

// State is a point-in-time view of the controller.
type State struct {
	Index  int
	Count  int
	Window time.Duration
}

// Outcome classifies what Apply did with an intent.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDebounced Outcome = "debounced"
	OutcomeBoundary  Outcome = "boundary"
	OutcomeEmptyDeck Outcome = "empty_deck"
	OutcomeInvalid   Outcome = "invalid"
)

// Options configures a Controller.
type Options struct {
	// Window is the minimum time between two accepted intents from the same source.
	Window time.Duration
	// Now returns the current time for the convenience entry points.
	Now func() time.Time
	// Logger receives debug output for rejected intents.
	Logger *slog.Logger
	// OnOutcome, if set, observes every Apply call.
	OnOutcome func(Source, Intent, Outcome)
}

// Controller is the sole authority over the current slide index.
type Controller struct {
	deck      Deck
	window    time.Duration
	now       func() time.Time
	log       *slog.Logger
	onOutcome func(Source, Intent, Outcome)

	mu           sync.Mutex
	index        int
	lastAccepted map[Source]time.Time
	listeners    map[int]func(Transition)
	nextID       int
}

// New creates a Controller bounded by deck. The initial index is 0.
func New(deck Deck, opts Options) *Controller {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Controller{
		deck:         deck,
		window:       opts.Window,
		now:          opts.Now,
		log:          opts.Logger,
		onOutcome:    opts.OnOutcome,
		lastAccepted: make(map[Source]time.Time),
		listeners:    make(map[int]func(Transition)),
	}
}

// Apply applies intent from source at time now. It returns the transition and
// true only when the index actually changed.
func (c *Controller) Apply(source Source, intent Intent, now time.Time) (Transition, bool) {
	c.mu.Lock()

	t, outcome := c.applyLocked(source, intent, now)
	var listeners []func(Transition)
	if outcome == OutcomeApplied {
		listeners = c.snapshotListeners()
	}
	c.mu.Unlock()

	if c.onOutcome != nil {
		c.onOutcome(source, intent, outcome)
	}
	if outcome != OutcomeApplied {
		c.log.Debug("intent rejected",
			slog.String("source", string(source)),
			slog.String("intent", intent.String()),
			slog.String("outcome", string(outcome)))
		return Transition{}, false
	}

	for _, fn := range listeners {
		fn(t)
	}
	return t, true
}

func (c *Controller) applyLocked(source Source, intent Intent, now time.Time) (Transition, Outcome) {
	if !intent.Valid() {
		return Transition{}, OutcomeInvalid
	}

	// Read the bound fresh: the collection may have changed since the last call.
	count := c.deck.Len()
	if count <= 0 {
		c.index = 0
		return Transition{}, OutcomeEmptyDeck
	}
	c.clampLocked(count)

	if last, ok := c.lastAccepted[source]; ok && now.Sub(last) < c.window {
		return Transition{}, OutcomeDebounced
	}

	from := c.index
	to := from
	switch intent {
	case Next:
		to = min(from+1, count-1)
	case Previous:
		to = max(from-1, 0)
	case First:
		to = 0
	case Last:
		to = count - 1
	}

	// Boundary hits leave the debounce timestamp alone.
	if to == from {
		return Transition{}, OutcomeBoundary
	}

	c.index = to
	c.lastAccepted[source] = now

	return Transition{
		From:   from,
		To:     to,
		Count:  count,
		Source: source,
		Intent: intent,
		At:     now,
	}, OutcomeApplied
}

// Next advances one slide.
func (c *Controller) Next(source Source) (Transition, bool) {
	return c.Apply(source, Next, c.now())
}

// Previous goes back one slide.
func (c *Controller) Previous(source Source) (Transition, bool) {
	return c.Apply(source, Previous, c.now())
}

// First jumps to the first slide.
func (c *Controller) First(source Source) (Transition, bool) {
	return c.Apply(source, First, c.now())
}

// Last jumps to the last slide.
func (c *Controller) Last(source Source) (Transition, bool) {
	return c.Apply(source, Last, c.now())
}

// Current returns the index clamped to the current deck length. It does not
// store the clamp; only Apply and Sync move the index.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return clamp(c.index, c.deck.Len())
}

// Snapshot returns the current index, deck length and window. Like Current it
// leaves the stored index alone, so a later Sync still reports the clamp.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.deck.Len()
	return State{Index: clamp(c.index, count), Count: max(count, 0), Window: c.window}
}

// Sync re-reads the deck length and clamps the index. Listeners are notified
// when the clamp moved the index.
func (c *Controller) Sync() (Transition, bool) {
	c.mu.Lock()

	count := c.deck.Len()
	from := c.index
	c.clampLocked(count)
	if c.index == from {
		c.mu.Unlock()
		return Transition{}, false
	}

	t := Transition{
		From:   from,
		To:     c.index,
		Count:  max(count, 0),
		Source: SourceDeck,
		Intent: None,
		At:     c.now(),
	}
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	return t, true
}

// Subscribe registers fn to be called after every index change.
// The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(Transition)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Window returns the debounce window.
func (c *Controller) Window() time.Duration {
	return c.window
}

func (c *Controller) clampLocked(count int) {
	c.index = clamp(c.index, count)
}

func clamp(index, count int) int {
	switch {
	case count <= 0:
		return 0
	case index >= count:
		return count - 1
	case index < 0:
		return 0
	}
	return index
}

func (c *Controller) snapshotListeners() []func(Transition) {
	fns := make([]func(Transition), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	return fns
}
