package plugin

import (
	"context"
	"log/slog"

	"github.com/karanbalaji/spatial-presenter/internal/nav"
)

// queueSize bounds pending notifications. A burst beyond this is dropped.
const queueSize = 32

// Hooks delivers slide changes to subscribed plugins in order on a single
// worker goroutine, so a slow plugin never blocks navigation.
type Hooks struct {
	manager  *Manager
	executor *Executor
	log      *slog.Logger
	queue    chan Request
}

// NewHooks creates Hooks over the plugins known to manager.
func NewHooks(manager *Manager, executor *Executor, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		manager:  manager,
		executor: executor,
		log:      logger,
		queue:    make(chan Request, queueSize),
	}
}

// Notify enqueues a slide_changed event. It never blocks.
func (h *Hooks) Notify(t nav.Transition) {
	req := Request{
		Event:  EventSlideChanged,
		Intent: t.Intent.String(),
		Source: string(t.Source),
		From:   t.From,
		Index:  t.To,
		Count:  t.Count,
		At:     t.At,
	}
	select {
	case h.queue <- req:
	default:
		h.log.Warn("hook queue full, dropping slide change", slog.Int("index", t.To))
	}
}

// Run delivers queued events until ctx is cancelled.
func (h *Hooks) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.queue:
			h.deliver(ctx, req)
		}
	}
}

func (h *Hooks) deliver(ctx context.Context, req Request) {
	for _, p := range h.manager.Subscribers(req.Event) {
		resp, err := h.executor.Execute(ctx, p, &req)
		if err != nil {
			h.log.Error("hook failed", slog.String("plugin", p.Manifest.Name), slog.String("error", err.Error()))
			continue
		}
		if !resp.Success {
			h.log.Warn("hook reported failure", slog.String("plugin", p.Manifest.Name), slog.String("error", resp.Error))
		}
	}
}
