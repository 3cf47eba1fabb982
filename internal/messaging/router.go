package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/telkomfield/visitbot/internal/models"
)

// Handler processes one classified inbound event and returns the prompts
// to deliver back to the user. form.Stepper satisfies this.
type Handler interface {
	Handle(ctx context.Context, ev models.Event) ([]models.Prompt, error)
}

// Router consumes raw events from a transport Service, classifies text
// replies against the choices each user was last offered, and forwards
// the result to the form handler. It also implements form.Notifier so
// the stepper can push interim messages (e.g. a processing notice)
// before a slow gateway call.
type Router struct {
	svc     Service
	handler Handler
	// offered maps userID to the choices of the most recent prompt that
	// carried any, so numbered replies can be resolved to selection keys.
	offered map[string][]models.Choice
	mu      sync.RWMutex
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewRouter creates a Router wiring the given transport to the handler.
func NewRouter(svc Service, handler Handler) *Router {
	return &Router{
		svc:     svc,
		handler: handler,
		offered: make(map[string][]models.Choice),
		done:    make(chan struct{}),
	}
}

// SetHandler attaches the form handler after construction. The router
// doubles as the stepper's notifier, so one of the two has to be wired
// up late. Must be called before Start.
func (r *Router) SetHandler(handler Handler) {
	r.handler = handler
}

// Start begins consuming transport events until the context is cancelled
// or Stop is called.
func (r *Router) Start(ctx context.Context) error {
	if err := r.svc.Start(ctx); err != nil {
		return err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		slog.Debug("Router event loop starting")
		for {
			select {
			case ev, ok := <-r.svc.Events():
				if !ok {
					slog.Debug("Router event channel closed")
					return
				}
				r.dispatch(ctx, ev)
			case <-ctx.Done():
				slog.Debug("Router stopping due to context cancellation")
				return
			case <-r.done:
				slog.Debug("Router stopping due to Stop call")
				return
			}
		}
	}()
	slog.Info("Router started")
	return nil
}

// Stop shuts down the event loop and the underlying transport.
func (r *Router) Stop() error {
	close(r.done)
	err := r.svc.Stop()
	r.wg.Wait()
	slog.Info("Router stopped")
	return err
}

// Notify implements form.Notifier by rendering and sending a prompt
// immediately, out of band of the normal reply cycle.
func (r *Router) Notify(ctx context.Context, userID string, p models.Prompt) error {
	return r.svc.SendMessage(ctx, userID, RenderPrompt(p))
}

// dispatch classifies one event, runs the handler, and delivers the
// resulting prompts.
func (r *Router) dispatch(ctx context.Context, ev models.Event) {
	ev = r.classify(ev)

	prompts, err := r.handler.Handle(ctx, ev)
	if err != nil {
		slog.Error("Router handler error", "error", err, "userID", ev.UserID)
		return
	}

	r.remember(ev.UserID, prompts)

	for _, p := range prompts {
		if sendErr := r.svc.SendMessage(ctx, ev.UserID, RenderPrompt(p)); sendErr != nil {
			slog.Error("Router failed to send prompt", "error", sendErr, "userID", ev.UserID)
			return
		}
	}
	slog.Debug("Router dispatched event", "userID", ev.UserID, "kind", ev.Kind, "prompts", len(prompts))
}

// classify upgrades a raw text event to a selection event when the text
// is a navigation keyword or resolves against the last offered choices.
// Photo events and already-classified events pass through unchanged.
func (r *Router) classify(ev models.Event) models.Event {
	if ev.Kind != models.EventText {
		return ev
	}
	if trigger, ok := MatchTrigger(ev.Text); ok {
		ev.Kind = models.EventSelection
		ev.Selection = trigger
		ev.Text = ""
		return ev
	}
	r.mu.RLock()
	choices := r.offered[ev.UserID]
	r.mu.RUnlock()
	if key, ok := MatchChoice(ev.Text, choices); ok {
		ev.Kind = models.EventSelection
		ev.Selection = key
		ev.Text = ""
	}
	return ev
}

// remember records the choices from the latest prompt batch so the next
// reply can be matched against them. A batch with no choices clears the
// entry: a stale menu must not capture a free-text answer.
func (r *Router) remember(userID string, prompts []models.Prompt) {
	var latest []models.Choice
	for _, p := range prompts {
		if len(p.Choices) > 0 {
			latest = p.Choices
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if latest == nil {
		delete(r.offered, userID)
		return
	}
	r.offered[userID] = latest
}
