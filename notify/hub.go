package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/casualjim/quill/pkg/slogx"
	"github.com/fogfish/opts"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds how long a single listener may take per event.
const DefaultTimeout = 3 * time.Second

// ErrListenerTimeout is logged for listeners that outlive their timeout.
var ErrListenerTimeout = errors.New("listener timed out")

// Listener receives events.
type Listener interface {
	Handle(context.Context, Event) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(context.Context, Event) error

func (f ListenerFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Hub fans events out to its listeners. The zero value has no listeners and
// uses DefaultTimeout. A nil *Hub drops every event.
type Hub struct {
	timeout   time.Duration
	listeners []Listener
	mu        sync.RWMutex
}

var WithTimeout = opts.ForName[Hub, time.Duration]("timeout")

// WithListener registers listeners when the hub is created.
func WithListener(listeners ...Listener) opts.Option[Hub] {
	return opts.Type[Hub](func(h *Hub) error {
		for _, l := range listeners {
			if l == nil {
				return fmt.Errorf("listener is required")
			}
		}
		h.listeners = append(h.listeners, listeners...)
		return nil
	})
}

// NewHub creates a hub.
func NewHub(options ...opts.Option[Hub]) (*Hub, error) {
	h := &Hub{timeout: DefaultTimeout}
	if err := opts.Apply(h, options); err != nil {
		return nil, err
	}
	if h.timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", h.timeout)
	}
	return h, nil
}

// Register adds a listener.
func (h *Hub) Register(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// Notify delivers e to every listener and returns once each of them has
// completed or timed out.
func (h *Hub) Notify(ctx context.Context, e Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	listeners := make([]Listener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()

	timeout := h.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var g errgroup.Group
	for i, l := range listeners {
		g.Go(func() error {
			if err := dispatch(ctx, l, e, timeout); err != nil {
				slog.WarnContext(ctx, "listener failed",
					slog.String("event", e.Name),
					slog.Int("listener", i),
					slogx.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func dispatch(ctx context.Context, l Listener, e Event, timeout time.Duration) error {
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("listener panicked: %v", r)
			}
		}()
		done <- l.Handle(lctx, e)
	}()

	select {
	case err := <-done:
		return err
	case <-lctx.Done():
		if errors.Is(lctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrListenerTimeout, timeout)
		}
		return lctx.Err()
	}
}
