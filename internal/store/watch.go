package store

import (
	"context"
	"sync"
)

// changeHub fans a coalesced "something changed" signal out to subscribers.
// Each subscriber channel has a buffer of one; a signal arriving while one
// is already pending is dropped, so slow consumers never block writers.
type changeHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func (h *changeHub) subscribe() chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[chan struct{}]struct{})
	}
	ch := make(chan struct{}, 1)
	h.subs[ch] = struct{}{}
	return ch
}

func (h *changeHub) unsubscribe(ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, ch)
}

func (h *changeHub) broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel that receives a signal after every successful
// write to the store. Signals are coalesced. The subscription is dropped
// and the channel closed when ctx is cancelled.
func (s *Store) Watch(ctx context.Context) <-chan struct{} {
	ch := s.hub.subscribe()
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer s.hub.unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// notifyChanged is called by every mutating store method after commit.
func (s *Store) notifyChanged() {
	s.hub.broadcast()
}
