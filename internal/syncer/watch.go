package syncer

import "sync"

// watchHub is a broadcast stream over keyed values. Each subscriber
// receives the latest value at subscribe time and a new value after every
// subsequent publish to its key. Channels are conflating: a slow subscriber
// sees the most recent value rather than blocking publishers.
type watchHub[T any] struct {
	mu   sync.Mutex
	subs map[string]map[int]chan T
	next int
}

func newWatchHub[T any]() *watchHub[T] {
	return &watchHub[T]{subs: make(map[string]map[int]chan T)}
}

// subscribe registers a new subscriber for key, primed with latest.
// The returned cancel func must be called to release the subscription.
func (h *watchHub[T]) subscribe(key string, latest T) (<-chan T, func()) {
	ch := make(chan T, 1)
	ch <- latest

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan T)
	}
	id := h.next
	h.next++
	h.subs[key][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[key]; ok {
			if _, live := set[id]; live {
				delete(set, id)
				close(ch)
				if len(set) == 0 {
					delete(h.subs, key)
				}
			}
		}
	}
	return ch, cancel
}

// publish delivers v to every subscriber of key.
func (h *watchHub[T]) publish(key string, v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[key] {
		// Drop the stale value if the subscriber has not drained it yet.
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
