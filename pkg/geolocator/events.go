package geolocator

import (
	"sync"

	"github.com/go-drift/geolocator/pkg/platform"
)

// handlerList is a small ordered callback registry. Handlers are notified in
// registration order; removal is by entry identity, so unsubscribing one
// handler never disturbs the others.
type handlerList[T any] struct {
	mu      sync.Mutex
	entries []*handlerEntry[T]
}

type handlerEntry[T any] struct {
	fn func(T)
}

// add registers fn and returns a function that removes exactly this entry.
// The returned function is safe to call more than once.
func (l *handlerList[T]) add(fn func(T)) (remove func()) {
	entry := &handlerEntry[T]{fn: fn}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		for i, e := range l.entries {
			if e == entry {
				l.entries = append(l.entries[:i], l.entries[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
	}
}

// notify invokes every registered handler with v. When the embedding
// application registered a dispatch function, delivery hops to its chosen
// goroutine; otherwise handlers run on the calling goroutine. Entries are
// copied under the lock and invoked outside it, so handlers may add or
// remove subscriptions freely.
func (l *handlerList[T]) notify(v T) {
	l.mu.Lock()
	entries := make([]*handlerEntry[T], len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()

	deliver := func() {
		for _, e := range entries {
			e.fn(v)
		}
	}
	if !platform.Dispatch(deliver) {
		deliver()
	}
}
