package geolocator

import "sync"

// PositionRequest is a single in-flight position query. It resolves exactly
// once as success, canceled, or failed; after Done is closed the outcome can
// be read any number of times. Late resolution attempts are ignored: the
// first outcome wins.
type PositionRequest struct {
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	pos      *Position
	err      error
	canceled bool
}

func newPositionRequest() *PositionRequest {
	return &PositionRequest{done: make(chan struct{})}
}

// Done returns a channel that is closed once the request has resolved.
func (r *PositionRequest) Done() <-chan struct{} {
	return r.done
}

// Position blocks until the request resolves, then returns its outcome:
// the position on success, the error on failure, and (nil, nil) when the
// request was canceled.
func (r *PositionRequest) Position() (*Position, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos, r.err
}

// Canceled reports whether the request resolved as canceled. Before Done is
// closed it returns false.
func (r *PositionRequest) Canceled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canceled
}

func (r *PositionRequest) resolveSuccess(pos Position) {
	r.once.Do(func() {
		r.mu.Lock()
		p := pos
		r.pos = &p
		r.mu.Unlock()
		close(r.done)
	})
}

func (r *PositionRequest) resolveFailed(err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(r.done)
	})
}

func (r *PositionRequest) resolveCanceled() {
	r.once.Do(func() {
		r.mu.Lock()
		r.canceled = true
		r.mu.Unlock()
		close(r.done)
	})
}
