// Package platform carries the channel transport between the geolocator Go
// core and the native half of the plugin. Method channels make
// request/response calls into native location services; event channels carry
// continuous streams, such as position fixes and status transitions, back
// into Go. A NativeBridge installed by the embedding application is the
// single seam between the two worlds, and Dispatch hands user callbacks to
// whatever goroutine the application reserves for them.
package platform

import (
	"sync"
	"sync/atomic"
)

// MethodHandler answers a method call arriving from native code.
type MethodHandler func(method string, args any) (any, error)

// MethodChannel is a named request/response pipe to native code. Outbound
// calls go through Invoke; inbound calls land on the handler installed with
// SetHandler.
type MethodChannel struct {
	name string

	mu      sync.Mutex
	handler MethodHandler
}

// NewMethodChannel registers and returns the method channel called name.
func NewMethodChannel(name string) *MethodChannel {
	ch := &MethodChannel{name: name}
	registerMethodChannel(ch)
	return ch
}

// Name returns the channel name.
func (c *MethodChannel) Name() string { return c.name }

// SetHandler installs the handler invoked when native code calls into Go.
// Passing nil removes the handler.
func (c *MethodChannel) SetHandler(handler MethodHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Invoke calls method on the native side and blocks until it responds.
func (c *MethodChannel) Invoke(method string, args any) (any, error) {
	return invokeNative(c.name, method, args)
}

func (c *MethodChannel) handleCall(method string, args any) (any, error) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return nil, ErrMethodNotFound
	}
	return handler(method, args)
}

// EventHandler receives the three signals an event stream can emit.
type EventHandler struct {
	OnEvent func(data any)
	OnError func(err error)
	OnDone  func()
}

// Subscription is one listener's registration on an EventChannel.
type Subscription struct {
	channel  *EventChannel
	handler  *EventHandler
	canceled atomic.Bool
}

// Cancel detaches the subscription. The native stream is stopped once the
// last subscription on the channel cancels.
func (s *Subscription) Cancel() {
	if s.canceled.CompareAndSwap(false, true) {
		s.channel.unsubscribe(s)
	}
}

// IsCanceled reports whether Cancel has run or the stream has ended.
func (s *Subscription) IsCanceled() bool {
	return s.canceled.Load()
}

// EventChannel is a named one-way stream of events from native code into Go.
// The native stream runs while at least one subscription is live.
type EventChannel struct {
	name string

	mu      sync.Mutex
	subs    []*Subscription
	started bool
}

// NewEventChannel registers and returns the event channel called name.
func NewEventChannel(name string) *EventChannel {
	ch := &EventChannel{name: name}
	registerEventChannel(ch)
	return ch
}

// Name returns the channel name.
func (c *EventChannel) Name() string { return c.name }

// Listen adds a subscription. The first listener starts the native stream
// and later listeners share it; when no bridge is installed yet, the start
// is deferred until SetNativeBridge runs. A startup failure reaches the
// handler's OnError but still yields a usable subscription.
func (c *EventChannel) Listen(handler EventHandler) *Subscription {
	sub := &Subscription{channel: c, handler: &handler}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	starting := !c.started && nativeBridge != nil
	if starting {
		c.started = true
	}
	c.mu.Unlock()

	if starting {
		if err := startEventStream(c.name); err != nil {
			c.mu.Lock()
			c.started = false
			c.mu.Unlock()
			if handler.OnError != nil {
				handler.OnError(err)
			}
		}
	}
	return sub
}

func (c *EventChannel) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	stopping := len(c.subs) == 0 && c.started
	if stopping {
		c.started = false
	}
	c.mu.Unlock()

	// Stream teardown failures are already reported by stopEventStream,
	// and ErrClosed during shutdown is normal.
	if stopping {
		_ = stopEventStream(c.name)
	}
}

// listeners snapshots the subscriber list so handlers run outside the lock
// and may add or cancel subscriptions freely.
func (c *EventChannel) listeners() []*Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := make([]*Subscription, len(c.subs))
	copy(subs, c.subs)
	return subs
}

func (c *EventChannel) dispatchEvent(data any) {
	for _, sub := range c.listeners() {
		if !sub.IsCanceled() && sub.handler.OnEvent != nil {
			sub.handler.OnEvent(data)
		}
	}
}

func (c *EventChannel) dispatchError(err error) {
	for _, sub := range c.listeners() {
		if !sub.IsCanceled() && sub.handler.OnError != nil {
			sub.handler.OnError(err)
		}
	}
}

// dispatchDone ends the stream for every subscriber. A later Listen starts
// the native stream again from scratch.
func (c *EventChannel) dispatchDone() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.started = false
	c.mu.Unlock()

	for _, sub := range subs {
		sub.canceled.Store(true)
		if sub.handler.OnDone != nil {
			sub.handler.OnDone()
		}
	}
}
