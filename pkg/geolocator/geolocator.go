// Package geolocator provides a platform-agnostic facade over a device
// location sensor: single-shot position requests with timeout and
// cancellation support, continuous listening sessions, and translation of
// raw sensor readings and status codes into positions and geolocation
// errors.
package geolocator

import (
	"context"
	"sync"
	"time"
)

// DefaultAccuracy is the desired accuracy in meters assumed until
// SetDesiredAccuracy is called.
const DefaultAccuracy = 100.0

// highAccuracyCutoff is the desired-accuracy boundary: values strictly below
// it select AccuracyHigh.
const highAccuracyCutoff = 100.0

// unboundedFixTimeout is the platform-side limit passed with every fix
// request. The facade enforces the real deadline with its own timer guard,
// so the platform timeout only needs to be effectively unbounded.
const unboundedFixTimeout = 365 * 24 * time.Hour

// Geolocator is the facade over a sensor binding. Create one with New and
// release it with Close.
type Geolocator struct {
	sensor Sensor

	mu              sync.Mutex
	desiredAccuracy float64
	listening       bool
	closed          bool
	unsubPosition   func()
	unsubStatus     func()

	positionHandlers handlerList[Position]
	errorHandlers    handlerList[GeolocationError]
}

// New creates a facade over the given sensor binding and subscribes to its
// position and status streams. Call Close to release the subscriptions.
func New(sensor Sensor) *Geolocator {
	g := &Geolocator{
		sensor:          sensor,
		desiredAccuracy: DefaultAccuracy,
	}
	g.unsubPosition = sensor.OnPosition(g.handleSnapshot)
	g.unsubStatus = sensor.OnStatus(g.handleStatus)
	return g
}

// Close releases the sensor subscriptions and stops any active listening
// session. The facade publishes no further events after Close; position
// requests already in flight still resolve.
func (g *Geolocator) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.listening = false
	unsubPosition, unsubStatus := g.unsubPosition, g.unsubStatus
	g.unsubPosition, g.unsubStatus = nil, nil
	g.mu.Unlock()

	if unsubPosition != nil {
		unsubPosition()
	}
	if unsubStatus != nil {
		unsubStatus()
	}
}

// Request starts a position query governed only by ctx: cancel ctx to cancel
// the query. A canceled request resolves with no position and no error.
func (g *Geolocator) Request(ctx context.Context) *PositionRequest {
	return g.start(ctx, nil)
}

// RequestWithTimeout starts a position query that gives up after timeout:
// when the sensor has not answered in time, the platform operation is
// canceled and the request resolves as canceled, exactly as if ctx had
// been canceled. A negative timeout resolves immediately with
// ErrInvalidArgument; a zero timeout is legal and expires at once.
func (g *Geolocator) RequestWithTimeout(ctx context.Context, timeout time.Duration) *PositionRequest {
	if timeout < 0 {
		req := newPositionRequest()
		req.resolveFailed(ErrInvalidArgument)
		return req
	}
	return g.start(ctx, &timeout)
}

// Current returns the device's position, blocking until the sensor answers
// or ctx is canceled. A canceled request returns (nil, nil).
func (g *Geolocator) Current(ctx context.Context) (*Position, error) {
	return g.Request(ctx).Position()
}

// CurrentWithTimeout is like Current but gives up after timeout; an
// expired request returns (nil, nil) like any canceled one.
func (g *Geolocator) CurrentWithTimeout(ctx context.Context, timeout time.Duration) (*Position, error) {
	return g.RequestWithTimeout(ctx, timeout).Position()
}

// start wires one fix operation to a fresh request: the sensor completion,
// the optional timer guard, and the ctx watcher all race to resolve it, and
// the first outcome wins.
func (g *Geolocator) start(ctx context.Context, timeout *time.Duration) *PositionRequest {
	req := newPositionRequest()

	op, err := g.sensor.RequestFix(0, unboundedFixTimeout)
	if err != nil {
		req.resolveFailed(err)
		return req
	}

	var guard *timerGuard
	if timeout != nil {
		guard, err = newTimerGuard(*timeout, func() {
			op.Cancel()
			req.resolveCanceled()
		})
		if err != nil {
			op.Cancel()
			req.resolveFailed(err)
			return req
		}
	}

	op.Completed(func(res FixResult) {
		// Disarm the guard before inspecting the result so a timer firing
		// after completion cannot resolve the request a second time.
		if guard != nil {
			guard.stop()
		}
		switch res.Status {
		case FixCompleted:
			req.resolveSuccess(positionFromSnapshot(res.Snapshot))
		case FixCanceled:
			req.resolveCanceled()
		case FixFailed:
			req.resolveFailed(res.Err)
		}
	})

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				op.Cancel()
				req.resolveCanceled()
			case <-req.done:
			}
		}()
	}

	return req
}

// StartListening configures the sensor for continuous updates and marks the
// session active. minInterval is the minimum time between updates and must
// be non-negative. minMovement is the minimum displacement in meters and
// must be non-negative and no greater than minInterval's millisecond count.
// Starting while a session is active returns ErrInvalidState.
func (g *Geolocator) StartListening(minInterval time.Duration, minMovement float64) error {
	if minInterval < 0 {
		return ErrInvalidArgument
	}
	if minMovement < 0 {
		return ErrInvalidArgument
	}
	if minMovement > float64(minInterval.Milliseconds()) {
		return ErrInvalidArgument
	}

	g.mu.Lock()
	if g.listening {
		g.mu.Unlock()
		return ErrInvalidState
	}
	g.listening = true
	g.mu.Unlock()

	g.sensor.SetReportInterval(minInterval)
	g.sensor.SetMovementThreshold(minMovement)
	return nil
}

// StopListening marks the listening session inactive. It is idempotent; the
// construction-time sensor subscriptions stay in place until Close.
func (g *Geolocator) StopListening() {
	g.mu.Lock()
	g.listening = false
	g.mu.Unlock()
}

// IsListening reports whether a listening session is active.
func (g *Geolocator) IsListening() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listening
}

// OnPositionChanged registers fn for translated position updates. Handlers
// run in registration order on the goroutine delivering the sensor
// notification. The returned function unregisters exactly this handler.
func (g *Geolocator) OnPositionChanged(fn func(Position)) (unsubscribe func()) {
	return g.positionHandlers.add(fn)
}

// OnError registers fn for geolocation errors raised by sensor status
// transitions. The returned function unregisters exactly this handler.
func (g *Geolocator) OnError(fn func(GeolocationError)) (unsubscribe func()) {
	return g.errorHandlers.add(fn)
}

// handleSnapshot republishes every sensor reading to position observers.
// Delivery is not gated on the listening flag; the platform already decides
// when to emit.
func (g *Geolocator) handleSnapshot(s Snapshot) {
	g.positionHandlers.notify(positionFromSnapshot(s))
}

// handleStatus translates sensor status transitions into geolocation errors.
// Statuses with no error mapping are ignored.
func (g *Geolocator) handleStatus(status SensorStatus) {
	var gerr GeolocationError
	switch status {
	case StatusDisabled:
		gerr = ErrUnauthorized
	case StatusNoData:
		gerr = ErrPositionUnavailable
	default:
		return
	}
	// Tear the session down first: an OnError handler that checks
	// IsListening must already see it stopped.
	g.StopListening()
	g.errorHandlers.notify(gerr)
}

// DesiredAccuracy returns the requested accuracy in meters.
func (g *Geolocator) DesiredAccuracy() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.desiredAccuracy
}

// SetDesiredAccuracy stores the requested accuracy in meters and immediately
// pushes the matching tier to the sensor.
func (g *Geolocator) SetDesiredAccuracy(meters float64) {
	g.mu.Lock()
	g.desiredAccuracy = meters
	g.mu.Unlock()
	g.sensor.SetAccuracyTier(TierForAccuracy(meters))
}

// TierForAccuracy maps a desired accuracy in meters to a sensor tier.
// Values strictly below 100 meters select AccuracyHigh; everything else is
// AccuracyDefault.
func TierForAccuracy(meters float64) AccuracyTier {
	if meters < highAccuracyCutoff {
		return AccuracyHigh
	}
	return AccuracyDefault
}

// IsAvailable reports whether the device has a usable location sensor.
func (g *Geolocator) IsAvailable() bool {
	return g.sensor.Status() != StatusNotAvailable
}

// IsEnabled reports whether location services are switched on and usable.
func (g *Geolocator) IsEnabled() bool {
	status := g.sensor.Status()
	return status != StatusDisabled && status != StatusNotAvailable
}

// LastKnown returns the sensor's cached reading mapped to a Position, or
// (nil, nil) when the binding keeps no cache or has nothing cached yet.
func (g *Geolocator) LastKnown() (*Position, error) {
	provider, ok := g.sensor.(LastKnownProvider)
	if !ok {
		return nil, nil
	}
	snap, err := provider.LastKnown()
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	pos := positionFromSnapshot(*snap)
	return &pos, nil
}
