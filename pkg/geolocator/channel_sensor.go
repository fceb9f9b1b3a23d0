package geolocator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-drift/geolocator/pkg/errors"
	"github.com/go-drift/geolocator/pkg/platform"
)

// Channel names for the native sensor binding.
const (
	sensorChannelName    = "geolocator/sensor"
	positionsChannelName = "geolocator/sensor/positions"
	statusChannelName    = "geolocator/sensor/status"
	fixesChannelName     = "geolocator/sensor/fixes"
)

// ChannelSensor is the sensor binding backed by platform channels. Method
// calls go out over the geolocator/sensor channel; positions, status
// transitions, and fix completions arrive on the matching event channels.
// A process talks to one native sensor, so create a single ChannelSensor.
type ChannelSensor struct {
	channel   *platform.MethodChannel
	positions *platform.Stream[Snapshot]
	status    *platform.Stream[SensorStatus]
	fixSub    *platform.Subscription

	fixMu     sync.Mutex
	pending   map[int64]*channelFix
	nextFixID atomic.Int64
}

var (
	_ Sensor            = (*ChannelSensor)(nil)
	_ LastKnownProvider = (*ChannelSensor)(nil)
)

// NewChannelSensor binds the process-wide geolocator channels and starts
// listening for fix completions. Call Close to release the fix subscription.
func NewChannelSensor() *ChannelSensor {
	s := &ChannelSensor{
		channel: platform.NewMethodChannel(sensorChannelName),
		pending: make(map[int64]*channelFix),
	}
	positionsChannel := platform.NewEventChannel(positionsChannelName)
	s.positions = platform.NewStream(positionsChannelName, positionsChannel, parseSnapshot)
	statusChannel := platform.NewEventChannel(statusChannelName)
	s.status = platform.NewStream(statusChannelName, statusChannel, parseSensorStatus)

	fixesChannel := platform.NewEventChannel(fixesChannelName)
	s.fixSub = fixesChannel.Listen(platform.EventHandler{
		OnEvent: s.handleFixEvent,
		OnError: s.handleFixStreamError,
	})
	return s
}

// Close releases the fix completion subscription. Pending fix operations are
// failed with ErrClosed.
func (s *ChannelSensor) Close() {
	s.fixSub.Cancel()
	s.handleFixStreamError(platform.ErrClosed)
}

// Status asks the native host for the sensor's readiness. Transport and
// parse failures are reported and surface as StatusNotAvailable.
func (s *ChannelSensor) Status() SensorStatus {
	result, err := s.channel.Invoke("status", nil)
	if err != nil {
		errors.Report(&errors.PluginError{
			Op:      "sensor.Status",
			Kind:    errors.KindPlatform,
			Channel: sensorChannelName,
			Err:     err,
		})
		return StatusNotAvailable
	}
	status, err := parseSensorStatus(result)
	if err != nil {
		errors.Report(&errors.PluginError{
			Op:      "sensor.Status",
			Kind:    errors.KindParsing,
			Channel: sensorChannelName,
			Err:     err,
		})
		return StatusNotAvailable
	}
	return status
}

// SetAccuracyTier selects the native accuracy mode.
func (s *ChannelSensor) SetAccuracyTier(tier AccuracyTier) {
	s.invokeConfig("setAccuracy", map[string]any{"tier": string(tier)})
}

// SetReportInterval sets the minimum time between position notifications.
func (s *ChannelSensor) SetReportInterval(interval time.Duration) {
	s.invokeConfig("setReportInterval", map[string]any{"intervalMs": interval.Milliseconds()})
}

// SetMovementThreshold sets the minimum displacement between notifications.
func (s *ChannelSensor) SetMovementThreshold(meters float64) {
	s.invokeConfig("setMovementThreshold", map[string]any{"meters": meters})
}

// invokeConfig fires a configuration method at the native host. Failures are
// reported, not returned; configuration writes have no caller to hand an
// error to.
func (s *ChannelSensor) invokeConfig(method string, args map[string]any) {
	if _, err := s.channel.Invoke(method, args); err != nil {
		errors.Report(&errors.PluginError{
			Op:      "sensor." + method,
			Kind:    errors.KindPlatform,
			Channel: sensorChannelName,
			Err:     err,
		})
	}
}

// RequestFix asks the native host for a single fix. The host answers later
// with a completion event carrying the same id on the fixes channel. A
// synchronous unauthorized refusal maps to ErrUnauthorized.
func (s *ChannelSensor) RequestFix(maxAge, timeout time.Duration) (FixOperation, error) {
	id := s.nextFixID.Add(1)
	op := &channelFix{sensor: s, id: id}
	s.fixMu.Lock()
	s.pending[id] = op
	s.fixMu.Unlock()

	_, err := s.channel.Invoke("requestFix", map[string]any{
		"id":        id,
		"maxAgeMs":  maxAge.Milliseconds(),
		"timeoutMs": timeout.Milliseconds(),
	})
	if err != nil {
		s.fixMu.Lock()
		delete(s.pending, id)
		s.fixMu.Unlock()
		if chErr, ok := err.(*platform.ChannelError); ok && chErr.Code == "unauthorized" {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return op, nil
}

// OnPosition subscribes to continuous position notifications.
func (s *ChannelSensor) OnPosition(fn func(Snapshot)) (unsubscribe func()) {
	return s.positions.Listen(fn)
}

// OnStatus subscribes to sensor status transitions.
func (s *ChannelSensor) OnStatus(fn func(SensorStatus)) (unsubscribe func()) {
	return s.status.Listen(fn)
}

// LastKnown returns the native host's cached reading without triggering a
// new fix, or (nil, nil) when the host has none.
func (s *ChannelSensor) LastKnown() (*Snapshot, error) {
	result, err := s.channel.Invoke("lastKnown", nil)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	snapshot, err := parseSnapshot(result)
	if err != nil {
		return nil, nil
	}
	return &snapshot, nil
}

// handleFixEvent routes a completion to its pending operation by id.
// Completions for unknown ids are dropped.
func (s *ChannelSensor) handleFixEvent(data any) {
	ev, err := parseFixEvent(data)
	if err != nil {
		errors.Report(&errors.PluginError{
			Op:      "sensor.handleFixEvent",
			Kind:    errors.KindParsing,
			Channel: fixesChannelName,
			Err:     err,
		})
		return
	}

	s.fixMu.Lock()
	op := s.pending[ev.id]
	delete(s.pending, ev.id)
	s.fixMu.Unlock()
	if op == nil {
		return
	}

	switch ev.status {
	case FixCompleted:
		op.finish(FixResult{Status: FixCompleted, Snapshot: ev.snapshot})
	case FixCanceled:
		op.finish(FixResult{Status: FixCanceled})
	case FixFailed:
		op.finish(FixResult{Status: FixFailed, Err: fixError(ev.code, ev.message)})
	}
}

// handleFixStreamError fails every pending operation when the fix stream
// itself breaks down.
func (s *ChannelSensor) handleFixStreamError(err error) {
	s.fixMu.Lock()
	pending := make([]*channelFix, 0, len(s.pending))
	for id, op := range s.pending {
		pending = append(pending, op)
		delete(s.pending, id)
	}
	s.fixMu.Unlock()

	for _, op := range pending {
		op.finish(FixResult{Status: FixFailed, Err: err})
	}
}

// fixError maps a native failure code to the facade's error taxonomy.
func fixError(code, message string) error {
	switch code {
	case "unauthorized":
		return ErrUnauthorized
	case "no_data", "position_unavailable":
		return ErrPositionUnavailable
	}
	return platform.NewChannelError(code, message)
}

// channelFix is one pending single-fix operation.
type channelFix struct {
	sensor *ChannelSensor
	id     int64

	mu       sync.Mutex
	callback func(FixResult)
	result   *FixResult
	canceled bool
}

var _ FixOperation = (*channelFix)(nil)

// Completed registers the terminal callback. If the completion already
// arrived, fn runs immediately on the calling goroutine.
func (f *channelFix) Completed(fn func(FixResult)) {
	f.mu.Lock()
	if f.result != nil {
		result := *f.result
		f.mu.Unlock()
		fn(result)
		return
	}
	f.callback = fn
	f.mu.Unlock()
}

// Cancel asks the native host to abandon the fix. It is idempotent and a
// no-op once the operation has completed.
func (f *channelFix) Cancel() {
	f.mu.Lock()
	if f.result != nil || f.canceled {
		f.mu.Unlock()
		return
	}
	f.canceled = true
	f.mu.Unlock()

	if _, err := f.sensor.channel.Invoke("cancelFix", map[string]any{"id": f.id}); err != nil {
		errors.Report(&errors.PluginError{
			Op:      "sensor.cancelFix",
			Kind:    errors.KindSensor,
			Channel: sensorChannelName,
			Err:     err,
		})
	}
}

// finish commits the terminal result once; later completions are ignored.
func (f *channelFix) finish(res FixResult) {
	f.mu.Lock()
	if f.result != nil {
		f.mu.Unlock()
		return
	}
	f.result = &res
	callback := f.callback
	f.mu.Unlock()
	if callback != nil {
		callback(res)
	}
}
