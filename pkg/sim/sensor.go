// Package sim provides an in-process simulated location sensor: a seeded
// random walk around a configurable origin. It implements geolocator.Sensor
// and is the default source for the geoloc CLI, demos, and tests that need
// position traffic without a device.
package sim

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/go-drift/geolocator/pkg/geolocator"
)

// Config controls the simulated sensor. Zero values select the defaults.
type Config struct {
	// Latitude and Longitude set the walk origin. The zero origin is a
	// spot in central Helsinki.
	Latitude  float64
	Longitude float64

	// Altitude is the origin altitude in meters.
	Altitude float64

	// Seed seeds the walk's random source. Sensors with equal seeds and
	// origins produce identical walks.
	Seed int64

	// StepMeters is the ground distance covered between samples.
	StepMeters float64

	// FixLatency is the delay before a single-shot fix completes.
	FixLatency time.Duration
}

const (
	defaultLatitude   = 60.1699
	defaultLongitude  = 24.9384
	defaultAltitude   = 12.0
	defaultSeed       = 1
	defaultStepMeters = 25.0
	defaultFixLatency = 150 * time.Millisecond
	defaultInterval   = time.Second

	metersPerDegree = 111320.0
)

// Sensor is a simulated location sensor. The walk advances one step per
// report interval while at least one position observer is subscribed; Step
// advances it by hand.
type Sensor struct {
	cfg Config
	mu  sync.Mutex
	rng *rand.Rand

	status    geolocator.SensorStatus
	tier      geolocator.AccuracyTier
	interval  time.Duration
	threshold float64

	lat, lon float64
	bearing  float64
	last     *geolocator.Snapshot

	nextID            int
	positionObservers map[int]func(geolocator.Snapshot)
	statusObservers   map[int]func(geolocator.SensorStatus)

	walking  bool
	stopWalk chan struct{}
}

var (
	_ geolocator.Sensor            = (*Sensor)(nil)
	_ geolocator.LastKnownProvider = (*Sensor)(nil)
)

// New creates a simulated sensor at the configured origin.
func New(cfg Config) *Sensor {
	if cfg.Latitude == 0 && cfg.Longitude == 0 {
		cfg.Latitude, cfg.Longitude = defaultLatitude, defaultLongitude
	}
	if cfg.Altitude == 0 {
		cfg.Altitude = defaultAltitude
	}
	if cfg.Seed == 0 {
		cfg.Seed = defaultSeed
	}
	if cfg.StepMeters <= 0 {
		cfg.StepMeters = defaultStepMeters
	}
	if cfg.FixLatency <= 0 {
		cfg.FixLatency = defaultFixLatency
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Sensor{
		cfg:               cfg,
		rng:               rng,
		status:            geolocator.StatusReady,
		tier:              geolocator.AccuracyDefault,
		interval:          defaultInterval,
		lat:               cfg.Latitude,
		lon:               cfg.Longitude,
		bearing:           rng.Float64() * 2 * math.Pi,
		positionObservers: map[int]func(geolocator.Snapshot){},
		statusObservers:   map[int]func(geolocator.SensorStatus){},
	}
}

// Close stops the walk goroutine and drops all observers.
func (s *Sensor) Close() {
	s.mu.Lock()
	s.positionObservers = map[int]func(geolocator.Snapshot){}
	s.statusObservers = map[int]func(geolocator.SensorStatus){}
	stop := s.stopWalk
	stopNeeded := s.walking
	s.walking = false
	s.stopWalk = nil
	s.mu.Unlock()
	if stopNeeded {
		close(stop)
	}
}

// Status returns the simulated readiness.
func (s *Sensor) Status() geolocator.SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus drives a status transition and notifies status observers. It is
// also the failure-mode switch: StatusDisabled makes RequestFix refuse with
// ErrUnauthorized, StatusNoData makes fixes fail with ErrPositionUnavailable,
// and any status other than StatusReady suspends walk samples.
func (s *Sensor) SetStatus(status geolocator.SensorStatus) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	observers := make([]func(geolocator.SensorStatus), 0, len(s.statusObservers))
	for _, fn := range s.statusObservers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()
	for _, fn := range observers {
		fn(status)
	}
}

// SetAccuracyTier selects the simulated accuracy mode. AccuracyHigh tightens
// the jitter radius, reports accuracy under ten meters, and includes
// altitude readings.
func (s *Sensor) SetAccuracyTier(tier geolocator.AccuracyTier) {
	s.mu.Lock()
	s.tier = tier
	s.mu.Unlock()
}

// SetReportInterval sets the walk's step period. Non-positive intervals fall
// back to one second.
func (s *Sensor) SetReportInterval(interval time.Duration) {
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()
}

// SetMovementThreshold sets the minimum displacement in meters between
// emitted samples. The walk keeps moving while below it; emission resumes
// once the displacement from the last emitted sample reaches the threshold.
func (s *Sensor) SetMovementThreshold(meters float64) {
	s.mu.Lock()
	s.threshold = meters
	s.mu.Unlock()
}

// RequestFix produces a single-shot fix after the configured latency. A
// fresh-enough cached sample short-circuits the latency when maxAge allows
// it; a timeout shorter than the latency fails the fix with ErrTimeout.
func (s *Sensor) RequestFix(maxAge, timeout time.Duration) (geolocator.FixOperation, error) {
	s.mu.Lock()
	switch s.status {
	case geolocator.StatusDisabled:
		s.mu.Unlock()
		return nil, geolocator.ErrUnauthorized
	case geolocator.StatusNotAvailable:
		s.mu.Unlock()
		return nil, geolocator.ErrPositionUnavailable
	}
	noData := s.status == geolocator.StatusNoData
	latency := s.cfg.FixLatency

	if !noData && maxAge > 0 && s.last != nil && time.Since(s.last.Timestamp) <= maxAge {
		cached := *s.last
		s.mu.Unlock()
		op := &fixOperation{}
		op.finish(geolocator.FixResult{Status: geolocator.FixCompleted, Snapshot: cached})
		return op, nil
	}
	s.mu.Unlock()

	op := &fixOperation{}
	expired := timeout > 0 && latency > timeout
	delay := latency
	if expired {
		delay = timeout
	}
	op.arm(time.AfterFunc(delay, func() {
		switch {
		case expired:
			op.finish(geolocator.FixResult{Status: geolocator.FixFailed, Err: geolocator.ErrTimeout})
		case noData:
			op.finish(geolocator.FixResult{Status: geolocator.FixFailed, Err: geolocator.ErrPositionUnavailable})
		default:
			op.finish(geolocator.FixResult{Status: geolocator.FixCompleted, Snapshot: s.nextFixSample()})
		}
	}))
	return op, nil
}

// OnPosition subscribes fn to walk samples. The walk goroutine starts with
// the first observer and stops when the last one unsubscribes.
func (s *Sensor) OnPosition(fn func(geolocator.Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.positionObservers[id] = fn
	startNeeded := !s.walking
	if startNeeded {
		s.walking = true
		s.stopWalk = make(chan struct{})
	}
	stop := s.stopWalk
	s.mu.Unlock()

	if startNeeded {
		go s.walk(stop)
	}
	return func() {
		s.mu.Lock()
		delete(s.positionObservers, id)
		stopNeeded := len(s.positionObservers) == 0 && s.walking
		var stopCh chan struct{}
		if stopNeeded {
			s.walking = false
			stopCh = s.stopWalk
			s.stopWalk = nil
		}
		s.mu.Unlock()
		if stopNeeded {
			close(stopCh)
		}
	}
}

// OnStatus subscribes fn to status transitions.
func (s *Sensor) OnStatus(fn func(geolocator.SensorStatus)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.statusObservers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.statusObservers, id)
		s.mu.Unlock()
	}
}

// LastKnown returns a copy of the most recent sample, or (nil, nil) before
// the first one.
func (s *Sensor) LastKnown() (*geolocator.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, nil
	}
	cached := *s.last
	return &cached, nil
}

// walk emits one step per report interval until stop closes. The timer is
// re-created each round so interval changes take effect on the next step.
func (s *Sensor) walk(stop <-chan struct{}) {
	for {
		s.mu.Lock()
		interval := s.interval
		s.mu.Unlock()
		if interval <= 0 {
			interval = defaultInterval
		}
		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			s.Step()
		}
	}
}

// Step advances the walk one step and emits a sample to position observers,
// unless the sensor is not ready or the displacement since the last emitted
// sample is below the movement threshold. Tests use it to drive the walk
// deterministically without the timer.
func (s *Sensor) Step() {
	s.mu.Lock()
	if s.status != geolocator.StatusReady {
		s.mu.Unlock()
		return
	}
	s.advanceLocked()
	snap := s.sampleLocked()
	if s.threshold > 0 && s.last != nil {
		moved := distanceMeters(s.last.Latitude, s.last.Longitude, snap.Latitude, snap.Longitude)
		if moved < s.threshold {
			s.mu.Unlock()
			return
		}
	}
	s.last = &snap
	observers := make([]func(geolocator.Snapshot), 0, len(s.positionObservers))
	for _, fn := range s.positionObservers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

// nextFixSample advances the walk and caches the sample without notifying
// position observers.
func (s *Sensor) nextFixSample() geolocator.Snapshot {
	s.mu.Lock()
	s.advanceLocked()
	snap := s.sampleLocked()
	s.last = &snap
	s.mu.Unlock()
	return snap
}

// advanceLocked moves the walk one step along a drifting bearing.
func (s *Sensor) advanceLocked() {
	s.bearing += (s.rng.Float64() - 0.5) * 0.6
	dLat := s.cfg.StepMeters * math.Cos(s.bearing) / metersPerDegree
	dLon := s.cfg.StepMeters * math.Sin(s.bearing) /
		(metersPerDegree * math.Cos(s.lat*math.Pi/180))
	s.lat += dLat
	s.lon += dLon
}

// sampleLocked builds a snapshot at the current walk location with jitter
// and accuracy drawn for the active tier. High accuracy adds altitude.
func (s *Sensor) sampleLocked() geolocator.Snapshot {
	jitter, accuracy := 8.0, 20+s.rng.Float64()*30
	if s.tier == geolocator.AccuracyHigh {
		jitter, accuracy = 1.0, 4+s.rng.Float64()*4
	}

	lat := s.lat + (s.rng.Float64()-0.5)*2*jitter/metersPerDegree
	lon := s.lon + (s.rng.Float64()-0.5)*2*jitter/
		(metersPerDegree*math.Cos(s.lat*math.Pi/180))

	heading := math.Mod(s.bearing*180/math.Pi, 360)
	if heading < 0 {
		heading += 360
	}
	interval := s.interval
	if interval <= 0 {
		interval = defaultInterval
	}
	speed := s.cfg.StepMeters / interval.Seconds()

	snap := geolocator.Snapshot{
		Latitude:  lat,
		Longitude: lon,
		Accuracy:  accuracy,
		Timestamp: time.Now(),
		Heading:   &heading,
		Speed:     &speed,
	}
	if s.tier == geolocator.AccuracyHigh {
		altitude := s.cfg.Altitude + (s.rng.Float64()-0.5)*4
		altitudeAccuracy := 2 + s.rng.Float64()*2
		snap.Altitude = &altitude
		snap.AltitudeAccuracy = &altitudeAccuracy
	}
	return snap
}

// distanceMeters approximates the ground distance between two coordinates.
// An equirectangular projection is plenty at walk scale.
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	midLat := (lat1 + lat2) / 2 * math.Pi / 180
	dx := (lon2 - lon1) * metersPerDegree * math.Cos(midLat)
	dy := (lat2 - lat1) * metersPerDegree
	return math.Hypot(dx, dy)
}

// fixOperation is one simulated single-shot fix.
type fixOperation struct {
	mu       sync.Mutex
	timer    *time.Timer
	callback func(geolocator.FixResult)
	result   *geolocator.FixResult
}

var _ geolocator.FixOperation = (*fixOperation)(nil)

func (o *fixOperation) arm(timer *time.Timer) {
	o.mu.Lock()
	o.timer = timer
	o.mu.Unlock()
}

// Completed registers the terminal callback, invoking it immediately when
// the fix already finished.
func (o *fixOperation) Completed(fn func(geolocator.FixResult)) {
	o.mu.Lock()
	if o.result != nil {
		result := *o.result
		o.mu.Unlock()
		fn(result)
		return
	}
	o.callback = fn
	o.mu.Unlock()
}

// Cancel abandons the fix and confirms with a canceled completion. It is a
// no-op once the fix finished.
func (o *fixOperation) Cancel() {
	o.mu.Lock()
	if o.result != nil {
		o.mu.Unlock()
		return
	}
	timer := o.timer
	o.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	o.finish(geolocator.FixResult{Status: geolocator.FixCanceled})
}

func (o *fixOperation) finish(res geolocator.FixResult) {
	o.mu.Lock()
	if o.result != nil {
		o.mu.Unlock()
		return
	}
	o.result = &res
	callback := o.callback
	o.mu.Unlock()
	if callback != nil {
		callback(res)
	}
}
