package geolocator

import "time"

// SensorStatus reports the readiness of the platform location sensor.
// The string values also travel over the channel and companion wire protocols.
type SensorStatus string

const (
	// StatusReady indicates the sensor can produce positions.
	StatusReady SensorStatus = "ready"
	// StatusInitializing indicates the sensor is warming up.
	StatusInitializing SensorStatus = "initializing"
	// StatusNoData indicates the sensor is running but has no fix.
	StatusNoData SensorStatus = "no_data"
	// StatusDisabled indicates location access is switched off or denied.
	StatusDisabled SensorStatus = "disabled"
	// StatusNotAvailable indicates the device has no usable location sensor.
	StatusNotAvailable SensorStatus = "not_available"
)

// AccuracyTier is the coarse accuracy mode requested from the platform sensor.
type AccuracyTier string

const (
	// AccuracyDefault is the platform's balanced accuracy mode.
	AccuracyDefault AccuracyTier = "default"
	// AccuracyHigh requests the highest available accuracy (may use more power).
	AccuracyHigh AccuracyTier = "high"
)

// Snapshot is a raw position reading as delivered by a sensor binding.
// Optional readings are nil when the sensor did not report them.
type Snapshot struct {
	// Latitude is the latitude in degrees.
	Latitude float64
	// Longitude is the longitude in degrees.
	Longitude float64
	// Accuracy is the estimated horizontal accuracy radius in meters.
	Accuracy float64
	// Timestamp is when the reading was taken, from the platform's clock.
	Timestamp time.Time
	// Heading is the direction of travel in degrees relative to true north.
	Heading *float64
	// Speed is the ground speed in meters per second.
	Speed *float64
	// Altitude is the altitude in meters.
	Altitude *float64
	// AltitudeAccuracy is the estimated vertical accuracy in meters.
	AltitudeAccuracy *float64
}

// FixStatus describes how a single-fix operation ended.
type FixStatus string

const (
	// FixCompleted indicates the operation produced a reading.
	FixCompleted FixStatus = "completed"
	// FixCanceled indicates the operation was canceled before completing.
	FixCanceled FixStatus = "canceled"
	// FixFailed indicates the operation failed with an error.
	FixFailed FixStatus = "failed"
)

// FixResult is the terminal outcome of a FixOperation.
type FixResult struct {
	// Status describes how the operation ended.
	Status FixStatus
	// Snapshot holds the reading when Status is FixCompleted.
	Snapshot Snapshot
	// Err holds the failure when Status is FixFailed.
	Err error
}

// FixOperation is one cancelable single-fix request on a sensor.
type FixOperation interface {
	// Completed registers the callback that receives the terminal result.
	// The callback is invoked exactly once, on the sensor's own goroutine.
	// If the operation already finished, it is invoked immediately.
	Completed(fn func(FixResult))

	// Cancel asks the sensor to abandon the fix. It is idempotent and a
	// safe no-op after the operation has completed.
	Cancel()
}

// Sensor is the narrow contract the geolocator needs from a platform
// location binding. Implementations deliver fix completions and
// notifications on their own background goroutines.
type Sensor interface {
	// Status returns the sensor's current readiness.
	Status() SensorStatus

	// SetAccuracyTier selects the accuracy mode for subsequent fixes and updates.
	SetAccuracyTier(tier AccuracyTier)

	// SetReportInterval sets the minimum time between position notifications.
	SetReportInterval(interval time.Duration)

	// SetMovementThreshold sets the minimum displacement in meters between
	// position notifications.
	SetMovementThreshold(meters float64)

	// RequestFix starts a single-shot position operation. maxAge bounds how
	// stale a cached reading may be; timeout is the platform-side limit.
	// It fails synchronously with ErrUnauthorized when location permission
	// is missing.
	RequestFix(maxAge, timeout time.Duration) (FixOperation, error)

	// OnPosition registers fn for continuous position notifications and
	// returns a function that unregisters it.
	OnPosition(fn func(Snapshot)) (unsubscribe func())

	// OnStatus registers fn for sensor status transitions and returns a
	// function that unregisters it.
	OnStatus(fn func(SensorStatus)) (unsubscribe func())
}

// LastKnownProvider is implemented by sensor bindings that cache their most
// recent reading. Bindings without a cache simply do not implement it.
type LastKnownProvider interface {
	LastKnown() (*Snapshot, error)
}
