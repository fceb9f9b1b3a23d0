package geolocator

import "errors"

// GeolocationError identifies why the sensor could not produce a position.
// It is a closed set: ErrUnauthorized and ErrPositionUnavailable are the
// only values.
type GeolocationError string

const (
	// ErrUnauthorized indicates location permission is missing or denied.
	ErrUnauthorized GeolocationError = "unauthorized"
	// ErrPositionUnavailable indicates the sensor cannot produce a position.
	ErrPositionUnavailable GeolocationError = "position unavailable"
)

func (e GeolocationError) Error() string {
	return "geolocator: " + string(e)
}

// Sentinel errors for argument and state violations. These are deliberately
// distinct from GeolocationError: they signal caller bugs, not sensor
// conditions.
var (
	// ErrInvalidArgument is returned for negative timeouts and intervals,
	// and for movement thresholds that exceed the report interval's
	// millisecond count.
	ErrInvalidArgument = errors.New("geolocator: invalid argument")

	// ErrInvalidState is returned when starting a listening session while
	// one is already active.
	ErrInvalidState = errors.New("geolocator: invalid state")

	// ErrTimeout is the failure a sensor binding reports when its own
	// platform-side fix deadline expires. The facade never produces it:
	// when the request-level timeout elapses, the platform operation is
	// canceled and the request resolves as canceled, not as an error.
	ErrTimeout = errors.New("geolocator: position request timed out")
)
