package geolocator

import "time"

// Position is an immutable snapshot of a geographic fix as exposed to
// application code. Optional readings are nil when the platform did not
// report them; no synthetic defaults are invented.
type Position struct {
	// Latitude is the latitude in degrees.
	Latitude float64
	// Longitude is the longitude in degrees.
	Longitude float64
	// Accuracy is the estimated horizontal accuracy radius in meters.
	Accuracy float64
	// Timestamp is when the fix was taken, from the platform's clock.
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

// positionFromSnapshot maps a raw sensor reading to the public position type.
// Required fields are always copied; each optional field is carried over only
// when the sensor reported it.
func positionFromSnapshot(s Snapshot) Position {
	p := Position{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Accuracy:  s.Accuracy,
		Timestamp: s.Timestamp,
	}
	if s.Heading != nil {
		heading := *s.Heading
		p.Heading = &heading
	}
	if s.Speed != nil {
		speed := *s.Speed
		p.Speed = &speed
	}
	if s.Altitude != nil {
		altitude := *s.Altitude
		p.Altitude = &altitude
	}
	if s.AltitudeAccuracy != nil {
		altAccuracy := *s.AltitudeAccuracy
		p.AltitudeAccuracy = &altAccuracy
	}
	return p
}
