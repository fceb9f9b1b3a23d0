package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-drift/geolocator/pkg/geolocator"
)

// protocolVersion is the companion wire protocol this host speaks. A login
// carrying any other version is rejected.
const protocolVersion = "v1"

// Frame types. The companion sends login, location, status, fix, and error
// frames; the host sends config, fix_request, and fix_cancel frames.
const (
	frameLogin      = "login"
	frameLocation   = "location"
	frameStatus     = "status"
	frameFix        = "fix"
	frameError      = "error"
	frameConfig     = "config"
	frameFixRequest = "fix_request"
	frameFixCancel  = "fix_cancel"
)

// frame is the wire envelope. The payload stays raw until the type is known.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newFrame(frameType string, data any) (frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return frame{}, fmt.Errorf("remote: encode %s frame: %w", frameType, err)
	}
	return frame{Type: frameType, Data: raw}, nil
}

type loginData struct {
	Device   string `json:"device"`
	Protocol string `json:"protocol"`
}

// locationData is a position reading on the wire. Optional readings are
// omitted entirely when the companion has none.
type locationData struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Accuracy         float64  `json:"accuracy"`
	Timestamp        int64    `json:"timestamp"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
	Altitude         *float64 `json:"altitude,omitempty"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy,omitempty"`
}

func snapshotFromLocation(d locationData) geolocator.Snapshot {
	return geolocator.Snapshot{
		Latitude:         d.Latitude,
		Longitude:        d.Longitude,
		Accuracy:         d.Accuracy,
		Timestamp:        time.UnixMilli(d.Timestamp),
		Heading:          d.Heading,
		Speed:            d.Speed,
		Altitude:         d.Altitude,
		AltitudeAccuracy: d.AltitudeAccuracy,
	}
}

type statusData struct {
	Status string `json:"status"`
}

// fixData is a fix completion from the companion, keyed to an outstanding
// fix_request by id.
type fixData struct {
	ID       int64         `json:"id"`
	Status   string        `json:"status"`
	Position *locationData `json:"position,omitempty"`
	Code     string        `json:"code,omitempty"`
	Message  string        `json:"message,omitempty"`
}

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// configData carries sensor settings to the companion. Only the settings
// being changed are present; a login triggers a full replay.
type configData struct {
	Accuracy   *string  `json:"accuracy,omitempty"`
	IntervalMs *int64   `json:"intervalMs,omitempty"`
	ThresholdM *float64 `json:"thresholdMeters,omitempty"`
}

type fixRequestData struct {
	ID        int64 `json:"id"`
	MaxAgeMs  int64 `json:"maxAgeMs"`
	TimeoutMs int64 `json:"timeoutMs"`
}

type fixCancelData struct {
	ID int64 `json:"id"`
}
