package geolocator

import (
	"fmt"
	"time"
)

// toFloat64 converts various numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// toInt64 converts various numeric types to int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	default:
		return 0, false
	}
}

// parseString extracts a string from an any value.
func parseString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// parseTimestamp extracts a time.Time from a millisecond timestamp value.
func parseTimestamp(value any) time.Time {
	millis, ok := toInt64(value)
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// optFloat64 extracts an optional numeric field, returning nil when the key
// is absent or not numeric.
func optFloat64(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return nil
	}
	return &f
}

// parseSnapshot decodes a raw position payload. Optional readings map to nil
// when the payload omits them.
func parseSnapshot(data any) (Snapshot, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return Snapshot{}, fmt.Errorf("expected map, got %T", data)
	}
	lat, _ := toFloat64(m["latitude"])
	lon, _ := toFloat64(m["longitude"])
	acc, _ := toFloat64(m["accuracy"])
	return Snapshot{
		Latitude:         lat,
		Longitude:        lon,
		Accuracy:         acc,
		Timestamp:        parseTimestamp(m["timestamp"]),
		Heading:          optFloat64(m, "heading"),
		Speed:            optFloat64(m, "speed"),
		Altitude:         optFloat64(m, "altitude"),
		AltitudeAccuracy: optFloat64(m, "altitudeAccuracy"),
	}, nil
}

// parseSensorStatus decodes a status payload and validates it against the
// known status set.
func parseSensorStatus(data any) (SensorStatus, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return "", fmt.Errorf("expected map, got %T", data)
	}
	status := SensorStatus(parseString(m["status"]))
	switch status {
	case StatusReady, StatusInitializing, StatusNoData, StatusDisabled, StatusNotAvailable:
		return status, nil
	}
	return "", fmt.Errorf("unknown sensor status %q", parseString(m["status"]))
}

// fixEvent is a fix completion delivered on the fixes channel, keyed to a
// pending operation by id.
type fixEvent struct {
	id       int64
	status   FixStatus
	snapshot Snapshot
	code     string
	message  string
}

func parseFixEvent(data any) (fixEvent, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return fixEvent{}, fmt.Errorf("expected map, got %T", data)
	}
	id, ok := toInt64(m["id"])
	if !ok {
		return fixEvent{}, fmt.Errorf("fix event missing id")
	}
	ev := fixEvent{id: id, status: FixStatus(parseString(m["status"]))}
	switch ev.status {
	case FixCompleted:
		snapshot, err := parseSnapshot(m["position"])
		if err != nil {
			return fixEvent{}, err
		}
		ev.snapshot = snapshot
	case FixCanceled:
	case FixFailed:
		ev.code = parseString(m["code"])
		ev.message = parseString(m["message"])
	default:
		return fixEvent{}, fmt.Errorf("unknown fix status %q", parseString(m["status"]))
	}
	return ev, nil
}
