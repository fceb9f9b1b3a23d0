package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/go-drift/geolocator/pkg/geolocator"
)

type readResult struct {
	f   frame
	err error
}

// fakeConn is an in-memory frame transport. The test plays the companion:
// push feeds frames to the host, wrote observes frames the host sent.
type fakeConn struct {
	in  chan readResult
	out chan frame

	mu      sync.Mutex
	closed  bool
	code    websocket.StatusCode
	reason  string
	closeCh chan struct{}
}

var _ conn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan readResult, 16),
		out:     make(chan frame, 16),
		closeCh: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame(ctx context.Context) (frame, error) {
	select {
	case r := <-c.in:
		return r.f, r.err
	case <-c.closeCh:
		return frame{}, errors.New("connection closed")
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (c *fakeConn) WriteFrame(ctx context.Context, f frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New("connection closed")
	}
	select {
	case c.out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close(code websocket.StatusCode, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("already closed")
	}
	c.closed = true
	c.code = code
	c.reason = reason
	close(c.closeCh)
	return nil
}

func (c *fakeConn) push(t *testing.T, frameType string, data any) {
	t.Helper()
	f, err := newFrame(frameType, data)
	if err != nil {
		t.Fatalf("encoding %s frame: %v", frameType, err)
	}
	c.in <- readResult{f: f}
}

func (c *fakeConn) pushRaw(f frame) {
	c.in <- readResult{f: f}
}

func (c *fakeConn) fail(err error) {
	c.in <- readResult{err: err}
}

func (c *fakeConn) wrote(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-c.out:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame from the host")
	}
	return frame{}
}

func (c *fakeConn) expectNoFrame(t *testing.T) {
	t.Helper()
	select {
	case f := <-c.out:
		t.Fatalf("unexpected %s frame from the host", f.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func (c *fakeConn) closedWith(t *testing.T) (websocket.StatusCode, string) {
	t.Helper()
	select {
	case <-c.closeCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the host to close the connection")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.reason
}

// startCompanion runs the host's connection loop against a fakeConn without
// logging in.
func startCompanion(t *testing.T, h *Host) *fakeConn {
	t.Helper()
	c := newFakeConn()
	done := make(chan struct{})
	go func() {
		h.run(c)
		close(done)
	}()
	t.Cleanup(func() {
		c.Close(websocket.StatusNormalClosure, "test over")
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("host connection loop did not exit")
		}
	})
	return c
}

// login completes the handshake and drains the config replay the host sends
// to every fresh companion.
func login(t *testing.T, c *fakeConn) {
	t.Helper()
	c.push(t, frameLogin, loginData{Device: "pixel-9", Protocol: protocolVersion})
	if f := c.wrote(t); f.Type != frameConfig {
		t.Fatalf("first frame after login = %q, want %q", f.Type, frameConfig)
	}
}

func attach(t *testing.T, h *Host) *fakeConn {
	t.Helper()
	c := startCompanion(t, h)
	login(t, c)
	return c
}

func decodeFrameData[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Data, &v); err != nil {
		t.Fatalf("decoding %s frame: %v", f.Type, err)
	}
	return v
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	panic("unreachable")
}

func ptrTo[T any](v T) *T { return &v }

func companionLocation(lat, lon float64) locationData {
	return locationData{
		Latitude:  lat,
		Longitude: lon,
		Accuracy:  8.5,
		Timestamp: time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC).UnixMilli(),
	}
}

func TestHostLoginReplaysConfig(t *testing.T) {
	h := NewHost()
	defer h.Close()
	h.SetAccuracyTier(geolocator.AccuracyHigh)
	h.SetReportInterval(2 * time.Second)
	h.SetMovementThreshold(15)

	if got := h.Status(); got != geolocator.StatusNotAvailable {
		t.Fatalf("Status() before login = %q, want %q", got, geolocator.StatusNotAvailable)
	}

	statuses := make(chan geolocator.SensorStatus, 4)
	h.OnStatus(func(s geolocator.SensorStatus) { statuses <- s })

	c := startCompanion(t, h)
	c.push(t, frameLogin, loginData{Device: "pixel-9", Protocol: protocolVersion})

	f := c.wrote(t)
	if f.Type != frameConfig {
		t.Fatalf("frame type = %q, want %q", f.Type, frameConfig)
	}
	cfg := decodeFrameData[configData](t, f)
	if cfg.Accuracy == nil || *cfg.Accuracy != string(geolocator.AccuracyHigh) {
		t.Errorf("replayed accuracy = %v, want %q", cfg.Accuracy, geolocator.AccuracyHigh)
	}
	if cfg.IntervalMs == nil || *cfg.IntervalMs != 2000 {
		t.Errorf("replayed intervalMs = %v, want 2000", cfg.IntervalMs)
	}
	if cfg.ThresholdM == nil || *cfg.ThresholdM != 15 {
		t.Errorf("replayed thresholdMeters = %v, want 15", cfg.ThresholdM)
	}

	if got := waitFor(t, statuses, "the login status"); got != geolocator.StatusInitializing {
		t.Errorf("status after login = %q, want %q", got, geolocator.StatusInitializing)
	}
	if got := h.Status(); got != geolocator.StatusInitializing {
		t.Errorf("Status() after login = %q, want %q", got, geolocator.StatusInitializing)
	}
}

func TestHostRejectsBadLogin(t *testing.T) {
	tests := []struct {
		name     string
		frame    frame
		wantCode websocket.StatusCode
	}{
		{
			name:     "first frame not a login",
			frame:    mustFrame(t, frameLocation, companionLocation(60.17, 24.94)),
			wantCode: websocket.StatusProtocolError,
		},
		{
			name:     "malformed login payload",
			frame:    frame{Type: frameLogin, Data: json.RawMessage(`"not an object"`)},
			wantCode: websocket.StatusProtocolError,
		},
		{
			name:     "unsupported protocol",
			frame:    mustFrame(t, frameLogin, loginData{Device: "pixel-9", Protocol: "v0"}),
			wantCode: websocket.StatusPolicyViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHost()
			defer h.Close()
			c := startCompanion(t, h)
			c.pushRaw(tt.frame)

			code, _ := c.closedWith(t)
			if code != tt.wantCode {
				t.Errorf("close code = %v, want %v", code, tt.wantCode)
			}
			if got := h.Status(); got != geolocator.StatusNotAvailable {
				t.Errorf("Status() = %q, want %q", got, geolocator.StatusNotAvailable)
			}
		})
	}
}

func mustFrame(t *testing.T, frameType string, data any) frame {
	t.Helper()
	f, err := newFrame(frameType, data)
	if err != nil {
		t.Fatalf("encoding %s frame: %v", frameType, err)
	}
	return f
}

func TestHostRejectsSecondCompanion(t *testing.T) {
	h := NewHost()
	defer h.Close()
	first := attach(t, h)

	second := startCompanion(t, h)
	second.push(t, frameLogin, loginData{Device: "tablet", Protocol: protocolVersion})

	code, _ := second.closedWith(t)
	if code != websocket.StatusTryAgainLater {
		t.Fatalf("close code = %v, want %v", code, websocket.StatusTryAgainLater)
	}

	// The first companion keeps working.
	positions := make(chan geolocator.Snapshot, 1)
	h.OnPosition(func(s geolocator.Snapshot) { positions <- s })
	first.push(t, frameLocation, companionLocation(60.17, 24.94))
	snap := waitFor(t, positions, "a position from the first companion")
	if snap.Latitude != 60.17 {
		t.Errorf("latitude = %v, want 60.17", snap.Latitude)
	}
}

func TestHostLocationFrames(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	positions := make(chan geolocator.Snapshot, 4)
	statuses := make(chan geolocator.SensorStatus, 4)
	h.OnPosition(func(s geolocator.Snapshot) { positions <- s })
	h.OnStatus(func(s geolocator.SensorStatus) { statuses <- s })

	loc := companionLocation(60.1699, 24.9384)
	loc.Heading = ptrTo(271.5)
	loc.Speed = ptrTo(3.4)
	loc.Altitude = ptrTo(17.0)
	loc.AltitudeAccuracy = ptrTo(2.5)
	c.push(t, frameLocation, loc)

	// Delivering a position promotes the sensor to ready.
	if got := waitFor(t, statuses, "the ready transition"); got != geolocator.StatusReady {
		t.Fatalf("status = %q, want %q", got, geolocator.StatusReady)
	}

	snap := waitFor(t, positions, "the position")
	if snap.Latitude != 60.1699 || snap.Longitude != 24.9384 {
		t.Errorf("coordinates = (%v, %v), want (60.1699, 24.9384)", snap.Latitude, snap.Longitude)
	}
	if snap.Accuracy != 8.5 {
		t.Errorf("accuracy = %v, want 8.5", snap.Accuracy)
	}
	if snap.Timestamp.UnixMilli() != loc.Timestamp {
		t.Errorf("timestamp = %v, want unix-ms %d", snap.Timestamp, loc.Timestamp)
	}
	if snap.Heading == nil || *snap.Heading != 271.5 {
		t.Errorf("heading = %v, want 271.5", snap.Heading)
	}
	if snap.Speed == nil || *snap.Speed != 3.4 {
		t.Errorf("speed = %v, want 3.4", snap.Speed)
	}
	if snap.Altitude == nil || *snap.Altitude != 17.0 {
		t.Errorf("altitude = %v, want 17", snap.Altitude)
	}
	if snap.AltitudeAccuracy == nil || *snap.AltitudeAccuracy != 2.5 {
		t.Errorf("altitude accuracy = %v, want 2.5", snap.AltitudeAccuracy)
	}

	// A second location does not repeat the ready transition.
	c.push(t, frameLocation, companionLocation(60.18, 24.95))
	next := waitFor(t, positions, "the second position")
	if next.Latitude != 60.18 {
		t.Errorf("second latitude = %v, want 60.18", next.Latitude)
	}
	select {
	case s := <-statuses:
		t.Fatalf("unexpected status %q after second location", s)
	default:
	}

	cached, err := h.LastKnown()
	if err != nil {
		t.Fatalf("LastKnown() error: %v", err)
	}
	if cached == nil || cached.Latitude != 60.18 {
		t.Fatalf("LastKnown() = %+v, want the second reading", cached)
	}
}

func TestHostLastKnownEmpty(t *testing.T) {
	h := NewHost()
	defer h.Close()

	snap, err := h.LastKnown()
	if err != nil {
		t.Fatalf("LastKnown() error: %v", err)
	}
	if snap != nil {
		t.Fatalf("LastKnown() = %+v, want nil before any location", snap)
	}
}

func TestHostStatusFrames(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	statuses := make(chan geolocator.SensorStatus, 4)
	h.OnStatus(func(s geolocator.SensorStatus) { statuses <- s })

	c.push(t, frameStatus, statusData{Status: string(geolocator.StatusNoData)})
	if got := waitFor(t, statuses, "the no_data transition"); got != geolocator.StatusNoData {
		t.Fatalf("status = %q, want %q", got, geolocator.StatusNoData)
	}
	if got := h.Status(); got != geolocator.StatusNoData {
		t.Fatalf("Status() = %q, want %q", got, geolocator.StatusNoData)
	}

	// Unknown values and repeats are dropped.
	c.push(t, frameStatus, statusData{Status: "warp"})
	c.push(t, frameStatus, statusData{Status: string(geolocator.StatusNoData)})
	c.push(t, frameStatus, statusData{Status: string(geolocator.StatusReady)})
	if got := waitFor(t, statuses, "the ready transition"); got != geolocator.StatusReady {
		t.Fatalf("status = %q, want %q", got, geolocator.StatusReady)
	}
	if got := h.Status(); got != geolocator.StatusReady {
		t.Fatalf("Status() = %q, want %q", got, geolocator.StatusReady)
	}
}

func TestHostForwardsConfiguration(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	h.SetAccuracyTier(geolocator.AccuracyHigh)
	f := c.wrote(t)
	if f.Type != frameConfig {
		t.Fatalf("frame type = %q, want %q", f.Type, frameConfig)
	}
	cfg := decodeFrameData[configData](t, f)
	if cfg.Accuracy == nil || *cfg.Accuracy != "high" {
		t.Errorf("accuracy = %v, want \"high\"", cfg.Accuracy)
	}
	if cfg.IntervalMs != nil || cfg.ThresholdM != nil {
		t.Errorf("accuracy change carried unrelated settings: %+v", cfg)
	}

	h.SetReportInterval(1500 * time.Millisecond)
	cfg = decodeFrameData[configData](t, c.wrote(t))
	if cfg.IntervalMs == nil || *cfg.IntervalMs != 1500 {
		t.Errorf("intervalMs = %v, want 1500", cfg.IntervalMs)
	}

	h.SetMovementThreshold(25.5)
	cfg = decodeFrameData[configData](t, c.wrote(t))
	if cfg.ThresholdM == nil || *cfg.ThresholdM != 25.5 {
		t.Errorf("thresholdMeters = %v, want 25.5", cfg.ThresholdM)
	}
}

func TestHostRequestFixRoundTrip(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	op, err := h.RequestFix(2*time.Second, 30*time.Second)
	if err != nil {
		t.Fatalf("RequestFix() error: %v", err)
	}

	f := c.wrote(t)
	if f.Type != frameFixRequest {
		t.Fatalf("frame type = %q, want %q", f.Type, frameFixRequest)
	}
	req := decodeFrameData[fixRequestData](t, f)
	if req.ID != 1 {
		t.Errorf("fix id = %d, want 1", req.ID)
	}
	if req.MaxAgeMs != 2000 || req.TimeoutMs != 30000 {
		t.Errorf("fix bounds = (%d, %d), want (2000, 30000)", req.MaxAgeMs, req.TimeoutMs)
	}

	results := make(chan geolocator.FixResult, 1)
	op.Completed(func(r geolocator.FixResult) { results <- r })

	pos := companionLocation(59.437, 24.7536)
	pos.Altitude = ptrTo(9.0)
	c.push(t, frameFix, fixData{ID: req.ID, Status: string(geolocator.FixCompleted), Position: &pos})

	res := waitFor(t, results, "the fix result")
	if res.Status != geolocator.FixCompleted {
		t.Fatalf("fix status = %q, want %q", res.Status, geolocator.FixCompleted)
	}
	if res.Snapshot.Latitude != 59.437 {
		t.Errorf("fix latitude = %v, want 59.437", res.Snapshot.Latitude)
	}
	if res.Snapshot.Altitude == nil || *res.Snapshot.Altitude != 9.0 {
		t.Errorf("fix altitude = %v, want 9", res.Snapshot.Altitude)
	}

	// Ids increase across requests.
	if _, err := h.RequestFix(0, time.Minute); err != nil {
		t.Fatalf("second RequestFix() error: %v", err)
	}
	second := decodeFrameData[fixRequestData](t, c.wrote(t))
	if second.ID != 2 {
		t.Errorf("second fix id = %d, want 2", second.ID)
	}
}

func TestHostFixFailureCodes(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
		want    error
	}{
		{name: "unauthorized", code: "unauthorized", want: geolocator.ErrUnauthorized},
		{name: "no data", code: "no_data", want: geolocator.ErrPositionUnavailable},
		{name: "position unavailable", code: "position_unavailable", want: geolocator.ErrPositionUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHost()
			defer h.Close()
			c := attach(t, h)

			op, err := h.RequestFix(0, time.Minute)
			if err != nil {
				t.Fatalf("RequestFix() error: %v", err)
			}
			req := decodeFrameData[fixRequestData](t, c.wrote(t))

			results := make(chan geolocator.FixResult, 1)
			op.Completed(func(r geolocator.FixResult) { results <- r })
			c.push(t, frameFix, fixData{ID: req.ID, Status: string(geolocator.FixFailed), Code: tt.code, Message: tt.message})

			res := waitFor(t, results, "the fix result")
			if res.Status != geolocator.FixFailed {
				t.Fatalf("fix status = %q, want %q", res.Status, geolocator.FixFailed)
			}
			if !errors.Is(res.Err, tt.want) {
				t.Errorf("fix error = %v, want %v", res.Err, tt.want)
			}
		})
	}

	t.Run("unmapped code", func(t *testing.T) {
		h := NewHost()
		defer h.Close()
		c := attach(t, h)

		op, err := h.RequestFix(0, time.Minute)
		if err != nil {
			t.Fatalf("RequestFix() error: %v", err)
		}
		req := decodeFrameData[fixRequestData](t, c.wrote(t))

		results := make(chan geolocator.FixResult, 1)
		op.Completed(func(r geolocator.FixResult) { results <- r })
		c.push(t, frameFix, fixData{ID: req.ID, Status: string(geolocator.FixFailed), Code: "companion_busy", Message: "camera in use"})

		res := waitFor(t, results, "the fix result")
		var ce *companionError
		if !errors.As(res.Err, &ce) {
			t.Fatalf("fix error = %v, want a companion error", res.Err)
		}
		if ce.code != "companion_busy" || ce.message != "camera in use" {
			t.Errorf("companion error = (%q, %q), want the wire values", ce.code, ce.message)
		}
	})
}

func TestHostFixCompletionWithoutPosition(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	op, err := h.RequestFix(0, time.Minute)
	if err != nil {
		t.Fatalf("RequestFix() error: %v", err)
	}
	req := decodeFrameData[fixRequestData](t, c.wrote(t))

	results := make(chan geolocator.FixResult, 1)
	op.Completed(func(r geolocator.FixResult) { results <- r })
	c.push(t, frameFix, fixData{ID: req.ID, Status: string(geolocator.FixCompleted)})

	res := waitFor(t, results, "the fix result")
	if res.Status != geolocator.FixFailed {
		t.Fatalf("fix status = %q, want %q", res.Status, geolocator.FixFailed)
	}
	if !errors.Is(res.Err, geolocator.ErrPositionUnavailable) {
		t.Errorf("fix error = %v, want %v", res.Err, geolocator.ErrPositionUnavailable)
	}
}

func TestHostUnknownFixIDDropped(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	op, err := h.RequestFix(0, time.Minute)
	if err != nil {
		t.Fatalf("RequestFix() error: %v", err)
	}
	req := decodeFrameData[fixRequestData](t, c.wrote(t))

	results := make(chan geolocator.FixResult, 1)
	op.Completed(func(r geolocator.FixResult) { results <- r })

	pos := companionLocation(1, 2)
	c.push(t, frameFix, fixData{ID: 99, Status: string(geolocator.FixCompleted), Position: &pos})
	c.push(t, frameFix, fixData{ID: req.ID, Status: string(geolocator.FixCanceled)})

	res := waitFor(t, results, "the fix result")
	if res.Status != geolocator.FixCanceled {
		t.Fatalf("fix status = %q, want %q", res.Status, geolocator.FixCanceled)
	}
}

func TestHostFixCancel(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	op, err := h.RequestFix(0, time.Minute)
	if err != nil {
		t.Fatalf("RequestFix() error: %v", err)
	}
	req := decodeFrameData[fixRequestData](t, c.wrote(t))

	op.Cancel()
	f := c.wrote(t)
	if f.Type != frameFixCancel {
		t.Fatalf("frame type = %q, want %q", f.Type, frameFixCancel)
	}
	cancel := decodeFrameData[fixCancelData](t, f)
	if cancel.ID != req.ID {
		t.Errorf("cancel id = %d, want %d", cancel.ID, req.ID)
	}

	// Cancel is idempotent.
	op.Cancel()
	c.expectNoFrame(t)

	// The companion's confirmation still lands.
	results := make(chan geolocator.FixResult, 1)
	op.Completed(func(r geolocator.FixResult) { results <- r })
	c.push(t, frameFix, fixData{ID: req.ID, Status: string(geolocator.FixCanceled)})
	res := waitFor(t, results, "the canceled result")
	if res.Status != geolocator.FixCanceled {
		t.Fatalf("fix status = %q, want %q", res.Status, geolocator.FixCanceled)
	}

	// Cancel after completion sends nothing.
	op.Cancel()
	c.expectNoFrame(t)
}

func TestHostRequestFixWithoutCompanion(t *testing.T) {
	h := NewHost()
	defer h.Close()

	if _, err := h.RequestFix(0, time.Minute); !errors.Is(err, ErrNoCompanion) {
		t.Fatalf("RequestFix() error = %v, want %v", err, ErrNoCompanion)
	}
}

func TestHostDisconnectFailsPendingFixes(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	statuses := make(chan geolocator.SensorStatus, 4)
	h.OnStatus(func(s geolocator.SensorStatus) { statuses <- s })

	op, err := h.RequestFix(0, time.Minute)
	if err != nil {
		t.Fatalf("RequestFix() error: %v", err)
	}
	c.wrote(t)

	results := make(chan geolocator.FixResult, 1)
	op.Completed(func(r geolocator.FixResult) { results <- r })

	c.fail(errors.New("companion vanished"))

	res := waitFor(t, results, "the failed fix")
	if res.Status != geolocator.FixFailed {
		t.Fatalf("fix status = %q, want %q", res.Status, geolocator.FixFailed)
	}
	if !errors.Is(res.Err, ErrNoCompanion) {
		t.Errorf("fix error = %v, want %v", res.Err, ErrNoCompanion)
	}
	if got := waitFor(t, statuses, "the disconnect status"); got != geolocator.StatusNotAvailable {
		t.Errorf("status = %q, want %q", got, geolocator.StatusNotAvailable)
	}
	if got := h.Status(); got != geolocator.StatusNotAvailable {
		t.Errorf("Status() = %q, want %q", got, geolocator.StatusNotAvailable)
	}

	// A new companion can attach after the drop.
	next := attach(t, h)
	positions := make(chan geolocator.Snapshot, 1)
	h.OnPosition(func(s geolocator.Snapshot) { positions <- s })
	next.push(t, frameLocation, companionLocation(51.5, -0.12))
	if snap := waitFor(t, positions, "a position from the new companion"); snap.Latitude != 51.5 {
		t.Errorf("latitude = %v, want 51.5", snap.Latitude)
	}
}

func TestHostMalformedFramesSkipped(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	positions := make(chan geolocator.Snapshot, 2)
	h.OnPosition(func(s geolocator.Snapshot) { positions <- s })

	c.pushRaw(frame{Type: frameLocation, Data: json.RawMessage(`{"latitude": "north"}`)})
	c.pushRaw(frame{Type: "telemetry", Data: json.RawMessage(`{}`)})
	c.push(t, frameLocation, companionLocation(48.8566, 2.3522))

	snap := waitFor(t, positions, "the well-formed position")
	if snap.Latitude != 48.8566 {
		t.Fatalf("latitude = %v, want 48.8566", snap.Latitude)
	}
}

func TestHostUnsubscribe(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	positions := make(chan geolocator.Snapshot, 2)
	unsubscribe := h.OnPosition(func(s geolocator.Snapshot) { positions <- s })

	c.push(t, frameLocation, companionLocation(60.17, 24.94))
	waitFor(t, positions, "the first position")

	unsubscribe()
	unsubscribe()
	c.push(t, frameLocation, companionLocation(60.18, 24.95))

	kept := make(chan geolocator.Snapshot, 1)
	h.OnPosition(func(s geolocator.Snapshot) { kept <- s })
	c.push(t, frameLocation, companionLocation(60.19, 24.96))
	waitFor(t, kept, "the position on the live observer")

	select {
	case snap := <-positions:
		t.Fatalf("unsubscribed observer saw %+v", snap)
	default:
	}
}

func TestHostCloseRefusesLogin(t *testing.T) {
	h := NewHost()
	c := attach(t, h)

	h.Close()
	if code, _ := c.closedWith(t); code != websocket.StatusGoingAway {
		t.Fatalf("close code = %v, want %v", code, websocket.StatusGoingAway)
	}

	late := startCompanion(t, h)
	late.push(t, frameLogin, loginData{Device: "pixel-9", Protocol: protocolVersion})
	if code, _ := late.closedWith(t); code != websocket.StatusGoingAway {
		t.Fatalf("late login close code = %v, want %v", code, websocket.StatusGoingAway)
	}
}

func TestGeolocatorOverHost(t *testing.T) {
	h := NewHost()
	defer h.Close()
	c := attach(t, h)

	g := geolocator.New(h)
	defer g.Close()

	positions := make(chan geolocator.Position, 2)
	g.OnPositionChanged(func(p geolocator.Position) { positions <- p })

	loc := companionLocation(60.1699, 24.9384)
	loc.Speed = ptrTo(1.2)
	c.push(t, frameLocation, loc)

	pos := waitFor(t, positions, "the republished position")
	if pos.Latitude != 60.1699 {
		t.Errorf("latitude = %v, want 60.1699", pos.Latitude)
	}
	if pos.Speed == nil || *pos.Speed != 1.2 {
		t.Errorf("speed = %v, want 1.2", pos.Speed)
	}

	req := g.Request(context.Background())
	reqFrame := decodeFrameData[fixRequestData](t, c.wrote(t))
	fix := companionLocation(59.437, 24.7536)
	c.push(t, frameFix, fixData{ID: reqFrame.ID, Status: string(geolocator.FixCompleted), Position: &fix})

	got, err := req.Position()
	if err != nil {
		t.Fatalf("Position() error: %v", err)
	}
	if got == nil || got.Latitude != 59.437 {
		t.Fatalf("Position() = %+v, want the companion fix", got)
	}
}

func TestHostOverWebSocket(t *testing.T) {
	h := NewHost()
	defer h.Close()

	srv := httptest.NewServer(h)
	defer srv.Close()

	positions := make(chan geolocator.Snapshot, 1)
	h.OnPosition(func(s geolocator.Snapshot) { positions <- s })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	defer c.Close(websocket.StatusNormalClosure, "test over")

	loginFrame := mustFrame(t, frameLogin, loginData{Device: "integration", Protocol: protocolVersion})
	if err := wsjson.Write(ctx, c, loginFrame); err != nil {
		t.Fatalf("writing login: %v", err)
	}

	var cfg frame
	if err := wsjson.Read(ctx, c, &cfg); err != nil {
		t.Fatalf("reading config replay: %v", err)
	}
	if cfg.Type != frameConfig {
		t.Fatalf("first frame = %q, want %q", cfg.Type, frameConfig)
	}

	locFrame := mustFrame(t, frameLocation, companionLocation(35.6762, 139.6503))
	if err := wsjson.Write(ctx, c, locFrame); err != nil {
		t.Fatalf("writing location: %v", err)
	}

	snap := waitFor(t, positions, "the position over the socket")
	if snap.Latitude != 35.6762 || snap.Longitude != 139.6503 {
		t.Fatalf("coordinates = (%v, %v), want (35.6762, 139.6503)", snap.Latitude, snap.Longitude)
	}
}
