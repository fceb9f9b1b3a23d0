// Package remote turns a companion device into the location sensor. A Host
// accepts one WebSocket companion at a time; the companion streams location
// and status frames in, and the host forwards sensor configuration and
// single-shot fix requests out. Host implements geolocator.Sensor, so a
// Geolocator facade runs over a phone on the same network exactly as it
// would over a native binding.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"nhooyr.io/websocket"

	"github.com/go-drift/geolocator/pkg/geolocator"
)

// ErrNoCompanion is returned by RequestFix when no companion is connected.
var ErrNoCompanion = errors.New("remote: no companion connected")

const (
	loginTimeout = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// Host is the companion-backed sensor. It serves the WebSocket endpoint and
// implements geolocator.Sensor over whichever companion is connected.
type Host struct {
	log log.Logger

	mu        sync.Mutex
	session   *session
	status    geolocator.SensorStatus
	last      *geolocator.Snapshot
	tier      geolocator.AccuracyTier
	interval  time.Duration
	threshold float64
	closed    bool

	nextFixID atomic.Int64
	fixMu     sync.Mutex
	pending   map[int64]*remoteFix

	obsMu             sync.Mutex
	nextObserverID    int
	positionObservers map[int]func(geolocator.Snapshot)
	statusObservers   map[int]func(geolocator.SensorStatus)
}

var (
	_ geolocator.Sensor            = (*Host)(nil)
	_ geolocator.LastKnownProvider = (*Host)(nil)
	_ http.Handler                 = (*Host)(nil)
)

// NewHost creates a host with no companion. Mount it on an HTTP server to
// accept connections.
func NewHost() *Host {
	logger := log.DefaultLogger
	logger.Context = log.NewContext(nil).Str("module", "remote-host").Value()
	return &Host{
		log:               logger,
		status:            geolocator.StatusNotAvailable,
		tier:              geolocator.AccuracyDefault,
		pending:           map[int64]*remoteFix{},
		positionObservers: map[int]func(geolocator.Snapshot){},
		statusObservers:   map[int]func(geolocator.SensorStatus){},
	}
}

// Close disconnects the current companion and refuses future logins.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sess := h.session
	h.mu.Unlock()

	if sess != nil {
		sess.conn.Close(websocket.StatusGoingAway, "host shutting down")
	}
}

// ServeHTTP upgrades the request and runs the companion protocol until the
// connection drops.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.run(wsConn{c: c})
}

// run performs the login handshake, attaches the session, and pumps frames
// until the transport fails.
func (h *Host) run(c conn) {
	loginCtx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	f, err := c.ReadFrame(loginCtx)
	cancel()
	if err != nil {
		h.log.Error().Err(err).Msg("reading login frame")
		c.Close(websocket.StatusProtocolError, "login expected")
		return
	}
	if f.Type != frameLogin {
		h.log.Warn().Str("frame", f.Type).Msg("first frame was not a login")
		c.Close(websocket.StatusProtocolError, "first frame must be a login")
		return
	}
	var login loginData
	if err := json.Unmarshal(f.Data, &login); err != nil {
		h.log.Warn().Err(err).Msg("malformed login frame")
		c.Close(websocket.StatusProtocolError, "malformed login")
		return
	}
	if login.Protocol != protocolVersion {
		h.log.Warn().Str("protocol", login.Protocol).Msg("unsupported companion protocol")
		c.Close(websocket.StatusPolicyViolation, "unsupported protocol")
		return
	}

	sess := &session{id: uuid.NewString(), device: login.Device, conn: c}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.Close(websocket.StatusGoingAway, "host shutting down")
		return
	}
	if h.session != nil {
		h.mu.Unlock()
		h.log.Warn().EmbedObject(sess).Msg("rejecting second companion")
		c.Close(websocket.StatusTryAgainLater, "another companion is connected")
		return
	}
	h.session = sess
	h.status = geolocator.StatusInitializing
	tier, interval, threshold := h.tier, h.interval, h.threshold
	h.mu.Unlock()

	h.log.Info().EmbedObject(sess).Msg("companion connected")
	h.notifyStatus(geolocator.StatusInitializing)
	h.replayConfig(sess, tier, interval, threshold)

	for {
		f, err := sess.conn.ReadFrame(context.Background())
		if err != nil {
			h.log.Info().Err(err).EmbedObject(sess).Msg("companion read loop ended")
			break
		}
		h.handleFrame(sess, f)
	}
	h.detach(sess)
}

// replayConfig pushes the full sensor configuration to a freshly attached
// companion.
func (h *Host) replayConfig(sess *session, tier geolocator.AccuracyTier, interval time.Duration, threshold float64) {
	accuracy := string(tier)
	intervalMs := interval.Milliseconds()
	h.sendConfig(sess, configData{
		Accuracy:   &accuracy,
		IntervalMs: &intervalMs,
		ThresholdM: &threshold,
	})
}

// handleFrame dispatches one companion frame. Malformed frames are logged
// and skipped; they never tear the connection down.
func (h *Host) handleFrame(sess *session, f frame) {
	switch f.Type {
	case frameLocation:
		var d locationData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			h.log.Warn().Err(err).EmbedObject(sess).Msg("malformed location frame")
			return
		}
		snap := snapshotFromLocation(d)

		h.mu.Lock()
		h.last = &snap
		promote := h.session == sess && h.status != geolocator.StatusReady
		if promote {
			h.status = geolocator.StatusReady
		}
		h.mu.Unlock()

		// A companion that delivers positions is by definition ready.
		if promote {
			h.notifyStatus(geolocator.StatusReady)
		}
		h.notifyPosition(snap)

	case frameStatus:
		var d statusData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			h.log.Warn().Err(err).EmbedObject(sess).Msg("malformed status frame")
			return
		}
		status := geolocator.SensorStatus(d.Status)
		switch status {
		case geolocator.StatusReady, geolocator.StatusInitializing, geolocator.StatusNoData,
			geolocator.StatusDisabled, geolocator.StatusNotAvailable:
		default:
			h.log.Warn().Str("status", d.Status).EmbedObject(sess).Msg("unknown status value")
			return
		}

		h.mu.Lock()
		changed := h.session == sess && h.status != status
		if changed {
			h.status = status
		}
		h.mu.Unlock()
		if changed {
			h.notifyStatus(status)
		}

	case frameFix:
		var d fixData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			h.log.Warn().Err(err).EmbedObject(sess).Msg("malformed fix frame")
			return
		}
		h.completeFix(d)

	case frameError:
		var d errorData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			h.log.Warn().Err(err).EmbedObject(sess).Msg("malformed error frame")
			return
		}
		h.log.Error().Str("code", d.Code).EmbedObject(sess).Msg(d.Message)

	default:
		h.log.Warn().Str("frame", f.Type).EmbedObject(sess).Msg("unknown frame type")
	}
}

// completeFix routes a fix completion to its pending operation by id.
// Completions for unknown ids are dropped.
func (h *Host) completeFix(d fixData) {
	h.fixMu.Lock()
	op := h.pending[d.ID]
	delete(h.pending, d.ID)
	h.fixMu.Unlock()
	if op == nil {
		return
	}

	switch geolocator.FixStatus(d.Status) {
	case geolocator.FixCompleted:
		if d.Position == nil {
			op.finish(geolocator.FixResult{Status: geolocator.FixFailed, Err: geolocator.ErrPositionUnavailable})
			return
		}
		op.finish(geolocator.FixResult{
			Status:   geolocator.FixCompleted,
			Snapshot: snapshotFromLocation(*d.Position),
		})
	case geolocator.FixCanceled:
		op.finish(geolocator.FixResult{Status: geolocator.FixCanceled})
	case geolocator.FixFailed:
		op.finish(geolocator.FixResult{Status: geolocator.FixFailed, Err: companionFixError(d.Code, d.Message)})
	default:
		h.log.Warn().Int64("id", d.ID).Str("status", d.Status).Msg("unknown fix status")
		op.finish(geolocator.FixResult{
			Status: geolocator.FixFailed,
			Err:    &companionError{code: "bad_status", message: d.Status},
		})
	}
}

// companionFixError maps a companion failure code to the facade taxonomy.
func companionFixError(code, message string) error {
	switch code {
	case "unauthorized":
		return geolocator.ErrUnauthorized
	case "no_data", "position_unavailable":
		return geolocator.ErrPositionUnavailable
	}
	return &companionError{code: code, message: message}
}

// companionError is a fix failure the facade taxonomy has no mapping for.
type companionError struct {
	code    string
	message string
}

func (e *companionError) Error() string {
	return "remote: companion fix failed: " + e.code + ": " + e.message
}

// detach clears the session if it is still the active one, fails the
// outstanding fixes, and reports the sensor as gone.
func (h *Host) detach(sess *session) {
	h.mu.Lock()
	if h.session != sess {
		h.mu.Unlock()
		return
	}
	h.session = nil
	h.status = geolocator.StatusNotAvailable
	h.mu.Unlock()

	h.log.Info().EmbedObject(sess).Msg("companion disconnected")
	h.failPending(ErrNoCompanion)
	h.notifyStatus(geolocator.StatusNotAvailable)
}

// failPending fails every outstanding fix operation.
func (h *Host) failPending(err error) {
	h.fixMu.Lock()
	pending := make([]*remoteFix, 0, len(h.pending))
	for id, op := range h.pending {
		pending = append(pending, op)
		delete(h.pending, id)
	}
	h.fixMu.Unlock()

	for _, op := range pending {
		op.finish(geolocator.FixResult{Status: geolocator.FixFailed, Err: err})
	}
}

// Status returns the companion's last reported readiness, or
// StatusNotAvailable when no companion is connected.
func (h *Host) Status() geolocator.SensorStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return geolocator.StatusNotAvailable
	}
	return h.status
}

// SetAccuracyTier forwards the accuracy mode to the companion.
func (h *Host) SetAccuracyTier(tier geolocator.AccuracyTier) {
	h.mu.Lock()
	h.tier = tier
	sess := h.session
	h.mu.Unlock()
	if sess == nil {
		return
	}
	accuracy := string(tier)
	h.sendConfig(sess, configData{Accuracy: &accuracy})
}

// SetReportInterval forwards the report interval to the companion.
func (h *Host) SetReportInterval(interval time.Duration) {
	h.mu.Lock()
	h.interval = interval
	sess := h.session
	h.mu.Unlock()
	if sess == nil {
		return
	}
	intervalMs := interval.Milliseconds()
	h.sendConfig(sess, configData{IntervalMs: &intervalMs})
}

// SetMovementThreshold forwards the movement threshold to the companion.
func (h *Host) SetMovementThreshold(meters float64) {
	h.mu.Lock()
	h.threshold = meters
	sess := h.session
	h.mu.Unlock()
	if sess == nil {
		return
	}
	h.sendConfig(sess, configData{ThresholdM: &meters})
}

func (h *Host) sendConfig(sess *session, data configData) {
	f, err := newFrame(frameConfig, data)
	if err != nil {
		h.log.Error().Err(err).Msg("encoding config frame")
		return
	}
	if err := sess.send(f); err != nil {
		h.log.Error().Err(err).EmbedObject(sess).Msg("sending config frame")
	}
}

// RequestFix asks the companion for a single fix. The companion answers
// later with a fix frame carrying the same id.
func (h *Host) RequestFix(maxAge, timeout time.Duration) (geolocator.FixOperation, error) {
	h.mu.Lock()
	sess := h.session
	h.mu.Unlock()
	if sess == nil {
		return nil, ErrNoCompanion
	}

	id := h.nextFixID.Add(1)
	op := &remoteFix{host: h, id: id}
	h.fixMu.Lock()
	h.pending[id] = op
	h.fixMu.Unlock()

	f, err := newFrame(frameFixRequest, fixRequestData{
		ID:        id,
		MaxAgeMs:  maxAge.Milliseconds(),
		TimeoutMs: timeout.Milliseconds(),
	})
	if err == nil {
		err = sess.send(f)
	}
	if err != nil {
		h.fixMu.Lock()
		delete(h.pending, id)
		h.fixMu.Unlock()
		return nil, err
	}

	// The companion may have dropped between the session read and the send.
	// If it detached already its pending sweep ran without this entry, so
	// fail here; if it detaches later the sweep will find it.
	h.mu.Lock()
	still := h.session == sess
	h.mu.Unlock()
	if !still {
		h.fixMu.Lock()
		if h.pending[id] == op {
			delete(h.pending, id)
		}
		h.fixMu.Unlock()
		return nil, ErrNoCompanion
	}
	return op, nil
}

// OnPosition subscribes fn to companion position frames.
func (h *Host) OnPosition(fn func(geolocator.Snapshot)) (unsubscribe func()) {
	h.obsMu.Lock()
	id := h.nextObserverID
	h.nextObserverID++
	h.positionObservers[id] = fn
	h.obsMu.Unlock()
	return func() {
		h.obsMu.Lock()
		delete(h.positionObservers, id)
		h.obsMu.Unlock()
	}
}

// OnStatus subscribes fn to sensor status transitions, including the
// synthesized ones around companion attach and detach.
func (h *Host) OnStatus(fn func(geolocator.SensorStatus)) (unsubscribe func()) {
	h.obsMu.Lock()
	id := h.nextObserverID
	h.nextObserverID++
	h.statusObservers[id] = fn
	h.obsMu.Unlock()
	return func() {
		h.obsMu.Lock()
		delete(h.statusObservers, id)
		h.obsMu.Unlock()
	}
}

// LastKnown returns a copy of the companion's most recent reading, or
// (nil, nil) before the first location frame.
func (h *Host) LastKnown() (*geolocator.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return nil, nil
	}
	cached := *h.last
	return &cached, nil
}

func (h *Host) notifyPosition(snap geolocator.Snapshot) {
	h.obsMu.Lock()
	observers := make([]func(geolocator.Snapshot), 0, len(h.positionObservers))
	for _, fn := range h.positionObservers {
		observers = append(observers, fn)
	}
	h.obsMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

func (h *Host) notifyStatus(status geolocator.SensorStatus) {
	h.obsMu.Lock()
	observers := make([]func(geolocator.SensorStatus), 0, len(h.statusObservers))
	for _, fn := range h.statusObservers {
		observers = append(observers, fn)
	}
	h.obsMu.Unlock()
	for _, fn := range observers {
		fn(status)
	}
}

// session is one attached companion connection.
type session struct {
	id      string
	device  string
	conn    conn
	writeMu sync.Mutex
}

func (s *session) MarshalObject(e *log.Entry) {
	e.Str("sid", s.id).Str("device", s.device)
}

// send writes one frame with the host's write deadline. Writes are
// serialized; sensor methods call in from arbitrary goroutines.
func (s *session) send(f frame) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteFrame(ctx, f)
}

// remoteFix is one outstanding companion fix request.
type remoteFix struct {
	host *Host
	id   int64

	mu       sync.Mutex
	callback func(geolocator.FixResult)
	result   *geolocator.FixResult
	canceled bool
}

var _ geolocator.FixOperation = (*remoteFix)(nil)

// Completed registers the terminal callback, invoking it immediately when
// the completion already arrived.
func (f *remoteFix) Completed(fn func(geolocator.FixResult)) {
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

// Cancel sends a fix_cancel to the companion. The pending entry stays until
// the companion confirms or disconnects. Cancel is idempotent and a no-op
// after completion.
func (f *remoteFix) Cancel() {
	f.mu.Lock()
	if f.result != nil || f.canceled {
		f.mu.Unlock()
		return
	}
	f.canceled = true
	f.mu.Unlock()

	f.host.mu.Lock()
	sess := f.host.session
	f.host.mu.Unlock()
	if sess == nil {
		return
	}

	frm, err := newFrame(frameFixCancel, fixCancelData{ID: f.id})
	if err == nil {
		err = sess.send(frm)
	}
	if err != nil {
		f.host.log.Error().Err(err).Int64("id", f.id).Msg("sending fix_cancel frame")
	}
}

func (f *remoteFix) finish(res geolocator.FixResult) {
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
