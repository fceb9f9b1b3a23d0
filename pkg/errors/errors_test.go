package errors

import (
	"strings"
	"testing"
	"time"
)

// recordingHandler collects every report it receives.
type recordingHandler struct {
	errs   []*PluginError
	panics []*PanicError
}

func (h *recordingHandler) HandleError(err *PluginError) { h.errs = append(h.errs, err) }
func (h *recordingHandler) HandlePanic(err *PanicError)  { h.panics = append(h.panics, err) }

func installRecorder(t *testing.T) *recordingHandler {
	t.Helper()
	h := &recordingHandler{}
	prev := DefaultHandler
	SetHandler(h)
	t.Cleanup(func() { SetHandler(prev) })
	return h
}

func TestPluginErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *PluginError
		want string
	}{
		{
			name: "without channel",
			err: &PluginError{
				Op:   "sensor.RequestFix",
				Kind: KindSensor,
				Err:  &ParseError{Channel: "geolocator/sensor", DataType: "FixEvent", Got: "invalid"},
			},
			want: "sensor.RequestFix [sensor]: failed to parse FixEvent from channel geolocator/sensor: got string",
		},
		{
			name: "with channel",
			err: &PluginError{
				Op:      "stream.parse",
				Kind:    KindParsing,
				Channel: "geolocator/sensor/positions",
				Err:     &ParseError{Channel: "geolocator/sensor/positions", DataType: "Snapshot", Got: nil},
			},
			want: "stream.parse [parsing] channel=geolocator/sensor/positions: failed to parse Snapshot from channel geolocator/sensor/positions: got <nil>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPluginErrorUnwrap(t *testing.T) {
	inner := &ParseError{Channel: "geolocator/sensor", DataType: "FixEvent", Got: 7}
	err := &PluginError{Op: "sensor.parse", Kind: KindParsing, Err: inner}
	if err.Unwrap() != inner {
		t.Errorf("Unwrap() = %v, want the wrapped ParseError", err.Unwrap())
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindPlatform, "platform"},
		{KindParsing, "parsing"},
		{KindSensor, "sensor"},
		{KindPermission, "permission"},
		{KindPanic, "panic"},
		{ErrorKind(42), "unknown"},
		{ErrorKind(-1), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestPanicErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *PanicError
		want string
	}{
		{
			name: "bare",
			err:  &PanicError{Value: "test panic", Timestamp: time.Now()},
			want: "panic: test panic",
		},
		{
			name: "with op",
			err:  &PanicError{Op: "geolocator.dispatchPosition", Value: "test panic", Timestamp: time.Now()},
			want: "panic in geolocator.dispatchPosition: test panic",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Channel: "geolocator/sensor/status", DataType: "SensorStatus", Got: 123}
	want := "failed to parse SensorStatus from channel geolocator/sensor/status: got int"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestReportStampsTimestamp(t *testing.T) {
	h := installRecorder(t)

	Report(&PluginError{
		Op:   "test.op",
		Kind: KindPlatform,
		Err:  &ParseError{Channel: "test", DataType: "Test", Got: nil},
	})

	if len(h.errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(h.errs))
	}
	got := h.errs[0]
	if got.Op != "test.op" {
		t.Errorf("Op = %q, want %q", got.Op, "test.op")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected Report to stamp the timestamp")
	}
}

func TestReportKeepsTimestamp(t *testing.T) {
	h := installRecorder(t)

	stamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	Report(&PluginError{Op: "test.op", Kind: KindPlatform, Timestamp: stamp})

	if len(h.errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(h.errs))
	}
	if !h.errs[0].Timestamp.Equal(stamp) {
		t.Errorf("Timestamp = %v, want the caller's %v", h.errs[0].Timestamp, stamp)
	}
}

func TestReportNil(t *testing.T) {
	h := installRecorder(t)

	Report(nil)
	ReportPanic(nil)

	if n := len(h.errs) + len(h.panics); n != 0 {
		t.Errorf("nil reports reached the handler %d times", n)
	}
}

func TestReportPanic(t *testing.T) {
	h := installRecorder(t)

	ReportPanic(&PanicError{Value: "test panic value", Timestamp: time.Now()})

	if len(h.panics) != 1 {
		t.Fatalf("reported %d panics, want 1", len(h.panics))
	}
	if h.panics[0].Value != "test panic value" {
		t.Errorf("Value = %v, want %q", h.panics[0].Value, "test panic value")
	}
}

func TestRecoverReportsPanic(t *testing.T) {
	h := installRecorder(t)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	if len(h.panics) != 1 {
		t.Fatalf("reported %d panics, want 1", len(h.panics))
	}
	got := h.panics[0]
	if got.Value != "intentional test panic" {
		t.Errorf("Value = %v, want %q", got.Value, "intentional test panic")
	}
	if got.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", got.Op, "test.recover")
	}
	if got.StackTrace == "" {
		t.Error("expected a captured stack trace")
	}
}

func TestRecoverNoPanic(t *testing.T) {
	h := installRecorder(t)

	func() {
		defer Recover("test.quiet")
	}()

	if len(h.panics) != 0 {
		t.Errorf("reported %d panics without panicking", len(h.panics))
	}
}

func TestRecoverWithCallback(t *testing.T) {
	h := installRecorder(t)

	var observed any
	func() {
		defer RecoverWithCallback("test.recover", func(r any) { observed = r })
		panic("callback panic")
	}()

	if observed != "callback panic" {
		t.Errorf("callback saw %v, want %q", observed, "callback panic")
	}
	if len(h.panics) != 1 {
		t.Errorf("reported %d panics, want 1", len(h.panics))
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if stack == "" {
		t.Fatal("expected a non-empty stack trace")
	}
	if !strings.Contains(stack, "testing") && !strings.Contains(stack, "runtime") {
		t.Errorf("stack trace should contain testing or runtime frames, got: %s", stack)
	}
}

func TestSetHandlerNilRestoresDefault(t *testing.T) {
	prev := DefaultHandler
	t.Cleanup(func() { SetHandler(prev) })

	SetHandler(nil)
	if _, ok := DefaultHandler.(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) installed %T, want *LogHandler", DefaultHandler)
	}
}
