// Package errors defines the structured error types the geolocator plugin
// reports and the handler seam through which embedding applications observe
// them. Plugin code files reports with Report and ReportPanic; applications
// choose where those reports go with SetHandler.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindPlatform indicates a platform channel or native bridge error.
	KindPlatform
	// KindParsing indicates an event parsing failure.
	KindParsing
	// KindSensor indicates a failure in the underlying location sensor.
	KindSensor
	// KindPermission indicates a permission check or request failure.
	KindPermission
	// KindPanic indicates a recovered panic.
	KindPanic
)

var kindNames = [...]string{
	KindUnknown:    "unknown",
	KindPlatform:   "platform",
	KindParsing:    "parsing",
	KindSensor:     "sensor",
	KindPermission: "permission",
	KindPanic:      "panic",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// PluginError is the report type for every failure the plugin surfaces.
// Op names the failing operation, Kind buckets it, and Channel carries the
// platform channel involved when there is one.
type PluginError struct {
	Op         string
	Kind       ErrorKind
	Err        error
	Channel    string
	StackTrace string
	Timestamp  time.Time
}

func (e *PluginError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", e.Op, e.Kind)
	if e.Channel != "" {
		fmt.Fprintf(&b, " channel=%s", e.Channel)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// PanicError is the report type for a recovered panic. Value holds whatever
// was passed to panic; StackTrace is captured at recovery time.
type PanicError struct {
	Op         string
	Value      any
	StackTrace string
	Timestamp  time.Time
}

func (e *PanicError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
}

// ParseError records event data that could not be decoded into the type a
// channel promises. Got keeps the offending value for the report.
type ParseError struct {
	Channel  string
	DataType string
	Got      any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from channel %s: got %T", e.DataType, e.Channel, e.Got)
}

// ErrorHandler observes reported failures. Implementations must be safe for
// concurrent use; reports can arrive from bridge and timer goroutines.
type ErrorHandler interface {
	HandleError(err *PluginError)
	HandlePanic(err *PanicError)
}
