package platform

import "errors"

// Sentinel errors shared by method and event channels. Native bridges map
// their platform failure modes onto these before crossing into Go, so callers
// can branch with errors.Is without knowing which platform answered.
var (
	// ErrPlatformUnavailable means no native bridge is installed, or the
	// device lacks the capability behind the channel.
	ErrPlatformUnavailable = errors.New("platform feature unavailable")

	// ErrChannelNotFound means a method call named a channel nothing registered.
	ErrChannelNotFound = errors.New("platform channel not found")

	// ErrMethodNotFound means the channel exists but no handler answers the method.
	ErrMethodNotFound = errors.New("method not implemented")

	// ErrInvalidArguments means a payload did not decode into the shape the
	// handler expects.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrTimeout means a call outlived its deadline. Permission requests
	// surface this when the user never answers the system dialog.
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled means the caller's context was canceled mid-call.
	ErrCanceled = errors.New("operation was canceled")

	// ErrClosed means the channel or stream was torn down while in use.
	ErrClosed = errors.New("platform: channel closed")
)

// ChannelError is the structured error envelope native code sends across the
// bridge. Code is a stable machine-readable identifier ("unauthorized",
// "no_data"), Message is free text for logs, and Details carries whatever
// extra payload the platform attached.
type ChannelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *ChannelError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewChannelError builds a ChannelError from a code and message.
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}
