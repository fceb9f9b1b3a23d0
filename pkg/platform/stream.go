package platform

import "github.com/go-drift/geolocator/pkg/errors"

// Stream is a typed view over an EventChannel. The parser turns each raw
// payload into a T, so subscribers receive values instead of decoded JSON
// maps. Multiple listeners receive every event independently.
type Stream[T any] struct {
	events *EventChannel
	name   string
	parse  func(data any) (T, error)
}

// NewStream wraps channel with a parser producing T values.
func NewStream[T any](name string, channel *EventChannel, parse func(data any) (T, error)) *Stream[T] {
	return &Stream[T]{events: channel, name: name, parse: parse}
}

// Listen subscribes handler to parsed events and returns an unsubscribe
// function. Payloads the parser rejects are reported, not delivered.
func (s *Stream[T]) Listen(handler func(T)) (unsubscribe func()) {
	return s.ListenErr(handler, nil)
}

// ListenErr is Listen plus an error callback. errHandler sees only errors
// raised by the underlying event stream; parse failures stay between the
// parser and the error report hook.
func (s *Stream[T]) ListenErr(handler func(T), errHandler func(error)) (unsubscribe func()) {
	sub := s.events.Listen(EventHandler{
		OnEvent: func(data any) {
			val, err := s.parse(data)
			if err != nil {
				errors.Report(&errors.PluginError{
					Op:      "stream.parse",
					Kind:    errors.KindParsing,
					Channel: s.name,
					Err:     err,
				})
				return
			}
			handler(val)
		},
		OnError: func(err error) {
			errors.Report(&errors.PluginError{
				Op:      "stream.error",
				Kind:    errors.KindPlatform,
				Channel: s.name,
				Err:     err,
			})
			if errHandler != nil {
				errHandler(err)
			}
		},
	})
	return sub.Cancel
}
