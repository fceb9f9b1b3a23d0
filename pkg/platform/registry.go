package platform

import (
	"fmt"
	"sync"

	"github.com/go-drift/geolocator/pkg/errors"
)

// The package keeps one registry of every channel created through
// NewMethodChannel and NewEventChannel. Bridge entry points resolve
// incoming channel names against it.
var (
	registryMu     sync.RWMutex
	methodChannels = make(map[string]*MethodChannel)
	eventChannels  = make(map[string]*EventChannel)
)

func registerMethodChannel(ch *MethodChannel) {
	registryMu.Lock()
	methodChannels[ch.name] = ch
	registryMu.Unlock()
}

func registerEventChannel(ch *EventChannel) {
	registryMu.Lock()
	eventChannels[ch.name] = ch
	registryMu.Unlock()
}

func methodChannelByName(name string) *MethodChannel {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return methodChannels[name]
}

func eventChannelByName(name string) *EventChannel {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return eventChannels[name]
}

func snapshotEventChannels() []*EventChannel {
	registryMu.RLock()
	defer registryMu.RUnlock()
	all := make([]*EventChannel, 0, len(eventChannels))
	for _, ch := range eventChannels {
		all = append(all, ch)
	}
	return all
}

// nativeBridge is the bridge currently installed by the embedding
// application, or nil before installation.
var nativeBridge NativeBridge

// NativeBridge connects the channel layer to the platform's location
// services. The embedding application implements it and installs it with
// SetNativeBridge.
type NativeBridge interface {
	// InvokeMethod performs a request/response call on the native side.
	InvokeMethod(channel, method string, args []byte) ([]byte, error)

	// StartEventStream asks native to begin emitting events for channel.
	StartEventStream(channel string) error

	// StopEventStream asks native to stop emitting events for channel.
	StopEventStream(channel string) error
}

// SetNativeBridge installs the bridge. Event channels that collected
// subscribers while no bridge was available get their native streams
// started now, so early Listen calls are not lost. Startup failures are
// delivered to the subscribers' error handlers.
func SetNativeBridge(bridge NativeBridge) {
	nativeBridge = bridge

	for _, ch := range snapshotEventChannels() {
		ch.mu.Lock()
		starting := len(ch.subs) > 0 && !ch.started
		if starting {
			ch.started = true
		}
		ch.mu.Unlock()
		if !starting {
			continue
		}
		if err := startEventStream(ch.name); err != nil {
			ch.mu.Lock()
			ch.started = false
			ch.mu.Unlock()
			ch.dispatchError(err)
		}
	}
}

// invokeNative carries one method call across the bridge, encoding args on
// the way out and decoding the reply on the way back.
func invokeNative(channel, method string, args any) (any, error) {
	if nativeBridge == nil {
		return nil, ErrPlatformUnavailable
	}
	payload, err := DefaultCodec.Encode(args)
	if err != nil {
		return nil, err
	}
	reply, err := nativeBridge.InvokeMethod(channel, method, payload)
	if err != nil {
		return nil, err
	}
	return DefaultCodec.Decode(reply)
}

// startEventStream asks the bridge to begin emitting events for channel.
func startEventStream(channel string) error {
	if nativeBridge == nil {
		return reportStreamFailure("platform.startEventStream", channel, ErrPlatformUnavailable)
	}
	if err := nativeBridge.StartEventStream(channel); err != nil {
		return reportStreamFailure("platform.startEventStream", channel, err)
	}
	return nil
}

// stopEventStream asks the bridge to stop emitting events for channel.
func stopEventStream(channel string) error {
	if nativeBridge == nil {
		return reportStreamFailure("platform.stopEventStream", channel, ErrPlatformUnavailable)
	}
	if err := nativeBridge.StopEventStream(channel); err != nil {
		return reportStreamFailure("platform.stopEventStream", channel, err)
	}
	return nil
}

func reportStreamFailure(op, channel string, err error) error {
	errors.Report(&errors.PluginError{
		Op:      op,
		Kind:    errors.KindPlatform,
		Channel: channel,
		Err:     err,
	})
	return err
}

// HandleMethodCall is the bridge entry point for calls running native to
// Go. It decodes argsData, runs the channel's handler, and encodes the
// result.
func HandleMethodCall(channel, method string, argsData []byte) ([]byte, error) {
	ch := methodChannelByName(channel)
	if ch == nil {
		return nil, ErrChannelNotFound
	}
	args, err := DefaultCodec.Decode(argsData)
	if err != nil {
		return nil, err
	}
	result, err := ch.handleCall(method, args)
	if err != nil {
		return nil, err
	}
	return DefaultCodec.Encode(result)
}

// ErrChannelNotRegistered reports an event for a channel no Go code created.
var ErrChannelNotRegistered = fmt.Errorf("event channel not registered")

// knownEventChannel resolves name, reporting and returning a wrapped
// ErrChannelNotRegistered when no such channel exists.
func knownEventChannel(op, name string) (*EventChannel, error) {
	if ch := eventChannelByName(name); ch != nil {
		return ch, nil
	}
	err := fmt.Errorf("%w: %s", ErrChannelNotRegistered, name)
	errors.Report(&errors.PluginError{
		Op:      op,
		Kind:    errors.KindPlatform,
		Channel: name,
		Err:     err,
	})
	return nil, err
}

// HandleEvent is the bridge entry point for one event arriving on channel.
func HandleEvent(channel string, eventData []byte) error {
	ch, err := knownEventChannel("platform.HandleEvent", channel)
	if err != nil {
		return err
	}
	data, err := DefaultCodec.Decode(eventData)
	if err != nil {
		ch.dispatchError(err)
		return err
	}
	ch.dispatchEvent(data)
	return nil
}

// HandleEventError is the bridge entry point for a stream failure. The
// code and message arrive as a ChannelError at every subscriber.
func HandleEventError(channel string, code, message string) error {
	ch, err := knownEventChannel("platform.HandleEventError", channel)
	if err != nil {
		return err
	}
	ch.dispatchError(NewChannelError(code, message))
	return nil
}

// HandleEventDone is the bridge entry point for a stream ending on the
// native side. Every subscriber's OnDone hook runs and the channel forgets
// its subscribers.
func HandleEventDone(channel string) error {
	ch, err := knownEventChannel("platform.HandleEventDone", channel)
	if err != nil {
		return err
	}
	ch.dispatchDone()
	return nil
}

// ResetForTest returns the package to its initial state so tests do not
// leak bridges, subscriptions, or dispatchers into each other. Channels
// themselves stay registered; only their subscribers and started flags
// are dropped.
func ResetForTest() {
	nativeBridge = nil

	for _, ch := range snapshotEventChannels() {
		ch.mu.Lock()
		ch.subs = ch.subs[:0]
		ch.started = false
		ch.mu.Unlock()
	}

	resetDispatch()
}
