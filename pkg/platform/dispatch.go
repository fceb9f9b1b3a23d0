package platform

import "sync/atomic"

// dispatch holds the function that hands callbacks to the application's
// main goroutine. Nil until RegisterDispatch runs.
var dispatch atomic.Pointer[func(func())]

// RegisterDispatch sets the function used to hand callbacks to the
// application's main goroutine. Call it once during initialization; the
// geolocator facade then routes position and error callbacks through it
// instead of invoking them on bridge goroutines. A nil fn removes the
// current dispatcher.
func RegisterDispatch(fn func(callback func())) {
	if fn == nil {
		dispatch.Store(nil)
		return
	}
	dispatch.Store(&fn)
}

// Dispatch schedules a callback on the application's main goroutine.
// It returns false, without running the callback, when no dispatch
// function is registered or the callback is nil.
func Dispatch(callback func()) bool {
	fn := dispatch.Load()
	if fn == nil || callback == nil {
		return false
	}
	(*fn)(callback)
	return true
}

func resetDispatch() {
	dispatch.Store(nil)
}
