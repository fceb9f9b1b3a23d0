package platform

// noopBridge accepts every call and returns an empty result. It stands in
// for native code in tests that only need the channel plumbing to exist.
type noopBridge struct{}

func (noopBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	return DefaultCodec.Encode(nil)
}
func (noopBridge) StartEventStream(string) error { return nil }
func (noopBridge) StopEventStream(string) error  { return nil }

// InstallTestBridge wires a bridge and a synchronous dispatch function for
// tests, and registers ResetForTest as a teardown. A nil bridge installs a
// no-op one. With synchronous dispatch, events fed through HandleEvent reach
// subscribers on the calling goroutine, which keeps sensor and permission
// tests deterministic.
//
//	platform.InstallTestBridge(t.Cleanup, fakeBridge)
func InstallTestBridge(cleanup func(func()), bridge NativeBridge) {
	if bridge == nil {
		bridge = noopBridge{}
	}
	SetNativeBridge(bridge)
	RegisterDispatch(func(cb func()) { cb() })
	cleanup(ResetForTest)
}
