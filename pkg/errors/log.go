package errors

import (
	"fmt"
	"os"
)

// LogHandler writes reports to stderr. It is the handler of last resort,
// active until the embedding application installs its own.
type LogHandler struct {
	// Verbose adds error kinds, channel names, and stack traces to the output.
	Verbose bool
}

// HandleError prints a one line summary of err, or a detailed record when
// Verbose is set.
func (h *LogHandler) HandleError(err *PluginError) {
	if err == nil {
		return
	}
	if !h.Verbose {
		fmt.Fprintf(os.Stderr, "[geolocator error] %s: %v\n", err.Op, err.Err)
		return
	}
	fmt.Fprintf(os.Stderr, "[geolocator error] %s [%s]", err.Op, err.Kind)
	if err.Channel != "" {
		fmt.Fprintf(os.Stderr, " channel=%s", err.Channel)
	}
	fmt.Fprintf(os.Stderr, ": %v\n", err.Err)
	logStack(err.StackTrace)
}

// HandlePanic prints the recovered panic value with its operation name.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Op != "" {
		fmt.Fprintf(os.Stderr, "[geolocator panic] %s: %v\n", err.Op, err.Value)
	} else {
		fmt.Fprintf(os.Stderr, "[geolocator panic] %v\n", err.Value)
	}
	if h.Verbose {
		logStack(err.StackTrace)
	}
}

func logStack(stack string) {
	if stack == "" {
		return
	}
	fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", stack)
}
