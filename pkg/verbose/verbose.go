// Package verbose traces raw traffic: logger datagrams as received and CI-V
// frames as written. Tracing is off unless the daemon runs with --verbose.
package verbose

import (
	"encoding/hex"
	"strings"
	"sync/atomic"

	"github.com/dougsko/automagic/pkg/logging"
)

const maxDump = 256

var enabled atomic.Bool

// SetEnabled sets the global trace flag
func SetEnabled(enable bool) {
	enabled.Store(enable)
}

// IsEnabled returns whether tracing is enabled
func IsEnabled() bool {
	return enabled.Load()
}

// Printf logs a trace message if tracing is enabled
func Printf(component, format string, args ...interface{}) {
	if IsEnabled() {
		logging.Infof(component, "[VERBOSE] "+format, args...)
	}
}

// Dump logs data as hex if tracing is enabled. Long payloads are cut at
// maxDump bytes.
func Dump(component, label string, data []byte) {
	if !IsEnabled() {
		return
	}
	logging.Infof(component, "[VERBOSE] %s (%d bytes): %s", label, len(data), Hex(data))
}

// Hex formats data in hexdump -C layout, cut at maxDump bytes
func Hex(data []byte) string {
	cut := len(data) > maxDump
	if cut {
		data = data[:maxDump]
	}
	s := strings.TrimSpace(hex.Dump(data))
	if cut {
		s += "\n..."
	}
	return s
}
