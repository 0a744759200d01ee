package vm

import (
	"fmt"
	"strings"
)

// LogBuffer accumulates newline-terminated log lines, the sink for the
// `log` syscall and the VM's own exit-time r0 report. Grounded on the
// reference VM's thread-local string buffer, simplified to a plain
// *strings.Builder since this interpreter runs in-process, not compiled to
// wasm.
type LogBuffer struct {
	buf strings.Builder
}

// NewLogBuffer returns an empty buffer.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

// Log appends msg followed by a newline.
func (l *LogBuffer) Log(msg string) {
	l.buf.WriteString(msg)
	l.buf.WriteByte('\n')
}

// Logf is a Log convenience wrapper for formatted messages.
func (l *LogBuffer) Logf(format string, args ...interface{}) {
	l.Log(fmt.Sprintf(format, args...))
}

// String returns the accumulated log text.
func (l *LogBuffer) String() string {
	return l.buf.String()
}

// Clear empties the buffer.
func (l *LogBuffer) Clear() {
	l.buf.Reset()
}
