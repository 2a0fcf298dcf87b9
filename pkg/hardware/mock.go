package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/automagic/pkg/civ"
	"github.com/dougsko/automagic/pkg/logging"
)

// MockTransport implements Transport without a radio. Frames are logged and
// recorded; tests can make writes fail.
type MockTransport struct {
	mu     sync.RWMutex
	frames [][]byte
	failed error
	closed bool
	quiet  bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// NewQuietMockTransport creates a mock transport that does not log frames.
func NewQuietMockTransport() *MockTransport {
	return &MockTransport{quiet: true}
}

// Write records a copy of the frame
func (m *MockTransport) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrNotOpen
	}
	if m.failed != nil {
		return m.failed
	}

	m.frames = append(m.frames, append([]byte(nil), frame...))
	if !m.quiet {
		logging.Infof("mock", "% x (%s)", frame, civ.Describe(frame))
	}
	return nil
}

// Close marks the transport closed; later writes fail with ErrNotOpen
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// FailWith makes every following write return err; nil restores normal operation
func (m *MockTransport) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = err
}

// Frames returns copies of every recorded frame
func (m *MockTransport) Frames() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]byte, len(m.frames))
	for i, f := range m.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Reset forgets recorded frames
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

// IsClosed reports whether Close was called
func (m *MockTransport) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *MockTransport) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("mock (%d frames)", len(m.frames))
}
