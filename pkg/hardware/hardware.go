package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/automagic/pkg/logging"
)

// PortConfig selects the serial device the frames go to. An empty Device
// means no radio is attached: frames go to a MockTransport and are logged.
type PortConfig struct {
	Device   string
	BaudRate int
}

// Status reports the state of the managed port
type Status struct {
	Device   string `json:"device"`
	BaudRate int    `json:"baud_rate"`
	Open     bool   `json:"open"`
	Mock     bool   `json:"mock"`
	Error    string `json:"error,omitempty"`
}

// Opener opens a transport for a port configuration.
type Opener func(cfg PortConfig) (Transport, error)

func openTransport(cfg PortConfig) (Transport, error) {
	if cfg.Device == "" {
		return NewMockTransport(), nil
	}
	return OpenSerial(cfg.Device, cfg.BaudRate)
}

// Manager owns the transport the engine writes to. It never reconnects on
// its own; Reset closes and reopens the port.
type Manager struct {
	config PortConfig
	opener Opener
	mutex  sync.RWMutex

	transport Transport
	openErr   error
}

// NewManager creates a new manager; the port is not opened until Open
func NewManager(config PortConfig) *Manager {
	return NewManagerWithOpener(config, openTransport)
}

// NewManagerWithOpener creates a manager using a custom opener
func NewManagerWithOpener(config PortConfig, opener Opener) *Manager {
	return &Manager{
		config: config,
		opener: opener,
	}
}

// Open opens the configured port. A failure is remembered and reported by
// Status; writes fail with ErrNotOpen until a successful Reset.
func (m *Manager) Open() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.openLocked()
}

func (m *Manager) openLocked() error {
	if m.transport != nil {
		return nil
	}

	t, err := m.opener(m.config)
	if err != nil {
		m.openErr = err
		logging.Errorf("hardware", "failed to open %s: %v", m.describeLocked(), err)
		return fmt.Errorf("failed to open port: %w", err)
	}

	m.transport = t
	m.openErr = nil
	logging.Infof("hardware", "port open (%s)", m.describeLocked())
	return nil
}

func (m *Manager) closeLocked() error {
	if m.transport == nil {
		return nil
	}
	err := m.transport.Close()
	m.transport = nil
	return err
}

// Reset closes the current port and opens the one described by config
func (m *Manager) Reset(config PortConfig) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.closeLocked(); err != nil {
		logging.Warnf("hardware", "error closing %s: %v", m.describeLocked(), err)
	}

	m.config = config
	m.openErr = nil
	return m.openLocked()
}

// Write sends one frame to the current port
func (m *Manager) Write(frame []byte) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.transport == nil {
		return ErrNotOpen
	}
	return m.transport.Write(frame)
}

// Close closes the port
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.closeLocked(); err != nil {
		return fmt.Errorf("failed to close port: %w", err)
	}
	logging.Info("hardware", "port closed")
	return nil
}

// Status returns the current port state
func (m *Manager) Status() Status {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, mock := m.transport.(*MockTransport)
	s := Status{
		Device:   m.config.Device,
		BaudRate: m.config.BaudRate,
		Open:     m.transport != nil,
		Mock:     mock,
	}
	if m.openErr != nil {
		s.Error = m.openErr.Error()
	}
	return s
}

// Config returns the current port configuration
func (m *Manager) Config() PortConfig {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.config
}

// Transport returns the open transport, or nil
func (m *Manager) Transport() Transport {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.transport
}

func (m *Manager) describeLocked() string {
	if m.config.Device == "" {
		return "no radio, frames logged only"
	}
	return fmt.Sprintf("%s at %d baud", m.config.Device, m.config.BaudRate)
}
