package hardware

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dougsko/automagic/pkg/verbose"
	"github.com/tarm/serial"
)

// ErrNotOpen is returned when writing to a port that is not open.
var ErrNotOpen = errors.New("serial port not open")

// Transport is a write-only sink for CI-V frames.
type Transport interface {
	Write(frame []byte) error
	Close() error
}

// SerialPort is the part of a serial port the transport uses.
type SerialPort interface {
	io.WriteCloser
}

// SerialTransport writes frames to a serial port at 8N1.
type SerialTransport struct {
	device   string
	baudRate int

	mu   sync.Mutex
	port SerialPort
}

// OpenSerial opens device at baudRate, 8 data bits, no parity, 1 stop bit.
func OpenSerial(device string, baudRate int) (*SerialTransport, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:     device,
		Baud:     baudRate,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", device, err)
	}

	return newSerialTransport(device, baudRate, port), nil
}

func newSerialTransport(device string, baudRate int, port SerialPort) *SerialTransport {
	return &SerialTransport{device: device, baudRate: baudRate, port: port}
}

// Write sends one frame. Short writes are reported as errors.
func (s *SerialTransport) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return ErrNotOpen
	}

	verbose.Dump("serial", s.device, frame)
	n, err := s.port.Write(frame)
	if err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.device, err)
	}
	if n != len(frame) {
		return fmt.Errorf("short write to %s: %d of %d bytes", s.device, n, len(frame))
	}
	return nil
}

// Close closes the port. Closing twice is a no-op.
func (s *SerialTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *SerialTransport) Device() string {
	return s.device
}
