// Package listener receives radio info broadcasts from contest loggers and
// turns band/mode transitions into engine calls.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/dougsko/automagic/pkg/bandplan"
	"github.com/dougsko/automagic/pkg/logging"
	"github.com/dougsko/automagic/pkg/verbose"
)

// Tracker is the part of the engine a listener drives.
type Tracker interface {
	Current() (band int, mode bandplan.Mode)
	ObserveFrequency(kHz int)
	OnBandModeChanged(kHz int, band bandplan.Band, mode bandplan.Mode) error
}

// Report is a relevant frequency report extracted from one datagram.
type Report struct {
	KHz  int
	Mode bandplan.Mode
}

// Decoder extracts a report from a datagram. ok is false for datagrams that
// are malformed, of another type, or not addressed to us.
type Decoder interface {
	Decode(data []byte) (r Report, ok bool)
}

const maxDatagram = 8192

// Listener runs one receive loop for one logger protocol.
type Listener struct {
	name    string
	port    int
	decoder Decoder
	tracker Tracker
}

// New creates a listener bound to port on all interfaces once Run is called.
func New(name string, port int, decoder Decoder, tracker Tracker) *Listener {
	return &Listener{
		name:    name,
		port:    port,
		decoder: decoder,
		tracker: tracker,
	}
}

func (l *Listener) Name() string { return l.name }

// Run binds the socket and processes datagrams until ctx is cancelled. It
// returns an error only if the socket cannot be bound.
func (l *Listener) Run(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("", strconv.Itoa(l.port)))
	if err != nil {
		return fmt.Errorf("%s: failed to bind UDP port %d: %w", l.name, l.port, err)
	}
	return l.Serve(ctx, conn)
}

// Serve processes datagrams from conn until ctx is cancelled, then closes
// conn.
func (l *Listener) Serve(ctx context.Context, conn net.PacketConn) error {
	logging.Infof(l.name, "listening on %s", conn.LocalAddr())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logging.Infof(l.name, "listener stopped")
				return nil
			}
			logging.Warnf(l.name, "receive error: %v", err)
			continue
		}
		logging.Debugf(l.name, "%d bytes from %s", n, addr)
		verbose.Dump(l.name, "datagram from "+addr.String(), buf[:n])
		l.Handle(buf[:n])
	}
}

// Handle processes one datagram.
func (l *Listener) Handle(data []byte) {
	r, ok := l.decoder.Decode(data)
	if !ok {
		return
	}
	verbose.Printf(l.name, "report %d kHz %s", r.KHz, r.Mode)

	band := bandplan.ResolveKHz(r.KHz)
	if !band.Known() {
		logging.Debugf(l.name, "ignoring %d kHz: outside known bands", r.KHz)
		return
	}

	l.tracker.ObserveFrequency(r.KHz)

	curBand, curMode := l.tracker.Current()
	if curBand == band.Index && curMode == r.Mode {
		return
	}

	logging.Infof(l.name, "band/mode change: %d kHz %s %s", r.KHz, band.Name, r.Mode)
	if err := l.tracker.OnBandModeChanged(r.KHz, band, r.Mode); err != nil {
		logging.Warnf(l.name, "update failed: %v", err)
	}
}
