package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dougsko/automagic/pkg/bandplan"
	"github.com/dougsko/automagic/pkg/civ"
	"github.com/dougsko/automagic/pkg/logging"
	"github.com/dougsko/automagic/pkg/storage"
	"go.uber.org/multierr"
)

var (
	// ErrNoRadioInfo is returned by radio-affecting actions before the first
	// valid logger broadcast arrived.
	ErrNoRadioInfo = errors.New("no radio info received yet")

	ErrUnknownBand  = errors.New("frequency outside known bands")
	ErrInvalidEdges = errors.New("lower edge must be below upper edge")
	ErrInvalidInput = errors.New("invalid input")
)

// Limits applied to operator supplied values.
const (
	MinRefLevel = -20
	MaxRefLevel = 20
	MinPower    = 0
	MaxPower    = 100
)

// State is the engine's tracking state.
type State int

const (
	StateUninitialized State = iota
	StateTracking
	StateZoomed
)

func (s State) String() string {
	switch s {
	case StateTracking:
		return "Tracking"
	case StateZoomed:
		return "Zoomed"
	default:
		return "Uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Store is the band/mode settings store the engine reads and writes.
type Store interface {
	Get(k storage.Key) storage.Settings
	Update(k storage.Key, fn func(*storage.Settings))
	Snapshot() []storage.Entry
	SetBool(key string, v bool)
	Save() error
}

// Writer is the sink for CI-V frames.
type Writer interface {
	Write(frame []byte) error
}

// RadioSettings are the operator settings that shape the frames.
type RadioSettings struct {
	Address      byte
	EdgeSet      int
	ZoomWidthKHz int
}

// Snapshot is the engine state as seen by observers.
type Snapshot struct {
	State             State         `json:"state"`
	FrequencyKHz      int           `json:"frequency_khz"`
	Band              int           `json:"band"`
	BandName          string        `json:"band_name"`
	Mode              bandplan.Mode `json:"mode"`
	LowerKHz          int           `json:"lower_khz"`
	UpperKHz          int           `json:"upper_khz"`
	RefLevel          int           `json:"ref_level"`
	PowerPercent      int           `json:"power_percent"`
	Zoomed            bool          `json:"zoomed"`
	Barefoot          bool          `json:"barefoot"`
	RadioInfoReceived bool          `json:"radio_info_received"`
	TransportError    string        `json:"transport_error,omitempty"`
}

// Engine keeps the radio's scope edges, reference level and power in step
// with the logger's band and mode. Every transition runs under one mutex.
type Engine struct {
	mu    sync.Mutex
	radio RadioSettings
	store Store
	out   Writer

	state     State
	freqKHz   int
	band      bandplan.Band
	mode      bandplan.Mode
	lowerKHz  int // edges currently shown on the radio
	upperKHz  int
	barefoot  bool
	radioInfo bool
	lastErr   error

	subs subscribers
}

// New creates an engine in the Uninitialized state.
func New(radio RadioSettings, store Store, out Writer) *Engine {
	return &Engine{
		radio: radio,
		store: store,
		out:   out,
		band:  bandplan.Unknown,
	}
}

func (e *Engine) key() storage.Key {
	return storage.Key{Band: e.band.Index, Mode: e.mode}
}

// send writes frames in order. Failures are logged and combined; the
// remaining frames are still attempted.
func (e *Engine) send(frames ...[]byte) error {
	var errs error
	for _, f := range frames {
		if err := e.out.Write(f); err != nil {
			logging.Warnf("engine", "write failed (%s): %v", civ.Describe(f), err)
			errs = multierr.Append(errs, err)
			continue
		}
		logging.Debugf("engine", "sent % x (%s)", f, civ.Describe(f))
	}
	e.lastErr = errs
	if errs != nil {
		return fmt.Errorf("transport: %w", errs)
	}
	return nil
}

// edgeFramesLocked returns the edge command. Fixed mode and the edge-set slot
// are selected again before every edge write.
func (e *Engine) edgeFramesLocked(lower, upper int) [][]byte {
	return [][]byte{
		civ.SetFixedMode(e.radio.Address),
		civ.SetEdgeSet(e.radio.Address, byte(e.radio.EdgeSet)),
		civ.SetEdges(e.radio.Address, e.band.Segment, byte(e.radio.EdgeSet), lower, upper),
	}
}

func (e *Engine) powerFrame(percent int) []byte {
	if e.barefoot {
		percent = MaxPower
	}
	return civ.SetPwrLevel(e.radio.Address, percent)
}

// Current returns the active band index (-1 before the first report) and mode.
func (e *Engine) Current() (int, bandplan.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.band.Index, e.mode
}

// ObserveFrequency records the live frequency used to centre the zoom window.
func (e *Engine) ObserveFrequency(kHz int) {
	e.mu.Lock()
	changed := e.freqKHz != kHz
	e.freqKHz = kHz
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// OnBandModeChanged switches to the settings of (band, mode) and pushes the
// complete set of frames to the radio.
func (e *Engine) OnBandModeChanged(kHz int, band bandplan.Band, mode bandplan.Mode) error {
	if !band.Known() {
		return ErrUnknownBand
	}
	if mode == bandplan.ModeUnknown {
		return fmt.Errorf("%w: mode", ErrInvalidInput)
	}

	e.mu.Lock()
	e.radioInfo = true
	e.freqKHz = kHz
	e.band = band
	e.mode = mode
	err := e.pushLocked()
	e.mu.Unlock()

	logging.Infof("engine", "%s %s at %d kHz", band.Name, mode, kHz)
	e.notify()
	return err
}

// pushLocked restores the stored settings of the current key and sends all
// five frames.
func (e *Engine) pushLocked() error {
	st := e.store.Get(e.key())
	e.state = StateTracking
	e.lowerKHz, e.upperKHz = st.LowerKHz, st.UpperKHz

	frames := e.edgeFramesLocked(st.LowerKHz, st.UpperKHz)
	return e.send(append(frames,
		civ.SetRefLevel(e.radio.Address, st.RefLevel),
		e.powerFrame(st.PowerPercent),
	)...)
}

// OnUserEditEdges stores new edges for the current band and mode. A manual
// edit always leaves Zoomed.
func (e *Engine) OnUserEditEdges(lowerKHz, upperKHz int) error {
	e.mu.Lock()
	if !e.radioInfo {
		e.mu.Unlock()
		return ErrNoRadioInfo
	}
	if lowerKHz <= 0 || lowerKHz >= upperKHz {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d..%d kHz", ErrInvalidEdges, lowerKHz, upperKHz)
	}

	var ref int
	e.store.Update(e.key(), func(st *storage.Settings) {
		st.LowerKHz, st.UpperKHz = lowerKHz, upperKHz
		ref = st.RefLevel
	})
	e.state = StateTracking
	e.lowerKHz, e.upperKHz = lowerKHz, upperKHz
	err := e.send(append(e.edgeFramesLocked(lowerKHz, upperKHz),
		civ.SetRefLevel(e.radio.Address, ref))...)
	e.mu.Unlock()

	e.notify()
	return err
}

// OnUserEditEdgesText is OnUserEditEdges for typed values. Non-numeric text
// is discarded with ErrInvalidInput.
func (e *Engine) OnUserEditEdgesText(lower, upper string) error {
	l, err := strconv.Atoi(strings.TrimSpace(lower))
	if err != nil {
		return fmt.Errorf("%w: lower edge %q", ErrInvalidInput, lower)
	}
	u, err := strconv.Atoi(strings.TrimSpace(upper))
	if err != nil {
		return fmt.Errorf("%w: upper edge %q", ErrInvalidInput, upper)
	}
	return e.OnUserEditEdges(l, u)
}

// OnToggleZoomIn centres a window of the configured width on the live
// frequency and switches to the zoomed reference level.
func (e *Engine) OnToggleZoomIn() error {
	e.mu.Lock()
	if !e.radioInfo {
		e.mu.Unlock()
		return ErrNoRadioInfo
	}

	w := e.radio.ZoomWidthKHz
	lower := e.freqKHz - w/2
	upper := lower + w
	st := e.store.Get(e.key())

	e.state = StateZoomed
	e.lowerKHz, e.upperKHz = lower, upper
	err := e.send(append(e.edgeFramesLocked(lower, upper),
		civ.SetRefLevel(e.radio.Address, st.RefLevelZoomed))...)
	e.mu.Unlock()

	e.notify()
	return err
}

// OnBandModeButton restores the stored edges and reference level.
func (e *Engine) OnBandModeButton() error {
	e.mu.Lock()
	if !e.radioInfo {
		e.mu.Unlock()
		return ErrNoRadioInfo
	}

	st := e.store.Get(e.key())
	e.state = StateTracking
	e.lowerKHz, e.upperKHz = st.LowerKHz, st.UpperKHz
	err := e.send(append(e.edgeFramesLocked(st.LowerKHz, st.UpperKHz),
		civ.SetRefLevel(e.radio.Address, st.RefLevel))...)
	e.mu.Unlock()

	e.notify()
	return err
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OnUserEditRefLevel sends a reference level. It is stored, in the zoomed or
// normal slot, only once radio info was received.
func (e *Engine) OnUserEditRefLevel(db int) error {
	db = clamp(db, MinRefLevel, MaxRefLevel)

	e.mu.Lock()
	if e.radioInfo {
		zoomed := e.state == StateZoomed
		e.store.Update(e.key(), func(st *storage.Settings) {
			if zoomed {
				st.RefLevelZoomed = db
			} else {
				st.RefLevel = db
			}
		})
	}
	err := e.send(civ.SetRefLevel(e.radio.Address, db))
	e.mu.Unlock()

	e.notify()
	return err
}

// OnUserEditPowerLevel sends a power ceiling in percent, stored for the
// current band and mode once radio info was received.
func (e *Engine) OnUserEditPowerLevel(percent int) error {
	percent = clamp(percent, MinPower, MaxPower)

	e.mu.Lock()
	if e.radioInfo {
		e.store.Update(e.key(), func(st *storage.Settings) { st.PowerPercent = percent })
	}
	err := e.send(e.powerFrame(percent))
	e.mu.Unlock()

	e.notify()
	return err
}

// OnToggleBarefoot flips barefoot mode: full drive regardless of the stored
// power ceiling.
func (e *Engine) OnToggleBarefoot() error {
	e.mu.Lock()
	if !e.radioInfo {
		e.mu.Unlock()
		return ErrNoRadioInfo
	}

	e.barefoot = !e.barefoot
	st := e.store.Get(e.key())
	err := e.send(e.powerFrame(st.PowerPercent))
	on := e.barefoot
	e.mu.Unlock()

	logging.Infof("engine", "barefoot %t", on)
	e.notify()
	return err
}

// SetBarefoot restores the persisted barefoot flag without sending anything.
func (e *Engine) SetBarefoot(on bool) {
	e.mu.Lock()
	e.barefoot = on
	e.mu.Unlock()
}

// ApplyRadioSettings replaces the radio settings. Once radio info was
// received the full update is pushed again with the new settings.
func (e *Engine) ApplyRadioSettings(rs RadioSettings) error {
	e.mu.Lock()
	e.radio = rs
	var err error
	if e.radioInfo {
		err = e.pushLocked()
	}
	e.mu.Unlock()

	e.notify()
	return err
}

// RadioSettings returns the settings in use.
func (e *Engine) RadioSettings() RadioSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.radio
}

// Settings returns the whole band/mode table.
func (e *Engine) Settings() []storage.Entry {
	return e.store.Snapshot()
}

// Save persists the band/mode table and the barefoot flag.
func (e *Engine) Save() error {
	e.mu.Lock()
	e.store.SetBool(storage.KeyBarefoot, e.barefoot)
	e.mu.Unlock()

	if err := e.store.Save(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		State:             e.state,
		FrequencyKHz:      e.freqKHz,
		Band:              e.band.Index,
		BandName:          e.band.Name,
		Mode:              e.mode,
		LowerKHz:          e.lowerKHz,
		UpperKHz:          e.upperKHz,
		Zoomed:            e.state == StateZoomed,
		Barefoot:          e.barefoot,
		RadioInfoReceived: e.radioInfo,
	}
	if e.radioInfo {
		st := e.store.Get(e.key())
		s.RefLevel = st.RefLevel
		if s.Zoomed {
			s.RefLevel = st.RefLevelZoomed
		}
		s.PowerPercent = st.PowerPercent
	}
	if e.lastErr != nil {
		s.TransportError = e.lastErr.Error()
	}
	return s
}

func (e *Engine) notify() {
	e.subs.publish(e.Snapshot())
}
