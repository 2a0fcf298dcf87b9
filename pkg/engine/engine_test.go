package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dougsko/automagic/pkg/bandplan"
	"github.com/dougsko/automagic/pkg/civ"
	"github.com/dougsko/automagic/pkg/hardware"
	"github.com/dougsko/automagic/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ic7300 = 0x94

var (
	band20m = bandplan.ByIndex(5)
	band40m = bandplan.ByIndex(3)
)

func newTestEngine(t *testing.T) (*Engine, *storage.BandStore, *hardware.MockTransport) {
	t.Helper()
	store := storage.NewMemoryStore()
	out := hardware.NewQuietMockTransport()
	e := New(RadioSettings{Address: ic7300, EdgeSet: 1, ZoomWidthKHz: 20}, store, out)
	return e, store, out
}

// edgeCommand is the frame sequence of one edge write.
func edgeCommand(radio byte, segment int, slot byte, lower, upper int) [][]byte {
	return [][]byte{
		civ.SetFixedMode(radio),
		civ.SetEdgeSet(radio, slot),
		civ.SetEdges(radio, segment, slot, lower, upper),
	}
}

func TestNewEngine(t *testing.T) {
	e, _, out := newTestEngine(t)

	s := e.Snapshot()
	assert.Equal(t, StateUninitialized, s.State)
	assert.False(t, s.RadioInfoReceived)
	assert.Equal(t, -1, s.Band)
	assert.Equal(t, "?m", s.BandName)

	band, mode := e.Current()
	assert.Equal(t, -1, band)
	assert.Equal(t, bandplan.ModeUnknown, mode)
	assert.Empty(t, out.Frames())
}

func TestOnBandModeChanged(t *testing.T) {
	t.Run("First Report Pushes Five Frames", func(t *testing.T) {
		e, _, out := newTestEngine(t)

		require.NoError(t, e.OnBandModeChanged(14195, band20m, bandplan.ModePhone))

		assert.Equal(t, [][]byte{
			civ.SetFixedMode(ic7300),
			civ.SetEdgeSet(ic7300, 1),
			civ.SetEdges(ic7300, 6, 1, 14000, 14350),
			civ.SetRefLevel(ic7300, 0),
			civ.SetPwrLevel(ic7300, 100),
		}, out.Frames())

		s := e.Snapshot()
		assert.Equal(t, StateTracking, s.State)
		assert.True(t, s.RadioInfoReceived)
		assert.Equal(t, 14195, s.FrequencyKHz)
		assert.Equal(t, "20m", s.BandName)
		assert.Equal(t, bandplan.ModePhone, s.Mode)
		assert.Equal(t, 14000, s.LowerKHz)
		assert.Equal(t, 14350, s.UpperKHz)
	})

	t.Run("Uses Stored Settings", func(t *testing.T) {
		e, store, out := newTestEngine(t)
		store.Set(storage.Key{Band: 3, Mode: bandplan.ModeCW},
			storage.Settings{LowerKHz: 7000, UpperKHz: 7040, RefLevel: -6, RefLevelZoomed: 3, PowerPercent: 50})

		require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))

		frames := out.Frames()
		require.Len(t, frames, 5)
		assert.Equal(t, civ.SetEdges(ic7300, 4, 1, 7000, 7040), frames[2])
		assert.Equal(t, civ.SetRefLevel(ic7300, -6), frames[3])
		assert.Equal(t, civ.SetPwrLevel(ic7300, 50), frames[4])
	})

	t.Run("Exits Zoomed", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		require.NoError(t, e.OnBandModeChanged(14195, band20m, bandplan.ModePhone))
		require.NoError(t, e.OnToggleZoomIn())
		require.Equal(t, StateZoomed, e.Snapshot().State)

		require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))
		assert.Equal(t, StateTracking, e.Snapshot().State)
		assert.False(t, e.Snapshot().Zoomed)
	})

	t.Run("Unknown Band Rejected", func(t *testing.T) {
		e, _, out := newTestEngine(t)
		err := e.OnBandModeChanged(11000, bandplan.Unknown, bandplan.ModePhone)
		assert.ErrorIs(t, err, ErrUnknownBand)
		assert.Empty(t, out.Frames())
		assert.False(t, e.Snapshot().RadioInfoReceived)
	})

	t.Run("Unknown Mode Rejected", func(t *testing.T) {
		e, _, out := newTestEngine(t)
		err := e.OnBandModeChanged(14195, band20m, bandplan.ModeUnknown)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Empty(t, out.Frames())
	})
}

func TestActionsBeforeRadioInfo(t *testing.T) {
	e, store, out := newTestEngine(t)

	assert.ErrorIs(t, e.OnUserEditEdges(7000, 7300), ErrNoRadioInfo)
	assert.ErrorIs(t, e.OnUserEditEdgesText("7000", "7300"), ErrNoRadioInfo)
	assert.ErrorIs(t, e.OnToggleZoomIn(), ErrNoRadioInfo)
	assert.ErrorIs(t, e.OnBandModeButton(), ErrNoRadioInfo)
	assert.ErrorIs(t, e.OnToggleBarefoot(), ErrNoRadioInfo)
	assert.Empty(t, out.Frames())
	assert.False(t, e.Snapshot().Barefoot)

	t.Run("Ref Level Sent But Not Stored", func(t *testing.T) {
		require.NoError(t, e.OnUserEditRefLevel(-8))
		assert.Equal(t, [][]byte{civ.SetRefLevel(ic7300, -8)}, out.Frames())
		for _, entry := range store.Snapshot() {
			assert.Zero(t, entry.Settings.RefLevel)
		}
	})

	t.Run("Power Sent But Not Stored", func(t *testing.T) {
		out.Reset()
		require.NoError(t, e.OnUserEditPowerLevel(30))
		assert.Equal(t, [][]byte{civ.SetPwrLevel(ic7300, 30)}, out.Frames())
		for _, entry := range store.Snapshot() {
			assert.Equal(t, 100, entry.Settings.PowerPercent)
		}
	})

	assert.Equal(t, StateUninitialized, e.Snapshot().State)
}

func TestOnUserEditEdges(t *testing.T) {
	t.Run("Typed Edges On 40m CW", func(t *testing.T) {
		e, store, out := newTestEngine(t)
		require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))
		out.Reset()

		require.NoError(t, e.OnUserEditEdgesText("7000", "7300"))

		st := store.Get(storage.Key{Band: 3, Mode: bandplan.ModeCW})
		assert.Equal(t, 7000, st.LowerKHz)
		assert.Equal(t, 7300, st.UpperKHz)
		assert.Equal(t, append(edgeCommand(ic7300, 4, 1, 7000, 7300),
			civ.SetRefLevel(ic7300, 0)), out.Frames())

		// Other modes on the band keep their edges.
		assert.Equal(t, 7200, store.Get(storage.Key{Band: 3, Mode: bandplan.ModePhone}).UpperKHz)
	})

	t.Run("Non Numeric Discarded", func(t *testing.T) {
		e, store, out := newTestEngine(t)
		require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))
		out.Reset()

		assert.ErrorIs(t, e.OnUserEditEdgesText("70x0", "7300"), ErrInvalidInput)
		assert.ErrorIs(t, e.OnUserEditEdgesText("7000", ""), ErrInvalidInput)
		assert.Empty(t, out.Frames())
		assert.Equal(t, 7000, store.Get(storage.Key{Band: 3, Mode: bandplan.ModeCW}).LowerKHz)
		assert.Equal(t, 7200, store.Get(storage.Key{Band: 3, Mode: bandplan.ModeCW}).UpperKHz)
	})

	t.Run("Out Of Order Rejected", func(t *testing.T) {
		e, store, out := newTestEngine(t)
		require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))
		out.Reset()

		assert.ErrorIs(t, e.OnUserEditEdges(7300, 7000), ErrInvalidEdges)
		assert.ErrorIs(t, e.OnUserEditEdges(7100, 7100), ErrInvalidEdges)
		assert.Empty(t, out.Frames())
		assert.Equal(t, 7200, store.Get(storage.Key{Band: 3, Mode: bandplan.ModeCW}).UpperKHz)
	})

	t.Run("Edit While Zoomed Exits Zoom", func(t *testing.T) {
		e, store, out := newTestEngine(t)
		store.Set(storage.Key{Band: 5, Mode: bandplan.ModePhone},
			storage.Settings{LowerKHz: 14100, UpperKHz: 14350, RefLevel: 2, RefLevelZoomed: 9, PowerPercent: 100})
		require.NoError(t, e.OnBandModeChanged(14195, band20m, bandplan.ModePhone))
		require.NoError(t, e.OnToggleZoomIn())
		out.Reset()

		require.NoError(t, e.OnUserEditEdges(14150, 14300))
		assert.Equal(t, StateTracking, e.Snapshot().State)
		assert.Equal(t, append(edgeCommand(ic7300, 6, 1, 14150, 14300),
			civ.SetRefLevel(ic7300, 2)), out.Frames())
	})
}

func TestEdgeWritesReselectScopeSlot(t *testing.T) {
	e, _, out := newTestEngine(t)
	require.NoError(t, e.OnBandModeChanged(14195, band20m, bandplan.ModePhone))

	// Every path that writes edges must put the scope back in fixed mode
	// on the configured slot first.
	actions := map[string]func() error{
		"Zoom":      e.OnToggleZoomIn,
		"Band Mode": e.OnBandModeButton,
		"Edit":      func() error { return e.OnUserEditEdges(14100, 14200) },
	}
	for name, action := range actions {
		t.Run(name, func(t *testing.T) {
			out.Reset()
			require.NoError(t, action())

			frames := out.Frames()
			require.Len(t, frames, 4)
			assert.Equal(t, civ.SetFixedMode(ic7300), frames[0])
			assert.Equal(t, civ.SetEdgeSet(ic7300, 1), frames[1])
			assert.Equal(t, civ.EdgesLen, len(frames[2]))
		})
	}
}

func TestZoom(t *testing.T) {
	e, store, out := newTestEngine(t)
	store.Set(storage.Key{Band: 5, Mode: bandplan.ModePhone},
		storage.Settings{LowerKHz: 14100, UpperKHz: 14350, RefLevel: -4, RefLevelZoomed: 7, PowerPercent: 80})
	require.NoError(t, e.OnBandModeChanged(14195, band20m, bandplan.ModePhone))

	t.Run("Zoom In Around Live Frequency", func(t *testing.T) {
		out.Reset()
		require.NoError(t, e.OnToggleZoomIn())

		assert.Equal(t, append(edgeCommand(ic7300, 6, 1, 14185, 14205),
			civ.SetRefLevel(ic7300, 7)), out.Frames())

		s := e.Snapshot()
		assert.Equal(t, StateZoomed, s.State)
		assert.True(t, s.Zoomed)
		assert.Equal(t, 14185, s.LowerKHz)
		assert.Equal(t, 14205, s.UpperKHz)
		assert.Equal(t, 7, s.RefLevel)

		// The zoom window is not stored.
		assert.Equal(t, 14100, store.Get(storage.Key{Band: 5, Mode: bandplan.ModePhone}).LowerKHz)
	})

	t.Run("Follows Observed Frequency", func(t *testing.T) {
		out.Reset()
		e.ObserveFrequency(14250)
		assert.Empty(t, out.Frames(), "observing a frequency sends nothing")

		require.NoError(t, e.OnToggleZoomIn())
		assert.Equal(t, civ.SetEdges(ic7300, 6, 1, 14240, 14260), out.Frames()[2])
	})

	t.Run("Ref Level Edit While Zoomed Goes To Zoomed Slot", func(t *testing.T) {
		require.NoError(t, e.OnUserEditRefLevel(12))
		st := store.Get(storage.Key{Band: 5, Mode: bandplan.ModePhone})
		assert.Equal(t, 12, st.RefLevelZoomed)
		assert.Equal(t, -4, st.RefLevel)
	})

	t.Run("Band Mode Button Restores Stored View", func(t *testing.T) {
		out.Reset()
		require.NoError(t, e.OnBandModeButton())

		assert.Equal(t, append(edgeCommand(ic7300, 6, 1, 14100, 14350),
			civ.SetRefLevel(ic7300, -4)), out.Frames())
		assert.Equal(t, StateTracking, e.Snapshot().State)
		assert.Equal(t, -4, e.Snapshot().RefLevel)
	})
}

func TestRefLevelAndPower(t *testing.T) {
	e, store, out := newTestEngine(t)
	require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))
	key := storage.Key{Band: 3, Mode: bandplan.ModeCW}

	t.Run("Ref Level Stored In Normal Slot", func(t *testing.T) {
		out.Reset()
		require.NoError(t, e.OnUserEditRefLevel(-6))
		assert.Equal(t, -6, store.Get(key).RefLevel)
		assert.Equal(t, [][]byte{civ.SetRefLevel(ic7300, -6)}, out.Frames())
	})

	t.Run("Ref Level Clamped", func(t *testing.T) {
		require.NoError(t, e.OnUserEditRefLevel(-35))
		assert.Equal(t, MinRefLevel, store.Get(key).RefLevel)
		require.NoError(t, e.OnUserEditRefLevel(35))
		assert.Equal(t, MaxRefLevel, store.Get(key).RefLevel)
	})

	t.Run("Power Stored And Clamped", func(t *testing.T) {
		out.Reset()
		require.NoError(t, e.OnUserEditPowerLevel(40))
		assert.Equal(t, 40, store.Get(key).PowerPercent)
		assert.Equal(t, [][]byte{civ.SetPwrLevel(ic7300, 40)}, out.Frames())

		require.NoError(t, e.OnUserEditPowerLevel(140))
		assert.Equal(t, MaxPower, store.Get(key).PowerPercent)
		require.NoError(t, e.OnUserEditPowerLevel(-1))
		assert.Equal(t, MinPower, store.Get(key).PowerPercent)
	})
}

func TestBarefoot(t *testing.T) {
	e, _, out := newTestEngine(t)
	require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))
	require.NoError(t, e.OnUserEditPowerLevel(25))

	t.Run("Toggle On Sends Full Power", func(t *testing.T) {
		out.Reset()
		require.NoError(t, e.OnToggleBarefoot())
		assert.True(t, e.Snapshot().Barefoot)
		assert.Equal(t, [][]byte{civ.SetPwrLevel(ic7300, 100)}, out.Frames())
	})

	t.Run("Power Edits Stored But Overridden", func(t *testing.T) {
		out.Reset()
		require.NoError(t, e.OnUserEditPowerLevel(10))
		assert.Equal(t, 10, e.Snapshot().PowerPercent)
		assert.Equal(t, [][]byte{civ.SetPwrLevel(ic7300, 100)}, out.Frames())
	})

	t.Run("Band Change Keeps Barefoot", func(t *testing.T) {
		out.Reset()
		require.NoError(t, e.OnBandModeChanged(14195, band20m, bandplan.ModePhone))
		frames := out.Frames()
		require.Len(t, frames, 5)
		assert.Equal(t, civ.SetPwrLevel(ic7300, 100), frames[4])
	})

	t.Run("Toggle Off Restores Stored Power", func(t *testing.T) {
		require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))
		out.Reset()
		require.NoError(t, e.OnToggleBarefoot())
		assert.False(t, e.Snapshot().Barefoot)
		assert.Equal(t, [][]byte{civ.SetPwrLevel(ic7300, 10)}, out.Frames())
	})

	t.Run("Restore Without Sending", func(t *testing.T) {
		out.Reset()
		e.SetBarefoot(true)
		assert.True(t, e.Snapshot().Barefoot)
		assert.Empty(t, out.Frames())
	})
}

func TestTransportFailure(t *testing.T) {
	e, _, out := newTestEngine(t)
	boom := errors.New("port unplugged")
	out.FailWith(boom)

	err := e.OnBandModeChanged(14195, band20m, bandplan.ModePhone)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	s := e.Snapshot()
	assert.Equal(t, StateTracking, s.State, "transition completes despite the failure")
	assert.True(t, s.RadioInfoReceived)
	assert.Contains(t, s.TransportError, "port unplugged")

	out.FailWith(nil)
	require.NoError(t, e.OnBandModeButton())
	assert.Empty(t, e.Snapshot().TransportError)
	assert.Len(t, out.Frames(), 4)
}

func TestApplyRadioSettings(t *testing.T) {
	t.Run("Before Radio Info Sends Nothing", func(t *testing.T) {
		e, _, out := newTestEngine(t)
		require.NoError(t, e.ApplyRadioSettings(RadioSettings{Address: 0x98, EdgeSet: 2, ZoomWidthKHz: 10}))
		assert.Empty(t, out.Frames())
		assert.Equal(t, byte(0x98), e.RadioSettings().Address)
	})

	t.Run("After Radio Info Re-pushes", func(t *testing.T) {
		e, _, out := newTestEngine(t)
		require.NoError(t, e.OnBandModeChanged(14195, band20m, bandplan.ModePhone))
		out.Reset()

		require.NoError(t, e.ApplyRadioSettings(RadioSettings{Address: 0x98, EdgeSet: 2, ZoomWidthKHz: 10}))
		assert.Equal(t, [][]byte{
			civ.SetFixedMode(0x98),
			civ.SetEdgeSet(0x98, 2),
			civ.SetEdges(0x98, 6, 2, 14000, 14350),
			civ.SetRefLevel(0x98, 0),
			civ.SetPwrLevel(0x98, 100),
		}, out.Frames())

		out.Reset()
		require.NoError(t, e.OnToggleZoomIn())
		assert.Equal(t, edgeCommand(0x98, 6, 2, 14190, 14200), out.Frames()[:3])
	})
}

func TestSubscribe(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ch, cancel := e.Subscribe()

	require.NoError(t, e.OnBandModeChanged(14195, band20m, bandplan.ModePhone))

	select {
	case s := <-ch:
		assert.Equal(t, "20m", s.BandName)
	case <-time.After(time.Second):
		t.Fatal("Expected a snapshot")
	}

	t.Run("Slow Reader Gets Latest", func(t *testing.T) {
		require.NoError(t, e.OnToggleZoomIn())
		require.NoError(t, e.OnBandModeButton())
		require.NoError(t, e.OnUserEditPowerLevel(60))

		s := <-ch
		assert.Equal(t, 60, s.PowerPercent)
		assert.Equal(t, StateTracking, s.State)

		select {
		case <-ch:
			t.Fatal("Expected only the latest snapshot to be buffered")
		default:
		}
	})

	t.Run("Cancel Closes Channel", func(t *testing.T) {
		cancel()
		cancel()
		_, ok := <-ch
		assert.False(t, ok)

		// Publishing after cancel must not panic.
		require.NoError(t, e.OnBandModeButton())
	})
}

func TestSave(t *testing.T) {
	store, err := storage.NewBandStore(t.TempDir() + "/engine.db")
	require.NoError(t, err)
	defer store.Close()

	e := New(RadioSettings{Address: ic7300, EdgeSet: 1, ZoomWidthKHz: 20}, store, hardware.NewQuietMockTransport())
	require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))
	require.NoError(t, e.OnUserEditPowerLevel(33))
	require.NoError(t, e.OnToggleBarefoot())
	require.NoError(t, e.Save())

	// Reload into a fresh store through the same database.
	require.NoError(t, store.Load())
	assert.True(t, store.GetBool(storage.KeyBarefoot, false))
	assert.Equal(t, 33, store.Get(storage.Key{Band: 3, Mode: bandplan.ModeCW}).PowerPercent)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Uninitialized", StateUninitialized.String())
	assert.Equal(t, "Tracking", StateTracking.String())
	assert.Equal(t, "Zoomed", StateZoomed.String())

	text, err := StateZoomed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Zoomed", string(text))
}
