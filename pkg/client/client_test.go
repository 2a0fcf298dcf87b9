package client

import (
	"path/filepath"
	"testing"

	"github.com/dougsko/automagic/pkg/bandplan"
	"github.com/dougsko/automagic/pkg/engine"
	"github.com/dougsko/automagic/pkg/hardware"
	"github.com/dougsko/automagic/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDaemon(t *testing.T) (*SocketClient, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.RadioSettings{Address: 0x94, EdgeSet: 1, ZoomWidthKHz: 20},
		storage.NewMemoryStore(), hardware.NewQuietMockTransport())

	socketPath := filepath.Join(t.TempDir(), "client.sock")
	s := engine.NewServer(e, socketPath)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop() })

	return NewSocketClient(socketPath), e
}

func TestSocketClient(t *testing.T) {
	c, e := newTestDaemon(t)

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, c.Ping())
		assert.True(t, c.IsConnected())
	})

	t.Run("Status Before Radio Info", func(t *testing.T) {
		status, err := c.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, "Uninitialized", status.State)
		assert.False(t, status.RadioInfoReceived)
	})

	t.Run("Zoom Before Radio Info", func(t *testing.T) {
		_, err := c.Zoom()
		assert.ErrorContains(t, err, engine.ErrNoRadioInfo.Error())
	})

	require.NoError(t, e.OnBandModeChanged(14195, bandplan.ByIndex(5), bandplan.ModePhone))

	t.Run("Actions", func(t *testing.T) {
		status, err := c.SetEdges("14150", "14300")
		require.NoError(t, err)
		assert.Equal(t, 14150, status.LowerKHz)
		assert.Equal(t, 14300, status.UpperKHz)
		assert.Equal(t, "20m", status.BandName)
		assert.Equal(t, "Phone", status.Mode)

		status, err = c.Zoom()
		require.NoError(t, err)
		assert.True(t, status.Zoomed)
		assert.Equal(t, 14185, status.LowerKHz)

		status, err = c.SetRefLevel(-3)
		require.NoError(t, err)
		assert.Equal(t, -3, status.RefLevel)

		status, err = c.BandMode()
		require.NoError(t, err)
		assert.False(t, status.Zoomed)
		assert.Equal(t, 14150, status.LowerKHz)

		status, err = c.SetPower(45)
		require.NoError(t, err)
		assert.Equal(t, 45, status.PowerPercent)

		status, err = c.ToggleBarefoot()
		require.NoError(t, err)
		assert.True(t, status.Barefoot)
	})

	t.Run("Rejected Edges", func(t *testing.T) {
		_, err := c.SetEdges("14300", "14150")
		assert.ErrorContains(t, err, "edges error")
	})

	t.Run("Settings", func(t *testing.T) {
		entries, err := c.Settings()
		require.NoError(t, err)
		require.Len(t, entries, len(bandplan.Modes)*bandplan.NumBands)

		var found bool
		for _, entry := range entries {
			if entry.Key.Band == 5 && entry.Key.Mode == "Phone" {
				found = true
				assert.Equal(t, "20m", entry.BandName)
				assert.Equal(t, 14150, entry.Settings.LowerKHz)
				assert.Equal(t, 45, entry.Settings.PowerPercent)
			}
		}
		assert.True(t, found)
	})

	t.Run("Save", func(t *testing.T) {
		assert.NoError(t, c.Save())
	})
}

func TestSocketClientNoDaemon(t *testing.T) {
	c := NewSocketClient(filepath.Join(t.TempDir(), "missing.sock"))

	assert.False(t, c.IsConnected())
	_, err := c.GetStatus()
	assert.ErrorContains(t, err, "failed to connect to socket")
}
