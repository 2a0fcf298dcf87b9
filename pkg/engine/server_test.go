package engine

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dougsko/automagic/pkg/bandplan"
	"github.com/dougsko/automagic/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*Server, *Engine, string) {
	t.Helper()
	e, _, _ := newTestEngine(t)
	socketPath := filepath.Join(t.TempDir(), "automagic.sock")

	s := NewServer(e, socketPath)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop() })
	return s, e, socketPath
}

// roundTrip sends each line on one connection and returns the responses
func roundTrip(t *testing.T, socketPath string, lines ...string) []protocol.Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	var out []protocol.Response
	for _, line := range lines {
		_, err := conn.Write([]byte(line + "\n"))
		require.NoError(t, err)
		require.True(t, scanner.Scan(), "no response to %q", line)

		var resp protocol.Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		out = append(out, resp)
	}
	return out
}

func TestServerCommands(t *testing.T) {
	_, e, socketPath := startTestServer(t)

	t.Run("Status Before Radio Info", func(t *testing.T) {
		resp := roundTrip(t, socketPath, "STATUS")[0]
		require.True(t, resp.Success)
		status := resp.Data["status"].(map[string]interface{})
		assert.Equal(t, "Uninitialized", status["state"])
		assert.Equal(t, false, status["radio_info_received"])
		assert.Contains(t, resp.Data, "uptime")
	})

	t.Run("Actions Need Radio Info", func(t *testing.T) {
		resp := roundTrip(t, socketPath, "ZOOM")[0]
		assert.False(t, resp.Success)
		assert.Equal(t, ErrNoRadioInfo.Error(), resp.Error)
	})

	require.NoError(t, e.OnBandModeChanged(7025, band40m, bandplan.ModeCW))

	t.Run("Several Commands On One Connection", func(t *testing.T) {
		resps := roundTrip(t, socketPath, "EDGES:7000:7300", "zoom", "REFLEVEL:5", "BANDMODE", "POWER:40")
		for i, resp := range resps {
			assert.True(t, resp.Success, "command %d: %s", i, resp.Error)
		}

		zoomed := resps[1].Data["status"].(map[string]interface{})
		assert.Equal(t, "Zoomed", zoomed["state"])
		assert.Equal(t, float64(7015), zoomed["lower_khz"])

		last := resps[4].Data["status"].(map[string]interface{})
		assert.Equal(t, "Tracking", last["state"])
		assert.Equal(t, float64(7000), last["lower_khz"])
		assert.Equal(t, float64(7300), last["upper_khz"])
		assert.Equal(t, float64(40), last["power_percent"])
		assert.Equal(t, "CW", last["mode"])
	})

	t.Run("Invalid Input", func(t *testing.T) {
		resps := roundTrip(t, socketPath, "EDGES:7300:7000", "EDGES:abc:7300", "POWER:lots", "EDGES:7000", "FOO")
		assert.False(t, resps[0].Success)
		assert.Contains(t, resps[0].Error, ErrInvalidEdges.Error())
		assert.False(t, resps[1].Success)
		assert.Contains(t, resps[1].Error, ErrInvalidInput.Error())
		assert.False(t, resps[2].Success)
		assert.False(t, resps[3].Success)
		assert.Contains(t, resps[3].Error, "parse error")
		assert.False(t, resps[4].Success)
		assert.Contains(t, resps[4].Error, "unknown command")
	})

	t.Run("Settings Table", func(t *testing.T) {
		resp := roundTrip(t, socketPath, "SETTINGS")[0]
		require.True(t, resp.Success)
		entries := resp.Data["settings"].([]interface{})
		assert.Len(t, entries, len(bandplan.Modes)*bandplan.NumBands)
	})

	t.Run("Barefoot And Save", func(t *testing.T) {
		resps := roundTrip(t, socketPath, "BAREFOOT", "SAVE", "PING")
		status := resps[0].Data["status"].(map[string]interface{})
		assert.Equal(t, true, status["barefoot"])
		assert.True(t, resps[1].Success)
		assert.True(t, resps[2].Success)
		assert.Contains(t, resps[2].Data, "pong")
	})

	t.Run("Quit Closes Connection", func(t *testing.T) {
		conn, err := net.Dial("unix", socketPath)
		require.NoError(t, err)
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))

		_, err = conn.Write([]byte("QUIT\n"))
		require.NoError(t, err)

		scanner := bufio.NewScanner(conn)
		require.True(t, scanner.Scan())
		assert.Contains(t, scanner.Text(), "goodbye")
		assert.False(t, scanner.Scan(), "connection should be closed after QUIT")
	})
}

func TestServerStop(t *testing.T) {
	e, _, _ := newTestEngine(t)
	socketPath := filepath.Join(t.TempDir(), "stop.sock")

	s := NewServer(e, socketPath)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	_, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	assert.Error(t, err)

	t.Run("Restart Over Stale Socket", func(t *testing.T) {
		s := NewServer(e, socketPath)
		require.NoError(t, s.Start())
		defer s.Stop()
		resp := roundTrip(t, socketPath, "PING")[0]
		assert.True(t, resp.Success)
	})
}
