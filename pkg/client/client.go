package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/automagic/pkg/protocol"
)

// SocketClient represents a client connection to the sync engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// SettingsEntry is one row of the band/mode table returned by SETTINGS
type SettingsEntry struct {
	Key struct {
		Band int    `json:"band"`
		Mode string `json:"mode"`
	} `json:"key"`
	BandName string `json:"band_name"`
	Settings struct {
		LowerKHz       int `json:"lower_khz"`
		UpperKHz       int `json:"upper_khz"`
		RefLevel       int `json:"ref_level"`
		RefLevelZoomed int `json:"ref_level_zoomed"`
		PowerPercent   int `json:"power_percent"`
	} `json:"settings"`
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	// Connect to Unix socket
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	// Set read/write timeout
	conn.SetDeadline(time.Now().Add(c.timeout))

	// Send command
	_, err = conn.Write([]byte(cmd + "\n"))
	if err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	// Read response
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	// Parse JSON response
	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// statusCommand sends cmd and decodes the status carried by its response
func (c *SocketClient) statusCommand(cmd, what string) (*protocol.Status, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("%s error: %s", what, resp.Error)
	}

	statusData, ok := resp.Data["status"]
	if !ok {
		return nil, fmt.Errorf("status not found in response")
	}

	// Convert to JSON and back to parse properly
	statusJSON, _ := json.Marshal(statusData)
	var status protocol.Status
	if err := json.Unmarshal(statusJSON, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}

	return &status, nil
}

// GetStatus gets the current engine status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	return c.statusCommand(protocol.CmdStatus, "status")
}

// SetEdges sets the scope edges for the current band and mode. The values
// are sent as typed; the engine rejects non-numeric or out-of-order edges.
func (c *SocketClient) SetEdges(lower, upper string) (*protocol.Status, error) {
	return c.statusCommand(fmt.Sprintf("%s:%s:%s", protocol.CmdEdges, lower, upper), "edges")
}

// Zoom centres a narrow window on the current frequency
func (c *SocketClient) Zoom() (*protocol.Status, error) {
	return c.statusCommand(protocol.CmdZoom, "zoom")
}

// BandMode restores the stored edges for the current band and mode
func (c *SocketClient) BandMode() (*protocol.Status, error) {
	return c.statusCommand(protocol.CmdBandMode, "bandmode")
}

// SetRefLevel sets the scope reference level in dB
func (c *SocketClient) SetRefLevel(db int) (*protocol.Status, error) {
	return c.statusCommand(fmt.Sprintf("%s:%d", protocol.CmdRefLevel, db), "reflevel")
}

// SetPower sets the transmit power ceiling in percent
func (c *SocketClient) SetPower(percent int) (*protocol.Status, error) {
	return c.statusCommand(fmt.Sprintf("%s:%d", protocol.CmdPower, percent), "power")
}

// ToggleBarefoot flips barefoot mode
func (c *SocketClient) ToggleBarefoot() (*protocol.Status, error) {
	return c.statusCommand(protocol.CmdBarefoot, "barefoot")
}

// Settings returns the band/mode settings table
func (c *SocketClient) Settings() ([]SettingsEntry, error) {
	resp, err := c.SendCommand(protocol.CmdSettings)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("settings error: %s", resp.Error)
	}

	settingsData, ok := resp.Data["settings"]
	if !ok {
		return []SettingsEntry{}, nil
	}

	settingsJSON, _ := json.Marshal(settingsData)
	var entries []SettingsEntry
	if err := json.Unmarshal(settingsJSON, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	return entries, nil
}

// Save persists the settings table
func (c *SocketClient) Save() error {
	resp, err := c.SendCommand(protocol.CmdSave)
	if err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("save error: %s", resp.Error)
	}

	return nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	resp, err := c.SendCommand(protocol.CmdPing)
	if err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("ping error: %s", resp.Error)
	}

	return nil
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
