package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command represents a command sent to the engine over the control socket
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Status is the engine state as reported by STATUS
type Status struct {
	State             string `json:"state"`
	FrequencyKHz      int    `json:"frequency_khz"`
	Band              int    `json:"band"`
	BandName          string `json:"band_name"`
	Mode              string `json:"mode"`
	LowerKHz          int    `json:"lower_khz"`
	UpperKHz          int    `json:"upper_khz"`
	RefLevel          int    `json:"ref_level"`
	PowerPercent      int    `json:"power_percent"`
	Zoomed            bool   `json:"zoomed"`
	Barefoot          bool   `json:"barefoot"`
	RadioInfoReceived bool   `json:"radio_info_received"`
	TransportError    string `json:"transport_error,omitempty"`
}

// ParseCommand parses a text command into a Command struct
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty command")
	}
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(parts[0]),
		Args: make(map[string]interface{}),
	}

	var args string
	if len(parts) > 1 {
		args = parts[1]
	}

	switch cmd.Type {
	case CmdEdges:
		// EDGES:7000:7300
		edgeParts := strings.SplitN(args, ":", 2)
		if len(edgeParts) != 2 {
			return nil, fmt.Errorf("EDGES requires lower:upper")
		}
		cmd.Args["lower"] = strings.TrimSpace(edgeParts[0])
		cmd.Args["upper"] = strings.TrimSpace(edgeParts[1])

	case CmdRefLevel:
		// REFLEVEL:-6
		if args == "" {
			return nil, fmt.Errorf("REFLEVEL requires a value")
		}
		cmd.Args["value"] = strings.TrimSpace(args)

	case CmdPower:
		// POWER:50
		if args == "" {
			return nil, fmt.Errorf("POWER requires a value")
		}
		cmd.Args["value"] = strings.TrimSpace(args)
	}

	return cmd, nil
}

// FormatResponse converts a Response to JSON string
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Protocol commands
const (
	CmdStatus   = "STATUS"
	CmdSettings = "SETTINGS"
	CmdEdges    = "EDGES"
	CmdZoom     = "ZOOM"
	CmdBandMode = "BANDMODE"
	CmdRefLevel = "REFLEVEL"
	CmdPower    = "POWER"
	CmdBarefoot = "BAREFOOT"
	CmdSave     = "SAVE"
	CmdQuit     = "QUIT"
	CmdPing     = "PING"
)
