package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dougsko/automagic/pkg/logging"
	"github.com/dougsko/automagic/pkg/protocol"
)

// Server exposes the engine on a Unix domain socket using the line protocol
// of package protocol.
type Server struct {
	engine     *Engine
	socketPath string
	listener   net.Listener
	running    bool
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	startTime  time.Time
}

// NewServer creates a control socket server for e
func NewServer(e *Engine, socketPath string) *Server {
	return &Server{
		engine:     e,
		socketPath: socketPath,
	}
}

// Start creates the socket and starts accepting connections
func (s *Server) Start() error {
	// Remove stale socket file
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}

	// Set socket permissions (readable/writable by owner and group)
	if err := os.Chmod(s.socketPath, 0660); err != nil {
		logging.Warnf("socket", "failed to set socket permissions: %v", err)
	}

	s.mutex.Lock()
	s.listener = listener
	s.running = true
	s.startTime = time.Now()
	s.mutex.Unlock()

	logging.Infof("socket", "control socket listening on %s", s.socketPath)

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Stop closes the socket and waits for the accept loop to exit
func (s *Server) Stop() error {
	s.mutex.Lock()
	s.running = false
	listener := s.listener
	s.mutex.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.wg.Wait()

	os.Remove(s.socketPath)
	return nil
}

func (s *Server) isRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// acceptConnections accepts and handles socket connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isRunning() || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Warnf("socket", "accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single socket connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := s.HandleCommand(cmd)
		conn.Write([]byte(response.String() + "\n"))

		// Close connection after QUIT command
		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// HandleCommand executes one parsed command
func (s *Server) HandleCommand(cmd *protocol.Command) *protocol.Response {
	e := s.engine

	switch cmd.Type {
	case protocol.CmdStatus:
		return s.statusResponse(nil)

	case protocol.CmdSettings:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"settings": e.Settings(),
		})

	case protocol.CmdEdges:
		lower, _ := cmd.Args["lower"].(string)
		upper, _ := cmd.Args["upper"].(string)
		return s.statusResponse(e.OnUserEditEdgesText(lower, upper))

	case protocol.CmdZoom:
		return s.statusResponse(e.OnToggleZoomIn())

	case protocol.CmdBandMode:
		return s.statusResponse(e.OnBandModeButton())

	case protocol.CmdRefLevel:
		v, err := intArg(cmd, "value")
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return s.statusResponse(e.OnUserEditRefLevel(v))

	case protocol.CmdPower:
		v, err := intArg(cmd, "value")
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return s.statusResponse(e.OnUserEditPowerLevel(v))

	case protocol.CmdBarefoot:
		return s.statusResponse(e.OnToggleBarefoot())

	case protocol.CmdSave:
		if err := e.Save(); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "settings saved",
		})

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

// statusResponse reports err, or the state after a successful action.
func (s *Server) statusResponse(err error) *protocol.Response {
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	s.mutex.RLock()
	uptime := time.Since(s.startTime).Round(time.Second).String()
	s.mutex.RUnlock()

	return protocol.NewSuccessResponse(map[string]interface{}{
		"status": s.engine.Snapshot(),
		"uptime": uptime,
	})
}

func intArg(cmd *protocol.Command, name string) (int, error) {
	raw, _ := cmd.Args[name].(string)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidInput, name, raw)
	}
	return v, nil
}
