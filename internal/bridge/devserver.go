package bridge

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// devMessage is the websocket frame exchanged with a dev harness page.
// Outbound frames carry a command; inbound frames carry either an event or a
// readiness report.
type devMessage struct {
	Command   *Command `json:"command,omitempty"`
	Event     *Event   `json:"event,omitempty"`
	SDKReady  string   `json:"sdkReady,omitempty"`
	Container *struct {
		Pane   string `json:"pane"`
		Role   string `json:"role"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"container,omitempty"`
}

// DevServer exposes the bridge over a localhost websocket so the engine can be
// driven from a plain browser page during development, without the Wails shell
type DevServer struct {
	bridge *Bridge

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
	url   string

	upgrader websocket.Upgrader
}

// NewDevServer creates a dev bridge host for the given bridge
func NewDevServer(b *Bridge) *DevServer {
	return &DevServer{
		bridge: b,
		conns:  make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			// Local development only; the harness page is served from file://
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// URL returns the websocket URL once the server has started
func (s *DevServer) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// SendCommand implements Sender by broadcasting to every connected harness
func (s *DevServer) SendCommand(cmd Command) {
	data, err := json.Marshal(devMessage{Command: &cmd})
	if err != nil {
		log.Printf("[DevBridge] Failed to marshal command: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[DevBridge] Dropping connection: %v", err)
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

// Start listens on a random localhost port and serves the bridge endpoint
func (s *DevServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", s.handleBridge)

	// Listen on a random available port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start dev bridge: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	s.mu.Lock()
	s.url = fmt.Sprintf("ws://127.0.0.1:%d/bridge", port)
	s.mu.Unlock()
	log.Printf("[DevBridge] Listening on %s", s.URL())

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil {
			log.Printf("[DevBridge] Server stopped: %v", err)
		}
	}()

	return nil
}

func (s *DevServer) handleBridge(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[DevBridge] Upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()
	log.Printf("[DevBridge] Harness connected from %s", conn.RemoteAddr())

	go s.readLoop(conn)
}

func (s *DevServer) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[DevBridge] Harness disconnected: %v", err)
			return
		}

		var msg devMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[DevBridge] Bad frame: %v", err)
			continue
		}

		switch {
		case msg.Event != nil:
			s.bridge.Dispatch(*msg.Event)
		case msg.SDKReady != "":
			s.bridge.MarkSDKReady(msg.SDKReady)
		case msg.Container != nil:
			c := msg.Container
			s.bridge.MarkContainer(c.Pane, c.Role, c.Width, c.Height)
		}
	}
}
