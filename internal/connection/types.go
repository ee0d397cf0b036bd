package connection

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrAlreadyStarted  = errors.New("already started")
	ErrQueueFull       = errors.New("outbound queue full")
	ErrClosed          = errors.New("manager closed")
)

// Status is the connection lifecycle state exposed to callers.
type Status int

const (
	StatusUninstantiated Status = iota
	StatusConnecting
	StatusOpen
	StatusClosing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUninstantiated:
		return "uninstantiated"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusChange describes one transition of the manager's status.
type StatusChange struct {
	From     Status
	To       Status
	Attempt  int       // Dial attempts used since the last successful open
	Terminal bool      // True when no further automatic reconnect will happen
	Err      error     // Transport error that caused the transition, if any
	At       time.Time // Local time of the transition
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full target (e.g., ws://127.0.0.1:8000/ws/{session}/{notebook})
	Header           http.Header   // Extra handshake headers (Authorization)
	HandshakeTimeout time.Duration // Dial handshake limit
	PingInterval     time.Duration // Interval between keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
	Clock            clock.Clock   // nil = wall clock
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Scheme     string // "ws" or "wss"
	Host       string // host[:port] of the kernel gateway
	SessionID  string
	NotebookID string

	Header http.Header // Handshake headers, copied into every dial

	ReconnectInterval time.Duration // Fixed delay between dial attempts
	ReconnectAttempts int           // Dial attempts allowed per outage (initial dial included)
	QueueSize         int           // Commands held while not open; 0 disables buffering
	InboundBuffer     int           // Initial capacity of the inbound frame queue

	Client ClientConfig // Per-dial transport settings (URL and Header are filled in)
	Clock  clock.Clock  // nil = wall clock
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Scheme:            "ws",
		ReconnectInterval: 3 * time.Second,
		ReconnectAttempts: 10,
		QueueSize:         64,
		InboundBuffer:     256,
		Client:            DefaultClientConfig(),
	}
}

// Target builds the WebSocket address for a session/notebook pair.
func Target(scheme, host, sessionID, notebookID string) string {
	if scheme == "" {
		scheme = "ws"
	}
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimSuffix(host, "/")
	return fmt.Sprintf("%s://%s/ws/%s/%s",
		scheme,
		host,
		url.PathEscape(sessionID),
		url.PathEscape(notebookID),
	)
}

func (c ManagerConfig) validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Scheme != "ws" && c.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", c.Scheme)
	}
	if c.SessionID == "" || c.NotebookID == "" {
		return errors.New("session and notebook IDs are required")
	}
	if c.ReconnectAttempts < 0 {
		return errors.New("reconnect attempts must be >= 0")
	}
	if c.QueueSize < 0 {
		return errors.New("queue size must be >= 0")
	}
	return nil
}
