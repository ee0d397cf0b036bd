package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rickgao/notebook-client/internal/connection"
	"github.com/rickgao/notebook-client/internal/journal"
	"github.com/rickgao/notebook-client/internal/model"
)

// Errors
var (
	ErrOperationPending = errors.New("operation already pending")
	ErrNotCode          = errors.New("cell is not a code cell")
)

// Operation is a request kind whose reply carries no business key.
type Operation string

const (
	OpSave      Operation = "save"
	OpLoad      Operation = "load"
	OpDeploy    Operation = "deploy"
	OpConnector Operation = "connector"
)

// deploySteps is the number of lambda_generated frames the kernel sends per
// deploy. The last one carries the final outcome.
const deploySteps = 5

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a user-facing message (a toast in a UI, a line in the CLI).
type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Notifier receives notices. Called on the dispatch goroutine; must not block.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// logNotifier writes notices to a logger.
type logNotifier struct {
	logger *slog.Logger
}

func (l logNotifier) Notify(n Notice) {
	level := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, n.Title, "message", n.Message)
}

// Config configures a Session.
type Config struct {
	Notebook  model.NotebookRef
	SessionID model.SessionID // Empty = generate

	// Connection settings. SessionID and NotebookID are filled in.
	Connection connection.ManagerConfig

	// Run the code cell materialized from connector_created.
	ExecuteConnectorCode bool
}

// DefaultConfig returns a Config with default connection settings.
func DefaultConfig(ref model.NotebookRef) Config {
	return Config{
		Notebook:             ref,
		Connection:           connection.DefaultManagerConfig(),
		ExecuteConnectorCode: true,
	}
}

// Option configures optional Session collaborators.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	notifier Notifier
	recorder journal.Recorder
	header   http.Header
	manager  func(connection.ManagerConfig, connection.FrameHandler, *slog.Logger) (connection.Manager, error)
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifier sets where user-facing notices go. Defaults to the logger.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithRecorder journals every outbound command and inbound frame.
func WithRecorder(r journal.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithHeader adds handshake headers (e.g. Authorization) to every dial.
func WithHeader(h http.Header) Option {
	return func(o *options) { o.header = h }
}
