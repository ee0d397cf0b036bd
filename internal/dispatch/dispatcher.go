package dispatch

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/notebook-client/internal/protocol"
)

// Handlers holds one callback per inbound event type. Nil callbacks drop the
// event. Callbacks run synchronously on the caller's goroutine.
type Handlers struct {
	OnInit             func(protocol.Init)
	OnOutput           func(protocol.Output)
	OnNotebookLoaded   func(protocol.NotebookLoaded)
	OnNotebookSaved    func(protocol.NotebookSaved)
	OnLambdaGenerated  func(protocol.LambdaGenerated)
	OnConnectorStatus  func(protocol.ConnectorStatus) // posthog_setup and connector_status
	OnConnectorCreated func(protocol.ConnectorCreated)
	OnError            func(protocol.Error)

	// OnFrame sees every raw frame before decoding. kind is empty when the
	// frame has no readable type tag.
	OnFrame func(kind protocol.Kind, data []byte)
}

// Dispatcher routes frames to handlers.
type Dispatcher interface {
	// HandleFrame decodes one frame and runs its handler to completion.
	HandleFrame(data []byte)

	// Stats returns current dispatcher statistics.
	Stats() Stats
}

// Stats contains runtime statistics.
type Stats struct {
	FramesReceived int64
	Dispatched     int64
	ParseErrors    int64
	UnknownTypes   int64
	Unhandled      int64 // Decoded but no handler registered
	HandlerPanics  int64
}

// dispatcher is the internal implementation.
type dispatcher struct {
	h      Handlers
	logger *slog.Logger

	received    atomic.Int64
	dispatched  atomic.Int64
	parseErrors atomic.Int64
	unknown     atomic.Int64
	unhandled   atomic.Int64
	panics      atomic.Int64
}

// New creates a Dispatcher. The handler set is fixed for its lifetime.
func New(h Handlers, logger *slog.Logger) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &dispatcher{h: h, logger: logger}
}

// HandleFrame decodes and dispatches a single frame.
func (d *dispatcher) HandleFrame(data []byte) {
	d.received.Add(1)

	if d.h.OnFrame != nil {
		kind, _ := protocol.PeekType(data)
		d.safely("frame", func() { d.h.OnFrame(kind, data) })
	}

	ev, err := protocol.DecodeEvent(data)
	if err != nil {
		d.reject(data, err)
		return
	}
	d.dispatch(ev)
}

// Stats returns current statistics.
func (d *dispatcher) Stats() Stats {
	return Stats{
		FramesReceived: d.received.Load(),
		Dispatched:     d.dispatched.Load(),
		ParseErrors:    d.parseErrors.Load(),
		UnknownTypes:   d.unknown.Load(),
		Unhandled:      d.unhandled.Load(),
		HandlerPanics:  d.panics.Load(),
	}
}

func (d *dispatcher) reject(data []byte, err error) {
	if msg, ok := protocol.AsErrorFrame(data); ok {
		d.dispatch(protocol.Error{Message: msg})
		return
	}

	if errors.Is(err, protocol.ErrUnknownType) {
		d.unknown.Add(1)
		d.logger.Warn("dropping frame with unknown type", "error", err, "frame", preview(data))
		return
	}

	d.parseErrors.Add(1)
	d.logger.Warn("dropping malformed frame", "error", err, "frame", preview(data))
}

func (d *dispatcher) dispatch(ev protocol.Event) {
	var run func()

	switch e := ev.(type) {
	case protocol.Init:
		if d.h.OnInit != nil {
			run = func() { d.h.OnInit(e) }
		}
	case protocol.Output:
		if d.h.OnOutput != nil {
			run = func() { d.h.OnOutput(e) }
		}
	case protocol.NotebookLoaded:
		if d.h.OnNotebookLoaded != nil {
			run = func() { d.h.OnNotebookLoaded(e) }
		}
	case protocol.NotebookSaved:
		if d.h.OnNotebookSaved != nil {
			run = func() { d.h.OnNotebookSaved(e) }
		}
	case protocol.LambdaGenerated:
		if d.h.OnLambdaGenerated != nil {
			run = func() { d.h.OnLambdaGenerated(e) }
		}
	case protocol.ConnectorStatus:
		if d.h.OnConnectorStatus != nil {
			run = func() { d.h.OnConnectorStatus(e) }
		}
	case protocol.ConnectorCreated:
		if d.h.OnConnectorCreated != nil {
			run = func() { d.h.OnConnectorCreated(e) }
		}
	case protocol.Error:
		if d.h.OnError != nil {
			run = func() { d.h.OnError(e) }
		}
	}

	if run == nil {
		d.unhandled.Add(1)
		d.logger.Debug("no handler for event", "type", ev.Kind())
		return
	}

	if d.safely(string(ev.Kind()), run) {
		d.dispatched.Add(1)
	}
}

// safely runs fn, recovering a panic. Returns false if fn panicked.
func (d *dispatcher) safely(what string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Error("handler panic", "handler", what, "panic", r)
			ok = false
		}
	}()
	fn()
	return true
}

// preview truncates a frame for logging.
func preview(data []byte) string {
	const max = 256
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
