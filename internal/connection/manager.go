package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/notebook-client/internal/protocol"
	"github.com/rickgao/notebook-client/internal/queue"
)

// FrameHandler consumes inbound frames. Frames are delivered one at a time,
// in transport order, from a single goroutine.
type FrameHandler interface {
	HandleFrame(data []byte)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(data []byte)

// HandleFrame calls f(data).
func (f FrameHandlerFunc) HandleFrame(data []byte) { f(data) }

// Manager owns the single WebSocket connection of one notebook session.
type Manager interface {
	// Start begins dialing the target. It does not wait for the connection.
	Start(ctx context.Context) error

	// Close shuts the connection down and stops automatic reconnects.
	Close(ctx context.Context) error

	// Send encodes and transmits a command. While the connection is
	// recovering, commands are held and flushed in order on reconnect.
	Send(cmd protocol.Command) error

	// Status returns the current connection status.
	Status() Status

	// Target returns the immutable WebSocket address.
	Target() string

	// Subscribe registers an observer for status transitions. Observers run
	// on the same goroutine as the frame handler, in transition order.
	Subscribe(fn func(StatusChange)) (cancel func())

	// Stats returns connection statistics.
	Stats() ManagerStats
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	Status        Status
	Attempt       int   // Dial attempts used since the last successful open
	Opens         int64 // Successful dials
	Drops         int64 // Unexpected closes
	FramesIn      int64
	CommandsSent  int64
	CommandsHeld  int   // Currently buffered while not open
	CommandsLost  int64 // Dropped when the manager closed or gave up
	QueueRejected int64
}

// inbound is either a frame or a status transition, sharing one ordered queue.
type inbound struct {
	data   []byte
	change *StatusChange
}

// manager implements the Manager interface.
type manager struct {
	cfg     ManagerConfig
	target  string
	handler FrameHandler
	logger  *slog.Logger
	clock   clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inbound      *queue.Queue[inbound]
	dispatchDone chan struct{}

	mu       sync.Mutex
	status   Status
	client   Client
	attempts int
	terminal bool
	started  bool
	closed   bool
	held     *queue.Queue[[]byte] // nil when buffering is disabled

	obsMu     sync.Mutex
	observers map[int]func(StatusChange)
	nextObs   int

	opens    atomic.Int64
	drops    atomic.Int64
	framesIn atomic.Int64
	sent     atomic.Int64
	lost     atomic.Int64
}

// NewManager creates a new Connection Manager for one session/notebook pair.
func NewManager(cfg ManagerConfig, handler FrameHandler, logger *slog.Logger) (Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("connection config: %w", err)
	}
	if handler == nil {
		handler = FrameHandlerFunc(func([]byte) {})
	}
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	m := &manager{
		cfg:          cfg,
		target:       Target(cfg.Scheme, cfg.Host, cfg.SessionID, cfg.NotebookID),
		handler:      handler,
		logger:       logger,
		clock:        clk,
		inbound:      queue.New[inbound](cfg.InboundBuffer),
		dispatchDone: make(chan struct{}),
		observers:    make(map[int]func(StatusChange)),
	}
	if cfg.QueueSize > 0 {
		m.held = queue.NewBounded[[]byte](min(cfg.QueueSize, 16), cfg.QueueSize)
	}
	return m, nil
}

// Start begins the connection manager.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.setStatusLocked(StatusConnecting, nil)
	m.mu.Unlock()

	go m.dispatchLoop()

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection manager started", "target", m.target)
	return nil
}

// Close gracefully shuts down.
func (m *manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if !m.started {
		m.status = StatusClosed
		m.terminal = true
		m.mu.Unlock()
		m.inbound.Close()
		close(m.dispatchDone)
		return nil
	}
	if !m.terminal {
		m.setStatusLocked(StatusClosing, nil)
	}
	client := m.client
	m.mu.Unlock()

	m.logger.Info("stopping connection manager")

	m.cancel()
	if client != nil {
		client.Close()
	}

	// Wait for the dial loop with timeout
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.mu.Lock()
	m.terminal = true
	m.dropHeldLocked("manager closed")
	m.setStatusLocked(StatusClosed, nil)
	m.mu.Unlock()

	// Deliver everything already received, then stop.
	m.inbound.Close()
	select {
	case <-m.dispatchDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// Send encodes cmd and writes it, or holds it while the connection recovers.
func (m *manager) Send(cmd protocol.Command) error {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	m.mu.Lock()
	switch {
	case m.status == StatusOpen:
		client := m.client
		m.mu.Unlock()

		if err := client.Send(data); err != nil {
			m.logger.Debug("send failed, holding for reconnect", "kind", cmd.Kind(), "error", err)
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.holdLocked(data, err)
		}
		m.sent.Add(1)
		return nil

	case m.recoveringLocked():
		defer m.mu.Unlock()
		return m.holdLocked(data, ErrNotConnected)

	default:
		m.mu.Unlock()
		return ErrNotConnected
	}
}

// Status returns the current connection status.
func (m *manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Target returns the WebSocket address.
func (m *manager) Target() string {
	return m.target
}

// Subscribe registers fn for status transitions.
func (m *manager) Subscribe(fn func(StatusChange)) func() {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := ManagerStats{
		Status:  m.status,
		Attempt: m.attempts,
	}
	if m.held != nil {
		hs := m.held.Stats()
		stats.CommandsHeld = hs.Len
		stats.QueueRejected = hs.Rejected
	}
	m.mu.Unlock()

	stats.Opens = m.opens.Load()
	stats.Drops = m.drops.Load()
	stats.FramesIn = m.framesIn.Load()
	stats.CommandsSent = m.sent.Load()
	stats.CommandsLost = m.lost.Load()
	return stats
}

// run dials the target and keeps redialing after unexpected closes until
// attempts are exhausted or the manager is closed.
func (m *manager) run() {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		m.logger.Debug("dialing", "target", m.target, "attempt", attempt)

		client, err := m.dial()
		if err == nil {
			var opened bool
			opened, err = m.open(client)
			if opened {
				err = m.watch(client)
			}
			client.Close()
			if m.ctx.Err() != nil || err == ErrClosed {
				return
			}
			if opened {
				m.drops.Add(1)
				m.logger.Warn("connection lost", "error", err)
			} else {
				m.logger.Warn("flush after dial failed", "attempt", attempt, "error", err)
			}
		} else {
			if m.ctx.Err() != nil {
				return
			}
			m.logger.Warn("dial failed", "attempt", attempt, "error", err)
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		exhausted := m.attempts >= m.cfg.ReconnectAttempts
		if exhausted {
			m.terminal = true
			m.dropHeldLocked("reconnect attempts exhausted")
		}
		m.client = nil
		m.setStatusLocked(StatusClosed, err)
		m.mu.Unlock()

		if exhausted {
			m.logger.Error("giving up on connection",
				"target", m.target,
				"attempts", m.cfg.ReconnectAttempts,
			)
			return
		}

		timer := m.clock.Timer(m.cfg.ReconnectInterval)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.setStatusLocked(StatusConnecting, nil)
		m.mu.Unlock()
	}
}

func (m *manager) dial() (Client, error) {
	cfg := m.cfg.Client
	cfg.URL = m.target
	cfg.Header = m.cfg.Header.Clone()
	if cfg.Clock == nil {
		cfg.Clock = m.clock
	}

	client := NewClient(cfg, m.logger)
	if err := client.Connect(m.ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// open flushes held commands in order, then publishes the open status.
// A flush failure leaves the unsent commands held and counts as a failed attempt.
func (m *manager) open(client Client) (bool, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return false, ErrClosed
		}
		var batch [][]byte
		if m.held != nil {
			batch = m.held.Drain(0)
		}
		if len(batch) == 0 {
			m.client = client
			m.attempts = 0
			m.opens.Add(1)
			m.setStatusLocked(StatusOpen, nil)
			m.mu.Unlock()
			break
		}
		m.mu.Unlock()

		for i, data := range batch {
			if err := client.Send(data); err != nil {
				m.mu.Lock()
				m.requeueLocked(batch[i:])
				m.mu.Unlock()
				return false, fmt.Errorf("flush held commands: %w", err)
			}
			m.sent.Add(1)
		}
		m.logger.Info("flushed held commands", "count", len(batch))
	}

	m.logger.Info("connected", "target", m.target)
	return true, nil
}

// watch forwards frames until the client fails or the manager stops.
func (m *manager) watch(client Client) error {
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()

		case err := <-client.Errors():
			// Frames read before the failure are already buffered.
			for {
				select {
				case msg := <-client.Messages():
					m.enqueue(msg)
				default:
					return err
				}
			}

		case msg := <-client.Messages():
			m.enqueue(msg)
		}
	}
}

func (m *manager) enqueue(msg TimestampedMessage) {
	m.framesIn.Add(1)
	m.inbound.Push(inbound{data: msg.Data})
}

// dispatchLoop delivers frames and status changes one at a time.
func (m *manager) dispatchLoop() {
	defer close(m.dispatchDone)

	for {
		item, ok := m.inbound.Pop()
		if !ok {
			return
		}
		if item.change != nil {
			m.notify(*item.change)
			continue
		}
		m.deliver(item.data)
	}
}

func (m *manager) deliver(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("frame handler panic", "panic", r)
		}
	}()
	m.handler.HandleFrame(data)
}

func (m *manager) notify(change StatusChange) {
	m.obsMu.Lock()
	fns := make([]func(StatusChange), 0, len(m.observers))
	for id := 0; id < m.nextObs; id++ {
		if fn, ok := m.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	m.obsMu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("status observer panic", "panic", r)
				}
			}()
			fn(change)
		}()
	}
}

// setStatusLocked records a transition and queues it for observers.
// Must be called with m.mu held.
func (m *manager) setStatusLocked(to Status, err error) {
	from := m.status
	if from == to {
		return
	}
	m.status = to

	change := &StatusChange{
		From:     from,
		To:       to,
		Attempt:  m.attempts,
		Terminal: to == StatusClosed && m.terminal,
		Err:      err,
		At:       m.clock.Now(),
	}
	m.logger.Debug("status changed", "from", from, "to", to, "attempt", m.attempts)
	m.inbound.Push(inbound{change: change})
}

// recoveringLocked reports whether sends should be held for a reconnect.
func (m *manager) recoveringLocked() bool {
	if m.held == nil || m.terminal || m.closed {
		return false
	}
	return m.status == StatusConnecting || m.status == StatusClosed
}

// holdLocked buffers data, or returns cause if buffering is unavailable.
func (m *manager) holdLocked(data []byte, cause error) error {
	if m.held == nil || m.terminal || m.closed {
		return cause
	}
	if !m.held.Push(data) {
		return ErrQueueFull
	}
	return nil
}

// requeueLocked puts unsent commands back in front of anything held since.
func (m *manager) requeueLocked(batch [][]byte) {
	rest := m.held.Drain(0)
	for _, data := range append(batch, rest...) {
		if !m.held.Push(data) {
			m.lost.Add(1)
		}
	}
}

func (m *manager) dropHeldLocked(reason string) {
	if m.held == nil {
		return
	}
	if dropped := m.held.Drain(0); len(dropped) > 0 {
		m.lost.Add(int64(len(dropped)))
		m.logger.Warn("dropping held commands", "count", len(dropped), "reason", reason)
	}
}
