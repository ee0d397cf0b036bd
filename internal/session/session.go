package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/notebook-client/internal/connection"
	"github.com/rickgao/notebook-client/internal/dispatch"
	"github.com/rickgao/notebook-client/internal/journal"
	"github.com/rickgao/notebook-client/internal/model"
	"github.com/rickgao/notebook-client/internal/notebook"
	"github.com/rickgao/notebook-client/internal/protocol"
)

// Session is one mounted notebook view and its kernel connection.
type Session struct {
	id       model.SessionID
	ref      model.NotebookRef
	cfg      Config
	store    *notebook.Store
	conn     connection.Manager
	disp     dispatch.Dispatcher
	notifier Notifier
	recorder journal.Recorder
	logger   *slog.Logger

	unsubscribe func()

	mu          sync.Mutex
	executing   map[string]struct{}
	pending     map[Operation]struct{}
	deploySteps int
}

// New creates a Session for cfg.Notebook that mutates store.
func New(cfg Config, store *notebook.Store, opts ...Option) (*Session, error) {
	if cfg.Notebook.ID == "" {
		return nil, errors.New("session: notebook ID is required")
	}
	if store == nil {
		store = notebook.NewStore()
	}

	o := options{manager: connection.NewManager}
	for _, opt := range opts {
		opt(&o)
	}

	id := cfg.SessionID
	if id == "" {
		id = model.NewSessionID()
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", string(id), "notebook", cfg.Notebook.ID)

	s := &Session{
		id:        id,
		ref:       cfg.Notebook,
		cfg:       cfg,
		store:     store,
		notifier:  o.notifier,
		recorder:  o.recorder,
		logger:    logger,
		executing: make(map[string]struct{}),
		pending:   make(map[Operation]struct{}),
	}
	if s.notifier == nil {
		s.notifier = logNotifier{logger: logger}
	}
	if s.recorder == nil {
		s.recorder = journal.Nop{}
	}

	s.disp = dispatch.New(dispatch.Handlers{
		OnInit:             s.onInit,
		OnOutput:           s.onOutput,
		OnNotebookLoaded:   s.onNotebookLoaded,
		OnNotebookSaved:    s.onNotebookSaved,
		OnLambdaGenerated:  s.onLambdaGenerated,
		OnConnectorStatus:  s.onConnectorStatus,
		OnConnectorCreated: s.onConnectorCreated,
		OnError:            s.onError,
		OnFrame:            s.recordInbound,
	}, logger)

	mcfg := cfg.Connection
	mcfg.SessionID = string(id)
	mcfg.NotebookID = cfg.Notebook.ID
	if o.header != nil {
		mcfg.Header = o.header.Clone()
	}

	conn, err := o.manager(mcfg, s.disp, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.conn = conn
	s.unsubscribe = conn.Subscribe(s.onStatus)

	return s, nil
}

// ID returns the session identity.
func (s *Session) ID() model.SessionID { return s.id }

// Notebook returns the notebook this session is bound to.
func (s *Session) Notebook() model.NotebookRef { return s.ref }

// Store returns the cell store this session mutates.
func (s *Session) Store() *notebook.Store { return s.store }

// Target returns the kernel WebSocket address.
func (s *Session) Target() string { return s.conn.Target() }

// Status returns the connection status.
func (s *Session) Status() connection.Status { return s.conn.Status() }

// Subscribe registers fn for connection status changes.
func (s *Session) Subscribe(fn func(connection.StatusChange)) (cancel func()) {
	return s.conn.Subscribe(fn)
}

// Stats returns dispatcher statistics.
func (s *Session) Stats() dispatch.Stats { return s.disp.Stats() }

// Start opens the kernel connection. It does not wait for the connection.
func (s *Session) Start(ctx context.Context) error {
	return s.conn.Start(ctx)
}

// Close shuts the connection down and flushes the journal if it supports it.
func (s *Session) Close(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.conn.Close(gctx)
	})
	if f, ok := s.recorder.(interface{ Flush(context.Context) error }); ok {
		g.Go(func() error {
			return f.Flush(gctx)
		})
	}

	err := g.Wait()
	s.unsubscribe()
	s.releaseAll()
	return err
}

// ExecuteCell sends a code cell to the kernel. Its output is cleared now and
// replaced when the matching output event arrives.
func (s *Session) ExecuteCell(id string) error {
	cell, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", notebook.ErrUnknownCell, id)
	}
	if cell.Type != model.CellCode {
		return fmt.Errorf("%w: %s", ErrNotCode, id)
	}

	// Held across the send so the output handler cannot run in between.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(protocol.Execute{CellID: cell.ID, Code: cell.Code}); err != nil {
		return err
	}
	s.store.ClearOutput(cell.ID)
	s.executing[cell.ID] = struct{}{}
	return nil
}

// ExecuteAll executes every code cell in order. Returns the number sent.
func (s *Session) ExecuteAll() (int, error) {
	var errs []error
	sent := 0
	for _, c := range s.store.Cells() {
		if c.Type != model.CellCode {
			continue
		}
		if err := s.ExecuteCell(c.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// Save persists the current cells under filename.
func (s *Session) Save(filename string) error {
	return s.begin(OpSave, protocol.SaveNotebook{
		Cells:      s.store.Cells(),
		Filename:   filename,
		NotebookID: s.ref.ID,
		UserID:     s.ref.UserID,
	})
}

// Load requests a saved notebook. The store is replaced when it arrives.
func (s *Session) Load(filename string) error {
	return s.begin(OpLoad, protocol.LoadNotebook{
		Filename:   filename,
		NotebookID: s.ref.ID,
		UserID:     s.ref.UserID,
	})
}

// Restart restarts the kernel.
func (s *Session) Restart() error {
	return s.send(protocol.Restart{})
}

// Deploy packages every code cell for deployment.
func (s *Session) Deploy() error {
	return s.begin(OpDeploy, protocol.DeployLambda{
		AllCode:      s.store.AllCode(),
		UserID:       s.ref.UserID,
		NotebookName: s.ref.Name,
		NotebookID:   s.ref.ID,
	})
}

// SetupPostHog installs the PostHog connector in the kernel.
func (s *Session) SetupPostHog(apiKey, baseURL string) error {
	return s.begin(OpConnector, protocol.PostHogSetup{
		UserID:  s.ref.UserID,
		APIKey:  apiKey,
		BaseURL: baseURL,
	})
}

// CreateConnector registers a connector of the given type.
func (s *Session) CreateConnector(connectorType string, credentials map[string]string) error {
	return s.begin(OpConnector, protocol.CreateConnector{
		ConnectorType: connectorType,
		Credentials:   credentials,
		UserID:        s.ref.UserID,
		NotebookID:    s.ref.ID,
	})
}

// Pending returns the outstanding keyless operations, sorted.
func (s *Session) Pending() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.pending))
}

// Executing returns the IDs of cells awaiting output, sorted.
func (s *Session) Executing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.executing))
}

// begin marks op pending and sends cmd. The pending mark is removed if the
// send fails.
func (s *Session) begin(op Operation, cmd protocol.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.pending[op]; busy {
		return fmt.Errorf("%w: %s", ErrOperationPending, op)
	}
	if err := s.send(cmd); err != nil {
		return err
	}
	s.pending[op] = struct{}{}
	if op == OpDeploy {
		s.deploySteps = 0
	}
	return nil
}

func (s *Session) send(cmd protocol.Command) error {
	if err := s.conn.Send(cmd); err != nil {
		return err
	}
	s.recordOutbound(cmd)
	return nil
}

// release clears op. Reports whether it was pending.
func (s *Session) release(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[op]
	delete(s.pending, op)
	return ok
}

func (s *Session) releaseAll() (ops []Operation, cells int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops = slices.Sorted(maps.Keys(s.pending))
	cells = len(s.executing)
	clear(s.pending)
	clear(s.executing)
	return ops, cells
}

func (s *Session) notify(level Level, title, message string) {
	s.notifier.Notify(Notice{Level: level, Title: title, Message: message})
}
