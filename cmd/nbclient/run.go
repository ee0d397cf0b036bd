package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/rickgao/notebook-client/internal/connection"
	"github.com/rickgao/notebook-client/internal/model"
	"github.com/rickgao/notebook-client/internal/notebook"
	"github.com/rickgao/notebook-client/internal/session"
)

// cellSeparator splits a source file into cells.
const cellSeparator = "# %%"

var errKernelGone = errors.New("kernel connection closed")

type runOptions struct {
	notebook   string
	user       string
	name       string
	sessionID  string
	load       string
	save       string
	files      []string
	executeAll bool
	deploy     bool
	connector  string
	connCreds  map[string]string
	posthogKey string
	posthogURL string
	timeout    time.Duration
}

func newRunCmd(a *app) *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run [code...]",
		Short: "Open a kernel session and execute code",
		Long: `Open a kernel session for a notebook, optionally load a saved notebook,
execute each code argument and each cell of --file (cells separated by
"# %%" lines), print the outputs, then optionally save and deploy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), o, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.notebook, "notebook", "", "notebook ID")
	f.StringVar(&o.user, "user", "", "user ID (defaults to the credentials)")
	f.StringVar(&o.name, "name", "", "notebook name used for deploys")
	f.StringVar(&o.sessionID, "session", "", "session ID (default: generated)")
	f.StringVar(&o.load, "load", "", "load a saved notebook before executing")
	f.StringVar(&o.save, "save", "", "save the notebook under this filename when done")
	f.StringArrayVar(&o.files, "file", nil, "execute the cells of a source file")
	f.BoolVar(&o.executeAll, "execute-all", false, "execute every code cell of the loaded notebook")
	f.BoolVar(&o.deploy, "deploy", false, "deploy the notebook when done")
	f.StringVar(&o.connector, "connector", "", "create a connector of this type")
	f.StringToStringVar(&o.connCreds, "connector-credential", nil, "connector credential key=value")
	f.StringVar(&o.posthogKey, "posthog-key", "", "set up PostHog with this API key")
	f.StringVar(&o.posthogURL, "posthog-url", "", "PostHog base URL")
	f.DurationVar(&o.timeout, "timeout", time.Minute, "limit for each kernel round trip")
	_ = cmd.MarkFlagRequired("notebook")

	return cmd
}

// sources returns the code to execute: arguments first, then file cells.
func (o runOptions) sources(args []string) ([]string, error) {
	out := lo.Filter(args, func(s string, _ int) bool { return strings.TrimSpace(s) != "" })
	for _, path := range o.files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, splitCells(string(data))...)
	}
	return out, nil
}

// splitCells splits source on separator lines, dropping blank cells.
func splitCells(src string) []string {
	var cells []string
	var cur []string
	flush := func() {
		if code := strings.TrimSpace(strings.Join(cur, "\n")); code != "" {
			cells = append(cells, code)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), cellSeparator) {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return cells
}

func (a *app) run(ctx context.Context, stdout, stderr io.Writer, o runOptions, args []string) error {
	sources, err := o.sources(args)
	if err != nil {
		return err
	}

	creds, err := a.credentials(o.user)
	if err != nil {
		return err
	}
	ref := model.NotebookRef{
		ID:     o.notebook,
		UserID: lo.CoalesceOrEmpty(o.user, creds.UserID),
		Name:   lo.CoalesceOrEmpty(o.name, o.notebook),
	}

	rec, stopJournal, err := a.recorder(ctx)
	if err != nil {
		return err
	}

	con := newConsole(stderr)
	store := notebook.NewStore()
	unwatch := store.Subscribe(func(notebook.Change) { con.poke() })
	defer unwatch()

	cfg := session.DefaultConfig(ref)
	cfg.SessionID = model.SessionID(o.sessionID)
	cfg.Connection = managerConfig(a.cfg)

	s, err := session.New(cfg, store,
		session.WithLogger(a.logger),
		session.WithNotifier(con),
		session.WithRecorder(rec),
		session.WithHeader(creds.Header()),
	)
	if err != nil {
		return errors.Join(err, shutdown(context.Background(), stopJournal))
	}
	unsubscribe := s.Subscribe(con.status)
	defer unsubscribe()

	a.logger.Info("starting session",
		"session", s.ID(),
		"target", s.Target(),
		"user", creds,
	)

	runErr := s.Start(ctx)
	if runErr == nil {
		runErr = (&runner{s: s, con: con, out: stdout, timeout: o.timeout}).drive(ctx, o, sources)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	closeErr := s.Close(closeCtx)
	stopErr := shutdown(closeCtx, stopJournal)

	stats := s.Stats()
	a.logger.Debug("session closed",
		"frames", stats.FramesReceived,
		"unknown_types", stats.UnknownTypes,
		"parse_errors", stats.ParseErrors,
	)

	return errors.Join(runErr, closeErr, stopErr)
}

// runner drives one session through the requested steps.
type runner struct {
	s       *session.Session
	con     *console
	out     io.Writer
	timeout time.Duration
}

func (r *runner) drive(ctx context.Context, o runOptions, sources []string) error {
	if err := r.await(ctx, "kernel connection", func() bool {
		return r.s.Status() == connection.StatusOpen
	}); err != nil {
		return err
	}

	if o.load != "" {
		if err := r.op(ctx, session.OpLoad, func() error { return r.s.Load(o.load) }); err != nil {
			return err
		}
	}

	if o.executeAll {
		if _, err := r.s.ExecuteAll(); err != nil {
			return err
		}
		if err := r.idle(ctx); err != nil {
			return err
		}
		for _, c := range r.s.Store().Cells() {
			r.print(c)
		}
	}

	for _, src := range sources {
		if err := r.execute(ctx, src); err != nil {
			return err
		}
	}

	if o.posthogKey != "" {
		if err := r.op(ctx, session.OpConnector, func() error {
			return r.s.SetupPostHog(o.posthogKey, o.posthogURL)
		}); err != nil {
			return err
		}
	}

	if o.connector != "" {
		before := r.s.Store().Len()
		if err := r.op(ctx, session.OpConnector, func() error {
			return r.s.CreateConnector(o.connector, o.connCreds)
		}); err != nil {
			return err
		}
		if err := r.idle(ctx); err != nil {
			return err
		}
		for _, c := range r.s.Store().Cells()[before:] {
			r.print(c)
		}
	}

	if o.save != "" {
		if err := r.op(ctx, session.OpSave, func() error { return r.s.Save(o.save) }); err != nil {
			return err
		}
	}

	if o.deploy {
		if err := r.op(ctx, session.OpDeploy, r.s.Deploy); err != nil {
			return err
		}
	}

	if n := r.con.errorCount(); n > 0 {
		return fmt.Errorf("kernel reported %d error(s)", n)
	}
	return nil
}

// execute appends a code cell, runs it and prints its output.
func (r *runner) execute(ctx context.Context, code string) error {
	cell, err := r.s.Store().AppendCell(model.Cell{Code: code, Type: model.CellCode})
	if err != nil {
		return err
	}
	if err := r.s.ExecuteCell(cell.ID); err != nil {
		return err
	}
	if err := r.await(ctx, "cell output", func() bool {
		return !slices.Contains(r.s.Executing(), cell.ID)
	}); err != nil {
		return err
	}

	cell, _ = r.s.Store().Get(cell.ID)
	r.print(cell)
	return nil
}

// op sends a keyless operation and waits until its reply releases it.
func (r *runner) op(ctx context.Context, op session.Operation, send func() error) error {
	if err := send(); err != nil {
		return err
	}
	return r.await(ctx, string(op), func() bool {
		return !slices.Contains(r.s.Pending(), op)
	})
}

// idle waits until no cell is awaiting output.
func (r *runner) idle(ctx context.Context) error {
	return r.await(ctx, "cell outputs", func() bool { return len(r.s.Executing()) == 0 })
}

func (r *runner) await(ctx context.Context, what string, done func() bool) error {
	if err := r.con.wait(ctx, r.timeout, what, done); err != nil {
		return err
	}
	if r.con.gone() {
		return errKernelGone
	}
	return nil
}

func (r *runner) print(c model.Cell) {
	if c.Type != model.CellCode {
		fmt.Fprintf(r.out, "[%s]\n%s\n", c.Type, c.Code)
		return
	}
	fmt.Fprintf(r.out, "Out[%d]: %s\n", c.ExecutionCount, strings.TrimRight(c.Output, "\n"))
}

// console prints notices and wakes waiters on every session event.
type console struct {
	w    io.Writer
	wake chan struct{}

	mu       sync.Mutex
	errors   int
	terminal bool
}

func newConsole(w io.Writer) *console {
	return &console{w: w, wake: make(chan struct{}, 1)}
}

// Notify implements session.Notifier.
func (c *console) Notify(n session.Notice) {
	c.mu.Lock()
	if n.Level == session.LevelError {
		c.errors++
	}
	fmt.Fprintf(c.w, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
	c.mu.Unlock()
	c.poke()
}

func (c *console) status(change connection.StatusChange) {
	if change.Terminal {
		c.mu.Lock()
		c.terminal = true
		c.mu.Unlock()
	}
	c.poke()
}

func (c *console) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *console) errorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

func (c *console) gone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal
}

// wait blocks until done reports true, the connection is gone for good,
// ctx ends, or timeout elapses.
func (c *console) wait(ctx context.Context, timeout time.Duration, what string, done func() bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for !done() && !c.gone() {
		select {
		case <-c.wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("timed out waiting for %s", what)
		}
	}
	return nil
}
