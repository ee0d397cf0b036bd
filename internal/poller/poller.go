package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/notebook-client/internal/model"
)

// JobSource lists a notebook's jobs. *api.Client implements it.
type JobSource interface {
	ListNotebookJobs(ctx context.Context, notebookID string) ([]model.Job, error)
}

// Transition is a job whose state differs from the last poll.
type Transition struct {
	NotebookID string
	Job        model.Job
	From       model.JobState // Empty for a newly seen job
	To         model.JobState
}

// TransitionHandler receives transitions.
type TransitionHandler interface {
	HandleTransition(t Transition)
}

// TransitionHandlerFunc is a function adapter for TransitionHandler.
type TransitionHandlerFunc func(Transition)

func (f TransitionHandlerFunc) HandleTransition(t Transition) {
	f(t)
}

// Config holds poller configuration.
type Config struct {
	NotebookIDs   []string
	Interval      time.Duration // Poll interval (default: 10s)
	Concurrency   int           // Max concurrent requests (default: 4)
	Timeout       time.Duration // Per-request timeout (default: 10s)
	ReportInitial bool          // Report jobs found by the first poll
	Clock         clock.Clock   // nil = wall clock
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    10 * time.Second,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Polls       int64
	Errors      int64
	Transitions int64
	Tracked     int
}

// Poller periodically lists jobs and reports state changes.
type Poller struct {
	cfg     Config
	source  JobSource
	handler TransitionHandler
	logger  *slog.Logger

	mu     sync.Mutex
	seen   map[string]map[string]model.JobState // notebook -> request -> state
	primed map[string]bool

	polls       atomic.Int64
	errors      atomic.Int64
	transitions atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	ticker *clock.Ticker
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, source JobSource, handler TransitionHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger,
		seen:    make(map[string]map[string]model.JobState),
		primed:  make(map[string]bool),
	}
}

// Start begins the polling loop. The first poll runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.ticker = p.cfg.Clock.Ticker(p.cfg.Interval)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("job poller started",
		"notebooks", len(p.cfg.NotebookIDs),
		"interval", p.cfg.Interval,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("job poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PollOnce polls every notebook once and returns the transitions found.
func (p *Poller) PollOnce(ctx context.Context) []Transition {
	return p.pollAll(ctx)
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	tracked := 0
	for _, jobs := range p.seen {
		tracked += len(jobs)
	}
	p.mu.Unlock()

	return Stats{
		Polls:       p.polls.Load(),
		Errors:      p.errors.Load(),
		Transitions: p.transitions.Load(),
		Tracked:     tracked,
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()
	defer p.ticker.Stop()

	p.pollAll(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.ticker.C:
			p.pollAll(p.ctx)
		}
	}
}

// pollAll lists jobs for every notebook concurrently.
func (p *Poller) pollAll(ctx context.Context) []Transition {
	start := p.cfg.Clock.Now()
	p.polls.Add(1)

	sem := make(chan struct{}, p.cfg.Concurrency)
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []Transition
	)

	for _, id := range p.cfg.NotebookIDs {
		wg.Add(1)
		go func(notebookID string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			found, err := p.pollNotebook(ctx, notebookID)
			if err != nil {
				p.logger.Warn("failed to poll notebook jobs",
					"notebook", notebookID,
					"err", err,
				)
				p.errors.Add(1)
				return
			}

			mu.Lock()
			all = append(all, found...)
			mu.Unlock()
		}(id)
	}

	wg.Wait()

	for _, t := range all {
		if p.handler != nil {
			p.handler.HandleTransition(t)
		}
	}
	p.transitions.Add(int64(len(all)))

	p.logger.Debug("poll cycle complete",
		"notebooks", len(p.cfg.NotebookIDs),
		"transitions", len(all),
		"duration", p.cfg.Clock.Since(start),
	)
	return all
}

// pollNotebook fetches one notebook's jobs and diffs them against the last poll.
func (p *Poller) pollNotebook(ctx context.Context, notebookID string) ([]Transition, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	jobs, err := p.source.ListNotebookJobs(ctx, notebookID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.seen[notebookID]
	if prev == nil {
		prev = make(map[string]model.JobState)
		p.seen[notebookID] = prev
	}
	report := p.primed[notebookID] || p.cfg.ReportInitial
	p.primed[notebookID] = true

	var out []Transition
	for _, job := range jobs {
		if job.RequestID == "" {
			continue
		}
		state := job.State()
		old, known := prev[job.RequestID]
		prev[job.RequestID] = state

		if known && old == state {
			continue
		}
		if !known && !report {
			continue
		}
		out = append(out, Transition{
			NotebookID: notebookID,
			Job:        job,
			From:       old,
			To:         state,
		})
	}
	return out, nil
}
