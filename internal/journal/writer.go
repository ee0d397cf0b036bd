package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/notebook-client/internal/queue"
)

// DB is the subset of *pgxpool.Pool the writer needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Writer batches journal entries into PostgreSQL.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger
	db     DB
	clock  clock.Clock
	table  string // Sanitized identifier

	input *queue.Queue[Entry]

	// Batching
	batch   []Entry
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewWriter creates a journal Writer.
func NewWriter(cfg WriterConfig, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	defaults := DefaultWriterConfig()
	if cfg.Table == "" {
		cfg.Table = defaults.Table
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = defaults.BufferSize
	}

	return &Writer{
		cfg:    cfg,
		logger: logger,
		db:     db,
		clock:  clk,
		table:  pgx.Identifier(strings.Split(cfg.Table, ".")).Sanitize(),
		input:  queue.NewBounded[Entry](min(cfg.BatchSize, 1024), cfg.BufferSize),
		batch:  make([]Entry, 0, cfg.BatchSize),
	}
}

// Record queues e for the next flush. Drops e if the buffer is full.
func (w *Writer) Record(e Entry) {
	if e.At.IsZero() {
		e.At = w.clock.Now()
	}
	if !w.input.Push(e) {
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
	}
}

// EnsureSchema creates the journal table if it does not exist.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	_, err := w.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          BIGSERIAL PRIMARY KEY,
			direction   TEXT NOT NULL,
			kind        TEXT NOT NULL,
			session_id  TEXT NOT NULL,
			notebook_id TEXT NOT NULL,
			cell_id     TEXT,
			payload     TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)`, w.table))
	if err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	return nil
}

// Start begins consuming entries and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"table", w.cfg.Table,
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued entries, flushes them, and shuts down.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	// Closing the input lets consumeLoop drain what is queued.
	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	return w.Flush(ctx)
}

// Flush writes everything currently batched.
func (w *Writer) Flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]Entry, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("journal insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return err
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed journal",
		"count", len(batch),
		"duration", time.Since(start),
	)
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop moves entries from the input queue into the batch.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		e, ok := w.input.Pop()
		if !ok {
			return
		}
		w.add(e)
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := w.clock.Ticker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.Flush(w.ctx)
		}
	}
}

func (w *Writer) add(e Entry) {
	w.batchMu.Lock()
	w.batch = append(w.batch, e)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		w.Flush(ctx)
		cancel()
	}
}

// batchInsert inserts rows using pgx.Batch.
func (w *Writer) batchInsert(ctx context.Context, rows []Entry) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (direction, kind, session_id, notebook_id, cell_id, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.table)

	batch := &pgx.Batch{}
	for _, r := range rows {
		var cellID *string
		if r.CellID != "" {
			cellID = &r.CellID
		}
		batch.Queue(sql,
			string(r.Direction),
			string(r.Kind),
			r.SessionID,
			r.NotebookID,
			cellID,
			string(r.Payload),
			r.At,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
