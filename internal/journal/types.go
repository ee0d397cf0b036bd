package journal

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/notebook-client/internal/protocol"
)

// Direction of a journaled frame relative to the client.
type Direction string

const (
	Outbound Direction = "out"
	Inbound  Direction = "in"
)

// Entry is one journaled frame.
type Entry struct {
	Direction  Direction
	Kind       protocol.Kind // Empty when an inbound frame had no readable type
	SessionID  string
	NotebookID string
	CellID     string // Set for execute and output frames
	Payload    []byte // Raw frame
	At         time.Time
}

// Recorder receives journal entries. Implementations must not block.
type Recorder interface {
	Record(e Entry)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(e Entry)

// Record calls f(e).
func (f RecorderFunc) Record(e Entry) { f(e) }

// Nop discards all entries.
type Nop struct{}

// Record does nothing.
func (Nop) Record(Entry) {}

// WriterConfig holds configuration for the journal Writer.
type WriterConfig struct {
	Table         string        // Optionally schema-qualified, e.g. "audit.protocol_journal"
	BatchSize     int           // Flush when this many entries are waiting
	FlushInterval time.Duration // Flush at least this often
	BufferSize    int           // Entries held before Record starts dropping
	Clock         clock.Clock   // nil = wall clock
}

// DefaultWriterConfig returns default configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Table:         "protocol_journal",
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
		BufferSize:    4096,
	}
}

// WriterMetrics contains writer statistics.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64
}
