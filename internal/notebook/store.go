package notebook

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/rickgao/notebook-client/internal/model"
)

// Errors
var (
	ErrUnknownCell   = errors.New("unknown cell")
	ErrDuplicateCell = errors.New("duplicate cell id")
)

// Op names a store mutation.
type Op string

const (
	OpAppend       Op = "append"
	OpUpdateCode   Op = "update_code"
	OpUpdateOutput Op = "update_output"
	OpClearOutput  Op = "clear_output"
	OpDelete       Op = "delete"
	OpMove         Op = "move"
	OpReplace      Op = "replace"
)

// Change is delivered to subscribers after each successful mutation.
type Change struct {
	Op     Op
	CellID string // Empty for OpReplace
}

// Store is a thread-safe ordered cell collection.
type Store struct {
	mu       sync.RWMutex
	cells    []model.Cell
	maxCount int // Highest execution count ever assigned or loaded

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// NewStore creates a store holding cells, normalized as Replace does.
func NewStore(cells ...model.Cell) *Store {
	s := &Store{subs: make(map[int]func(Change))}
	s.cells, s.maxCount = normalize(cells)
	return s
}

// Append adds an empty cell of type t at the end and returns it.
func (s *Store) Append(t model.CellType) model.Cell {
	cell := model.NewCell(t)

	s.mu.Lock()
	s.cells = append(s.cells, cell)
	s.mu.Unlock()

	s.notify(Change{Op: OpAppend, CellID: cell.ID})
	return cell
}

// AppendCell adds cell at the end, keeping its ID, code and output.
// An empty ID is filled in. Fails with ErrDuplicateCell if the ID is taken.
func (s *Store) AppendCell(cell model.Cell) (model.Cell, error) {
	if cell.ID == "" {
		cell.ID = model.NewCellID()
	}
	if !cell.Type.Valid() {
		cell.Type = model.CellCode
	}
	if cell.ExecutionCount < 0 {
		cell.ExecutionCount = 0
	}

	s.mu.Lock()
	if _, ok := s.indexLocked(cell.ID); ok {
		s.mu.Unlock()
		return model.Cell{}, ErrDuplicateCell
	}
	s.cells = append(s.cells, cell)
	s.maxCount = max(s.maxCount, cell.ExecutionCount)
	s.mu.Unlock()

	s.notify(Change{Op: OpAppend, CellID: cell.ID})
	return cell, nil
}

// AppendWithID adds an empty cell with a caller-chosen ID.
func (s *Store) AppendWithID(id string, t model.CellType) (model.Cell, error) {
	return s.AppendCell(model.Cell{ID: id, Type: t})
}

// UpdateCode replaces a cell's source text.
func (s *Store) UpdateCode(id, code string) bool {
	return s.mutate(id, OpUpdateCode, func(c *model.Cell) {
		c.Code = code
	})
}

// UpdateOutput sets a cell's output and gives it the next execution count.
func (s *Store) UpdateOutput(id, output string) bool {
	return s.mutate(id, OpUpdateOutput, func(c *model.Cell) {
		s.maxCount++
		c.Output = output
		c.ExecutionCount = s.maxCount
	})
}

// ClearOutput empties a cell's output without touching its execution count.
func (s *Store) ClearOutput(id string) bool {
	return s.mutate(id, OpClearOutput, func(c *model.Cell) {
		c.Output = ""
	})
}

// Delete removes a cell.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	n := len(s.cells)
	s.cells = lo.Filter(s.cells, func(c model.Cell, _ int) bool { return c.ID != id })
	removed := len(s.cells) != n
	s.mu.Unlock()

	if removed {
		s.notify(Change{Op: OpDelete, CellID: id})
	}
	return removed
}

// MoveUp swaps a cell with its predecessor. False at the top or for unknown IDs.
func (s *Store) MoveUp(id string) bool {
	return s.swap(id, -1)
}

// MoveDown swaps a cell with its successor. False at the bottom or for unknown IDs.
func (s *Store) MoveDown(id string) bool {
	return s.swap(id, +1)
}

// Replace discards the collection and installs cells in order.
func (s *Store) Replace(cells []model.Cell) {
	next, maxCount := normalize(cells)

	s.mu.Lock()
	s.cells = next
	s.maxCount = max(s.maxCount, maxCount)
	s.mu.Unlock()

	s.notify(Change{Op: OpReplace})
}

// Cells returns a copy of the collection in order.
func (s *Store) Cells() []model.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Cell(nil), s.cells...)
}

// Get returns a copy of one cell.
func (s *Store) Get(id string) (model.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cell, _, ok := lo.FindIndexOf(s.cells, func(c model.Cell) bool { return c.ID == id })
	return cell, ok
}

// Len returns the number of cells.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

// MaxExecutionCount returns the highest execution count handed out so far.
func (s *Store) MaxExecutionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxCount
}

// AllCode joins the source of every code cell, in order, one per line.
func (s *Store) AllCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code := lo.FilterMap(s.cells, func(c model.Cell, _ int) (string, bool) {
		return c.Code, c.Type == model.CellCode
	})
	return strings.Join(code, "\n")
}

// Subscribe registers fn for change notifications. fn runs synchronously
// after the mutation, outside the store lock.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) mutate(id string, op Op, fn func(*model.Cell)) bool {
	s.mu.Lock()
	i, ok := s.indexLocked(id)
	if ok {
		fn(&s.cells[i])
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Op: op, CellID: id})
	}
	return ok
}

func (s *Store) swap(id string, delta int) bool {
	s.mu.Lock()
	i, ok := s.indexLocked(id)
	j := i + delta
	ok = ok && j >= 0 && j < len(s.cells)
	if ok {
		s.cells[i], s.cells[j] = s.cells[j], s.cells[i]
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Op: OpMove, CellID: id})
	}
	return ok
}

// indexLocked must be called with s.mu held.
func (s *Store) indexLocked(id string) (int, bool) {
	_, i, ok := lo.FindIndexOf(s.cells, func(c model.Cell) bool { return c.ID == id })
	return i, ok
}

// notify calls subscribers in subscription order.
func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// normalize copies cells, fixing invalid types and counts and dropping
// duplicate IDs (first wins). Returns the highest execution count.
func normalize(cells []model.Cell) ([]model.Cell, int) {
	out := make([]model.Cell, 0, len(cells))
	seen := make(map[string]struct{}, len(cells))
	maxCount := 0

	for _, c := range cells {
		if c.ID == "" {
			c.ID = model.NewCellID()
		}
		if _, dup := seen[c.ID]; dup {
			slog.Debug("dropping duplicate cell", "cell", c.ID)
			continue
		}
		seen[c.ID] = struct{}{}
		if !c.Type.Valid() {
			c.Type = model.CellCode
		}
		if c.ExecutionCount < 0 {
			c.ExecutionCount = 0
		}
		maxCount = max(maxCount, c.ExecutionCount)
		out = append(out, c)
	}
	return out, maxCount
}
