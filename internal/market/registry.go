package market

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/twquote/internal/model"
)

// Registry resolves and remembers symbol boards.
type Registry interface {
	// Resolve fills in the board of sym if it is known.
	Resolve(sym model.Symbol) model.Symbol

	// Learn records the board a code was found on.
	Learn(code string, board model.Board)

	// Known returns a sorted snapshot of resolved codes.
	Known() []model.Symbol
}

// registryImpl implements Registry.
type registryImpl struct {
	logger *slog.Logger

	mu     sync.RWMutex
	boards map[string]model.Board
	pinned map[string]struct{} // overrides, never relearned
}

// NewRegistry creates a Registry seeded with configured overrides.
func NewRegistry(overrides map[string]model.Board, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &registryImpl{
		logger: logger,
		boards: make(map[string]model.Board, len(overrides)),
		pinned: make(map[string]struct{}, len(overrides)),
	}
	for code, b := range overrides {
		if b == model.BoardUnknown {
			continue
		}
		r.boards[code] = b
		r.pinned[code] = struct{}{}
	}
	return r
}

func (r *registryImpl) Resolve(sym model.Symbol) model.Symbol {
	if sym.Board != model.BoardUnknown {
		return sym
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.boards[sym.Code]; ok {
		return sym.WithBoard(b)
	}
	return sym
}

func (r *registryImpl) Learn(code string, board model.Board) {
	if board == model.BoardUnknown {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pinned[code]; ok {
		return
	}
	if prev, ok := r.boards[code]; ok && prev == board {
		return
	}
	r.boards[code] = board
	r.logger.Debug("learned symbol board", "code", code, "board", board)
}

func (r *registryImpl) Known() []model.Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Symbol, 0, len(r.boards))
	for code, b := range r.boards {
		out = append(out, model.Symbol{Code: code, Board: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
