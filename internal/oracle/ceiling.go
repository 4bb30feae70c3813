package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"
)

// CeilingOracle exposes the current maximum absolute-debt ceiling ("line")
// for an ilk, in wad. The value may change between calls; the engine
// queries it fresh on every operation and never caches it.
type CeilingOracle interface {
	CurrentCeiling(ctx context.Context, ilk string) (*big.Int, error)
}

// Board holds per-ilk debt ceilings. It backs both static wiring (a fixed
// line set at startup) and the live feed (ceiling updates arriving from the
// risk service lower or raise the line between engine calls).
type Board struct {
	mu    sync.RWMutex
	lines map[string]*big.Int
}

func NewBoard() *Board {
	return &Board{lines: make(map[string]*big.Int)}
}

// Set replaces the ceiling for ilk with line (wad). A nil or negative line
// is ignored — the risk service never publishes one, and a malformed feed
// message must not zero out the ceiling.
func (b *Board) Set(ilk string, line *big.Int) {
	if line == nil || line.Sign() < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[ilk] = new(big.Int).Set(line)
}

// CurrentCeiling returns the ceiling for ilk. Unset ilks are an error:
// drawing against an ilk with no published line must fail, not default.
func (b *Board) CurrentCeiling(_ context.Context, ilk string) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	line, ok := b.lines[ilk]
	if !ok {
		return nil, fmt.Errorf("oracle: no ceiling published for ilk %q", ilk)
	}
	return new(big.Int).Set(line), nil
}
