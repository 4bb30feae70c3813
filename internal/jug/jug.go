package jug

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"VaultCore/internal/fixedpoint"
)

// Accruer advances the rate accumulator for an ilk and returns the new
// rate (ray). Callable by anyone; idempotent within one clock second.
type Accruer interface {
	Accrue(ctx context.Context, ilk string) (*big.Int, error)
}

// rateLedger is the slice of the shared ledger the fee service touches.
type rateLedger interface {
	Rate(ilk string) *big.Int
	Fold(ilk, recipient string, rateDelta *big.Int) error
}

// Jug compounds per-ilk stability fees into the shared ledger's rate
// accumulator. The fee itself lives here as a per-second growth factor
// ("duty", ray >= 1.0); the accumulator stays owned by the ledger, so
// multiple vault instances never duplicate accrual state.
type Jug struct {
	mu        sync.Mutex
	ledger    rateLedger
	recipient string // account credited with accrued fees
	duties    map[string]*big.Int
	rhos      map[string]time.Time // last accrual instant per ilk
	now       func() time.Time
}

// New creates a Jug crediting fees to recipient. now is injectable for
// tests; nil means wall clock.
func New(ledger rateLedger, recipient string, now func() time.Time) *Jug {
	if now == nil {
		now = time.Now
	}
	return &Jug{
		ledger:    ledger,
		recipient: recipient,
		duties:    make(map[string]*big.Int),
		rhos:      make(map[string]time.Time),
		now:       now,
	}
}

// SetDuty sets the per-second stability fee for ilk. A duty below 1.0 ray
// would shrink the accumulator, which the ledger forbids.
func (j *Jug) SetDuty(ilk string, duty *big.Int) error {
	if duty == nil || duty.Cmp(fixedpoint.Ray) < 0 {
		return fmt.Errorf("jug: duty must be >= 1.0 ray")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.duties[ilk] = new(big.Int).Set(duty)
	if _, ok := j.rhos[ilk]; !ok {
		j.rhos[ilk] = j.now()
	}
	return nil
}

// Accrue compounds the stability fee over the whole-seconds elapsed since
// the last accrual and folds the resulting rate delta into the ledger,
// crediting the fee to the recipient. Calling it again within the same
// second is a no-op that returns the current rate.
func (j *Jug) Accrue(_ context.Context, ilk string) (*big.Int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	rho, ok := j.rhos[ilk]
	if !ok {
		j.rhos[ilk] = now
		return j.ledger.Rate(ilk), nil
	}

	elapsed := int64(now.Sub(rho) / time.Second)
	if elapsed <= 0 {
		return j.ledger.Rate(ilk), nil
	}

	duty, ok := j.duties[ilk]
	if !ok || duty.Cmp(fixedpoint.Ray) == 0 {
		// Zero fee: the accumulator stays put, but the accrual instant
		// still advances.
		j.rhos[ilk] = rho.Add(time.Duration(elapsed) * time.Second)
		return j.ledger.Rate(ilk), nil
	}

	factor := fixedpoint.RPow(duty, elapsed, fixedpoint.Ray)
	prev := j.ledger.Rate(ilk)
	next := fixedpoint.RMul(factor, prev)

	delta := new(big.Int).Sub(next, prev)
	if delta.Sign() > 0 {
		if err := j.ledger.Fold(ilk, j.recipient, delta); err != nil {
			return nil, fmt.Errorf("jug: fold: %w", err)
		}
	}

	// Advance by whole seconds only, keeping the sub-second remainder for
	// the next accrual.
	j.rhos[ilk] = rho.Add(time.Duration(elapsed) * time.Second)
	return j.ledger.Rate(ilk), nil
}
