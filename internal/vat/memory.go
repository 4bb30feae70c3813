package vat

import (
	"fmt"
	"math/big"
	"sync"

	"VaultCore/internal/fixedpoint"
)

type positionKey struct {
	Ilk    string
	Holder string
}

type position struct {
	free   *big.Int // unlocked collateral, wad
	locked *big.Int // locked collateral, wad
	art    *big.Int // normalized debt, wad
}

type allowanceKey struct {
	Owner   string
	Spender string
}

// Memory is an in-memory Ledger. It models the external shared ledger's
// contract: every call is atomic (all preconditions are checked before any
// mutation) and a single mutex serializes conflicting writes, so engine
// operations against one position are totally ordered.
type Memory struct {
	mu         sync.Mutex
	positions  map[positionKey]*position
	rates      map[string]*big.Int // per-ilk rate accumulator, ray
	totalArt   map[string]*big.Int // per-ilk total normalized debt, wad
	tokens     map[string]*big.Int // per-account token balance, wad
	allowances map[allowanceKey]*big.Int
}

func NewMemory() *Memory {
	return &Memory{
		positions:  make(map[positionKey]*position),
		rates:      make(map[string]*big.Int),
		totalArt:   make(map[string]*big.Int),
		tokens:     make(map[string]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

func (m *Memory) pos(ilk, holder string) *position {
	key := positionKey{Ilk: ilk, Holder: holder}
	p, ok := m.positions[key]
	if !ok {
		p = &position{free: new(big.Int), locked: new(big.Int), art: new(big.Int)}
		m.positions[key] = p
	}
	return p
}

func (m *Memory) rate(ilk string) *big.Int {
	r, ok := m.rates[ilk]
	if !ok {
		// Rate accumulator starts at 1.0 ray
		r = new(big.Int).Set(fixedpoint.Ray)
		m.rates[ilk] = r
	}
	return r
}

func (m *Memory) ilkArt(ilk string) *big.Int {
	t, ok := m.totalArt[ilk]
	if !ok {
		t = new(big.Int)
		m.totalArt[ilk] = t
	}
	return t
}

func (m *Memory) balance(account string) *big.Int {
	b, ok := m.tokens[account]
	if !ok {
		b = new(big.Int)
		m.tokens[account] = b
	}
	return b
}

// Slip credits wad of free (unlocked) collateral to holder. This is the
// ledger-side deposit boundary — wiring and tests pre-allocate collateral
// with it before the engine's one-time init.
func (m *Memory) Slip(ilk, holder string, wad *big.Int) error {
	if wad == nil || wad.Sign() < 0 {
		return fmt.Errorf("vat: slip amount must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pos(ilk, holder)
	p.free.Add(p.free, wad)
	return nil
}

// Credit mints wad tokens directly to account. Used by wiring and tests to
// model token inflows that originate outside the vault (buffer top-ups).
func (m *Memory) Credit(account string, wad *big.Int) error {
	if wad == nil || wad.Sign() < 0 {
		return fmt.Errorf("vat: credit amount must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balance(account)
	b.Add(b, wad)
	return nil
}

func (m *Memory) FreeCollateral(ilk, holder string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.pos(ilk, holder).free)
}

func (m *Memory) Lock(ilk, holder string, wad *big.Int) error {
	if wad == nil || wad.Sign() < 0 {
		return fmt.Errorf("vat: lock amount must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pos(ilk, holder)
	if p.free.Cmp(wad) < 0 {
		return fmt.Errorf("vat: insufficient free collateral: have=%s need=%s", p.free, wad)
	}
	p.free.Sub(p.free, wad)
	p.locked.Add(p.locked, wad)
	return nil
}

func (m *Memory) TransferDebt(ilk, holder string, normalizedDelta *big.Int, counterparty string, tokenDelta *big.Int) error {
	if normalizedDelta == nil || tokenDelta == nil {
		return fmt.Errorf("vat: nil delta")
	}
	if normalizedDelta.Sign()*tokenDelta.Sign() < 0 {
		return fmt.Errorf("vat: debt and token deltas must not have opposing signs")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pos(ilk, holder)
	total := m.ilkArt(ilk)

	if normalizedDelta.Sign() >= 0 && tokenDelta.Sign() >= 0 {
		// Draw: record debt, mint tokens to the counterparty
		p.art.Add(p.art, normalizedDelta)
		total.Add(total, normalizedDelta)
		bal := m.balance(counterparty)
		bal.Add(bal, tokenDelta)
		return nil
	}

	// Wipe: burn counterparty tokens against repaid debt. All checks run
	// before any mutation so a failure leaves the ledger untouched.
	repay := new(big.Int).Neg(normalizedDelta)
	burn := new(big.Int).Neg(tokenDelta)

	if p.art.Cmp(repay) < 0 {
		return fmt.Errorf("vat: normalized debt underflow: have=%s repay=%s", p.art, repay)
	}
	bal := m.balance(counterparty)
	if bal.Cmp(burn) < 0 {
		return fmt.Errorf("vat: insufficient token balance: have=%s burn=%s", bal, burn)
	}
	akey := allowanceKey{Owner: counterparty, Spender: holder}
	allowance, ok := m.allowances[akey]
	if !ok || allowance.Cmp(burn) < 0 {
		return fmt.Errorf("vat: insufficient allowance from %s to %s", counterparty, holder)
	}

	p.art.Sub(p.art, repay)
	total.Sub(total, repay)
	bal.Sub(bal, burn)
	allowance.Sub(allowance, burn)
	return nil
}

func (m *Memory) Urn(ilk, holder string) Urn {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pos(ilk, holder)
	return Urn{
		LockedCollateral: new(big.Int).Set(p.locked),
		NormalizedDebt:   new(big.Int).Set(p.art),
	}
}

func (m *Memory) Rate(ilk string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.rate(ilk))
}

func (m *Memory) Fold(ilk, recipient string, rateDelta *big.Int) error {
	if rateDelta == nil || rateDelta.Sign() < 0 {
		// The accumulator is monotonically non-decreasing: fees only ever
		// accrue upward.
		return fmt.Errorf("vat: rate delta must be non-negative")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.rate(ilk)
	r.Add(r, rateDelta)

	// Fee on all outstanding normalized debt, floored to wad, credited to
	// the designated recipient.
	total := m.ilkArt(ilk)
	if total.Sign() > 0 && rateDelta.Sign() > 0 {
		fee := fixedpoint.DivFloor(new(big.Int).Mul(total, rateDelta), fixedpoint.Ray)
		bal := m.balance(recipient)
		bal.Add(bal, fee)
	}
	return nil
}

func (m *Memory) TokenBalance(account string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance(account))
}

func (m *Memory) Approve(owner, spender string, wad *big.Int) {
	if wad == nil || wad.Sign() < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{Owner: owner, Spender: spender}] = new(big.Int).Set(wad)
}

func (m *Memory) Allowance(owner, spender string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.allowances[allowanceKey{Owner: owner, Spender: spender}]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}

// Snapshot returns a copy of every balance the ledger tracks, keyed by a
// stable path string. Tests use it to assert that failed operations leave
// zero state change.
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := make(map[string]string)
	for key, p := range m.positions {
		prefix := fmt.Sprintf("urn:%s:%s", key.Ilk, key.Holder)
		snap[prefix+":free"] = p.free.String()
		snap[prefix+":locked"] = p.locked.String()
		snap[prefix+":art"] = p.art.String()
	}
	for ilk, r := range m.rates {
		snap["rate:"+ilk] = r.String()
	}
	for account, b := range m.tokens {
		snap["token:"+account] = b.String()
	}
	for key, a := range m.allowances {
		snap[fmt.Sprintf("allowance:%s:%s", key.Owner, key.Spender)] = a.String()
	}
	return snap
}
