package auth

import "sync"

// Registry decides whether a caller may invoke a guarded vault operation.
// Every privileged entry point queries the registry fresh on each call —
// no caching — so a revoked caller is rejected on their very next call.
type Registry interface {
	Authorized(caller string) bool
}

// Allowlist is an in-memory capability registry administered through
// Rely/Deny. Engines for different ilks can share one allowlist or carry
// their own.
type Allowlist struct {
	mu    sync.RWMutex
	wards map[string]bool
}

// NewAllowlist creates an allowlist with the given initial operators.
func NewAllowlist(operators ...string) *Allowlist {
	wards := make(map[string]bool, len(operators))
	for _, op := range operators {
		wards[op] = true
	}
	return &Allowlist{wards: wards}
}

// Rely grants caller access to guarded operations.
func (a *Allowlist) Rely(caller string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.wards[caller] = true
}

// Deny revokes caller's access.
func (a *Allowlist) Deny(caller string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.wards, caller)
}

// Authorized reports whether caller currently holds a grant.
func (a *Allowlist) Authorized(caller string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.wards[caller]
}
