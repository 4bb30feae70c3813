package vat

import "math/big"

// Urn is one position in the shared ledger: locked collateral and
// normalized debt, both wad. Normalized debt does not carry accrued fees;
// multiplying by the ilk's rate accumulator yields absolute debt (rad).
type Urn struct {
	LockedCollateral *big.Int
	NormalizedDebt   *big.Int
}

// Ledger is the narrow interface the engine consumes. The real ledger is an
// external system with serializable isolation; implementations must make
// each call atomic (fully applied or fully rejected) and serialize
// conflicting writes to the same position.
type Ledger interface {
	// FreeCollateral returns holder's unlocked collateral balance for ilk (wad).
	FreeCollateral(ilk, holder string) *big.Int

	// Lock moves wad from holder's free collateral into locked collateral.
	Lock(ilk, holder string, wad *big.Int) error

	// TransferDebt adjusts holder's normalized debt by normalizedDelta (wad,
	// signed) and counterparty's token balance by tokenDelta (wad, signed)
	// in one atomic step. A positive pair mints tokens against new debt; a
	// negative pair burns counterparty tokens against repaid debt. Burns
	// require an allowance from counterparty to holder.
	TransferDebt(ilk, holder string, normalizedDelta *big.Int, counterparty string, tokenDelta *big.Int) error

	// Urn returns the position for (ilk, holder).
	Urn(ilk, holder string) Urn

	// Rate returns the ilk's rate accumulator (ray, monotonically
	// non-decreasing, starts at 1.0).
	Rate(ilk string) *big.Int

	// Fold advances the ilk's rate accumulator by rateDelta (ray, >= 0) and
	// credits the accrued fee on all outstanding normalized debt to
	// recipient's token balance. Called by the fee accrual service only.
	Fold(ilk, recipient string, rateDelta *big.Int) error

	// TokenBalance returns account's token balance (wad).
	TokenBalance(account string) *big.Int

	// Approve grants spender the right to burn up to wad tokens from owner.
	Approve(owner, spender string, wad *big.Int)

	// Allowance returns the remaining owner->spender burn allowance (wad).
	Allowance(owner, spender string) *big.Int
}
