package engine

import "errors"

// Every failure aborts the whole operation atomically — no retries, no
// partial application — and propagates to the caller unchanged.
var (
	// ErrUnauthorized: the capability check failed. Always checked first,
	// before any state is read.
	ErrUnauthorized = errors.New("engine: caller not authorized")

	// ErrNotInitialized: an operation was attempted before init.
	ErrNotInitialized = errors.New("engine: vault not initialized")

	// ErrAlreadyInitialized: init is a single-use transition, not idempotent.
	ErrAlreadyInitialized = errors.New("engine: vault already initialized")

	// ErrNothingToInit: the free collateral balance is zero.
	ErrNothingToInit = errors.New("engine: no free collateral to lock")

	// ErrCeilingExceeded: the draw would push absolute debt over the
	// ceiling reported by the oracle.
	ErrCeilingExceeded = errors.New("engine: debt ceiling exceeded")

	// ErrInsufficientBalance: the buffer lacks the tokens for a wipe.
	ErrInsufficientBalance = errors.New("engine: insufficient buffer balance")

	// ErrInsufficientDebt: the wipe's normalized equivalent exceeds the
	// current normalized debt.
	ErrInsufficientDebt = errors.New("engine: wipe exceeds outstanding debt")

	// ErrUnrecognizedParameter: administrative file with an unknown key.
	ErrUnrecognizedParameter = errors.New("engine: unrecognized parameter")

	// ErrInvalidAmount: operation amounts must be strictly positive.
	ErrInvalidAmount = errors.New("engine: amount must be positive")
)
