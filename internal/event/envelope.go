package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeVaultInit
	EventTypeVaultDraw
	EventTypeVaultWipe
	EventTypeVaultFile
)

// Envelope wraps every event the engine appends to the log
type Envelope struct {
	// Monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key (operation ID)
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Ilk context
	Ilk string

	// Caller that triggered the operation
	Caller string

	// Hex-encoded state hash chaining this event to its predecessor:
	// state_hash[N] = SHA-256(prev_hash || sequence || state_digest)
	StateHash string

	// Operation timestamp
	Timestamp time.Time
}

// Event is the interface all engine event payloads implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Ilk returns the collateral class context
	Ilk() string
}

func (et EventType) String() string {
	switch et {
	case EventTypeVaultInit:
		return "VaultInit"
	case EventTypeVaultDraw:
		return "VaultDraw"
	case EventTypeVaultWipe:
		return "VaultWipe"
	case EventTypeVaultFile:
		return "VaultFile"
	default:
		return "Unknown"
	}
}
