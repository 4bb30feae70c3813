package event

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// VaultInit records the one-time transition to the active state: the
// engine's entire free collateral balance moved into locked collateral.
type VaultInit struct {
	OpID      uuid.UUID
	IlkID     string
	Caller    string
	Locked    *big.Int // collateral locked, wad
	Timestamp time.Time
}

func (e *VaultInit) IdempotencyKey() string { return e.OpID.String() }
func (e *VaultInit) EventType() EventType   { return EventTypeVaultInit }
func (e *VaultInit) Ilk() string            { return e.IlkID }

// VaultDraw records normalized debt created against the ceiling and the
// tokens minted into the buffer.
type VaultDraw struct {
	OpID            uuid.UUID
	IlkID           string
	Caller          string
	Wad             *big.Int // tokens drawn into the buffer, wad
	NormalizedDelta *big.Int // normalized debt added, wad (rounded up)
	Rate            *big.Int // rate accumulator at draw time, ray
	Timestamp       time.Time
}

func (e *VaultDraw) IdempotencyKey() string { return e.OpID.String() }
func (e *VaultDraw) EventType() EventType   { return EventTypeVaultDraw }
func (e *VaultDraw) Ilk() string            { return e.IlkID }

// VaultWipe records debt repaid: tokens burned from the buffer and the
// normalized debt removed.
type VaultWipe struct {
	OpID            uuid.UUID
	IlkID           string
	Caller          string
	Wad             *big.Int // tokens burned from the buffer, wad
	NormalizedDelta *big.Int // normalized debt removed, wad (rounded down)
	Rate            *big.Int // rate accumulator at wipe time, ray
	Timestamp       time.Time
}

func (e *VaultWipe) IdempotencyKey() string { return e.OpID.String() }
func (e *VaultWipe) EventType() EventType   { return EventTypeVaultWipe }
func (e *VaultWipe) Ilk() string            { return e.IlkID }

// VaultFile records an administrative configuration change.
type VaultFile struct {
	OpID      uuid.UUID
	IlkID     string
	Caller    string
	What      string
	Timestamp time.Time
}

func (e *VaultFile) IdempotencyKey() string { return e.OpID.String() }
func (e *VaultFile) EventType() EventType   { return EventTypeVaultFile }
func (e *VaultFile) Ilk() string            { return e.IlkID }

// --- Inbound commands ---
// Commands arrive from operators/automation over NATS; the ingestion shell
// parses and dedups them before dispatching to the engine.

// Command is an inbound operation request.
type Command interface {
	IdempotencyKey() string
	CommandType() string
	Ilk() string
}

// InitCommand requests the one-time vault initialization.
type InitCommand struct {
	CmdID     uuid.UUID
	IlkID     string
	Caller    string
	Timestamp time.Time
}

func (c *InitCommand) IdempotencyKey() string { return fmt.Sprintf("init:%s", c.CmdID) }
func (c *InitCommand) CommandType() string    { return "Init" }
func (c *InitCommand) Ilk() string            { return c.IlkID }

// DrawCommand requests wad tokens drawn into the buffer.
type DrawCommand struct {
	CmdID     uuid.UUID
	IlkID     string
	Caller    string
	Wad       *big.Int
	Timestamp time.Time
}

func (c *DrawCommand) IdempotencyKey() string { return fmt.Sprintf("draw:%s", c.CmdID) }
func (c *DrawCommand) CommandType() string    { return "Draw" }
func (c *DrawCommand) Ilk() string            { return c.IlkID }

// WipeCommand requests wad tokens repaid from the buffer.
type WipeCommand struct {
	CmdID     uuid.UUID
	IlkID     string
	Caller    string
	Wad       *big.Int
	Timestamp time.Time
}

func (c *WipeCommand) IdempotencyKey() string { return fmt.Sprintf("wipe:%s", c.CmdID) }
func (c *WipeCommand) CommandType() string    { return "Wipe" }
func (c *WipeCommand) Ilk() string            { return c.IlkID }

// CeilingUpdate is the debt-ceiling feed message from the risk service.
type CeilingUpdate struct {
	IlkID     string
	Line      *big.Int // new ceiling, wad
	Sequence  int64
	Timestamp time.Time
}

func (c *CeilingUpdate) IdempotencyKey() string {
	return fmt.Sprintf("line:%s:%d", c.IlkID, c.Sequence)
}
func (c *CeilingUpdate) CommandType() string { return "CeilingUpdate" }
func (c *CeilingUpdate) Ilk() string         { return c.IlkID }
