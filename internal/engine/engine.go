package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultCore/internal/auth"
	"VaultCore/internal/event"
	"VaultCore/internal/fixedpoint"
	"VaultCore/internal/jug"
	"VaultCore/internal/observability"
	"VaultCore/internal/oracle"
	"VaultCore/internal/vat"
)

// Output pairs an event envelope with its typed payload. The engine emits
// every applied operation to the persist channel (blocking send — no event
// is lost) and the publish channel (non-blocking send — downstream can
// re-read the event log if it falls behind).
type Output struct {
	Envelope event.Envelope
	Payload  event.Event
}

// Config wires an Engine.
type Config struct {
	Ilk    string // collateral class this engine serves
	Holder string // the engine's own ledger address
	Buffer string // collateral buffer account drawing proceeds land in

	Ledger   vat.Ledger
	Accruer  jug.Accruer
	Ceiling  oracle.CeilingOracle
	Registry auth.Registry

	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Optional: nil channels disable emission (unit tests).
	PersistChan chan<- Output
	PublishChan chan<- Output

	// Optional: injectable clock for tests.
	Now func() time.Time

	// Sequence to resume from after restart.
	StartSequence int64

	// Hex-encoded state hash of the last persisted event; empty starts the
	// chain from the genesis seed.
	StartStateHash string

	// True when the event log shows init already ran; the engine resumes
	// in the Active state.
	StartInitialized bool
}

// Engine converts a pre-allocated collateral balance into normalized debt
// against the shared ledger, subject to the ceiling oracle, and wipes that
// debt by burning repaid tokens. One-way state machine:
// Uninitialized -> Active, triggered by Init.
//
// The engine holds no rate or ceiling state of its own; every operation
// queries its collaborators fresh. A single mutex makes each operation a
// serialized unit of work — accrual, ceiling query, ledger mutation and
// token movement happen with no interleaving, and any failure occurs
// before the operation's one mutating ledger call.
type Engine struct {
	mu sync.Mutex

	ilk    string
	holder string
	buffer string

	ledger   vat.Ledger
	accruer  jug.Accruer
	ceiling  oracle.CeilingOracle
	registry auth.Registry

	log     zerolog.Logger
	metrics *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output

	now         func() time.Time
	sequence    int64
	initialized bool
	hasher      *StateHasher
}

func New(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	hasher := NewStateHasher()
	if cfg.StartStateHash != "" {
		tip, err := hex.DecodeString(cfg.StartStateHash)
		if err != nil || len(tip) != sha256.Size {
			cfg.Logger.Warn().Str("state_hash", cfg.StartStateHash).
				Msg("bad start state hash, restarting chain from genesis")
		} else {
			var t [32]byte
			copy(t[:], tip)
			hasher = ResumeStateHasher(t)
		}
	}
	return &Engine{
		ilk:         cfg.Ilk,
		holder:      cfg.Holder,
		buffer:      cfg.Buffer,
		ledger:      cfg.Ledger,
		accruer:     cfg.Accruer,
		ceiling:     cfg.Ceiling,
		registry:    cfg.Registry,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		persistChan: cfg.PersistChan,
		publishChan: cfg.PublishChan,
		now:         now,
		sequence:    cfg.StartSequence,
		initialized: cfg.StartInitialized,
		hasher:      hasher,
	}
}

// Ilk returns the collateral class this engine serves.
func (e *Engine) Ilk() string { return e.ilk }

// Initialized reports whether the one-time init has run.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Init moves the engine's entire free collateral balance into locked
// collateral and transitions to Active. Single-use: a second call fails
// with ErrAlreadyInitialized and has no ledger effect.
func (e *Engine) Init(ctx context.Context, caller string) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registry.Authorized(caller) {
		e.reject("init", "unauthorized")
		return ErrUnauthorized
	}
	if e.initialized {
		e.reject("init", "already_initialized")
		return ErrAlreadyInitialized
	}

	free := e.ledger.FreeCollateral(e.ilk, e.holder)
	if free.Sign() <= 0 {
		e.reject("init", "nothing_to_init")
		return ErrNothingToInit
	}

	if err := e.ledger.Lock(e.ilk, e.holder, free); err != nil {
		e.reject("init", "ledger")
		return fmt.Errorf("init: lock collateral: %w", err)
	}
	e.initialized = true

	e.emit(&event.VaultInit{
		OpID:      uuid.New(),
		IlkID:     e.ilk,
		Caller:    caller,
		Locked:    free,
		Timestamp: e.now(),
	}, caller)

	e.log.Info().
		Str("ilk", e.ilk).
		Str("caller", caller).
		Str("locked_wad", free.String()).
		Msg("vault initialized")
	e.applied("init", start)
	return nil
}

// Draw accrues fees, checks the freshly-queried ceiling, and creates
// normalized debt worth at least wad — the normalized delta is rounded UP
// so truncation can never under-record what is owed. Exactly wad tokens
// are minted into the buffer in the same atomic ledger call.
func (e *Engine) Draw(ctx context.Context, caller string, wad *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registry.Authorized(caller) {
		e.reject("draw", "unauthorized")
		return ErrUnauthorized
	}
	if !e.initialized {
		e.reject("draw", "not_initialized")
		return ErrNotInitialized
	}
	if wad == nil || wad.Sign() <= 0 {
		e.reject("draw", "invalid_amount")
		return ErrInvalidAmount
	}

	// Accrue before the ceiling check: a stale rate must never understate
	// current debt.
	rate, err := e.accruer.Accrue(ctx, e.ilk)
	if err != nil {
		e.reject("draw", "accrue")
		return fmt.Errorf("draw: accrue: %w", err)
	}
	if e.metrics != nil {
		e.metrics.AccrualsTotal.WithLabelValues(e.ilk).Inc()
	}

	urn := e.ledger.Urn(e.ilk, e.holder)
	tab := fixedpoint.MulRay(urn.NormalizedDebt, rate) // rad

	line, err := e.ceiling.CurrentCeiling(ctx, e.ilk)
	if err != nil {
		e.reject("draw", "oracle")
		return fmt.Errorf("draw: ceiling query: %w", err)
	}

	// Compare at rad scale: tab + wad > line, exactly at the ceiling
	// succeeds.
	want := new(big.Int).Add(tab, fixedpoint.WadToRad(wad))
	if want.Cmp(fixedpoint.WadToRad(line)) > 0 {
		e.reject("draw", "ceiling")
		return ErrCeilingExceeded
	}

	delta := fixedpoint.DivCeil(fixedpoint.WadToRad(wad), rate)

	if err := e.ledger.TransferDebt(e.ilk, e.holder, delta, e.buffer, wad); err != nil {
		e.reject("draw", "ledger")
		return fmt.Errorf("draw: transfer debt: %w", err)
	}

	e.emit(&event.VaultDraw{
		OpID:            uuid.New(),
		IlkID:           e.ilk,
		Caller:          caller,
		Wad:             new(big.Int).Set(wad),
		NormalizedDelta: delta,
		Rate:            rate,
		Timestamp:       e.now(),
	}, caller)

	e.log.Info().
		Str("ilk", e.ilk).
		Str("caller", caller).
		Str("wad", wad.String()).
		Str("normalized_delta", delta.String()).
		Str("rate_ray", rate.String()).
		Msg("debt drawn")
	e.applied("draw", start)
	e.updateGauges(line, rate)
	return nil
}

// Wipe accrues fees, pulls wad tokens from the buffer via its pre-granted
// allowance, and burns them against normalized debt. The normalized delta
// is rounded DOWN so the engine can never claim more debt reduction than
// the tokens paid for; a residual dust of normalized debt may remain.
func (e *Engine) Wipe(ctx context.Context, caller string, wad *big.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registry.Authorized(caller) {
		e.reject("wipe", "unauthorized")
		return ErrUnauthorized
	}
	if !e.initialized {
		e.reject("wipe", "not_initialized")
		return ErrNotInitialized
	}
	if wad == nil || wad.Sign() <= 0 {
		e.reject("wipe", "invalid_amount")
		return ErrInvalidAmount
	}

	rate, err := e.accruer.Accrue(ctx, e.ilk)
	if err != nil {
		e.reject("wipe", "accrue")
		return fmt.Errorf("wipe: accrue: %w", err)
	}
	if e.metrics != nil {
		e.metrics.AccrualsTotal.WithLabelValues(e.ilk).Inc()
	}

	if e.ledger.TokenBalance(e.buffer).Cmp(wad) < 0 {
		e.reject("wipe", "insufficient_balance")
		return ErrInsufficientBalance
	}

	delta := fixedpoint.DivFloor(fixedpoint.WadToRad(wad), rate)

	urn := e.ledger.Urn(e.ilk, e.holder)
	if delta.Cmp(urn.NormalizedDebt) > 0 {
		e.reject("wipe", "insufficient_debt")
		return ErrInsufficientDebt
	}

	if err := e.ledger.TransferDebt(e.ilk, e.holder,
		new(big.Int).Neg(delta), e.buffer, new(big.Int).Neg(wad)); err != nil {
		e.reject("wipe", "ledger")
		return fmt.Errorf("wipe: transfer debt: %w", err)
	}

	e.emit(&event.VaultWipe{
		OpID:            uuid.New(),
		IlkID:           e.ilk,
		Caller:          caller,
		Wad:             new(big.Int).Set(wad),
		NormalizedDelta: delta,
		Rate:            rate,
		Timestamp:       e.now(),
	}, caller)

	e.log.Info().
		Str("ilk", e.ilk).
		Str("caller", caller).
		Str("wad", wad.String()).
		Str("normalized_delta", delta.String()).
		Str("rate_ray", rate.String()).
		Msg("debt wiped")
	e.applied("wipe", start)

	if line, lerr := e.ceiling.CurrentCeiling(ctx, e.ilk); lerr == nil {
		e.updateGauges(line, rate)
	}
	return nil
}

// Debt returns the absolute debt (rad): normalized debt times the LAST
// PERSISTED rate. Accrual is not triggered, so the value may understate
// true current debt by at most one accrual period — callers needing a
// live figure must trigger accrual first.
func (e *Engine) Debt(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	urn := e.ledger.Urn(e.ilk, e.holder)
	rate := e.ledger.Rate(e.ilk)
	return fixedpoint.MulRay(urn.NormalizedDebt, rate), nil
}

// Slot returns the remaining headroom beneath the ceiling, in wad, floored
// and clamped at zero. Same staleness caveat as Debt.
func (e *Engine) Slot(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, ErrNotInitialized
	}

	line, err := e.ceiling.CurrentCeiling(ctx, e.ilk)
	if err != nil {
		return nil, fmt.Errorf("slot: ceiling query: %w", err)
	}

	urn := e.ledger.Urn(e.ilk, e.holder)
	tab := fixedpoint.MulRay(urn.NormalizedDebt, e.ledger.Rate(e.ilk))

	headroom := new(big.Int).Sub(fixedpoint.WadToRad(line), tab)
	if headroom.Sign() <= 0 {
		return new(big.Int), nil
	}
	return fixedpoint.DivFloor(headroom, fixedpoint.Ray), nil
}

// File updates a single named configuration field. Valid in either
// lifecycle state — collaborators must be swappable before init.
//   "jug"    — the fee accrual service (jug.Accruer)
//   "oracle" — the debt ceiling oracle (oracle.CeilingOracle)
func (e *Engine) File(ctx context.Context, caller, what string, data interface{}) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registry.Authorized(caller) {
		e.reject("file", "unauthorized")
		return ErrUnauthorized
	}

	switch what {
	case "jug":
		a, ok := data.(jug.Accruer)
		if !ok {
			e.reject("file", "bad_value")
			return fmt.Errorf("file %q: value is not an accruer: %w", what, ErrUnrecognizedParameter)
		}
		e.accruer = a
	case "oracle":
		o, ok := data.(oracle.CeilingOracle)
		if !ok {
			e.reject("file", "bad_value")
			return fmt.Errorf("file %q: value is not a ceiling oracle: %w", what, ErrUnrecognizedParameter)
		}
		e.ceiling = o
	default:
		e.reject("file", "unrecognized")
		return fmt.Errorf("file %q: %w", what, ErrUnrecognizedParameter)
	}

	e.emit(&event.VaultFile{
		OpID:      uuid.New(),
		IlkID:     e.ilk,
		Caller:    caller,
		What:      what,
		Timestamp: e.now(),
	}, caller)

	e.log.Info().Str("ilk", e.ilk).Str("caller", caller).Str("what", what).Msg("parameter filed")
	e.applied("file", start)
	return nil
}

// Sequence returns the next event sequence the engine will assign.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// stateDigest summarizes the post-operation ledger state the hash chain
// commits to: the urn, the rate accumulator, and the buffer balance.
func (e *Engine) stateDigest() []byte {
	urn := e.ledger.Urn(e.ilk, e.holder)
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s",
		e.ilk,
		urn.LockedCollateral,
		urn.NormalizedDebt,
		e.ledger.Rate(e.ilk),
		e.ledger.TokenBalance(e.buffer),
	)
	return h.Sum(nil)
}

// emit assigns a sequence, extends the state hash chain, and fans the event
// out. Persist channel send is blocking (backpressure — the engine stalls
// rather than lose an event); publish channel send is non-blocking with a
// drop counter.
func (e *Engine) emit(payload event.Event, caller string) {
	stateHash := e.hasher.ComputeHash(e.sequence, e.stateDigest())
	out := Output{
		Envelope: event.Envelope{
			Sequence:       e.sequence,
			IdempotencyKey: payload.IdempotencyKey(),
			EventType:      payload.EventType(),
			Ilk:            e.ilk,
			Caller:         caller,
			StateHash:      hex.EncodeToString(stateHash[:]),
			Timestamp:      e.now(),
		},
		Payload: payload,
	}
	e.sequence++

	if e.persistChan != nil {
		e.persistChan <- out
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}
}

func (e *Engine) applied(op string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (e *Engine) reject(op, reason string) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
}

// updateGauges refreshes the debt-state gauges after a mutation. Gauges
// are float approximations; the ledger keeps the exact integers.
func (e *Engine) updateGauges(line, rate *big.Int) {
	if e.metrics == nil {
		return
	}
	urn := e.ledger.Urn(e.ilk, e.holder)
	tab := fixedpoint.MulRay(urn.NormalizedDebt, rate)
	tabWad := fixedpoint.DivFloor(tab, fixedpoint.Ray)

	headroom := new(big.Int).Sub(fixedpoint.WadToRad(line), tab)
	headroomWad := new(big.Int)
	if headroom.Sign() > 0 {
		headroomWad = fixedpoint.DivFloor(headroom, fixedpoint.Ray)
	}

	e.metrics.AbsoluteDebt.WithLabelValues(e.ilk).Set(observability.WadFloat(tabWad))
	e.metrics.NormalizedDebt.WithLabelValues(e.ilk).Set(observability.WadFloat(urn.NormalizedDebt))
	e.metrics.HeadroomWad.WithLabelValues(e.ilk).Set(observability.WadFloat(headroomWad))
	e.metrics.CeilingWad.WithLabelValues(e.ilk).Set(observability.WadFloat(line))
	e.metrics.RateAccumulator.WithLabelValues(e.ilk).Set(observability.RayFloat(rate))
	e.metrics.BufferBalance.WithLabelValues(e.ilk).Set(observability.WadFloat(e.ledger.TokenBalance(e.buffer)))
}
