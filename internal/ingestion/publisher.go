package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"VaultCore/internal/engine"
	"VaultCore/internal/event"
)

// OutboundPublisher publishes applied events to NATS for downstream
// consumers. Publishing is best-effort: a failed publish is logged and
// dropped, since consumers can always re-read the Postgres event log.
// Subjects follow the pattern vault.events.{event_type}.{ilk}.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
}

// publishedEvent is the outbound wire format. Wads, rays, and rads travel
// as decimal strings.
type publishedEvent struct {
	Sequence       int64       `json:"sequence"`
	EventType      string      `json:"event_type"`
	IdempotencyKey string      `json:"idempotency_key"`
	Ilk            string      `json:"ilk"`
	Caller         string      `json:"caller"`
	Payload        interface{} `json:"payload"`
	StateHash      string      `json:"state_hash"`
	Timestamp      time.Time   `json:"timestamp"`
}

type initPayloadJSON struct {
	LockedWad string `json:"locked_wad"`
}

type debtPayloadJSON struct {
	Wad             string `json:"wad"`
	NormalizedDelta string `json:"normalized_delta"`
	RateRay         string `json:"rate_ray"`
}

type filePayloadJSON struct {
	What string `json:"what"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan engine.Output) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", out.Envelope.Sequence, err)
				// Non-fatal: downstream consumers can query the event log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out engine.Output) error {
	wire := publishedEvent{
		Sequence:       out.Envelope.Sequence,
		EventType:      out.Envelope.EventType.String(),
		IdempotencyKey: out.Envelope.IdempotencyKey,
		Ilk:            out.Envelope.Ilk,
		Caller:         out.Envelope.Caller,
		Payload:        wirePayload(out.Payload),
		StateHash:      out.Envelope.StateHash,
		Timestamp:      out.Envelope.Timestamp,
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("vault.events.%s.%s", wire.EventType, wire.Ilk)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

func wirePayload(payload event.Event) interface{} {
	switch p := payload.(type) {
	case *event.VaultInit:
		return initPayloadJSON{LockedWad: p.Locked.String()}
	case *event.VaultDraw:
		return debtPayloadJSON{
			Wad:             p.Wad.String(),
			NormalizedDelta: p.NormalizedDelta.String(),
			RateRay:         p.Rate.String(),
		}
	case *event.VaultWipe:
		return debtPayloadJSON{
			Wad:             p.Wad.String(),
			NormalizedDelta: p.NormalizedDelta.String(),
			RateRay:         p.Rate.String(),
		}
	case *event.VaultFile:
		return filePayloadJSON{What: p.What}
	default:
		return nil
	}
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "VAULT_EVENTS",
		Subjects:  []string{"vault.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream VAULT_EVENTS")
	return nil
}
