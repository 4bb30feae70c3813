package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// execer lets batch writes run either on the bare DB or inside a worker
// transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// VaultLogWriter writes applied events and command dispositions to Postgres
// using multi-row INSERT batches. ON CONFLICT DO NOTHING makes replays after
// a crash idempotent.
type VaultLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in vault_log.events.
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	Ilk            string
	Caller         string
	Payload        []byte // JSON-encoded event payload
	StateHash      string // hex, chains the event to its predecessor
	Timestamp      time.Time
}

// OperationRow represents a row in vault_log.operations: one per inbound
// command, whatever its outcome. Amounts are stored as decimal text since
// wads exceed int64.
type OperationRow struct {
	OpID           string
	CommandType    string
	IdempotencyKey string
	Ilk            string
	Caller         string
	Wad            *string // nil for init and file commands
	Status         string  // "applied", "rejected", "duplicate"
	Reason         string  // rejection reason, empty when applied
	Timestamp      time.Time
}

func NewVaultLogWriter(db *sql.DB) *VaultLogWriter {
	return &VaultLogWriter{db: db}
}

// WriteEventBatch writes a batch of events to vault_log.events.
func (w *VaultLogWriter) WriteEventBatch(ctx context.Context, events []EventRow, tx execer) error {
	if len(events) == 0 {
		return nil
	}
	if tx == nil {
		tx = w.db
	}

	query := `INSERT INTO vault_log.events
		(sequence, event_type, idempotency_key, ilk, caller, payload, state_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)

	for i, e := range events {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.Ilk,
			e.Caller, e.Payload, e.StateHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteOperationBatch writes a batch of command dispositions to
// vault_log.operations.
func (w *VaultLogWriter) WriteOperationBatch(ctx context.Context, ops []OperationRow, tx execer) error {
	if len(ops) == 0 {
		return nil
	}
	if tx == nil {
		tx = w.db
	}

	query := `INSERT INTO vault_log.operations
		(op_id, command_type, idempotency_key, ilk, caller, wad, status, reason, timestamp)
		VALUES `

	values := make([]string, 0, len(ops))
	args := make([]interface{}, 0, len(ops)*9)

	for i, o := range ops {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			o.OpID, o.CommandType, o.IdempotencyKey, o.Ilk,
			o.Caller, o.Wad, o.Status, o.Reason, o.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (op_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MaxSequence returns the highest event sequence in the log, or -1 when the
// log is empty. The engine resumes from MaxSequence+1 after a restart.
func (w *VaultLogWriter) MaxSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM vault_log.events`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max sequence: %w", err)
	}
	if !seq.Valid {
		return -1, nil
	}
	return seq.Int64, nil
}

// ReadEventsFrom returns up to limit events with sequence >= fromSequence,
// in sequence order. Used to rebuild in-memory ledger state on restart.
func (w *VaultLogWriter) ReadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, ilk, caller, payload, state_hash, timestamp
		FROM vault_log.events
		WHERE sequence >= $1
		ORDER BY sequence
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("read events from %d: %w", fromSequence, err)
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.Sequence, &e.EventType, &e.IdempotencyKey,
			&e.Ilk, &e.Caller, &e.Payload, &e.StateHash, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RecentOperationKeys returns composite dedup keys for the most recent
// applied operations, newest first. Used to warm the dedup LRU on restart.
func (w *VaultLogWriter) RecentOperationKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT command_type, idempotency_key
		FROM vault_log.operations
		WHERE status = 'applied'
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent operation keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var cmdType, key string
		if err := rows.Scan(&cmdType, &key); err != nil {
			return nil, err
		}
		keys = append(keys, fmt.Sprintf("%s:%s", cmdType, key))
	}
	return keys, rows.Err()
}

// MarshalPayload is a convenience wrapper for JSON-encoding event payloads.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}
