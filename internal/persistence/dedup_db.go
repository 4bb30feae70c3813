package persistence

import (
	"context"
	"database/sql"
	"time"
)

// PostgresDedupChecker answers cold-path dedup lookups from the operations
// log: a command is a duplicate if a row with the same command type and
// idempotency key was already applied.
type PostgresDedupChecker struct {
	db *sql.DB
}

func NewPostgresDedupChecker(db *sql.DB) *PostgresDedupChecker {
	return &PostgresDedupChecker{db: db}
}

// IsDuplicate checks if the command exists in vault_log.operations.
func (pdc *PostgresDedupChecker) IsDuplicate(commandType string, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	query := `
        SELECT 1
        FROM vault_log.operations
        WHERE command_type = $1 AND idempotency_key = $2 AND status = 'applied'
        LIMIT 1
    `

	var exists int
	err := pdc.db.QueryRowContext(ctx, query, commandType, idempotencyKey).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
