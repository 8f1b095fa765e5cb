package database

import (
	"context"
	"database/sql"
	"fmt"

	"transaction-audit-engine/models"
)

// ErrAuditNoteNotFound is returned when a transaction has not been audited yet.
var ErrAuditNoteNotFound = fmt.Errorf("audit note not found")

// SaveAuditNote atomically attaches a note to its transaction, overwriting
// any prior note. The row lock on the transaction serializes concurrent
// audits of the same transaction: readers either see the previous complete
// note or the new complete note, never a partial write.
func (d *Database) SaveAuditNote(ctx context.Context, transactionID string, note *models.AuditNote) error {
	payload, err := note.MarshalWire()
	if err != nil {
		return fmt.Errorf("failed to marshal audit note: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Single-writer guarantee per transaction id.
	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE id = ? FOR UPDATE`, transactionID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrTransactionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock transaction %s: %w", transactionID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_notes (transaction_id, version, note)
		 VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE version = VALUES(version), note = VALUES(note)`,
		transactionID, note.Version, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save audit note for %s: %w", transactionID, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE transactions SET audited_at = CURRENT_TIMESTAMP WHERE id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to mark transaction %s audited: %w", transactionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit note for %s: %w", transactionID, err)
	}
	return nil
}

// GetAuditNote loads the stored note for a transaction.
func (d *Database) GetAuditNote(ctx context.Context, transactionID string) (*models.AuditNote, error) {
	var payload string
	err := d.db.QueryRowContext(ctx,
		`SELECT note FROM audit_notes WHERE transaction_id = ?`, transactionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrAuditNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audit note for %s: %w", transactionID, err)
	}
	return models.ParseAuditNote([]byte(payload))
}

// CountAuditedTransactions returns how many transactions carry a note.
func (d *Database) CountAuditedTransactions(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_notes`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit notes: %w", err)
	}
	return n, nil
}
