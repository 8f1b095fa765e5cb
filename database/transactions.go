package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"transaction-audit-engine/models"
)

// ErrTransactionNotFound is returned when a transaction id resolves to nothing.
var ErrTransactionNotFound = fmt.Errorf("transaction not found")

// GetTransaction loads one transaction with its records and, when present,
// its stored audit note.
func (d *Database) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t := &models.Transaction{}
	var auditedAt sql.NullTime
	err := d.db.QueryRowContext(ctx,
		`SELECT id, organization_id, channel, retired, created_at, audited_at
		 FROM transactions WHERE id = ?`, id).
		Scan(&t.ID, &t.OrganizationID, &t.Channel, &t.Retired, &t.CreatedAt, &auditedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction %s: %w", id, err)
	}
	if auditedAt.Valid {
		t.AuditedAt = auditedAt.Time
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, material_id, claimed_category, image_refs
		 FROM transaction_records WHERE transaction_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query records for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.TransactionRecord
		var category int
		var refsJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.MaterialID, &category, &refsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.ClaimedCategory = models.CategoryFromID(category)
		if refsJSON.Valid && refsJSON.String != "" {
			if err := json.Unmarshal([]byte(refsJSON.String), &r.ImageRefs); err != nil {
				return nil, fmt.Errorf("failed to parse image refs for record %s: %w", r.ID, err)
			}
		}
		t.Records = append(t.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	note, err := d.GetAuditNote(ctx, id)
	if err == nil {
		t.Note = note
	} else if err != ErrAuditNoteNotFound {
		return nil, err
	}

	return t, nil
}

// InsertTransaction stores a transaction and its records. Used by the intake
// glue and by the mock evidence generator when seeding test data.
func (d *Database) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, organization_id, channel) VALUES (?, ?, ?)`,
		t.ID, t.OrganizationID, t.Channel)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
	}

	for i := range t.Records {
		r := &t.Records[i]
		refsJSON, err := json.Marshal(r.ImageRefs)
		if err != nil {
			return fmt.Errorf("failed to marshal image refs: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transaction_records (id, transaction_id, material_id, claimed_category, image_refs)
			 VALUES (?, ?, ?, ?, ?)`,
			r.ID, t.ID, r.MaterialID, int(r.ClaimedCategory), string(refsJSON))
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// RetireTransaction soft-retires a transaction. Transactions are never deleted.
func (d *Database) RetireTransaction(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE transactions SET retired = TRUE WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to retire transaction %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// GetRuleSetKey returns the rule set configured for an organization, or ""
// when none is bound. Resolution to the default policy happens in the
// registry, never here.
func (d *Database) GetRuleSetKey(ctx context.Context, organizationID string) (string, error) {
	var key string
	err := d.db.QueryRowContext(ctx,
		`SELECT rule_set FROM org_rule_sets WHERE organization_id = ?`, organizationID).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query rule set for %s: %w", organizationID, err)
	}
	return key, nil
}

// SetRuleSetKey binds an organization to a rule set.
func (d *Database) SetRuleSetKey(ctx context.Context, organizationID, key string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO org_rule_sets (organization_id, rule_set) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE rule_set = VALUES(rule_set)`, organizationID, key)
	if err != nil {
		return fmt.Errorf("failed to set rule set for %s: %w", organizationID, err)
	}
	return nil
}
