package models

import "time"

// Transaction is an organization-scoped waste pickup event. It owns its
// records exclusively and carries at most one audit note; the note is nil
// until the transaction has been audited. Transactions are never deleted,
// only soft-retired.
type Transaction struct {
	ID             string
	OrganizationID string
	Channel        string // "manual", "qr" or "device"
	Records        []TransactionRecord
	Note           *AuditNote
	Retired        bool
	CreatedAt      time.Time
	AuditedAt      time.Time
}

// TransactionRecord is one claimed material entry within a transaction:
// a fine-grained material id, the coarse category the submitter declared for
// it, and zero or more image references serving as evidence.
type TransactionRecord struct {
	ID              string
	MaterialID      int
	ClaimedCategory Category
	ImageRefs       []string
}

// HasEvidence reports whether the record carries at least one non-empty
// image reference.
func (r *TransactionRecord) HasEvidence() bool {
	for _, ref := range r.ImageRefs {
		if ref != "" {
			return true
		}
	}
	return false
}
