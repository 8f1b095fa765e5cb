package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"transaction-audit-engine/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
	d    *Database
)

func setUp() {
	db, mock, _ = sqlmock.New()
	d = NewDatabaseFromConn(db)
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func sampleNote() *models.AuditNote {
	return &models.AuditNote{
		Version: models.AuditNoteVersion,
		AuditID: "audit-1",
		RuleSet: "default",
		Step1:   models.CoverageResult{Status: models.CoverageOK},
		Step2: map[string]models.MaterialAuditEntry{
			"tx-1-r1": {
				ClaimedType: models.CategoryGeneral,
				Status:      models.StatusApprove,
				Confidence:  1,
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestSaveAuditNote(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM transactions WHERE id = ? FOR UPDATE`)).
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tx-1"))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_notes`)).
			WithArgs("tx-1", models.AuditNoteVersion, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE transactions SET audited_at = CURRENT_TIMESTAMP WHERE id = ?`)).
			WithArgs("tx-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := d.SaveAuditNote(context.Background(), "tx-1", sampleNote()); err != nil {
			t.Errorf("SaveAuditNote() error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSaveAuditNoteUnknownTransaction(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM transactions WHERE id = ? FOR UPDATE`)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := d.SaveAuditNote(context.Background(), "missing", sampleNote())
		if err != ErrTransactionNotFound {
			t.Errorf("error = %v, want ErrTransactionNotFound", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSaveAuditNoteRollsBackOnWriteFailure(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM transactions WHERE id = ? FOR UPDATE`)).
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tx-1"))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_notes`)).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		if err := d.SaveAuditNote(context.Background(), "tx-1", sampleNote()); err == nil {
			t.Error("expected error on write failure")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestGetAuditNote(t *testing.T) {
	it(func() {
		payload, err := sampleNote().MarshalWire()
		if err != nil {
			t.Fatalf("MarshalWire() error: %v", err)
		}

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT note FROM audit_notes WHERE transaction_id = ?`)).
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"note"}).AddRow(string(payload)))

		note, err := d.GetAuditNote(context.Background(), "tx-1")
		if err != nil {
			t.Fatalf("GetAuditNote() error: %v", err)
		}
		if note.AuditID != "audit-1" || note.RuleSet != "default" {
			t.Errorf("note = %+v", note)
		}
		if len(note.Step2) != 1 {
			t.Errorf("Step2 entries = %d, want 1", len(note.Step2))
		}
	})
}

func TestGetAuditNoteNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT note FROM audit_notes WHERE transaction_id = ?`)).
			WithArgs("tx-x").
			WillReturnError(sql.ErrNoRows)

		if _, err := d.GetAuditNote(context.Background(), "tx-x"); err != ErrAuditNoteNotFound {
			t.Errorf("error = %v, want ErrAuditNoteNotFound", err)
		}
	})
}

func TestGetTransaction(t *testing.T) {
	it(func() {
		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, organization_id, channel, retired, created_at, audited_at`)).
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "organization_id", "channel", "retired", "created_at", "audited_at"}).
				AddRow("tx-1", "org-1", "device", false, now, nil))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, material_id, claimed_category, image_refs`)).
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "material_id", "claimed_category", "image_refs"}).
				AddRow("tx-1-r1", 1001, 1, `["mock://clear/general?pct=5"]`).
				AddRow("tx-1-r2", 2001, 2, nil))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT note FROM audit_notes WHERE transaction_id = ?`)).
			WithArgs("tx-1").
			WillReturnError(sql.ErrNoRows)

		tx, err := d.GetTransaction(context.Background(), "tx-1")
		if err != nil {
			t.Fatalf("GetTransaction() error: %v", err)
		}
		if tx.OrganizationID != "org-1" || tx.Retired {
			t.Errorf("transaction = %+v", tx)
		}
		if len(tx.Records) != 2 {
			t.Fatalf("records = %d, want 2", len(tx.Records))
		}
		if tx.Records[0].ClaimedCategory != models.CategoryGeneral {
			t.Errorf("record 0 category = %v", tx.Records[0].ClaimedCategory)
		}
		if len(tx.Records[0].ImageRefs) != 1 {
			t.Errorf("record 0 refs = %v", tx.Records[0].ImageRefs)
		}
		if tx.Records[1].HasEvidence() {
			t.Error("record 1 should have no evidence")
		}
		if tx.Note != nil {
			t.Error("unaudited transaction should carry no note")
		}
	})
}

func TestGetTransactionNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, organization_id, channel, retired, created_at, audited_at`)).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		if _, err := d.GetTransaction(context.Background(), "nope"); err != ErrTransactionNotFound {
			t.Errorf("error = %v, want ErrTransactionNotFound", err)
		}
	})
}

func TestInsertTransaction(t *testing.T) {
	it(func() {
		tx := &models.Transaction{
			ID:             "tx-1",
			OrganizationID: "org-1",
			Channel:        "device",
			Records: []models.TransactionRecord{
				{ID: "tx-1-r1", MaterialID: 1001, ClaimedCategory: models.CategoryGeneral, ImageRefs: []string{"mock://clear/general"}},
			},
		}

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions (id, organization_id, channel)`)).
			WithArgs("tx-1", "org-1", "device").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transaction_records`)).
			WithArgs("tx-1-r1", "tx-1", 1001, 1, `["mock://clear/general"]`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		if err := d.InsertTransaction(context.Background(), tx); err != nil {
			t.Errorf("InsertTransaction() error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRetireTransaction(t *testing.T) {
	it(func() {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE transactions SET retired = TRUE WHERE id = ?`)).
			WithArgs("tx-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := d.RetireTransaction(context.Background(), "tx-1"); err != nil {
			t.Errorf("RetireTransaction() error: %v", err)
		}

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE transactions SET retired = TRUE WHERE id = ?`)).
			WithArgs("tx-x").
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := d.RetireTransaction(context.Background(), "tx-x"); err != ErrTransactionNotFound {
			t.Errorf("error = %v, want ErrTransactionNotFound", err)
		}
	})
}

func TestGetRuleSetKey(t *testing.T) {
	it(func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT rule_set FROM org_rule_sets WHERE organization_id = ?`)).
			WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows([]string{"rule_set"}).AddRow("bma"))

		key, err := d.GetRuleSetKey(context.Background(), "org-1")
		if err != nil || key != "bma" {
			t.Errorf("GetRuleSetKey() = %q, %v; want bma", key, err)
		}

		// No binding is not an error: the registry resolves "" to default.
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT rule_set FROM org_rule_sets WHERE organization_id = ?`)).
			WithArgs("org-2").
			WillReturnError(sql.ErrNoRows)

		key, err = d.GetRuleSetKey(context.Background(), "org-2")
		if err != nil || key != "" {
			t.Errorf("GetRuleSetKey() = %q, %v; want empty key and nil error", key, err)
		}
	})
}

func TestSetRuleSetKey(t *testing.T) {
	it(func() {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO org_rule_sets (organization_id, rule_set)`)).
			WithArgs("org-1", "bma").
			WillReturnResult(sqlmock.NewResult(1, 1))

		if err := d.SetRuleSetKey(context.Background(), "org-1", "bma"); err != nil {
			t.Errorf("SetRuleSetKey() error: %v", err)
		}
	})
}

func TestCountAuditedTransactions(t *testing.T) {
	it(func() {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM audit_notes`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		n, err := d.CountAuditedTransactions(context.Background())
		if err != nil || n != 42 {
			t.Errorf("CountAuditedTransactions() = %d, %v; want 42", n, err)
		}
	})
}
