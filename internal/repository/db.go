package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			amount INTEGER NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			method_type TEXT NOT NULL,
			reference TEXT NOT NULL,
			payer_id TEXT,
			payee_id TEXT,
			metadata TEXT,
			external_ref TEXT,
			settled_amount INTEGER,
			reversed_amount INTEGER,
			reversal_reason TEXT,
			failure_code TEXT,
			failure_reason TEXT,
			cancelled_by TEXT,
			cancel_reason TEXT,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			processed_at DATETIME,
			settled_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_tenant ON payments(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_reference ON payments(reference)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at)`,

		// The UNIQUE constraint is what makes create-with-key atomic: a
		// losing concurrent insert observes zero rows affected instead of
		// silently creating a second payment.
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			tenant_id TEXT NOT NULL,
			key_value TEXT NOT NULL,
			payment_id TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			UNIQUE(tenant_id, key_value)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires ON idempotency_keys(expires_at)`,

		`CREATE TABLE IF NOT EXISTS disbursements (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			currency TEXT NOT NULL,
			recipient_name TEXT NOT NULL,
			recipient_account TEXT NOT NULL,
			recipient_bank TEXT NOT NULL,
			recipient_email TEXT,
			status TEXT NOT NULL,
			approved_by TEXT,
			approved_at DATETIME,
			approval_comment TEXT,
			rejected_by TEXT,
			rejection_reason TEXT,
			scheduled_date DATETIME,
			source_document_ids TEXT,
			reference_number TEXT UNIQUE NOT NULL,
			external_ref TEXT,
			failure_code TEXT,
			failure_reason TEXT,
			cancelled_by TEXT,
			cancel_reason TEXT,
			created_at DATETIME NOT NULL,
			processed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_disbursements_tenant ON disbursements(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_disbursements_status ON disbursements(status)`,
		`CREATE INDEX IF NOT EXISTS idx_disbursements_scheduled ON disbursements(scheduled_date)`,

		`CREATE TABLE IF NOT EXISTS settlement_batches (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			payment_count INTEGER NOT NULL DEFAULT 0,
			total_amount INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			opened_at DATETIME NOT NULL,
			closed_at DATETIME,
			reconciled_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_settlement_batches_status ON settlement_batches(status)`,

		// PRIMARY KEY on payment_id keeps a payment in at most one batch.
		`CREATE TABLE IF NOT EXISTS batch_payments (
			payment_id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL,
			added_at DATETIME NOT NULL,
			FOREIGN KEY (batch_id) REFERENCES settlement_batches(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_payments_batch ON batch_payments(batch_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
