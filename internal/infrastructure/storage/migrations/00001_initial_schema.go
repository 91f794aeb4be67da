// Package migrations holds the goose schema migrations for the
// reconciliation database. Importing the package registers them.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInitialSchema, downInitialSchema)
}

// upInitialSchema creates the reconciliation tables: bank movements,
// invoices, reconciliation records and the link table tying them
// together.
func upInitialSchema(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reconciliation_records (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL DEFAULT 'pending',
			rule TEXT NOT NULL DEFAULT 'none',
			note TEXT NOT NULL DEFAULT '',
			residual REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS bank_movements (
			id TEXT PRIMARY KEY,
			operation_date TIMESTAMP NOT NULL,
			value_date TIMESTAMP,
			concept TEXT NOT NULL DEFAULT '',
			amount REAL NOT NULL,
			balance REAL NOT NULL DEFAULT 0,
			fiscal_year INTEGER NOT NULL DEFAULT 0,
			ingested_at TIMESTAMP,
			punctual BOOLEAN NOT NULL DEFAULT 0,
			recon_state TEXT NOT NULL DEFAULT 'pending',
			record_id TEXT,
			FOREIGN KEY (record_id) REFERENCES reconciliation_records(id)
		)`,

		`CREATE TABLE IF NOT EXISTS invoices (
			number TEXT PRIMARY KEY,
			issue_date TIMESTAMP NOT NULL,
			due_date TIMESTAMP NOT NULL,
			total REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'issued',
			last_reminder_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS reconciliation_links (
			record_id TEXT NOT NULL,
			movement_id TEXT,
			invoice_number TEXT,
			FOREIGN KEY (record_id) REFERENCES reconciliation_records(id),
			FOREIGN KEY (movement_id) REFERENCES bank_movements(id),
			FOREIGN KEY (invoice_number) REFERENCES invoices(number)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bank_movements_state
		 ON bank_movements(recon_state)`,

		`CREATE INDEX IF NOT EXISTS idx_bank_movements_operation_date
		 ON bank_movements(operation_date)`,

		`CREATE INDEX IF NOT EXISTS idx_invoices_issue_date
		 ON invoices(issue_date)`,

		`CREATE INDEX IF NOT EXISTS idx_invoices_status
		 ON invoices(status)`,

		`CREATE INDEX IF NOT EXISTS idx_reconciliation_records_state
		 ON reconciliation_records(state)`,

		`CREATE INDEX IF NOT EXISTS idx_reconciliation_links_record
		 ON reconciliation_links(record_id)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

func downInitialSchema(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`DROP TABLE IF EXISTS reconciliation_links`,
		`DROP TABLE IF EXISTS invoices`,
		`DROP TABLE IF EXISTS bank_movements`,
		`DROP TABLE IF EXISTS reconciliation_records`,
	}
	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
