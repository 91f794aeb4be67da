package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

// SaveInvoices inserts or replaces invoices.
func (s *Storage) SaveInvoices(ctx context.Context, invoices []model.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	query := `
	INSERT OR REPLACE INTO invoices
	(number, issue_date, due_date, total, status, last_reminder_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, inv := range invoices {
		if err := inv.Validate(); err != nil {
			_ = tx.Rollback()
			return err
		}
		var lastReminder any
		if inv.LastReminderAt != nil {
			lastReminder = *inv.LastReminderAt
		}
		if _, err := tx.ExecContext(ctx, query,
			inv.Number,
			inv.IssueDate,
			inv.DueDate,
			inv.Total,
			string(inv.Status),
			lastReminder,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: save invoice %s: %v", model.ErrPersistence, inv.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return nil
}

// ListInvoices returns invoices with issue dates in [from, to],
// oldest first.
func (s *Storage) ListInvoices(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	query := `
	SELECT number, issue_date, due_date, total, status, last_reminder_at
	FROM invoices
	WHERE issue_date >= ? AND issue_date <= ?
	ORDER BY issue_date, number
	`

	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var invoices []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		var status string
		var lastReminder sql.NullTime
		if err := rows.Scan(&inv.Number, &inv.IssueDate, &inv.DueDate, &inv.Total, &status, &lastReminder); err != nil {
			return nil, fmt.Errorf("%w: scan invoice: %v", model.ErrPersistence, err)
		}
		inv.Status = model.InvoiceStatus(status)
		if lastReminder.Valid {
			t := lastReminder.Time
			inv.LastReminderAt = &t
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
