package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

// ApplyRecords writes one batch of reconciliation records atomically:
// the records themselves, their movement/invoice links, the movement
// back-references, and the paid status of fully settled invoices.
// On any failure the transaction is rolled back and no partial
// reconciliation state is left visible.
func (s *Storage) ApplyRecords(ctx context.Context, records []model.ReconciliationRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	for _, rec := range records {
		if err := s.applyRecord(ctx, tx, rec); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrPersistence, err)
	}
	return nil
}

func (s *Storage) applyRecord(ctx context.Context, tx *sql.Tx, rec model.ReconciliationRecord) error {
	var resolvedAt any
	if rec.ResolvedAt != nil {
		resolvedAt = *rec.ResolvedAt
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliation_records (id, state, rule, note, residual, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.State), string(rec.Rule), rec.Note, rec.Residual, rec.CreatedAt, resolvedAt,
	); err != nil {
		return fmt.Errorf("%w: insert record %s: %v", model.ErrPersistence, rec.ID, err)
	}

	for _, movementID := range rec.MovementIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reconciliation_links (record_id, movement_id) VALUES (?, ?)`,
			rec.ID, movementID,
		); err != nil {
			return fmt.Errorf("%w: link movement %s: %v", model.ErrPersistence, movementID, err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE bank_movements SET recon_state = ?, record_id = ? WHERE id = ?`,
			string(rec.State), rec.ID, movementID,
		)
		if err != nil {
			return fmt.Errorf("%w: update movement %s: %v", model.ErrPersistence, movementID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: movement %s not found", model.ErrPersistence, movementID)
		}
	}

	for _, number := range rec.InvoiceNumbers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reconciliation_links (record_id, invoice_number) VALUES (?, ?)`,
			rec.ID, number,
		); err != nil {
			return fmt.Errorf("%w: link invoice %s: %v", model.ErrPersistence, number, err)
		}

		// Invoices linked by a reconciled record are settled in full
		// (within tolerance); pending proposals leave the status alone.
		if rec.State == model.ReconStateReconciled {
			if _, err := tx.ExecContext(ctx,
				`UPDATE invoices SET status = ? WHERE number = ? AND status IN (?, ?)`,
				string(model.InvoiceStatusPaid), number,
				string(model.InvoiceStatusIssued), string(model.InvoiceStatusOverdue),
			); err != nil {
				return fmt.Errorf("%w: settle invoice %s: %v", model.ErrPersistence, number, err)
			}
		}
	}

	return nil
}

// GetRecord retrieves a record and its links by ID.
func (s *Storage) GetRecord(ctx context.Context, id string) (*model.ReconciliationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, rule, note, residual, created_at, resolved_at
		FROM reconciliation_records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadLinks(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns records matching the filters, newest first.
func (s *Storage) ListRecords(ctx context.Context, filters RecordFilters) (*RecordListResult, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []any{}
	if filters.State != "" {
		where = "WHERE state = ?"
		args = append(args, filters.State)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM reconciliation_records %s`, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	query := fmt.Sprintf(`
		SELECT id, state, rule, note, residual, created_at, resolved_at
		FROM reconciliation_records %s
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, where)
	args = append(args, limit, filters.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]model.ReconciliationRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	for i := range records {
		if err := s.loadLinks(ctx, &records[i]); err != nil {
			return nil, err
		}
	}

	return &RecordListResult{
		Records:    records,
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}, nil
}

// DiscardRecord moves a pending record and its movements to discarded.
func (s *Storage) DiscardRecord(ctx context.Context, id, note string) error {
	return s.transitionRecord(ctx, id, model.ReconStatePending, model.ReconStateDiscarded, note)
}

// ReopenRecord moves a discarded record and its movements back to
// pending so a later batch run picks the movements up again.
func (s *Storage) ReopenRecord(ctx context.Context, id string) error {
	return s.transitionRecord(ctx, id, model.ReconStateDiscarded, model.ReconStatePending, "")
}

func (s *Storage) transitionRecord(ctx context.Context, id string, from, to model.ReconState, note string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	var current string
	err = tx.QueryRowContext(ctx, `SELECT state FROM reconciliation_records WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return fmt.Errorf("%w: record %s", model.ErrNotFound, id)
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	if model.ReconState(current) != from {
		_ = tx.Rollback()
		return fmt.Errorf("%w: record %s is %s, not %s", model.ErrInvalidTransition, id, current, from)
	}

	if note != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE reconciliation_records SET state = ?, note = ? WHERE id = ?`, string(to), note, id)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE reconciliation_records SET state = ? WHERE id = ?`, string(to), id)
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bank_movements SET recon_state = ? WHERE record_id = ?`, string(to), id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return nil
}

// GetStats returns aggregate reconciliation statistics.
func (s *Storage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{RecordsByRule: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN recon_state = 'pending' THEN 1 END),
			COUNT(CASE WHEN recon_state = 'reconciled' THEN 1 END),
			COUNT(CASE WHEN recon_state = 'discarded' THEN 1 END),
			COALESCE(SUM(CASE WHEN recon_state = 'reconciled' THEN ABS(amount) END), 0)
		FROM bank_movements`).Scan(
		&stats.TotalMovements,
		&stats.PendingMovements,
		&stats.ReconciledMovements,
		&stats.DiscardedMovements,
		&stats.ReconciledAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(residual), 0) FROM reconciliation_records WHERE state = 'pending'`,
	).Scan(&stats.PendingResidual)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rule, COUNT(*) FROM reconciliation_records GROUP BY rule`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var rule string
		var count int
		if err := rows.Scan(&rule, &count); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
		}
		stats.RecordsByRule[rule] = count
	}

	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.ReconciliationRecord, error) {
	var rec model.ReconciliationRecord
	var state, rule string
	var resolvedAt sql.NullTime

	err := row.Scan(&rec.ID, &state, &rule, &rec.Note, &rec.Residual, &rec.CreatedAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("%w: scan record: %v", model.ErrPersistence, err)
	}

	rec.State = model.ReconState(state)
	rec.Rule = model.MatchRule(rule)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		rec.ResolvedAt = &t
	}
	return rec, nil
}

func (s *Storage) loadLinks(ctx context.Context, rec *model.ReconciliationRecord) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT movement_id, invoice_number FROM reconciliation_links WHERE record_id = ? ORDER BY rowid`,
		rec.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var movementID, invoiceNumber sql.NullString
		if err := rows.Scan(&movementID, &invoiceNumber); err != nil {
			return fmt.Errorf("%w: scan link: %v", model.ErrPersistence, err)
		}
		if movementID.Valid {
			rec.MovementIDs = append(rec.MovementIDs, movementID.String)
		}
		if invoiceNumber.Valid {
			rec.InvoiceNumbers = append(rec.InvoiceNumbers, invoiceNumber.String)
		}
	}
	return rows.Err()
}
