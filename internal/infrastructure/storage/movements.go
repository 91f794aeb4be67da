package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

// SaveMovements inserts or replaces bank movements. Movements are
// validated at the persistence boundary; the matcher trusts its input.
func (s *Storage) SaveMovements(ctx context.Context, movements []model.BankMovement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	query := `
	INSERT OR REPLACE INTO bank_movements
	(id, operation_date, value_date, concept, amount, balance,
	 fiscal_year, ingested_at, punctual, recon_state, record_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, mov := range movements {
		if err := mov.Validate(); err != nil {
			_ = tx.Rollback()
			return err
		}
		state := mov.ReconState
		if state == "" {
			state = model.ReconStatePending
		}
		var recordID any
		if mov.RecordID != "" {
			recordID = mov.RecordID
		}
		if _, err := tx.ExecContext(ctx, query,
			mov.ID,
			mov.OperationDate,
			mov.ValueDate,
			mov.Concept,
			mov.Amount,
			mov.Balance,
			mov.FiscalYear,
			mov.IngestedAt,
			mov.Punctual,
			string(state),
			recordID,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: save movement %s: %v", model.ErrPersistence, mov.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return nil
}

// ListPendingMovements returns movements awaiting reconciliation with
// operation dates in [from, to], oldest first.
func (s *Storage) ListPendingMovements(ctx context.Context, from, to time.Time) ([]model.BankMovement, error) {
	query := `
	SELECT id, operation_date, value_date, concept, amount, balance,
	       fiscal_year, ingested_at, punctual, recon_state, record_id
	FROM bank_movements
	WHERE recon_state = ? AND operation_date >= ? AND operation_date <= ?
	ORDER BY operation_date, id
	`

	rows, err := s.db.QueryContext(ctx, query, string(model.ReconStatePending), from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var movements []model.BankMovement
	for rows.Next() {
		mov, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, mov)
	}
	return movements, rows.Err()
}

func scanMovement(rows *sql.Rows) (model.BankMovement, error) {
	var mov model.BankMovement
	var valueDate, ingestedAt sql.NullTime
	var state string
	var recordID sql.NullString

	err := rows.Scan(
		&mov.ID,
		&mov.OperationDate,
		&valueDate,
		&mov.Concept,
		&mov.Amount,
		&mov.Balance,
		&mov.FiscalYear,
		&ingestedAt,
		&mov.Punctual,
		&state,
		&recordID,
	)
	if err != nil {
		return model.BankMovement{}, fmt.Errorf("%w: scan movement: %v", model.ErrPersistence, err)
	}

	if valueDate.Valid {
		mov.ValueDate = valueDate.Time
	}
	if ingestedAt.Valid {
		mov.IngestedAt = ingestedAt.Time
	}
	mov.ReconState = model.ReconState(state)
	if recordID.Valid {
		mov.RecordID = recordID.String
	}
	return mov, nil
}
