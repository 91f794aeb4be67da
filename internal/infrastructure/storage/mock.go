package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps, making tests fast and isolated.
type MockRepository struct {
	movements map[string]model.BankMovement
	invoices  map[string]model.Invoice
	records   map[string]model.ReconciliationRecord

	// Hooks for test assertions
	SaveMovementsCalled bool
	SaveInvoicesCalled  bool
	ApplyRecordsCalled  bool
	LastAppliedRecords  []model.ReconciliationRecord

	// Error injection for testing error paths
	SaveMovementsErr error
	SaveInvoicesErr  error
	ListMovementsErr error
	ListInvoicesErr  error
	ApplyRecordsErr  error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		movements: make(map[string]model.BankMovement),
		invoices:  make(map[string]model.Invoice),
		records:   make(map[string]model.ReconciliationRecord),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveMovements stores movements in the in-memory map
func (m *MockRepository) SaveMovements(_ context.Context, movements []model.BankMovement) error {
	m.SaveMovementsCalled = true
	if m.SaveMovementsErr != nil {
		return m.SaveMovementsErr
	}
	for _, mov := range movements {
		if err := mov.Validate(); err != nil {
			return err
		}
		if mov.ReconState == "" {
			mov.ReconState = model.ReconStatePending
		}
		m.movements[mov.ID] = mov
	}
	return nil
}

// ListPendingMovements returns pending movements within the date range
func (m *MockRepository) ListPendingMovements(_ context.Context, from, to time.Time) ([]model.BankMovement, error) {
	if m.ListMovementsErr != nil {
		return nil, m.ListMovementsErr
	}
	var result []model.BankMovement
	for _, mov := range m.movements {
		if mov.ReconState != model.ReconStatePending {
			continue
		}
		if mov.OperationDate.Before(from) || mov.OperationDate.After(to) {
			continue
		}
		result = append(result, mov)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OperationDate.Equal(result[j].OperationDate) {
			return result[i].OperationDate.Before(result[j].OperationDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// SaveInvoices stores invoices in the in-memory map
func (m *MockRepository) SaveInvoices(_ context.Context, invoices []model.Invoice) error {
	m.SaveInvoicesCalled = true
	if m.SaveInvoicesErr != nil {
		return m.SaveInvoicesErr
	}
	for _, inv := range invoices {
		if err := inv.Validate(); err != nil {
			return err
		}
		m.invoices[inv.Number] = inv
	}
	return nil
}

// ListInvoices returns invoices with issue dates within the range
func (m *MockRepository) ListInvoices(_ context.Context, from, to time.Time) ([]model.Invoice, error) {
	if m.ListInvoicesErr != nil {
		return nil, m.ListInvoicesErr
	}
	var result []model.Invoice
	for _, inv := range m.invoices {
		if inv.IssueDate.Before(from) || inv.IssueDate.After(to) {
			continue
		}
		result = append(result, inv)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

// ApplyRecords applies a record batch against the in-memory state,
// mirroring the transactional semantics of the SQLite implementation.
func (m *MockRepository) ApplyRecords(_ context.Context, records []model.ReconciliationRecord) error {
	m.ApplyRecordsCalled = true
	m.LastAppliedRecords = records
	if m.ApplyRecordsErr != nil {
		return m.ApplyRecordsErr
	}
	for _, rec := range records {
		for _, movementID := range rec.MovementIDs {
			if _, ok := m.movements[movementID]; !ok {
				return fmt.Errorf("%w: movement %s not found", model.ErrPersistence, movementID)
			}
		}
	}
	for _, rec := range records {
		m.records[rec.ID] = rec
		for _, movementID := range rec.MovementIDs {
			mov := m.movements[movementID]
			mov.ReconState = rec.State
			mov.RecordID = rec.ID
			m.movements[movementID] = mov
		}
		if rec.State == model.ReconStateReconciled {
			for _, number := range rec.InvoiceNumbers {
				inv, ok := m.invoices[number]
				if !ok {
					continue
				}
				if inv.Status == model.InvoiceStatusIssued || inv.Status == model.InvoiceStatusOverdue {
					inv.Status = model.InvoiceStatusPaid
					m.invoices[number] = inv
				}
			}
		}
	}
	return nil
}

// GetRecord retrieves a record from the in-memory map
func (m *MockRepository) GetRecord(_ context.Context, id string) (*model.ReconciliationRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: record %s", model.ErrNotFound, id)
	}
	return &rec, nil
}

// ListRecords returns records matching the given filters with pagination
func (m *MockRepository) ListRecords(_ context.Context, filters RecordFilters) (*RecordListResult, error) {
	var matching []model.ReconciliationRecord
	for _, rec := range m.records {
		if filters.State != "" && string(rec.State) != filters.State {
			continue
		}
		matching = append(matching, rec)
	}
	sort.Slice(matching, func(i, j int) bool {
		if !matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].CreatedAt.After(matching[j].CreatedAt)
		}
		return matching[i].ID < matching[j].ID
	})

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	total := len(matching)
	start := filters.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &RecordListResult{
		Records:    matching[start:end],
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}, nil
}

// DiscardRecord moves a pending record and its movements to discarded
func (m *MockRepository) DiscardRecord(_ context.Context, id, note string) error {
	return m.transition(id, model.ReconStatePending, model.ReconStateDiscarded, note)
}

// ReopenRecord moves a discarded record back to pending
func (m *MockRepository) ReopenRecord(_ context.Context, id string) error {
	return m.transition(id, model.ReconStateDiscarded, model.ReconStatePending, "")
}

func (m *MockRepository) transition(id string, from, to model.ReconState, note string) error {
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: record %s", model.ErrNotFound, id)
	}
	if rec.State != from {
		return fmt.Errorf("%w: record %s is %s, not %s", model.ErrInvalidTransition, id, rec.State, from)
	}
	rec.State = to
	if note != "" {
		rec.Note = note
	}
	m.records[id] = rec
	for _, movementID := range rec.MovementIDs {
		mov, ok := m.movements[movementID]
		if !ok {
			continue
		}
		mov.ReconState = to
		m.movements[movementID] = mov
	}
	return nil
}

// GetStats computes statistics from the in-memory state
func (m *MockRepository) GetStats(_ context.Context) (*Stats, error) {
	stats := &Stats{RecordsByRule: make(map[string]int)}
	for _, mov := range m.movements {
		stats.TotalMovements++
		switch mov.ReconState {
		case model.ReconStatePending:
			stats.PendingMovements++
		case model.ReconStateReconciled:
			stats.ReconciledMovements++
			if mov.Amount < 0 {
				stats.ReconciledAmount -= mov.Amount
			} else {
				stats.ReconciledAmount += mov.Amount
			}
		case model.ReconStateDiscarded:
			stats.DiscardedMovements++
		}
	}
	for _, rec := range m.records {
		stats.RecordsByRule[string(rec.Rule)]++
		if rec.State == model.ReconStatePending {
			stats.PendingResidual += rec.Residual
		}
	}
	return stats, nil
}

// Helper methods for test setup

// AddMovement adds a movement directly (for test setup)
func (m *MockRepository) AddMovement(mov model.BankMovement) {
	if mov.ReconState == "" {
		mov.ReconState = model.ReconStatePending
	}
	m.movements[mov.ID] = mov
}

// AddInvoice adds an invoice directly (for test setup)
func (m *MockRepository) AddInvoice(inv model.Invoice) {
	m.invoices[inv.Number] = inv
}

// GetMovement returns a stored movement (for assertions)
func (m *MockRepository) GetMovement(id string) (model.BankMovement, bool) {
	mov, ok := m.movements[id]
	return mov, ok
}

// GetInvoice returns a stored invoice (for assertions)
func (m *MockRepository) GetInvoice(number string) (model.Invoice, bool) {
	inv, ok := m.invoices[number]
	return inv, ok
}

// Reset clears all data and flags (for reuse between tests)
func (m *MockRepository) Reset() {
	m.movements = make(map[string]model.BankMovement)
	m.invoices = make(map[string]model.Invoice)
	m.records = make(map[string]model.ReconciliationRecord)
	m.SaveMovementsCalled = false
	m.SaveInvoicesCalled = false
	m.ApplyRecordsCalled = false
	m.LastAppliedRecords = nil
	m.SaveMovementsErr = nil
	m.SaveInvoicesErr = nil
	m.ListMovementsErr = nil
	m.ListInvoicesErr = nil
	m.ApplyRecordsErr = nil
}
