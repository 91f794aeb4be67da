package storage

import (
	"context"
	"time"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations and makes testing
// with the in-memory mock straightforward.
type Repository interface {
	MovementRepository
	InvoiceRepository
	RecordRepository
	Close() error
}

// MovementRepository handles bank movement persistence.
type MovementRepository interface {
	// SaveMovements inserts or replaces imported statement lines.
	SaveMovements(ctx context.Context, movements []model.BankMovement) error

	// ListPendingMovements returns the movements awaiting
	// reconciliation with operation dates in [from, to].
	ListPendingMovements(ctx context.Context, from, to time.Time) ([]model.BankMovement, error)
}

// InvoiceRepository handles invoice persistence.
type InvoiceRepository interface {
	// SaveInvoices inserts or replaces invoices.
	SaveInvoices(ctx context.Context, invoices []model.Invoice) error

	// ListInvoices returns invoices with issue dates in [from, to].
	ListInvoices(ctx context.Context, from, to time.Time) ([]model.Invoice, error)
}

// RecordRepository handles reconciliation records.
type RecordRepository interface {
	// ApplyRecords writes a batch of reconciliation records in one
	// transaction: records, links, movement back-references and
	// settled invoice statuses. Any failure rolls the whole batch
	// back (model.ErrPersistence).
	ApplyRecords(ctx context.Context, records []model.ReconciliationRecord) error

	// GetRecord retrieves a record with its links.
	GetRecord(ctx context.Context, id string) (*model.ReconciliationRecord, error)

	// ListRecords returns records matching the filters with pagination.
	ListRecords(ctx context.Context, filters RecordFilters) (*RecordListResult, error)

	// DiscardRecord moves a pending record (and its movements) to
	// discarded for manual exclusion.
	DiscardRecord(ctx context.Context, id, note string) error

	// ReopenRecord moves a discarded record back to pending.
	ReopenRecord(ctx context.Context, id string) error

	// GetStats returns aggregate reconciliation statistics.
	GetStats(ctx context.Context) (*Stats, error)
}

// RecordFilters defines filters for listing reconciliation records.
type RecordFilters struct {
	State  string // Filter by state (empty = all)
	Limit  int    // Max results (0 = default 50)
	Offset int    // Pagination offset
}

// RecordListResult contains paginated record results.
type RecordListResult struct {
	Records    []model.ReconciliationRecord `json:"records"`
	TotalCount int                          `json:"total_count"`
	Limit      int                          `json:"limit"`
	Offset     int                          `json:"offset"`
}

// Stats holds aggregate reconciliation statistics.
type Stats struct {
	TotalMovements      int            `json:"total_movements"`
	PendingMovements    int            `json:"pending_movements"`
	ReconciledMovements int            `json:"reconciled_movements"`
	DiscardedMovements  int            `json:"discarded_movements"`
	ReconciledAmount    float64        `json:"reconciled_amount"`
	PendingResidual     float64        `json:"pending_residual"`
	RecordsByRule       map[string]int `json:"records_by_rule"`
}
