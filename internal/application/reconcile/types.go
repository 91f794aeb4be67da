package reconcile

import (
	"log/slog"
	"time"

	"github.com/aleph70/reconcile-backend/internal/domain/matcher"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/storage"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/tolerance"
)

// Options holds run configuration
type Options struct {
	// From and To bound the movement operation dates considered.
	From time.Time
	To   time.Time

	// DryRun resolves the batch without persisting any record.
	DryRun bool

	Verbose bool
}

// Result holds run results
type Result struct {
	MovementCount int     `json:"movement_count"`
	InvoiceCount  int     `json:"invoice_count"`
	Reconciled    int     `json:"reconciled"`
	Pending       int     `json:"pending"`
	Tolerance     float64 `json:"tolerance"`
	DryRun        bool    `json:"dry_run"`
}

// Orchestrator runs the reconciliation batch: snapshot movements and
// invoices, resolve them with the matcher, persist the records.
type Orchestrator struct {
	repo       storage.Repository
	tolerances *tolerance.Store
	matching   matcher.Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator creates a new reconciliation orchestrator. The
// matching config's Tolerance field is ignored; the current tolerance
// is read from the store at the start of each run.
func NewOrchestrator(
	repo storage.Repository,
	tolerances *tolerance.Store,
	matching matcher.Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		tolerances: tolerances,
		matching:   matching,
		logger:     logger,
		now:        time.Now,
	}
}
