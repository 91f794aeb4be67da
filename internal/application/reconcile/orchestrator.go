package reconcile

import (
	"context"
	"fmt"

	"github.com/aleph70/reconcile-backend/internal/domain/matcher"
	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

// Run executes one reconciliation batch over the configured window.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.To.Before(opts.From) {
		return nil, fmt.Errorf("%w: run window ends before it starts", model.ErrInvalidInput)
	}

	// Tolerance is read once so every decision in the batch uses the
	// same value, even if the admin changes it mid-run.
	cfg := o.matching
	cfg.Tolerance = o.tolerances.Get()

	result := &Result{
		Tolerance: cfg.Tolerance,
		DryRun:    opts.DryRun,
	}

	if opts.Verbose {
		o.logger.Info("Starting reconciliation",
			"from", opts.From.Format("2006-01-02"),
			"to", opts.To.Format("2006-01-02"),
			"tolerance", cfg.Tolerance,
			"dry_run", opts.DryRun,
		)
	}

	movements, err := o.repo.ListPendingMovements(ctx, opts.From, opts.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load movements: %w", err)
	}
	result.MovementCount = len(movements)

	// Invoices issued before the window may still settle movements
	// inside it, so the invoice range extends back by the lookback.
	invoiceFrom := opts.From.AddDate(0, 0, -cfg.LookbackDays)
	invoiceTo := opts.To.AddDate(0, 0, cfg.ForwardSlackDays)
	invoices, err := o.repo.ListInvoices(ctx, invoiceFrom, invoiceTo)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	result.InvoiceCount = len(invoices)

	if opts.Verbose {
		o.logger.Info("Loaded snapshot",
			"movements", len(movements),
			"invoices", len(invoices),
		)
	}

	if len(movements) == 0 {
		return result, nil
	}

	records, err := matcher.New(cfg).ResolveBatch(movements, invoices, o.now())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve batch: %w", err)
	}

	for _, rec := range records {
		switch rec.State {
		case model.ReconStateReconciled:
			result.Reconciled++
		case model.ReconStatePending:
			result.Pending++
		}
		if opts.Verbose {
			o.logger.Info("Resolved movement group",
				"record", rec.ID,
				"state", rec.State,
				"rule", rec.Rule,
				"residual", rec.Residual,
				"movements", len(rec.MovementIDs),
				"invoices", len(rec.InvoiceNumbers),
			)
		}
	}

	if opts.DryRun {
		o.logger.Info("Dry run, skipping persistence",
			"reconciled", result.Reconciled,
			"pending", result.Pending,
		)
		return result, nil
	}

	if err := o.repo.ApplyRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to persist records: %w", err)
	}

	o.logger.Info("Reconciliation complete",
		"reconciled", result.Reconciled,
		"pending", result.Pending,
		"tolerance", cfg.Tolerance,
	)
	return result, nil
}
