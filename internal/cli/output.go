package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/aleph70/reconcile-backend/internal/application/reconcile"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/storage"
)

// PrintHeader prints the command header
func PrintHeader(dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("aleph70-reconcile (%s mode)\n", mode)
}

// PrintConfiguration prints the run configuration
func PrintConfiguration(opts reconcile.Options, tolerance float64) {
	fmt.Printf("Window: %s .. %s | Tolerance: %.2f EUR\n\n",
		opts.From.Format("2006-01-02"),
		opts.To.Format("2006-01-02"),
		tolerance)
}

// PrintRunSummary prints the reconciliation result summary
func PrintRunSummary(result *reconcile.Result, repo storage.Repository) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Summary: Movements=%d Invoices=%d Reconciled=%d Pending=%d\n",
		result.MovementCount,
		result.InvoiceCount,
		result.Reconciled,
		result.Pending)

	// Database-wide stats
	if repo != nil {
		stats, _ := repo.GetStats(context.Background())
		if stats != nil && stats.TotalMovements > 0 {
			reconciledRate := float64(stats.ReconciledMovements) / float64(stats.TotalMovements) * 100
			fmt.Printf("\nAll-Time Stats: Movements=%d Reconciled=%.1f%% Amount=%.2f EUR PendingResidual=%.2f EUR\n",
				stats.TotalMovements,
				reconciledRate,
				stats.ReconciledAmount,
				stats.PendingResidual)
		}
	}

	if result.DryRun {
		fmt.Println("\nDry run: no records were persisted.")
	} else if result.Reconciled+result.Pending > 0 {
		fmt.Println("\nReconciliation completed successfully.")
	}
}
