package matcher

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
	"github.com/aleph70/reconcile-backend/internal/domain/normalizer"
)

// ResolveBatch runs a full reconciliation pass: one-to-one and
// one-to-many per movement, then a second pass that detects several
// movements jointly settling one invoice. Exactly one record is
// returned per movement, except that movements combined into a
// many-to-one settlement share a single record.
//
// An invoice reconciled for one movement is never offered to a later
// movement in the same batch.
func (m *Matcher) ResolveBatch(movements []model.BankMovement, invoices []model.Invoice, now time.Time) ([]model.ReconciliationRecord, error) {
	if err := m.config.validate(); err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(invoices))
	records := make([]model.ReconciliationRecord, 0, len(movements))
	var unmatched []model.BankMovement

	for _, mov := range movements {
		if mov.ReconState != "" && mov.ReconState != model.ReconStatePending {
			continue
		}

		available := make([]model.Invoice, 0, len(invoices))
		for _, inv := range invoices {
			if !used[inv.Number] {
				available = append(available, inv)
			}
		}

		rec, err := m.Resolve(mov, m.GenerateCandidates(mov, available), now)
		if err != nil {
			return nil, err
		}

		if rec.State == model.ReconStateReconciled {
			for _, n := range rec.InvoiceNumbers {
				used[n] = true
			}
		} else {
			unmatched = append(unmatched, mov)
		}
		records = append(records, rec)
	}

	combined := m.combineMovements(unmatched, invoices, used, now)
	if len(combined) == 0 {
		return records, nil
	}

	// Combined records supersede the individual pending records of the
	// movements they cover.
	superseded := make(map[string]bool)
	for _, rec := range combined {
		for _, id := range rec.MovementIDs {
			superseded[id] = true
		}
	}

	kept := records[:0]
	for _, rec := range records {
		if rec.State == model.ReconStatePending && len(rec.MovementIDs) == 1 && superseded[rec.MovementIDs[0]] {
			continue
		}
		kept = append(kept, rec)
	}
	return append(kept, combined...), nil
}

// combineMovements searches, per still-open invoice, for a bounded
// subset of unmatched movements whose amounts sum to the invoice total
// within tolerance. Movements referencing the invoice number are tried
// first; the general amount search runs only when no reference group
// settles the invoice.
func (m *Matcher) combineMovements(unmatched []model.BankMovement, invoices []model.Invoice, used map[string]bool, now time.Time) []model.ReconciliationRecord {
	if len(unmatched) < 2 {
		return nil
	}

	open := make([]model.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if used[inv.Number] {
			continue
		}
		switch inv.Status {
		case model.InvoiceStatusIssued, model.InvoiceStatusOverdue:
			open = append(open, inv)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Number < open[j].Number })

	taken := make(map[string]bool, len(unmatched))
	var records []model.ReconciliationRecord

	for _, inv := range open {
		var group, refGroup []model.BankMovement
		for _, mov := range unmatched {
			if taken[mov.ID] {
				continue
			}
			daysApart := mov.OperationDate.Sub(inv.IssueDate).Hours() / 24
			if daysApart > float64(m.config.LookbackDays) || daysApart < -float64(m.config.ForwardSlackDays) {
				continue
			}
			if math.Abs(mov.Amount) > inv.Total+m.config.Tolerance+amountEpsilon {
				continue
			}
			group = append(group, mov)
			if ref, ok := normalizer.ExtractReference(mov.Concept); ok && ref == inv.Number {
				refGroup = append(refGroup, mov)
			}
		}

		subset, ok := m.movementSubset(refGroup, inv.Total)
		if !ok {
			subset, ok = m.movementSubset(group, inv.Total)
		}
		if !ok {
			continue
		}

		ids := make([]string, len(subset))
		sum := 0.0
		for i, mov := range subset {
			ids[i] = mov.ID
			sum += math.Abs(mov.Amount)
			taken[mov.ID] = true
		}
		resolved := now
		records = append(records, model.ReconciliationRecord{
			ID:             uuid.NewString(),
			State:          model.ReconStateReconciled,
			Rule:           model.RuleCombined,
			Note:           fmt.Sprintf("%d movements jointly settle invoice %s (diff %.2f)", len(subset), inv.Number, math.Abs(sum-inv.Total)),
			Residual:       sum - inv.Total,
			MovementIDs:    ids,
			InvoiceNumbers: []string{inv.Number},
			CreatedAt:      now,
			ResolvedAt:     &resolved,
		})
	}

	return records
}

// movementSubset finds at least two movements whose absolute amounts
// sum to target within tolerance, bounded by the same subset limits as
// split settlements.
func (m *Matcher) movementSubset(pool []model.BankMovement, target float64) ([]model.BankMovement, bool) {
	if len(pool) < 2 || len(pool) > m.config.MaxSplitCandidates {
		return nil, false
	}

	var best []model.BankMovement
	bestDiff := math.Inf(1)
	limit := target + m.config.Tolerance + amountEpsilon

	var walk func(start int, sum float64, picked []model.BankMovement)
	walk = func(start int, sum float64, picked []model.BankMovement) {
		if len(picked) >= 2 {
			if diff := math.Abs(sum - target); diff < bestDiff {
				bestDiff = diff
				best = append([]model.BankMovement{}, picked...)
			}
		}
		if len(picked) >= m.config.MaxSplitInvoices {
			return
		}
		for i := start; i < len(pool); i++ {
			if next := sum + math.Abs(pool[i].Amount); next <= limit {
				walk(i+1, next, append(picked, pool[i]))
			}
		}
	}
	walk(0, 0, nil)

	if bestDiff <= m.config.Tolerance+amountEpsilon {
		return best, true
	}
	return nil, false
}
