package matcher

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

func errInvalidTolerance(v float64) error {
	return fmt.Errorf("%w: tolerance %v", model.ErrInvalidInput, v)
}

// Resolve matches one movement against its candidate set and returns
// the reconciliation record to apply. "No match" is a normal pending
// outcome, never an error; errors are reserved for caller bugs
// (negative tolerance, non-finite movement amount).
//
// Resolve never mutates the movement or the invoices; the returned
// record is applied by a separate persistence step.
func (m *Matcher) Resolve(mov model.BankMovement, candidates []Candidate, now time.Time) (model.ReconciliationRecord, error) {
	if err := m.config.validate(); err != nil {
		return model.ReconciliationRecord{}, err
	}
	if err := mov.Validate(); err != nil {
		return model.ReconciliationRecord{}, err
	}

	target := math.Abs(mov.Amount)
	ranked := m.rank(candidates)

	// Split settlements only ever combine invoices inside the date
	// window; out-of-window amount coincidences never reconcile.
	window := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.InWindow {
			window = append(window, c)
		}
	}

	if len(ranked) > 0 {
		best := ranked[0]
		if model.WithinTolerance(target, best.Invoice.Total, m.config.Tolerance) {
			return m.reconciledSingle(mov, best, now), nil
		}

		// A concept reference is a stronger signal than approximate
		// amount: stick with the referenced invoice. Either further
		// invoices complete the settlement, or it goes to review.
		if best.ByReference {
			if subset, ok := m.splitSettlement(window, target, &best); ok {
				return m.reconciledSplit(mov, subset, target, now), nil
			}
			return m.pendingProposal(mov, best, now), nil
		}
	}

	if subset, ok := m.splitSettlement(window, target, nil); ok {
		return m.reconciledSplit(mov, subset, target, now), nil
	}

	return m.pending(mov, candidates, target, now), nil
}

// rank filters out unqualified candidates and orders the rest by
// priority tier, then smallest amount difference, then closest date.
func (m *Matcher) rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.tier(m.config) != tierNone {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		ti, tj := ranked[i].tier(m.config), ranked[j].tier(m.config)
		if ti != tj {
			return ti < tj
		}
		if ranked[i].AmountDiff != ranked[j].AmountDiff {
			return ranked[i].AmountDiff < ranked[j].AmountDiff
		}
		return math.Abs(ranked[i].DaysApart) < math.Abs(ranked[j].DaysApart)
	})
	return ranked
}

// splitSettlement searches subsets of up to MaxSplitInvoices window
// candidates whose totals sum to the movement amount within tolerance.
// When anchor is non-nil the subset must contain it. Candidate sets
// larger than MaxSplitCandidates degrade to "no split found" rather
// than an exhaustive search.
func (m *Matcher) splitSettlement(pool []Candidate, target float64, anchor *Candidate) ([]Candidate, bool) {
	if len(pool) < 2 || len(pool) > m.config.MaxSplitCandidates {
		return nil, false
	}

	chosen := []Candidate{}
	rest := pool
	baseSum := 0.0
	maxExtra := m.config.MaxSplitInvoices
	if anchor != nil {
		chosen = append(chosen, *anchor)
		baseSum = anchor.Invoice.Total
		maxExtra--
		rest = make([]Candidate, 0, len(pool)-1)
		for _, c := range pool {
			if c.Invoice.Number != anchor.Invoice.Number {
				rest = append(rest, c)
			}
		}
	}

	var best []Candidate
	bestDiff := math.Inf(1)
	limit := target + m.config.Tolerance + amountEpsilon

	var walk func(start int, sum float64, picked []Candidate)
	walk = func(start int, sum float64, picked []Candidate) {
		if len(chosen)+len(picked) >= 2 {
			if diff := math.Abs(sum - target); diff < bestDiff {
				bestDiff = diff
				best = append(append([]Candidate{}, chosen...), picked...)
			}
		}
		if len(picked) >= maxExtra {
			return
		}
		for i := start; i < len(rest); i++ {
			// Totals are non-negative, so overshooting cannot recover.
			if next := sum + rest[i].Invoice.Total; next <= limit {
				walk(i+1, next, append(picked, rest[i]))
			}
		}
	}
	walk(0, baseSum, nil)

	if bestDiff <= m.config.Tolerance+amountEpsilon {
		return best, true
	}
	return nil, false
}

func ruleFor(c Candidate, cfg Config) model.MatchRule {
	switch c.tier(cfg) {
	case tierReference:
		return model.RuleReference
	case tierExact:
		return model.RuleExactAmount
	case tierNear:
		return model.RuleAmountNear
	default:
		return model.RuleAmountWide
	}
}

func (m *Matcher) reconciledSingle(mov model.BankMovement, best Candidate, now time.Time) model.ReconciliationRecord {
	rule := ruleFor(best, m.config)
	resolved := now
	return model.ReconciliationRecord{
		ID:             uuid.NewString(),
		State:          model.ReconStateReconciled,
		Rule:           rule,
		Note:           fmt.Sprintf("movement %s settles invoice %s (%s, diff %.2f)", mov.ID, best.Invoice.Number, rule, best.AmountDiff),
		Residual:       best.Invoice.Total - math.Abs(mov.Amount),
		MovementIDs:    []string{mov.ID},
		InvoiceNumbers: []string{best.Invoice.Number},
		CreatedAt:      now,
		ResolvedAt:     &resolved,
	}
}

func (m *Matcher) reconciledSplit(mov model.BankMovement, subset []Candidate, target float64, now time.Time) model.ReconciliationRecord {
	numbers := make([]string, len(subset))
	sum := 0.0
	for i, c := range subset {
		numbers[i] = c.Invoice.Number
		sum += c.Invoice.Total
	}
	resolved := now
	return model.ReconciliationRecord{
		ID:             uuid.NewString(),
		State:          model.ReconStateReconciled,
		Rule:           model.RuleSplit,
		Note:           fmt.Sprintf("movement %s settles %d invoices (split, diff %.2f)", mov.ID, len(subset), math.Abs(sum-target)),
		Residual:       sum - target,
		MovementIDs:    []string{mov.ID},
		InvoiceNumbers: numbers,
		CreatedAt:      now,
		ResolvedAt:     &resolved,
	}
}

// pendingProposal records a movement whose concept references an
// invoice the amount cannot settle automatically. The link is kept as
// a proposal for manual review.
func (m *Matcher) pendingProposal(mov model.BankMovement, best Candidate, now time.Time) model.ReconciliationRecord {
	return model.ReconciliationRecord{
		ID:             uuid.NewString(),
		State:          model.ReconStatePending,
		Rule:           model.RuleNone,
		Note:           fmt.Sprintf("movement %s references invoice %s but amount differs by %.2f", mov.ID, best.Invoice.Number, best.AmountDiff),
		Residual:       best.AmountDiff,
		MovementIDs:    []string{mov.ID},
		InvoiceNumbers: []string{best.Invoice.Number},
		CreatedAt:      now,
	}
}

// pending records an unmatched movement. The residual is the smallest
// amount difference seen across all candidates, window or not, so
// reviewers know how close the nearest miss was.
func (m *Matcher) pending(mov model.BankMovement, candidates []Candidate, target float64, now time.Time) model.ReconciliationRecord {
	residual := target
	for _, c := range candidates {
		if c.AmountDiff < residual {
			residual = c.AmountDiff
		}
	}
	return model.ReconciliationRecord{
		ID:          uuid.NewString(),
		State:       model.ReconStatePending,
		Rule:        model.RuleNone,
		Note:        fmt.Sprintf("movement %s unmatched among %d candidates", mov.ID, len(candidates)),
		Residual:    residual,
		MovementIDs: []string{mov.ID},
		CreatedAt:   now,
	}
}
