package matcher

import (
	"math"
	"strings"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
	"github.com/aleph70/reconcile-backend/internal/domain/normalizer"
)

// GenerateCandidates produces the invoices eligible for reconciliation
// against one movement: amount-candidates (total within ±tolerance,
// any date), reference-candidates (invoice number found in the
// concept, inside the date window), and window-candidates (inside the
// date window with a total the movement could partially cover, kept
// for split settlements).
//
// Only invoices awaiting payment (issued or overdue) are considered.
// An empty result is a valid outcome; the resolver marks the movement
// pending. Ties are the resolver's problem, not the generator's.
func (m *Matcher) GenerateCandidates(mov model.BankMovement, invoices []model.Invoice) []Candidate {
	target := math.Abs(mov.Amount)
	ref, hasRef := normalizer.ExtractReference(mov.Concept)

	candidates := make([]Candidate, 0, 4)
	for _, inv := range invoices {
		switch inv.Status {
		case model.InvoiceStatusIssued, model.InvoiceStatusOverdue:
		default:
			continue
		}

		daysApart := mov.OperationDate.Sub(inv.IssueDate).Hours() / 24
		inWindow := daysApart <= float64(m.config.LookbackDays) &&
			daysApart >= -float64(m.config.ForwardSlackDays)

		c := Candidate{
			Invoice:     inv,
			AmountDiff:  math.Abs(target - inv.Total),
			DaysApart:   daysApart,
			InWindow:    inWindow,
			ByAmount:    model.WithinTolerance(target, inv.Total, m.config.Tolerance),
			ByReference: hasRef && inWindow && strings.EqualFold(ref, inv.Number),
		}

		splitEligible := inWindow && inv.Total <= target+m.config.Tolerance+amountEpsilon
		if c.ByAmount || c.ByReference || splitEligible {
			candidates = append(candidates, c)
		}
	}

	return candidates
}
