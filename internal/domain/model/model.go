// Package model defines the value types shared across the
// reconciliation subsystem: bank movements, invoices and the
// reconciliation records that link them.
//
// Movements and invoices are treated as immutable snapshots by the
// matching engine; only the persistence layer mutates their stored
// state when a batch of reconciliation records is applied.
package model

import (
	"fmt"
	"math"
	"time"
)

// ReconState is the reconciliation state of a movement or record.
type ReconState string

const (
	ReconStatePending    ReconState = "pending"
	ReconStateReconciled ReconState = "reconciled"
	ReconStateDiscarded  ReconState = "discarded"
)

// reconTransitions enumerates the allowed state machine edges.
// Reconciled is terminal; discarded records can be manually reopened.
var reconTransitions = map[ReconState][]ReconState{
	ReconStatePending:   {ReconStateReconciled, ReconStateDiscarded},
	ReconStateDiscarded: {ReconStatePending},
}

// CanTransitionTo reports whether the state machine allows moving
// from s to next.
func (s ReconState) CanTransitionTo(next ReconState) bool {
	for _, allowed := range reconTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known reconciliation state.
func (s ReconState) Valid() bool {
	switch s {
	case ReconStatePending, ReconStateReconciled, ReconStateDiscarded:
		return true
	}
	return false
}

// InvoiceStatus is the lifecycle status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusIssued  InvoiceStatus = "issued"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// invoiceTransitions enumerates the monotonic invoice lifecycle:
// draft -> issued -> paid|overdue|void, plus overdue -> paid for
// late settlements.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusIssued},
	InvoiceStatusIssued:  {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid},
	InvoiceStatusOverdue: {InvoiceStatusPaid},
}

// CanTransitionTo reports whether the invoice lifecycle allows moving
// from s to next.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MatchRule names the rule that produced a reconciliation record.
type MatchRule string

const (
	// RuleReference: the movement concept carried the invoice number.
	RuleReference MatchRule = "reference"
	// RuleExactAmount: movement and invoice amounts match to the cent.
	RuleExactAmount MatchRule = "exact_amount"
	// RuleAmountNear: amount within tolerance, issue date within 7 days.
	RuleAmountNear MatchRule = "amount_7d"
	// RuleAmountWide: amount within tolerance, issue date within 30 days.
	RuleAmountWide MatchRule = "amount_30d"
	// RuleSplit: one movement settles several invoices.
	RuleSplit MatchRule = "split"
	// RuleCombined: several movements jointly settle one invoice.
	RuleCombined MatchRule = "combined"
	// RuleNone: no rule fired; the record stays pending.
	RuleNone MatchRule = "none"
)

// BankMovement is one bank statement line.
// Amount is signed: negative means an outflow (expense).
type BankMovement struct {
	ID            string
	OperationDate time.Time
	ValueDate     time.Time
	Concept       string
	Amount        float64
	Balance       float64
	FiscalYear    int
	IngestedAt    time.Time
	Punctual      bool // manually entered rather than imported

	// Reconciliation back-reference, set by the persistence layer.
	ReconState ReconState
	RecordID   string
}

// IsOutflow reports whether the movement is an expense.
func (m BankMovement) IsOutflow() bool {
	return m.Amount < 0
}

// Validate checks the movement is well formed enough to match against.
func (m BankMovement) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: movement has no id", ErrInvalidInput)
	}
	if math.IsNaN(m.Amount) || math.IsInf(m.Amount, 0) {
		return fmt.Errorf("%w: movement %s amount is not finite", ErrInvalidInput, m.ID)
	}
	if m.OperationDate.IsZero() {
		return fmt.Errorf("%w: movement %s has no operation date", ErrInvalidInput, m.ID)
	}
	return nil
}

// Invoice holds the fields of an invoice relevant to matching.
type Invoice struct {
	Number         string
	IssueDate      time.Time
	DueDate        time.Time
	Total          float64
	Status         InvoiceStatus
	LastReminderAt *time.Time
}

// NewInvoice builds an issued invoice with the due date derived from
// the issue date plus the configured payment term.
func NewInvoice(number string, issueDate time.Time, total float64, termDays int) (Invoice, error) {
	inv := Invoice{
		Number:    number,
		IssueDate: issueDate,
		DueDate:   issueDate.AddDate(0, 0, termDays),
		Total:     total,
		Status:    InvoiceStatusIssued,
	}
	if err := inv.Validate(); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// Validate checks the invoice is well formed enough to match against.
func (i Invoice) Validate() error {
	if i.Number == "" {
		return fmt.Errorf("%w: invoice has no number", ErrInvalidInput)
	}
	if math.IsNaN(i.Total) || math.IsInf(i.Total, 0) {
		return fmt.Errorf("%w: invoice %s total is not finite", ErrInvalidInput, i.Number)
	}
	if i.Total < 0 {
		return fmt.Errorf("%w: invoice %s total is negative", ErrInvalidInput, i.Number)
	}
	if i.IssueDate.IsZero() {
		return fmt.Errorf("%w: invoice %s has no issue date", ErrInvalidInput, i.Number)
	}
	if i.DueDate.Before(i.IssueDate) {
		return fmt.Errorf("%w: invoice %s due date precedes issue date", ErrInvalidInput, i.Number)
	}
	return nil
}

// TransitionTo moves the invoice to the next lifecycle status,
// rejecting non-monotonic changes.
func (i *Invoice) TransitionTo(next InvoiceStatus) error {
	if !i.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: invoice %s %s -> %s", ErrInvalidTransition, i.Number, i.Status, next)
	}
	i.Status = next
	return nil
}

// Overdue reports whether the invoice has passed its due date without
// being settled.
func (i Invoice) Overdue(now time.Time) bool {
	return i.Status == InvoiceStatusIssued && now.After(i.DueDate)
}

// ReconciliationRecord links one or more movements to zero or more
// invoices. Movements and invoices are referenced, never owned.
type ReconciliationRecord struct {
	ID             string
	State          ReconState
	Rule           MatchRule
	Note           string
	Residual       float64
	MovementIDs    []string
	InvoiceNumbers []string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// Validate checks the record shape. For reconciled records the
// residual must not exceed the tolerance the record was produced with.
func (r ReconciliationRecord) Validate(tolerance float64) error {
	if r.ID == "" {
		return fmt.Errorf("%w: record has no id", ErrInvalidInput)
	}
	if !r.State.Valid() {
		return fmt.Errorf("%w: record %s has unknown state %q", ErrInvalidInput, r.ID, r.State)
	}
	if len(r.MovementIDs) == 0 {
		return fmt.Errorf("%w: record %s links no movements", ErrInvalidInput, r.ID)
	}
	if r.State == ReconStateReconciled {
		if len(r.InvoiceNumbers) == 0 {
			return fmt.Errorf("%w: reconciled record %s links no invoices", ErrInvalidInput, r.ID)
		}
		if math.Abs(r.Residual) > tolerance+amountEpsilon {
			return fmt.Errorf("%w: reconciled record %s residual %.2f exceeds tolerance %.2f",
				ErrInvalidInput, r.ID, r.Residual, tolerance)
		}
	}
	return nil
}

// amountEpsilon absorbs float64 representation error when comparing
// two-decimal currency amounts against a tolerance.
const amountEpsilon = 1e-7

// WithinTolerance reports whether two absolute amounts differ by at
// most tol, allowing for floating point representation error.
func WithinTolerance(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol+amountEpsilon
}
