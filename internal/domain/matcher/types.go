// Package matcher implements the bank-movement-to-invoice
// reconciliation engine.
//
// Matching is rule-ranked:
//   - Reference match (invoice number found in the movement concept)
//   - Exact amount match
//   - Amount within tolerance, issue date within 7 days
//   - Amount within tolerance, issue date within 30 days
//
// When no single invoice settles a movement, a bounded subset search
// looks for a split settlement (one movement covering several
// invoices); a batch pass additionally detects several movements
// jointly covering one invoice.
//
// Example usage:
//
//	m := matcher.New(matcher.DefaultConfig())
//	records, err := m.ResolveBatch(movements, invoices, time.Now())
package matcher

import (
	"math"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

// Config holds the matching tunables. Tolerance comes from the
// tolerance store at the start of a run; the window defaults mirror
// the invoice payment conventions.
type Config struct {
	// Tolerance is the maximum acceptable euro discrepancy between a
	// movement and the invoice(s) it settles.
	Tolerance float64

	// LookbackDays bounds how old an invoice may be relative to the
	// movement date and still be a candidate.
	LookbackDays int

	// ForwardSlackDays bounds how far an invoice may postdate the
	// movement. Invoices are not expected to post before being issued.
	ForwardSlackDays int

	// NearWindowDays is the date proximity for the higher-priority
	// amount tier.
	NearWindowDays int

	// MaxSplitInvoices bounds the subset size for split settlements.
	MaxSplitInvoices int

	// MaxSplitCandidates disables the subset search entirely when the
	// candidate set is larger than this, keeping resolution latency
	// bounded instead of attempting an exhaustive search.
	MaxSplitCandidates int
}

// DefaultConfig returns the standard matching configuration.
func DefaultConfig() Config {
	return Config{
		Tolerance:          3.00,
		LookbackDays:       30,
		ForwardSlackDays:   0,
		NearWindowDays:     7,
		MaxSplitInvoices:   5,
		MaxSplitCandidates: 12,
	}
}

// validate checks the config for caller errors. A negative or
// non-finite tolerance is a bug, never something to coerce.
func (c Config) validate() error {
	if c.Tolerance < 0 || math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) {
		return errInvalidTolerance(c.Tolerance)
	}
	return nil
}

// Candidate is one invoice eligible for reconciliation against a
// movement, tagged with the rules that qualified it.
type Candidate struct {
	Invoice model.Invoice

	// ByAmount: invoice total within ±tolerance of the movement
	// amount, regardless of date.
	ByAmount bool

	// ByReference: the movement concept carries this invoice's number
	// and the invoice is inside the date window.
	ByReference bool

	// InWindow: issue date within the lookback/forward-slack window of
	// the movement date.
	InWindow bool

	// AmountDiff is abs(|movement amount| - invoice total).
	AmountDiff float64

	// DaysApart is the movement date minus the issue date in days.
	// Negative means the invoice postdates the movement.
	DaysApart float64
}

// priority tiers, lower wins
const (
	tierReference = iota + 1
	tierExact
	tierNear
	tierWide
	tierNone
)

// tier returns the candidate's ranking tier. Amount-based tiers
// require the date window: an invoice outside the lookback never
// reconciles, however exact its amount.
func (c Candidate) tier(cfg Config) int {
	if c.ByReference {
		return tierReference
	}
	if !c.ByAmount || !c.InWindow {
		return tierNone
	}
	if c.AmountDiff <= amountEpsilon {
		return tierExact
	}
	if math.Abs(c.DaysApart) <= float64(cfg.NearWindowDays) {
		return tierNear
	}
	return tierWide
}

// amountEpsilon absorbs float64 representation error in two-decimal
// currency comparisons.
const amountEpsilon = 1e-7

// Matcher is the reconciliation engine. It is a pure function over
// its inputs; it never mutates movements or invoices.
type Matcher struct {
	config Config
}

// New creates a matcher with the given config.
func New(config Config) *Matcher {
	return &Matcher{config: config}
}
