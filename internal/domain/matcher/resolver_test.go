package matcher

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

var testNow = time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func makeMovement(id string, amount float64, date time.Time, concept string) model.BankMovement {
	return model.BankMovement{
		ID:            id,
		OperationDate: date,
		ValueDate:     date,
		Concept:       concept,
		Amount:        amount,
		FiscalYear:    date.Year(),
		ReconState:    model.ReconStatePending,
	}
}

func makeInvoice(t *testing.T, number string, total float64, issue time.Time) model.Invoice {
	t.Helper()
	inv, err := model.NewInvoice(number, issue, total, 30)
	require.NoError(t, err)
	return inv
}

func resolveOne(t *testing.T, m *Matcher, mov model.BankMovement, invoices []model.Invoice) model.ReconciliationRecord {
	t.Helper()
	rec, err := m.Resolve(mov, m.GenerateCandidates(mov, invoices), testNow)
	require.NoError(t, err)
	return rec
}

func TestResolve_ToleranceBoundary(t *testing.T) {
	mov := makeMovement("mov-1", -121.50, day(2024, 10, 15), "RECIBO LUZ")
	invoices := []model.Invoice{makeInvoice(t, "F240010", 121.52, day(2024, 10, 1))}

	// Within a 2 cent tolerance the pair reconciles
	cfg := DefaultConfig()
	cfg.Tolerance = 0.02
	rec := resolveOne(t, New(cfg), mov, invoices)
	assert.Equal(t, model.ReconStateReconciled, rec.State)
	assert.Equal(t, []string{"F240010"}, rec.InvoiceNumbers)

	// With a 1 cent tolerance the same pair stays pending
	cfg.Tolerance = 0.01
	rec = resolveOne(t, New(cfg), mov, invoices)
	assert.Equal(t, model.ReconStatePending, rec.State)
}

func TestResolve_ExactAmount(t *testing.T) {
	mov := makeMovement("mov-1", -200.00, day(2024, 10, 15), "TRANSFERENCIA")
	invoices := []model.Invoice{
		makeInvoice(t, "F240001", 200.00, day(2024, 10, 1)),
		makeInvoice(t, "F240002", 201.00, day(2024, 10, 14)),
	}

	rec := resolveOne(t, New(DefaultConfig()), mov, invoices)

	require.Equal(t, model.ReconStateReconciled, rec.State)
	assert.Equal(t, model.RuleExactAmount, rec.Rule)
	assert.Equal(t, []string{"F240001"}, rec.InvoiceNumbers)
	assert.InDelta(t, 0.0, rec.Residual, 1e-9)
	assert.NotNil(t, rec.ResolvedAt)
}

func TestResolve_ReferencePriorityOverExactAmount(t *testing.T) {
	// The concept names F240100; F240099 matches the amount exactly.
	// The reference outranks the exact amount match.
	mov := makeMovement("mov-1", -200.00, day(2024, 10, 15), "PAGO FACTURA F240100")
	invoices := []model.Invoice{
		makeInvoice(t, "F240100", 150.00, day(2024, 10, 1)),
		makeInvoice(t, "F240099", 200.00, day(2024, 10, 1)),
	}

	rec := resolveOne(t, New(DefaultConfig()), mov, invoices)

	// The referenced invoice is selected; the 50.00 gap exceeds the
	// tolerance, so the record waits for manual review instead of
	// silently taking the exact-amount neighbour.
	assert.Equal(t, []string{"F240100"}, rec.InvoiceNumbers)
	assert.Equal(t, model.ReconStatePending, rec.State)
	assert.InDelta(t, 50.00, rec.Residual, 1e-9)
}

func TestResolve_ReferenceWithinTolerance(t *testing.T) {
	mov := makeMovement("mov-1", -150.00, day(2024, 10, 15), "PAGO FACTURA F240100")
	invoices := []model.Invoice{
		makeInvoice(t, "F240100", 151.00, day(2024, 10, 1)),
		makeInvoice(t, "F240099", 150.00, day(2024, 10, 1)),
	}

	rec := resolveOne(t, New(DefaultConfig()), mov, invoices)

	require.Equal(t, model.ReconStateReconciled, rec.State)
	assert.Equal(t, model.RuleReference, rec.Rule)
	assert.Equal(t, []string{"F240100"}, rec.InvoiceNumbers)
}

func TestResolve_SplitSettlement(t *testing.T) {
	mov := makeMovement("mov-1", -500.00, day(2024, 10, 15), "REMESA PROVEEDOR")
	invoices := []model.Invoice{
		makeInvoice(t, "F240020", 200.00, day(2024, 10, 1)),
		makeInvoice(t, "F240021", 150.00, day(2024, 10, 2)),
		makeInvoice(t, "F240022", 150.00, day(2024, 10, 3)),
	}

	rec := resolveOne(t, New(DefaultConfig()), mov, invoices)

	require.Equal(t, model.ReconStateReconciled, rec.State)
	assert.Equal(t, model.RuleSplit, rec.Rule)
	assert.ElementsMatch(t, []string{"F240020", "F240021", "F240022"}, rec.InvoiceNumbers)
	assert.InDelta(t, 0.0, rec.Residual, 1e-9)
}

func TestResolve_NoFalsePositiveOutsideWindow(t *testing.T) {
	// 60 days apart: amount equality must not reconcile
	mov := makeMovement("mov-1", -300.00, day(2024, 10, 15), "TRANSFERENCIA")
	invoices := []model.Invoice{makeInvoice(t, "F240030", 300.00, day(2024, 8, 15))}

	rec := resolveOne(t, New(DefaultConfig()), mov, invoices)

	assert.Equal(t, model.ReconStatePending, rec.State)
	assert.Empty(t, rec.InvoiceNumbers)
}

func TestResolve_NearDateOutranksWideDate(t *testing.T) {
	mov := makeMovement("mov-1", -100.00, day(2024, 10, 15), "RECIBO")
	near := makeInvoice(t, "F240040", 101.00, day(2024, 10, 12)) // 3 days, diff 1.00
	wide := makeInvoice(t, "F240041", 100.50, day(2024, 9, 25))  // 20 days, smaller diff

	rec := resolveOne(t, New(DefaultConfig()), mov, []model.Invoice{wide, near})

	require.Equal(t, model.ReconStateReconciled, rec.State)
	assert.Equal(t, model.RuleAmountNear, rec.Rule)
	assert.Equal(t, []string{"F240040"}, rec.InvoiceNumbers)
}

func TestResolve_TieBrokenBySmallestDiffThenDate(t *testing.T) {
	mov := makeMovement("mov-1", -100.00, day(2024, 10, 15), "RECIBO")
	invoices := []model.Invoice{
		makeInvoice(t, "F240050", 102.00, day(2024, 10, 14)),
		makeInvoice(t, "F240051", 101.00, day(2024, 10, 10)), // smaller diff wins
		makeInvoice(t, "F240052", 101.00, day(2024, 10, 8)),  // same diff, farther date
	}

	rec := resolveOne(t, New(DefaultConfig()), mov, invoices)

	require.Equal(t, model.ReconStateReconciled, rec.State)
	assert.Equal(t, []string{"F240051"}, rec.InvoiceNumbers)
}

func TestResolve_NoCandidates(t *testing.T) {
	mov := makeMovement("mov-1", -42.00, day(2024, 10, 15), "COMISION")

	rec := resolveOne(t, New(DefaultConfig()), mov, nil)

	assert.Equal(t, model.ReconStatePending, rec.State)
	assert.Equal(t, model.RuleNone, rec.Rule)
	assert.Equal(t, []string{"mov-1"}, rec.MovementIDs)
	assert.InDelta(t, 42.00, rec.Residual, 1e-9)
	assert.Nil(t, rec.ResolvedAt)
}

func TestResolve_InvalidInput(t *testing.T) {
	mov := makeMovement("mov-1", -10.00, day(2024, 10, 15), "RECIBO")

	// Negative tolerance is a caller bug
	cfg := DefaultConfig()
	cfg.Tolerance = -1
	_, err := New(cfg).Resolve(mov, nil, testNow)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	// So is a non-finite movement amount
	bad := mov
	bad.Amount = math.NaN()
	_, err = New(DefaultConfig()).Resolve(bad, nil, testNow)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestResolve_SplitSearchDegradesOnLargeCandidateSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSplitCandidates = 5

	// Three 10.00 invoices would settle the movement, but six window
	// candidates exceed the bound: no split is attempted at all
	mov := makeMovement("mov-1", -30.00, day(2024, 10, 15), "REMESA")
	var invoices []model.Invoice
	for i := 0; i < 6; i++ {
		invoices = append(invoices, makeInvoice(t, fmt.Sprintf("F2400%d", 60+i), 10.00, day(2024, 10, 1)))
	}

	rec := resolveOne(t, New(cfg), mov, invoices)
	assert.Equal(t, model.ReconStatePending, rec.State)

	// With the default bound the same inputs reconcile as a split
	rec = resolveOne(t, New(DefaultConfig()), mov, invoices)
	assert.Equal(t, model.ReconStateReconciled, rec.State)
	assert.Equal(t, model.RuleSplit, rec.Rule)
}
