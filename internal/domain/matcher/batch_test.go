package matcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleph70/reconcile-backend/internal/domain/model"
)

func TestResolveBatch_OneRecordPerMovement(t *testing.T) {
	m := New(DefaultConfig())
	movements := []model.BankMovement{
		makeMovement("mov-1", -200.00, day(2024, 10, 15), "TRANSFERENCIA"),
		makeMovement("mov-2", -42.00, day(2024, 10, 16), "COMISION"),
	}
	invoices := []model.Invoice{makeInvoice(t, "F240001", 200.00, day(2024, 10, 1))}

	records, err := m.ResolveBatch(movements, invoices, testNow)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, model.ReconStateReconciled, records[0].State)
	assert.Equal(t, model.ReconStatePending, records[1].State)
}

func TestResolveBatch_InvoiceNotReusedWithinBatch(t *testing.T) {
	m := New(DefaultConfig())
	movements := []model.BankMovement{
		makeMovement("mov-1", -100.00, day(2024, 10, 15), "RECIBO"),
		makeMovement("mov-2", -100.00, day(2024, 10, 16), "RECIBO"),
	}
	invoices := []model.Invoice{makeInvoice(t, "F240001", 100.00, day(2024, 10, 1))}

	records, err := m.ResolveBatch(movements, invoices, testNow)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, model.ReconStateReconciled, records[0].State)
	assert.Equal(t, []string{"F240001"}, records[0].InvoiceNumbers)
	assert.Equal(t, model.ReconStatePending, records[1].State)
	assert.Empty(t, records[1].InvoiceNumbers)
}

func TestResolveBatch_ManyToOne(t *testing.T) {
	// Two partial transfers jointly settle one invoice
	m := New(DefaultConfig())
	movements := []model.BankMovement{
		makeMovement("mov-1", -350.00, day(2024, 10, 10), "PAGO PARCIAL F240001"),
		makeMovement("mov-2", -250.00, day(2024, 10, 15), "PAGO PARCIAL F240001"),
	}
	invoices := []model.Invoice{makeInvoice(t, "F240001", 600.00, day(2024, 10, 1))}

	records, err := m.ResolveBatch(movements, invoices, testNow)
	require.NoError(t, err)
	require.Len(t, records, 1, "individual pending records are superseded by the combined one")

	rec := records[0]
	assert.Equal(t, model.ReconStateReconciled, rec.State)
	assert.Equal(t, model.RuleCombined, rec.Rule)
	assert.ElementsMatch(t, []string{"mov-1", "mov-2"}, rec.MovementIDs)
	assert.Equal(t, []string{"F240001"}, rec.InvoiceNumbers)
	assert.InDelta(t, 0.0, rec.Residual, 1e-9)
}

func TestResolveBatch_ManyToOneWithoutReference(t *testing.T) {
	m := New(DefaultConfig())
	movements := []model.BankMovement{
		makeMovement("mov-1", -400.00, day(2024, 10, 10), "TRANSFERENCIA"),
		makeMovement("mov-2", -200.00, day(2024, 10, 15), "TRANSFERENCIA"),
	}
	invoices := []model.Invoice{makeInvoice(t, "F240001", 600.00, day(2024, 10, 1))}

	records, err := m.ResolveBatch(movements, invoices, testNow)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.RuleCombined, records[0].Rule)
}

func TestResolveBatch_SkipsAlreadyReconciledMovements(t *testing.T) {
	m := New(DefaultConfig())
	done := makeMovement("mov-1", -100.00, day(2024, 10, 15), "RECIBO")
	done.ReconState = model.ReconStateReconciled

	records, err := m.ResolveBatch([]model.BankMovement{done}, nil, testNow)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestResolveBatch_InvalidTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tolerance = math.Inf(1)

	_, err := New(cfg).ResolveBatch(nil, nil, testNow)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestResolveBatch_CombinedRespectsWindow(t *testing.T) {
	// One of the partial payments is far older than the invoice
	// window; the pair must not combine.
	m := New(DefaultConfig())
	movements := []model.BankMovement{
		makeMovement("mov-1", -400.00, day(2024, 8, 1), "TRANSFERENCIA"),
		makeMovement("mov-2", -200.00, day(2024, 10, 15), "TRANSFERENCIA"),
	}
	invoices := []model.Invoice{makeInvoice(t, "F240001", 600.00, day(2024, 10, 1))}

	records, err := m.ResolveBatch(movements, invoices, testNow)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, model.ReconStatePending, rec.State)
	}
}
