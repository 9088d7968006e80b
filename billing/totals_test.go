package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestItemTotal(t *testing.T) {
	total, err := ItemTotal(d("2"), d("100"))
	require.NoError(t, err)
	assert.True(t, total.Equal(d("200")))

	// Zero quantity and zero price are legal, not errors
	total, err = ItemTotal(d("0"), d("100"))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	total, err = ItemTotal(d("3"), d("0"))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	// Fractional quantities multiply exactly
	total, err = ItemTotal(d("2.5"), d("99.99"))
	require.NoError(t, err)
	assert.True(t, total.Equal(d("249.975")))
}

func TestItemTotalRejectsNegatives(t *testing.T) {
	_, err := ItemTotal(d("-1"), d("100"))
	var invalid *ErrInvalidInput
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "quantity", invalid.Field)

	_, err = ItemTotal(d("1"), d("-100"))
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "unitPrice", invalid.Field)
}

func TestComputeDocumentTotals(t *testing.T) {
	// One taxable item (2 × $100) and one non-taxable ($50) at 8% tax
	items := []Item{
		{Quantity: d("2"), UnitPrice: d("100"), StoredTotal: d("200"), Taxable: true},
		{Quantity: d("1"), UnitPrice: d("50"), StoredTotal: d("50"), Taxable: false},
	}

	totals, warnings, err := ComputeDocumentTotals(items, d("8"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, totals.Subtotal.Equal(d("250")), "subtotal = %s", totals.Subtotal)
	assert.True(t, totals.TaxableBase.Equal(d("200")), "taxableBase = %s", totals.TaxableBase)
	assert.True(t, totals.TaxAmount.Equal(d("16")), "taxAmount = %s", totals.TaxAmount)
	assert.True(t, totals.Total.Equal(d("266")), "total = %s", totals.Total)
}

func TestComputeDocumentTotalsEmpty(t *testing.T) {
	totals, warnings, err := ComputeDocumentTotals(nil, d("8"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestComputeDocumentTotalsZeroValueItemsStillCount(t *testing.T) {
	items := []Item{
		{Quantity: d("0"), UnitPrice: d("500"), StoredTotal: d("0"), Taxable: true},
		{Quantity: d("4"), UnitPrice: d("0"), StoredTotal: d("0"), Taxable: true},
		{Quantity: d("1"), UnitPrice: d("100"), StoredTotal: d("100"), Taxable: true},
	}

	totals, warnings, err := ComputeDocumentTotals(items, d("10"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, totals.Subtotal.Equal(d("100")))
	assert.True(t, totals.TaxableBase.Equal(d("100")))
	assert.True(t, totals.TaxAmount.Equal(d("10")))
}

func TestComputeDocumentTotalsTaxableBaseNeverExceedsSubtotal(t *testing.T) {
	items := []Item{
		{Quantity: d("1"), UnitPrice: d("75"), StoredTotal: d("75"), Taxable: true},
		{Quantity: d("2"), UnitPrice: d("30"), StoredTotal: d("60"), Taxable: false},
		{Quantity: d("1"), UnitPrice: d("10"), StoredTotal: d("10"), Taxable: true},
	}

	totals, _, err := ComputeDocumentTotals(items, d("8"))
	require.NoError(t, err)
	assert.True(t, totals.TaxableBase.LessThanOrEqual(totals.Subtotal))

	// Equality holds when every item is taxable
	for i := range items {
		items[i].Taxable = true
	}
	totals, _, err = ComputeDocumentTotals(items, d("8"))
	require.NoError(t, err)
	assert.True(t, totals.TaxableBase.Equal(totals.Subtotal))
}

func TestComputeDocumentTotalsFlagsInconsistentStoredTotal(t *testing.T) {
	// Stored total drifted from quantity × unit price: the derived value
	// wins and the discrepancy is reported.
	items := []Item{
		{Quantity: d("2"), UnitPrice: d("100"), StoredTotal: d("180"), Taxable: true},
	}

	totals, warnings, err := ComputeDocumentTotals(items, d("0"))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	var inconsistent *ErrInconsistentState
	assert.ErrorAs(t, warnings[0], &inconsistent)
	assert.True(t, totals.Subtotal.Equal(d("200")), "derived value must win")
}

func TestComputeDocumentTotalsRejectsNegativeTaxRate(t *testing.T) {
	_, _, err := ComputeDocumentTotals(nil, d("-8"))
	var invalid *ErrInvalidInput
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "taxRatePercent", invalid.Field)
}

func TestContractorCostHourly(t *testing.T) {
	cost, err := ContractorCost(RateHourly, d("3"), dp("40"), nil, d("0"))
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("120")))
}

func TestContractorCostFlat(t *testing.T) {
	// Hours are ignored in flat mode
	cost, err := ContractorCost(RateFlat, d("0"), nil, dp("500"), d("0"))
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("500")))
}

func TestContractorCostGenericRateFallback(t *testing.T) {
	// Older contractor records have only the generic rate
	cost, err := ContractorCost(RateHourly, d("2"), nil, nil, d("35"))
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("70")))

	cost, err = ContractorCost(RateFlat, d("0"), nil, nil, d("250"))
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("250")))
}

func TestContractorCostHourlyRequiresHours(t *testing.T) {
	var invalid *ErrInvalidInput
	_, err := ContractorCost(RateHourly, d("0"), dp("40"), nil, d("0"))
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "hours", invalid.Field)

	_, err = ContractorCost(RateHourly, d("-2"), dp("40"), nil, d("0"))
	require.ErrorAs(t, err, &invalid)
}

func TestContractorCostUnknownRateType(t *testing.T) {
	var invalid *ErrInvalidInput
	_, err := ContractorCost(RateType("retainer"), d("1"), nil, nil, d("0"))
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "rateType", invalid.Field)
}

func TestContractorsTotal(t *testing.T) {
	assignments := []Assignment{
		{Cost: d("120"), IncludeInTotal: true},
		{Cost: d("300"), IncludeInTotal: false},
		{Cost: d("80"), IncludeInTotal: true},
	}
	total := ContractorsTotal(assignments)
	assert.True(t, total.Equal(d("200")))
}

func TestContractorsTotalExcludesFunded(t *testing.T) {
	// Funded: billed separately and toggled out of the total
	assignments := []Assignment{
		{Cost: d("950"), IncludeInTotal: false, BilledSeparately: true},
	}
	assert.True(t, assignments[0].Funded())
	assert.True(t, ContractorsTotal(assignments).IsZero())

	// Billed separately but still included keeps contributing
	assignments[0].IncludeInTotal = true
	assert.False(t, assignments[0].Funded())
	assert.True(t, ContractorsTotal(assignments).Equal(d("950")))
}

func TestGrandTotalDecomposition(t *testing.T) {
	// $266 document total plus one included hourly assignment of $120
	items := []Item{
		{Quantity: d("2"), UnitPrice: d("100"), StoredTotal: d("200"), Taxable: true},
		{Quantity: d("1"), UnitPrice: d("50"), StoredTotal: d("50"), Taxable: false},
	}
	totals, _, err := ComputeDocumentTotals(items, d("8"))
	require.NoError(t, err)

	assignments := []Assignment{{Cost: d("120"), IncludeInTotal: true}}
	grand := GrandTotal(totals.Total, ContractorsTotal(assignments))
	assert.True(t, grand.Equal(d("386")), "grandTotal = %s", grand)

	// Toggling the assignment out leaves no residual contribution
	assignments[0].IncludeInTotal = false
	grand = GrandTotal(totals.Total, ContractorsTotal(assignments))
	assert.True(t, grand.Equal(d("266")))
}

func TestBalanceDue(t *testing.T) {
	grand := d("386")

	payments := []Payment{{Amount: d("150"), Status: PaymentCompleted}}
	balance := BalanceDue(grand, payments)
	assert.True(t, balance.Equal(d("236")))

	// Pending payments never reduce the balance
	payments = append(payments, Payment{Amount: d("100"), Status: PaymentPending})
	assert.True(t, BalanceDue(grand, payments).Equal(d("236")))

	// Full payment brings the balance to zero
	payments = append(payments, Payment{Amount: d("236"), Status: PaymentCompleted})
	assert.True(t, BalanceDue(grand, payments).IsZero())
}

func TestBalanceDueMonotonicity(t *testing.T) {
	grand := d("1000")
	var payments []Payment
	balance := BalanceDue(grand, payments)

	amount := d("37.50")
	payments = append(payments, Payment{Amount: amount, Status: PaymentCompleted})
	next := BalanceDue(grand, payments)
	assert.True(t, balance.Sub(next).Equal(amount), "completed payment decreases balance by exactly its amount")
}

func TestBalanceDueOverpaymentGoesNegative(t *testing.T) {
	payments := []Payment{{Amount: d("500"), Status: PaymentCompleted}}
	balance := BalanceDue(d("386"), payments)
	assert.True(t, balance.Equal(d("-114")), "overpayment is displayed, never auto-corrected")
}

func TestRoundedIsPresentationOnly(t *testing.T) {
	items := []Item{
		{Quantity: d("3"), UnitPrice: d("33.333"), StoredTotal: d("99.999"), Taxable: true},
	}
	totals, _, err := ComputeDocumentTotals(items, d("8"))
	require.NoError(t, err)

	// The unrounded value keeps full precision for downstream aggregates
	assert.True(t, totals.Subtotal.Equal(d("99.999")))
	assert.True(t, totals.Rounded().Subtotal.Equal(d("100.00")))
}
