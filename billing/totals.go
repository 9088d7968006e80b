// Package billing computes every monetary aggregate for quotes and invoices.
// All functions are pure: they read their arguments, return a result, and
// keep no state, so totals are always recomputed from scratch rather than
// incrementally maintained.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateType selects how a contractor assignment is priced.
type RateType string

const (
	RateHourly RateType = "hourly"
	RateFlat   RateType = "flat"
)

// PaymentStatus of a recorded payment. Only completed payments count toward
// the amount paid.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentPending   PaymentStatus = "pending"
)

// storedTotalTolerance is how far a stored item total may drift from
// quantity × unit price before it is reported as inconsistent.
var storedTotalTolerance = decimal.NewFromFloat(0.01)

// Item is the slice of a line item the engine needs.
type Item struct {
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	StoredTotal decimal.Decimal
	Taxable     bool
}

// Assignment is the slice of a contractor assignment the engine needs.
type Assignment struct {
	Cost             decimal.Decimal
	IncludeInTotal   bool
	BilledSeparately bool
}

// Funded reports whether the assignment's fee is paid through a separate
// channel and therefore excluded from the parent document's grand total.
func (a Assignment) Funded() bool {
	return a.BilledSeparately && !a.IncludeInTotal
}

// Payment is the slice of a payment record the engine needs.
type Payment struct {
	Amount decimal.Decimal
	Status PaymentStatus
}

// DocumentTotals holds the service-side aggregates of a document. Contractor
// costs are never part of these; they join at the grand-total level.
type DocumentTotals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxableBase decimal.Decimal `json:"taxableBase"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	Total       decimal.Decimal `json:"total"`
}

// Rounded returns a copy rounded to 2 decimal places for display. Rounding
// never happens before a later aggregate consumes the value.
func (t DocumentTotals) Rounded() DocumentTotals {
	return DocumentTotals{
		Subtotal:    t.Subtotal.Round(2),
		TaxableBase: t.TaxableBase.Round(2),
		TaxAmount:   t.TaxAmount.Round(2),
		Total:       t.Total.Round(2),
	}
}

// ItemTotal returns quantity × unitPrice. Zero quantity or price is legal and
// gives a zero total; negative values are a caller error.
func ItemTotal(quantity, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsNegative() {
		return decimal.Zero, &ErrInvalidInput{Field: "quantity", Reason: "must not be negative"}
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, &ErrInvalidInput{Field: "unitPrice", Reason: "must not be negative"}
	}
	return quantity.Mul(unitPrice), nil
}

// ComputeDocumentTotals aggregates the line items of a document. Items whose
// stored total disagrees with quantity × unit price beyond a cent are summed
// from the derived product instead, and each such discrepancy is returned as
// an inconsistency warning for the caller to log.
func ComputeDocumentTotals(items []Item, taxRatePercent decimal.Decimal) (DocumentTotals, []error, error) {
	if taxRatePercent.IsNegative() {
		return DocumentTotals{}, nil, &ErrInvalidInput{Field: "taxRatePercent", Reason: "must not be negative"}
	}

	var warnings []error
	subtotal := decimal.Zero
	taxableBase := decimal.Zero

	for i, item := range items {
		derived, err := ItemTotal(item.Quantity, item.UnitPrice)
		if err != nil {
			return DocumentTotals{}, nil, err
		}
		if item.StoredTotal.Sub(derived).Abs().GreaterThan(storedTotalTolerance) {
			warnings = append(warnings, &ErrInconsistentState{
				Entity: "line item",
				Detail: fmt.Sprintf("item %d stored total %s != %s x %s", i,
					item.StoredTotal, item.Quantity, item.UnitPrice),
			})
		}
		subtotal = subtotal.Add(derived)
		if item.Taxable {
			taxableBase = taxableBase.Add(derived)
		}
	}

	taxAmount := taxableBase.Mul(taxRatePercent).Div(decimal.NewFromInt(100))
	return DocumentTotals{
		Subtotal:    subtotal,
		TaxableBase: taxableBase,
		TaxAmount:   taxAmount,
		Total:       subtotal.Add(taxAmount),
	}, warnings, nil
}

// ContractorCost derives the cost of an assignment. Hourly assignments need
// hours > 0; flat assignments ignore hours. When the mode-specific rate is
// missing the contractor's generic rate is used, so older contractor records
// without split rates remain usable.
func ContractorCost(rateType RateType, hours decimal.Decimal, hourlyRate, flatRate *decimal.Decimal, genericRate decimal.Decimal) (decimal.Decimal, error) {
	switch rateType {
	case RateHourly:
		if !hours.IsPositive() {
			return decimal.Zero, &ErrInvalidInput{Field: "hours", Reason: "must be greater than zero for hourly assignments"}
		}
		rate := genericRate
		if hourlyRate != nil {
			rate = *hourlyRate
		}
		if rate.IsNegative() {
			return decimal.Zero, &ErrInvalidInput{Field: "hourlyRate", Reason: "must not be negative"}
		}
		return hours.Mul(rate), nil
	case RateFlat:
		rate := genericRate
		if flatRate != nil {
			rate = *flatRate
		}
		if rate.IsNegative() {
			return decimal.Zero, &ErrInvalidInput{Field: "flatRate", Reason: "must not be negative"}
		}
		return rate, nil
	default:
		return decimal.Zero, &ErrInvalidInput{Field: "rateType", Reason: fmt.Sprintf("unknown rate type %q", rateType)}
	}
}

// ContractorsTotal sums the costs that actually land on the client's bill.
// Funded assignments and assignments toggled out of the total contribute
// nothing regardless of their cost.
func ContractorsTotal(assignments []Assignment) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assignments {
		if !a.IncludeInTotal {
			continue
		}
		total = total.Add(a.Cost)
	}
	return total
}

// GrandTotal is the amount actually owed: document total plus included
// contractor costs. Tax was already computed on the service items alone;
// contractor costs never enter the tax base.
func GrandTotal(documentTotal, contractorsTotal decimal.Decimal) decimal.Decimal {
	return documentTotal.Add(contractorsTotal)
}

// BalanceDue is the grand total minus all completed payments. A negative
// result means the invoice was overpaid; callers display it but never
// auto-correct.
func BalanceDue(grandTotal decimal.Decimal, payments []Payment) decimal.Decimal {
	balance := grandTotal
	for _, p := range payments {
		if p.Status != PaymentCompleted {
			continue
		}
		balance = balance.Sub(p.Amount)
	}
	return balance
}
