package workflow

import (
	"testing"

	"github.com/mmdatafocus/construct_backend/models"
	"github.com/shopspring/decimal"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d(s), Valid: true}
}

func TestApplyPaid_PostsToTotals(t *testing.T) {
	subcontract := &models.Subcontract{
		BilledToDate:  d("18000"),
		PaidToDate:    d("18000"),
		RetainageHeld: d("2000"),
	}
	application := &models.PaymentApplication{
		CurrentPaymentDue: d("27000"),
		ApprovedAmount:    nd("26000"),
		TotalRetainage:    d("5000"),
	}

	ApplyPaid(subcontract, application)

	if !subcontract.BilledToDate.Equal(d("45000")) {
		t.Fatalf("BilledToDate = %s, want 45000", subcontract.BilledToDate)
	}
	if !subcontract.PaidToDate.Equal(d("44000")) {
		t.Fatalf("PaidToDate = %s, want 44000", subcontract.PaidToDate)
	}
	// assignment, not accumulation: the cumulative figure wins
	if !subcontract.RetainageHeld.Equal(d("5000")) {
		t.Fatalf("RetainageHeld = %s, want 5000", subcontract.RetainageHeld)
	}
}

func TestApplyPaid_FallsBackToPaymentDueWithoutApprovedAmount(t *testing.T) {
	subcontract := &models.Subcontract{}
	application := &models.PaymentApplication{
		CurrentPaymentDue: d("18000"),
		TotalRetainage:    d("2000"),
	}

	ApplyPaid(subcontract, application)

	if !subcontract.PaidToDate.Equal(d("18000")) {
		t.Fatalf("PaidToDate = %s, want 18000", subcontract.PaidToDate)
	}
}

func TestReconcileDelta_AppliesOnlyTheDifference(t *testing.T) {
	subcontract := &models.Subcontract{
		BilledToDate:  d("45000"),
		PaidToDate:    d("44000"),
		RetainageHeld: d("5000"),
	}
	application := &models.PaymentApplication{
		CurrentPaymentDue: d("27000"),
		ApprovedAmount:    nd("26500"),
		TotalRetainage:    d("5000"),
	}

	ReconcileDelta(subcontract, application, d("27000"), nd("26000"))

	if !subcontract.BilledToDate.Equal(d("45000")) {
		t.Fatalf("BilledToDate = %s, want unchanged 45000", subcontract.BilledToDate)
	}
	// paid moved by exactly 500, never reset to 26500
	if !subcontract.PaidToDate.Equal(d("44500")) {
		t.Fatalf("PaidToDate = %s, want 44500", subcontract.PaidToDate)
	}
}

func TestReconcileDelta_FigureEditMovesBilledByDelta(t *testing.T) {
	subcontract := &models.Subcontract{
		BilledToDate:  d("45000"),
		PaidToDate:    d("44000"),
		RetainageHeld: d("5000"),
	}
	// period figures revised upward: payment due 27000 -> 27900,
	// cumulative retainage 5000 -> 5100
	application := &models.PaymentApplication{
		CurrentPaymentDue: d("27900"),
		TotalRetainage:    d("5100"),
	}

	ReconcileDelta(subcontract, application, d("27000"), decimal.NullDecimal{})

	if !subcontract.BilledToDate.Equal(d("45900")) {
		t.Fatalf("BilledToDate = %s, want 45900", subcontract.BilledToDate)
	}
	if !subcontract.PaidToDate.Equal(d("44900")) {
		t.Fatalf("PaidToDate = %s, want 44900", subcontract.PaidToDate)
	}
	if !subcontract.RetainageHeld.Equal(d("5100")) {
		t.Fatalf("RetainageHeld = %s, want 5100", subcontract.RetainageHeld)
	}
}

func TestReconcileDelta_RepeatedEditsNeverDoubleCount(t *testing.T) {
	subcontract := &models.Subcontract{
		BilledToDate: d("45000"),
		PaidToDate:   d("44000"),
	}
	application := &models.PaymentApplication{
		CurrentPaymentDue: d("27000"),
		ApprovedAmount:    nd("26500"),
		TotalRetainage:    d("5000"),
	}

	// first edit: 26000 -> 26500
	ReconcileDelta(subcontract, application, d("27000"), nd("26000"))
	// second edit: 26500 -> 26200, diffed against the prior persisted value
	prior := application.ApprovedAmount
	application.ApprovedAmount = nd("26200")
	ReconcileDelta(subcontract, application, d("27000"), prior)

	if !subcontract.PaidToDate.Equal(d("44200")) {
		t.Fatalf("PaidToDate = %s, want 44200", subcontract.PaidToDate)
	}
	if !subcontract.BilledToDate.Equal(d("45000")) {
		t.Fatalf("BilledToDate = %s, want unchanged 45000", subcontract.BilledToDate)
	}
}
