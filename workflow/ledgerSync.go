package workflow

import (
	"github.com/mmdatafocus/construct_backend/models"
	"github.com/shopspring/decimal"
)

// Ledger synchronization: a payment application's financial effect on its
// parent subcontract's running totals. Kept as explicit in-memory mutations
// so the rules stay unit-testable away from storage; persisting the result
// is the caller's transaction.

// paidAmount is what actually posts to PaidToDate: the approved amount when
// the reviewer set one, else the computed payment due.
func paidAmount(approvedAmount decimal.NullDecimal, currentPaymentDue decimal.Decimal) decimal.Decimal {
	if approvedAmount.Valid {
		return approvedAmount.Decimal
	}
	return currentPaymentDue
}

// ApplyPaid posts an application's first entry into Paid. RetainageHeld is
// an assignment, not an accumulation: TotalRetainage is already cumulative,
// so the latest application's figure wins.
func ApplyPaid(subcontract *models.Subcontract, application *models.PaymentApplication) {
	subcontract.BilledToDate = subcontract.BilledToDate.Add(application.CurrentPaymentDue)
	subcontract.PaidToDate = subcontract.PaidToDate.Add(paidAmount(application.ApprovedAmount, application.CurrentPaymentDue))
	subcontract.RetainageHeld = application.TotalRetainage
}

// ReconcileDelta corrects the totals after an already-Paid application is
// revised. Diffs against that same application's immediately prior persisted
// values, never against aggregate history, so repeated edits cannot
// double-count.
func ReconcileDelta(subcontract *models.Subcontract, application *models.PaymentApplication,
	oldCurrentPaymentDue decimal.Decimal, oldApprovedAmount decimal.NullDecimal) {

	billedDelta := application.CurrentPaymentDue.Sub(oldCurrentPaymentDue)
	paidDelta := paidAmount(application.ApprovedAmount, application.CurrentPaymentDue).
		Sub(paidAmount(oldApprovedAmount, oldCurrentPaymentDue))

	subcontract.BilledToDate = subcontract.BilledToDate.Add(billedDelta)
	subcontract.PaidToDate = subcontract.PaidToDate.Add(paidDelta)
	subcontract.RetainageHeld = application.TotalRetainage
}
