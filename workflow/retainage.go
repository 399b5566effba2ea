package workflow

import (
	"github.com/shopspring/decimal"
)

// CarryForward is the baseline a new billing period starts from: the
// cumulative figures of the subcontract's prior application, or zeros for
// the first one.
type CarryForward struct {
	WorkCompletedPrevious    decimal.Decimal
	RetainagePrevious        decimal.Decimal
	LessPreviousCertificates decimal.Decimal
}

// DerivedFields are the monetary columns computed from one period's inputs
// plus the carry-forward. Every field is rounded to cents with the same
// rounding rule so that later delta reconciliation nets to zero.
type DerivedFields struct {
	WorkCompletedToDate      decimal.Decimal
	TotalCompletedAndStored  decimal.Decimal
	RetainageThisPeriod      decimal.Decimal
	TotalRetainage           decimal.Decimal
	TotalEarnedLessRetainage decimal.Decimal
	CurrentPaymentDue        decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// ComputeRetainage derives all continuation-sheet figures for one period.
// Pure; used identically at creation and at in-place recompute on edit.
//
//	WorkCompletedToDate      = WorkCompletedPrevious + WorkCompletedThisPeriod
//	TotalCompletedAndStored  = WorkCompletedToDate + StoredMaterials
//	RetainageThisPeriod      = WorkCompletedThisPeriod * RetainagePercent/100
//	TotalRetainage           = RetainagePrevious + RetainageThisPeriod
//	TotalEarnedLessRetainage = TotalCompletedAndStored - TotalRetainage
//	CurrentPaymentDue        = TotalEarnedLessRetainage - LessPreviousCertificates
func ComputeRetainage(workCompletedThisPeriod decimal.Decimal, storedMaterials decimal.Decimal, retainagePercent decimal.Decimal, carry CarryForward) DerivedFields {

	// decimal.Round is half-away-from-zero
	workCompletedToDate := carry.WorkCompletedPrevious.Add(workCompletedThisPeriod).Round(2)
	totalCompletedAndStored := workCompletedToDate.Add(storedMaterials).Round(2)
	retainageThisPeriod := workCompletedThisPeriod.Mul(retainagePercent).Div(oneHundred).Round(2)
	totalRetainage := carry.RetainagePrevious.Add(retainageThisPeriod).Round(2)
	totalEarnedLessRetainage := totalCompletedAndStored.Sub(totalRetainage).Round(2)
	currentPaymentDue := totalEarnedLessRetainage.Sub(carry.LessPreviousCertificates).Round(2)

	return DerivedFields{
		WorkCompletedToDate:      workCompletedToDate,
		TotalCompletedAndStored:  totalCompletedAndStored,
		RetainageThisPeriod:      retainageThisPeriod,
		TotalRetainage:           totalRetainage,
		TotalEarnedLessRetainage: totalEarnedLessRetainage,
		CurrentPaymentDue:        currentPaymentDue,
	}
}
