package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeRetainage_FirstPeriod(t *testing.T) {
	// 10% retainage on 20000 of work, nothing carried forward
	got := ComputeRetainage(d("20000"), decimal.Zero, d("10"), CarryForward{})

	if !got.WorkCompletedToDate.Equal(d("20000")) {
		t.Fatalf("WorkCompletedToDate = %s, want 20000", got.WorkCompletedToDate)
	}
	if !got.TotalCompletedAndStored.Equal(d("20000")) {
		t.Fatalf("TotalCompletedAndStored = %s, want 20000", got.TotalCompletedAndStored)
	}
	if !got.RetainageThisPeriod.Equal(d("2000")) {
		t.Fatalf("RetainageThisPeriod = %s, want 2000", got.RetainageThisPeriod)
	}
	if !got.TotalRetainage.Equal(d("2000")) {
		t.Fatalf("TotalRetainage = %s, want 2000", got.TotalRetainage)
	}
	if !got.TotalEarnedLessRetainage.Equal(d("18000")) {
		t.Fatalf("TotalEarnedLessRetainage = %s, want 18000", got.TotalEarnedLessRetainage)
	}
	if !got.CurrentPaymentDue.Equal(d("18000")) {
		t.Fatalf("CurrentPaymentDue = %s, want 18000", got.CurrentPaymentDue)
	}
}

func TestComputeRetainage_SecondPeriodCarriesForward(t *testing.T) {
	carry := CarryForward{
		WorkCompletedPrevious:    d("20000"),
		RetainagePrevious:        d("2000"),
		LessPreviousCertificates: d("18000"),
	}
	got := ComputeRetainage(d("30000"), decimal.Zero, d("10"), carry)

	if !got.WorkCompletedToDate.Equal(d("50000")) {
		t.Fatalf("WorkCompletedToDate = %s, want 50000", got.WorkCompletedToDate)
	}
	if !got.RetainageThisPeriod.Equal(d("3000")) {
		t.Fatalf("RetainageThisPeriod = %s, want 3000", got.RetainageThisPeriod)
	}
	if !got.TotalRetainage.Equal(d("5000")) {
		t.Fatalf("TotalRetainage = %s, want 5000", got.TotalRetainage)
	}
	if !got.TotalEarnedLessRetainage.Equal(d("45000")) {
		t.Fatalf("TotalEarnedLessRetainage = %s, want 45000", got.TotalEarnedLessRetainage)
	}
	if !got.CurrentPaymentDue.Equal(d("27000")) {
		t.Fatalf("CurrentPaymentDue = %s, want 27000", got.CurrentPaymentDue)
	}
}

func TestComputeRetainage_StoredMaterialsEarnWithoutRetainage(t *testing.T) {
	// stored materials raise the completed-and-stored total but only
	// this period's work generates retainage
	got := ComputeRetainage(d("10000"), d("5000"), d("10"), CarryForward{})

	if !got.TotalCompletedAndStored.Equal(d("15000")) {
		t.Fatalf("TotalCompletedAndStored = %s, want 15000", got.TotalCompletedAndStored)
	}
	if !got.RetainageThisPeriod.Equal(d("1000")) {
		t.Fatalf("RetainageThisPeriod = %s, want 1000", got.RetainageThisPeriod)
	}
	if !got.TotalEarnedLessRetainage.Equal(d("14000")) {
		t.Fatalf("TotalEarnedLessRetainage = %s, want 14000", got.TotalEarnedLessRetainage)
	}
}

func TestComputeRetainage_RoundsHalfAwayFromZero(t *testing.T) {
	// 5% of 333.35 = 16.6675 -> 16.67
	got := ComputeRetainage(d("333.35"), decimal.Zero, d("5"), CarryForward{})
	if !got.RetainageThisPeriod.Equal(d("16.67")) {
		t.Fatalf("RetainageThisPeriod = %s, want 16.67", got.RetainageThisPeriod)
	}
}

func TestComputeRetainage_ArithmeticClosure(t *testing.T) {
	cases := []struct {
		thisPeriod string
		stored     string
		percent    string
		carry      CarryForward
	}{
		{"20000", "0", "10", CarryForward{}},
		{"30000", "0", "10", CarryForward{d("20000"), d("2000"), d("18000")}},
		{"12345.67", "890.12", "7.5", CarryForward{d("5000.55"), d("375.04"), d("4625.51")}},
		{"0.01", "0.01", "10", CarryForward{}},
		{"-500", "0", "10", CarryForward{d("1000"), d("100"), d("900")}},
	}
	for _, tc := range cases {
		got := ComputeRetainage(d(tc.thisPeriod), d(tc.stored), d(tc.percent), tc.carry)

		if !got.WorkCompletedToDate.Equal(tc.carry.WorkCompletedPrevious.Add(d(tc.thisPeriod)).Round(2)) {
			t.Fatalf("case %+v: WorkCompletedToDate closure broken: %s", tc, got.WorkCompletedToDate)
		}
		if !got.TotalCompletedAndStored.Equal(got.WorkCompletedToDate.Add(d(tc.stored)).Round(2)) {
			t.Fatalf("case %+v: TotalCompletedAndStored closure broken: %s", tc, got.TotalCompletedAndStored)
		}
		if !got.TotalRetainage.Equal(tc.carry.RetainagePrevious.Add(got.RetainageThisPeriod).Round(2)) {
			t.Fatalf("case %+v: TotalRetainage closure broken: %s", tc, got.TotalRetainage)
		}
		if !got.TotalEarnedLessRetainage.Equal(got.TotalCompletedAndStored.Sub(got.TotalRetainage).Round(2)) {
			t.Fatalf("case %+v: TotalEarnedLessRetainage closure broken: %s", tc, got.TotalEarnedLessRetainage)
		}
		if !got.CurrentPaymentDue.Equal(got.TotalEarnedLessRetainage.Sub(tc.carry.LessPreviousCertificates).Round(2)) {
			t.Fatalf("case %+v: CurrentPaymentDue closure broken: %s", tc, got.CurrentPaymentDue)
		}
	}
}
