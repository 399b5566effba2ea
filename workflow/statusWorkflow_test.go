package workflow

import (
	"testing"
	"time"

	"github.com/mmdatafocus/construct_backend/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    models.PaymentApplicationStatus
		to      models.PaymentApplicationStatus
		allowed bool
	}{
		{models.PaymentApplicationStatusDraft, models.PaymentApplicationStatusSubmitted, true},
		{models.PaymentApplicationStatusDraft, models.PaymentApplicationStatusPaid, false},
		{models.PaymentApplicationStatusSubmitted, models.PaymentApplicationStatusUnderReview, true},
		{models.PaymentApplicationStatusUnderReview, models.PaymentApplicationStatusApproved, true},
		{models.PaymentApplicationStatusUnderReview, models.PaymentApplicationStatusPartiallyApproved, true},
		{models.PaymentApplicationStatusUnderReview, models.PaymentApplicationStatusRejected, true},
		{models.PaymentApplicationStatusApproved, models.PaymentApplicationStatusPaid, true},
		{models.PaymentApplicationStatusPartiallyApproved, models.PaymentApplicationStatusPaid, true},
		{models.PaymentApplicationStatusRejected, models.PaymentApplicationStatusDraft, true},
		{models.PaymentApplicationStatusRejected, models.PaymentApplicationStatusSubmitted, false},
		{models.PaymentApplicationStatusPaid, models.PaymentApplicationStatusDraft, false},
		{models.PaymentApplicationStatusPaid, models.PaymentApplicationStatusVoid, false},
		{models.PaymentApplicationStatusVoid, models.PaymentApplicationStatusDraft, false},
		// re-asserting the current status is always a valid no-op
		{models.PaymentApplicationStatusPaid, models.PaymentApplicationStatusPaid, true},
		{models.PaymentApplicationStatusVoid, models.PaymentApplicationStatusVoid, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestValidateTransition_RejectsUnknownStatus(t *testing.T) {
	err := ValidateTransition(models.PaymentApplicationStatusDraft, models.PaymentApplicationStatus("Archived"))
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestStampStatusDates_FirstTimeOnly(t *testing.T) {
	application := &models.PaymentApplication{
		CurrentStatus: models.PaymentApplicationStatusSubmitted,
	}
	StampStatusDates(application, 7)
	if application.SubmittedDate == nil {
		t.Fatal("SubmittedDate not stamped")
	}

	first := *application.SubmittedDate
	time.Sleep(time.Millisecond)
	StampStatusDates(application, 7)
	if !application.SubmittedDate.Equal(first) {
		t.Fatal("re-entering Submitted moved SubmittedDate")
	}
}

func TestStampStatusDates_ApprovedStampsApprover(t *testing.T) {
	application := &models.PaymentApplication{
		CurrentStatus: models.PaymentApplicationStatusPartiallyApproved,
	}
	StampStatusDates(application, 42)
	if application.ApprovedDate == nil {
		t.Fatal("ApprovedDate not stamped")
	}
	if application.ApprovedBy != 42 {
		t.Fatalf("ApprovedBy = %d, want 42", application.ApprovedBy)
	}

	// a later re-stamp must not reassign the approver
	StampStatusDates(application, 99)
	if application.ApprovedBy != 42 {
		t.Fatalf("ApprovedBy reassigned to %d", application.ApprovedBy)
	}
}

func TestStampStatusDates_PaidAndOtherStampsAreIndependent(t *testing.T) {
	application := &models.PaymentApplication{
		CurrentStatus: models.PaymentApplicationStatusPaid,
	}
	StampStatusDates(application, 7)
	if application.PaidDate == nil {
		t.Fatal("PaidDate not stamped")
	}
	if application.SubmittedDate != nil || application.ReviewedDate != nil || application.ApprovedDate != nil {
		t.Fatal("entering Paid stamped unrelated dates")
	}
}
