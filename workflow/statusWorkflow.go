package workflow

import (
	"time"

	"github.com/mmdatafocus/construct_backend/models"
	"github.com/mmdatafocus/construct_backend/utils"
)

// allowedTransitions is the approval state machine. Re-asserting the current
// status is always allowed (covers idempotent re-entry and Paid corrections),
// so only genuine moves appear here. Void and Rejected are terminal for
// practical purposes; Rejected may be pulled back to Draft for rework.
var allowedTransitions = map[models.PaymentApplicationStatus][]models.PaymentApplicationStatus{
	models.PaymentApplicationStatusDraft:             {models.PaymentApplicationStatusSubmitted, models.PaymentApplicationStatusVoid},
	models.PaymentApplicationStatusSubmitted:         {models.PaymentApplicationStatusUnderReview, models.PaymentApplicationStatusRejected, models.PaymentApplicationStatusVoid},
	models.PaymentApplicationStatusUnderReview:       {models.PaymentApplicationStatusApproved, models.PaymentApplicationStatusPartiallyApproved, models.PaymentApplicationStatusRejected, models.PaymentApplicationStatusVoid},
	models.PaymentApplicationStatusApproved:          {models.PaymentApplicationStatusPaid, models.PaymentApplicationStatusVoid},
	models.PaymentApplicationStatusPartiallyApproved: {models.PaymentApplicationStatusPaid, models.PaymentApplicationStatusVoid},
	models.PaymentApplicationStatusRejected:          {models.PaymentApplicationStatusDraft},
	models.PaymentApplicationStatusPaid:              {},
	models.PaymentApplicationStatusVoid:              {},
}

func CanTransition(from models.PaymentApplicationStatus, to models.PaymentApplicationStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from models.PaymentApplicationStatus, to models.PaymentApplicationStatus) error {
	if !to.IsValid() {
		return utils.NewCodedError(utils.ErrCodeValidation, "invalid payment application status")
	}
	if !CanTransition(from, to) {
		return utils.NewCodedError(utils.ErrCodeValidation, "cannot move application from "+string(from)+" to "+string(to))
	}
	return nil
}

// StampStatusDates records when a status was first reached. Guarded
// assignments, never the transition table: several source states lead to the
// same stamp, and re-entering a status must not move its date.
func StampStatusDates(application *models.PaymentApplication, approvedBy int) {
	now := time.Now().UTC()
	switch application.CurrentStatus {
	case models.PaymentApplicationStatusSubmitted:
		if application.SubmittedDate == nil {
			application.SubmittedDate = &now
		}
	case models.PaymentApplicationStatusUnderReview:
		if application.ReviewedDate == nil {
			application.ReviewedDate = &now
		}
	case models.PaymentApplicationStatusApproved, models.PaymentApplicationStatusPartiallyApproved:
		if application.ApprovedDate == nil {
			application.ApprovedDate = &now
			application.ApprovedBy = approvedBy
		}
	case models.PaymentApplicationStatusPaid:
		if application.PaidDate == nil {
			application.PaidDate = &now
		}
	}
}
