package models

import "errors"

type SubcontractStatus string

const (
	SubcontractStatusDraft      SubcontractStatus = "Draft"
	SubcontractStatusActive     SubcontractStatus = "Active"
	SubcontractStatusOnHold     SubcontractStatus = "OnHold"
	SubcontractStatusCompleted  SubcontractStatus = "Completed"
	SubcontractStatusTerminated SubcontractStatus = "Terminated"
	SubcontractStatusCancelled  SubcontractStatus = "Cancelled"
)

var subcontractStatuses = map[SubcontractStatus]bool{
	SubcontractStatusDraft:      true,
	SubcontractStatusActive:     true,
	SubcontractStatusOnHold:     true,
	SubcontractStatusCompleted:  true,
	SubcontractStatusTerminated: true,
	SubcontractStatusCancelled:  true,
}

func (s SubcontractStatus) IsValid() bool { return subcontractStatuses[s] }

type ChangeOrderStatus string

const (
	ChangeOrderStatusPending     ChangeOrderStatus = "Pending"
	ChangeOrderStatusUnderReview ChangeOrderStatus = "UnderReview"
	ChangeOrderStatusApproved    ChangeOrderStatus = "Approved"
	ChangeOrderStatusRejected    ChangeOrderStatus = "Rejected"
	ChangeOrderStatusWithdrawn   ChangeOrderStatus = "Withdrawn"
	ChangeOrderStatusVoid        ChangeOrderStatus = "Void"
)

var changeOrderStatuses = map[ChangeOrderStatus]bool{
	ChangeOrderStatusPending:     true,
	ChangeOrderStatusUnderReview: true,
	ChangeOrderStatusApproved:    true,
	ChangeOrderStatusRejected:    true,
	ChangeOrderStatusWithdrawn:   true,
	ChangeOrderStatusVoid:        true,
}

func (s ChangeOrderStatus) IsValid() bool { return changeOrderStatuses[s] }

type PaymentApplicationStatus string

const (
	PaymentApplicationStatusDraft             PaymentApplicationStatus = "Draft"
	PaymentApplicationStatusSubmitted         PaymentApplicationStatus = "Submitted"
	PaymentApplicationStatusUnderReview       PaymentApplicationStatus = "UnderReview"
	PaymentApplicationStatusApproved          PaymentApplicationStatus = "Approved"
	PaymentApplicationStatusPartiallyApproved PaymentApplicationStatus = "PartiallyApproved"
	PaymentApplicationStatusRejected          PaymentApplicationStatus = "Rejected"
	PaymentApplicationStatusPaid              PaymentApplicationStatus = "Paid"
	PaymentApplicationStatusVoid              PaymentApplicationStatus = "Void"
)

var paymentApplicationStatuses = map[PaymentApplicationStatus]bool{
	PaymentApplicationStatusDraft:             true,
	PaymentApplicationStatusSubmitted:         true,
	PaymentApplicationStatusUnderReview:       true,
	PaymentApplicationStatusApproved:          true,
	PaymentApplicationStatusPartiallyApproved: true,
	PaymentApplicationStatusRejected:          true,
	PaymentApplicationStatusPaid:              true,
	PaymentApplicationStatusVoid:              true,
}

func (s PaymentApplicationStatus) IsValid() bool { return paymentApplicationStatuses[s] }

// convert input to enum type
func (s *PaymentApplicationStatus) UnmarshalText(b []byte) error {
	v := PaymentApplicationStatus(b)
	if !v.IsValid() {
		return errors.New("invalid payment application status")
	}
	*s = v
	return nil
}

func (s *ChangeOrderStatus) UnmarshalText(b []byte) error {
	v := ChangeOrderStatus(b)
	if !v.IsValid() {
		return errors.New("invalid change order status")
	}
	*s = v
	return nil
}

func (s *SubcontractStatus) UnmarshalText(b []byte) error {
	v := SubcontractStatus(b)
	if !v.IsValid() {
		return errors.New("invalid subcontract status")
	}
	*s = v
	return nil
}
