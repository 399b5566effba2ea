package workflow

import (
	"context"
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/construct_backend/config"
	"github.com/mmdatafocus/construct_backend/models"
	"github.com/mmdatafocus/construct_backend/utils"
	"gorm.io/gorm"
)

func isDuplicateKey(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// CreatePaymentApplication opens the next billing period for a subcontract.
// The sequencer and the insert run on one locked transaction so two
// concurrent creates for the same subcontract cannot both take the same
// number; if the lock is somehow bypassed the unique index on
// (subcontract_id, application_number) still rejects the loser, so a
// caller-driven retry is safe.
func CreatePaymentApplication(ctx context.Context, input *models.NewPaymentApplication) (*models.PaymentApplication, error) {

	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if input.WorkCompletedThisPeriod.IsNegative() || input.StoredMaterials.IsNegative() {
		return nil, utils.NewCodedError(utils.ErrCodeValidation, "period amounts cannot be negative")
	}

	var application models.PaymentApplication

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)

		if err := models.AcquireSubcontractPostingLock(tx, businessId, input.SubcontractId); err != nil {
			return err
		}
		defer models.ReleaseSubcontractPostingLock(tx, businessId, input.SubcontractId)

		number, carry, err := NextApplicationBaseline(tx, businessId, input.SubcontractId)
		if err != nil {
			return err
		}

		var subcontract models.Subcontract
		if err := tx.Where("business_id = ? AND id = ?", businessId, input.SubcontractId).
			Take(&subcontract).Error; err != nil {
			return utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
		}

		// billing periods move forward only
		if number > 1 {
			var prior models.PaymentApplication
			err := tx.Where("business_id = ? AND subcontract_id = ?", businessId, input.SubcontractId).
				Order("application_number DESC").
				Take(&prior).Error
			if err != nil {
				return err
			}
			if input.PeriodEnd.Before(prior.PeriodEnd) {
				return utils.NewCodedError(utils.ErrCodeValidation,
					fmt.Sprintf("period end cannot be earlier than application %d's period end", prior.ApplicationNumber))
			}
		}

		derived := ComputeRetainage(input.WorkCompletedThisPeriod, input.StoredMaterials, subcontract.RetainagePercent, carry)

		application = models.PaymentApplication{
			BusinessId:               businessId,
			SubcontractId:            input.SubcontractId,
			ApplicationNumber:        number,
			PeriodStart:              input.PeriodStart,
			PeriodEnd:                input.PeriodEnd,
			ScheduledValue:           subcontract.CurrentValue,
			WorkCompletedPrevious:    carry.WorkCompletedPrevious,
			WorkCompletedThisPeriod:  input.WorkCompletedThisPeriod,
			WorkCompletedToDate:      derived.WorkCompletedToDate,
			StoredMaterials:          input.StoredMaterials,
			TotalCompletedAndStored:  derived.TotalCompletedAndStored,
			RetainagePercent:         subcontract.RetainagePercent,
			RetainageThisPeriod:      derived.RetainageThisPeriod,
			RetainagePrevious:        carry.RetainagePrevious,
			TotalRetainage:           derived.TotalRetainage,
			TotalEarnedLessRetainage: derived.TotalEarnedLessRetainage,
			LessPreviousCertificates: carry.LessPreviousCertificates,
			CurrentPaymentDue:        derived.CurrentPaymentDue,
			CurrentStatus:            models.PaymentApplicationStatusDraft,
			InvoiceNumber:            input.InvoiceNumber,
			Notes:                    input.Notes,
		}
		if err := tx.Create(&application).Error; err != nil {
			if isDuplicateKey(err) {
				return utils.NewCodedError(utils.ErrCodeConflict, "application number was taken by a concurrent create, please retry")
			}
			return err
		}

		description := fmt.Sprintf("Payment application %d created for subcontract %s.", application.ApplicationNumber, subcontract.ContractNumber)
		if err := models.CreateHistory(tx, "Create", application.ID, "payment_applications", nil, application, description); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		config.LogError(ctx, logger, "paymentApplicationWorkflow.go", "CreatePaymentApplication", "Transaction", input, err)
		return nil, err
	}
	return &application, nil
}

// UpdatePaymentApplication revises figures and/or moves the application
// through the approval workflow. Entering Paid posts the application to the
// subcontract's totals; revising while still Paid reconciles by delta
// against the row's prior persisted values.
func UpdatePaymentApplication(ctx context.Context, id int, input *models.UpdatePaymentApplicationInput) (*models.PaymentApplication, error) {

	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	oldApplication, err := utils.FetchModel[models.PaymentApplication](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeNotFound, "payment application not found")
	}
	if input.Revision != oldApplication.Revision {
		return nil, utils.NewCodedError(utils.ErrCodeConflict, "payment application was modified by someone else, please refresh")
	}

	if input.ApprovedAmount != nil && input.ApprovedAmount.IsNegative() {
		return nil, utils.NewCodedError(utils.ErrCodeValidation, "approved amount cannot be negative")
	}
	if input.WorkCompletedThisPeriod != nil && input.WorkCompletedThisPeriod.IsNegative() {
		return nil, utils.NewCodedError(utils.ErrCodeValidation, "period amounts cannot be negative")
	}
	if input.StoredMaterials != nil && input.StoredMaterials.IsNegative() {
		return nil, utils.NewCodedError(utils.ErrCodeValidation, "period amounts cannot be negative")
	}

	application := *oldApplication

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)

		if err := models.AcquireSubcontractPostingLock(tx, businessId, application.SubcontractId); err != nil {
			return err
		}
		defer models.ReleaseSubcontractPostingLock(tx, businessId, application.SubcontractId)

		var subcontract models.Subcontract
		if err := tx.Where("business_id = ? AND id = ?", businessId, application.SubcontractId).
			Take(&subcontract).Error; err != nil {
			return utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
		}
		oldSubcontractRevision := subcontract.Revision

		if input.PeriodStart != nil {
			application.PeriodStart = input.PeriodStart
		}
		if input.PeriodEnd != nil {
			application.PeriodEnd = *input.PeriodEnd
		}
		if input.WorkCompletedThisPeriod != nil {
			application.WorkCompletedThisPeriod = *input.WorkCompletedThisPeriod
		}
		if input.StoredMaterials != nil {
			application.StoredMaterials = *input.StoredMaterials
		}
		if input.InvoiceNumber != nil {
			application.InvoiceNumber = *input.InvoiceNumber
		}
		if input.CheckNumber != nil {
			application.CheckNumber = *input.CheckNumber
		}
		if input.Notes != nil {
			application.Notes = *input.Notes
		}
		if input.ApprovedAmount != nil {
			application.ApprovedAmount.Decimal = *input.ApprovedAmount
			application.ApprovedAmount.Valid = true
		}

		figuresChanged := !application.WorkCompletedThisPeriod.Equal(oldApplication.WorkCompletedThisPeriod) ||
			!application.StoredMaterials.Equal(oldApplication.StoredMaterials)
		if figuresChanged {
			carry := CarryForward{
				WorkCompletedPrevious:    application.WorkCompletedPrevious,
				RetainagePrevious:        application.RetainagePrevious,
				LessPreviousCertificates: application.LessPreviousCertificates,
			}
			derived := ComputeRetainage(application.WorkCompletedThisPeriod, application.StoredMaterials, application.RetainagePercent, carry)
			application.WorkCompletedToDate = derived.WorkCompletedToDate
			application.TotalCompletedAndStored = derived.TotalCompletedAndStored
			application.RetainageThisPeriod = derived.RetainageThisPeriod
			application.TotalRetainage = derived.TotalRetainage
			application.TotalEarnedLessRetainage = derived.TotalEarnedLessRetainage
			application.CurrentPaymentDue = derived.CurrentPaymentDue
		}

		if input.CurrentStatus != nil {
			if err := ValidateTransition(oldApplication.CurrentStatus, *input.CurrentStatus); err != nil {
				return err
			}
			application.CurrentStatus = *input.CurrentStatus
		}

		userId, _ := utils.GetUserIdFromContext(ctx)
		StampStatusDates(&application, userId)

		wasPaid := oldApplication.CurrentStatus == models.PaymentApplicationStatusPaid
		isPaid := application.CurrentStatus == models.PaymentApplicationStatusPaid

		subcontractChanged := false
		if isPaid && !wasPaid {
			ApplyPaid(&subcontract, &application)
			subcontractChanged = true
		} else if isPaid && wasPaid {
			approvedChanged := input.ApprovedAmount != nil &&
				(!oldApplication.ApprovedAmount.Valid || !oldApplication.ApprovedAmount.Decimal.Equal(*input.ApprovedAmount))
			if figuresChanged || approvedChanged {
				ReconcileDelta(&subcontract, &application, oldApplication.CurrentPaymentDue, oldApplication.ApprovedAmount)
				subcontractChanged = true
			}
		}

		result := tx.Model(&models.PaymentApplication{}).
			Where("id = ? AND revision = ?", application.ID, oldApplication.Revision).
			Updates(map[string]interface{}{
				"period_start":                application.PeriodStart,
				"period_end":                  application.PeriodEnd,
				"work_completed_this_period":  application.WorkCompletedThisPeriod,
				"work_completed_to_date":      application.WorkCompletedToDate,
				"stored_materials":            application.StoredMaterials,
				"total_completed_and_stored":  application.TotalCompletedAndStored,
				"retainage_this_period":       application.RetainageThisPeriod,
				"total_retainage":             application.TotalRetainage,
				"total_earned_less_retainage": application.TotalEarnedLessRetainage,
				"current_payment_due":         application.CurrentPaymentDue,
				"current_status":              application.CurrentStatus,
				"approved_amount":             application.ApprovedAmount,
				"approved_by":                 application.ApprovedBy,
				"submitted_date":              application.SubmittedDate,
				"reviewed_date":               application.ReviewedDate,
				"approved_date":               application.ApprovedDate,
				"paid_date":                   application.PaidDate,
				"invoice_number":              application.InvoiceNumber,
				"check_number":                application.CheckNumber,
				"notes":                       application.Notes,
				"revision":                    oldApplication.Revision + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.NewCodedError(utils.ErrCodeConflict, "payment application was modified by someone else, please refresh")
		}
		application.Revision = oldApplication.Revision + 1

		if subcontractChanged {
			result := tx.Model(&models.Subcontract{}).
				Where("id = ? AND revision = ?", subcontract.ID, oldSubcontractRevision).
				Updates(map[string]interface{}{
					"billed_to_date": subcontract.BilledToDate,
					"paid_to_date":   subcontract.PaidToDate,
					"retainage_held": subcontract.RetainageHeld,
					"revision":       oldSubcontractRevision + 1,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return utils.NewCodedError(utils.ErrCodeConflict, "subcontract was modified by someone else, please refresh")
			}
		}

		description := fmt.Sprintf("Payment application %d updated.", application.ApplicationNumber)
		if err := models.CreateHistory(tx, "Update", application.ID, "payment_applications", oldApplication, application, description); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		config.LogError(ctx, logger, "paymentApplicationWorkflow.go", "UpdatePaymentApplication", "Transaction", input, err)
		return nil, err
	}
	return &application, nil
}
