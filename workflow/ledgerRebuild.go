package workflow

import (
	"context"

	"github.com/mmdatafocus/construct_backend/models"
	"github.com/mmdatafocus/construct_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RebuildSubcontractLedger recomputes a subcontract's running totals from
// the record of truth: CurrentValue from approved change orders, and
// BilledToDate / PaidToDate / RetainageHeld by replaying every Paid
// application in sequence order. Operational repair tool for drift; the
// normal write path never needs it.
func RebuildSubcontractLedger(ctx context.Context, db *gorm.DB, businessId string, subcontractId int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)

		if err := models.AcquireSubcontractPostingLock(tx, businessId, subcontractId); err != nil {
			return err
		}
		defer models.ReleaseSubcontractPostingLock(tx, businessId, subcontractId)

		var subcontract models.Subcontract
		if err := tx.Where("business_id = ? AND id = ?", businessId, subcontractId).
			Take(&subcontract).Error; err != nil {
			return utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
		}

		if err := models.RecalculateCurrentValue(tx, ctx, subcontractId); err != nil {
			return err
		}

		var paid []*models.PaymentApplication
		if err := tx.Where("business_id = ? AND subcontract_id = ? AND current_status = ?",
			businessId, subcontractId, models.PaymentApplicationStatusPaid).
			Order("application_number").
			Find(&paid).Error; err != nil {
			return err
		}

		rebuilt := subcontract
		rebuilt.BilledToDate = decimal.Zero
		rebuilt.PaidToDate = decimal.Zero
		rebuilt.RetainageHeld = decimal.Zero
		for _, application := range paid {
			ApplyPaid(&rebuilt, application)
		}

		return tx.Model(&models.Subcontract{}).
			Where("id = ?", subcontractId).
			Updates(map[string]interface{}{
				"billed_to_date": rebuilt.BilledToDate,
				"paid_to_date":   rebuilt.PaidToDate,
				"retainage_held": rebuilt.RetainageHeld,
				"revision":       subcontract.Revision + 1,
			}).Error
	})
}
