package workflow

import (
	"errors"

	"github.com/mmdatafocus/construct_backend/models"
	"github.com/mmdatafocus/construct_backend/utils"
	"gorm.io/gorm"
)

// NextApplicationBaseline assigns the next application number and the
// carry-forward baseline for a subcontract. Computed by query at each use,
// never cached, so concurrent writers can't hand out stale baselines.
// Side-effect-free; callers serialize with the posting lock and run it on
// the transaction that will persist the new application.
func NextApplicationBaseline(tx *gorm.DB, businessId string, subcontractId int) (int, CarryForward, error) {

	var carry CarryForward

	var count int64
	if err := tx.Model(&models.Subcontract{}).
		Where("business_id = ? AND id = ?", businessId, subcontractId).
		Count(&count).Error; err != nil {
		return 0, carry, err
	}
	if count == 0 {
		return 0, carry, utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
	}

	var prior models.PaymentApplication
	err := tx.Model(&models.PaymentApplication{}).
		Where("business_id = ? AND subcontract_id = ?", businessId, subcontractId).
		Order("application_number DESC").
		Take(&prior).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, carry, nil
		}
		return 0, carry, err
	}

	carry.WorkCompletedPrevious = prior.WorkCompletedToDate
	carry.RetainagePrevious = prior.TotalRetainage
	carry.LessPreviousCertificates = prior.TotalEarnedLessRetainage
	return prior.ApplicationNumber + 1, carry, nil
}
