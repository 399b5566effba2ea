package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireSubcontractPostingLock serializes number assignment and ledger
// writes per subcontract across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the posting transaction.
func AcquireSubcontractPostingLock(tx *gorm.DB, businessId string, subcontractId int) error {
	lockName := fmt.Sprintf("subcontract:%s:%d", businessId, subcontractId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for subcontract_id=%d", subcontractId)
	}
	return nil
}

func ReleaseSubcontractPostingLock(tx *gorm.DB, businessId string, subcontractId int) {
	lockName := fmt.Sprintf("subcontract:%s:%d", businessId, subcontractId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
