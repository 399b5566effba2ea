package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/construct_backend/config"
	"github.com/mmdatafocus/construct_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChangeOrder modifies a subcontract's value. Amount is signed; deductive
// change orders carry a negative amount. Only Approved orders count toward
// the subcontract's CurrentValue.
type ChangeOrder struct {
	ID                int               `gorm:"primary_key" json:"id"`
	BusinessId        string            `gorm:"index;not null" json:"business_id" binding:"required"`
	SubcontractId     int               `gorm:"index;not null" json:"subcontract_id" binding:"required"`
	ChangeOrderNumber string            `gorm:"size:50;not null" json:"change_order_number" binding:"required"`
	Description       string            `gorm:"type:text" json:"description"`
	Amount            decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CurrentStatus     ChangeOrderStatus `gorm:"size:20;not null;default:Pending" json:"current_status"`
	RequestedDate     *time.Time        `json:"requested_date"`
	ApprovedDate      *time.Time        `json:"approved_date"`
	ApprovedBy        int               `gorm:"default:0" json:"approved_by"`
	Revision          int               `gorm:"not null;default:0" json:"revision"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt    `gorm:"index" json:"-"`
}

type NewChangeOrder struct {
	SubcontractId     int               `json:"subcontract_id" binding:"required"`
	ChangeOrderNumber string            `json:"change_order_number" binding:"required"`
	Description       string            `json:"description"`
	Amount            decimal.Decimal   `json:"amount"`
	CurrentStatus     ChangeOrderStatus `json:"current_status"`
	RequestedDate     *time.Time        `json:"requested_date"`
	Revision          int               `json:"revision"`
}

func (co ChangeOrder) GetId() int { return co.ID }

func (co ChangeOrder) GetCursor() string { return co.CreatedAt.String() }

// validate input for both create & update. (id = 0 for create)
func (input *NewChangeOrder) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateResourceId[Subcontract](ctx, businessId, input.SubcontractId); err != nil {
		return utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
	}
	// change order number is unique within its subcontract
	var count int64
	var err error
	if id == 0 {
		count, err = utils.ResourceCountWhere[ChangeOrder](ctx, businessId,
			"subcontract_id = ? AND change_order_number = ?", input.SubcontractId, input.ChangeOrderNumber)
	} else {
		count, err = utils.ResourceCountWhere[ChangeOrder](ctx, businessId,
			"subcontract_id = ? AND change_order_number = ? AND NOT id = ?", input.SubcontractId, input.ChangeOrderNumber, id)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewCodedError(utils.ErrCodeDuplicateCoNumber, "duplicate change order number")
	}
	if input.CurrentStatus != "" && !input.CurrentStatus.IsValid() {
		return utils.NewCodedError(utils.ErrCodeValidation, "invalid change order status")
	}
	return nil
}

func CreateChangeOrder(ctx context.Context, input *NewChangeOrder) (*ChangeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	if err := utils.BusinessLock(ctx, businessId, "changeOrderLock", "changeOrder.go", "CreateChangeOrder"); err != nil {
		return nil, err
	}

	status := input.CurrentStatus
	if status == "" {
		status = ChangeOrderStatusPending
	}

	changeOrder := ChangeOrder{
		BusinessId:        businessId,
		SubcontractId:     input.SubcontractId,
		ChangeOrderNumber: input.ChangeOrderNumber,
		Description:       input.Description,
		Amount:            input.Amount,
		CurrentStatus:     status,
		RequestedDate:     input.RequestedDate,
	}
	if status == ChangeOrderStatusApproved {
		now := time.Now().UTC()
		changeOrder.ApprovedDate = &now
		if userId, ok := utils.GetUserIdFromContext(ctx); ok {
			changeOrder.ApprovedBy = userId
		}
	}

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)

		// value recompute must not race another change order on the
		// same subcontract
		if err := AcquireSubcontractPostingLock(tx, businessId, changeOrder.SubcontractId); err != nil {
			return err
		}
		defer ReleaseSubcontractPostingLock(tx, businessId, changeOrder.SubcontractId)

		if err := tx.Create(&changeOrder).Error; err != nil {
			return err
		}
		if changeOrder.CurrentStatus == ChangeOrderStatusApproved {
			if err := recalculateCurrentValue(tx, ctx, changeOrder.SubcontractId); err != nil {
				return err
			}
		}
		return createHistory(tx, "Create", changeOrder.ID, "change_orders", nil, changeOrder, "Change order "+changeOrder.ChangeOrderNumber+" created.")
	})
	if err != nil {
		return nil, err
	}
	return &changeOrder, nil
}

func UpdateChangeOrder(ctx context.Context, id int, input *NewChangeOrder) (*ChangeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	if err := utils.BusinessLock(ctx, businessId, "changeOrderLock", "changeOrder.go", "UpdateChangeOrder"); err != nil {
		return nil, err
	}

	oldChangeOrder, err := utils.FetchModel[ChangeOrder](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeNotFound, "change order not found")
	}
	if input.Revision != oldChangeOrder.Revision {
		return nil, utils.NewCodedError(utils.ErrCodeConflict, "change order was modified by someone else, please refresh")
	}
	existing := *oldChangeOrder

	existing.ChangeOrderNumber = input.ChangeOrderNumber
	existing.Description = input.Description
	existing.Amount = input.Amount
	existing.RequestedDate = input.RequestedDate
	if input.CurrentStatus != "" {
		existing.CurrentStatus = input.CurrentStatus
	}
	// guarded stamp: first entry into Approved only
	if existing.CurrentStatus == ChangeOrderStatusApproved && existing.ApprovedDate == nil {
		now := time.Now().UTC()
		existing.ApprovedDate = &now
		if userId, ok := utils.GetUserIdFromContext(ctx); ok {
			existing.ApprovedBy = userId
		}
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)

		// value recompute must not race another change order on the
		// same subcontract
		if err := AcquireSubcontractPostingLock(tx, businessId, existing.SubcontractId); err != nil {
			return err
		}
		defer ReleaseSubcontractPostingLock(tx, businessId, existing.SubcontractId)

		result := tx.Model(&ChangeOrder{}).
			Where("id = ? AND revision = ?", id, oldChangeOrder.Revision).
			Updates(map[string]interface{}{
				"change_order_number": existing.ChangeOrderNumber,
				"description":         existing.Description,
				"amount":              existing.Amount,
				"current_status":      existing.CurrentStatus,
				"requested_date":      existing.RequestedDate,
				"approved_date":       existing.ApprovedDate,
				"approved_by":         existing.ApprovedBy,
				"revision":            oldChangeOrder.Revision + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.NewCodedError(utils.ErrCodeConflict, "change order was modified by someone else, please refresh")
		}
		existing.Revision = oldChangeOrder.Revision + 1

		// Any status or amount movement can shift the approved sum; recompute
		// from the record of truth rather than patching deltas.
		statusChanged := existing.CurrentStatus != oldChangeOrder.CurrentStatus
		amountChanged := !existing.Amount.Equal(oldChangeOrder.Amount)
		if statusChanged || (amountChanged && existing.CurrentStatus == ChangeOrderStatusApproved) {
			if err := recalculateCurrentValue(tx, ctx, existing.SubcontractId); err != nil {
				return err
			}
		}

		return createHistory(tx, "Update", existing.ID, "change_orders", oldChangeOrder, existing, "Change order "+existing.ChangeOrderNumber+" updated.")
	})
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func GetChangeOrder(ctx context.Context, id int) (*ChangeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	changeOrder, err := utils.FetchModel[ChangeOrder](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeNotFound, "change order not found")
	}
	return changeOrder, nil
}

func GetChangeOrders(ctx context.Context, subcontractId int) ([]*ChangeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*ChangeOrder
	err := db.WithContext(ctx).
		Where("business_id = ? AND subcontract_id = ?", businessId, subcontractId).
		Order("change_order_number").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
