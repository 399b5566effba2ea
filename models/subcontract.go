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

// Subcontract is the parent aggregate of the progress-billing ledger.
// BilledToDate / PaidToDate / RetainageHeld are running totals and are
// mutated only by the payment application workflow, never from input.
type Subcontract struct {
	ID                   int               `gorm:"primary_key" json:"id"`
	BusinessId           string            `gorm:"index;not null" json:"business_id" binding:"required"`
	ProjectId            int               `gorm:"index;not null" json:"project_id" binding:"required"`
	ContractNumber       string            `gorm:"size:50;not null" json:"contract_number" binding:"required"`
	SubcontractorName    string            `gorm:"size:255;not null" json:"subcontractor_name" binding:"required"`
	SubcontractorContact string            `gorm:"size:255" json:"subcontractor_contact"`
	SubcontractorPhone   string            `gorm:"size:20" json:"subcontractor_phone"`
	SubcontractorEmail   string            `gorm:"size:255" json:"subcontractor_email"`
	ScopeOfWork          string            `gorm:"type:text" json:"scope_of_work"`
	OriginalValue        decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"original_value"`
	CurrentValue         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"current_value"`
	RetainagePercent     decimal.Decimal   `gorm:"type:decimal(5,2);default:10" json:"retainage_percent"`
	BilledToDate         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"billed_to_date"`
	PaidToDate           decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"paid_to_date"`
	RetainageHeld        decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"retainage_held"`
	CurrentStatus        SubcontractStatus `gorm:"size:20;not null;default:Draft" json:"current_status"`
	StartDate            *time.Time        `json:"start_date"`
	EndDate              *time.Time        `json:"end_date"`
	// Optimistic concurrency marker; stale writers fail with CONFLICT.
	Revision  int            `gorm:"not null;default:0" json:"revision"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type NewSubcontract struct {
	ProjectId            int               `json:"project_id" binding:"required"`
	ContractNumber       string            `json:"contract_number" binding:"required"`
	SubcontractorName    string            `json:"subcontractor_name" binding:"required"`
	SubcontractorContact string            `json:"subcontractor_contact"`
	SubcontractorPhone   string            `json:"subcontractor_phone"`
	SubcontractorEmail   string            `json:"subcontractor_email"`
	ScopeOfWork          string            `json:"scope_of_work"`
	OriginalValue        decimal.Decimal   `json:"original_value"`
	RetainagePercent     decimal.Decimal   `json:"retainage_percent"`
	CurrentStatus        SubcontractStatus `json:"current_status"`
	StartDate            *time.Time        `json:"start_date"`
	EndDate              *time.Time        `json:"end_date"`
	Revision             int               `json:"revision"`
}

func (s Subcontract) GetId() int { return s.ID }

func (s Subcontract) GetCursor() string { return s.CreatedAt.String() }

// validate input for both create & update. (id = 0 for create)
func (input *NewSubcontract) validate(ctx context.Context, businessId string, id int) error {
	// exists project
	if err := utils.ValidateResourceId[Project](ctx, businessId, input.ProjectId); err != nil {
		return utils.NewCodedError(utils.ErrCodeNotFound, "project not found")
	}
	if err := utils.ValidateUnique[Subcontract](ctx, businessId, "contract_number", input.ContractNumber, id); err != nil {
		return utils.NewCodedError(utils.ErrCodeValidation, "duplicate contract number")
	}
	if input.SubcontractorPhone != "" {
		if err := utils.ValidatePhoneNumber(input.SubcontractorPhone, utils.CountryCode); err != nil {
			return utils.NewCodedError(utils.ErrCodeValidation, "invalid subcontractor phone number")
		}
	}
	if input.CurrentStatus != "" && !input.CurrentStatus.IsValid() {
		return utils.NewCodedError(utils.ErrCodeValidation, "invalid subcontract status")
	}
	if input.RetainagePercent.IsNegative() || input.RetainagePercent.GreaterThan(decimal.NewFromInt(100)) {
		return utils.NewCodedError(utils.ErrCodeValidation, "retainage percent must be between 0 and 100")
	}
	return nil
}

func CreateSubcontract(ctx context.Context, input *NewSubcontract) (*Subcontract, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	retainagePercent := input.RetainagePercent
	if retainagePercent.IsZero() {
		business, err := GetBusinessById(ctx, businessId)
		if err != nil {
			return nil, err
		}
		retainagePercent = business.DefaultRetainagePercent
	}

	status := input.CurrentStatus
	if status == "" {
		status = SubcontractStatusDraft
	}

	subcontract := Subcontract{
		BusinessId:           businessId,
		ProjectId:            input.ProjectId,
		ContractNumber:       input.ContractNumber,
		SubcontractorName:    input.SubcontractorName,
		SubcontractorContact: input.SubcontractorContact,
		SubcontractorPhone:   input.SubcontractorPhone,
		SubcontractorEmail:   input.SubcontractorEmail,
		ScopeOfWork:          input.ScopeOfWork,
		OriginalValue:        input.OriginalValue,
		// no change orders yet
		CurrentValue:     input.OriginalValue,
		RetainagePercent: retainagePercent,
		BilledToDate:     decimal.Zero,
		PaidToDate:       decimal.Zero,
		RetainageHeld:    decimal.Zero,
		CurrentStatus:    status,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&subcontract).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, "Create", subcontract.ID, "subcontracts", nil, subcontract, "Subcontract "+subcontract.ContractNumber+" created."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &subcontract, nil
}

func UpdateSubcontract(ctx context.Context, id int, input *NewSubcontract) (*Subcontract, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	oldSubcontract, err := utils.FetchModel[Subcontract](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
	}
	if input.Revision != oldSubcontract.Revision {
		return nil, utils.NewCodedError(utils.ErrCodeConflict, "subcontract was modified by someone else, please refresh")
	}
	existing := *oldSubcontract

	existing.ProjectId = input.ProjectId
	existing.ContractNumber = input.ContractNumber
	existing.SubcontractorName = input.SubcontractorName
	existing.SubcontractorContact = input.SubcontractorContact
	existing.SubcontractorPhone = input.SubcontractorPhone
	existing.SubcontractorEmail = input.SubcontractorEmail
	existing.ScopeOfWork = input.ScopeOfWork
	existing.OriginalValue = input.OriginalValue
	if input.RetainagePercent.IsPositive() {
		existing.RetainagePercent = input.RetainagePercent
	}
	if input.CurrentStatus != "" {
		existing.CurrentStatus = input.CurrentStatus
	}
	existing.StartDate = input.StartDate
	existing.EndDate = input.EndDate

	db := config.GetDB()
	tx := db.Begin()

	// Changing OriginalValue shifts CurrentValue by the same delta; the
	// approved change order sum stays untouched.
	result := tx.WithContext(ctx).Model(&Subcontract{}).
		Where("id = ? AND revision = ?", id, oldSubcontract.Revision).
		Updates(map[string]interface{}{
			"project_id":            existing.ProjectId,
			"contract_number":       existing.ContractNumber,
			"subcontractor_name":    existing.SubcontractorName,
			"subcontractor_contact": existing.SubcontractorContact,
			"subcontractor_phone":   existing.SubcontractorPhone,
			"subcontractor_email":   existing.SubcontractorEmail,
			"scope_of_work":         existing.ScopeOfWork,
			"original_value":        existing.OriginalValue,
			"retainage_percent":     existing.RetainagePercent,
			"current_status":        existing.CurrentStatus,
			"start_date":            existing.StartDate,
			"end_date":              existing.EndDate,
			"revision":              oldSubcontract.Revision + 1,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewCodedError(utils.ErrCodeConflict, "subcontract was modified by someone else, please refresh")
	}
	existing.Revision = oldSubcontract.Revision + 1

	if err := recalculateCurrentValue(tx, ctx, id); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx, "Update", existing.ID, "subcontracts", oldSubcontract, existing, "Subcontract "+existing.ContractNumber+" updated."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetSubcontract(ctx, id)
}

func DeleteSubcontract(ctx context.Context, id int) (*Subcontract, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	subcontract, err := utils.FetchModel[Subcontract](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
	}

	db := config.GetDB()
	// Do not delete once billing has started; the application chain is the audit trail.
	var count int64
	if err := db.WithContext(ctx).Model(&PaymentApplication{}).
		Where("subcontract_id = ?", subcontract.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewCodedError(utils.ErrCodeValidation, "subcontract has payment applications")
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(subcontract).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(tx, "Delete", subcontract.ID, "subcontracts", subcontract, nil, "Subcontract "+subcontract.ContractNumber+" deleted."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return subcontract, nil
}

func GetSubcontract(ctx context.Context, id int) (*Subcontract, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	subcontract, err := utils.FetchModel[Subcontract](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
	}
	return subcontract, nil
}

func GetSubcontracts(ctx context.Context, projectId *int, contractNumber *string) ([]*Subcontract, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Subcontract
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if projectId != nil && *projectId > 0 {
		dbCtx = dbCtx.Where("project_id = ?", *projectId)
	}
	if contractNumber != nil && len(*contractNumber) > 0 {
		dbCtx = dbCtx.Where("contract_number LIKE ?", "%"+*contractNumber+"%")
	}
	if err := dbCtx.Order("contract_number").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// recalculateCurrentValue re-derives CurrentValue from the change order
// record of truth: OriginalValue plus the sum over all currently-Approved
// change orders. Rejected/Withdrawn/Void orders never count, including ones
// that were Approved earlier; voiding an approved order shrinks the value.
func recalculateCurrentValue(tx *gorm.DB, ctx context.Context, subcontractId int) error {
	var subcontract Subcontract
	if err := tx.WithContext(ctx).First(&subcontract, subcontractId).Error; err != nil {
		return utils.NewCodedError(utils.ErrCodeSubcontractNotFound, "subcontract not found")
	}

	var approvedTotal decimal.NullDecimal
	if err := tx.WithContext(ctx).Model(&ChangeOrder{}).
		Where("subcontract_id = ? AND current_status = ?", subcontractId, ChangeOrderStatusApproved).
		Select("SUM(amount)").Scan(&approvedTotal).Error; err != nil {
		return err
	}

	currentValue := subcontract.OriginalValue
	if approvedTotal.Valid {
		currentValue = currentValue.Add(approvedTotal.Decimal)
	}

	return tx.WithContext(ctx).Model(&Subcontract{}).
		Where("id = ?", subcontractId).
		Update("current_value", currentValue).Error
}

// RecalculateCurrentValue is the exported entry used by operational tooling.
func RecalculateCurrentValue(tx *gorm.DB, ctx context.Context, subcontractId int) error {
	return recalculateCurrentValue(tx, ctx, subcontractId)
}
