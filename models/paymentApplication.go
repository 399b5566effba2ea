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

// PaymentApplication is one period's progress bill against a subcontract,
// laid out like an AIA G702 continuation line: work completed splits into
// a carried-forward previous column and a this-period column, retainage is
// withheld on the completed-and-stored total, and CurrentPaymentDue is what
// remains after prior certificates.
type PaymentApplication struct {
	ID                       int                      `gorm:"primary_key" json:"id"`
	BusinessId               string                   `gorm:"index;not null" json:"business_id" binding:"required"`
	SubcontractId            int                      `gorm:"uniqueIndex:subcontract_application_number_key;not null" json:"subcontract_id" binding:"required"`
	ApplicationNumber        int                      `gorm:"uniqueIndex:subcontract_application_number_key;not null" json:"application_number"`
	PeriodStart              *time.Time               `json:"period_start"`
	PeriodEnd                time.Time                `gorm:"not null" json:"period_end"`
	ScheduledValue           decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"scheduled_value"`
	WorkCompletedPrevious    decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"work_completed_previous"`
	WorkCompletedThisPeriod  decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"work_completed_this_period"`
	WorkCompletedToDate      decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"work_completed_to_date"`
	StoredMaterials          decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"stored_materials"`
	TotalCompletedAndStored  decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"total_completed_and_stored"`
	RetainagePercent         decimal.Decimal          `gorm:"type:decimal(5,2);default:0" json:"retainage_percent"`
	RetainageThisPeriod      decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"retainage_this_period"`
	RetainagePrevious        decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"retainage_previous"`
	TotalRetainage           decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"total_retainage"`
	TotalEarnedLessRetainage decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"total_earned_less_retainage"`
	LessPreviousCertificates decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"less_previous_certificates"`
	CurrentPaymentDue        decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"current_payment_due"`
	CurrentStatus            PaymentApplicationStatus `gorm:"size:20;not null;default:Draft" json:"current_status"`
	ApprovedAmount           decimal.NullDecimal      `gorm:"type:decimal(20,4)" json:"approved_amount"`
	ApprovedBy               int                      `gorm:"default:0" json:"approved_by"`
	SubmittedDate            *time.Time               `json:"submitted_date"`
	ReviewedDate             *time.Time               `json:"reviewed_date"`
	ApprovedDate             *time.Time               `json:"approved_date"`
	PaidDate                 *time.Time               `json:"paid_date"`
	InvoiceNumber            string                   `gorm:"size:100" json:"invoice_number"`
	CheckNumber              string                   `gorm:"size:100" json:"check_number"`
	Notes                    string                   `gorm:"type:text" json:"notes"`
	Revision                 int                      `gorm:"not null;default:0" json:"revision"`
	CreatedAt                time.Time                `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time                `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt                gorm.DeletedAt           `gorm:"index" json:"-"`
}

// NewPaymentApplication carries caller inputs only; the carry-forward and
// retainage columns are derived on the way in.
type NewPaymentApplication struct {
	SubcontractId           int             `json:"subcontract_id" binding:"required"`
	PeriodStart             *time.Time      `json:"period_start"`
	PeriodEnd               time.Time       `json:"period_end" binding:"required"`
	WorkCompletedThisPeriod decimal.Decimal `json:"work_completed_this_period"`
	StoredMaterials         decimal.Decimal `json:"stored_materials"`
	InvoiceNumber           string          `json:"invoice_number"`
	Notes                   string          `json:"notes"`
}

// UpdatePaymentApplicationInput covers both figure edits and status moves.
// Nil pointers leave the stored value untouched.
type UpdatePaymentApplicationInput struct {
	PeriodStart             *time.Time                `json:"period_start"`
	PeriodEnd               *time.Time                `json:"period_end"`
	WorkCompletedThisPeriod *decimal.Decimal          `json:"work_completed_this_period"`
	StoredMaterials         *decimal.Decimal          `json:"stored_materials"`
	CurrentStatus           *PaymentApplicationStatus `json:"current_status"`
	ApprovedAmount          *decimal.Decimal          `json:"approved_amount"`
	InvoiceNumber           *string                   `json:"invoice_number"`
	CheckNumber             *string                   `json:"check_number"`
	Notes                   *string                   `json:"notes"`
	Revision                int                       `json:"revision"`
}

func (pa PaymentApplication) GetId() int { return pa.ID }

func (pa PaymentApplication) GetCursor() string { return pa.CreatedAt.String() }

func GetPaymentApplication(ctx context.Context, id int) (*PaymentApplication, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	application, err := utils.FetchModel[PaymentApplication](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeNotFound, "payment application not found")
	}
	return application, nil
}

// GetPaymentApplications lists a subcontract's applications in sequence order.
func GetPaymentApplications(ctx context.Context, subcontractId int) ([]*PaymentApplication, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*PaymentApplication
	err := db.WithContext(ctx).
		Where("business_id = ? AND subcontract_id = ?", businessId, subcontractId).
		Order("application_number").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginatePaymentApplication(ctx context.Context, subcontractId *int, status *PaymentApplicationStatus, after *string, limit int) ([]Edge[PaymentApplication], *PageInfo, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}
	if limit <= 0 || limit > config.SearchLimit {
		limit = config.SearchLimit
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&PaymentApplication{}).Where("business_id = ?", businessId)
	if subcontractId != nil {
		query = query.Where("subcontract_id = ?", *subcontractId)
	}
	if status != nil {
		query = query.Where("current_status = ?", *status)
	}
	return FetchPageCompositeCursor[PaymentApplication](query, limit, after, "created_at", "<")
}
