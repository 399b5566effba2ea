package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/construct_backend/config"
	"github.com/mmdatafocus/construct_backend/utils"
	"github.com/shopspring/decimal"
)

type Business struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	Country     string    `gorm:"size:100" json:"country"`
	City        string    `gorm:"size:100" json:"city"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	TaxId       string    `gorm:"size:100" json:"tax_id"`
	// Applied to new subcontracts when the input leaves retainage blank.
	DefaultRetainagePercent decimal.Decimal `gorm:"type:decimal(5,2);default:10" json:"default_retainage_percent"`
	IsActive                *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt               time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name                    string          `json:"name" binding:"required"`
	ContactName             string          `json:"contact_name"`
	Email                   string          `json:"email"`
	Phone                   string          `json:"phone"`
	Address                 string          `json:"address"`
	Country                 string          `json:"country"`
	City                    string          `json:"city"`
	Timezone                string          `json:"timezone"`
	TaxId                   string          `json:"tax_id"`
	DefaultRetainagePercent decimal.Decimal `json:"default_retainage_percent"`
}

func (input *NewBusiness) validate(ctx context.Context) error {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	// only admin have access
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
		return nil, errors.New("admin access required")
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	retainage := input.DefaultRetainagePercent
	if retainage.IsZero() {
		retainage = decimal.NewFromInt(10)
	}

	business := Business{
		ID:                      uuid.New(),
		Name:                    input.Name,
		ContactName:             input.ContactName,
		Email:                   input.Email,
		Phone:                   input.Phone,
		Address:                 input.Address,
		Country:                 input.Country,
		City:                    input.City,
		Timezone:                input.Timezone,
		TaxId:                   input.TaxId,
		DefaultRetainagePercent: retainage,
		IsActive:                utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

// UpdateBusiness edits tenant settings. The cached copy is dropped so the
// next read reflects the new defaults.
func UpdateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
		return nil, errors.New("admin access required")
	}
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	retainage := input.DefaultRetainagePercent
	if retainage.IsZero() {
		retainage = business.DefaultRetainagePercent
	}
	if err := db.WithContext(ctx).Model(&Business{}).Where("id = ?", businessId).
		Updates(map[string]interface{}{
			"name":                      input.Name,
			"contact_name":              input.ContactName,
			"email":                     input.Email,
			"phone":                     input.Phone,
			"address":                   input.Address,
			"country":                   input.Country,
			"city":                      input.City,
			"timezone":                  input.Timezone,
			"tax_id":                    input.TaxId,
			"default_retainage_percent": retainage,
		}).Error; err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey("Business:" + businessId); err != nil {
		return nil, err
	}
	return GetBusinessById(ctx, businessId)
}

func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	// businesses list is small and stable, cache by id
	cacheKey := "Business:" + businessId
	var business Business
	exists, err := config.GetRedisObject(cacheKey, &business)
	if err != nil {
		return nil, err
	}
	if exists {
		return &business, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := config.SetRedisObject(cacheKey, &business, 0); err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}
