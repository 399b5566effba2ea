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

type Project struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id" binding:"required"`
	ProjectNumber string          `gorm:"size:50;not null" json:"project_number" binding:"required"`
	Name          string          `gorm:"size:255;not null" json:"name" binding:"required"`
	ClientName    string          `gorm:"size:255" json:"client_name"`
	Address       string          `gorm:"type:text" json:"address"`
	ContractValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"contract_value"`
	StartDate     *time.Time      `json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

type NewProject struct {
	ProjectNumber string          `json:"project_number" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	ClientName    string          `json:"client_name"`
	Address       string          `json:"address"`
	ContractValue decimal.Decimal `json:"contract_value"`
	StartDate     *time.Time      `json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
}

func (p Project) GetId() int { return p.ID }

func (p Project) GetCursor() string { return p.CreatedAt.String() }

// validate input for both create & update. (id = 0 for create)
func (input *NewProject) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Project](ctx, businessId, "project_number", input.ProjectNumber, id); err != nil {
		return utils.NewCodedError(utils.ErrCodeValidation, "duplicate project number")
	}
	return nil
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	project := Project{
		BusinessId:    businessId,
		ProjectNumber: input.ProjectNumber,
		Name:          input.Name,
		ClientName:    input.ClientName,
		Address:       input.Address,
		ContractValue: input.ContractValue,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func UpdateProject(ctx context.Context, id int, input *NewProject) (*Project, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	project, err := utils.FetchModel[Project](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeNotFound, "project not found")
	}

	project.ProjectNumber = input.ProjectNumber
	project.Name = input.Name
	project.ClientName = input.ClientName
	project.Address = input.Address
	project.ContractValue = input.ContractValue
	project.StartDate = input.StartDate
	project.EndDate = input.EndDate

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func DeleteProject(ctx context.Context, id int) (*Project, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	project, err := utils.FetchModel[Project](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeNotFound, "project not found")
	}

	// Do not delete a project while it still owns subcontracts.
	var count int64
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Subcontract{}).
		Where("project_id = ?", project.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewCodedError(utils.ErrCodeValidation, "project is used by subcontracts")
	}

	if err := db.WithContext(ctx).Delete(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	project, err := utils.FetchModel[Project](ctx, businessId, id)
	if err != nil {
		return nil, utils.NewCodedError(utils.ErrCodeNotFound, "project not found")
	}
	return project, nil
}

func GetProjects(ctx context.Context, name *string) ([]*Project, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Project
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("project_number").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
