package services

import (
	"context"
	"strings"

	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ServiceInput struct {
	BranchID    uuid.UUID `json:"branchId"`
	Name        string    `json:"name" validate:"required"`
	Department  string    `json:"department" validate:"required"`
	Description string    `json:"description"`
	Duration    int       `json:"duration" validate:"min=0"`
}

type UpdateServiceInput struct {
	Name        *string `json:"name"`
	Department  *string `json:"department"`
	Description *string `json:"description"`
	Duration    *int    `json:"duration" validate:"omitempty,min=0"`
	IsActive    *bool   `json:"isActive"`
}

// CatalogService manages the bookable clinic services of each branch.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) Create(ctx context.Context, sess SessionContext, input ServiceInput) (*models.Service, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	branchID, err := sess.ResolveBranch(input.BranchID)
	if err != nil {
		return nil, err
	}
	service := models.Service{
		BranchID:    branchID,
		Name:        strings.TrimSpace(input.Name),
		Department:  strings.TrimSpace(input.Department),
		Description: input.Description,
		Duration:    input.Duration,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, ClassifyDBError("create service", err)
	}
	return &service, nil
}

func (s *CatalogService) List(ctx context.Context, sess SessionContext, branchID uuid.UUID, activeOnly bool) ([]models.Service, error) {
	q := sess.Scope(s.db.WithContext(ctx))
	if branchID != uuid.Nil {
		q = q.Where("branch_id = ?", branchID)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var services []models.Service
	if err := q.Order("department, name").Find(&services).Error; err != nil {
		return nil, ClassifyDBError("list services", err)
	}
	return services, nil
}

func (s *CatalogService) Get(ctx context.Context, sess SessionContext, id uuid.UUID) (*models.Service, error) {
	var service models.Service
	if err := sess.Scope(s.db.WithContext(ctx)).First(&service, "id = ?", id).Error; err != nil {
		return nil, ClassifyDBError("get service", err)
	}
	return &service, nil
}

func (s *CatalogService) Update(ctx context.Context, sess SessionContext, id uuid.UUID, input UpdateServiceInput) (*models.Service, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	service, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Department != nil {
		updates["department"] = strings.TrimSpace(*input.Department)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Duration != nil {
		updates["duration"] = *input.Duration
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return service, nil
	}
	if err := s.db.WithContext(ctx).Model(service).Updates(updates).Error; err != nil {
		return nil, ClassifyDBError("update service", err)
	}
	return s.Get(ctx, sess, id)
}

func (s *CatalogService) Delete(ctx context.Context, sess SessionContext, id uuid.UUID) error {
	res := sess.Scope(s.db.WithContext(ctx)).Where("id = ?", id).Delete(&models.Service{})
	if res.Error != nil {
		return ClassifyDBError("delete service", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
