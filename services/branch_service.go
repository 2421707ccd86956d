package services

import (
	"context"
	"strings"
	"time"

	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BranchInput struct {
	Name     string `json:"name" validate:"required"`
	Address  string `json:"address"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

type BranchSettingsInput struct {
	Name                  *string  `json:"name"`
	Address               *string  `json:"address"`
	Timezone              *string  `json:"timezone" validate:"omitempty,timezone"`
	WhatsAppNotifications *bool    `json:"whatsAppNotifications"`
	EmailNotifications    *bool    `json:"emailNotifications"`
	LeadStatuses          []string `json:"leadStatuses"`
}

type BranchService struct {
	db      *gorm.DB
	catalog *StatusCatalog
}

func NewBranchService(db *gorm.DB, catalog *StatusCatalog) *BranchService {
	return &BranchService{db: db, catalog: catalog}
}

func (s *BranchService) List(ctx context.Context, sess SessionContext) ([]models.Branch, error) {
	if len(sess.BranchScope) == 0 {
		return []models.Branch{}, nil
	}
	var branches []models.Branch
	if err := s.db.WithContext(ctx).Where("id IN ?", sess.BranchScope).Order("name").Find(&branches).Error; err != nil {
		return nil, ClassifyDBError("list branches", err)
	}
	return branches, nil
}

func (s *BranchService) Get(ctx context.Context, sess SessionContext, id uuid.UUID) (*models.Branch, error) {
	if !sess.CanAccess(id) {
		return nil, ErrNotFound
	}
	var branch models.Branch
	if err := s.db.WithContext(ctx).First(&branch, "id = ?", id).Error; err != nil {
		return nil, ClassifyDBError("get branch", err)
	}
	return &branch, nil
}

// Create adds a branch with the default message templates and gives the
// creating admin access to it. Admin only. The caller's token still carries
// the old scope until it is reissued.
func (s *BranchService) Create(ctx context.Context, sess SessionContext, input BranchInput) (*models.Branch, error) {
	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	branch := models.Branch{
		Name:                  input.Name,
		Address:               input.Address,
		Timezone:              defaultString(input.Timezone, "UTC"),
		WhatsAppNotifications: true,
		EmailNotifications:    true,
		LeadStatuses:          []string{},
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&branch).Error; err != nil {
			return ClassifyDBError("create branch", err)
		}
		var user models.User
		if err := tx.First(&user, "id = ?", sess.UserID).Error; err != nil {
			return ClassifyDBError("load user", err)
		}
		ids := append(append([]uuid.UUID{}, user.BranchIDs...), branch.ID)
		if err := tx.Model(&user).Select("BranchIDs").Updates(models.User{BranchIDs: ids}).Error; err != nil {
			return ClassifyDBError("update user branches", err)
		}
		return CreateDefaultTemplates(tx, branch.ID)
	})
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

// UpdateSettings changes the branch configuration. Custom lead statuses may
// not reuse a system status name.
func (s *BranchService) UpdateSettings(ctx context.Context, sess SessionContext, id uuid.UUID, input BranchSettingsInput) (*models.Branch, error) {
	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	branch, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		branch.Name = strings.TrimSpace(*input.Name)
	}
	if input.Address != nil {
		branch.Address = *input.Address
	}
	if input.Timezone != nil {
		if _, err := time.LoadLocation(*input.Timezone); err != nil {
			return nil, validationErr("timezone", "is not a known timezone")
		}
		branch.Timezone = *input.Timezone
	}
	if input.WhatsAppNotifications != nil {
		branch.WhatsAppNotifications = *input.WhatsAppNotifications
	}
	if input.EmailNotifications != nil {
		branch.EmailNotifications = *input.EmailNotifications
	}
	if input.LeadStatuses != nil {
		statuses, err := cleanCustomStatuses(input.LeadStatuses)
		if err != nil {
			return nil, err
		}
		branch.LeadStatuses = statuses
	}

	if err := s.db.WithContext(ctx).Save(branch).Error; err != nil {
		return nil, ClassifyDBError("update branch", err)
	}
	s.catalog.Invalidate(ctx, id)
	return branch, nil
}

func cleanCustomStatuses(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, raw := range in {
		st := strings.TrimSpace(raw)
		if st == "" || seen[st] {
			continue
		}
		if models.LeadStatus(st).IsSystem() {
			return nil, validationErr("leadStatuses", "%q is a system status", st)
		}
		seen[st] = true
		out = append(out, st)
	}
	return out, nil
}
