package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-crm-backend/models"
	"clinic-crm-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type RegisterInput struct {
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Password      string `json:"password" validate:"required,min=8"`
	ClinicName    string `json:"clinicName" validate:"required"`
	ClinicAddress string `json:"clinicAddress"`
	Timezone      string `json:"timezone" validate:"omitempty,timezone"`
}

type AgentInput struct {
	Email     string      `json:"email" validate:"required,email"`
	Phone     string      `json:"phone"`
	Name      string      `json:"name" validate:"required"`
	Password  string      `json:"password" validate:"required,min=8"`
	Role      string      `json:"role" validate:"omitempty,oneof=admin agent"`
	BranchIDs []uuid.UUID `json:"branchIds"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	db     *gorm.DB
	secret string
	expiry time.Duration
	logger *zap.Logger
	Now    func() time.Time
}

func NewAuthService(db *gorm.DB, secret string, expiry time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{db: db, secret: secret, expiry: expiry, logger: logger, Now: time.Now}
}

// Register creates a clinic branch, its admin user and the default message
// templates.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ? OR phone = ?", email, input.Phone).Count(&count).Error; err != nil {
			return ClassifyDBError("check user", err)
		}
		if count > 0 {
			return &DuplicateRecordError{Entity: "user", Phone: input.Phone}
		}

		branch := models.Branch{
			Name:                  input.ClinicName,
			Address:               input.ClinicAddress,
			Timezone:              defaultString(input.Timezone, "UTC"),
			WhatsAppNotifications: true,
			EmailNotifications:    true,
			LeadStatuses:          []string{"Hot", "Warm", "Cold"},
		}
		if err := tx.Create(&branch).Error; err != nil {
			return ClassifyDBError("create branch", err)
		}
		if err := CreateDefaultTemplates(tx, branch.ID); err != nil {
			return err
		}

		user = models.User{
			Email:     email,
			Phone:     input.Phone,
			Name:      input.Name,
			Password:  input.Password,
			Role:      models.RoleAdmin,
			BranchIDs: []uuid.UUID{branch.ID},
			IsActive:  true,
		}
		return ClassifyDBError("create user", tx.Create(&user).Error)
	})
	if err != nil {
		return nil, err
	}

	token, err := s.token(&user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Clinic registered", zap.String("user_id", user.ID.String()))
	return &AuthResult{Token: token, User: &user}, nil
}

// Login accepts an email or phone number as identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("(email = ? OR phone = ?) AND is_active = ?", strings.ToLower(identifier), identifier, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, ClassifyDBError("load user", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.token(&user)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", &now).Error; err != nil {
		s.logger.Warn("Failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	user.LastLogin = &now
	return &AuthResult{Token: token, User: &user}, nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, ClassifyDBError("load user", err)
	}
	return &user, nil
}

// CreateUser adds a user to the caller's branches. Only admins may do this.
func (s *AuthService) CreateUser(ctx context.Context, sess SessionContext, input AgentInput) (*models.User, error) {
	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	branches := input.BranchIDs
	if len(branches) == 0 {
		branches = sess.BranchScope
	}
	for _, id := range branches {
		if !sess.CanAccess(id) {
			return nil, ErrForbidden
		}
	}

	user := models.User{
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:     input.Phone,
		Name:      input.Name,
		Password:  input.Password,
		Role:      defaultString(input.Role, models.RoleAgent),
		BranchIDs: branches,
		IsActive:  true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, ClassifyDBError("create user", err)
	}
	return &user, nil
}

// Refresh issues a new token for an active user, picking up any change to
// their role or branches.
func (s *AuthService) Refresh(ctx context.Context, userID uuid.UUID) (*AuthResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ? AND is_active = ?", userID, true).Error; err != nil {
		return nil, ClassifyDBError("load user", err)
	}
	token, err := s.token(&user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: &user}, nil
}

func (s *AuthService) token(user *models.User) (string, error) {
	branches := make([]string, len(user.BranchIDs))
	for i, id := range user.BranchIDs {
		branches[i] = id.String()
	}
	return utils.GenerateToken(s.secret, s.expiry, user.ID.String(), user.Name, user.Role, branches)
}
