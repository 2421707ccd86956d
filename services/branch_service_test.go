package services

import (
	"context"
	"testing"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"
	"clinic-crm-backend/testutil"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBranchService_CreateAndScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewBranchService(db, NewStatusCatalog(db, nil, metrics.New(), zap.NewNop()))
	ctx := context.Background()

	owner := &models.User{
		Email:    gofakeit.Email(),
		Name:     gofakeit.Name(),
		Password: "owner-pass-1",
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	require.NoError(t, db.Create(owner).Error)
	admin := adminSession()
	admin.UserID = owner.ID

	_, err := svc.Create(ctx, agentSession(), BranchInput{Name: "Marina"})
	assert.ErrorIs(t, err, ErrForbidden)

	marina, err := svc.Create(ctx, admin, BranchInput{Name: "Marina", Timezone: "Asia/Dubai"})
	require.NoError(t, err)
	jumeirah, err := svc.Create(ctx, admin, BranchInput{Name: "Jumeirah"})
	require.NoError(t, err)
	assert.Equal(t, "UTC", jumeirah.Timezone)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", owner.ID).Error)
	assert.Equal(t, []uuid.UUID{marina.ID, jumeirah.ID}, stored.BranchIDs)

	var templates int64
	require.NoError(t, db.Model(&models.MessageTemplate{}).Where("branch_id = ?", marina.ID).Count(&templates).Error)
	assert.EqualValues(t, 6, templates)

	all, err := svc.List(ctx, adminSession(stored.BranchIDs...))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Jumeirah", all[0].Name)

	none, err := svc.List(ctx, adminSession())
	require.NoError(t, err)
	assert.Empty(t, none)

	mine, err := svc.List(ctx, agentSession(marina.ID))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, marina.ID, mine[0].ID)

	_, err = svc.Get(ctx, agentSession(marina.ID), jumeirah.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, adminSession(marina.ID), jumeirah.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, adminSession(stored.BranchIDs...), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	// A session whose user no longer exists cannot create branches.
	_, err = svc.Create(ctx, adminSession(), BranchInput{Name: "Ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBranchService_UpdateSettings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client, _ := newTestCache(t)
	catalog := NewStatusCatalog(db, client, metrics.New(), zap.NewNop())
	svc := NewBranchService(db, catalog)
	ctx := context.Background()
	branch := testutil.CreateBranch(t, db, "Hot")

	statuses, err := catalog.LeadStatuses(ctx, branch.ID)
	require.NoError(t, err)
	assert.Contains(t, statuses, "Hot")

	updated, err := svc.UpdateSettings(ctx, adminSession(branch.ID), branch.ID, BranchSettingsInput{
		Timezone:              ptr("Asia/Dubai"),
		WhatsAppNotifications: ptr(false),
		LeadStatuses:          []string{" Warm ", "Cold", "Warm", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Warm", "Cold"}, updated.LeadStatuses)
	assert.False(t, updated.WhatsAppNotifications)
	assert.Equal(t, "Asia/Dubai", updated.Location().String())

	statuses, err = catalog.LeadStatuses(ctx, branch.ID)
	require.NoError(t, err)
	assert.NotContains(t, statuses, "Hot")
	assert.Contains(t, statuses, "Cold")

	_, err = svc.UpdateSettings(ctx, adminSession(branch.ID), branch.ID, BranchSettingsInput{LeadStatuses: []string{"Converted"}})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "leadStatuses", valErr.Field)

	_, err = svc.UpdateSettings(ctx, agentSession(branch.ID), branch.ID, BranchSettingsInput{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrForbidden)
}
