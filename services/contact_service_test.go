package services

import (
	"context"
	"testing"

	"clinic-crm-backend/models"
	"clinic-crm-backend/testutil"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactService_CreateNormalizesPhones(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	contact, err := env.contacts.Create(ctx, env.admin(), ContactInput{
		BranchID:             env.branch.ID,
		FullName:             "  " + gofakeit.Name() + " ",
		PhoneNumber:          "050 123 4567",
		SecondaryPhoneNumber: "+971 50 765 4321",
	})
	require.NoError(t, err)
	assert.Equal(t, "+971501234567", contact.PhoneNumber)
	assert.Equal(t, "+971507654321", contact.SecondaryPhoneNumber)
	assert.Equal(t, 1, contact.Version)

	var rows []models.ContactPhone
	require.NoError(t, env.db.Where("contact_id = ?", contact.ID).Find(&rows).Error)
	assert.Len(t, rows, 2)
}

func TestContactService_RejectsDuplicatePhones(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := env.admin()

	existing, err := env.contacts.Create(ctx, sess, ContactInput{
		BranchID:             env.branch.ID,
		FullName:             gofakeit.Name(),
		PhoneNumber:          "+971501110000",
		SecondaryPhoneNumber: "+971502220000",
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		primary   string
		secondary string
	}{
		{"same primary", "+971501110000", ""},
		{"primary matches secondary", "050 222 0000", ""},
		{"secondary matches primary", "+971503330000", "+971501110000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.contacts.Create(ctx, sess, ContactInput{
				BranchID:             env.branch.ID,
				FullName:             gofakeit.Name(),
				PhoneNumber:          tt.primary,
				SecondaryPhoneNumber: tt.secondary,
			})
			var dup *DuplicateRecordError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, existing.ID, dup.ID)
		})
	}

	var count int64
	env.db.Model(&models.Contact{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestContactService_SecondaryMustDiffer(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.contacts.Create(context.Background(), env.admin(), ContactInput{
		BranchID:             env.branch.ID,
		FullName:             gofakeit.Name(),
		PhoneNumber:          "+971501110000",
		SecondaryPhoneNumber: "0501110000",
	})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "secondaryPhoneNumber", valErr.Field)
}

func TestContactService_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input ContactInput
		field string
	}{
		{"missing name", ContactInput{BranchID: env.branch.ID, PhoneNumber: "+971501110000"}, "fullName"},
		{"missing phone", ContactInput{BranchID: env.branch.ID, FullName: "A"}, "phoneNumber"},
		{"bad phone", ContactInput{BranchID: env.branch.ID, FullName: "A", PhoneNumber: "12"}, "phoneNumber"},
		{"bad email", ContactInput{BranchID: env.branch.ID, FullName: "A", PhoneNumber: "+971501110000", Email: "nope"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.contacts.Create(ctx, env.admin(), tt.input)
			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.field, valErr.Field)
		})
	}
}

func TestContactService_UpdateRecordsHistoryAndPhones(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contact := testutil.CreateContact(t, env.db, env.branch.ID)

	name := "Layla Haddad"
	phone := "+971509998877"
	updated, err := env.contacts.Update(ctx, env.admin(), contact.ID, UpdateContactInput{
		FullName:    &name,
		PhoneNumber: &phone,
		Version:     contact.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	require.Len(t, updated.History, 2)
	assert.Equal(t, "fullName", updated.History[0].Field)
	assert.Equal(t, "Admin", updated.History[0].User)
	assert.Equal(t, testNow, updated.History[0].Date)

	// The old number is free again.
	var owner models.ContactPhone
	require.NoError(t, env.db.First(&owner, "phone = ?", phone).Error)
	assert.Equal(t, contact.ID, owner.ContactID)
	assert.Error(t, env.db.First(&models.ContactPhone{}, "phone = ?", contact.PhoneNumber).Error)

	_, err = env.contacts.Update(ctx, env.admin(), contact.ID, UpdateContactInput{FullName: &name, Version: contact.Version})
	var stale *StaleWriteError
	assert.ErrorAs(t, err, &stale)
}

func TestContactService_BranchScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	other := testutil.CreateBranch(t, env.db)
	contact := testutil.CreateContact(t, env.db, other.ID)

	agent := agentSession(env.branch.ID)
	_, err := env.contacts.Get(ctx, agent, contact.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.contacts.Create(ctx, agent, ContactInput{
		BranchID:    other.ID,
		FullName:    gofakeit.Name(),
		PhoneNumber: testutil.NextPhone(),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	// A single-branch agent may omit the branch.
	created, err := env.contacts.Create(ctx, agent, ContactInput{
		FullName:    gofakeit.Name(),
		PhoneNumber: testutil.NextPhone(),
	})
	require.NoError(t, err)
	assert.Equal(t, env.branch.ID, created.BranchID)

	list, total, err := env.contacts.List(ctx, agent, ContactFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestContactService_DeleteReleasesPhones(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contact := testutil.CreateContact(t, env.db, env.branch.ID)

	require.NoError(t, env.contacts.Delete(ctx, env.admin(), contact.ID))
	_, err := env.contacts.Get(ctx, env.admin(), contact.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.contacts.Create(ctx, env.admin(), ContactInput{
		BranchID:    env.branch.ID,
		FullName:    gofakeit.Name(),
		PhoneNumber: contact.PhoneNumber,
	})
	assert.NoError(t, err)

	assert.ErrorIs(t, env.contacts.Delete(ctx, env.admin(), uuid.New()), ErrNotFound)
}
