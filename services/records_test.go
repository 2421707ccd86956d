package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"clinic-crm-backend/models"
	"clinic-crm-backend/storage"
	"clinic-crm-backend/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseRecordKind(t *testing.T) {
	for _, s := range []string{"contacts", "leads", "customers", "tickets"} {
		kind, err := ParseRecordKind(s)
		require.NoError(t, err)
		assert.Equal(t, RecordKind(s), kind)
	}
	_, err := ParseRecordKind("appointments")
	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestRecordService_NotesAreNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lead := env.newLead(t)

	rec, err := env.records.AddNote(ctx, env.admin(), RecordLead, lead.ID, "  first call  ", lead.Version)
	require.NoError(t, err)
	assert.Equal(t, lead.Version+1, rec.CurrentVersion())

	rec, err = env.records.AddNote(ctx, agentSession(env.branch.ID), RecordLead, lead.ID, "second call", rec.CurrentVersion())
	require.NoError(t, err)

	notes := *rec.NoteList()
	require.Len(t, notes, 2)
	assert.Equal(t, "second call", notes[0].Text)
	assert.Equal(t, "Agent Smith", notes[0].User)
	assert.Equal(t, "first call", notes[1].Text)
	assert.Equal(t, "Admin", notes[1].User)
	assert.True(t, testNow.Equal(notes[0].Date))

	stored, err := env.records.Load(ctx, env.admin(), RecordLead, lead.ID)
	require.NoError(t, err)
	assert.Len(t, *stored.NoteList(), 2)
}

func TestRecordService_CommentsAreAppended(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket, err := env.tickets.Create(ctx, env.admin(), TicketInput{
		BranchID:     env.branch.ID,
		CustomerName: "Omar",
		Subject:      "Billing question",
	})
	require.NoError(t, err)

	rec, err := env.records.AddComment(ctx, env.admin(), RecordTicket, ticket.ID, "one", ticket.Version)
	require.NoError(t, err)
	rec, err = env.records.AddComment(ctx, env.admin(), RecordTicket, ticket.ID, "two", rec.CurrentVersion())
	require.NoError(t, err)

	comments := *rec.CommentList()
	require.Len(t, comments, 2)
	assert.Equal(t, "one", comments[0].Text)
	assert.Equal(t, "two", comments[1].Text)
	assert.NotEqual(t, comments[0].ID, comments[1].ID)
}

func TestRecordService_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contact := testutil.CreateContact(t, env.db, env.branch.ID)

	t.Run("blank text", func(t *testing.T) {
		_, err := env.records.AddNote(ctx, env.admin(), RecordContact, contact.ID, "   ", contact.Version)
		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "text", valErr.Field)
	})

	t.Run("stale version", func(t *testing.T) {
		_, err := env.records.AddNote(ctx, env.admin(), RecordContact, contact.ID, "ok", contact.Version)
		require.NoError(t, err)
		_, err = env.records.AddComment(ctx, env.admin(), RecordContact, contact.ID, "late", contact.Version)
		var stale *StaleWriteError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, "contact", stale.Entity)
	})

	t.Run("other branch", func(t *testing.T) {
		_, err := env.records.AddNote(ctx, agentSession(uuid.New()), RecordContact, contact.ID, "hidden", 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := env.records.AddNote(ctx, env.admin(), RecordCustomer, uuid.New(), "x", 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

type failingStore struct{ storage.Store }

func (failingStore) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestAttachmentService_UploadAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewAttachmentService(env.records, store, zap.NewNop())
	svc.Now = testutil.FixedClock(testNow)
	customer := env.newCustomer(t)

	body := []byte("%PDF-1.4 consent form")
	att, err := svc.Upload(ctx, env.admin(), RecordCustomer, customer.ID, UploadInput{
		Name:        "consent.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
		Version:     customer.Version,
	})
	require.NoError(t, err)
	assert.True(t, store.Has(att.URL))
	assert.True(t, strings.HasPrefix(att.URL, storage.MemoryBaseURL+"/attachments/customers/"+customer.ID.String()+"/"), att.URL)
	assert.Equal(t, "Admin", att.UploadedBy)

	var stored models.Customer
	require.NoError(t, env.db.First(&stored, "id = ?", customer.ID).Error)
	require.Len(t, stored.Attachments, 1)
	assert.Equal(t, att.ID, stored.Attachments[0].ID)

	require.NoError(t, svc.Delete(ctx, env.admin(), RecordCustomer, customer.ID, att.ID, stored.Version))
	assert.False(t, store.Has(att.URL))

	require.NoError(t, env.db.First(&stored, "id = ?", customer.ID).Error)
	assert.Empty(t, stored.Attachments)

	err = svc.Delete(ctx, env.admin(), RecordCustomer, customer.ID, att.ID, stored.Version)
	assert.ErrorIs(t, err, ErrNotFound)
}

func uploadText(t *testing.T, svc *AttachmentService, sess SessionContext, kind RecordKind, id uuid.UUID, version int) *models.Attachment {
	t.Helper()
	att, err := svc.Upload(context.Background(), sess, kind, id, UploadInput{
		Name:        "referral.txt",
		ContentType: "text/plain",
		Size:        8,
		Body:        strings.NewReader("referral"),
		Version:     version,
	})
	require.NoError(t, err)
	return att
}

func TestAttachmentService_KeepsObjectSharedWithConvertedLead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewAttachmentService(env.records, store, zap.NewNop())
	lead := env.newLead(t)
	att := uploadText(t, svc, env.admin(), RecordLead, lead.ID, lead.Version)

	res, err := env.conversions.Convert(ctx, env.admin(), lead.ID, AppointmentDetails{
		Department: "Dental",
		VisitDate:  testNow.Add(48 * time.Hour),
	}, lead.Version+1)
	require.NoError(t, err)
	customer, err := env.customers.Get(ctx, env.admin(), res.CustomerID)
	require.NoError(t, err)
	require.Len(t, customer.Attachments, 1)

	require.NoError(t, svc.Delete(ctx, env.admin(), RecordCustomer, customer.ID, att.ID, customer.Version))
	assert.True(t, store.Has(att.URL))

	converted, err := env.records.Load(ctx, env.admin(), RecordLead, lead.ID)
	require.NoError(t, err)
	require.Len(t, *converted.AttachmentList(), 1)

	require.NoError(t, svc.Delete(ctx, env.admin(), RecordLead, lead.ID, att.ID, converted.CurrentVersion()))
	assert.False(t, store.Has(att.URL))
}

func TestAttachmentService_KeepsObjectOfArchivedCustomer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewAttachmentService(env.records, store, zap.NewNop())
	customer := env.newCustomer(t)
	att := uploadText(t, svc, env.admin(), RecordCustomer, customer.ID, customer.Version)

	res, err := env.reconciler.Reconcile(ctx, env.admin(), customer.ID, customer.Version+1)
	require.NoError(t, err)
	refollow, err := env.records.Load(ctx, env.admin(), RecordLead, res.LeadID)
	require.NoError(t, err)
	require.Len(t, *refollow.AttachmentList(), 1)

	require.NoError(t, svc.Delete(ctx, env.admin(), RecordLead, res.LeadID, att.ID, refollow.CurrentVersion()))
	assert.True(t, store.Has(att.URL))

	var archived models.Customer
	require.NoError(t, env.db.Unscoped().First(&archived, "id = ?", customer.ID).Error)
	require.Len(t, archived.Attachments, 1)
	assert.Equal(t, att.URL, archived.Attachments[0].URL)
}

func TestAttachmentService_RemovesOrphanOnStaleWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewAttachmentService(env.records, store, zap.NewNop())
	lead := env.newLead(t)

	_, err := svc.Upload(ctx, env.admin(), RecordLead, lead.ID, UploadInput{
		Name:    "scan.png",
		Size:    3,
		Body:    strings.NewReader("png"),
		Version: lead.Version + 5,
	})
	var stale *StaleWriteError
	require.ErrorAs(t, err, &stale)

	assert.Zero(t, store.Len())
}

func TestAttachmentService_UploadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lead := env.newLead(t)

	svc := NewAttachmentService(env.records, storage.NewMemoryStore(), zap.NewNop())
	_, err := svc.Upload(ctx, env.admin(), RecordLead, lead.ID, UploadInput{Name: " ", Body: strings.NewReader("")})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	_, err = svc.Upload(ctx, env.admin(), RecordLead, lead.ID, UploadInput{Name: "big.mov", Size: MaxAttachmentSize + 1, Body: strings.NewReader("")})
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be at most 20 MB", valErr.Message)

	broken := NewAttachmentService(env.records, failingStore{}, zap.NewNop())
	_, err = broken.Upload(ctx, env.admin(), RecordLead, lead.ID, UploadInput{Name: "a.txt", Size: 1, Body: strings.NewReader("a"), Version: lead.Version})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PersistUnavailable, perr.Kind)
}
