package services

import (
	"testing"
	"time"

	"clinic-crm-backend/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestDiffContact(t *testing.T) {
	birthday := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	before := &models.Contact{FullName: "Mona", PhoneNumber: "+971501110000", Source: "Ads"}
	after := &models.Contact{FullName: "Mona A.", PhoneNumber: "+971501110000", Source: "Ads", Birthday: &birthday}

	want := []FieldChange{
		{Field: "fullName", From: "Mona", To: "Mona A."},
		{Field: "birthday", From: "", To: "1990-05-01"},
	}
	if diff := cmp.Diff(want, DiffContact(before, after)); diff != "" {
		t.Errorf("DiffContact mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, DiffContact(before, before))
}

func TestDiffTicket(t *testing.T) {
	before := &models.Ticket{Status: "Open", Priority: "Low"}
	after := &models.Ticket{Status: "Resolved", Priority: "Low", AssignedTo: "Omar"}

	want := []FieldChange{
		{Field: "status", From: "Open", To: "Resolved"},
		{Field: "assignedTo", From: "", To: "Omar"},
	}
	if diff := cmp.Diff(want, DiffTicket(before, after)); diff != "" {
		t.Errorf("DiffTicket mismatch (-want +got):\n%s", diff)
	}
}

func TestPrependHistory(t *testing.T) {
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := []models.HistoryEntry{{Field: "status", From: "Fresh", To: "Hot", User: "a", Date: old}}
	snapshot := append([]models.HistoryEntry(nil), existing...)

	got := PrependHistory(existing, []FieldChange{{Field: "status", From: "Hot", To: "Lost"}}, "b", testNow)

	want := []models.HistoryEntry{
		{Field: "status", From: "Hot", To: "Lost", User: "b", Date: testNow},
		{Field: "status", From: "Fresh", To: "Hot", User: "a", Date: old},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PrependHistory mismatch (-want +got):\n%s", diff)
	}
	// Existing entries are never rewritten.
	if diff := cmp.Diff(snapshot, existing); diff != "" {
		t.Errorf("existing history was modified:\n%s", diff)
	}

	assert.Equal(t, existing, PrependHistory(existing, nil, "b", testNow))
}

func TestCloneSlice(t *testing.T) {
	src := []models.Note{{ID: "1", Text: "a"}}
	out := cloneSlice(src)
	out[0].Text = "changed"
	assert.Equal(t, "a", src[0].Text)

	assert.NotNil(t, cloneSlice[models.Note](nil))
	assert.Empty(t, cloneSlice[models.Note](nil))
}
