package services

import (
	"time"

	"clinic-crm-backend/models"
)

// FieldChange is one tracked field whose value differs between two versions
// of a record.
type FieldChange struct {
	Field string
	From  string
	To    string
}

type trackedField[T any] struct {
	name string
	get  func(*T) string
}

func diff[T any](fields []trackedField[T], before, after *T) []FieldChange {
	var changes []FieldChange
	for _, f := range fields {
		from, to := f.get(before), f.get(after)
		if from != to {
			changes = append(changes, FieldChange{Field: f.name, From: from, To: to})
		}
	}
	return changes
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

var contactFields = []trackedField[models.Contact]{
	{"fullName", func(c *models.Contact) string { return c.FullName }},
	{"phoneNumber", func(c *models.Contact) string { return c.PhoneNumber }},
	{"secondaryPhoneNumber", func(c *models.Contact) string { return c.SecondaryPhoneNumber }},
	{"address", func(c *models.Contact) string { return c.Address }},
	{"source", func(c *models.Contact) string { return c.Source }},
	{"instagramUrl", func(c *models.Contact) string { return c.InstagramURL }},
	{"birthday", func(c *models.Contact) string { return formatDate(c.Birthday) }},
}

var leadFields = []trackedField[models.Lead]{
	{"status", func(l *models.Lead) string { return string(l.Status) }},
}

var customerFields = []trackedField[models.Customer]{
	{"status", func(c *models.Customer) string { return string(c.Status) }},
}

var ticketFields = []trackedField[models.Ticket]{
	{"status", func(t *models.Ticket) string { return t.Status }},
	{"priority", func(t *models.Ticket) string { return t.Priority }},
	{"assignedTo", func(t *models.Ticket) string { return t.AssignedTo }},
	{"department", func(t *models.Ticket) string { return t.Department }},
}

func DiffContact(before, after *models.Contact) []FieldChange {
	return diff(contactFields, before, after)
}

func DiffLead(before, after *models.Lead) []FieldChange {
	return diff(leadFields, before, after)
}

func DiffCustomer(before, after *models.Customer) []FieldChange {
	return diff(customerFields, before, after)
}

func DiffTicket(before, after *models.Ticket) []FieldChange {
	return diff(ticketFields, before, after)
}

// PrependHistory returns a new slice holding one entry per change followed
// by the existing entries. existing is never modified.
func PrependHistory(existing []models.HistoryEntry, changes []FieldChange, user string, at time.Time) []models.HistoryEntry {
	if len(changes) == 0 {
		return existing
	}
	out := make([]models.HistoryEntry, 0, len(changes)+len(existing))
	for _, ch := range changes {
		out = append(out, models.HistoryEntry{
			Field: ch.Field,
			From:  ch.From,
			To:    ch.To,
			User:  user,
			Date:  at,
		})
	}
	return append(out, existing...)
}
