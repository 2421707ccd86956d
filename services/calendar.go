package services

import (
	"context"
	"time"

	"clinic-crm-backend/cache"
	"clinic-crm-backend/models"
)

const DefaultCalendarStream = "calendar:sync"

// RedisCalendarQueue hands appointments to the calendar worker by appending
// them to a redis stream.
type RedisCalendarQueue struct {
	client *cache.Client
	stream string
}

func NewRedisCalendarQueue(client *cache.Client, stream string) *RedisCalendarQueue {
	if stream == "" {
		stream = DefaultCalendarStream
	}
	return &RedisCalendarQueue{client: client, stream: stream}
}

func (q *RedisCalendarQueue) SyncAppointment(ctx context.Context, appt *models.Appointment) error {
	_, err := q.client.AddToStream(ctx, q.stream, map[string]any{
		"appointment_id":   appt.ID.String(),
		"customer_id":      appt.CustomerID.String(),
		"branch_id":        appt.BranchID.String(),
		"customer_name":    appt.ContactFullName,
		"phone":            appt.ContactPhoneNumber,
		"department":       appt.Department,
		"appointment_date": appt.AppointmentDate.UTC().Format(time.RFC3339),
		"status":           string(appt.Status),
	})
	return err
}
