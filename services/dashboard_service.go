package services

import (
	"context"
	"time"

	"clinic-crm-backend/models"
	"clinic-crm-backend/utils"

	"gorm.io/gorm"
)

type DashboardOverview struct {
	OpenLeads            int64                `json:"openLeads"`
	LeadsByStatus        []StatusCount        `json:"leadsByStatus"`
	ActiveCustomers      int64                `json:"activeCustomers"`
	TodayAppointments    []AppointmentSummary `json:"todayAppointments"`
	UpcomingAppointments []AppointmentSummary `json:"upcomingAppointments"`
	RecentConversions    []ConversionSummary  `json:"recentConversions"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type AppointmentSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Status     string `json:"status"`
	Date       string `json:"date"` // e.g. "Today", "Tomorrow", "3 days"
	Time       string `json:"time"`
}

type ConversionSummary struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	When       string `json:"when"`
}

type DashboardService struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, Now: time.Now}
}

func (s *DashboardService) Overview(ctx context.Context, sess SessionContext) (*DashboardOverview, error) {
	db := s.db.WithContext(ctx)
	loc := sess.location()
	now := s.Now().In(loc)
	overview := &DashboardOverview{}

	err := sess.Scope(db.Model(&models.Lead{})).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("count DESC").
		Scan(&overview.LeadsByStatus).Error
	if err != nil {
		return nil, ClassifyDBError("count leads by status", err)
	}
	for _, sc := range overview.LeadsByStatus {
		if models.LeadStatus(sc.Status).IsOpen() {
			overview.OpenLeads += sc.Count
		}
	}

	if err := sess.Scope(db.Model(&models.Customer{})).Count(&overview.ActiveCustomers).Error; err != nil {
		return nil, ClassifyDBError("count customers", err)
	}

	todayStart, todayEnd := utils.DayRange(now, loc)
	today, err := s.appointments(sess, db, todayStart, todayEnd, 20)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.appointments(sess, db, todayEnd, todayEnd.AddDate(0, 0, 7), 10)
	if err != nil {
		return nil, err
	}
	overview.TodayAppointments = summarize(today, now, loc)
	overview.UpcomingAppointments = summarize(upcoming, now, loc)

	var converted []models.Customer
	err = sess.Scope(db.Model(&models.Customer{})).
		Where("lead_id IS NOT NULL").
		Order("created_at DESC").
		Limit(5).
		Find(&converted).Error
	if err != nil {
		return nil, ClassifyDBError("recent conversions", err)
	}
	overview.RecentConversions = make([]ConversionSummary, 0, len(converted))
	for _, c := range converted {
		overview.RecentConversions = append(overview.RecentConversions, ConversionSummary{
			Name:       c.ContactFullName,
			Department: c.Department,
			When:       utils.RelativeDay(c.CreatedAt.In(loc), now),
		})
	}
	return overview, nil
}

func (s *DashboardService) appointments(sess SessionContext, db *gorm.DB, from, to time.Time, limit int) ([]models.Appointment, error) {
	var out []models.Appointment
	err := sess.Scope(db.Model(&models.Appointment{})).
		Where("appointment_date >= ? AND appointment_date < ?", from.UTC(), to.UTC()).
		Order("appointment_date ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, ClassifyDBError("list appointments", err)
	}
	return out, nil
}

func summarize(appts []models.Appointment, now time.Time, loc *time.Location) []AppointmentSummary {
	out := make([]AppointmentSummary, 0, len(appts))
	for _, a := range appts {
		at := a.AppointmentDate.In(loc)
		out = append(out, AppointmentSummary{
			ID:         a.ID.String(),
			Name:       a.ContactFullName,
			Department: a.Department,
			Status:     string(a.Status),
			Date:       utils.RelativeDay(at, now),
			Time:       at.Format("15:04"),
		})
	}
	return out
}
