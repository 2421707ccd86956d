package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportSummary is the lead funnel and conversion analytics for a month.
type ReportSummary struct {
	Month            string          `json:"month"`
	Funnel           []StatusCount   `json:"funnel"`
	NewLeads         int64           `json:"newLeads"`
	Conversions      int64           `json:"conversions"`
	ConversionGrowth float64         `json:"conversionGrowth"`
	NoShows          int64           `json:"noShows"`
	NoShowGrowth     float64         `json:"noShowGrowth"`
	ConversionRate   float64         `json:"conversionRate"`
	TopLeadSources   []SourceSummary `json:"topLeadSources"`
	TopDepartments   []SourceSummary `json:"topDepartments"`
}

type SourceSummary struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type ReportService struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db, Now: time.Now}
}

func (s *ReportService) Summary(ctx context.Context, sess SessionContext, branchID uuid.UUID) (*ReportSummary, error) {
	db := s.db.WithContext(ctx)
	scoped := func(q *gorm.DB) *gorm.DB {
		q = sess.Scope(q)
		if branchID != uuid.Nil {
			q = q.Where("branch_id = ?", branchID)
		}
		return q
	}

	now := s.Now().In(sess.location())
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := firstOfMonth.AddDate(0, 1, 0)
	lastMonth := firstOfMonth.AddDate(0, -1, 0)

	summary := &ReportSummary{Month: firstOfMonth.Format("2006-01")}

	if err := scoped(db.Model(&models.Lead{})).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("count DESC").
		Scan(&summary.Funnel).Error; err != nil {
		return nil, ClassifyDBError("lead funnel", err)
	}

	if err := scoped(db.Model(&models.Lead{})).
		Where("created_at >= ? AND created_at < ?", firstOfMonth, nextMonth).
		Count(&summary.NewLeads).Error; err != nil {
		return nil, ClassifyDBError("count new leads", err)
	}

	conversions := func(from, to time.Time) (int64, error) {
		var n int64
		err := scoped(db.Unscoped().Model(&models.Customer{})).
			Where("lead_id IS NOT NULL AND created_at >= ? AND created_at < ?", from, to).
			Count(&n).Error
		return n, err
	}
	noShows := func(from, to time.Time) (int64, error) {
		var n int64
		err := scoped(db.Unscoped().Model(&models.Customer{})).
			Where("status = ? AND deleted_at >= ? AND deleted_at < ?", models.CustomerNoShow, from, to).
			Count(&n).Error
		return n, err
	}

	var err error
	var previous int64
	if summary.Conversions, err = conversions(firstOfMonth, nextMonth); err != nil {
		return nil, ClassifyDBError("count conversions", err)
	}
	if previous, err = conversions(lastMonth, firstOfMonth); err != nil {
		return nil, ClassifyDBError("count conversions", err)
	}
	summary.ConversionGrowth = calculateGrowthPercentage(float64(summary.Conversions), float64(previous))

	if summary.NoShows, err = noShows(firstOfMonth, nextMonth); err != nil {
		return nil, ClassifyDBError("count no-shows", err)
	}
	if previous, err = noShows(lastMonth, firstOfMonth); err != nil {
		return nil, ClassifyDBError("count no-shows", err)
	}
	summary.NoShowGrowth = calculateGrowthPercentage(float64(summary.NoShows), float64(previous))

	if summary.NewLeads > 0 {
		summary.ConversionRate = float64(summary.Conversions) / float64(summary.NewLeads) * 100
	}

	if err := scoped(db.Model(&models.Lead{})).
		Select("lead_source AS name, COUNT(*) AS count").
		Where("lead_source <> ''").
		Group("lead_source").
		Order("count DESC").
		Limit(5).
		Scan(&summary.TopLeadSources).Error; err != nil {
		return nil, ClassifyDBError("top lead sources", err)
	}
	if err := scoped(db.Model(&models.Appointment{})).
		Select("department AS name, COUNT(*) AS count").
		Where("appointment_date >= ? AND appointment_date < ?", firstOfMonth, nextMonth).
		Group("department").
		Order("count DESC").
		Limit(5).
		Scan(&summary.TopDepartments).Error; err != nil {
		return nil, ClassifyDBError("top departments", err)
	}
	return summary, nil
}

func calculateGrowthPercentage(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return ((current - previous) / previous) * 100
}

var leadExportHeader = []any{
	"Name", "Phone", "Status", "Lead Source", "Service of Interest",
	"Assigned Agent", "Date", "Note", "Created At",
}

// ExportLeads renders the leads matching filter as an XLSX workbook.
func (s *ReportService) ExportLeads(ctx context.Context, sess SessionContext, filter LeadFilter) (*bytes.Buffer, error) {
	q := sess.Scope(s.db.WithContext(ctx).Model(&models.Lead{}))
	if filter.BranchID != uuid.Nil {
		q = q.Where("branch_id = ?", filter.BranchID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OpenOnly {
		q = q.Where("status NOT IN ?", closedLeadStatuses())
	}
	if filter.AssignedAgent != "" {
		q = q.Where("assigned_agent = ?", filter.AssignedAgent)
	}
	var leads []models.Lead
	if err := q.Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, ClassifyDBError("export leads", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leads"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &leadExportHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "I1", bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", "I", 20); err != nil {
		return nil, err
	}

	loc := sess.location()
	for i, l := range leads {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			l.ContactFullName,
			l.ContactPhoneNumber,
			string(l.Status),
			l.LeadSource,
			l.ServiceOfInterest,
			l.AssignedAgent,
			l.Date.In(loc).Format("2006-01-02"),
			l.Note,
			l.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f.WriteToBuffer()
}
