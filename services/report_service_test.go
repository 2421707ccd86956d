package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCalculateGrowthPercentage(t *testing.T) {
	tests := []struct {
		current, previous, want float64
	}{
		{0, 0, 0},
		{5, 0, 100},
		{15, 10, 50},
		{5, 10, -50},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, calculateGrowthPercentage(tt.current, tt.previous), 0.001)
	}
}

func TestReportService_Summary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.newCustomer(t)
	noShow := env.newCustomer(t)
	_, err := env.reconciler.Reconcile(ctx, env.admin(), noShow.ID, noShow.Version)
	require.NoError(t, err)
	env.newLead(t)

	// Row timestamps come from the database clock, so report on the
	// current month.
	svc := NewReportService(env.db)
	summary, err := svc.Summary(ctx, env.admin(), env.branch.ID)
	require.NoError(t, err)

	assert.Equal(t, time.Now().UTC().Format("2006-01"), summary.Month)
	assert.EqualValues(t, 4, summary.NewLeads)
	assert.EqualValues(t, 2, summary.Conversions)
	assert.EqualValues(t, 1, summary.NoShows)
	assert.InDelta(t, 50.0, summary.ConversionRate, 0.001)
	assert.InDelta(t, 100.0, summary.ConversionGrowth, 0.001)

	funnel := map[string]int64{}
	for _, sc := range summary.Funnel {
		funnel[sc.Status] = sc.Count
	}
	assert.Equal(t, map[string]int64{"Converted": 2, "Re-follow": 1, "Fresh": 1}, funnel)

	require.NotEmpty(t, summary.TopLeadSources)
	assert.Equal(t, SourceSummary{Name: "Instagram", Count: 4}, summary.TopLeadSources[0])

	other, err := svc.Summary(ctx, agentSession(), env.branch.ID)
	require.NoError(t, err)
	assert.Zero(t, other.NewLeads)
}

func TestReportService_ExportLeads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.newCustomer(t)
	open := env.newLead(t)

	svc := NewReportService(env.db)
	buf, err := svc.ExportLeads(ctx, env.admin(), LeadFilter{BranchID: env.branch.ID})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Phone", "Status", "Lead Source", "Service of Interest", "Assigned Agent", "Date", "Note", "Created At"}, rows[0])

	statuses := []string{rows[1][2], rows[2][2]}
	assert.ElementsMatch(t, []string{"Fresh", "Converted"}, statuses)

	buf, err = svc.ExportLeads(ctx, env.admin(), LeadFilter{BranchID: env.branch.ID, OpenOnly: true})
	require.NoError(t, err)
	f2, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f2.Close()
	rows, err = f2.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, open.ContactPhoneNumber, rows[1][1])
	assert.Equal(t, "2025-03-10", rows[1][6])
}
