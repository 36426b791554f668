package services

import (
	"context"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allotment(status models.AllotmentStatus) *models.AllotmentStatus {
	return &status
}

func TestComputeStats(t *testing.T) {
	apps := []models.Application{
		{Status: models.StatusPending, Quantity: 100, TotalAmount: 10000.10},
		{Status: models.StatusApproved, Quantity: 50, TotalAmount: 5000.20},
		{Status: models.StatusRejected, Quantity: 10, TotalAmount: 1000},
		{Status: models.StatusAllotted, AllotmentStatus: allotment(models.AllotmentFull), Quantity: 20, SharesAllotted: 20, TotalAmount: 2000},
		{Status: models.StatusAllotted, AllotmentStatus: allotment(models.AllotmentPartial), Quantity: 30, SharesAllotted: 10, TotalAmount: 3000},
		{Status: models.StatusAllotted, AllotmentStatus: allotment(models.AllotmentNotAllotted), Quantity: 40, TotalAmount: 4000},
	}

	stats := ComputeStats(apps)

	assert.Equal(t, 6, stats.TotalApplications)
	assert.Equal(t, 1, stats.PendingApplications)
	assert.Equal(t, 1, stats.ApprovedApplications)
	assert.Equal(t, 1, stats.RejectedApplications)
	assert.Equal(t, 2, stats.AllottedApplications)
	assert.Equal(t, 1, stats.AllottedFull)
	assert.Equal(t, 1, stats.AllottedPartial)
	assert.Equal(t, 1, stats.NotAllotted)
	assert.Equal(t, 25000.30, stats.TotalInvested)
	assert.Equal(t, 250, stats.TotalSharesApplied)
	assert.Equal(t, 30, stats.TotalSharesAllotted)
	assert.Equal(t, 33.33, stats.SuccessRate)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Zero(t, stats.TotalApplications)
	assert.Zero(t, stats.SuccessRate)
	assert.Zero(t, stats.TotalInvested)
}

func TestSuccessRateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("success rate stays within 0 and 100", prop.ForAll(
		func(total, allotted int) bool {
			if allotted > total {
				allotted = total
			}
			rate := SuccessRate(allotted, total)
			return rate >= 0 && rate <= 100
		},
		gen.IntRange(1, 10_000),
		gen.IntRange(0, 10_000),
	))

	properties.Property("every application allotted gives 100", prop.ForAll(
		func(total int) bool {
			return SuccessRate(total, total) == 100
		},
		gen.IntRange(1, 10_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestBuildNotifications(t *testing.T) {
	utility := NewUtilityServiceIn(time.UTC)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	apps := []models.Application{
		{Status: models.StatusPending, IPOName: "Acme"},
		{Status: models.StatusAllotted, AllotmentStatus: allotment(models.AllotmentFull), SharesAllotted: 20, IPOName: "Bolt"},
		{Status: models.StatusPending, IPOName: "Core"},
	}
	ipos := []models.IPO{
		{Name: "Later", CloseDate: "2026-03-15"},
		{Name: "Tomorrow", CloseDate: "2026-03-11"},
		{Name: "Today", CloseDate: "2026-03-10"},
		{Name: "Closed", CloseDate: "2026-03-09"},
		{Name: "Broken", CloseDate: "soon"},
	}

	notifications := BuildNotifications(apps, ipos, utility, now)
	require.Len(t, notifications, 4)

	assert.Equal(t, 1, notifications[0].ID)
	assert.Equal(t, models.NotificationInfo, notifications[0].Type)
	assert.Equal(t, "You have 2 pending IPO application(s)", notifications[0].Message)

	assert.Equal(t, 2, notifications[1].ID)
	assert.Equal(t, models.NotificationSuccess, notifications[1].Type)
	assert.Equal(t, "Congratulations! You've been allotted 20 shares in Bolt", notifications[1].Message)

	assert.Equal(t, 100, notifications[2].ID)
	assert.Equal(t, "Tomorrow IPO is closing soon on 11/3/2026", notifications[2].Message)
	assert.Equal(t, 101, notifications[3].ID)
	assert.Equal(t, models.NotificationWarning, notifications[3].Type)
}

func TestBuildNotificationsNumbersFilteredEntries(t *testing.T) {
	utility := NewUtilityServiceIn(time.UTC)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	apps := []models.Application{
		{Status: models.StatusPending, IPOName: "Acme"},
		{Status: models.StatusPending, IPOName: "Bolt"},
		{Status: models.StatusAllotted, AllotmentStatus: allotment(models.AllotmentPartial), SharesAllotted: 10, IPOName: "Core"},
		{Status: models.StatusAllotted, AllotmentStatus: allotment(models.AllotmentFull), SharesAllotted: 30, IPOName: "Dyna"},
	}
	ipos := []models.IPO{
		{Name: "Far", CloseDate: "2026-04-20"},
		{Name: "Farther", CloseDate: "2026-05-20"},
		{Name: "Tomorrow", CloseDate: "2026-03-11"},
	}

	notifications := BuildNotifications(apps, ipos, utility, now)
	ids := make([]int, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 100}, ids)
}

func TestBuildNotificationsEmpty(t *testing.T) {
	notifications := BuildNotifications(nil, nil, NewUtilityServiceIn(time.UTC), time.Now())
	assert.NotNil(t, notifications)
	assert.Empty(t, notifications)
}

func TestDashboardJoinsListings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "Asha", "asha@example.com")
	ipo := env.createIPO(t, "Acme Tech", "2026-03-10", "2026-03-12")
	env.apply(t, user.ID, ipo.ID)

	dashboard, err := env.dashboard.Dashboard(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", dashboard.User.Email)
	require.Len(t, dashboard.Applications, 1)
	require.NotNil(t, dashboard.Applications[0].IPODetails)
	assert.Equal(t, "Acme Tech", dashboard.Applications[0].IPODetails.Name)
	assert.Equal(t, 1, dashboard.Stats.PendingApplications)

	applied, err := env.dashboard.AppliedIPOs(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.NotNil(t, applied[0].IPODetails)
	assert.Equal(t, ipo.ID, applied[0].IPODetails.ID)

	_, err = env.catalog.Delete(ctx, 0, ipo.ID)
	require.NoError(t, err)

	applied, err = env.dashboard.AppliedIPOs(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, applied[0].IPODetails, "deleted listings leave the snapshot only")
	assert.Equal(t, "Acme Tech", applied[0].IPOName)
}

func TestDashboardUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.dashboard.Dashboard(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, 404, shared.HTTPStatus(err))
}
