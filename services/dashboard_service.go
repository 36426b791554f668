package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/shopspring/decimal"
)

const (
	dashboardServiceName = "DashboardService"
	closingSoonDays      = 2
)

// DashboardService joins users, listings and applications into per-user read models.
// It owns no state.
type DashboardService struct {
	users        store.UserStore
	ipos         store.IPOStore
	applications store.ApplicationStore
	utility      *UtilityService
	now          func() time.Time
}

func NewDashboardService(users store.UserStore, ipos store.IPOStore, applications store.ApplicationStore, utility *UtilityService) *DashboardService {
	if utility == nil {
		utility = NewUtilityService()
	}
	return &DashboardService{
		users:        users,
		ipos:         ipos,
		applications: applications,
		utility:      utility,
		now:          time.Now,
	}
}

func (s *DashboardService) Dashboard(ctx context.Context, userID int64) (*models.Dashboard, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(dashboardServiceName, "Dashboard", err, "User not found")
	}

	apps, err := s.applications.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(dashboardServiceName, "Dashboard", err, "")
	}

	byID, err := s.ipoIndex(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.DashboardApplication, 0, len(apps))
	for _, app := range apps {
		entries = append(entries, models.DashboardApplication{
			Application: app,
			IPODetails:  byID[app.IPOID].Summary(),
		})
	}

	return &models.Dashboard{
		User:         user.Profile(),
		Applications: entries,
		Stats:        ComputeStats(apps),
	}, nil
}

func (s *DashboardService) Stats(ctx context.Context, userID int64) (*models.Stats, error) {
	apps, err := s.applications.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(dashboardServiceName, "Stats", err, "")
	}
	return ComputeStats(apps), nil
}

// AppliedIPOs lists the user's applications with the full listing attached when it still exists
func (s *DashboardService) AppliedIPOs(ctx context.Context, userID int64) ([]models.AppliedIPO, error) {
	apps, err := s.applications.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(dashboardServiceName, "AppliedIPOs", err, "")
	}

	byID, err := s.ipoIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.AppliedIPO, 0, len(apps))
	for _, app := range apps {
		out = append(out, models.AppliedIPO{
			ApplicationID:     app.ID,
			ApplicationNumber: app.ApplicationNumber,
			IPOID:             app.IPOID,
			IPOName:           app.IPOName,
			Category:          app.Category,
			Quantity:          app.Quantity,
			BidPrice:          app.BidPrice,
			TotalAmount:       app.TotalAmount,
			Status:            app.Status,
			AllotmentStatus:   app.AllotmentStatus,
			SharesAllotted:    app.SharesAllotted,
			PaymentStatus:     app.PaymentStatus,
			AppliedAt:         app.AppliedAt,
			IPODetails:        byID[app.IPOID],
		})
	}
	return out, nil
}

// Notifications synthesizes the user's feed on every call; nothing here is stored.
func (s *DashboardService) Notifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	apps, err := s.applications.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(dashboardServiceName, "Notifications", err, "")
	}
	ipos, err := s.ipos.List(ctx)
	if err != nil {
		return nil, storeError(dashboardServiceName, "Notifications", err, "")
	}
	return BuildNotifications(apps, ipos, s.utility, s.now()), nil
}

// BuildNotifications derives the feed: a pending summary (id 1), one entry per allotted
// application (ids 2, 3, ...) and one per listing closing within two days (ids 100, 101, ...).
func BuildNotifications(apps []models.Application, ipos []models.IPO, utility *UtilityService, now time.Time) []models.Notification {
	stamp := now.UTC()
	notifications := []models.Notification{}

	pending := 0
	for _, app := range apps {
		if app.Status == models.StatusPending {
			pending++
		}
	}
	if pending > 0 {
		notifications = append(notifications, models.Notification{
			ID:        1,
			Type:      models.NotificationInfo,
			Title:     "Pending Applications",
			Message:   fmt.Sprintf("You have %d pending IPO application(s)", pending),
			Timestamp: stamp,
		})
	}

	allotted := 0
	for _, app := range apps {
		if !app.IsAllotted() {
			continue
		}
		notifications = append(notifications, models.Notification{
			ID:        allotted + 2,
			Type:      models.NotificationSuccess,
			Title:     "IPO Allotment",
			Message:   fmt.Sprintf("Congratulations! You've been allotted %d shares in %s", app.SharesAllotted, app.IPOName),
			Timestamp: stamp,
		})
		allotted++
	}

	closing := 0
	for _, ipo := range ipos {
		days, ok := utility.DaysUntil(ipo.CloseDate, now)
		if !ok || days < 0 || days > closingSoonDays {
			continue
		}
		notifications = append(notifications, models.Notification{
			ID:        closing + 100,
			Type:      models.NotificationWarning,
			Title:     "IPO Closing Soon",
			Message:   fmt.Sprintf("%s IPO is closing soon on %s", ipo.Name, utility.FormatDisplayDate(ipo.CloseDate)),
			Timestamp: stamp,
		})
		closing++
	}

	return notifications
}

// ComputeStats aggregates a user's applications. Money is summed in decimal.
func ComputeStats(apps []models.Application) *models.Stats {
	stats := &models.Stats{TotalApplications: len(apps)}
	invested := decimal.Zero
	withShares := 0

	for _, app := range apps {
		switch app.Status {
		case models.StatusPending:
			stats.PendingApplications++
		case models.StatusApproved:
			stats.ApprovedApplications++
		case models.StatusRejected:
			stats.RejectedApplications++
		}

		if app.AllotmentStatus != nil {
			switch *app.AllotmentStatus {
			case models.AllotmentFull:
				stats.AllottedFull++
				stats.AllottedApplications++
			case models.AllotmentPartial:
				stats.AllottedPartial++
				stats.AllottedApplications++
			case models.AllotmentNotAllotted:
				stats.NotAllotted++
			}
		}

		invested = invested.Add(decimal.NewFromFloat(app.TotalAmount))
		stats.TotalSharesApplied += app.Quantity
		stats.TotalSharesAllotted += app.SharesAllotted
		if app.SharesAllotted > 0 {
			withShares++
		}
	}

	stats.TotalInvested = invested.InexactFloat64()
	stats.SuccessRate = SuccessRate(withShares, len(apps))
	return stats
}

// SuccessRate is 100 × allotted / total rounded to two decimals, 0 for no applications.
func SuccessRate(allotted, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(allotted)).Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).Round(2).InexactFloat64()
}

func (s *DashboardService) ipoIndex(ctx context.Context) (map[int64]*models.IPO, error) {
	ipos, err := s.ipos.List(ctx)
	if err != nil {
		return nil, storeError(dashboardServiceName, "ListIPOs", err, "")
	}
	byID := make(map[int64]*models.IPO, len(ipos))
	for i := range ipos {
		byID[ipos[i].ID] = &ipos[i]
	}
	return byID, nil
}
