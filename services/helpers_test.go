package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/stretchr/testify/require"
)

// recordingNotifier captures every task instead of delivering it
type recordingNotifier struct {
	mu     sync.Mutex
	tasks  []*models.NotificationTask
	refuse bool
}

func (n *recordingNotifier) Notify(task *models.NotificationTask) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.refuse {
		return false
	}
	n.tasks = append(n.tasks, task)
	return true
}

func (n *recordingNotifier) Tasks() []*models.NotificationTask {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.NotificationTask(nil), n.tasks...)
}

type testEnv struct {
	stores       *store.Stores
	notifier     *recordingNotifier
	identity     *IdentityService
	tokens       *TokenIssuer
	catalog      *CatalogService
	applications *ApplicationService
	dashboard    *DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stores, err := store.NewMemoryStores("")
	require.NoError(t, err)

	utility := NewUtilityServiceIn(time.UTC)
	notifier := &recordingNotifier{}
	tokens := NewTokenIssuer("test-secret", time.Hour)

	env := &testEnv{
		stores:   stores,
		notifier: notifier,
		tokens:   tokens,
		identity: NewIdentityService(stores.Users, stores.Applications, NewPasswordHasher(4), tokens, nil).
			WithAdminEmails(func(email string) bool { return email == "admin@example.com" }),
		catalog:      NewCatalogService(stores.IPOs, NewMarketSimulator(1), utility, NewAuditLogger("CatalogService")),
		applications: NewApplicationService(stores.Applications, stores.Users, stores.IPOs, notifier, NewAuditLogger("ApplicationService"), nil),
		dashboard:    NewDashboardService(stores.Users, stores.IPOs, stores.Applications, utility),
	}
	return env
}

func (e *testEnv) register(t *testing.T, name, email string) *models.UserProfile {
	t.Helper()
	session, err := e.identity.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    email,
		Password: "secret123",
		PANCard:  "ABCDE1234F",
	})
	require.NoError(t, err)
	return session.User
}

func (e *testEnv) createIPO(t *testing.T, name, openDate, closeDate string) *models.IPO {
	t.Helper()
	ipo, err := e.catalog.Create(context.Background(), 0, CreateIPOInput{
		Name:      name,
		OpenDate:  openDate,
		CloseDate: closeDate,
		PriceBand: "₹95-100",
		LotSize:   150,
		FaceValue: 10,
	})
	require.NoError(t, err)
	return ipo
}

func (e *testEnv) apply(t *testing.T, userID, ipoID int64) *models.Application {
	t.Helper()
	app, err := e.applications.Submit(context.Background(), userID, SubmitInput{
		IPOID:    ipoID,
		Category: models.CategoryRetail,
		BidPrice: 100,
		Quantity: 150,
	})
	require.NoError(t, err)
	return app
}
