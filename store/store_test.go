package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-tracker/database"
	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storesFactory func(t *testing.T) *Stores

func newTestUser(email string) *models.User {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.User{
		Name:         "Asha Verma",
		Email:        email,
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleUser,
		Phone:        "9876543210",
		PANCard:      "ABCDE1234F",
		AppliedIPOs:  []models.AppliedIPORef{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newTestIPO(name string) *models.IPO {
	now := time.Now().UTC().Truncate(time.Second)
	listing := "2026-01-20"
	return &models.IPO{
		Name:         name,
		Type:         "mainboard",
		Category:     "General",
		LogoURL:      "assets/img/abc.png",
		Description:  "Test listing",
		OpenDate:     "2026-01-10",
		CloseDate:    "2026-01-14",
		ListingDate:  &listing,
		PriceBand:    "₹100-110",
		LotSize:      100,
		FaceValue:    10,
		IssueSize:    "N/A",
		FreshIssue:   "N/A",
		OfferForSale: "N/A",
		Exchange:     "NSE, BSE",
		CompanyInfo:  "Test listing",
		Subscription: &models.Subscription{},
		GMP:          &models.GMP{LastUpdated: now},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newTestApplication(number string, userID, ipoID int64) *models.Application {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Application{
		ApplicationNumber: number,
		UserID:            userID,
		IPOID:             ipoID,
		IPOName:           "Acme Tech",
		Category:          models.CategoryRetail,
		BidPrice:          100,
		Quantity:          100,
		TotalAmount:       10000,
		PANCard:           "ABCDE1234F",
		DPID:              "IN300000",
		ClientID:          "12345678",
		UPIID:             "asha@upi",
		BankAccount:       "001122334455",
		Status:            models.StatusPending,
		PaymentStatus:     models.PaymentPending,
		AppliedAt:         now,
		UpdatedAt:         now,
	}
}

// runStoreContract exercises behaviour every backend must share.
func runStoreContract(t *testing.T, factory storesFactory) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		s := factory(t)

		u := newTestUser("asha@example.com")
		require.NoError(t, s.Users.Create(ctx, u))
		assert.NotZero(t, u.ID)

		err := s.Users.Create(ctx, newTestUser("asha@example.com"))
		assert.True(t, errors.Is(err, ErrDuplicateEmail), "got %v", err)

		byEmail, err := s.Users.GetByEmail(ctx, "asha@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		// email lookup is exact
		_, err = s.Users.GetByEmail(ctx, "ASHA@example.com")
		assert.True(t, errors.Is(err, ErrNotFound))

		upi := "asha@okbank"
		updated, err := s.Users.Update(ctx, u.ID, func(u *models.User) error {
			u.UPIID = &upi
			u.BankAccount = &models.BankAccount{AccountNumber: "1", IFSCCode: "HDFC0001", BankName: "HDFC", AccountHolderName: "Asha"}
			u.AppliedIPOs = append(u.AppliedIPOs, models.AppliedIPORef{IPOID: 3, ApplicationNumber: "IPO1"})
			return nil
		})
		require.NoError(t, err)
		require.NotNil(t, updated.UPIID)
		assert.Equal(t, upi, *updated.UPIID)

		reloaded, err := s.Users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded.BankAccount)
		assert.Equal(t, "HDFC", reloaded.BankAccount.BankName)
		assert.Len(t, reloaded.AppliedIPOs, 1)
		assert.Nil(t, reloaded.DematAccount)

		// a failing mutation leaves the record untouched
		boom := errors.New("boom")
		_, err = s.Users.Update(ctx, u.ID, func(u *models.User) error {
			u.Name = "changed"
			return boom
		})
		assert.ErrorIs(t, err, boom)
		reloaded, err = s.Users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Asha Verma", reloaded.Name)

		other := newTestUser("ravi@example.com")
		require.NoError(t, s.Users.Create(ctx, other))
		_, err = s.Users.Update(ctx, other.ID, func(u *models.User) error {
			u.Email = "asha@example.com"
			return nil
		})
		assert.True(t, errors.Is(err, ErrDuplicateEmail), "got %v", err)

		all, err := s.Users.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, s.Users.Delete(ctx, other.ID))
		assert.True(t, errors.Is(s.Users.Delete(ctx, other.ID), ErrNotFound))
		_, err = s.Users.GetByID(ctx, other.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ipos", func(t *testing.T) {
		s := factory(t)

		first := newTestIPO("Acme Tech")
		second := newTestIPO("Bolt Motors")
		second.ListingDate = nil
		second.GMP = nil
		require.NoError(t, s.IPOs.Create(ctx, first))
		require.NoError(t, s.IPOs.Create(ctx, second))
		assert.Greater(t, second.ID, first.ID)

		list, err := s.IPOs.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Acme Tech", list[0].Name)
		assert.Nil(t, list[1].ListingDate)
		assert.Nil(t, list[1].GMP)
		require.NotNil(t, list[0].Subscription)

		updated, err := s.IPOs.Update(ctx, first.ID, func(i *models.IPO) error {
			i.Subscription = &models.Subscription{Retail: 2.5, Total: 3}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2.5, updated.Subscription.Retail)

		deleted, err := s.IPOs.Delete(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Tech", deleted.Name)
		_, err = s.IPOs.GetByID(ctx, first.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = s.IPOs.Delete(ctx, first.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("applications", func(t *testing.T) {
		s := factory(t)

		app := newTestApplication("IPO1700000000000001", 7, 3)
		require.NoError(t, s.Applications.Create(ctx, app))
		assert.NotZero(t, app.ID)

		err := s.Applications.Create(ctx, newTestApplication("IPO1700000000000002", 7, 3))
		assert.True(t, errors.Is(err, ErrDuplicateApplication), "got %v", err)

		err = s.Applications.Create(ctx, newTestApplication("IPO1700000000000001", 8, 3))
		assert.True(t, errors.Is(err, ErrDuplicateApplicationNumber), "got %v", err)

		require.NoError(t, s.Applications.Create(ctx, newTestApplication("IPO1700000000000003", 7, 4)))
		require.NoError(t, s.Applications.Create(ctx, newTestApplication("IPO1700000000000004", 9, 3)))

		mine, err := s.Applications.ListByUser(ctx, 7)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "IPO1700000000000001", mine[0].ApplicationNumber)

		byNumber, err := s.Applications.GetByNumber(ctx, "IPO1700000000000001")
		require.NoError(t, err)
		assert.Equal(t, app.ID, byNumber.ID)
		assert.Nil(t, byNumber.AllotmentStatus)

		full := models.AllotmentFull
		updated, err := s.Applications.Update(ctx, app.ID, func(a *models.Application) error {
			a.Status = models.StatusAllotted
			a.AllotmentStatus = &full
			a.SharesAllotted = 100
			a.TotalAmount = 1
			a.UserID = 99
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusAllotted, updated.Status)
		assert.Equal(t, 10000.0, updated.TotalAmount)
		assert.Equal(t, int64(7), updated.UserID)

		reloaded, err := s.Applications.GetByID(ctx, app.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded.AllotmentStatus)
		assert.Equal(t, models.AllotmentFull, *reloaded.AllotmentStatus)

		n, err := s.Applications.AnonymizeUser(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		mine, err = s.Applications.ListByUser(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, mine)

		scrubbed, err := s.Applications.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Zero(t, scrubbed.UserID)
		assert.Empty(t, scrubbed.PANCard)
		assert.Empty(t, scrubbed.UPIID)
		assert.Equal(t, "IPO1700000000000001", scrubbed.ApplicationNumber)

		// anonymized rows no longer block the pair
		require.NoError(t, s.Applications.Create(ctx, newTestApplication("IPO1700000000000005", 7, 3)))

		_, err = s.Applications.GetByNumber(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestMemoryStores(t *testing.T) {
	runStoreContract(t, func(t *testing.T) *Stores {
		s, err := NewMemoryStores("")
		require.NoError(t, err)
		return s
	})
}

func TestFileBackedStores(t *testing.T) {
	runStoreContract(t, func(t *testing.T) *Stores {
		s, err := NewMemoryStores(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestFileBackedStoresSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewMemoryStores(dir)
	require.NoError(t, err)
	u := newTestUser("asha@example.com")
	require.NoError(t, s.Users.Create(ctx, u))
	require.NoError(t, s.IPOs.Create(ctx, newTestIPO("Acme Tech")))

	_, err = os.Stat(filepath.Join(dir, "users.json"))
	require.NoError(t, err)

	reopened, err := NewMemoryStores(dir)
	require.NoError(t, err)

	got, err := reopened.Users.GetByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// ids continue after the persisted high-water mark
	next := newTestUser("ravi@example.com")
	require.NoError(t, reopened.Users.Create(ctx, next))
	assert.Equal(t, u.ID+1, next.ID)
}

func TestFileBackedStoreRollsBackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	users, err := NewMemoryUserStore(filepath.Join(dir, "missing", "users.json"))
	require.NoError(t, err)

	u := newTestUser("asha@example.com")
	assert.Error(t, users.Create(ctx, u))
	assert.Zero(t, u.ID)

	list, err := users.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStores("")
	require.NoError(t, err)

	ipo := newTestIPO("Acme Tech")
	require.NoError(t, s.IPOs.Create(ctx, ipo))

	got, err := s.IPOs.GetByID(ctx, ipo.ID)
	require.NoError(t, err)
	got.Subscription.Retail = 42
	got.Name = "mutated"

	again, err := s.IPOs.GetByID(ctx, ipo.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Tech", again.Name)
	assert.Zero(t, again.Subscription.Retail)
}

func TestSQLiteStores(t *testing.T) {
	runStoreContract(t, func(t *testing.T) *Stores {
		db, err := database.Connect(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		require.NoError(t, database.Migrate(context.Background(), db))
		s := NewSQLStores(db)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// TestPostgresStores runs against TEST_DATABASE_URL and is skipped without it.
func TestPostgresStores(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping postgres store tests - TEST_DATABASE_URL not set")
	}

	runStoreContract(t, func(t *testing.T) *Stores {
		db, err := database.Connect(database.DriverPostgres, dsn)
		if err != nil {
			t.Skipf("Skipping postgres store tests - database not available: %v", err)
		}
		ctx := context.Background()
		require.NoError(t, database.Migrate(ctx, db))
		_, err = db.ExecContext(ctx, `TRUNCATE users, ipos, applications RESTART IDENTITY`)
		require.NoError(t, err)
		s := NewSQLStores(db)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
