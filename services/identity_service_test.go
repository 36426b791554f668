package services

import (
	"context"
	"testing"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.identity.Register(ctx, RegisterInput{
		Name:     "Asha",
		Email:    "asha@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, models.RoleUser, session.User.Role)

	claims, err := env.tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.ID)
	assert.Equal(t, "asha@example.com", claims.Email)

	login, err := env.identity.Login(ctx, LoginInput{Email: "asha@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)
}

func TestRegisterAssignsAdminRole(t *testing.T) {
	env := newTestEnv(t)
	session, err := env.identity.Register(context.Background(), RegisterInput{
		Name: "Ops", Email: "admin@example.com", Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, session.User.Role)

	claims, err := env.tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Asha", "asha@example.com")

	tests := []struct {
		name    string
		input   RegisterInput
		message string
	}{
		{"missing password", RegisterInput{Name: "Asha", Email: "new@example.com"}, "Please provide name, email, and password"},
		{"duplicate email", RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "x"}, "User with this email already exists"},
		{"malformed email", RegisterInput{Name: "Asha", Email: "not-an-email", Password: "x"}, "Invalid email format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.identity.Register(ctx, tt.input)
			require.Error(t, err)
			assert.Equal(t, 400, shared.HTTPStatus(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, shared.PublicMessage(err))
			}
		})
	}
}

func TestLoginFailsUniformly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Asha", "asha@example.com")

	_, wrongPassword := env.identity.Login(ctx, LoginInput{Email: "asha@example.com", Password: "nope"})
	_, unknownEmail := env.identity.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "secret123"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, 401, shared.HTTPStatus(wrongPassword))
	assert.Equal(t, shared.PublicMessage(wrongPassword), shared.PublicMessage(unknownEmail))

	_, missing := env.identity.Login(ctx, LoginInput{Email: "asha@example.com"})
	require.Error(t, missing)
	assert.Equal(t, "Please provide email and password", shared.PublicMessage(missing))
}

func TestUpdateProfilePresenceSemantics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "Asha", "asha@example.com")

	updated, err := env.identity.UpdateProfile(ctx, user.ID, ProfileUpdate{
		Phone: models.Some("9876543210"),
		UPIID: models.Some("asha@okbank"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha", updated.Name, "absent fields are untouched")
	assert.Equal(t, "9876543210", updated.Phone)
	require.NotNil(t, updated.UPIID)
	assert.Equal(t, "asha@okbank", *updated.UPIID)
	assert.Equal(t, "ABCDE1234F", updated.PANCard)

	cleared, err := env.identity.UpdateProfile(ctx, user.ID, ProfileUpdate{
		UPIID:   models.Null[string](),
		PANCard: models.Null[string](),
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.UPIID)
	assert.Empty(t, cleared.PANCard)
	assert.Equal(t, "9876543210", cleared.Phone)

	_, err = env.identity.UpdateProfile(ctx, user.ID, ProfileUpdate{Name: models.Null[string]()})
	require.Error(t, err)
	assert.Equal(t, "Name cannot be empty", shared.PublicMessage(err))

	_, err = env.identity.UpdateProfile(ctx, user.ID, ProfileUpdate{UPIID: models.Some("no-at-sign")})
	require.Error(t, err)
	assert.Equal(t, "Invalid UPI ID format", shared.PublicMessage(err))
}

func TestAccountDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "Asha", "asha@example.com")

	_, err := env.identity.AttachBankAccount(ctx, user.ID, models.BankAccount{AccountNumber: "001122"})
	require.Error(t, err)
	assert.Equal(t, "All bank details are required", shared.PublicMessage(err))

	withBank, err := env.identity.AttachBankAccount(ctx, user.ID, models.BankAccount{
		AccountNumber: "001122", IFSCCode: "HDFC0001234", BankName: "HDFC", AccountHolderName: "Asha",
	})
	require.NoError(t, err)
	require.NotNil(t, withBank.BankAccount)
	assert.False(t, withBank.BankAccount.AddedAt.IsZero())

	withDemat, err := env.identity.AttachDematAccount(ctx, user.ID, models.DematAccount{
		DPID: "IN300476", ClientID: "10000001", DepositoryName: "NSDL",
	})
	require.NoError(t, err)
	require.NotNil(t, withDemat.DematAccount)
	assert.Equal(t, "IN300476", withDemat.DematAccount.DPID)

	_, err = env.identity.SetUPIID(ctx, user.ID, "")
	require.Error(t, err)
	assert.Equal(t, "UPI ID is required", shared.PublicMessage(err))

	withUPI, err := env.identity.SetUPIID(ctx, user.ID, "asha@okbank")
	require.NoError(t, err)
	assert.Equal(t, "asha@okbank", *withUPI.UPIID)
}

func TestSubmitUsesStoredAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "Asha", "asha@example.com")
	_, err := env.identity.AttachDematAccount(ctx, user.ID, models.DematAccount{DPID: "IN300476", ClientID: "10000001", DepositoryName: "NSDL"})
	require.NoError(t, err)
	_, err = env.identity.AttachBankAccount(ctx, user.ID, models.BankAccount{
		AccountNumber: "001122", IFSCCode: "HDFC0001234", BankName: "HDFC", AccountHolderName: "Asha",
	})
	require.NoError(t, err)

	ipo := env.createIPO(t, "Acme Tech", "2026-03-10", "2026-03-12")
	app := env.apply(t, user.ID, ipo.ID)

	assert.Equal(t, "IN300476", app.DPID)
	assert.Equal(t, "10000001", app.ClientID)
	assert.Equal(t, "001122", app.BankAccount)
}

func TestDeleteAnonymizesApplications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "Asha", "asha@example.com")
	ipo := env.createIPO(t, "Acme Tech", "2026-03-10", "2026-03-12")
	app := env.apply(t, user.ID, ipo.ID)

	require.NoError(t, env.identity.Delete(ctx, user.ID))

	_, err := env.identity.GetByID(ctx, user.ID)
	require.Error(t, err)
	assert.Equal(t, 404, shared.HTTPStatus(err))

	stored, err := env.stores.Applications.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UserID)
	assert.Empty(t, stored.PANCard)

	_, err = env.identity.Login(ctx, LoginInput{Email: "asha@example.com", Password: "secret123"})
	require.Error(t, err)

	err = env.identity.Delete(ctx, user.ID)
	require.Error(t, err)
	assert.Equal(t, 404, shared.HTTPStatus(err))
}

func TestListRecipients(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Asha", "asha@example.com")
	env.register(t, "Ravi", "ravi@example.com")

	recipients, err := env.identity.ListRecipients(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"asha@example.com", "ravi@example.com"}, recipients)
}

// submitDuringAnonymize files an application for the user at the moment their
// applications are being anonymized
type submitDuringAnonymize struct {
	store.ApplicationStore
	submit    func(userID int64) error
	submitErr error
}

func (s *submitDuringAnonymize) AnonymizeUser(ctx context.Context, userID int64) (int, error) {
	s.submitErr = s.submit(userID)
	return s.ApplicationStore.AnonymizeUser(ctx, userID)
}

func TestDeleteRefusesSubmissionsRacingTheDeletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "Asha", "asha@example.com")
	ipo := env.createIPO(t, "Acme Tech", "2026-03-10", "2026-03-12")

	racing := &submitDuringAnonymize{
		ApplicationStore: env.stores.Applications,
		submit: func(userID int64) error {
			_, err := env.applications.Submit(ctx, userID, SubmitInput{
				IPOID: ipo.ID, Category: models.CategoryRetail, BidPrice: 100, Quantity: 150,
			})
			return err
		},
	}
	identity := NewIdentityService(env.stores.Users, racing, NewPasswordHasher(4), env.tokens, nil)

	require.NoError(t, identity.Delete(ctx, user.ID))

	require.Error(t, racing.submitErr)
	assert.Equal(t, 404, shared.HTTPStatus(racing.submitErr))

	apps, err := env.stores.Applications.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, apps)
}
