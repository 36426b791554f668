package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/sirupsen/logrus"
)

const identityServiceName = "IdentityService"

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone"`
	PANCard  string `json:"panCard"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate carries explicit presence for every field: absent leaves the stored
// value, null clears it, a value replaces it. Name may be replaced but never cleared.
type ProfileUpdate struct {
	Name        models.Optional[string]             `json:"name"`
	Phone       models.Optional[string]             `json:"phone"`
	PANCard     models.Optional[string]             `json:"panCard"`
	BankAccount models.Optional[models.BankAccount] `json:"bankAccount"`
	UPIID       models.Optional[string]             `json:"upiId"`
}

type UPIInput struct {
	UPIID string `json:"upiId"`
}

// Session is what register and login hand back to the client
type Session struct {
	Token string              `json:"token"`
	User  *models.UserProfile `json:"user"`
}

type IdentityService struct {
	users        store.UserStore
	applications store.ApplicationStore
	hasher       *PasswordHasher
	tokens       *TokenIssuer
	isAdminEmail func(string) bool
	metrics      *shared.ServiceMetrics
	now          func() time.Time
}

func NewIdentityService(users store.UserStore, applications store.ApplicationStore, hasher *PasswordHasher, tokens *TokenIssuer, metrics *shared.ServiceMetrics) *IdentityService {
	return &IdentityService{
		users:        users,
		applications: applications,
		hasher:       hasher,
		tokens:       tokens,
		isAdminEmail: func(string) bool { return false },
		metrics:      metrics,
		now:          time.Now,
	}
}

// WithAdminEmails grants the admin role at registration to emails matched by fn
func (s *IdentityService) WithAdminEmails(fn func(string) bool) *IdentityService {
	if fn != nil {
		s.isAdminEmail = fn
	}
	return s
}

func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, shared.NewValidationError("Please provide name, email, and password")
	}
	if err := shared.ValidateStruct(input); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, shared.NewInternalError(identityServiceName, "Register", err)
	}

	now := s.now().UTC()
	role := models.RoleUser
	if s.isAdminEmail(input.Email) {
		role = models.RoleAdmin
	}

	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		Phone:        input.Phone,
		PANCard:      input.PANCard,
		AppliedIPOs:  []models.AppliedIPORef{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, shared.NewConflictError("User with this email already exists").
				WithOperation(identityServiceName, "Register")
		}
		return nil, storeError(identityServiceName, "Register", err, "")
	}

	s.metrics.RecordRegistration()
	logrus.WithFields(logrus.Fields{
		"component": identityServiceName,
		"user_id":   user.ID,
		"role":      user.Role,
	}).Info("User registered")

	return s.session(user)
}

func (s *IdentityService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return nil, shared.NewValidationError("Please provide email and password")
	}

	user, err := s.VerifyCredentials(ctx, input.Email, input.Password)
	s.metrics.RecordLogin(err == nil)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// VerifyCredentials fails identically for an unknown email and a wrong password
func (s *IdentityService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, shared.NewAuthError("Invalid email or password")
		}
		return nil, storeError(identityServiceName, "VerifyCredentials", err, "")
	}
	if !s.hasher.Matches(user.PasswordHash, password) {
		return nil, shared.NewAuthError("Invalid email or password")
	}
	return user, nil
}

func (s *IdentityService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(identityServiceName, "GetByID", err, "User not found")
	}
	return user, nil
}

func (s *IdentityService) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*models.User, error) {
	if update.Name.Set && (update.Name.Value == nil || strings.TrimSpace(*update.Name.Value) == "") {
		return nil, shared.NewValidationError("Name cannot be empty")
	}
	if update.BankAccount.Set && update.BankAccount.Value != nil {
		if err := shared.ValidateStruct(update.BankAccount.Value); err != nil {
			return nil, shared.NewValidationError("All bank details are required").
				WithDetails(shared.AsServiceError(err).Details)
		}
	}
	if update.UPIID.Set && update.UPIID.Value != nil && !shared.IsValidUPI(*update.UPIID.Value) {
		return nil, shared.NewValidationError("Invalid UPI ID format")
	}

	now := s.now().UTC()
	user, err := s.users.Update(ctx, id, func(u *models.User) error {
		if update.Name.Set {
			u.Name = *update.Name.Value
		}
		if update.Phone.Set {
			u.Phone = valueOrEmpty(update.Phone.Value)
		}
		if update.PANCard.Set {
			u.PANCard = valueOrEmpty(update.PANCard.Value)
		}
		if update.BankAccount.Set {
			u.BankAccount = update.BankAccount.Value
			if u.BankAccount != nil && u.BankAccount.AddedAt.IsZero() {
				u.BankAccount.AddedAt = now
			}
		}
		if update.UPIID.Set {
			u.UPIID = update.UPIID.Value
		}
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, storeError(identityServiceName, "UpdateProfile", err, "User not found")
	}
	return user, nil
}

func (s *IdentityService) AttachBankAccount(ctx context.Context, id int64, account models.BankAccount) (*models.User, error) {
	if err := shared.ValidateStruct(account); err != nil {
		return nil, shared.NewValidationError("All bank details are required").
			WithDetails(shared.AsServiceError(err).Details)
	}

	now := s.now().UTC()
	account.AddedAt = now
	user, err := s.users.Update(ctx, id, func(u *models.User) error {
		u.BankAccount = &account
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, storeError(identityServiceName, "AttachBankAccount", err, "User not found")
	}
	return user, nil
}

func (s *IdentityService) AttachDematAccount(ctx context.Context, id int64, account models.DematAccount) (*models.User, error) {
	if err := shared.ValidateStruct(account); err != nil {
		return nil, shared.NewValidationError("All Demat details are required").
			WithDetails(shared.AsServiceError(err).Details)
	}

	now := s.now().UTC()
	account.AddedAt = now
	user, err := s.users.Update(ctx, id, func(u *models.User) error {
		u.DematAccount = &account
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, storeError(identityServiceName, "AttachDematAccount", err, "User not found")
	}
	return user, nil
}

func (s *IdentityService) SetUPIID(ctx context.Context, id int64, upiID string) (*models.User, error) {
	upiID = strings.TrimSpace(upiID)
	if upiID == "" {
		return nil, shared.NewValidationError("UPI ID is required")
	}
	if !shared.IsValidUPI(upiID) {
		return nil, shared.NewValidationError("Invalid UPI ID format")
	}

	now := s.now().UTC()
	user, err := s.users.Update(ctx, id, func(u *models.User) error {
		u.UPIID = &upiID
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, storeError(identityServiceName, "SetUPIID", err, "User not found")
	}
	return user, nil
}

// Delete removes the user, then detaches their applications. The user goes first so a
// submission racing the deletion fails its user lookup instead of escaping anonymization.
func (s *IdentityService) Delete(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return storeError(identityServiceName, "Delete", err, "User not found")
	}

	anonymized, err := s.applications.AnonymizeUser(ctx, id)
	if err != nil {
		return storeError(identityServiceName, "Delete", err, "")
	}

	logrus.WithFields(logrus.Fields{
		"component":    identityServiceName,
		"user_id":      id,
		"applications": anonymized,
	}).Info("User account deleted")
	return nil
}

// ListRecipients returns every registered email; used by the opening alerts
func (s *IdentityService) ListRecipients(ctx context.Context) ([]string, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storeError(identityServiceName, "ListRecipients", err, "")
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails, nil
}

func (s *IdentityService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, shared.NewInternalError(identityServiceName, "IssueToken", err)
	}
	return &Session{Token: token, User: user.Profile()}, nil
}

func valueOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
