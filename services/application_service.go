package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	applicationServiceName         = "ApplicationService"
	applicationNotFoundMessage     = "Application not found"
	allotmentLookupNotFoundMessage = "Application not found. Please check your details."
	maxApplicationNumberAttempts   = 5
)

type SubmitInput struct {
	IPOID       int64           `json:"ipoId" validate:"required,gt=0"`
	Category    models.Category `json:"category" validate:"required,oneof=Retail HNI QIB"`
	BidPrice    float64         `json:"bidPrice" validate:"required,gt=0"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	PANCard     string          `json:"panCard"`
	DPID        string          `json:"dpId"`
	ClientID    string          `json:"clientId"`
	UPIID       string          `json:"upiId"`
	BankAccount string          `json:"bankAccount"`
}

type AllotmentQuery struct {
	PANCard           string `json:"panCard"`
	ApplicationNumber string `json:"applicationNumber"`
}

// DecisionInput records the outcome of the allotment process for one application.
type DecisionInput struct {
	Status          models.ApplicationStatus `json:"status" validate:"required,oneof=approved rejected allotted"`
	AllotmentStatus models.AllotmentStatus   `json:"allotmentStatus" validate:"omitempty,oneof=full partial not_allotted"`
	SharesAllotted  int                      `json:"sharesAllotted" validate:"gte=0"`
}

// paymentTransitions lists the legal targets for each payment status. Completed is final.
var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending: {models.PaymentCompleted, models.PaymentFailed},
	models.PaymentFailed:  {models.PaymentPending, models.PaymentCompleted},
}

type ApplicationService struct {
	applications store.ApplicationStore
	users        store.UserStore
	ipos         store.IPOStore
	notifier     Notifier
	audit        *AuditLogger
	metrics      *shared.ServiceMetrics
	utility      *UtilityService
	now          func() time.Time

	randMu   sync.Mutex
	randIntn func(n int) int
}

func NewApplicationService(applications store.ApplicationStore, users store.UserStore, ipos store.IPOStore, notifier Notifier, audit *AuditLogger, metrics *shared.ServiceMetrics) *ApplicationService {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ApplicationService{
		applications: applications,
		users:        users,
		ipos:         ipos,
		notifier:     notifier,
		audit:        audit,
		metrics:      metrics,
		utility:      NewUtilityService(),
		now:          time.Now,
		randIntn:     rng.Intn,
	}
}

// Submit files an application for userID. The confirmation email is queued and never
// affects the result.
func (s *ApplicationService) Submit(ctx context.Context, userID int64, input SubmitInput) (*models.Application, error) {
	if input.IPOID == 0 || input.Category == "" || input.BidPrice == 0 || input.Quantity == 0 {
		s.metrics.RecordApplication(string(input.Category), false)
		return nil, shared.NewValidationError("Missing required fields")
	}
	if err := shared.ValidateStruct(input); err != nil {
		s.metrics.RecordApplication(string(input.Category), false)
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(applicationServiceName, "Submit", err, "User not found")
	}

	ipo, err := s.ipos.GetByID(ctx, input.IPOID)
	if err != nil {
		s.metrics.RecordApplication(string(input.Category), false)
		return nil, storeError(applicationServiceName, "Submit", err, ipoNotFoundMessage)
	}

	existing, err := s.applications.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(applicationServiceName, "Submit", err, "")
	}
	for _, app := range existing {
		if app.IPOID == input.IPOID {
			s.metrics.RecordApplication(string(input.Category), false)
			return nil, duplicateApplicationError()
		}
	}

	now := s.now().UTC()
	app := &models.Application{
		UserID:          userID,
		IPOID:           ipo.ID,
		IPOName:         ipo.Name,
		Category:        input.Category,
		BidPrice:        input.BidPrice,
		Quantity:        input.Quantity,
		TotalAmount:     TotalAmount(input.BidPrice, input.Quantity),
		PANCard:         firstNonEmpty(input.PANCard, user.PANCard),
		DPID:            input.DPID,
		ClientID:        input.ClientID,
		UPIID:           firstNonEmpty(input.UPIID, valueOrEmpty(user.UPIID)),
		BankAccount:     input.BankAccount,
		Status:          models.StatusPending,
		AllotmentStatus: nil,
		SharesAllotted:  0,
		PaymentStatus:   models.PaymentPending,
		AppliedAt:       now,
		UpdatedAt:       now,
	}
	if user.DematAccount != nil {
		app.DPID = firstNonEmpty(app.DPID, user.DematAccount.DPID)
		app.ClientID = firstNonEmpty(app.ClientID, user.DematAccount.ClientID)
	}
	if user.BankAccount != nil {
		app.BankAccount = firstNonEmpty(app.BankAccount, user.BankAccount.AccountNumber)
	}

	if err := s.create(ctx, app); err != nil {
		s.metrics.RecordApplication(string(input.Category), false)
		return nil, err
	}
	s.metrics.RecordApplication(string(input.Category), true)

	_, err = s.users.Update(ctx, userID, func(u *models.User) error {
		u.AppliedIPOs = append(u.AppliedIPOs, models.AppliedIPORef{
			IPOID:             app.IPOID,
			ApplicationNumber: app.ApplicationNumber,
			AppliedAt:         now,
		})
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component":          applicationServiceName,
			"user_id":            userID,
			"application_number": app.ApplicationNumber,
		}).WithError(err).Warn("Failed to record application on user history")
	}

	s.audit.Record(AuditEntry{
		Operation:  "SUBMIT",
		EntityType: "Application",
		EntityID:   app.ID,
		ActorID:    userID,
		Success:    true,
		Metadata: map[string]interface{}{
			"application_number": app.ApplicationNumber,
			"ipo_id":             app.IPOID,
			"category":           app.Category,
			"total_amount":       app.TotalAmount,
		},
	})

	s.notify(models.KindApplicationConfirmation, user.Email, ipo, app)
	return app, nil
}

// create assigns an application number and persists app, drawing a new number when the
// store reports a collision.
func (s *ApplicationService) create(ctx context.Context, app *models.Application) error {
	var err error
	for attempt := 1; attempt <= maxApplicationNumberAttempts; attempt++ {
		app.ApplicationNumber = s.nextApplicationNumber()
		err = s.applications.Create(ctx, app)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrDuplicateApplicationNumber):
			logrus.WithFields(logrus.Fields{
				"component":          applicationServiceName,
				"application_number": app.ApplicationNumber,
				"attempt":            attempt,
			}).Debug("Application number collision, retrying")
			continue
		case errors.Is(err, store.ErrDuplicateApplication):
			return duplicateApplicationError()
		default:
			return storeError(applicationServiceName, "Submit", err, "")
		}
	}
	return storeError(applicationServiceName, "Submit",
		fmt.Errorf("no free application number after %d attempts: %w", maxApplicationNumberAttempts, err), "")
}

// nextApplicationNumber formats IPO<epoch millis><three digits>.
func (s *ApplicationService) nextApplicationNumber() string {
	s.randMu.Lock()
	suffix := s.randIntn(1000)
	s.randMu.Unlock()
	return fmt.Sprintf("IPO%d%03d", s.now().UnixMilli(), suffix)
}

func (s *ApplicationService) ListForUser(ctx context.Context, userID int64) ([]models.Application, error) {
	apps, err := s.applications.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(applicationServiceName, "ListForUser", err, "")
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

// Get returns the application only to its owner; anyone else sees NotFound.
func (s *ApplicationService) Get(ctx context.Context, id, callerID int64) (*models.Application, error) {
	app, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(applicationServiceName, "Get", err, applicationNotFoundMessage)
	}
	if app.UserID == 0 || app.UserID != callerID {
		return nil, shared.NewNotFoundError(applicationNotFoundMessage).WithOperation(applicationServiceName, "Get")
	}
	return app, nil
}

// CheckAllotment is the anonymous lookup: exact application number plus case-insensitive PAN.
func (s *ApplicationService) CheckAllotment(ctx context.Context, query AllotmentQuery) (*models.AllotmentView, error) {
	number := strings.TrimSpace(query.ApplicationNumber)
	pan := s.utility.NormalizePAN(query.PANCard)
	if number == "" || pan == "" {
		return nil, shared.NewValidationError("PAN Card and Application Number are required")
	}

	app, err := s.applications.GetByNumber(ctx, number)
	if err != nil {
		return nil, storeError(applicationServiceName, "CheckAllotment", err, allotmentLookupNotFoundMessage)
	}
	if s.utility.NormalizePAN(app.PANCard) != pan {
		return nil, shared.NewNotFoundError(allotmentLookupNotFoundMessage).WithOperation(applicationServiceName, "CheckAllotment")
	}
	return app.AllotmentView(), nil
}

// UpdatePayment moves the owner's application to status if the transition is legal.
// Writing the current status again is a no-op.
func (s *ApplicationService) UpdatePayment(ctx context.Context, id, callerID int64, status models.PaymentStatus) (*models.Application, error) {
	switch status {
	case models.PaymentPending, models.PaymentCompleted, models.PaymentFailed:
	default:
		return nil, shared.NewValidationError("paymentStatus must be one of: pending completed failed")
	}

	var previous models.PaymentStatus
	updated, err := s.applications.Update(ctx, id, func(app *models.Application) error {
		if app.UserID == 0 || app.UserID != callerID {
			return shared.NewNotFoundError(applicationNotFoundMessage).WithOperation(applicationServiceName, "UpdatePayment")
		}
		previous = app.PaymentStatus
		if previous == status {
			return nil
		}
		if !PaymentTransitionAllowed(previous, status) {
			return shared.NewValidationError(fmt.Sprintf("Cannot change payment status from %s to %s", previous, status)).
				WithOperation(applicationServiceName, "UpdatePayment")
		}
		app.PaymentStatus = status
		app.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, storeError(applicationServiceName, "UpdatePayment", err, applicationNotFoundMessage)
	}

	if previous != status {
		s.metrics.RecordPaymentUpdate(string(status))
		s.audit.Record(AuditEntry{
			Operation:  "UPDATE_PAYMENT",
			EntityType: "Application",
			EntityID:   id,
			ActorID:    callerID,
			Success:    true,
			Changes:    map[string]Change{"payment_status": {Before: previous, After: status}},
		})
	}
	return updated, nil
}

// PaymentTransitionAllowed reports whether from may move to to.
func PaymentTransitionAllowed(from, to models.PaymentStatus) bool {
	if from == to {
		return true
	}
	for _, candidate := range paymentTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// RecordDecision applies an administrative status decision: pending may become approved or
// rejected, approved may become allotted. The allotment email is queued on allotment.
func (s *ApplicationService) RecordDecision(ctx context.Context, actorID, id int64, input DecisionInput) (*models.Application, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return nil, err
	}

	var before models.Application
	updated, err := s.applications.Update(ctx, id, func(app *models.Application) error {
		before = *app.Clone()
		if err := applyDecision(app, input); err != nil {
			return err
		}
		app.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		s.audit.Record(AuditEntry{Operation: "DECISION", EntityType: "Application", EntityID: id, ActorID: actorID, ErrorMsg: err.Error()})
		return nil, storeError(applicationServiceName, "RecordDecision", err, applicationNotFoundMessage)
	}

	s.metrics.RecordDecision(string(updated.Status))
	s.audit.Record(AuditEntry{
		Operation:  "DECISION",
		EntityType: "Application",
		EntityID:   id,
		ActorID:    actorID,
		Success:    true,
		Changes: diffFields(
			map[string]interface{}{"status": before.Status, "allotment_status": allotmentString(before.AllotmentStatus), "shares_allotted": before.SharesAllotted},
			map[string]interface{}{"status": updated.Status, "allotment_status": allotmentString(updated.AllotmentStatus), "shares_allotted": updated.SharesAllotted},
		),
	})

	if updated.Status == models.StatusAllotted {
		s.notifyAllotment(ctx, updated)
	}
	return updated, nil
}

func applyDecision(app *models.Application, input DecisionInput) error {
	invalid := func(format string, args ...interface{}) error {
		return shared.NewValidationError(fmt.Sprintf(format, args...)).WithOperation(applicationServiceName, "RecordDecision")
	}

	switch input.Status {
	case models.StatusApproved, models.StatusRejected:
		if app.Status != models.StatusPending {
			return invalid("Cannot move a %s application to %s", app.Status, input.Status)
		}
		if input.AllotmentStatus != "" || input.SharesAllotted != 0 {
			return invalid("Allotment can only be recorded with status allotted")
		}
		app.Status = input.Status
		return nil

	case models.StatusAllotted:
		if app.Status != models.StatusApproved {
			return invalid("Cannot move a %s application to %s", app.Status, input.Status)
		}
		switch input.AllotmentStatus {
		case models.AllotmentFull:
			if input.SharesAllotted != app.Quantity {
				return invalid("A full allotment must allot all %d shares", app.Quantity)
			}
		case models.AllotmentPartial:
			if input.SharesAllotted <= 0 || input.SharesAllotted >= app.Quantity {
				return invalid("A partial allotment must allot between 1 and %d shares", app.Quantity-1)
			}
		case models.AllotmentNotAllotted:
			if input.SharesAllotted != 0 {
				return invalid("A not_allotted result cannot allot shares")
			}
		default:
			return invalid("allotmentStatus is required when status is allotted")
		}
		status := input.AllotmentStatus
		app.Status = models.StatusAllotted
		app.AllotmentStatus = &status
		app.SharesAllotted = input.SharesAllotted
		return nil
	}
	return invalid("Unknown status %s", input.Status)
}

func (s *ApplicationService) notifyAllotment(ctx context.Context, app *models.Application) {
	logger := logrus.WithFields(logrus.Fields{
		"component":      applicationServiceName,
		"application_id": app.ID,
	})
	if app.UserID == 0 {
		logger.Debug("Application owner no longer exists, skipping allotment email")
		return
	}

	owner, err := s.users.GetByID(ctx, app.UserID)
	if err != nil {
		logger.WithError(err).Warn("Could not load application owner for allotment email")
		return
	}
	ipo, err := s.ipos.GetByID(ctx, app.IPOID)
	if err != nil {
		// listing removed since the application; the snapshot name is enough for the email
		ipo = &models.IPO{ID: app.IPOID, Name: app.IPOName}
	}
	s.notify(models.KindAllotmentResult, owner.Email, ipo, app)
}

func (s *ApplicationService) notify(kind models.NotificationKind, recipient string, ipo *models.IPO, app *models.Application) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Notify(NewNotificationTask(kind, recipient, ipo, app)) {
		logrus.WithFields(logrus.Fields{
			"component": applicationServiceName,
			"kind":      kind,
			"recipient": recipient,
		}).Warn("Notification was not accepted")
	}
}

// TotalAmount is bidPrice × quantity computed in decimal.
func TotalAmount(bidPrice float64, quantity int) float64 {
	return decimal.NewFromFloat(bidPrice).Mul(decimal.NewFromInt(int64(quantity))).InexactFloat64()
}

func duplicateApplicationError() error {
	return shared.NewConflictError("You have already applied for this IPO").WithOperation(applicationServiceName, "Submit")
}

func allotmentString(status *models.AllotmentStatus) string {
	if status == nil {
		return ""
	}
	return string(*status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
