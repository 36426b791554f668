package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/sirupsen/logrus"
)

const catalogServiceName = "CatalogService"

const (
	defaultIPOType        = "mainboard"
	defaultIPOCategory    = "General"
	defaultLogoURL        = "assets/img/abc.png"
	defaultDescription    = "No description available"
	defaultCompanyInfo    = "No company info available"
	defaultIssueFigure    = "N/A"
	defaultExchange       = "NSE, BSE"
	ipoNotFoundMessage    = "IPO not found"
	ipoRequiredFieldsHint = "Please provide all required fields"
)

type CreateIPOInput struct {
	Name         string  `json:"name" validate:"required"`
	Type         string  `json:"type"`
	Category     string  `json:"category"`
	LogoURL      string  `json:"logoUrl"`
	Description  string  `json:"description"`
	OpenDate     string  `json:"openDate" validate:"required,ipodate"`
	CloseDate    string  `json:"closeDate" validate:"required,ipodate"`
	ListingDate  *string `json:"listingDate" validate:"omitempty,ipodate"`
	PriceBand    string  `json:"priceBand" validate:"required"`
	LotSize      int     `json:"lotSize" validate:"required,gt=0"`
	FaceValue    float64 `json:"faceValue" validate:"required,gt=0"`
	IssueSize    string  `json:"issueSize"`
	FreshIssue   string  `json:"freshIssue"`
	OfferForSale string  `json:"offerForSale"`
	Exchange     string  `json:"exchange"`
	CompanyInfo  string  `json:"companyInfo"`
}

// IPOPatch is a shallow merge over a stored listing; nil pointers are left alone.
// The nullable fields use Optional so they can be cleared.
type IPOPatch struct {
	Name         *string                              `json:"name"`
	Type         *string                              `json:"type"`
	Category     *string                              `json:"category"`
	LogoURL      *string                              `json:"logoUrl"`
	Description  *string                              `json:"description"`
	OpenDate     *string                              `json:"openDate"`
	CloseDate    *string                              `json:"closeDate"`
	ListingDate  models.Optional[string]              `json:"listingDate"`
	PriceBand    *string                              `json:"priceBand"`
	LotSize      *int                                 `json:"lotSize"`
	FaceValue    *float64                             `json:"faceValue"`
	IssueSize    *string                              `json:"issueSize"`
	FreshIssue   *string                              `json:"freshIssue"`
	OfferForSale *string                              `json:"offerForSale"`
	Exchange     *string                              `json:"exchange"`
	CompanyInfo  *string                              `json:"companyInfo"`
	Subscription models.Optional[models.Subscription] `json:"subscription"`
	GMP          models.Optional[models.GMP]          `json:"gmp"`
}

type CatalogService struct {
	ipos    store.IPOStore
	market  MarketDataProvider
	utility *UtilityService
	audit   *AuditLogger
	now     func() time.Time
}

func NewCatalogService(ipos store.IPOStore, market MarketDataProvider, utility *UtilityService, audit *AuditLogger) *CatalogService {
	return &CatalogService{
		ipos:    ipos,
		market:  market,
		utility: utility,
		audit:   audit,
		now:     time.Now,
	}
}

// List returns every listing annotated with status and, where missing, simulated market data
func (s *CatalogService) List(ctx context.Context) ([]models.IPO, error) {
	ipos, err := s.ipos.List(ctx)
	if err != nil {
		return nil, storeError(catalogServiceName, "List", err, "")
	}
	for i := range ipos {
		s.annotate(ctx, &ipos[i])
	}
	return ipos, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*models.IPO, error) {
	ipo, err := s.ipos.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(catalogServiceName, "Get", err, ipoNotFoundMessage)
	}
	s.annotate(ctx, ipo)
	return ipo, nil
}

// LiveSubscription always asks the market data provider, ignoring any stored snapshot
func (s *CatalogService) LiveSubscription(ctx context.Context, id int64) (*models.IPO, *models.LiveSubscription, error) {
	ipo, err := s.ipos.GetByID(ctx, id)
	if err != nil {
		return nil, nil, storeError(catalogServiceName, "LiveSubscription", err, ipoNotFoundMessage)
	}

	sub, err := s.market.Subscription(ctx, ipo)
	if err != nil {
		return nil, nil, shared.NewInternalError(catalogServiceName, "LiveSubscription", err)
	}
	return ipo, &models.LiveSubscription{Subscription: *sub, LastUpdated: s.now().UTC()}, nil
}

func (s *CatalogService) Create(ctx context.Context, actorID int64, input CreateIPOInput) (*models.IPO, error) {
	if err := shared.ValidateStruct(input); err != nil {
		if input.Name == "" || input.OpenDate == "" || input.CloseDate == "" || input.PriceBand == "" ||
			input.LotSize == 0 || input.FaceValue == 0 {
			return nil, shared.NewValidationError(ipoRequiredFieldsHint).WithDetails(shared.AsServiceError(err).Details)
		}
		return nil, err
	}

	now := s.now().UTC()
	ipo := &models.IPO{
		Name:         input.Name,
		Type:         orDefault(input.Type, defaultIPOType),
		Category:     orDefault(input.Category, defaultIPOCategory),
		LogoURL:      orDefault(input.LogoURL, defaultLogoURL),
		Description:  orDefault(input.Description, defaultDescription),
		OpenDate:     input.OpenDate,
		CloseDate:    input.CloseDate,
		ListingDate:  nonEmpty(input.ListingDate),
		PriceBand:    input.PriceBand,
		LotSize:      input.LotSize,
		FaceValue:    input.FaceValue,
		IssueSize:    orDefault(input.IssueSize, defaultIssueFigure),
		FreshIssue:   orDefault(input.FreshIssue, defaultIssueFigure),
		OfferForSale: orDefault(input.OfferForSale, defaultIssueFigure),
		Exchange:     orDefault(input.Exchange, defaultExchange),
		CompanyInfo:  orDefault(input.CompanyInfo, orDefault(input.Description, defaultCompanyInfo)),
		Subscription: &models.Subscription{},
		GMP:          &models.GMP{LastUpdated: now},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.ipos.Create(ctx, ipo); err != nil {
		s.audit.Record(AuditEntry{Operation: "CREATE", EntityType: "IPO", EntityID: input.Name, ActorID: actorID, ErrorMsg: err.Error()})
		return nil, storeError(catalogServiceName, "Create", err, "")
	}

	s.audit.Record(AuditEntry{
		Operation:  "CREATE",
		EntityType: "IPO",
		EntityID:   ipo.ID,
		ActorID:    actorID,
		Success:    true,
		Metadata:   map[string]interface{}{"name": ipo.Name, "open_date": ipo.OpenDate, "close_date": ipo.CloseDate},
	})

	ipo.Status = s.utility.CalculateIPOStatus(ipo, s.now())
	return ipo, nil
}

func (s *CatalogService) Update(ctx context.Context, actorID, id int64, patch IPOPatch) (*models.IPO, error) {
	var before map[string]interface{}
	updated, err := s.ipos.Update(ctx, id, func(ipo *models.IPO) error {
		before = auditFields(ipo)
		patch.apply(ipo)
		if err := shared.ValidateStruct(ipo); err != nil {
			return err
		}
		ipo.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		s.audit.Record(AuditEntry{Operation: "UPDATE", EntityType: "IPO", EntityID: id, ActorID: actorID, ErrorMsg: err.Error()})
		return nil, storeError(catalogServiceName, "Update", err, ipoNotFoundMessage)
	}

	s.audit.Record(AuditEntry{
		Operation:  "UPDATE",
		EntityType: "IPO",
		EntityID:   id,
		ActorID:    actorID,
		Success:    true,
		Changes:    diffFields(before, auditFields(updated)),
	})

	updated.Status = s.utility.CalculateIPOStatus(updated, s.now())
	return updated, nil
}

func (s *CatalogService) Delete(ctx context.Context, actorID, id int64) (*models.IPO, error) {
	deleted, err := s.ipos.Delete(ctx, id)
	if err != nil {
		return nil, storeError(catalogServiceName, "Delete", err, ipoNotFoundMessage)
	}

	s.audit.Record(AuditEntry{
		Operation:  "DELETE",
		EntityType: "IPO",
		EntityID:   id,
		ActorID:    actorID,
		Success:    true,
		Metadata:   map[string]interface{}{"name": deleted.Name},
	})
	return deleted, nil
}

// Seed bulk-loads listings through Create and reports how many were accepted.
// Invalid entries are logged and skipped.
func (s *CatalogService) Seed(ctx context.Context, inputs []CreateIPOInput) (int, error) {
	existing, err := s.ipos.List(ctx)
	if err != nil {
		return 0, storeError(catalogServiceName, "Seed", err, "")
	}
	known := make(map[string]bool, len(existing))
	for _, ipo := range existing {
		known[s.utility.NormalizeIPOName(ipo.Name)] = true
	}

	created := 0
	var failures []string
	for _, input := range inputs {
		key := s.utility.NormalizeIPOName(input.Name)
		if key != "" && known[key] {
			continue
		}
		if _, err := s.Create(ctx, 0, input); err != nil {
			if !shared.IsCategory(err, shared.ErrorCategoryValidation) {
				return created, err
			}
			failures = append(failures, fmt.Sprintf("%s: %s", input.Name, shared.PublicMessage(err)))
			continue
		}
		known[key] = true
		created++
	}

	s.audit.Record(AuditEntry{
		Operation:  "BATCH_SEED",
		EntityType: "IPO",
		EntityID:   "BATCH",
		Success:    len(failures) == 0,
		ErrorMsg:   strings.Join(failures, "; "),
		Metadata:   map[string]interface{}{"total_count": len(inputs), "success_count": created},
	})
	return created, nil
}

// OpeningOn returns the listings whose open date falls on day
func (s *CatalogService) OpeningOn(ctx context.Context, day time.Time) ([]models.IPO, error) {
	ipos, err := s.ipos.List(ctx)
	if err != nil {
		return nil, storeError(catalogServiceName, "OpeningOn", err, "")
	}

	target := s.utility.Midnight(day)
	var opening []models.IPO
	for _, ipo := range ipos {
		if open, ok := s.utility.CalendarDay(ipo.OpenDate); ok && open.Equal(target) {
			opening = append(opening, ipo)
		}
	}
	return opening, nil
}

func (s *CatalogService) annotate(ctx context.Context, ipo *models.IPO) {
	ipo.Status = s.utility.CalculateIPOStatus(ipo, s.now())

	if ipo.Subscription == nil {
		if sub, err := s.market.Subscription(ctx, ipo); err == nil {
			ipo.Subscription = sub
		} else {
			logrus.WithError(err).WithField("ipo_id", ipo.ID).Warn("Market data subscription unavailable")
		}
	}
	if ipo.GMP == nil {
		if gmp, err := s.market.GMP(ctx, ipo); err == nil {
			ipo.GMP = gmp
		} else {
			logrus.WithError(err).WithField("ipo_id", ipo.ID).Warn("Market data GMP unavailable")
		}
	}
}

func (p IPOPatch) apply(ipo *models.IPO) {
	setString(&ipo.Name, p.Name)
	setString(&ipo.Type, p.Type)
	setString(&ipo.Category, p.Category)
	setString(&ipo.LogoURL, p.LogoURL)
	setString(&ipo.Description, p.Description)
	setString(&ipo.OpenDate, p.OpenDate)
	setString(&ipo.CloseDate, p.CloseDate)
	setString(&ipo.PriceBand, p.PriceBand)
	setString(&ipo.IssueSize, p.IssueSize)
	setString(&ipo.FreshIssue, p.FreshIssue)
	setString(&ipo.OfferForSale, p.OfferForSale)
	setString(&ipo.Exchange, p.Exchange)
	setString(&ipo.CompanyInfo, p.CompanyInfo)
	if p.LotSize != nil {
		ipo.LotSize = *p.LotSize
	}
	if p.FaceValue != nil {
		ipo.FaceValue = *p.FaceValue
	}
	if p.ListingDate.Set {
		ipo.ListingDate = nonEmpty(p.ListingDate.Value)
	}
	if p.Subscription.Set {
		ipo.Subscription = p.Subscription.Value
	}
	if p.GMP.Set {
		ipo.GMP = p.GMP.Value
	}
}

func auditFields(ipo *models.IPO) map[string]interface{} {
	listing := ""
	if ipo.ListingDate != nil {
		listing = *ipo.ListingDate
	}
	return map[string]interface{}{
		"name":         ipo.Name,
		"type":         ipo.Type,
		"open_date":    ipo.OpenDate,
		"close_date":   ipo.CloseDate,
		"listing_date": listing,
		"price_band":   ipo.PriceBand,
		"lot_size":     ipo.LotSize,
		"face_value":   ipo.FaceValue,
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func nonEmpty(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	c := *v
	return &c
}
