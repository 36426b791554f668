package models

import "time"

const (
	IPOStatusUpcoming = "UPCOMING"
	IPOStatusOpen     = "OPEN"
	IPOStatusClosed   = "CLOSED"
	IPOStatusListed   = "LISTED"
	IPOStatusUnknown  = "UNKNOWN"
)

type Subscription struct {
	Retail float64 `json:"retail"`
	HNI    float64 `json:"hni"`
	QIB    float64 `json:"qib"`
	Total  float64 `json:"total"`
}

type GMP struct {
	Price       float64   `json:"price"`
	Percentage  float64   `json:"percentage"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// IPO is a catalog listing. Dates are calendar dates kept as the client sent them
// (YYYY-MM-DD or RFC 3339); Status is derived on read and never stored.
type IPO struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name" validate:"required"`
	Type         string        `json:"type"`
	Category     string        `json:"category"`
	LogoURL      string        `json:"logoUrl"`
	Description  string        `json:"description"`
	OpenDate     string        `json:"openDate" validate:"required,ipodate"`
	CloseDate    string        `json:"closeDate" validate:"required,ipodate"`
	ListingDate  *string       `json:"listingDate" validate:"omitempty,ipodate"`
	PriceBand    string        `json:"priceBand" validate:"required"`
	LotSize      int           `json:"lotSize" validate:"gt=0"`
	FaceValue    float64       `json:"faceValue" validate:"gt=0"`
	IssueSize    string        `json:"issueSize"`
	FreshIssue   string        `json:"freshIssue"`
	OfferForSale string        `json:"offerForSale"`
	Exchange     string        `json:"exchange"`
	CompanyInfo  string        `json:"companyInfo"`
	Subscription *Subscription `json:"subscription"`
	GMP          *GMP          `json:"gmp"`
	Status       string        `json:"status,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// IPOSummary is the narrow view joined onto dashboard entries.
type IPOSummary struct {
	Name        string  `json:"name"`
	OpenDate    string  `json:"openDate"`
	CloseDate   string  `json:"closeDate"`
	ListingDate *string `json:"listingDate"`
	Type        string  `json:"type"`
}

func (i *IPO) Summary() *IPOSummary {
	if i == nil {
		return nil
	}
	return &IPOSummary{
		Name:        i.Name,
		OpenDate:    i.OpenDate,
		CloseDate:   i.CloseDate,
		ListingDate: i.ListingDate,
		Type:        i.Type,
	}
}

func (i *IPO) Clone() *IPO {
	if i == nil {
		return nil
	}
	c := *i
	if i.ListingDate != nil {
		v := *i.ListingDate
		c.ListingDate = &v
	}
	if i.Subscription != nil {
		s := *i.Subscription
		c.Subscription = &s
	}
	if i.GMP != nil {
		g := *i.GMP
		c.GMP = &g
	}
	return &c
}

// LiveSubscription is a point-in-time subscription reading.
type LiveSubscription struct {
	Subscription
	LastUpdated time.Time `json:"lastUpdated"`
}
