package models

import "time"

type Category string

const (
	CategoryRetail Category = "Retail"
	CategoryHNI    Category = "HNI"
	CategoryQIB    Category = "QIB"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
	StatusAllotted ApplicationStatus = "allotted"
)

type AllotmentStatus string

const (
	AllotmentFull        AllotmentStatus = "full"
	AllotmentPartial     AllotmentStatus = "partial"
	AllotmentNotAllotted AllotmentStatus = "not_allotted"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Application struct {
	ID                int64             `json:"id"`
	ApplicationNumber string            `json:"applicationNumber"`
	UserID            int64             `json:"userId"`
	IPOID             int64             `json:"ipoId"`
	IPOName           string            `json:"ipoName"`
	Category          Category          `json:"category"`
	BidPrice          float64           `json:"bidPrice"`
	Quantity          int               `json:"quantity"`
	TotalAmount       float64           `json:"totalAmount"`
	PANCard           string            `json:"panCard"`
	DPID              string            `json:"dpId"`
	ClientID          string            `json:"clientId"`
	UPIID             string            `json:"upiId"`
	BankAccount       string            `json:"bankAccount"`
	Status            ApplicationStatus `json:"status"`
	AllotmentStatus   *AllotmentStatus  `json:"allotmentStatus"`
	SharesAllotted    int               `json:"sharesAllotted"`
	PaymentStatus     PaymentStatus     `json:"paymentStatus"`
	AppliedAt         time.Time         `json:"appliedAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	if a.AllotmentStatus != nil {
		s := *a.AllotmentStatus
		c.AllotmentStatus = &s
	}
	return &c
}

// IsAllotted reports whether a positive allotment has been recorded.
func (a *Application) IsAllotted() bool {
	return a.AllotmentStatus != nil && a.SharesAllotted > 0
}

// AllotmentView is what the anonymous allotment lookup may reveal.
type AllotmentView struct {
	ApplicationNumber string            `json:"applicationNumber"`
	IPOName           string            `json:"ipoName"`
	Category          Category          `json:"category"`
	Quantity          int               `json:"quantity"`
	BidPrice          float64           `json:"bidPrice"`
	Status            ApplicationStatus `json:"status"`
	AllotmentStatus   *AllotmentStatus  `json:"allotmentStatus"`
	SharesAllotted    int               `json:"sharesAllotted"`
	AppliedAt         time.Time         `json:"appliedAt"`
}

func (a *Application) AllotmentView() *AllotmentView {
	return &AllotmentView{
		ApplicationNumber: a.ApplicationNumber,
		IPOName:           a.IPOName,
		Category:          a.Category,
		Quantity:          a.Quantity,
		BidPrice:          a.BidPrice,
		Status:            a.Status,
		AllotmentStatus:   a.AllotmentStatus,
		SharesAllotted:    a.SharesAllotted,
		AppliedAt:         a.AppliedAt,
	}
}
