package models

import "time"

type DashboardApplication struct {
	Application
	IPODetails *IPOSummary `json:"ipoDetails"`
}

type Dashboard struct {
	User         *UserProfile           `json:"user"`
	Applications []DashboardApplication `json:"applications"`
	Stats        *Stats                 `json:"stats"`
}

type Stats struct {
	TotalApplications    int     `json:"totalApplications"`
	PendingApplications  int     `json:"pendingApplications"`
	ApprovedApplications int     `json:"approvedApplications"`
	RejectedApplications int     `json:"rejectedApplications"`
	AllottedApplications int     `json:"allottedApplications"`
	AllottedFull         int     `json:"allottedFull"`
	AllottedPartial      int     `json:"allottedPartial"`
	NotAllotted          int     `json:"notAllotted"`
	TotalInvested        float64 `json:"totalInvested"`
	TotalSharesApplied   int     `json:"totalSharesApplied"`
	TotalSharesAllotted  int     `json:"totalSharesAllotted"`
	SuccessRate          float64 `json:"successRate"`
}

type AppliedIPO struct {
	ApplicationID     int64             `json:"applicationId"`
	ApplicationNumber string            `json:"applicationNumber"`
	IPOID             int64             `json:"ipoId"`
	IPOName           string            `json:"ipoName"`
	Category          Category          `json:"category"`
	Quantity          int               `json:"quantity"`
	BidPrice          float64           `json:"bidPrice"`
	TotalAmount       float64           `json:"totalAmount"`
	Status            ApplicationStatus `json:"status"`
	AllotmentStatus   *AllotmentStatus  `json:"allotmentStatus"`
	SharesAllotted    int               `json:"sharesAllotted"`
	PaymentStatus     PaymentStatus     `json:"paymentStatus"`
	AppliedAt         time.Time         `json:"appliedAt"`
	IPODetails        *IPO              `json:"ipoDetails"`
}

const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
)

// Notification is synthesized per request and never stored.
type Notification struct {
	ID        int       `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}
