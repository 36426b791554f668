package models

import "time"

type NotificationKind string

const (
	KindApplicationConfirmation NotificationKind = "application_confirmation"
	KindIPOOpening              NotificationKind = "ipo_opening"
	KindAllotmentResult         NotificationKind = "allotment_result"
)

// NotificationTask is the detached unit of work handed to the dispatcher.
type NotificationTask struct {
	ID          string           `json:"id"`
	Kind        NotificationKind `json:"kind"`
	Recipient   string           `json:"recipient"`
	IPO         *IPO             `json:"ipo,omitempty"`
	Application *Application     `json:"application,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}
