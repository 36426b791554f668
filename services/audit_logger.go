package services

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditLogger writes one structured entry per catalog mutation and application transition
type AuditLogger struct {
	serviceName string
	now         func() time.Time
}

func NewAuditLogger(serviceName string) *AuditLogger {
	return &AuditLogger{serviceName: serviceName, now: time.Now}
}

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	ID          string
	Timestamp   time.Time
	ServiceName string
	Operation   string
	EntityType  string
	EntityID    interface{}
	ActorID     int64
	Changes     map[string]Change
	Success     bool
	ErrorMsg    string
	Metadata    map[string]interface{}
}

type Change struct {
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// Record logs entry, filling the id, timestamp and service name
func (a *AuditLogger) Record(entry AuditEntry) {
	if a == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = a.now()
	entry.ServiceName = a.serviceName

	logFields := logrus.Fields{
		"audit_id":        entry.ID,
		"audit_timestamp": entry.Timestamp,
		"service_name":    entry.ServiceName,
		"operation":       entry.Operation,
		"entity_type":     entry.EntityType,
		"entity_id":       entry.EntityID,
		"success":         entry.Success,
	}

	if entry.ActorID != 0 {
		logFields["actor_id"] = entry.ActorID
	}
	if entry.ErrorMsg != "" {
		logFields["error_msg"] = entry.ErrorMsg
	}
	if len(entry.Changes) > 0 {
		logFields["changes"] = entry.Changes
	}
	for key, value := range entry.Metadata {
		logFields["meta_"+key] = value
	}

	if entry.Success {
		logrus.WithFields(logFields).Info("Audit log entry")
	} else {
		logrus.WithFields(logFields).Warn("Audit log entry - operation failed")
	}
}

// diffFields returns the entries of after whose value differs from before
func diffFields(before, after map[string]interface{}) map[string]Change {
	changes := make(map[string]Change)
	for key, next := range after {
		if prev := before[key]; !reflect.DeepEqual(prev, next) {
			changes[key] = Change{Before: prev, After: next}
		}
	}
	return changes
}
