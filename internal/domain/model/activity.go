package model

import "time"

// ActivityStatus is the lifecycle state of one reply attempt.
type ActivityStatus string

const (
	// ActivityProcessing is the initial state, written before the generator
	// is invoked. Every record reaches exactly one terminal state afterward.
	ActivityProcessing ActivityStatus = "processing"
	// ActivitySent means the reply was generated and delivered in-thread.
	ActivitySent ActivityStatus = "sent"
	// ActivityDrafted means the reply was generated but the account has
	// auto-send disabled, so nothing was delivered.
	ActivityDrafted ActivityStatus = "drafted"
	// ActivityFailed means the generator failed; no reply exists.
	ActivityFailed ActivityStatus = "failed"
	// ActivityDeliveryFailed means a reply was generated but sending it
	// through the provider failed.
	ActivityDeliveryFailed ActivityStatus = "delivery_failed"
)

// ValidActivityStatus reports whether s is a known status value. Used to
// validate the ?status= filter on the activity endpoints.
func ValidActivityStatus(s ActivityStatus) bool {
	switch s {
	case ActivityProcessing, ActivitySent, ActivityDrafted, ActivityFailed, ActivityDeliveryFailed:
		return true
	}
	return false
}

// ActivityRecord is one durable audit entry describing a reply attempt.
// Records are append-only: a record is created in ActivityProcessing and
// finalized once with its terminal status; it is never rewritten afterward.
type ActivityRecord struct {
	ID           int64
	AccountEmail string
	MessageID    string
	Subject      string
	ReplyText    string
	Status       ActivityStatus
	Detail       string // Error text for failed / delivery_failed records.
	CreatedAt    time.Time
}
