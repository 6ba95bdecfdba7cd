package models

// EventStatus represents the processing state of a webhook event
type EventStatus string

const (
	// EventStatusPending marks an event waiting for the processor
	EventStatusPending EventStatus = "pending"
	// EventStatusProcessed marks an event whose work step succeeded
	EventStatusProcessed EventStatus = "processed"
	// EventStatusFailed marks an event whose work step failed
	EventStatusFailed EventStatus = "failed"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []EventStatus{EventStatusPending, EventStatusProcessed, EventStatusFailed}

// Valid reports whether s is a known status
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPending, EventStatusProcessed, EventStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the processor will never touch the event again
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusProcessed || s == EventStatusFailed
}

// IngestStatus is the outcome of an ingestion attempt
type IngestStatus string

const (
	// IngestStatusCreated means a new event was stored
	IngestStatusCreated IngestStatus = "created"
	// IngestStatusDuplicate means the key already existed and nothing changed
	IngestStatusDuplicate IngestStatus = "duplicate"
)

// DefaultListLimit caps admin listings when no limit is given
const DefaultListLimit = 50

// MaxListLimit is the upper bound accepted for admin listings
const MaxListLimit = 500

// EventFilter narrows event listings
type EventFilter struct {
	Provider string
	Status   EventStatus
	Limit    int
}
