package outbox

import "time"

// Status is the delivery state of an outbox row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusDead      Status = "dead"
)

const (
	TopicPatientCreated    = "patient.created"
	TopicDoctorCreated     = "doctor.created"
	TopicAssignmentCreated = "assignment.created"
	TopicAssignmentUpdated = "assignment.updated"
	TopicAssignmentDeleted = "assignment.deleted"
	TopicAccountDeleted    = "account.deleted"
	TopicAccountRegistered = "account.registered"
)

// Message mirrors the outbox table.
type Message struct {
	ID        string
	Topic     string
	Payload   []byte
	Status    Status
	Attempts  int
	CreatedAt time.Time
}
