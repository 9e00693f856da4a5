package models

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Publish retry policy for the outbox dispatcher.
const (
	OutboxMaxPublishAttempts = 10
	OutboxBaseBackoffSeconds = 5
	OutboxMaxBackoffSeconds  = 900
)
