package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/utils"
	"gorm.io/gorm"
)

// EventRecord is the transactional outbox row. Workflows write it inside
// their own DB transaction; the dispatcher publishes after commit.
type EventRecord struct {
	ID            int           `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType     EventType     `gorm:"size:40;not null;index" json:"event_type"`
	ReferenceType ReferenceType `gorm:"size:20;not null" json:"reference_type"`
	ReferenceId   int           `gorm:"index" json:"reference_id"`
	PayeeId       int           `gorm:"index" json:"payee_id"`
	Period        string        `gorm:"size:8;index" json:"period"`
	OccurredAt    time.Time     `gorm:"index;not null" json:"occurred_at"`
	Payload       []byte        `gorm:"type:blob" json:"payload"`

	// Publish happens after commit via the dispatcher.
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishEvent writes an outbox record inside the caller's DB transaction.
// It does NOT publish to Pub/Sub; the dispatcher does that after commit.
func PublishEvent(ctx context.Context, tx *gorm.DB, eventType EventType, refType ReferenceType, refId int, payeeId int, period string, payload interface{}) error {
	var payloadBytes []byte
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	record := EventRecord{
		EventType:     eventType,
		ReferenceType: refType,
		ReferenceId:   refId,
		PayeeId:       payeeId,
		Period:        period,
		OccurredAt:    time.Now().UTC(),
		Payload:       payloadBytes,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if v := utils.GetCorrelationId(ctx); v != "" {
		return v
	}
	return uuid.NewString()
}

func ConvertToEventMessage(record EventRecord) config.EventMessage {
	return config.EventMessage{
		ID:            record.ID,
		EventType:     string(record.EventType),
		ReferenceType: string(record.ReferenceType),
		ReferenceId:   record.ReferenceId,
		PayeeId:       record.PayeeId,
		Period:        record.Period,
		OccurredAt:    record.OccurredAt,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
