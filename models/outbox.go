package models

import (
	"time"

	"github.com/mmdatafocus/freight_backend/config"
)

type OutboxAction string

const (
	OutboxActionCreate OutboxAction = "C"
	OutboxActionUpdate OutboxAction = "U"
	OutboxActionDelete OutboxAction = "D"
)

// Job reference types carried by outbox records.
const (
	OutboxReferenceOperationLogs = "LOAD_OP_LOGS"
)

// PubSubMessageRecord is the transactional outbox row of a deferred job.
// It is written inside the transaction of the document that needs the job, then
// published after commit by the dispatcher (or picked up by the direct processor).
type PubSubMessageRecord struct {
	ID                  int          `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	TransactionDateTime time.Time    `gorm:"index;not null" json:"transaction_date_time"`
	ReferenceId         int          `gorm:"index:idx_outbox_reference,priority:2" json:"reference_id"`
	ReferenceType       string       `gorm:"size:40;not null;index:idx_outbox_reference,priority:1" json:"reference_type"`
	Action              OutboxAction `gorm:"size:1;not null" json:"action"`
	NewObj              []byte       `gorm:"type:blob" json:"new_obj"`
	IsProcessed         bool         `gorm:"index;not null" json:"is_processed"`
	// Publish metadata (dispatcher side).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	// Processing metadata (worker side).
	ProcessingStatus     string     `gorm:"size:20;index;not null;default:'PENDING'" json:"processing_status"`
	ProcessAttempts      int        `gorm:"not null;default:0" json:"process_attempts"`
	NextProcessAttemptAt *time.Time `gorm:"index" json:"next_process_attempt_at"`
	LastProcessError     *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt          *time.Time `gorm:"index" json:"processed_at"`
	CorrelationId        string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record PubSubMessageRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:                  record.ID,
		TransactionDateTime: record.TransactionDateTime,
		ReferenceId:         record.ReferenceId,
		ReferenceType:       record.ReferenceType,
		Action:              string(record.Action),
		NewObj:              record.NewObj,
		CorrelationId:       record.CorrelationId,
	}
}

// NewOperationLogsRecord is the job that writes the shipping log of a submitted loading operation.
func NewOperationLogsRecord(op *LoadingOperation, correlationId string) *PubSubMessageRecord {
	return &PubSubMessageRecord{
		TransactionDateTime: op.PostingDatetime,
		ReferenceId:         op.ID,
		ReferenceType:       OutboxReferenceOperationLogs,
		Action:              OutboxActionCreate,
		PublishStatus:       OutboxPublishStatusPending,
		ProcessingStatus:    OutboxProcessStatusPending,
		CorrelationId:       correlationId,
	}
}

// OutboxFilter selects outbox rows; zero values do not filter.
type OutboxFilter struct {
	ReferenceType    string
	ReferenceId      int
	ProcessingStatus string
	Limit            int
}
